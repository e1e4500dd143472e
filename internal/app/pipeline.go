package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"

	cp "github.com/otiai10/copy"

	"audiobook2renpy/internal/audio"
	"audiobook2renpy/internal/epub"
	"audiobook2renpy/internal/placement"
	"audiobook2renpy/internal/progress"
	"audiobook2renpy/internal/ruby"
	"audiobook2renpy/internal/script"
	"audiobook2renpy/internal/subtitle"
)

type Pipeline struct {
	service *Service
}

type GenerateRequest struct {
	Audio     string
	Subtitles string
	EPUB      string
	// Split extracts one clip per cue instead of referencing ranges of the
	// whole file.
	Split    bool
	OffsetMs int64
}

// Result summarizes one run. Unmatched rubies and unresolved or dropped
// images are partial failures, reported but never fatal.
type Result struct {
	RunID            string
	ProjectDir       string
	ScriptPath       string
	Cues             int
	UnmatchedRubies  []ruby.Annotation
	PlacedImages     []string
	UnresolvedImages int
	DroppedImages    int
	CoverWritten     bool
	Audio            audio.Summary
}

type generationContext struct {
	ctx      context.Context
	pipeline *Pipeline
	session  *session
	req      GenerateRequest
	events   chan<- progress.Event
}

type bookContent struct {
	book      *epub.Book
	rubies    []ruby.Annotation
	fragments []epub.Fragment
}

func NewPipeline(service *Service) *Pipeline {
	return &Pipeline{service: service}
}

// Generate builds the Ren'Py project for req. Exactly one Done event is sent
// on events when it returns, whatever the outcome.
func (pipeline *Pipeline) Generate(ctx context.Context, req GenerateRequest, events chan<- progress.Event) (*Result, error) {
	defer progress.Send(events, progress.Done())

	generation := pipeline.newGenerationContext(ctx, req, events)
	project := pipeline.service.Project()
	cfg := pipeline.service.Config()
	logger := generation.session.logger

	if _, err := os.Stat(req.Audio); err != nil {
		return nil, fmt.Errorf("audio source: %w", err)
	}

	logger.Info("Loading subtitles...", "path", req.Subtitles)
	subs, err := subtitle.Load(req.Subtitles)
	if err != nil {
		return nil, err
	}

	var content *bookContent
	if req.EPUB != "" {
		logger.Info("Reading e-book...", "path", req.EPUB)
		content, err = loadBook(req.EPUB)
		if err != nil {
			return nil, err
		}
	}

	if err := project.Lock(); err != nil {
		return nil, err
	}
	defer func() {
		if err := project.Unlock(); err != nil {
			logger.Warn("Failed to release project lock", "error", err)
		}
	}()

	if err := generation.prepareProject(); err != nil {
		return nil, err
	}

	source, err := generation.prepareAudio()
	if err != nil {
		return nil, err
	}

	result := &Result{
		RunID:      generation.session.id,
		ProjectDir: project.Root(),
		ScriptPath: project.ScriptPath(),
	}

	segmented := subtitle.Segment(subs, req.OffsetMs, abs(req.OffsetMs))
	texts := subtitle.Texts(segmented)
	result.Cues = len(segmented)

	if content != nil && len(content.rubies) > 0 {
		logger.Info("Aligning rubies...", "count", len(content.rubies))
		result.UnmatchedRubies = ruby.AlignAll(texts, ruby.NewQueue(content.rubies), cfg.Ruby.SimilarityThreshold)
	}

	lines := script.Assemble(segmented, texts, script.Options{
		Header:        generation.header(),
		Split:         req.Split,
		AudioPath:     generation.scriptAudioPath(source),
		FilePrefix:    cfg.Audio.FilePrefix,
		AutosaveEvery: cfg.Script.AutosaveEvery,
	})

	if content != nil {
		generation.placeImages(content, lines, result)
	}

	if err := lines.WriteFile(project.ScriptPath()); err != nil {
		return nil, err
	}
	logger.Info("Script written", "path", project.ScriptPath(), "cues", result.Cues)

	if req.Split {
		if pipeline.service.Extractor() == nil {
			return nil, errors.New("split mode needs an audio extractor")
		}
		summary, err := pipeline.service.Extractor().Extract(ctx, audio.JobsFromSubtitles(segmented), audio.Options{
			Source:     source,
			OutputDir:  project.AudioDir(),
			ChunkSize:  cfg.Audio.ChunkSize,
			Workers:    cfg.Audio.Workers,
			FilePrefix: cfg.Audio.FilePrefix,
		}, events)
		if err != nil {
			return nil, err
		}
		result.Audio = summary
	}

	return result, nil
}

func (pipeline *Pipeline) newGenerationContext(ctx context.Context, req GenerateRequest, events chan<- progress.Event) *generationContext {
	return &generationContext{
		ctx:      ctx,
		pipeline: pipeline,
		session:  newSession(pipeline.service.Config().Project.Name),
		req:      req,
		events:   events,
	}
}

func loadBook(path string) (*bookContent, error) {
	book, err := epub.Open(path)
	if err != nil {
		return nil, err
	}
	rubies, err := epub.ExtractRubies(book)
	if err != nil {
		return nil, err
	}
	fragments, err := epub.ExtractFragments(book)
	if err != nil {
		return nil, err
	}
	return &bookContent{book: book, rubies: rubies, fragments: fragments}, nil
}

func (generation *generationContext) prepareProject() error {
	project := generation.pipeline.service.Project()
	cfg := generation.pipeline.service.Config()

	if cfg.Project.TemplateDir != "" {
		err := project.CopyTemplate(cfg.Project.TemplateDir)
		if err != nil && errors.Is(err, os.ErrNotExist) {
			generation.session.logger.Warn("Template directory not found, skipping", "dir", cfg.Project.TemplateDir)
		} else if err != nil {
			return err
		}
	}
	return project.EnsureDirectories()
}

// prepareAudio converts the source to mp3 when needed. Outside split mode
// the file is also placed in the game's audio directory so the script can
// reference it.
func (generation *generationContext) prepareAudio() (string, error) {
	cfg := generation.pipeline.service.Config()
	source := generation.req.Audio

	opts := audio.ConvertOptions{Gain: cfg.Audio.Gain, Speed: cfg.Audio.Speed}
	if !isMP3(source) || audio.ConvertedPath(source, opts) != source {
		converter := generation.pipeline.service.Converter()
		if converter == nil {
			return "", fmt.Errorf("audio %s needs conversion but no converter is configured", source)
		}
		converted, err := converter.Convert(generation.ctx, source, opts, generation.events)
		if err != nil {
			return "", err
		}
		source = converted
	}

	if generation.req.Split {
		return source, nil
	}

	dst := filepath.Join(generation.pipeline.service.Project().AudioDir(), filepath.Base(source))
	if _, err := os.Stat(dst); err == nil {
		return dst, nil
	}
	if err := cp.Copy(source, dst); err != nil {
		return "", fmt.Errorf("copy audio into project: %w", err)
	}
	return dst, nil
}

func (generation *generationContext) scriptAudioPath(source string) string {
	return path.Join("audio", filepath.Base(source))
}

func (generation *generationContext) header() string {
	cfg := generation.pipeline.service.Config()
	header, err := readHeader(cfg.Project.Header, cfg.Project.TemplateDir)
	if err != nil {
		generation.session.logger.Warn("No script header found, writing script without one", "header", cfg.Project.Header, "error", err)
		return ""
	}
	return header
}

func (generation *generationContext) placeImages(content *bookContent, lines *script.Lines, result *Result) {
	cfg := generation.pipeline.service.Config()
	logger := generation.session.logger

	sink := &bookImages{
		book:    content.book,
		project: generation.pipeline.service.Project(),
		width:   cfg.Placement.CanvasWidth,
		height:  cfg.Placement.CanvasHeight,
	}

	engine := placement.NewEngine(placement.Config{
		MaxLineDistance:  cfg.Placement.MaxLineDistance,
		DeferWeakAnchors: cfg.Placement.DeferWeakAnchors,
	}, sink)

	logger.Info("Placing images...", "fragments", len(content.fragments))
	placed := engine.Place(content.fragments, lines)
	result.PlacedImages = placed.Placed
	result.UnresolvedImages = placed.Unresolved
	result.DroppedImages = placed.Dropped

	written, err := sink.writeCover()
	if err != nil {
		logger.Warn("Failed to write cover", "error", err)
	}
	result.CoverWritten = written
}
