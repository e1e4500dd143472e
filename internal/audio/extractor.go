package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"

	"audiobook2renpy/internal/progress"
	"audiobook2renpy/internal/subtitle"
	"audiobook2renpy/internal/timestamp"
)

const (
	DefaultChunkSize  = 25
	DefaultFilePrefix = "audiobook"
)

// Job is one clip to cut from the source, named after its cue index.
type Job struct {
	Index int
	Start timestamp.Timestamp
	End   timestamp.Timestamp
}

func JobsFromSubtitles(subs []subtitle.Subtitle) []Job {
	jobs := make([]Job, len(subs))
	for i, sub := range subs {
		jobs[i] = Job{Index: i, Start: sub.Start, End: sub.End}
	}
	return jobs
}

func ClipName(prefix string, index int) string {
	if prefix == "" {
		prefix = DefaultFilePrefix
	}
	return fmt.Sprintf("%s-%d.mp3", prefix, index)
}

func DefaultWorkers() int {
	return max(1, runtime.NumCPU()/2)
}

type Options struct {
	Source     string
	OutputDir  string
	ChunkSize  int
	Workers    int
	FilePrefix string
}

type Summary struct {
	Written   int
	Silenced  int
	Skipped   int
	Failed    int
	Cancelled int
	Errors    []error
}

// ChunkError reports an ffmpeg invocation that failed for one chunk.
type ChunkError struct {
	First int
	Last  int
	Err   error
}

func (e *ChunkError) Error() string {
	return fmt.Sprintf("extract clips %d-%d: %v", e.First, e.Last, e.Err)
}

func (e *ChunkError) Unwrap() error {
	return e.Err
}

type Extractor struct {
	runner Runner
}

func NewExtractor(runner Runner) *Extractor {
	return &Extractor{runner: runner}
}

type chunkResult struct {
	written  int
	silenced int
	skipped  int
	err      error
}

// Extract cuts every job out of opts.Source. Chunks run in parallel, jobs
// inside a chunk share one ffmpeg process. Cancelling ctx stops chunks that
// have not started yet; running ffmpeg processes are left to finish.
func (e *Extractor) Extract(ctx context.Context, jobs []Job, opts Options, events chan<- progress.Event) (Summary, error) {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers()
	}
	if opts.FilePrefix == "" {
		opts.FilePrefix = DefaultFilePrefix
	}

	var summary Summary
	if len(jobs) == 0 {
		return summary, nil
	}
	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return summary, fmt.Errorf("create audio dir: %w", err)
	}

	chunks := chunk(jobs, opts.ChunkSize)
	total := len(jobs)
	slog.Info("Extracting audio", "clips", total, "chunks", len(chunks), "workers", opts.Workers)

	var (
		completed atomic.Int64
		mu        sync.Mutex
		wg        sync.WaitGroup
	)
	semaphore := make(chan struct{}, opts.Workers)

	for _, c := range chunks {
		wg.Add(1)
		go func(c []Job) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			if ctx.Err() != nil {
				mu.Lock()
				summary.Cancelled++
				mu.Unlock()
				return
			}

			res := e.runChunk(ctx, c, opts)

			mu.Lock()
			summary.Written += res.written
			summary.Silenced += res.silenced
			summary.Skipped += res.skipped
			if res.err != nil {
				summary.Failed++
				summary.Errors = append(summary.Errors, res.err)
			}
			mu.Unlock()

			if res.err != nil {
				slog.Error("Chunk failed", "error", res.err)
			}

			n := completed.Add(int64(len(c)))
			progress.Send(events, progress.Step(int(n), total))
		}(c)
	}
	wg.Wait()

	slog.Info("Audio extraction finished",
		"written", summary.Written,
		"silenced", summary.Silenced,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
		"cancelled", summary.Cancelled,
	)
	return summary, nil
}

func (e *Extractor) runChunk(ctx context.Context, c []Job, opts Options) chunkResult {
	var res chunkResult
	args := []string{"-hide_banner", "-loglevel", "error", "-vn", "-y", "-i", opts.Source}
	var pending []string

	for _, job := range c {
		out := filepath.Join(opts.OutputDir, ClipName(opts.FilePrefix, job.Index))
		if _, err := os.Stat(out); err == nil {
			res.skipped++
			continue
		}
		if !job.Start.Before(job.End) {
			if err := writeSilence(out); err != nil {
				res.err = errors.Join(res.err, err)
				continue
			}
			res.silenced++
			continue
		}
		args = append(args, "-c", "copy", "-ss", timestamp.FFmpeg(job.Start), "-to", timestamp.FFmpeg(job.End), out)
		pending = append(pending, out)
	}

	if len(pending) > 0 {
		if _, err := e.runner.Run(context.WithoutCancel(ctx), args...); err != nil {
			res.err = errors.Join(res.err, err)
			// ffmpeg opens every output up front, so a failure leaves
			// truncated clips that would otherwise pass the resume check.
			removePartial(pending)
		} else {
			res.written += len(pending)
		}
	}

	if res.err != nil {
		res.err = &ChunkError{First: c[0].Index, Last: c[len(c)-1].Index, Err: res.err}
	}
	return res
}

func removePartial(paths []string) {
	for _, path := range paths {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			slog.Warn("Failed to remove partial clip", "path", path, "error", err)
		}
	}
}

func chunk(jobs []Job, size int) [][]Job {
	var chunks [][]Job
	for start := 0; start < len(jobs); start += size {
		end := min(start+size, len(jobs))
		chunks = append(chunks, jobs[start:end])
	}
	return chunks
}
