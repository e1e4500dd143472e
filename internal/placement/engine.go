package placement

import (
	"log/slog"

	"audiobook2renpy/internal/epub"
	"audiobook2renpy/internal/script"
)

const DefaultMaxLineDistance = 15

// ImageSink receives every illustration that gets a display block.
type ImageSink interface {
	WriteImage(href string) error
}

type Config struct {
	// MaxLineDistance bounds how far apart, in lines, the two sentences
	// around an illustration may be. Zero rejects every such pair. Negative
	// means DefaultMaxLineDistance.
	MaxLineDistance int
	// DeferWeakAnchors counts a text-anchored image whose anchors are missing
	// or too far apart as unresolved instead of dropping it.
	DeferWeakAnchors bool
}

type Result struct {
	Placed     []string
	Unresolved int
	Dropped    int
}

type Engine struct {
	cfg  Config
	sink ImageSink
}

func DefaultConfig() Config {
	return Config{MaxLineDistance: DefaultMaxLineDistance}
}

func NewEngine(cfg Config, sink ImageSink) *Engine {
	if cfg.MaxLineDistance < 0 {
		cfg.MaxLineDistance = DefaultMaxLineDistance
	}
	return &Engine{cfg: cfg, sink: sink}
}

type window struct {
	prev, cur, next epub.Fragment
}

type outcome int

const (
	placed outcome = iota
	deferred
	dropped
)

type rule struct {
	name  string
	match func(w window) bool
	apply func(e *Engine, w window, lines *script.Lines) outcome
}

var rules = []rule{
	{
		name:  "prevImage",
		match: func(w window) bool { return w.prev.Kind == epub.Image },
		apply: (*Engine).afterPreviousImage,
	},
	{
		name:  "trailingText",
		match: func(w window) bool { return w.next.Kind == epub.Image },
		apply: (*Engine).afterTrailingText,
	},
	{
		name:  "textNeighbours",
		match: func(w window) bool { return w.prev.IsText() && w.next.IsText() },
		apply: (*Engine).betweenTexts,
	},
}

// Place inserts a display block for every illustration it can anchor in
// lines. Lines are mutated in place.
func (e *Engine) Place(fragments []epub.Fragment, lines *script.Lines) Result {
	var res Result
	if len(fragments) == 0 {
		return res
	}

	if first := fragments[0]; first.Kind == epub.Image {
		if i := lines.IndexExact(script.StartLabel); i >= 0 {
			e.insert(lines, i+1, first.Value, &res)
		} else {
			slog.Warn("No start label, cannot place first image", "href", first.Value)
		}
	}

	for i := 1; i+1 < len(fragments); i++ {
		w := window{prev: fragments[i-1], cur: fragments[i], next: fragments[i+1]}
		if w.cur.Kind != epub.Image {
			continue
		}

		for _, r := range rules {
			if !r.match(w) {
				continue
			}
			switch r.apply(e, w, lines) {
			case placed:
				res.Placed = append(res.Placed, w.cur.Value)
			case deferred:
				res.Unresolved++
				slog.Debug("Image placement deferred", "rule", r.name, "href", w.cur.Value)
			case dropped:
				res.Dropped++
				slog.Debug("Image dropped", "rule", r.name, "href", w.cur.Value)
			}
			break
		}
	}

	if len(fragments) > 1 {
		if last := fragments[len(fragments)-1]; last.Kind == epub.Image {
			e.insert(lines, lines.Len(), last.Value, &res)
		}
	}

	return res
}

func (e *Engine) insert(lines *script.Lines, at int, href string, res *Result) {
	e.placeAt(lines, at, href)
	res.Placed = append(res.Placed, href)
}

func (e *Engine) writeImage(href string) {
	if e.sink == nil {
		return
	}
	if err := e.sink.WriteImage(href); err != nil {
		slog.Warn("Failed to write image", "href", href, "error", err)
	}
}

func (e *Engine) afterPreviousImage(w window, lines *script.Lines) outcome {
	if i := lines.IndexContaining(Marker(w.prev.Value)); i >= 0 {
		return e.placeAt(lines, i+1, w.cur.Value)
	}
	if w.next.Kind == epub.FirstText {
		if i := lines.FindSentence(w.next.Value); i >= 0 {
			return e.placeAt(lines, beforeCue(lines, i), w.cur.Value)
		}
	}
	return deferred
}

func (e *Engine) afterTrailingText(w window, lines *script.Lines) outcome {
	if w.prev.Kind != epub.LastText {
		return deferred
	}
	i := lines.FindSentence(w.prev.Value)
	if i < 0 {
		return deferred
	}
	return e.placeAt(lines, i+1, w.cur.Value)
}

func (e *Engine) betweenTexts(w window, lines *script.Lines) outcome {
	p := lines.FindSentence(w.prev.Value)
	n := lines.FindSentence(w.next.Value)
	if p < 0 || n < 0 || n < p || n-p >= e.cfg.MaxLineDistance {
		if e.cfg.DeferWeakAnchors {
			return deferred
		}
		return dropped
	}
	return e.placeAt(lines, p+1, w.cur.Value)
}

func (e *Engine) placeAt(lines *script.Lines, at int, href string) outcome {
	lines.Insert(at, DisplayBlock(href))
	e.writeImage(href)
	return placed
}

// beforeCue moves an insertion point in front of the voice statement that
// belongs to the dialogue line at i.
func beforeCue(lines *script.Lines, i int) int {
	if i > 0 && script.IsVoice(lines.At(i-1)) {
		return i - 1
	}
	return i
}
