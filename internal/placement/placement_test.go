package placement

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"audiobook2renpy/internal/epub"
	"audiobook2renpy/internal/script"
)

type fakeSink struct {
	written []string
	err     error
}

func (f *fakeSink) WriteImage(href string) error {
	f.written = append(f.written, href)
	return f.err
}

func img(href string) epub.Fragment   { return epub.Fragment{Kind: epub.Image, Value: href} }
func first(text string) epub.Fragment { return epub.Fragment{Kind: epub.FirstText, Value: text} }
func last(text string) epub.Fragment  { return epub.Fragment{Kind: epub.LastText, Value: text} }

func testScript(dialogue ...string) *script.Lines {
	lines := script.NewLines([]string{"define e = Character(None)", script.StartLabel})
	for i, d := range dialogue {
		lines.Append(`    voice "audiobook-` + string(rune('0'+i)) + `.mp3"`)
		lines.Append(script.Dialogue(d))
	}
	lines.Append(script.ReturnLine)
	return lines
}

func indexOfMarker(lines *script.Lines, href string) int {
	return lines.IndexContaining(Marker(href))
}

func TestPlaceFirstAndLastImage(t *testing.T) {
	lines := testScript("Once upon a time", "The end")
	sink := &fakeSink{}

	res := NewEngine(DefaultConfig(), sink).Place([]epub.Fragment{img("a.png"), first("Once upon a time"), img("b.png")}, lines)

	if got := indexOfMarker(lines, "a.png"); got != 2 {
		t.Errorf("a.png placed at %d, want 2 (after label start)", got)
	}
	if got := indexOfMarker(lines, "b.png"); got != lines.Len()-1 {
		t.Errorf("b.png placed at %d, want last element %d", got, lines.Len()-1)
	}
	if strings.Join(sink.written, ",") != "a.png,b.png" {
		t.Errorf("sink got %v", sink.written)
	}
	if len(res.Placed) != 2 || res.Unresolved != 0 || res.Dropped != 0 {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestPlaceAfterPreviousImage(t *testing.T) {
	lines := testScript("One", "Two")
	sink := &fakeSink{}

	fragments := []epub.Fragment{img("a.png"), img("b.png"), last("Two")}
	res := NewEngine(DefaultConfig(), sink).Place(fragments, lines)

	a := indexOfMarker(lines, "a.png")
	b := indexOfMarker(lines, "b.png")
	if a != 2 || b != 3 {
		t.Errorf("markers at a=%d b=%d, want 2 and 3", a, b)
	}
	if len(res.Placed) != 2 {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestPlaceBeforeNextFirstText(t *testing.T) {
	lines := testScript("One", "Two", "Three")
	sink := &fakeSink{}

	// prev is an image that was never placed, so the next sentence anchors.
	fragments := []epub.Fragment{last("nothing"), img("x.png"), img("b.png"), first("Three"), last("end")}
	res := NewEngine(DefaultConfig(), sink).Place(fragments, lines)

	b := indexOfMarker(lines, "b.png")
	if b < 0 {
		t.Fatalf("b.png not placed:\n%s", lines)
	}
	if lines.At(b+1) != `    voice "audiobook-2.mp3"` {
		t.Errorf("b.png should precede the cue of its dialogue, next line %q", lines.At(b+1))
	}
	if res.Unresolved != 1 {
		t.Errorf("x.png should be deferred, result %+v", res)
	}
}

func TestPlaceAfterTrailingText(t *testing.T) {
	lines := testScript("One", "Two")
	fragments := []epub.Fragment{first("x"), last("One"), img("a.png"), img("b.png"), first("Two")}

	res := NewEngine(DefaultConfig(), &fakeSink{}).Place(fragments, lines)

	dialogue := lines.FindSentence("One")
	if got := indexOfMarker(lines, "a.png"); got != dialogue+1 {
		t.Errorf("a.png at %d, want right after dialogue %d", got, dialogue)
	}
	if got := indexOfMarker(lines, "b.png"); got != dialogue+2 {
		t.Errorf("b.png at %d, want after a.png", got)
	}
	if len(res.Placed) != 2 {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestTrailingTextRequiresLastText(t *testing.T) {
	lines := testScript("One")
	fragments := []epub.Fragment{first("One"), img("a.png"), img("b.png"), first("z")}

	res := NewEngine(DefaultConfig(), &fakeSink{}).Place(fragments, lines)

	if indexOfMarker(lines, "a.png") >= 0 {
		t.Error("a.png should not be placed from a FirstText prev")
	}
	// b.png follows an unplaced image and has no matching next sentence.
	if res.Unresolved != 2 {
		t.Errorf("expected two deferrals, got %+v", res)
	}
}

func TestPlaceBetweenTexts(t *testing.T) {
	lines := testScript("Alpha", "Beta", "Gamma")
	fragments := []epub.Fragment{last("Alpha"), img("a.png"), first("Gamma")}

	res := NewEngine(DefaultConfig(), &fakeSink{}).Place(fragments, lines)

	if got := indexOfMarker(lines, "a.png"); got != lines.FindSentence("Alpha")+1 {
		t.Errorf("a.png at %d:\n%s", got, lines)
	}
	if len(res.Placed) != 1 {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestWeakAnchors(t *testing.T) {
	dialogue := make([]string, 12)
	for i := range dialogue {
		dialogue[i] = "line " + string(rune('a'+i))
	}

	tests := []struct {
		name       string
		fragments  []epub.Fragment
		cfg        Config
		unresolved int
		dropped    int
	}{
		{
			name:      "missingAnchorDropped",
			cfg:       DefaultConfig(),
			fragments: []epub.Fragment{last("line a"), img("a.png"), first("nowhere")},
			dropped:   1,
		},
		{
			name:      "farAnchorsDropped",
			cfg:       DefaultConfig(),
			fragments: []epub.Fragment{last("line a"), img("a.png"), first("line l")},
			dropped:   1,
		},
		{
			name:      "reversedAnchorsDropped",
			cfg:       DefaultConfig(),
			fragments: []epub.Fragment{last("line c"), img("a.png"), first("line a")},
			dropped:   1,
		},
		{
			name:       "deferPolicy",
			fragments:  []epub.Fragment{last("line a"), img("a.png"), first("nowhere")},
			cfg:        Config{MaxLineDistance: DefaultMaxLineDistance, DeferWeakAnchors: true},
			unresolved: 1,
		},
		{
			name:      "zeroDistance",
			fragments: []epub.Fragment{last("line a"), img("a.png"), first("line b")},
			cfg:       Config{},
			dropped:   1,
		},
		{
			name:      "customDistance",
			fragments: []epub.Fragment{last("line a"), img("a.png"), first("line c")},
			cfg:       Config{MaxLineDistance: 4},
			dropped:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lines := testScript(dialogue...)
			sink := &fakeSink{}
			res := NewEngine(tt.cfg, sink).Place(tt.fragments, lines)

			if res.Unresolved != tt.unresolved || res.Dropped != tt.dropped {
				t.Errorf("result %+v, want unresolved=%d dropped=%d", res, tt.unresolved, tt.dropped)
			}
			if len(sink.written) != 0 || indexOfMarker(lines, "a.png") >= 0 {
				t.Error("weak anchor image should not be placed")
			}
		})
	}
}

func TestSinkErrorDoesNotAbort(t *testing.T) {
	lines := testScript("One")
	sink := &fakeSink{err: errors.New("disk full")}

	res := NewEngine(DefaultConfig(), sink).Place([]epub.Fragment{img("a.png"), first("One"), img("b.png")}, lines)

	if len(res.Placed) != 2 || len(sink.written) != 2 {
		t.Errorf("placement should continue after sink errors: %+v", res)
	}
}

func TestSingleImageFragment(t *testing.T) {
	lines := testScript("One")
	res := NewEngine(DefaultConfig(), &fakeSink{}).Place([]epub.Fragment{img("only.png")}, lines)

	if len(res.Placed) != 1 || strings.Count(strings.Join(lines.Items(), "\n"), Marker("only.png")) != 1 {
		t.Errorf("single image should be placed once: %+v", res)
	}
}

func TestPlaceEmpty(t *testing.T) {
	lines := testScript("One")
	before := lines.Len()
	res := NewEngine(DefaultConfig(), nil).Place(nil, lines)
	if lines.Len() != before || len(res.Placed) != 0 {
		t.Error("empty fragments should not change the script")
	}
}

func TestDisplayBlock(t *testing.T) {
	block := DisplayBlock("../images/p-01 a.png")

	if !strings.HasPrefix(block, `    image p_01_a = "p-01 a.png"`) {
		t.Errorf("unexpected block start:\n%s", block)
	}
	if !strings.Contains(block, "scene p_01_a:") {
		t.Errorf("scene statement missing:\n%s", block)
	}
	if ImageName("01.jpg") != "img_01" {
		t.Errorf("ImageName() = %q", ImageName("01.jpg"))
	}
}

func TestFilenameUnescapes(t *testing.T) {
	if got := Filename("../images/pic%201.png#frag"); got != "pic 1.png" {
		t.Errorf("Filename() = %q", got)
	}
}

func TestPlaceDeterministic(t *testing.T) {
	fragments := []epub.Fragment{
		img("a.png"), // after the label
		img("b.png"), // after a.png
		first("One"),
		last("Two"),
		img("c.png"), // after "Two"
		img("d.png"), // after c.png
		first("Three"),
		last("Three"),
		img("e.png"), // between "Three" and "Four"
		first("Four"),
		img("f.png"), // deferred: FirstText before an image
		img("g.png"), // deferred: f.png never placed, next sentence missing
		first("nowhere"),
		img("h.png"), // dropped: missing anchor
		last("Five"),
		img("i.png"), // appended
	}

	run := func() (string, Result, []string) {
		lines := testScript("One", "Two", "Three", "Four", "Five")
		sink := &fakeSink{}
		res := NewEngine(DefaultConfig(), sink).Place(fragments, lines)
		return lines.String(), res, sink.written
	}

	firstScript, firstRes, firstWritten := run()
	for i := 0; i < 5; i++ {
		script, res, written := run()
		if script != firstScript {
			t.Fatalf("run %d produced a different script:\n%s\nwant:\n%s", i, script, firstScript)
		}
		if !reflect.DeepEqual(res, firstRes) {
			t.Fatalf("run %d result = %+v, want %+v", i, res, firstRes)
		}
		if !reflect.DeepEqual(written, firstWritten) {
			t.Fatalf("run %d wrote %v, want %v", i, written, firstWritten)
		}
	}

	if got := strings.Join(firstRes.Placed, ","); got != "a.png,b.png,c.png,d.png,e.png,i.png" {
		t.Errorf("placed = %s", got)
	}
	if firstRes.Unresolved != 2 || firstRes.Dropped != 1 {
		t.Errorf("result = %+v, want unresolved=2 dropped=1", firstRes)
	}
}

func TestPlaceWithoutLabelIsNotUnresolved(t *testing.T) {
	lines := script.NewLines([]string{script.Dialogue("One"), script.ReturnLine})
	sink := &fakeSink{}

	res := NewEngine(DefaultConfig(), sink).Place([]epub.Fragment{img("a.png"), first("One")}, lines)

	if res.Unresolved != 0 || len(res.Placed) != 0 {
		t.Errorf("result = %+v, want nothing placed and nothing unresolved", res)
	}
	if len(sink.written) != 0 {
		t.Errorf("sink got %v", sink.written)
	}
}
