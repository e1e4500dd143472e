package subtitle

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/asticode/go-astisub"

	"audiobook2renpy/internal/timestamp"
)

var ErrMalformedInput = errors.New("malformed subtitle input")

type Subtitle struct {
	Index int
	Start timestamp.Timestamp
	End   timestamp.Timestamp
	Text  string
}

func Load(path string) ([]Subtitle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open subtitle file: %w", err)
	}
	defer func() { _ = f.Close() }()

	subs, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return subs, nil
}

// Parse reads SRT content and returns the cues sorted by start time with
// positional indices.
func Parse(r io.Reader) ([]Subtitle, error) {
	parsed, err := astisub.ReadFromSRT(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	if len(parsed.Items) == 0 {
		return nil, fmt.Errorf("%w: no cues found", ErrMalformedInput)
	}

	subs := make([]Subtitle, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		lines := make([]string, 0, len(item.Lines))
		for _, line := range item.Lines {
			if text := strings.TrimSpace(line.String()); text != "" {
				lines = append(lines, text)
			}
		}
		subs = append(subs, Subtitle{
			Start: timestamp.FromDuration(item.StartAt),
			End:   timestamp.FromDuration(item.EndAt),
			Text:  strings.Join(lines, " "),
		})
	}

	Sort(subs)
	return subs, nil
}

// Sort orders subs by start time, then end time, and reassigns indices.
func Sort(subs []Subtitle) {
	sort.SliceStable(subs, func(i, j int) bool {
		if c := subs[i].Start.Compare(subs[j].Start); c != 0 {
			return c < 0
		}
		return subs[i].End.Before(subs[j].End)
	})
	for i := range subs {
		subs[i].Index = i
	}
}

func Texts(subs []Subtitle) []string {
	texts := make([]string, len(subs))
	for i, s := range subs {
		texts[i] = s.Text
	}
	return texts
}
