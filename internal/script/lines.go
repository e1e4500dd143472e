package script

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Lines is the in-memory script. An element may hold several physical lines
// when it was inserted as one block.
type Lines struct {
	items []string
}

func NewLines(items []string) *Lines {
	cp := make([]string, len(items))
	copy(cp, items)
	return &Lines{items: cp}
}

func Read(path string) (*Lines, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	text := strings.TrimSuffix(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
	if text == "" {
		return &Lines{}, nil
	}
	return &Lines{items: strings.Split(text, "\n")}, nil
}

func (l *Lines) Len() int {
	return len(l.items)
}

func (l *Lines) At(i int) string {
	return l.items[i]
}

func (l *Lines) Items() []string {
	cp := make([]string, len(l.items))
	copy(cp, l.items)
	return cp
}

func (l *Lines) Append(line string) {
	l.items = append(l.items, line)
}

// Insert places line at index i, shifting later elements. i is clamped to
// [0, Len()].
func (l *Lines) Insert(i int, line string) {
	if i < 0 {
		i = 0
	}
	if i >= len(l.items) {
		l.items = append(l.items, line)
		return
	}
	l.items = append(l.items, "")
	copy(l.items[i+1:], l.items[i:])
	l.items[i] = line
}

func (l *Lines) IndexExact(target string) int {
	for i, line := range l.items {
		if line == target {
			return i
		}
	}
	return -1
}

func (l *Lines) IndexContaining(substr string) int {
	for i, line := range l.items {
		if strings.Contains(line, substr) {
			return i
		}
	}
	return -1
}

// FindSentence returns the first dialogue line that contains target or is
// contained in it, comparing trimmed, unquoted, NFC-normalized forms.
func (l *Lines) FindSentence(target string) int {
	t := sentenceKey(target)
	if t == "" {
		return -1
	}
	for i, line := range l.items {
		if !IsDialogue(line) {
			continue
		}
		s := sentenceKey(line)
		if s == "" {
			continue
		}
		if strings.Contains(s, t) || strings.Contains(t, s) {
			return i
		}
	}
	return -1
}

func sentenceKey(s string) string {
	s = strings.ReplaceAll(s, `\"`, "")
	s = strings.ReplaceAll(s, `"`, "")
	return norm.NFC.String(strings.TrimSpace(s))
}

// IsDialogue reports whether line is a bare quoted say statement.
func IsDialogue(line string) bool {
	t := strings.TrimSpace(line)
	return len(t) >= 2 && strings.HasPrefix(t, `"`) && strings.HasSuffix(t, `"`)
}

func IsVoice(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), "voice ")
}

func (l *Lines) String() string {
	if len(l.items) == 0 {
		return ""
	}
	return strings.Join(l.items, "\n") + "\n"
}

func (l *Lines) WriteFile(path string) error {
	if err := os.WriteFile(path, []byte(l.String()), 0644); err != nil {
		return fmt.Errorf("write script: %w", err)
	}
	return nil
}
