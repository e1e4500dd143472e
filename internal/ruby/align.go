package ruby

import (
	"log/slog"
	"strings"

	"golang.org/x/text/unicode/norm"
)

const DefaultSimilarityThreshold = 0.5

// Align consumes annotations from the front of q for as long as the front
// entry belongs to text, then rewrites text with ruby markup. Matches are
// substituted last-found first. Text and annotations are compared in NFC
// form, and the returned text is NFC.
func Align(text string, q *Queue, threshold float64) string {
	text = norm.NFC.String(text)

	var matched []Annotation
	for {
		front, ok := q.Front()
		if !ok {
			break
		}
		if front.Base == "" || front.Reading == "" {
			break
		}
		front = front.normalized()
		if Similarity(front.Context, text) <= threshold || !strings.Contains(text, front.Plain()) {
			break
		}
		q.PopFront()
		matched = append(matched, front)
	}

	for i := len(matched) - 1; i >= 0; i-- {
		a := matched[i]
		text = strings.ReplaceAll(text, a.Plain(), a.Markup())
	}
	return text
}

// AlignAll runs alignment passes over texts, rewriting them in place, until
// q is drained. After every pass the entry stuck at the front is given up on
// and reported, so each pass shrinks the queue by at least one.
func AlignAll(texts []string, q *Queue, threshold float64) []Annotation {
	var unmatched []Annotation
	passes := 0
	for q.Len() > 0 {
		passes++
		for i := range texts {
			texts[i] = Align(texts[i], q, threshold)
		}
		if stuck, ok := q.PopFront(); ok {
			unmatched = append(unmatched, stuck)
		}
	}
	slog.Debug("Ruby alignment finished", "passes", passes, "unmatched", len(unmatched))
	return unmatched
}
