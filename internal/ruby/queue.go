package ruby

import "golang.org/x/text/unicode/norm"

// Annotation is a reading attached to a run of base glyphs. Context is the
// paragraph the annotation came from and is only used for scoring.
type Annotation struct {
	Base    string
	Reading string
	Context string
}

func (a Annotation) Plain() string {
	return a.Base + a.Reading
}

func (a Annotation) Markup() string {
	return "{rb}" + a.Base + "{/rb}{rt}" + a.Reading + "{/rt}"
}

func (a Annotation) normalized() Annotation {
	return Annotation{
		Base:    norm.NFC.String(a.Base),
		Reading: norm.NFC.String(a.Reading),
		Context: a.Context,
	}
}

// Queue is a FIFO of annotations in document order.
type Queue struct {
	items []Annotation
	head  int
}

func NewQueue(items []Annotation) *Queue {
	cp := make([]Annotation, len(items))
	copy(cp, items)
	return &Queue{items: cp}
}

func (q *Queue) Len() int {
	return len(q.items) - q.head
}

func (q *Queue) Front() (Annotation, bool) {
	if q.Len() == 0 {
		return Annotation{}, false
	}
	return q.items[q.head], true
}

func (q *Queue) PopFront() (Annotation, bool) {
	a, ok := q.Front()
	if !ok {
		return Annotation{}, false
	}
	q.items[q.head] = Annotation{}
	q.head++
	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
	}
	return a, true
}

func (q *Queue) PushBack(a Annotation) {
	q.items = append(q.items, a)
}
