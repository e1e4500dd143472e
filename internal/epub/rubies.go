package epub

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"audiobook2renpy/internal/ruby"
)

// ExtractRubies collects every <ruby> element in spine order. The context of
// an annotation is the full text of the ruby's parent element.
func ExtractRubies(book *Book) ([]ruby.Annotation, error) {
	docs, err := book.ContentDocuments()
	if err != nil {
		return nil, err
	}

	var annotations []ruby.Annotation
	skipped := 0
	for _, doc := range docs {
		root, err := html.Parse(bytes.NewReader(doc.Data))
		if err != nil {
			return nil, fmt.Errorf("%w: parse %s: %v", ErrMalformedInput, doc.Path, err)
		}

		for _, node := range findAll(root, func(n *html.Node) bool { return n.DataAtom == atom.Ruby }) {
			a, ok := annotationOf(node)
			if !ok {
				skipped++
				slog.Warn("Skipping malformed ruby", "document", doc.Path, "text", textContent(node, nil))
				continue
			}
			annotations = append(annotations, a)
		}
	}

	slog.Debug("Extracted rubies", "count", len(annotations), "skipped", skipped)
	return annotations, nil
}

func annotationOf(node *html.Node) (ruby.Annotation, bool) {
	base := textContent(node, func(n *html.Node) bool {
		return n.DataAtom == atom.Rt || n.DataAtom == atom.Rp
	})

	var reading strings.Builder
	for _, rt := range findAll(node, func(n *html.Node) bool { return n.DataAtom == atom.Rt }) {
		reading.WriteString(textContent(rt, nil))
	}

	base = strings.TrimSpace(base)
	r := strings.TrimSpace(reading.String())
	if base == "" || r == "" {
		return ruby.Annotation{}, false
	}

	context := ""
	if node.Parent != nil {
		context = textContent(node.Parent, func(n *html.Node) bool { return n.DataAtom == atom.Rp })
	}
	return ruby.Annotation{Base: base, Reading: r, Context: context}, true
}
