package epub

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

type Kind int

const (
	FirstText Kind = iota
	LastText
	Image
)

func (k Kind) String() string {
	switch k {
	case FirstText:
		return "FirstText"
	case LastText:
		return "LastText"
	case Image:
		return "Image"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Fragment is one anchor taken from a content document: the opening or
// closing sentence of the document, or an illustration reference.
type Fragment struct {
	Kind  Kind
	Value string
}

func (f Fragment) IsText() bool {
	return f.Kind == FirstText || f.Kind == LastText
}

func (f Fragment) String() string {
	return fmt.Sprintf("%s(%q)", f.Kind, f.Value)
}

// ExtractFragments walks the spine in reading order. For each document it
// emits the first paragraph's closing text, the last paragraph's closing
// text, then one Image per <image> element.
func ExtractFragments(book *Book) ([]Fragment, error) {
	docs, err := book.ContentDocuments()
	if err != nil {
		return nil, err
	}

	var fragments []Fragment
	for _, doc := range docs {
		root, err := html.Parse(bytes.NewReader(doc.Data))
		if err != nil {
			return nil, fmt.Errorf("%w: parse %s: %v", ErrMalformedInput, doc.Path, err)
		}
		fragments = append(fragments, documentFragments(root)...)
	}
	return fragments, nil
}

func documentFragments(root *html.Node) []Fragment {
	var fragments []Fragment

	paragraphs := findAll(root, func(n *html.Node) bool { return n.DataAtom == atom.P })
	if len(paragraphs) > 0 {
		if text, ok := textOf(paragraphs[0].LastChild); ok {
			fragments = append(fragments, Fragment{Kind: FirstText, Value: text})
		}

		last := paragraphs[len(paragraphs)-1].LastChild
		if text, ok := textOf(last); ok {
			fragments = append(fragments, Fragment{Kind: LastText, Value: text})
		} else if last != nil {
			if text, ok := textOf(last.LastChild); ok {
				fragments = append(fragments, Fragment{Kind: LastText, Value: text})
			}
		}
	}

	// The HTML parser keeps "image" only inside SVG; a bare <image> becomes <img>.
	images := findAll(root, func(n *html.Node) bool { return n.Data == "image" })
	for _, img := range images {
		for _, attr := range img.Attr {
			if attr.Key == "href" {
				fragments = append(fragments, Fragment{Kind: Image, Value: attr.Val})
				break
			}
		}
	}

	return fragments
}

func textOf(n *html.Node) (string, bool) {
	if n == nil || n.Type != html.TextNode {
		return "", false
	}
	if strings.TrimSpace(n.Data) == "" {
		return "", false
	}
	return n.Data, true
}

func findAll(root *html.Node, match func(*html.Node) bool) []*html.Node {
	var found []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && match(n) {
			found = append(found, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return found
}

func textContent(n *html.Node, skip func(*html.Node) bool) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			return
		}
		if n.Type == html.ElementNode && skip != nil && skip(n) {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}
