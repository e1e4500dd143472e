package epub

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path"
	"strings"
)

var ErrMalformedInput = errors.New("malformed epub input")

const containerPath = "META-INF/container.xml"

type container struct {
	XMLName   xml.Name   `xml:"container"`
	RootFiles []rootFile `xml:"rootfiles>rootfile"`
}

type rootFile struct {
	FullPath  string `xml:"full-path,attr"`
	MediaType string `xml:"media-type,attr"`
}

type packageDoc struct {
	XMLName  xml.Name     `xml:"package"`
	Metadata metadata     `xml:"metadata"`
	Manifest []manifestIt `xml:"manifest>item"`
	Spine    []spineRef   `xml:"spine>itemref"`
}

type metadata struct {
	Meta []meta `xml:"meta"`
}

type meta struct {
	Name    string `xml:"name,attr"`
	Content string `xml:"content,attr"`
}

type manifestIt struct {
	ID         string `xml:"id,attr"`
	Href       string `xml:"href,attr"`
	MediaType  string `xml:"media-type,attr"`
	Properties string `xml:"properties,attr"`
}

type spineRef struct {
	IDRef string `xml:"idref,attr"`
}

// Resource is one manifest entry. Path is the entry's location inside the
// archive.
type Resource struct {
	ID         string
	Path       string
	MediaType  string
	Properties string
}

func (r Resource) Filename() string {
	return path.Base(r.Path)
}

// Document is a spine item with its raw markup.
type Document struct {
	ID   string
	Path string
	Data []byte
}

type Book struct {
	files     map[string]*zip.File
	resources []Resource
	byID      map[string]int
	spine     []string
	coverID   string
}

func Open(filePath string) (*Book, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read epub: %w", err)
	}
	book, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filePath, err)
	}
	return book, nil
}

func Parse(data []byte) (*Book, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: open archive: %v", ErrMalformedInput, err)
	}

	book := &Book{
		files: make(map[string]*zip.File, len(reader.File)),
		byID:  make(map[string]int),
	}
	for _, f := range reader.File {
		book.files[f.Name] = f
	}

	containerData, err := book.read(containerPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	var c container
	if err := xml.Unmarshal(containerData, &c); err != nil {
		return nil, fmt.Errorf("%w: parse container.xml: %v", ErrMalformedInput, err)
	}
	if len(c.RootFiles) == 0 || c.RootFiles[0].FullPath == "" {
		return nil, fmt.Errorf("%w: container.xml has no rootfile", ErrMalformedInput)
	}

	opfPath := c.RootFiles[0].FullPath
	opfData, err := book.read(opfPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	var pkg packageDoc
	if err := xml.Unmarshal(opfData, &pkg); err != nil {
		return nil, fmt.Errorf("%w: parse package document: %v", ErrMalformedInput, err)
	}

	baseDir := path.Dir(opfPath)
	for _, item := range pkg.Manifest {
		book.byID[item.ID] = len(book.resources)
		book.resources = append(book.resources, Resource{
			ID:         item.ID,
			Path:       resolveHref(baseDir, item.Href),
			MediaType:  item.MediaType,
			Properties: item.Properties,
		})
	}
	for _, ref := range pkg.Spine {
		book.spine = append(book.spine, ref.IDRef)
	}
	book.coverID = findCoverID(pkg)

	return book, nil
}

func resolveHref(baseDir, href string) string {
	if unescaped, err := url.PathUnescape(href); err == nil {
		href = unescaped
	}
	if i := strings.IndexByte(href, '#'); i >= 0 {
		href = href[:i]
	}
	if baseDir == "." || baseDir == "" {
		return path.Clean(href)
	}
	return path.Join(baseDir, href)
}

func findCoverID(pkg packageDoc) string {
	for _, item := range pkg.Manifest {
		for _, prop := range strings.Fields(item.Properties) {
			if prop == "cover-image" {
				return item.ID
			}
		}
	}
	for _, m := range pkg.Metadata.Meta {
		if m.Name == "cover" && m.Content != "" {
			return m.Content
		}
	}
	for _, item := range pkg.Manifest {
		if (item.ID == "cover" || item.ID == "cover-image") && strings.HasPrefix(item.MediaType, "image/") {
			return item.ID
		}
	}
	return ""
}

func (b *Book) read(name string) ([]byte, error) {
	f, ok := b.files[name]
	if !ok {
		return nil, fmt.Errorf("%s not found in archive", name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return data, nil
}

func (b *Book) Resources() []Resource {
	out := make([]Resource, len(b.resources))
	copy(out, b.resources)
	return out
}

func (b *Book) Resource(id string) (Resource, bool) {
	i, ok := b.byID[id]
	if !ok {
		return Resource{}, false
	}
	return b.resources[i], true
}

// ResourceByFilename finds the first manifest entry whose file name matches
// the base name of ref, which may be a relative link taken from markup.
func (b *Book) ResourceByFilename(ref string) (Resource, bool) {
	name := path.Base(resolveHref("", ref))
	for _, r := range b.resources {
		if r.Filename() == name {
			return r, true
		}
	}
	return Resource{}, false
}

func (b *Book) ReadResource(r Resource) ([]byte, error) {
	return b.read(r.Path)
}

func (b *Book) Cover() (Resource, bool) {
	if b.coverID == "" {
		return Resource{}, false
	}
	return b.Resource(b.coverID)
}

// ContentDocuments returns the spine documents in reading order.
func (b *Book) ContentDocuments() ([]Document, error) {
	docs := make([]Document, 0, len(b.spine))
	for _, id := range b.spine {
		r, ok := b.Resource(id)
		if !ok {
			slog.Warn("Spine item missing from manifest", "idref", id)
			continue
		}
		data, err := b.read(r.Path)
		if err != nil {
			return nil, fmt.Errorf("%w: spine item %s: %v", ErrMalformedInput, id, err)
		}
		docs = append(docs, Document{ID: r.ID, Path: r.Path, Data: data})
	}
	return docs, nil
}
