package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"audiobook2renpy/internal/epub"
	"audiobook2renpy/internal/imaging"
	"audiobook2renpy/internal/placement"
	"audiobook2renpy/internal/storage"
)

// bookImages writes illustrations from the e-book into the project.
type bookImages struct {
	book    *epub.Book
	project *storage.Project
	width   int
	height  int
}

func (b *bookImages) WriteImage(href string) error {
	r, ok := b.book.ResourceByFilename(href)
	if !ok {
		return fmt.Errorf("image %s not found in book", href)
	}
	data, err := b.book.ReadResource(r)
	if err != nil {
		return err
	}
	return imaging.WriteLetterboxed(b.project.ImagePath(placement.Filename(href)), data, b.width, b.height)
}

func (b *bookImages) writeCover() (bool, error) {
	r, ok := b.book.Cover()
	if !ok {
		return false, nil
	}
	data, err := b.book.ReadResource(r)
	if err != nil {
		return false, err
	}
	if err := imaging.WriteLetterboxed(b.project.CoverPath(), data, b.width, b.height); err != nil {
		return false, err
	}
	return true, nil
}

// readHeader loads the script header. A relative name is looked up in the
// working directory first, then in the template directory.
func readHeader(name, templateDir string) (string, error) {
	candidates := []string{name}
	if !filepath.IsAbs(name) && templateDir != "" {
		candidates = append(candidates, filepath.Join(templateDir, name))
	}

	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("read script header: %w", err)
		}
		return string(data), nil
	}
	return "", os.ErrNotExist
}

func isMP3(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".mp3")
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
