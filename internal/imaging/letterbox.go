package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	DefaultWidth  = 1920
	DefaultHeight = 1080
	jpegQuality   = 92
)

func Decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

// Letterbox scales src to fit a width x height canvas, keeping its aspect
// ratio, and centers it on black.
func Letterbox(src image.Image, width, height int) *image.RGBA {
	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)

	b := src.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return canvas
	}

	w, h := width, b.Dy()*width/b.Dx()
	if h > height {
		w, h = b.Dx()*height/b.Dy(), height
	}
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}

	x := (width - w) / 2
	y := (height - h) / 2
	draw.CatmullRom.Scale(canvas, image.Rect(x, y, x+w, y+h), src, b, draw.Over, nil)
	return canvas
}

// Encode writes img as JPEG when filename has a JPEG extension and as PNG
// otherwise.
func Encode(w io.Writer, img image.Image, filename string) error {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return jpeg.Encode(w, img, &jpeg.Options{Quality: jpegQuality})
	default:
		return png.Encode(w, img)
	}
}

func WriteLetterboxed(path string, data []byte, width, height int) error {
	src, err := Decode(data)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create image dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create image: %w", err)
	}
	defer func() { _ = f.Close() }()

	if err := Encode(f, Letterbox(src, width, height), path); err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	return nil
}
