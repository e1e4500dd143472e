package audio

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"audiobook2renpy/internal/progress"
)

var statsPattern = regexp.MustCompile(`size=.* time=(.*?) .* speed=(.*x)`)

type ConvertOptions struct {
	Gain  float64
	Speed float64
}

func (o ConvertOptions) filters() string {
	var filters []string
	if o.Gain > 0 && o.Gain != 1 {
		filters = append(filters, "volume="+strconv.FormatFloat(o.Gain, 'f', -1, 64))
	}
	if o.Speed > 0 && o.Speed != 1 {
		filters = append(filters, "atempo="+strconv.FormatFloat(o.Speed, 'f', -1, 64))
	}
	return strings.Join(filters, ",")
}

type Converter struct {
	runner StreamRunner
}

func NewConverter(runner StreamRunner) *Converter {
	return &Converter{runner: runner}
}

// ConvertedPath is where Convert writes the mp3 for src.
func ConvertedPath(src string, opts ConvertOptions) string {
	ext := filepath.Ext(src)
	stem := strings.TrimSuffix(src, ext)
	if strings.EqualFold(ext, ".mp3") {
		if opts.filters() == "" {
			return src
		}
		return stem + ".adjusted.mp3"
	}
	return stem + ".mp3"
}

// Convert transcodes src to mp3 next to it, applying gain and speed. An
// existing output is reused. Returns the path of the mp3 to use.
func (c *Converter) Convert(ctx context.Context, src string, opts ConvertOptions, events chan<- progress.Event) (string, error) {
	if _, err := os.Stat(src); err != nil {
		return "", fmt.Errorf("audio source: %w", err)
	}

	dst := ConvertedPath(src, opts)
	if dst == src {
		return src, nil
	}
	if _, err := os.Stat(dst); err == nil {
		slog.Info("Converted audio already present", "path", dst)
		return dst, nil
	}

	args := []string{"-stats", "-v", "quiet", "-n", "-i", src, "-vn"}
	if f := opts.filters(); f != "" {
		args = append(args, "-af", f)
	}
	args = append(args, "-acodec", "libmp3lame", dst)

	slog.Info("Converting audio", "src", src, "dst", dst)
	err := c.runner.Stream(ctx, func(line string) {
		if status, ok := parseStats(line); ok {
			progress.Send(events, progress.Status(status))
		}
	}, args...)
	if err != nil {
		_ = os.Remove(dst)
		return "", fmt.Errorf("convert %s: %w", filepath.Base(src), err)
	}
	return dst, nil
}

func parseStats(line string) (string, bool) {
	m := statsPattern.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	return fmt.Sprintf("Converting... %s - %s", m[1], m[2]), true
}
