package audio

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

const DefaultFFmpegPath = "ffmpeg"

// Runner executes ffmpeg with the given arguments and returns its combined
// output.
type Runner interface {
	Run(ctx context.Context, args ...string) ([]byte, error)
}

// StreamRunner executes ffmpeg and hands every stderr line to onLine as it
// is produced. Carriage returns end a line too.
type StreamRunner interface {
	Stream(ctx context.Context, onLine func(string), args ...string) error
}

type FFmpeg struct {
	path string
}

func NewFFmpeg(path string) *FFmpeg {
	if path == "" {
		path = DefaultFFmpegPath
	}
	return &FFmpeg{path: path}
}

func (f *FFmpeg) Path() string {
	return f.path
}

func (f *FFmpeg) Run(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, f.path, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return output, fmt.Errorf("ffmpeg failed: %w, output: %s", err, strings.TrimSpace(string(output)))
	}
	return output, nil
}

func (f *FFmpeg) Stream(ctx context.Context, onLine func(string), args ...string) error {
	cmd := exec.CommandContext(ctx, f.path, args...)
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("ffmpeg stderr: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffmpeg: %w", err)
	}

	var last string
	scanner := bufio.NewScanner(stderr)
	scanner.Split(scanStatusLines)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		last = line
		if onLine != nil {
			onLine(line)
		}
	}

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("ffmpeg failed: %w, output: %s", err, last)
	}
	return nil
}

// Version runs ffmpeg -version and returns its first line.
func (f *FFmpeg) Version(ctx context.Context) (string, error) {
	out, err := f.Run(ctx, "-hide_banner", "-version")
	if err != nil {
		return "", err
	}
	first, _, _ := strings.Cut(string(out), "\n")
	return strings.TrimSpace(first), nil
}

func scanStatusLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
