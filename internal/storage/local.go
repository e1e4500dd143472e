package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
	cp "github.com/otiai10/copy"
)

const LockFile = ".audiobook2renpy.lock"

var ErrLocked = errors.New("project is locked by another run")

// Project is the on-disk layout of a generated Ren'Py project.
type Project struct {
	root string
	lock *flock.Flock
}

func NewProject(root string) *Project {
	return &Project{
		root: root,
		lock: flock.New(filepath.Join(root, LockFile)),
	}
}

func (p *Project) Root() string       { return p.root }
func (p *Project) GameDir() string    { return filepath.Join(p.root, "game") }
func (p *Project) AudioDir() string   { return filepath.Join(p.GameDir(), "audio") }
func (p *Project) ImagesDir() string  { return filepath.Join(p.GameDir(), "images") }
func (p *Project) GUIDir() string     { return filepath.Join(p.GameDir(), "gui") }
func (p *Project) ScriptPath() string { return filepath.Join(p.GameDir(), "script.rpy") }
func (p *Project) CoverPath() string  { return filepath.Join(p.GUIDir(), "main_menu.png") }

func (p *Project) ImagePath(filename string) string {
	return filepath.Join(p.ImagesDir(), filepath.Base(filename))
}

func (p *Project) EnsureDirectories() error {
	for _, dir := range []string{p.GameDir(), p.AudioDir(), p.ImagesDir(), p.GUIDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create project directory: %w", err)
		}
	}
	return nil
}

// CopyTemplate copies templateDir into the project root. Files already in
// the project are kept.
func (p *Project) CopyTemplate(templateDir string) error {
	info, err := os.Stat(templateDir)
	if err != nil {
		return fmt.Errorf("template directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("template %s is not a directory", templateDir)
	}

	opts := cp.Options{
		OnDirExists: func(src, dest string) cp.DirExistsAction { return cp.Merge },
		Skip: func(srcinfo os.FileInfo, src, dest string) (bool, error) {
			if srcinfo.IsDir() {
				return false, nil
			}
			_, err := os.Stat(dest)
			return err == nil, nil
		},
	}
	if err := cp.Copy(templateDir, p.root, opts); err != nil {
		return fmt.Errorf("failed to copy template: %w", err)
	}
	return nil
}

// Lock takes the project's exclusive lock without waiting.
func (p *Project) Lock() error {
	if err := os.MkdirAll(p.root, 0755); err != nil {
		return fmt.Errorf("failed to create project directory: %w", err)
	}
	ok, err := p.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire project lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrLocked, p.root)
	}
	return nil
}

func (p *Project) Unlock() error {
	if err := p.lock.Unlock(); err != nil {
		return fmt.Errorf("release project lock: %w", err)
	}
	return nil
}

// ListClips returns the extracted clips named <prefix>-<n>.mp3.
func (p *Project) ListClips(prefix string) ([]string, error) {
	entries, err := os.ReadDir(p.AudioDir())
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read audio directory: %w", err)
	}

	var clips []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if isClipName(entry.Name(), prefix) {
			clips = append(clips, filepath.Join(p.AudioDir(), entry.Name()))
		}
	}
	return clips, nil
}

func isClipName(name, prefix string) bool {
	index, ok := strings.CutPrefix(name, prefix+"-")
	if !ok {
		return false
	}
	index, ok = strings.CutSuffix(index, ".mp3")
	if !ok || index == "" {
		return false
	}
	for _, r := range index {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// RemoveClips deletes the extracted clips so the next run extracts again.
func (p *Project) RemoveClips(prefix string) (int, error) {
	clips, err := p.ListClips(prefix)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, clip := range clips {
		if err := os.Remove(clip); err != nil {
			return removed, fmt.Errorf("failed to remove clip: %w", err)
		}
		removed++
	}
	return removed, nil
}
