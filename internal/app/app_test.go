package app

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"audiobook2renpy/internal/progress"
	"audiobook2renpy/internal/storage"
	"audiobook2renpy/internal/subtitle"
	"audiobook2renpy/pkg/config"
)

const testSRT = `1
00:00:00,000 --> 00:00:02,000
始まりの文。

2
00:00:02,000 --> 00:00:04,000
彼は漢字かんじを書いた。

3
00:00:04,000 --> 00:00:06,000
終わり。
`

const testContainer = `<?xml version="1.0"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles><rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/></rootfiles>
</container>`

const testPackage = `<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0">
  <metadata><meta name="cover" content="cover"/></metadata>
  <manifest>
    <item id="ch1" href="text/ch1.xhtml" media-type="application/xhtml+xml"/>
    <item id="ch2" href="text/ch2.xhtml" media-type="application/xhtml+xml"/>
    <item id="cover" href="images/cover.png" media-type="image/png"/>
    <item id="a" href="images/a.png" media-type="image/png"/>
    <item id="b" href="images/b.png" media-type="image/png"/>
  </manifest>
  <spine><itemref idref="ch1"/><itemref idref="ch2"/></spine>
</package>`

const testChapter1 = `<html xmlns="http://www.w3.org/1999/xhtml" xmlns:xlink="http://www.w3.org/1999/xlink"><body>
<div><svg xmlns="http://www.w3.org/2000/svg"><image xlink:href="../images/a.png"/></svg></div>
<p>始まりの文。</p>
<p>彼は<ruby>漢字<rt>かんじ</rt></ruby>を書いた。</p>
</body></html>`

const testChapter2 = `<html xmlns="http://www.w3.org/1999/xhtml" xmlns:xlink="http://www.w3.org/1999/xlink"><body>
<p>終わり。</p>
<div><svg xmlns="http://www.w3.org/2000/svg"><image xlink:href="../images/b.png"/></svg></div>
</body></html>`

type fakeRunner struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeRunner) Run(_ context.Context, args ...string) ([]byte, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	for _, arg := range args {
		if strings.HasSuffix(arg, ".mp3") && filepath.IsAbs(arg) && strings.Contains(arg, "audiobook-") {
			if err := os.WriteFile(arg, []byte("clip"), 0644); err != nil {
				return nil, err
			}
		}
	}
	return nil, nil
}

func (f *fakeRunner) Stream(_ context.Context, _ func(string), args ...string) error {
	return os.WriteFile(args[len(args)-1], []byte("mp3"), 0644)
}

type fixture struct {
	dir    string
	cfg    *config.Config
	runner *fakeRunner
	req    GenerateRequest
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 4))
	for i := range img.Pix {
		img.Pix[i] = 200
	}
	img.Set(0, 0, color.White)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func writeEPUB(t *testing.T, path string) {
	t.Helper()
	pic := string(pngBytes(t))
	files := map[string]string{
		"META-INF/container.xml": testContainer,
		"OEBPS/content.opf":      testPackage,
		"OEBPS/text/ch1.xhtml":   testChapter1,
		"OEBPS/text/ch2.xhtml":   testChapter2,
		"OEBPS/images/cover.png": pic,
		"OEBPS/images/a.png":     pic,
		"OEBPS/images/b.png":     pic,
	}

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		f, err := w.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := f.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()

	templateDir := filepath.Join(dir, "template")
	if err := os.MkdirAll(filepath.Join(templateDir, "game"), 0755); err != nil {
		t.Fatal(err)
	}
	_ = os.WriteFile(filepath.Join(templateDir, "top.txt"), []byte("define narrator = Character(None, kind=nvl)\n"), 0644)
	_ = os.WriteFile(filepath.Join(templateDir, "game", "options.rpy"), []byte("define config.name = \"demo\"\n"), 0644)

	_ = os.WriteFile(filepath.Join(dir, "book.mp3"), []byte("audio"), 0644)
	_ = os.WriteFile(filepath.Join(dir, "book.srt"), []byte(testSRT), 0644)
	writeEPUB(t, filepath.Join(dir, "book.epub"))

	cfg := config.Default()
	cfg.Project.Name = "demo"
	cfg.Project.OutputDir = filepath.Join(dir, "out")
	cfg.Project.TemplateDir = templateDir
	cfg.Project.Header = "top.txt"
	cfg.Audio.Workers = 2

	return &fixture{
		dir:    dir,
		cfg:    cfg,
		runner: &fakeRunner{},
		req: GenerateRequest{
			Audio:     filepath.Join(dir, "book.mp3"),
			Subtitles: filepath.Join(dir, "book.srt"),
			EPUB:      filepath.Join(dir, "book.epub"),
			Split:     true,
		},
	}
}

func (f *fixture) pipeline() *Pipeline {
	return NewPipeline(NewService(ServiceOptions{
		Config:  f.cfg,
		Project: storage.NewProject(ProjectDir(f.cfg)),
		Runner:  f.runner,
		Stream:  f.runner,
	}))
}

func collect(events chan progress.Event) []progress.Event {
	close(events)
	var out []progress.Event
	for ev := range events {
		out = append(out, ev)
	}
	return out
}

func assertSingleDone(t *testing.T, events []progress.Event) {
	t.Helper()
	done := 0
	for _, ev := range events {
		if ev.Done {
			done++
		}
	}
	if done != 1 || len(events) == 0 || !events[len(events)-1].Done {
		t.Errorf("expected exactly one trailing Done event, got %+v", events)
	}
}

func TestGenerateSplit(t *testing.T) {
	f := newFixture(t)
	events := progress.NewChannel()

	res, err := f.pipeline().Generate(context.Background(), f.req, events)
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	assertSingleDone(t, collect(events))

	if res.Cues != 3 || res.RunID == "" {
		t.Errorf("result = %+v", res)
	}
	if len(res.UnmatchedRubies) != 0 {
		t.Errorf("unmatched rubies: %+v", res.UnmatchedRubies)
	}
	if res.Audio.Written != 3 {
		t.Errorf("audio summary = %+v", res.Audio)
	}

	data, err := os.ReadFile(res.ScriptPath)
	if err != nil {
		t.Fatalf("script not written: %v", err)
	}
	text := string(data)
	for _, want := range []string{
		"define narrator = Character(None, kind=nvl)\nlabel start:\n",
		`    voice "audiobook-0.mp3"`,
		`{rb}漢字{/rb}{rt}かんじ{/rt}`,
		`image a = "a.png"`,
		`image b = "b.png"`,
	} {
		if !strings.Contains(text, want) {
			t.Errorf("script missing %q:\n%s", want, text)
		}
	}

	project := storage.NewProject(ProjectDir(f.cfg))
	for _, path := range []string{
		project.ImagePath("a.png"),
		project.ImagePath("b.png"),
		project.CoverPath(),
		filepath.Join(project.GameDir(), "options.rpy"),
		filepath.Join(project.AudioDir(), "audiobook-2.mp3"),
	} {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("expected %s: %v", path, err)
		}
	}
	if !res.CoverWritten {
		t.Error("cover not reported as written")
	}
}

func TestGenerateRangeVoice(t *testing.T) {
	f := newFixture(t)
	f.req.Split = false
	f.req.EPUB = ""

	res, err := f.pipeline().Generate(context.Background(), f.req, nil)
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}

	data, _ := os.ReadFile(res.ScriptPath)
	if !strings.Contains(string(data), `    voice "<from 0.000 to 2.000>audio/book.mp3"`) {
		t.Errorf("range voice missing:\n%s", data)
	}
	if f.runner.calls != 0 {
		t.Errorf("no extraction expected, got %d ffmpeg calls", f.runner.calls)
	}
	if _, err := os.Stat(filepath.Join(storage.NewProject(ProjectDir(f.cfg)).AudioDir(), "book.mp3")); err != nil {
		t.Error("audio not copied into project")
	}
}

func TestGenerateMalformedSubtitles(t *testing.T) {
	f := newFixture(t)
	_ = os.WriteFile(f.req.Subtitles, []byte("not a subtitle file"), 0644)
	events := progress.NewChannel()

	_, err := f.pipeline().Generate(context.Background(), f.req, events)
	if !errors.Is(err, subtitle.ErrMalformedInput) {
		t.Fatalf("Generate() error = %v, want ErrMalformedInput", err)
	}
	assertSingleDone(t, collect(events))

	if _, err := os.Stat(ProjectDir(f.cfg)); !os.IsNotExist(err) {
		t.Error("no output should be created for malformed input")
	}
}

func TestGenerateLocked(t *testing.T) {
	f := newFixture(t)
	holder := storage.NewProject(ProjectDir(f.cfg))
	if err := holder.Lock(); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = holder.Unlock() }()

	_, err := f.pipeline().Generate(context.Background(), f.req, nil)
	if !errors.Is(err, storage.ErrLocked) {
		t.Errorf("Generate() error = %v, want ErrLocked", err)
	}
}

func TestGenerateMissingAudio(t *testing.T) {
	f := newFixture(t)
	f.req.Audio = filepath.Join(f.dir, "missing.m4b")

	if _, err := f.pipeline().Generate(context.Background(), f.req, nil); err == nil {
		t.Error("expected error for missing audio")
	}
}

func TestSanitizeForPath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "My Book", want: "My_Book"},
		{in: "  吾輩は猫である ", want: "吾輩は猫である"},
		{in: "../etc", want: "etc"},
		{in: "///", want: "untitled"},
	}
	for _, tt := range tests {
		if got := sanitizeForPath(tt.in); got != tt.want {
			t.Errorf("sanitizeForPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestReadHeaderFallsBackToTemplate(t *testing.T) {
	dir := t.TempDir()
	_ = os.WriteFile(filepath.Join(dir, "head.txt"), []byte("init python:\n    pass\n"), 0644)

	got, err := readHeader("head.txt", dir)
	if err != nil || !strings.HasPrefix(got, "init python:") {
		t.Errorf("readHeader() = %q, %v", got, err)
	}
	if _, err := readHeader("nope.txt", dir); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("readHeader() missing error = %v", err)
	}
}
