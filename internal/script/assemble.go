package script

import (
	"fmt"
	"strings"

	"audiobook2renpy/internal/audio"
	"audiobook2renpy/internal/subtitle"
	"audiobook2renpy/internal/timestamp"
)

const (
	StartLabel           = "label start:"
	ReturnLine           = "return"
	AutosaveLine         = "    $renpy.force_autosave()"
	DefaultAutosaveEvery = 10
)

type Options struct {
	Header        string
	Split         bool
	AudioPath     string
	FilePrefix    string
	AutosaveEvery int
}

// Assemble builds the script for subs. texts[i] replaces subs[i].Text when
// present, so aligned ruby markup ends up in the dialogue.
func Assemble(subs []subtitle.Subtitle, texts []string, opts Options) *Lines {
	if opts.AutosaveEvery <= 0 {
		opts.AutosaveEvery = DefaultAutosaveEvery
	}

	lines := &Lines{}
	header := strings.TrimRight(strings.ReplaceAll(opts.Header, "\r\n", "\n"), "\n")
	if header != "" {
		for _, line := range strings.Split(header, "\n") {
			lines.Append(line)
		}
	}
	lines.Append(StartLabel)

	for i, sub := range subs {
		if i%opts.AutosaveEvery == 0 {
			lines.Append(AutosaveLine)
		}
		if opts.Split {
			lines.Append(fmt.Sprintf("    voice %q", audio.ClipName(opts.FilePrefix, i)))
		} else {
			lines.Append(fmt.Sprintf("    voice \"%s%s\"", timestamp.RenpyRange(sub.Start, sub.End), opts.AudioPath))
		}

		text := sub.Text
		if i < len(texts) {
			text = texts[i]
		}
		lines.Append(Dialogue(text))
	}
	lines.Append(ReturnLine)

	return lines
}

func Dialogue(text string) string {
	text = strings.ReplaceAll(text, `\`, `\\`)
	text = strings.ReplaceAll(text, `"`, `\"`)
	return `    "` + text + `"`
}
