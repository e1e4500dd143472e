package placement

import (
	"fmt"
	"net/url"
	"path"
	"strings"
	"unicode"
)

// ImageName is the Ren'Py image tag for an illustration file.
func ImageName(href string) string {
	stem := strings.TrimSuffix(Filename(href), path.Ext(Filename(href)))
	name := strings.Map(func(r rune) rune {
		if r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return '_'
	}, stem)
	if name == "" || unicode.IsDigit([]rune(name)[0]) {
		name = "img_" + name
	}
	return name
}

// Filename is the base name the illustration is written under.
func Filename(href string) string {
	if i := strings.IndexAny(href, "#?"); i >= 0 {
		href = href[:i]
	}
	if unescaped, err := url.PathUnescape(href); err == nil {
		href = unescaped
	}
	return path.Base(href)
}

// Marker identifies the display block of href inside the script.
func Marker(href string) string {
	return fmt.Sprintf("image %s = %q", ImageName(href), Filename(href))
}

// DisplayBlock shows the illustration blurred and offers to reveal it.
func DisplayBlock(href string) string {
	name := ImageName(href)
	lines := []string{
		"    " + Marker(href),
		"    window hide",
		"    nvl hide",
		"    scene " + name + ":",
		"        blur 128",
		"    pause",
		"    menu (nvl=True):",
		`        "Display Image?"`,
		`        "Yes":`,
		"            window hide",
		"            nvl hide",
		"            scene " + name + ":",
		"                blur 0",
		"            pause",
		`        "No":`,
		"            pass",
		"    window show",
	}
	return strings.Join(lines, "\n")
}
