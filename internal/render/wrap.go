package render

import (
	"strings"

	"tinygo.org/x/tinyfont"
)

// Wrap breaks text into lines no wider than maxWidth pixels in font.
// Breaks happen at spaces; a single word wider than the line is split
// between characters.
func Wrap(font tinyfont.Fonter, text string, maxWidth int) []string {
	var lines []string
	for _, para := range strings.Split(text, "\n") {
		lines = append(lines, wrapParagraph(font, para, maxWidth)...)
	}
	return lines
}

func wrapParagraph(font tinyfont.Fonter, text string, maxWidth int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{""}
	}

	var lines []string
	line := ""
	for _, w := range words {
		candidate := w
		if line != "" {
			candidate = line + " " + w
		}
		if width(font, candidate) <= maxWidth {
			line = candidate
			continue
		}
		if line != "" {
			lines = append(lines, line)
			line = ""
		}
		// Word alone may still be too wide.
		for width(font, w) > maxWidth {
			cut := fitPrefix(font, w, maxWidth)
			lines = append(lines, w[:cut])
			w = w[cut:]
		}
		line = w
	}
	if line != "" {
		lines = append(lines, line)
	}
	return lines
}

// fitPrefix returns the byte length of the longest rune-aligned prefix of s
// that fits in maxWidth. At least one rune is always taken.
func fitPrefix(font tinyfont.Fonter, s string, maxWidth int) int {
	cut := 0
	for i := range s {
		if i > 0 && width(font, s[:i]) > maxWidth {
			break
		}
		cut = i
	}
	if cut == 0 {
		for i := range s {
			if i > 0 {
				return i
			}
		}
		return len(s)
	}
	return cut
}

func width(font tinyfont.Fonter, s string) int {
	_, outbox := tinyfont.LineWidth(font, s)
	return int(outbox)
}
