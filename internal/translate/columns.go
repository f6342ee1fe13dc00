package translate

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"
)

const (
	columnWidth = 48
	gutter      = " | "
)

// Text renders a translation as a plain text download.
func Text(r Result) string {
	return r.Translated + "\n"
}

// Columns lays out original and translated text side by side in two
// fixed-width columns, measured in terminal cells so wide scripts line up.
func Columns(r Result) string {
	left := wrap(r.Original, columnWidth)
	right := wrap(r.Translated, columnWidth)

	var b strings.Builder
	fmt.Fprintf(&b, "Pages %d-%d\n", r.StartPage, r.EndPage)
	writeRow(&b, "ORIGINAL", "TRANSLATED ("+r.LanguageName+")")
	b.WriteString(strings.Repeat("-", columnWidth) + "-+-" + strings.Repeat("-", columnWidth) + "\n")
	for i := 0; i < max(len(left), len(right)); i++ {
		var l, rt string
		if i < len(left) {
			l = left[i]
		}
		if i < len(right) {
			rt = right[i]
		}
		writeRow(&b, l, rt)
	}
	return b.String()
}

func writeRow(b *strings.Builder, left, right string) {
	b.WriteString(runewidth.FillRight(runewidth.Truncate(left, columnWidth, ""), columnWidth))
	b.WriteString(gutter)
	b.WriteString(strings.TrimRight(right, " "))
	b.WriteString("\n")
}

// wrap breaks text into lines no wider than width cells. Paragraph breaks
// are kept as empty lines and over-long words are split.
func wrap(text string, width int) []string {
	var lines []string
	for _, para := range strings.Split(text, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			lines = append(lines, "")
			continue
		}
		var line string
		for _, w := range words {
			for runewidth.StringWidth(w) > width {
				if line != "" {
					lines = append(lines, line)
					line = ""
				}
				head := runewidth.Truncate(w, width, "")
				lines = append(lines, head)
				w = w[len(head):]
			}
			switch {
			case line == "":
				line = w
			case runewidth.StringWidth(line)+1+runewidth.StringWidth(w) <= width:
				line += " " + w
			default:
				lines = append(lines, line)
				line = w
			}
		}
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
