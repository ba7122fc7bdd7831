package main

import (
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"

	"github.com/MimeLyc/live-sub-translator/internal/settings"
	"github.com/MimeLyc/live-sub-translator/internal/subtitle"
)

// termRenderer prints the overlay as lines on a terminal. It is only called
// from the session loop.
type termRenderer struct {
	out          io.Writer
	colorize     bool
	showOriginal bool
	visible      bool
	lastOriginal string
}

func newTermRenderer(out io.Writer) *termRenderer {
	return &termRenderer{out: out, colorize: shouldColorize(out)}
}

func (r *termRenderer) ShowOriginal(original string) {
	if !r.showOriginal || original == r.lastOriginal {
		return
	}
	r.lastOriginal = original
	fmt.Fprintln(r.out, r.paint(text.Colors{text.Faint}, "  "+original))
}

func (r *termRenderer) ShowTranslation(d subtitle.Displayed) {
	label := fmt.Sprintf("[%d]", d.Seq)
	if d.SourceLang != "" {
		label = fmt.Sprintf("[%d %s]", d.Seq, d.SourceLang)
	}
	line := r.paint(text.Colors{text.FgCyan}, label) + " " + r.paint(text.Colors{text.Bold}, d.Translated)
	if !r.visible {
		line = r.paint(text.Colors{text.Faint}, line)
	}
	fmt.Fprintln(r.out, line)
}

func (r *termRenderer) SetVisible(visible bool) {
	r.visible = visible
}

func (r *termRenderer) Clear() {
	r.lastOriginal = ""
}

func (r *termRenderer) Configure(s settings.Settings) {
	r.showOriginal = s.ShowOriginal
}

func (r *termRenderer) paint(colors text.Colors, s string) string {
	if !r.colorize {
		return s
	}
	return colors.Sprint(s)
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
