package cmd

import (
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
)

// progressReporter draws a progress bar for multi-target audits. A nil
// reporter is valid and does nothing.
type progressReporter struct {
	bar *progressbar.ProgressBar
}

func newProgressReporter(w io.Writer, total int) *progressReporter {
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription("[cyan]Auditing targets[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionClearOnFinish(),
	)
	return &progressReporter{bar: bar}
}

// progressFor returns a reporter only when it would be useful: more than
// one target, progress not disabled, and w is a terminal.
func progressFor(w io.Writer, total int, disabled bool) *progressReporter {
	if disabled || total < 2 || !isTerminal(w) {
		return nil
	}
	return newProgressReporter(w, total)
}

func (p *progressReporter) Increment() {
	if p == nil {
		return
	}
	_ = p.bar.Add(1)
}

func (p *progressReporter) Finish() {
	if p == nil {
		return
	}
	_ = p.bar.Finish()
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
