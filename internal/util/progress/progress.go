package progress

import (
	"io"
	"log"

	"github.com/schollz/progressbar/v3"
)

// New returns a bar writing to out, or nil when disabled. A nil bar is
// accepted by Add and Finish.
func New(out io.Writer, total int, description string, enabled bool) *progressbar.ProgressBar {
	if !enabled || total <= 0 {
		return nil
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(out),
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}

// Add increments the progress bar while safely handling errors.
func Add(bar *progressbar.ProgressBar, n int) {
	if bar == nil || n == 0 {
		return
	}

	if err := bar.Add(n); err != nil {
		log.Printf("failed to update progress bar: %v", err)
	}
}

// Finish completes the bar
func Finish(bar *progressbar.ProgressBar) {
	if bar == nil {
		return
	}
	if err := bar.Finish(); err != nil {
		log.Printf("failed to finish progress bar: %v", err)
	}
}
