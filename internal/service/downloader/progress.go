package downloader

import (
	"fmt"
	"io"
	"time"

	"github.com/schollz/progressbar/v3"
)

const (
	// progressWidth is the number of cells of the bar.
	progressWidth = 30

	// progressThrottle limits how often the bar is redrawn.
	progressThrottle = 200 * time.Millisecond
)

// newProgressBar returns a byte counter for a body of the given size,
// or nil when the size is unknown or no writer is configured.
func newProgressBar(w io.Writer, size int64, fileName string) *progressbar.ProgressBar {
	if w == nil || w == io.Discard || size <= 0 {
		return nil
	}

	return progressbar.NewOptions64(size,
		progressbar.OptionSetWriter(w),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetDescription(fileName),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(progressWidth),
		progressbar.OptionThrottle(progressThrottle),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			_, _ = fmt.Fprintln(w)
		}),
	)
}
