package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"github.com/wdirstat/wdirstat/internal/wdirstat"
)

// progressPrinter polls the facade and prints an in-place status line to
// stderr, the same isatty-gated escape-sequence convention the teacher's
// internal/cli/logic.go uses around its progressHook.
type progressPrinter struct {
	facade  *wdirstat.Facade
	out     io.Writer
	enabled bool
	stop    chan struct{}
	done    chan struct{}
}

func newProgressPrinter(facade *wdirstat.Facade, output string, debug bool) *progressPrinter {
	enabled := output != "json" && !debug && isatty.IsTerminal(os.Stderr.Fd())

	return &progressPrinter{
		facade:  facade,
		out:     os.Stderr,
		enabled: enabled,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

func (p *progressPrinter) start() {
	if !p.enabled {
		close(p.done)

		return
	}

	fmt.Fprint(p.out, "\033[?25l")

	go func() {
		defer close(p.done)

		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()

		for {
			select {
			case <-p.stop:
				fmt.Fprint(p.out, "\r\033[2K\r\033[?25h")

				return
			case <-ticker.C:
				pos, rangeBytes := p.facade.Progress()

				var msg string
				if rangeBytes > 0 {
					pct := 100 * float64(pos) / float64(rangeBytes)
					msg = fmt.Sprintf("scanning... %s (%.1f%%)", humanize.IBytes(pos), pct)
				} else {
					msg = fmt.Sprintf("scanning... %s", humanize.IBytes(pos))
				}

				fmt.Fprintf(p.out, "\r\033[2K%s\r", msg)
			}
		}
	}()
}

func (p *progressPrinter) close() {
	select {
	case <-p.stop:
	default:
		close(p.stop)
	}

	<-p.done
}
