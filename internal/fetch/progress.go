package fetch

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/vbauerster/mpb/v7"
	"github.com/vbauerster/mpb/v7/decor"
)

// Reporter receives cumulative progress for one download. total is -1 when
// the source did not declare a length.
type Reporter interface {
	Progress(name string, received, total int64)
	Done(name string, received int64)
}

// Percent returns 100*received/total. ok is false when total is unknown.
func Percent(received, total int64) (pct float64, ok bool) {
	if total <= 0 {
		return 0, false
	}
	return 100 * float64(received) / float64(total), true
}

// PercentPrinter rewrites a single terminal line per chunk.
type PercentPrinter struct {
	W io.Writer
}

func NewPercentPrinter(w io.Writer) *PercentPrinter { return &PercentPrinter{W: w} }

func (p *PercentPrinter) Progress(name string, received, total int64) {
	if pct, ok := Percent(received, total); ok {
		fmt.Fprintf(p.W, "\rDownloading %s - %.2f%%", name, pct)
		return
	}
	fmt.Fprintf(p.W, "\rDownloading %s - %s", name, humanize.Bytes(uint64(received)))
}

func (p *PercentPrinter) Done(string, int64) { fmt.Fprintln(p.W) }

// Discard drops all progress.
type Discard struct{}

func (Discard) Progress(string, int64, int64) {}
func (Discard) Done(string, int64)            {}

// BarReporter draws an mpb progress bar. The bar is created lazily on the
// first chunk since the total is only known once the response arrives.
type BarReporter struct {
	out io.Writer

	mu  sync.Mutex
	p   *mpb.Progress
	bar *mpb.Bar
}

func NewBarReporter(w io.Writer) *BarReporter { return &BarReporter{out: w} }

func (b *BarReporter) Progress(name string, received, total int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.bar == nil {
		b.p = mpb.New(
			mpb.WithOutput(b.out),
			mpb.WithWidth(60),
			mpb.WithRefreshRate(180*time.Millisecond),
		)
		barTotal := total
		if barTotal < 0 {
			barTotal = 0
		}
		b.bar = b.p.New(barTotal,
			mpb.BarStyle().Lbound("[").Filler("=").Tip(">").Padding("-").Rbound("|"),
			mpb.PrependDecorators(
				decor.Name(name+" "),
				decor.CountersKibiByte("% .2f / % .2f"),
			),
			mpb.AppendDecorators(
				decor.OnComplete(decor.AverageETA(decor.ET_STYLE_GO), "done"),
				decor.Name(" ] "),
				decor.AverageSpeed(decor.UnitKiB, "% .2f"),
			),
		)
	}
	b.bar.SetCurrent(received)
}

func (b *BarReporter) Done(_ string, received int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.bar == nil {
		return
	}
	// completes the bar even when the total was unknown or the run failed
	b.bar.SetTotal(received, true)
	b.p.Wait()
	b.p, b.bar = nil, nil
}
