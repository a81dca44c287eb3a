// Package ingest follows a local events file written by the tracking
// service and turns appended lines into paced refresh triggers.
package ingest

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/nxadm/tail"
	"golang.org/x/time/rate"

	"trackdash/internal/model"
)

type Line struct {
	Text   string
	Source string
	When   time.Time
}

type Options struct {
	Path string
	// Poll stats the file instead of using inotify; needed on network filesystems.
	Poll bool
	// FromStart replays existing content instead of seeking to the end.
	FromStart bool
}

// Watch follows opt.Path and emits every appended line until ctx ends. The
// file may not exist yet; it is picked up once created.
func Watch(ctx context.Context, opt Options) (<-chan Line, <-chan error) {
	out := make(chan Line, 256)
	errs := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errs)
		loc := &tail.SeekInfo{Offset: 0, Whence: io.SeekEnd}
		if opt.FromStart {
			loc = nil
		}
		t, err := tail.TailFile(opt.Path, tail.Config{
			Follow:    true,
			ReOpen:    true,
			MustExist: false,
			Logger:    tail.DiscardingLogger,
			Poll:      opt.Poll,
			Location:  loc,
		})
		if err != nil {
			errs <- err
			return
		}
		defer t.Cleanup()
		for {
			select {
			case <-ctx.Done():
				_ = t.Stop()
				return
			case l, ok := <-t.Lines:
				if !ok {
					return
				}
				if l.Err != nil {
					select {
					case errs <- l.Err:
					default:
					}
					continue
				}
				select {
				case out <- Line{Text: l.Text, Source: opt.Path, When: time.Now()}:
				case <-ctx.Done():
					_ = t.Stop()
					return
				}
			}
		}
	}()
	return out, errs
}

// Event is one parsed activity line: "<ts> <kind> <id> [target]".
type Event struct {
	When   time.Time
	Kind   string
	ID     string
	Target string
}

// ParseEvent accepts the line format the fake API appends. Unknown shapes
// return ok=false; they still count as activity.
func ParseEvent(s string) (Event, bool) {
	f := strings.Fields(s)
	if len(f) < 3 {
		return Event{}, false
	}
	ts, ok := model.ParseTime(f[0])
	if !ok {
		return Event{}, false
	}
	ev := Event{When: ts, Kind: f[1], ID: f[2]}
	if len(f) > 3 {
		ev.Target = f[3]
	}
	return ev, true
}

// Pacer collapses bursts of activity into at most one refresh per interval.
type Pacer struct {
	lim     *rate.Limiter
	pending bool
}

func NewPacer(every time.Duration) *Pacer {
	if every <= 0 {
		every = time.Second
	}
	return &Pacer{lim: rate.NewLimiter(rate.Every(every), 1)}
}

// Hit registers activity at now. fire means refresh immediately; otherwise a
// positive after asks the caller to call Flush and refresh once it elapses.
// While a flush is pending further hits are absorbed.
func (p *Pacer) Hit(now time.Time) (fire bool, after time.Duration) {
	if p.pending {
		return false, 0
	}
	r := p.lim.ReserveN(now, 1)
	d := r.DelayFrom(now)
	if d == 0 {
		return true, 0
	}
	p.pending = true
	return false, d
}

func (p *Pacer) Flush() { p.pending = false }

func (p *Pacer) Pending() bool { return p.pending }
