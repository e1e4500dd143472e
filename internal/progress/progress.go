package progress

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
)

const BufferSize = 256

// Event is one status update. Completed and Total are set for counted work.
// Done marks the last event of a run.
type Event struct {
	Text      string
	Completed int
	Total     int
	Done      bool
}

func Status(text string) Event {
	return Event{Text: text}
}

func Step(completed, total int) Event {
	return Event{
		Text:      fmt.Sprintf("%d/%d completed!", completed, total),
		Completed: completed,
		Total:     total,
	}
}

func Done() Event {
	return Event{Text: "done", Done: true}
}

func NewChannel() chan Event {
	return make(chan Event, BufferSize)
}

// Send is a no-op on a nil channel.
func Send(events chan<- Event, ev Event) {
	if events == nil {
		return
	}
	events <- ev
}

func IsTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Reporter renders events as a progress bar on a terminal and as log lines
// elsewhere.
type Reporter struct {
	out         io.Writer
	interactive bool
	bar         *progressbar.ProgressBar
	barTotal    int
}

func NewReporter(out io.Writer) *Reporter {
	return &Reporter{out: out, interactive: IsTerminal(out)}
}

// Consume drains events until the Done event or until the channel closes.
func (r *Reporter) Consume(events <-chan Event) {
	for ev := range events {
		r.Handle(ev)
		if ev.Done {
			return
		}
	}
}

func (r *Reporter) Handle(ev Event) {
	if ev.Done {
		if r.bar != nil {
			_ = r.bar.Finish()
			r.bar = nil
		}
		return
	}

	if !r.interactive {
		if ev.Total > 0 {
			slog.Info("Progress", "completed", ev.Completed, "total", ev.Total)
		} else {
			slog.Info(ev.Text)
		}
		return
	}

	if ev.Total > 0 {
		if r.bar == nil || r.barTotal != ev.Total {
			r.bar = progressbar.NewOptions(
				ev.Total,
				progressbar.OptionSetWriter(r.out),
				progressbar.OptionSetDescription("extracting audio"),
				progressbar.OptionShowCount(),
				progressbar.OptionClearOnFinish(),
			)
			r.barTotal = ev.Total
		}
		if err := r.bar.Set(ev.Completed); err != nil {
			slog.Debug("Progress bar update failed", "error", err)
		}
		return
	}

	if r.bar != nil {
		r.bar.Describe(ev.Text)
		return
	}
	_, _ = fmt.Fprintf(r.out, "\r%s", ev.Text)
}
