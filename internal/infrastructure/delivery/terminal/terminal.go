// Package terminal renders one download session on a terminal.
package terminal

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/schollz/progressbar/v3"

	"mediafetch/internal/entity"
	"mediafetch/internal/errs"
	"mediafetch/internal/session"
	"mediafetch/pkg/calc"
	"mediafetch/pkg/maths"
)

const (
	barMax       = 100
	cancelBudget = 30 * time.Second
)

// Sessions starts and cancels sessions.
type Sessions interface {
	Start(ctx context.Context, req entity.DownloadRequest) (*session.Handle, error)
	Cancel(ctx context.Context, id string) error
}

// Runner downloads one URL and draws its progress.
type Runner struct {
	log      *slog.Logger
	w        io.Writer
	sessions Sessions
	events   <-chan entity.Event
}

// New creates a runner. events must be the controller's event channel, read by nobody else.
func New(log *slog.Logger, w io.Writer, sessions Sessions, events <-chan entity.Event) *Runner {
	return &Runner{
		log:      log.With(slog.String("package", "terminal")),
		w:        w,
		sessions: sessions,
		events:   events,
	}
}

// Run starts a session for req and follows it to the end. When ctx is done the session is cancelled.
// The returned error is non-nil unless the session succeeded.
func (r *Runner) Run(ctx context.Context, req entity.DownloadRequest) (entity.Session, error) {
	h, err := r.sessions.Start(context.WithoutCancel(ctx), req)
	if err != nil {
		return entity.Session{}, fmt.Errorf("start session: %w", err)
	}

	bar := progressbar.NewOptions(barMax,
		progressbar.OptionSetWriter(r.w),
		progressbar.OptionSetTheme(progressbar.ThemeASCII),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionSetDescription(req.URL),
	)

	snap := r.follow(ctx, h, bar)

	_ = bar.Finish()
	fmt.Fprintln(r.w)

	switch snap.State {
	case entity.SessionSucceeded:
		fmt.Fprintf(r.w, "saved %s\n", snap.ResultPath)

		return snap, nil
	case entity.SessionCancelled:
		fmt.Fprintln(r.w, "cancelled")

		return snap, errs.New(errs.KindCancelled, "download cancelled")
	default:
		fmt.Fprintf(r.w, "failed: %s\n", snap.Error)

		kind := snap.ErrorKind
		if kind == errs.KindNone {
			kind = errs.KindDownloadFailed
		}

		return snap, &errs.Error{Kind: kind, Message: snap.Error, Diagnostic: snap.Diagnostic}
	}
}

func (r *Runner) follow(ctx context.Context, h *session.Handle, bar *progressbar.ProgressBar) entity.Session {
	done := ctx.Done()

	for {
		select {
		case e, ok := <-r.events:
			if !ok {
				return h.Snapshot()
			}

			if e.SessionID != h.ID() {
				continue
			}

			r.render(bar, e)

			if e.Type == entity.EventState && e.State.Terminal() {
				return h.Snapshot()
			}
		case <-done:
			done = nil

			r.log.Info("interrupted, cancelling download", slog.String("sessionId", h.ID()))

			cancelCtx, cancel := context.WithTimeout(context.Background(), cancelBudget)
			if err := r.sessions.Cancel(cancelCtx, h.ID()); err != nil {
				r.log.Warn("cancel failed", slog.Any("error", err))
			}
			cancel()
		}
	}
}

func (r *Runner) render(bar *progressbar.ProgressBar, e entity.Event) {
	switch e.Type {
	case entity.EventProgress:
		if e.Progress.Phase != "" {
			bar.Describe(label(e.Progress))
		}

		_ = bar.Set(maths.Clamp(maths.RoundFloat64ToInt(e.Progress.Percent), 0, barMax))
	case entity.EventWarning:
		_ = bar.Clear()
		fmt.Fprintf(r.w, "warning: %s\n", e.Message)
	case entity.EventState:
		bar.Describe(string(e.State))
	}
}

// label describes a progress report, e.g. "downloading 1.5 MiB/s 0:42".
func label(p entity.Progress) string {
	out := p.Phase

	if p.SpeedBytesPerSec > 0 {
		out += " " + calc.HumanBytes(int64(p.SpeedBytesPerSec)) + "/s"
	}

	if p.ETASeconds > 0 {
		out += " " + calc.Clock(float64(p.ETASeconds))
	}

	return out
}
