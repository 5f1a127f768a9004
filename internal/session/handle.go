package session

import (
	"context"
	"slices"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"mediafetch/internal/entity"
	"mediafetch/internal/errs"
)

// Handle is bound to one session and its background job.
type Handle struct {
	c      *Controller
	ctx    context.Context //nolint:containedctx // owned by the job
	cancel context.CancelFunc
	done   chan struct{}

	// throttle limits how often intermediate progress is published.
	throttle *rate.Sometimes

	mu      sync.RWMutex
	snap    entity.Session
	started bool
}

// ID returns the session ID.
func (h *Handle) ID() string {
	return h.snap.ID
}

// Done is closed when the session reached a terminal state.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Snapshot returns a copy of the session state.
func (h *Handle) Snapshot() entity.Session {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return cloneSession(h.snap)
}

// Wait blocks until the session is terminal or ctx is done.
func (h *Handle) Wait(ctx context.Context) (entity.Session, error) {
	select {
	case <-h.done:
		return h.Snapshot(), nil
	case <-ctx.Done():
		return h.Snapshot(), ctx.Err()
	}
}

// requestCancel cancels the job unless the session is already terminal.
// It is serialized with succeed, so a cancelled session never ends as Succeeded.
func (h *Handle) requestCancel() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.snap.State.Terminal() {
		return false
	}

	h.cancel()

	return true
}

func (h *Handle) terminal() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.snap.State.Terminal()
}

// transition moves the session to next and publishes a state event.
// It reports false for transitions the lifecycle does not allow.
func (h *Handle) transition(next entity.SessionState, mutate func(*entity.Session)) bool {
	return h.transitionWhen(next, nil, mutate)
}

// succeed moves the session to Succeeded unless its job was cancelled.
func (h *Handle) succeed(mutate func(*entity.Session)) bool {
	return h.transitionWhen(entity.SessionSucceeded, func() bool { return h.ctx.Err() == nil }, mutate)
}

func (h *Handle) transitionWhen(next entity.SessionState, allow func() bool, mutate func(*entity.Session)) bool {
	h.mu.Lock()

	if (allow != nil && !allow()) || !h.snap.State.CanTransition(next) {
		h.mu.Unlock()

		return false
	}

	h.snap.State = next
	h.snap.UpdatedAt = time.Now()

	if mutate != nil {
		mutate(&h.snap)
	}

	event := entity.Event{
		SessionID: h.snap.ID,
		Type:      entity.EventState,
		State:     next,
		Progress:  h.snap.Progress,
		Message:   h.snap.Error,
		ErrorKind: h.snap.ErrorKind,
	}

	h.mu.Unlock()

	h.c.emit(event, false)

	return true
}

// onProgress records p and publishes it. Phase changes and completion are never throttled.
func (h *Handle) onProgress(p entity.Progress) {
	h.mu.Lock()

	prev := h.snap.Progress
	if p.SamePhase(prev) && p.Percent < prev.Percent {
		p.Percent = prev.Percent
	}

	h.snap.Progress = p
	h.snap.UpdatedAt = time.Now()
	id := h.snap.ID

	h.mu.Unlock()

	event := entity.Event{SessionID: id, Type: entity.EventProgress, Progress: p}

	if !p.SamePhase(prev) || p.Percent >= 100 {
		h.c.emit(event, false)

		return
	}

	h.throttle.Do(func() {
		h.c.emit(event, true)
	})
}

func (h *Handle) warn(message string) {
	h.mu.Lock()
	h.snap.Warnings = append(h.snap.Warnings, message)
	id := h.snap.ID
	h.mu.Unlock()

	h.c.emit(entity.Event{SessionID: id, Type: entity.EventWarning, Message: message}, false)
}

// fail moves the session to Cancelled or Failed depending on the kind of err.
func (h *Handle) fail(err error) entity.SessionState {
	kind := errs.KindOf(err)
	if kind == errs.KindCancelled || (h.ctx.Err() != nil && kind != errs.KindTimedOut) {
		h.transition(entity.SessionCancelled, func(s *entity.Session) {
			s.ErrorKind = errs.KindCancelled
		})

		return entity.SessionCancelled
	}

	message := errs.Message(err)
	diagnostic := ""

	if kind == errs.KindDownloadFailed {
		if classified, ok := errs.AsError(err); ok && classified.Diagnostic != "" {
			diagnostic = classified.Diagnostic
		} else {
			diagnostic = err.Error()
		}
	}

	h.transition(entity.SessionFailed, func(s *entity.Session) {
		s.ErrorKind = kind
		s.Error = message
		s.Diagnostic = diagnostic
	})

	return entity.SessionFailed
}

func cloneSession(s entity.Session) entity.Session {
	s.Request = s.Request.Clone()
	s.Warnings = slices.Clone(s.Warnings)

	if s.Record != nil {
		rec := *s.Record
		s.Record = &rec
	}

	return s
}
