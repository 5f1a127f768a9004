// Package session runs download sessions: one background job at a time, progress
// delivered as events, successful downloads enriched and recorded in history.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"mediafetch/internal/config"
	"mediafetch/internal/consts"
	"mediafetch/internal/downloader"
	"mediafetch/internal/entity"
	"mediafetch/internal/errs"
	"mediafetch/internal/media"
	"mediafetch/internal/observability"
	"mediafetch/pkg/fsutil"
	"mediafetch/pkg/gen"
)

// Enricher obtains thumbnail and duration of a downloaded file.
type Enricher interface {
	Enrich(ctx context.Context, path string, mediaType entity.MediaType) media.Enrichment
}

// Recorder stores completed downloads.
type Recorder interface {
	Append(ctx context.Context, record entity.HistoryRecord) (entity.HistoryRecord, error)
	Remove(ctx context.Context, id string) error
}

// Controller owns the single session slot.
type Controller struct {
	log      *slog.Logger
	cfg      *config.Config
	dl       downloader.Downloader
	enricher Enricher
	recorder Recorder
	metrics  *observability.Metrics

	ctx    context.Context //nolint:containedctx // parent of all session jobs
	cancel context.CancelFunc
	events *eventQueue
	seq    atomic.Uint64
	wg     sync.WaitGroup

	// startMu serializes Start so that replacement happens one session at a time.
	startMu sync.Mutex

	mu       sync.RWMutex
	slot     *Handle
	sessions map[string]*Handle
	finished []string // IDs of finished sessions, oldest first
	closed   bool

	closeOnce sync.Once
}

// New creates a session controller. enricher and metrics may be nil.
func New(
	log *slog.Logger,
	cfg *config.Config,
	dl downloader.Downloader,
	enricher Enricher,
	recorder Recorder,
	metrics *observability.Metrics,
) *Controller {
	ctx, cancel := context.WithCancel(context.Background())

	return &Controller{
		log:      log.With(slog.String("package", "session")),
		cfg:      cfg,
		dl:       dl,
		enricher: enricher,
		recorder: recorder,
		metrics:  metrics,
		ctx:      ctx,
		cancel:   cancel,
		events:   newEventQueue(cfg.Session.EventBuffer, metrics),
		sessions: make(map[string]*Handle),
	}
}

// Events returns the channel session events are delivered on, in emission order.
// It is meant for a single consumer and is closed by Close.
func (c *Controller) Events() <-chan entity.Event {
	return c.events.out
}

func (c *Controller) emit(e entity.Event, droppable bool) {
	e.Seq = c.seq.Add(1)
	e.At = time.Now()

	if !c.events.push(e, droppable) {
		c.log.Debug("progress event dropped", slog.String("sessionId", e.SessionID))
	}
}

// Start validates req and starts a session for it. With the replace policy an active
// session is cancelled first and reaches Cancelled before the new one starts; with the
// reject policy Start fails with errs.ErrSessionActive.
func (c *Controller) Start(ctx context.Context, req entity.DownloadRequest) (*Handle, error) {
	req = req.Clone()
	req.URL = strings.TrimSpace(req.URL)

	err := req.Validate()
	if err != nil {
		return nil, err
	}

	if req.OutputDir != "" {
		req.OutputDir = config.ExpandHome(req.OutputDir)
	}

	c.startMu.Lock()
	defer c.startMu.Unlock()

	c.mu.RLock()
	prev, closed := c.slot, c.closed
	c.mu.RUnlock()

	if closed {
		return nil, errs.ErrControllerClosed
	}

	if prev != nil && !prev.terminal() {
		if c.cfg.Session.Policy == config.PolicyReject {
			return nil, errs.ErrSessionActive
		}

		c.log.InfoContext(ctx, "replacing active session", slog.String("sessionId", prev.ID()))

		err = c.cancelAndWait(ctx, prev)
		if err != nil && !errors.Is(err, errs.ErrSessionNotFound) {
			return nil, fmt.Errorf("replace session %s: %w", prev.ID(), err)
		}
	}

	h := c.newHandle(req)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()

		return nil, errs.ErrControllerClosed
	}

	c.slot = h
	c.sessions[h.ID()] = h
	c.mu.Unlock()

	c.log.InfoContext(ctx, "session accepted", slog.Any("session", h.Snapshot()))
	c.emit(entity.Event{SessionID: h.ID(), Type: entity.EventState, State: entity.SessionPending}, false)

	c.wg.Go(func() { c.run(h) })

	return h, nil
}

func (c *Controller) newHandle(req entity.DownloadRequest) *Handle {
	ctx, cancel := context.WithCancel(c.ctx)
	now := time.Now()

	throttle := &rate.Sometimes{Interval: c.cfg.Session.ProgressInterval}
	if c.cfg.Session.ProgressInterval <= 0 {
		throttle = &rate.Sometimes{Every: 1}
	}

	return &Handle{
		c:        c,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
		throttle: throttle,
		snap: entity.Session{
			ID:        gen.NewID(),
			Request:   req,
			State:     entity.SessionPending,
			Progress:  entity.Progress{Phase: entity.PhaseStarting},
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
}

// cancelAndWait cancels h and waits for its job. If h became terminal before the
// cancellation took effect, errs.ErrSessionNotFound is returned once the job is done.
func (c *Controller) cancelAndWait(ctx context.Context, h *Handle) error {
	var err error
	if !h.requestCancel() {
		err = errs.ErrSessionNotFound
	}

	select {
	case <-h.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cancel stops the session id and waits until it is terminal or ctx is done.
// Partial output is removed and no history record is kept. Sessions that finished
// before the cancellation took effect yield errs.ErrSessionNotFound.
func (c *Controller) Cancel(ctx context.Context, id string) error {
	c.mu.RLock()
	h := c.sessions[id]
	c.mu.RUnlock()

	if h == nil || h.terminal() {
		return errs.ErrSessionNotFound
	}

	c.log.InfoContext(ctx, "cancelling session", slog.String("sessionId", id))

	return c.cancelAndWait(ctx, h)
}

// Current returns the session in the slot, which may already be terminal.
func (c *Controller) Current() (entity.Session, bool) {
	c.mu.RLock()
	h := c.slot
	c.mu.RUnlock()

	if h == nil {
		return entity.Session{}, false
	}

	return h.Snapshot(), true
}

// Get returns a snapshot of the session id.
func (c *Controller) Get(id string) (entity.Session, error) {
	c.mu.RLock()
	h := c.sessions[id]
	c.mu.RUnlock()

	if h == nil {
		return entity.Session{}, errs.ErrSessionNotFound
	}

	return h.Snapshot(), nil
}

// Handle returns the handle of the session id.
func (c *Controller) Handle(id string) (*Handle, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	h := c.sessions[id]
	if h == nil {
		return nil, errs.ErrSessionNotFound
	}

	return h, nil
}

// Close cancels the active session, waits for its job and stops event delivery.
// Later calls to Start fail with errs.ErrControllerClosed.
func (c *Controller) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()

		c.cancel()
		c.wg.Wait()
		c.events.close()

		c.log.Info("session controller closed")
	})

	return nil
}

// run is the background job of h. Every exit path leaves h in a terminal state.
func (c *Controller) run(h *Handle) {
	defer c.forget(h)
	defer close(h.done)

	log := c.log.With(slog.String("sessionId", h.ID()))

	defer func() {
		if r := recover(); r != nil {
			log.Error("session job panicked", slog.Any("panic", r))

			err := errs.New(errs.KindDownloadFailed, "An internal error interrupted the download")
			err.Diagnostic = fmt.Sprint(r)
			c.finishFailed(h, err)
		}
	}()

	if h.ctx.Err() != nil || !h.transition(entity.SessionRunning, nil) {
		h.transition(entity.SessionCancelled, func(s *entity.Session) { s.ErrorKind = errs.KindCancelled })

		return
	}

	h.mu.Lock()
	h.started = true
	req := h.snap.Request
	h.mu.Unlock()

	c.metrics.RecordSessionStarted()
	defer c.metrics.SessionTimer()()

	ctx := h.ctx

	if c.cfg.Session.Timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, c.cfg.Session.Timeout)
		defer cancel()
	}

	res, err := c.dl.Download(ctx, req, h.onProgress)
	if err != nil {
		log.WarnContext(ctx, "download failed", slog.String("kind", string(errs.KindOf(err))), slog.Any("error", err))
		c.finishFailed(h, err)

		return
	}

	for _, w := range res.Warnings {
		log.DebugContext(ctx, "downloader warning", slog.String("warning", w))
	}

	record := c.enrich(ctx, h, req, res)

	if h.ctx.Err() != nil {
		c.finishFailed(h, context.Cause(h.ctx))

		return
	}

	saved, err := c.recorder.Append(context.WithoutCancel(ctx), record)
	recorded := err == nil

	if !recorded {
		log.ErrorContext(ctx, "failed to record download", slog.Any("error", err))
		h.warn("The download was not added to history: " + errs.Message(err))

		saved = record
	}

	h.onProgress(entity.Progress{Percent: 100, Phase: entity.PhaseDone})

	succeeded := h.succeed(func(s *entity.Session) {
		s.ResultPath = res.FilePath
		s.Title = saved.Title
		s.Record = &saved
	})
	if !succeeded {
		// Cancelled while the record was written.
		if recorded {
			if err := c.recorder.Remove(context.WithoutCancel(ctx), saved.ID); err != nil {
				log.ErrorContext(ctx, "failed to withdraw history record", slog.Any("error", err))
			}
		}

		c.finishFailed(h, context.Cause(h.ctx))

		return
	}

	c.metrics.RecordSessionSucceeded(saved.FileSizeBytes)

	log.InfoContext(ctx, "session succeeded", slog.Any("record", saved))
}

// enrich builds the history record of a finished download. Enrichment problems become warnings.
func (c *Controller) enrich(
	ctx context.Context,
	h *Handle,
	req entity.DownloadRequest,
	res *downloader.Result,
) entity.HistoryRecord {
	record := entity.HistoryRecord{
		ID:            gen.NewID(),
		Title:         res.Title,
		SourceURL:     req.URL,
		FilePath:      res.FilePath,
		FileSizeBytes: fsutil.Size(res.FilePath),
		DownloadedAt:  time.Now().UTC(),
		MediaType:     req.MediaType,
	}

	if record.Title == "" {
		record.Title = filepath.Base(fsutil.StripExt(res.FilePath))
	}

	if res.Metadata != nil {
		record.DurationSeconds = res.Metadata.Duration
	}

	if c.enricher == nil {
		return record
	}

	h.onProgress(entity.Progress{Phase: entity.PhaseEnriching})

	enr := c.enricher.Enrich(ctx, res.FilePath, req.MediaType)

	record.ThumbnailPath = enr.ThumbnailPath
	record.HasSubtitles = enr.HasSubtitles

	if enr.DurationSeconds != nil {
		record.DurationSeconds = enr.DurationSeconds
	}

	for _, w := range enr.Warnings {
		h.warn(w)
	}

	return record
}

func (c *Controller) finishFailed(h *Handle, err error) {
	state := h.fail(err)

	h.mu.RLock()
	started := h.started
	h.mu.RUnlock()

	if !started {
		return
	}

	switch state {
	case entity.SessionCancelled:
		c.metrics.RecordSessionCancelled()
	default:
		c.metrics.RecordSessionFailed(string(errs.KindOf(err)))
	}
}

// forget drops the oldest finished sessions beyond the retention limit. The slot is kept.
func (c *Controller) forget(h *Handle) {
	h.cancel()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.finished = append(c.finished, h.ID())

	for len(c.finished) > consts.DefaultKeptSessions {
		id := c.finished[0]
		c.finished = c.finished[1:]

		if c.slot == nil || c.slot.ID() != id {
			delete(c.sessions, id)
		}
	}
}
