// Package httprouter serves the local control API.
package httprouter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"time"

	"mediafetch/internal/config"
	"mediafetch/internal/consts"
	"mediafetch/internal/depmanager"
	"mediafetch/internal/entity"
	"mediafetch/internal/errs"
	"mediafetch/internal/history"
	"mediafetch/internal/infrastructure/delivery/http/middleware"
	"mediafetch/internal/infrastructure/delivery/http/request"
	"mediafetch/internal/infrastructure/delivery/http/response"
	"mediafetch/internal/observability"
	"mediafetch/internal/proxymgr"
	"mediafetch/internal/session"
)

// Sessions starts and inspects download sessions.
type Sessions interface {
	Start(ctx context.Context, req entity.DownloadRequest) (*session.Handle, error)
	Cancel(ctx context.Context, id string) error
	Current() (entity.Session, bool)
	Get(id string) (entity.Session, error)
}

// EventSource returns session events for polling clients.
type EventSource interface {
	Since(ctx context.Context, after uint64, wait time.Duration) []entity.Event
}

// FormatLister lists the formats of a URL.
type FormatLister interface {
	List(ctx context.Context, url string) ([]entity.FormatDescriptor, error)
}

// SettingsStore reads and writes the preferences document.
type SettingsStore interface {
	Current() entity.Settings
	Save(ctx context.Context, v entity.Settings) error
}

// Bridge reacts to window focus and the global hotkey.
type Bridge interface {
	OnFocus(ctx context.Context) (string, error)
	OnHotkey(ctx context.Context) (*session.Handle, error)
	CopyPath(path string) error
}

// Player hands files to the operating system.
type Player interface {
	Play(ctx context.Context, path, command string) error
	Reveal(ctx context.Context, path string) error
}

// DependencyChecker reports the state of the external tools.
type DependencyChecker interface {
	Check(ctx context.Context) depmanager.Report
}

// ProxyLister reports proxy health.
type ProxyLister interface {
	Statuses() []proxymgr.Status
}

// Services are the components the control API exposes. Proxies may be nil.
type Services struct {
	Sessions Sessions
	Events   EventSource
	History  history.Storer
	Formats  FormatLister
	Settings SettingsStore
	Bridge   Bridge
	Player   Player
	Deps     DependencyChecker
	Proxies  ProxyLister
}

type chain []func(http.Handler) http.Handler

func (c chain) then(h http.Handler) http.Handler {
	for _, mw := range slices.Backward(c) {
		h = mw(h)
	}

	return h
}

type Router struct {
	*http.ServeMux
	log         *slog.Logger
	cfg         *config.Config
	svc         Services
	metrics     *observability.Metrics
	globalChain chain
	routeChain  chain
	isSubRouter bool
}

func New(log *slog.Logger, cfg *config.Config, svc Services, metrics *observability.Metrics) *Router {
	r := &Router{
		ServeMux: http.NewServeMux(),
		log:      log.With(slog.String("package", "httprouter")),
		cfg:      cfg,
		svc:      svc,
		metrics:  metrics,
	}

	r.SetGlobalMiddlewares()
	r.SetRoutes()

	return r
}

func (ro *Router) Use(middleware ...func(http.Handler) http.Handler) {
	if ro.isSubRouter {
		ro.routeChain = append(ro.routeChain, middleware...)
	} else {
		ro.globalChain = append(ro.globalChain, middleware...)
	}
}

// Group registers routes that share route middlewares.
func (ro *Router) Group(fn func(r *Router)) {
	sub := *ro
	sub.isSubRouter = true
	sub.routeChain = slices.Clone(ro.routeChain)

	fn(&sub)
}

func (ro *Router) HandleFunc(pattern string, h http.HandlerFunc) {
	ro.Handle(pattern, h)
}

func (ro *Router) Handle(pattern string, h http.Handler) {
	ro.ServeMux.Handle(pattern, ro.routeChain.then(h))
}

func (ro *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	ro.globalChain.then(ro.ServeMux).ServeHTTP(w, req)
}

func (ro *Router) SetGlobalMiddlewares() {
	ro.Use(
		middleware.Recoverer,
		middleware.RequestID,
		middleware.Logger,
		middleware.Metrics(ro.metrics),
	)
}

func (ro *Router) SetRoutes() {
	ro.HandleFunc("GET /v1/readyz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	ro.Handle("GET /metrics", observability.Handler())

	// long poll, bounded by its own wait parameter
	ro.HandleFunc("GET /v1/events", ro.Events)

	ro.Group(func(r *Router) {
		r.Use(middleware.Timeout(ro.cfg.HTTP.HandlerTimeout))

		r.SetRoutesSessions()
		r.SetRoutesHistory()

		r.HandleFunc("GET /v1/formats", r.ListFormats)
		r.HandleFunc("GET /v1/settings", r.GetSettings)
		r.HandleFunc("PUT /v1/settings", r.PutSettings)
		r.HandleFunc("POST /v1/bridge/focus", r.Focus)
		r.HandleFunc("POST /v1/bridge/hotkey", r.Hotkey)
		r.HandleFunc("GET /v1/deps", r.Dependencies)
		r.HandleFunc("GET /v1/proxies", r.Proxies)
	})
}

func (ro *Router) SetRoutesSessions() {
	ro.HandleFunc("POST /v1/sessions", ro.StartSession)
	ro.HandleFunc("GET /v1/sessions/current", ro.CurrentSession)
	ro.HandleFunc("GET /v1/sessions/{id}", ro.GetSession)
	ro.HandleFunc("DELETE /v1/sessions/{id}", ro.CancelSession)
}

func (ro *Router) SetRoutesHistory() {
	ro.HandleFunc("GET /v1/history", ro.ListHistory)
	ro.HandleFunc("DELETE /v1/history", ro.ClearHistory)
	ro.HandleFunc("POST /v1/history/scan", ro.ScanHistory)
	ro.HandleFunc("DELETE /v1/history/{id}", ro.RemoveHistory)
	ro.HandleFunc("POST /v1/history/{id}/play", ro.Play)
	ro.HandleFunc("POST /v1/history/{id}/reveal", ro.Reveal)
	ro.HandleFunc("POST /v1/history/{id}/copy-path", ro.CopyPath)
}

func (ro *Router) StartSession(w http.ResponseWriter, r *http.Request) {
	log := ro.log.With("handler", "StartSession")
	ctx := r.Context()

	var in request.StartSession
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		log.ErrorContext(ctx, consts.RespInvalidRequestBody, slog.Any("error", err))
		response.BadRequest(w, consts.RespInvalidRequestBody, fmt.Errorf("%w: %w", errs.ErrInvalidRequestBody, err))

		return
	}

	if err := in.Validate(); err != nil {
		log.ErrorContext(ctx, consts.RespUnprocessableEntity, slog.Any("error", err))
		response.UnprocessableEntity(w, consts.RespUnprocessableEntity, err)

		return
	}

	// the session outlives the request
	h, err := ro.svc.Sessions.Start(context.WithoutCancel(ctx), in.Request(ro.svc.Settings.Current()))
	if errors.Is(err, errs.ErrSessionActive) {
		log.DebugContext(ctx, consts.RespSessionActive)
		response.Error(w, consts.RespSessionActive, err)

		return
	}

	if err != nil {
		log.ErrorContext(ctx, consts.RespSessionStartFail, slog.Any("error", err))
		response.Error(w, consts.RespSessionStartFail, err)

		return
	}

	snap := h.Snapshot()
	log.InfoContext(ctx, consts.RespSessionStarted, slog.Any("session", snap))

	response.Accepted(w, consts.RespSessionStarted, snap, nil)
}

func (ro *Router) CurrentSession(w http.ResponseWriter, _ *http.Request) {
	snap, ok := ro.svc.Sessions.Current()
	if !ok {
		response.Error(w, consts.RespSessionNotFound, errs.ErrSessionNotFound)

		return
	}

	response.OK(w, consts.RespSessionRetrieved, snap, nil)
}

func (ro *Router) GetSession(w http.ResponseWriter, r *http.Request) {
	snap, err := ro.svc.Sessions.Get(r.PathValue("id"))
	if err != nil {
		response.Error(w, consts.RespSessionNotFound, err)

		return
	}

	response.OK(w, consts.RespSessionRetrieved, snap, nil)
}

func (ro *Router) CancelSession(w http.ResponseWriter, r *http.Request) {
	log := ro.log.With("handler", "CancelSession")
	ctx := r.Context()
	id := r.PathValue("id")

	if err := ro.svc.Sessions.Cancel(ctx, id); err != nil {
		log.DebugContext(ctx, "cancel failed", slog.String("id", id), slog.Any("error", err))
		response.Error(w, consts.RespSessionNotFound, err)

		return
	}

	snap, _ := ro.svc.Sessions.Get(id)
	response.OK(w, consts.RespSessionCancelled, snap, nil)
}

// Events returns events newer than the "after" sequence number,
// waiting up to "wait" (capped by the configured limit) for new ones.
func (ro *Router) Events(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	var after uint64

	if raw := query.Get("after"); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			response.BadRequest(w, consts.RespQueryParamMissing, err)

			return
		}

		after = v
	}

	wait := ro.cfg.HTTP.EventsWait

	if raw := query.Get("wait"); raw != "" {
		v, err := time.ParseDuration(raw)
		if err != nil || v < 0 {
			response.BadRequest(w, consts.RespQueryParamMissing, err)

			return
		}

		wait = min(v, ro.cfg.HTTP.EventsWait)
	}

	events := ro.svc.Events.Since(r.Context(), after, wait)
	if events == nil {
		events = []entity.Event{}
	}

	response.OK(w, consts.RespEventsRetrieved, events, nil)
}

func (ro *Router) ListHistory(w http.ResponseWriter, r *http.Request) {
	records := ro.svc.History.List(r.Context())
	if records == nil {
		records = []entity.HistoryRecord{}
	}

	response.OK(w, consts.RespHistoryRetrieved, records, nil)
}

func (ro *Router) RemoveHistory(w http.ResponseWriter, r *http.Request) {
	if err := ro.svc.History.Remove(r.Context(), r.PathValue("id")); err != nil {
		ro.historyError(w, r, err)

		return
	}

	response.OK(w, consts.RespHistoryRemoved, nil, nil)
}

func (ro *Router) ClearHistory(w http.ResponseWriter, r *http.Request) {
	if err := ro.svc.History.Clear(r.Context()); err != nil {
		ro.historyError(w, r, err)

		return
	}

	response.OK(w, consts.RespHistoryCleared, nil, nil)
}

func (ro *Router) ScanHistory(w http.ResponseWriter, r *http.Request) {
	var in request.Scan
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			response.BadRequest(w, consts.RespInvalidRequestBody, fmt.Errorf("%w: %w", errs.ErrInvalidRequestBody, err))

			return
		}
	}

	added, err := ro.svc.History.Scan(r.Context(), config.ExpandHome(in.Directory(ro.svc.Settings.Current())))
	if err != nil {
		ro.historyError(w, r, err)

		return
	}

	if added == nil {
		added = []entity.HistoryRecord{}
	}

	response.OK(w, consts.RespHistoryScanned, added, nil)
}

func (ro *Router) Play(w http.ResponseWriter, r *http.Request) {
	record, ok := ro.existingRecord(w, r)
	if !ok {
		return
	}

	command := ro.svc.Settings.Current().PreferredPlayerCommand
	if err := ro.svc.Player.Play(r.Context(), record.FilePath, command); err != nil {
		ro.log.ErrorContext(r.Context(), consts.RespOpenFail, slog.Any("error", err))
		response.Error(w, consts.RespOpenFail, err)

		return
	}

	response.OK(w, consts.RespOpened, record, nil)
}

func (ro *Router) Reveal(w http.ResponseWriter, r *http.Request) {
	record, ok := ro.existingRecord(w, r)
	if !ok {
		return
	}

	if err := ro.svc.Player.Reveal(r.Context(), record.FilePath); err != nil {
		ro.log.ErrorContext(r.Context(), consts.RespOpenFail, slog.Any("error", err))
		response.Error(w, consts.RespOpenFail, err)

		return
	}

	response.OK(w, consts.RespOpened, record, nil)
}

func (ro *Router) CopyPath(w http.ResponseWriter, r *http.Request) {
	record, err := ro.svc.History.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		ro.historyError(w, r, err)

		return
	}

	if err := ro.svc.Bridge.CopyPath(record.FilePath); err != nil {
		response.InternalServerError(w, consts.RespOpenFail, nil, err)

		return
	}

	response.OK(w, consts.RespOpened, record, nil)
}

// existingRecord looks up the record named by the path and checks that its file is still there.
func (ro *Router) existingRecord(w http.ResponseWriter, r *http.Request) (entity.HistoryRecord, bool) {
	record, err := ro.svc.History.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		ro.historyError(w, r, err)

		return record, false
	}

	if !history.FileExists(record) {
		response.WriteJSON(w, http.StatusGone, consts.RespFileMissing, record, errs.ErrFileMissing)

		return record, false
	}

	return record, true
}

func (ro *Router) historyError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, errs.ErrRecordNotFound) || errors.Is(err, errs.ErrRecordIDEmpty) {
		response.Error(w, consts.RespRecordNotFound, err)

		return
	}

	ro.log.ErrorContext(r.Context(), consts.RespHistoryFail, slog.Any("error", err))
	response.InternalServerError(w, consts.RespHistoryFail, nil, err)
}

func (ro *Router) ListFormats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	formats, err := ro.svc.Formats.List(ctx, r.URL.Query().Get("url"))
	if err != nil {
		ro.log.DebugContext(ctx, consts.RespFormatsFail, slog.Any("error", err))
		response.Error(w, consts.RespFormatsFail, err)

		return
	}

	response.OK(w, consts.RespFormatsRetrieved, formats, nil)
}

func (ro *Router) GetSettings(w http.ResponseWriter, _ *http.Request) {
	response.OK(w, consts.RespSettingsRetrieved, ro.svc.Settings.Current(), nil)
}

func (ro *Router) PutSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var in entity.Settings
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.BadRequest(w, consts.RespInvalidRequestBody, fmt.Errorf("%w: %w", errs.ErrInvalidRequestBody, err))

		return
	}

	if err := ro.svc.Settings.Save(ctx, in); err != nil {
		ro.log.ErrorContext(ctx, consts.RespSettingsFail, slog.Any("error", err))
		response.InternalServerError(w, consts.RespSettingsFail, nil, err)

		return
	}

	response.OK(w, consts.RespSettingsSaved, ro.svc.Settings.Current(), nil)
}

func (ro *Router) Focus(w http.ResponseWriter, r *http.Request) {
	url, err := ro.svc.Bridge.OnFocus(r.Context())
	if err != nil {
		response.OK(w, consts.RespBridgeSkipped, nil, err)

		return
	}

	response.OK(w, consts.RespClipboardURL, url, nil)
}

func (ro *Router) Hotkey(w http.ResponseWriter, r *http.Request) {
	h, err := ro.svc.Bridge.OnHotkey(context.WithoutCancel(r.Context()))

	switch {
	case errors.Is(err, errs.ErrBridgeDisabled), errors.Is(err, errs.ErrNoURLInClipboard):
		response.OK(w, consts.RespBridgeSkipped, nil, err)
	case err != nil:
		response.Error(w, consts.RespSessionStartFail, err)
	default:
		response.Accepted(w, consts.RespSessionStarted, h.Snapshot(), nil)
	}
}

func (ro *Router) Dependencies(w http.ResponseWriter, r *http.Request) {
	response.OK(w, consts.RespDepsRetrieved, ro.svc.Deps.Check(r.Context()), nil)
}

func (ro *Router) Proxies(w http.ResponseWriter, _ *http.Request) {
	statuses := []proxymgr.Status{}
	if ro.svc.Proxies != nil {
		statuses = ro.svc.Proxies.Statuses()
	}

	response.OK(w, consts.RespProxiesRetrieved, statuses, nil)
}
