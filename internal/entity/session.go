package entity

import (
	"log/slog"
	"time"

	"mediafetch/internal/errs"
)

// SessionState represents the lifecycle state of a download session.
type SessionState string

const (
	// SessionPending indicates that the session is accepted and waits for the slot.
	SessionPending SessionState = "pending"
	// SessionRunning indicates that the downloader subprocess is running.
	SessionRunning SessionState = "running"
	// SessionCancelled indicates that the user cancelled the session.
	SessionCancelled SessionState = "cancelled"
	// SessionFailed indicates that the session ended with an error.
	SessionFailed SessionState = "failed"
	// SessionSucceeded indicates that the file was downloaded and recorded.
	SessionSucceeded SessionState = "succeeded"
)

// Terminal reports whether s is a final state.
func (s SessionState) Terminal() bool {
	return s == SessionCancelled || s == SessionFailed || s == SessionSucceeded
}

// CanTransition reports whether a session may move from s to next.
// States only move forward and terminal states are never left.
func (s SessionState) CanTransition(next SessionState) bool {
	switch s {
	case SessionPending:
		return next == SessionRunning || next == SessionCancelled || next == SessionFailed
	case SessionRunning:
		return next.Terminal()
	default:
		return false
	}
}

// Phases reported in progress events.
const (
	PhaseStarting    = "starting"
	PhaseDownloading = "downloading"
	PhaseMerging     = "merging"
	PhaseProcessing  = "post-processing"
	PhaseEnriching   = "enriching"
	PhaseDone        = "done"
)

// Progress is a progress report of a running session.
type Progress struct {
	Percent          float64 `json:"percent"`
	SpeedBytesPerSec float64 `json:"speedBytesPerSec"`
	ETASeconds       int     `json:"etaSeconds"`
	Phase            string  `json:"phase"`
	// Stream counts downloaded streams, e.g. 1 for video and 2 for audio of a merged download.
	Stream int `json:"stream,omitempty"`
}

// SamePhase reports whether p and other belong to the same phase and stream.
func (p Progress) SamePhase(other Progress) bool {
	return p.Phase == other.Phase && p.Stream == other.Stream
}

// LogValue implements the slog.LogValuer interface for structured logging.
func (p Progress) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Float64("percent", p.Percent),
		slog.Float64("speed", p.SpeedBytesPerSec),
		slog.Int("eta", p.ETASeconds),
		slog.String("phase", p.Phase),
		slog.Int("stream", p.Stream),
	)
}

// Session is a snapshot of a download session.
type Session struct {
	ID         string          `json:"id"`
	Request    DownloadRequest `json:"request"`
	State      SessionState    `json:"state"`
	Progress   Progress        `json:"progress"`
	Title      string          `json:"title,omitempty"`
	ResultPath string          `json:"resultPath,omitempty"`
	ErrorKind  errs.Kind       `json:"errorKind,omitempty"`
	Error      string          `json:"error,omitempty"`
	Diagnostic string          `json:"diagnostic,omitempty"`
	Warnings   []string        `json:"warnings,omitempty"`
	Record     *HistoryRecord  `json:"record,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

// LogValue implements the slog.LogValuer interface for structured logging.
func (s Session) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("id", s.ID),
		slog.String("url", s.Request.URL),
		slog.String("state", string(s.State)),
		slog.Float64("percent", s.Progress.Percent),
		slog.String("phase", s.Progress.Phase),
		slog.String("resultPath", s.ResultPath),
		slog.String("errorKind", string(s.ErrorKind)),
		slog.String("error", s.Error),
	)
}

// EventType discriminates session events.
type EventType string

// Event types.
const (
	EventState    EventType = "state"
	EventProgress EventType = "progress"
	EventWarning  EventType = "warning"
)

// Event is a message from a session job to the consumer loop.
type Event struct {
	Seq       uint64       `json:"seq"`
	SessionID string       `json:"sessionId"`
	Type      EventType    `json:"type"`
	State     SessionState `json:"state,omitempty"`
	Progress  Progress     `json:"progress"`
	Message   string       `json:"message,omitempty"`
	ErrorKind errs.Kind    `json:"errorKind,omitempty"`
	At        time.Time    `json:"at"`
}

// LogValue implements the slog.LogValuer interface for structured logging.
func (e Event) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Uint64("seq", e.Seq),
		slog.String("sessionId", e.SessionID),
		slog.String("type", string(e.Type)),
		slog.String("state", string(e.State)),
		slog.Any("progress", e.Progress),
		slog.String("message", e.Message),
	)
}
