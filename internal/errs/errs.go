// Package errs defines common error variables used across the application.
package errs

import (
	"context"
	"errors"
)

// Kind is the user-facing failure category of a download or listing.
type Kind string

// Failure kinds.
const (
	KindNone                   Kind = ""
	KindInvalidRequest         Kind = "invalid_request"
	KindUnavailableSource      Kind = "unavailable_source"
	KindAgeRestricted          Kind = "age_restricted"
	KindGeoRestricted          Kind = "geo_restricted"
	KindRequiresAuthentication Kind = "requires_authentication"
	KindTimedOut               Kind = "timed_out"
	KindCancelled              Kind = "cancelled"
	KindDependencyMissing      Kind = "dependency_missing"
	KindDownloadFailed         Kind = "download_failed"
)

// Taxonomy sentinels. Every *Error matches the sentinel of its Kind.
var (
	// ErrInvalidRequest indicates malformed input.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrUnavailableSource indicates that the extractor found nothing to download.
	ErrUnavailableSource = errors.New("source unavailable")
	// ErrAgeRestricted indicates that the source is age-restricted.
	ErrAgeRestricted = errors.New("age restricted")
	// ErrGeoRestricted indicates that the source is not available in the current region.
	ErrGeoRestricted = errors.New("geo restricted")
	// ErrRequiresAuthentication indicates that the source is private or needs a login.
	ErrRequiresAuthentication = errors.New("requires authentication")
	// ErrTimedOut indicates that an operation exceeded its time budget.
	ErrTimedOut = errors.New("timed out")
	// ErrCancelled indicates a user-initiated cancellation. It is not a failure.
	ErrCancelled = errors.New("cancelled")
	// ErrDependencyMissing indicates that yt-dlp, ffmpeg or ffprobe is absent.
	ErrDependencyMissing = errors.New("dependency missing")
	// ErrDownloadFailed is the generic download failure.
	ErrDownloadFailed = errors.New("download failed")
)

var kindSentinels = map[Kind]error{
	KindInvalidRequest:         ErrInvalidRequest,
	KindUnavailableSource:      ErrUnavailableSource,
	KindAgeRestricted:          ErrAgeRestricted,
	KindGeoRestricted:          ErrGeoRestricted,
	KindRequiresAuthentication: ErrRequiresAuthentication,
	KindTimedOut:               ErrTimedOut,
	KindCancelled:              ErrCancelled,
	KindDependencyMissing:      ErrDependencyMissing,
	KindDownloadFailed:         ErrDownloadFailed,
}

// Sentinel returns the sentinel error of k, or ErrDownloadFailed for an unknown kind.
func (k Kind) Sentinel() error {
	if err, ok := kindSentinels[k]; ok {
		return err
	}

	return ErrDownloadFailed
}

// Error is a classified failure. Message is safe to show to users,
// Diagnostic carries raw subprocess text when available.
type Error struct {
	Kind       Kind
	Message    string
	Diagnostic string
	Err        error
}

// New creates a classified error.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates a classified error around err.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.Sentinel().Error()
	}

	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}

	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel of the error's kind.
func (e *Error) Is(target error) bool {
	return target == e.Kind.Sentinel()
}

// AsError returns the first classified error in the chain of err.
func AsError(err error) (*Error, bool) {
	var classified *Error
	if errors.As(err, &classified) {
		return classified, true
	}

	return nil, false
}

// KindOf returns the kind of err.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}

	if classified, ok := AsError(err); ok {
		return classified.Kind
	}

	for kind, sentinel := range kindSentinels {
		if errors.Is(err, sentinel) {
			return kind
		}
	}

	switch {
	case errors.Is(err, context.Canceled):
		return KindCancelled
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimedOut
	default:
		return KindDownloadFailed
	}
}

// Message returns the user-facing message of err.
func Message(err error) string {
	if err == nil {
		return ""
	}

	if classified, ok := AsError(err); ok && classified.Message != "" {
		return classified.Message
	}

	return err.Error()
}

// Session errors.
var (
	// ErrControllerClosed indicates that the session controller no longer accepts sessions.
	ErrControllerClosed = errors.New("session controller is closed")
	// ErrSessionActive indicates that a session is running and the policy rejects a new one.
	ErrSessionActive = errors.New("a session is already running")
	// ErrSessionNotFound indicates that the session is unknown or no longer active.
	ErrSessionNotFound = errors.New("session not found")
	// ErrOutputMissing indicates that the downloader reported success without an output file.
	ErrOutputMissing = errors.New("output file not found")
)

// Valid request errors.
var (
	// ErrInvalidURL indicates that the URL field in the request is invalid.
	ErrInvalidURL = errors.New("invalid url field")
	// ErrInvalidMediaType indicates that the media type field in the request is invalid.
	ErrInvalidMediaType = errors.New("invalid media type field")
	// ErrInvalidRequestBody indicates that the request body is invalid or cannot be parsed.
	ErrInvalidRequestBody = errors.New("invalid request body")
	// ErrHandlerPanicked indicates that a control API handler panicked.
	ErrHandlerPanicked = errors.New("request handler failed")
)

// History errors.
var (
	// ErrRecordNotFound indicates that the history record does not exist.
	ErrRecordNotFound = errors.New("history record not found")
	// ErrRecordIDEmpty indicates that the record ID is empty.
	ErrRecordIDEmpty = errors.New("record id is empty")
	// ErrFileMissing indicates that a recorded file no longer exists on disk.
	ErrFileMissing = errors.New("file no longer exists")
)

// Settings errors.
var (
	// ErrUnsupportedSettingsFormat indicates an unknown settings file extension.
	ErrUnsupportedSettingsFormat = errors.New("unsupported settings format")
)

// Bridge and player errors.
var (
	// ErrClipboardUnsupported indicates that the system clipboard cannot be accessed on this system.
	ErrClipboardUnsupported = errors.New("clipboard is not supported on this system")
	// ErrNoURLInClipboard indicates that the clipboard holds no http(s) URL.
	ErrNoURLInClipboard = errors.New("no url in clipboard")
	// ErrInvalidHotkey indicates an unparsable hotkey combination.
	ErrInvalidHotkey = errors.New("invalid hotkey combination")
	// ErrBridgeDisabled indicates that the triggering feature is switched off in settings.
	ErrBridgeDisabled = errors.New("disabled in settings")
	// ErrDebounced indicates that a focus event arrived within the debounce window.
	ErrDebounced = errors.New("debounced")
	// ErrPlayerCommand indicates that the player command cannot be parsed.
	ErrPlayerCommand = errors.New("invalid player command")
)

// Dependency manager errors.
var (
	// ErrBinaryNotFound indicates that the required binary was not found.
	ErrBinaryNotFound = errors.New("binary not found")
	// ErrUnsupportedPlatform indicates that the current platform is not supported.
	ErrUnsupportedPlatform = errors.New("unsupported platform")
)
