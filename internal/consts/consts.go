// Package consts defines application-wide constants.
package consts

import "time"

const (
	// DefaultHandlerTimeout is the default timeout for HTTP handlers.
	DefaultHandlerTimeout = 30 * time.Second
	// DefaultSimulateTime is the default time to simulate processing in mock downloader.
	DefaultSimulateTime = 1 * time.Second
	// DefaultFocusDebounce is the minimum interval between two clipboard reads on focus.
	DefaultFocusDebounce = 1 * time.Second
	// DefaultGracePeriod is how long a terminated downloader may take to exit when none is configured.
	DefaultGracePeriod = 5 * time.Second
	// DefaultKeptSessions is how many finished sessions stay available for lookup.
	DefaultKeptSessions = 32
	// DefaultRecentEvents is how many session events the control API keeps for polling.
	DefaultRecentEvents = 512
	// MaxDiagnosticLines bounds the subprocess output kept for error classification.
	MaxDiagnosticLines = 1000
	// MaxErrorMessageLen bounds catch-all error messages shown to users.
	MaxErrorMessageLen = 150
)

// HTTP response messages.
const (
	// RespInternalError is returned when a handler failed unexpectedly.
	RespInternalError = "internal server error"
	// RespInvalidRequestBody is returned when the request body is invalid.
	RespInvalidRequestBody = "invalid request body"
	// RespQueryParamMissing is returned when a required query parameter is missing or invalid.
	RespQueryParamMissing = "query param missing or invalid"
	// RespUnprocessableEntity is returned when the request cannot be processed.
	RespUnprocessableEntity = "unprocessable entity"
	// RespSessionStarted is returned when a session is accepted.
	RespSessionStarted = "session started"
	// RespSessionStartFail is returned when a session cannot be started.
	RespSessionStartFail = "session start failed"
	// RespSessionRetrieved is returned when a session snapshot is returned.
	RespSessionRetrieved = "session retrieved"
	// RespSessionNotFound is returned when a session is unknown.
	RespSessionNotFound = "session not found"
	// RespSessionCancelled is returned when a cancellation was requested.
	RespSessionCancelled = "session cancelled"
	// RespSessionActive is returned when the reject policy refuses a new session.
	RespSessionActive = "a session is already running"
	// RespEventsRetrieved is returned with a batch of session events.
	RespEventsRetrieved = "events retrieved"
	// RespHistoryRetrieved is returned with the history list.
	RespHistoryRetrieved = "history retrieved"
	// RespHistoryRemoved is returned when a record was removed.
	RespHistoryRemoved = "history record removed"
	// RespHistoryCleared is returned when history was cleared.
	RespHistoryCleared = "history cleared"
	// RespHistoryScanned is returned when the download directory was scanned.
	RespHistoryScanned = "history scanned"
	// RespHistoryFail is returned when a history operation fails.
	RespHistoryFail = "history operation failed"
	// RespRecordNotFound is returned when a history record is unknown.
	RespRecordNotFound = "history record not found"
	// RespFileMissing is returned when a recorded file no longer exists.
	RespFileMissing = "file not found"
	// RespOpened is returned when a file or folder was handed to the OS.
	RespOpened = "opened"
	// RespOpenFail is returned when a player or file manager cannot be started.
	RespOpenFail = "open failed"
	// RespFormatsRetrieved is returned with a format list.
	RespFormatsRetrieved = "formats retrieved"
	// RespFormatsFail is returned when formats cannot be listed.
	RespFormatsFail = "list formats failed"
	// RespSettingsRetrieved is returned with the settings document.
	RespSettingsRetrieved = "settings retrieved"
	// RespSettingsSaved is returned when settings were saved.
	RespSettingsSaved = "settings saved"
	// RespSettingsFail is returned when settings cannot be saved.
	RespSettingsFail = "save settings failed"
	// RespClipboardURL is returned when a URL was read from the clipboard.
	RespClipboardURL = "clipboard url"
	// RespBridgeSkipped is returned when a focus or hotkey event did nothing.
	RespBridgeSkipped = "skipped"
	// RespProxiesRetrieved is returned with the proxy statuses.
	RespProxiesRetrieved = "proxies retrieved"
	// RespDepsRetrieved is returned with the dependency report.
	RespDepsRetrieved = "dependencies retrieved"
)

// Downloader identifiers.
const (
	// DownloaderYTdlp is the yt-dlp downloader identifier.
	DownloaderYTdlp = "ytdlp"
	// DownloaderMock is the mock downloader identifier for testing.
	DownloaderMock = "mock"
)
