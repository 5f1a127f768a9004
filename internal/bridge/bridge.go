// Package bridge feeds URLs from the clipboard into the session controller
// when the window gains focus or the global hotkey is pressed.
package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/atotto/clipboard"

	"mediafetch/internal/consts"
	"mediafetch/internal/entity"
	"mediafetch/internal/errs"
	"mediafetch/internal/session"
	"mediafetch/pkg/urls"
)

// Clipboard reads and writes the system clipboard.
type Clipboard interface {
	ReadAll() (string, error)
	WriteAll(text string) error
}

// SystemClipboard is the OS clipboard.
type SystemClipboard struct{}

// ReadAll returns the clipboard text.
func (SystemClipboard) ReadAll() (string, error) {
	if clipboard.Unsupported {
		return "", fmt.Errorf("read clipboard: %w", errs.ErrClipboardUnsupported)
	}

	return clipboard.ReadAll()
}

// WriteAll replaces the clipboard text.
func (SystemClipboard) WriteAll(text string) error {
	if clipboard.Unsupported {
		return fmt.Errorf("write clipboard: %w", errs.ErrClipboardUnsupported)
	}

	return clipboard.WriteAll(text)
}

// SettingsSource provides the current preferences.
type SettingsSource interface {
	Current() entity.Settings
}

// Starter starts download sessions.
type Starter interface {
	Start(ctx context.Context, req entity.DownloadRequest) (*session.Handle, error)
}

// Bridge reacts to focus and hotkey events.
type Bridge struct {
	log      *slog.Logger
	clip     Clipboard
	settings SettingsSource
	starter  Starter
	debounce time.Duration
	now      func() time.Time

	mu        sync.Mutex
	lastFocus time.Time
}

// New creates a bridge.
func New(log *slog.Logger, clip Clipboard, settings SettingsSource, starter Starter) *Bridge {
	return &Bridge{
		log:      log.With(slog.String("package", "bridge")),
		clip:     clip,
		settings: settings,
		starter:  starter,
		debounce: consts.DefaultFocusDebounce,
		now:      time.Now,
	}
}

// ExtractURL returns the first http(s) URL in text, or "".
func ExtractURL(text string) string {
	return urls.Find(text)
}

// OnFocus returns the clipboard URL to prefill the input with. It does not start a download.
// Focus events closer than the debounce interval are ignored.
func (b *Bridge) OnFocus(ctx context.Context) (string, error) {
	if !b.settings.Current().AutoPasteOnFocus {
		return "", fmt.Errorf("auto paste: %w", errs.ErrBridgeDisabled)
	}

	b.mu.Lock()
	now := b.now()

	if !b.lastFocus.IsZero() && now.Sub(b.lastFocus) < b.debounce {
		b.mu.Unlock()

		return "", errs.ErrDebounced
	}

	b.lastFocus = now
	b.mu.Unlock()

	url, err := b.clipboardURL()
	if err != nil {
		return "", err
	}

	b.log.DebugContext(ctx, "clipboard url on focus", slog.String("url", url))

	return url, nil
}

// OnHotkey starts a session for the clipboard URL with the request derived from the settings.
func (b *Bridge) OnHotkey(ctx context.Context) (*session.Handle, error) {
	current := b.settings.Current()
	if !current.HotkeyEnabled {
		return nil, fmt.Errorf("hotkey: %w", errs.ErrBridgeDisabled)
	}

	url, err := b.clipboardURL()
	if err != nil {
		return nil, err
	}

	h, err := b.starter.Start(ctx, current.Request(url))
	if err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}

	b.log.InfoContext(ctx, "session started from hotkey", slog.String("url", url), slog.String("sessionId", h.ID()))

	return h, nil
}

// CopyPath puts path on the clipboard.
func (b *Bridge) CopyPath(path string) error {
	err := b.clip.WriteAll(path)
	if err != nil {
		return fmt.Errorf("write clipboard: %w", err)
	}

	return nil
}

func (b *Bridge) clipboardURL() (string, error) {
	text, err := b.clip.ReadAll()
	if err != nil {
		return "", fmt.Errorf("read clipboard: %w", err)
	}

	url := ExtractURL(text)
	if url == "" {
		return "", errs.ErrNoURLInClipboard
	}

	return url, nil
}
