// Package downloader runs the external media downloader and interprets its output.
package downloader

import (
	"context"
	"errors"
	"log/slog"

	"mediafetch/internal/entity"
	"mediafetch/internal/errs"
)

// ProgressFunc receives progress reports. It is called from the downloader's reader goroutines
// and must not block for long.
type ProgressFunc func(entity.Progress)

// Result describes a finished download.
type Result struct {
	FilePath string
	Title    string
	Metadata *Metadata
	// Warnings are non-fatal diagnostics printed by the downloader.
	Warnings []string
}

// LogValue implements the slog.LogValuer interface for structured logging.
func (r Result) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("filePath", r.FilePath),
		slog.String("title", r.Title),
		slog.Int("warnings", len(r.Warnings)),
	)
}

// Downloader downloads the media a request points to.
type Downloader interface {
	Download(ctx context.Context, req entity.DownloadRequest, onProgress ProgressFunc) (*Result, error)
}

// contextError converts a context error into a classified one.
func contextError(ctx context.Context) error {
	err := context.Cause(ctx)

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return errs.Wrap(errs.KindTimedOut, "download timed out", err)
	default:
		return errs.Wrap(errs.KindCancelled, "download cancelled", err)
	}
}
