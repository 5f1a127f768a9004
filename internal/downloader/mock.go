package downloader

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"mediafetch/internal/consts"
	"mediafetch/internal/entity"
	"mediafetch/internal/errs"
	"mediafetch/pkg/calc"
	"mediafetch/pkg/fsutil"
	"mediafetch/pkg/urls"
)

const (
	mockSteps = 10
	mockBytes = 10 << 20
)

// Mock simulates a download: it reports progress for a fixed duration and then writes a small file.
type Mock struct {
	log      *slog.Logger
	duration time.Duration
	dir      string
}

// NewMock creates a simulated downloader writing into dir when a request names no directory.
func NewMock(log *slog.Logger, duration time.Duration, dir string) *Mock {
	if duration <= 0 {
		duration = consts.DefaultSimulateTime
	}

	return &Mock{
		log:      log.With(slog.String("package", "downloader"), slog.String("downloader", consts.DownloaderMock)),
		duration: duration,
		dir:      dir,
	}
}

// Download simulates the download of req.
func (m *Mock) Download(ctx context.Context, req entity.DownloadRequest, onProgress ProgressFunc) (*Result, error) {
	log := m.log.With(slog.Any("request", req))

	if err := simulateDownload(ctx, m.duration, onProgress); err != nil {
		log.InfoContext(ctx, "simulated download interrupted", slog.Any("error", err))

		return nil, contextError(ctx)
	}

	dir := req.OutputDir
	if dir == "" {
		dir = m.dir
	}

	ext := ".mp4"
	if req.MediaType == entity.MediaTypeAudio {
		ext = ".m4a"
	}

	title := "mock " + urls.Host(req.URL)
	path := filepath.Join(dir, title+ext)

	if err := os.MkdirAll(dir, fsutil.PermDir); err != nil {
		return nil, errs.Wrap(errs.KindDownloadFailed, "cannot create the download directory", err)
	}

	if err := fsutil.WriteFileAtomic(path, []byte(req.URL)); err != nil {
		return nil, errs.Wrap(errs.KindDownloadFailed, "cannot write the output file", err)
	}

	log.InfoContext(ctx, "simulated download finished", slog.String("path", path))

	return &Result{FilePath: path, Title: title}, nil
}

func simulateDownload(ctx context.Context, duration time.Duration, onProgress ProgressFunc) error {
	ticker := time.NewTicker(duration / mockSteps)
	defer ticker.Stop()

	start := time.Now()

	for step := 0; step <= mockSteps; {
		select {
		case <-ctx.Done():
			return fmt.Errorf("simulate download: %w", ctx.Err())
		case <-ticker.C:
			if onProgress != nil {
				done, elapsed := int64(mockBytes*step/mockSteps), time.Since(start)

				onProgress(entity.Progress{
					Percent:          calc.Progress(done, mockBytes),
					SpeedBytesPerSec: calc.Speed(done, elapsed),
					ETASeconds:       int(calc.ETA(done, mockBytes, elapsed).Seconds()),
					Phase:            entity.PhaseDownloading,
					Stream:           1,
				})
			}

			step++
		}
	}

	return nil
}
