package history

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"mediafetch/internal/entity"
	"mediafetch/internal/media"
	"mediafetch/pkg/fsutil"
)

var (
	videoExts = []string{".mp4", ".mkv", ".webm", ".mov", ".avi", ".flv"}
	audioExts = []string{".m4a", ".mp3", ".opus", ".ogg", ".flac", ".wav", ".aac"}
)

// mediaTypeOf returns the media type of a file name, or false for non-media files.
func mediaTypeOf(name string) (entity.MediaType, bool) {
	ext := strings.ToLower(filepath.Ext(name))

	switch {
	case slices.Contains(videoExts, ext):
		return entity.MediaTypeVideo, true
	case slices.Contains(audioExts, ext):
		return entity.MediaTypeAudio, true
	default:
		return "", false
	}
}

func (stg *store) Scan(ctx context.Context, dir string) ([]entity.HistoryRecord, error) {
	log := stg.log.With(slog.String("action", "scan"), slog.String("dir", dir))

	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("abs dir: %w", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}

	stg.mu.Lock()
	defer stg.mu.Unlock()

	known := make(map[string]struct{}, len(stg.records))
	for _, r := range stg.records {
		known[filepath.Clean(r.FilePath)] = struct{}{}
	}

	var found []entity.HistoryRecord

	for _, e := range entries {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		mediaType, ok := mediaTypeOf(e.Name())
		if e.IsDir() || !ok || strings.HasPrefix(e.Name(), ".") {
			continue
		}

		path := filepath.Join(dir, e.Name())
		if _, recorded := known[path]; recorded {
			continue
		}

		info, err := e.Info()
		if err != nil {
			log.WarnContext(ctx, "skipping unreadable file", slog.String("file", e.Name()), slog.Any("error", err))

			continue
		}

		found = append(found, entity.HistoryRecord{
			ID:            newScanID(path),
			Title:         filepath.Base(fsutil.StripExt(path)),
			FilePath:      path,
			ThumbnailPath: media.ExistingThumbnail(path),
			FileSizeBytes: info.Size(),
			DownloadedAt:  info.ModTime().UTC(),
			MediaType:     mediaType,
			HasSubtitles:  media.HasSubtitles(path),
		})
	}

	if len(found) == 0 {
		log.DebugContext(ctx, "no new media files found")

		return nil, nil
	}

	records := append(slices.Clone(stg.records), found...)
	sortRecords(records)

	err = stg.commit(records)
	if err != nil {
		return nil, err
	}

	log.InfoContext(ctx, "media files imported", slog.Int("count", len(found)))

	return found, nil
}
