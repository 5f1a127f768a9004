package entity

import (
	"log/slog"
	"time"
)

// HistoryRecord is one completed download. FilePath is never rewritten once recorded.
type HistoryRecord struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	SourceURL       string    `json:"sourceUrl"`
	FilePath        string    `json:"filePath"`
	ThumbnailPath   string    `json:"thumbnailPath,omitempty"`
	FileSizeBytes   int64     `json:"fileSizeBytes"`
	DurationSeconds *float64  `json:"durationSeconds,omitempty"`
	DownloadedAt    time.Time `json:"downloadedAt"`
	MediaType       MediaType `json:"mediaType"`
	HasSubtitles    bool      `json:"hasSubtitles,omitempty"`
}

// LogValue implements the slog.LogValuer interface for structured logging.
func (r HistoryRecord) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("id", r.ID),
		slog.String("title", r.Title),
		slog.String("sourceUrl", r.SourceURL),
		slog.String("filePath", r.FilePath),
		slog.String("thumbnailPath", r.ThumbnailPath),
		slog.Int64("fileSize", r.FileSizeBytes),
		slog.String("mediaType", string(r.MediaType)),
	}

	if r.DurationSeconds != nil {
		attrs = append(attrs, slog.Float64("duration", *r.DurationSeconds))
	}

	return slog.GroupValue(attrs...)
}
