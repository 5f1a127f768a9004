// Package entity defines the core entities used in the application.
package entity

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"mediafetch/internal/errs"
	"mediafetch/pkg/urls"
)

// MediaType is the kind of file a session produces.
type MediaType string

const (
	// MediaTypeVideo downloads video with audio, remuxed to mp4 when possible.
	MediaTypeVideo MediaType = "video"
	// MediaTypeAudio extracts audio only.
	MediaTypeAudio MediaType = "audio"
)

// Valid reports whether m is a known media type.
func (m MediaType) Valid() bool {
	return m == MediaTypeVideo || m == MediaTypeAudio
}

// FormatBest is the format code meaning "best available".
const FormatBest = "best"

// SubtitleLanguagesAll selects every available subtitle track.
const SubtitleLanguagesAll = "all"

// SubtitleOptions controls subtitle download.
type SubtitleOptions struct {
	Enabled   bool     `json:"enabled"`
	Languages []string `json:"languages,omitempty"`
	Embed     bool     `json:"embed"`
}

// AllLanguages reports whether every subtitle track is requested.
func (s SubtitleOptions) AllLanguages() bool {
	return slices.ContainsFunc(s.Languages, func(l string) bool {
		return strings.EqualFold(strings.TrimSpace(l), SubtitleLanguagesAll)
	})
}

// DownloadRequest describes what a session downloads. It is not modified once a session starts.
type DownloadRequest struct {
	URL        string          `json:"url"`
	MediaType  MediaType       `json:"mediaType"`
	FormatCode string          `json:"formatCode,omitempty"`
	Subtitles  SubtitleOptions `json:"subtitles"`
	OutputDir  string          `json:"outputDir,omitempty"`
}

// Validate checks the request shape. Failures are InvalidRequest errors.
func (r DownloadRequest) Validate() error {
	if strings.TrimSpace(r.URL) == "" || !urls.IsURLValid(strings.TrimSpace(r.URL)) {
		return errs.Wrap(errs.KindInvalidRequest, "Please enter a valid http(s) URL", errs.ErrInvalidURL)
	}

	if !r.MediaType.Valid() {
		return errs.Wrap(errs.KindInvalidRequest,
			fmt.Sprintf("Unknown media type %q", r.MediaType), errs.ErrInvalidMediaType)
	}

	return nil
}

// IsBestFormat reports whether no explicit format code was requested.
func (r DownloadRequest) IsBestFormat() bool {
	code := strings.TrimSpace(r.FormatCode)

	return code == "" || strings.EqualFold(code, FormatBest)
}

// Clone returns a deep copy of r.
func (r DownloadRequest) Clone() DownloadRequest {
	r.Subtitles.Languages = slices.Clone(r.Subtitles.Languages)

	return r
}

// LogValue implements the slog.LogValuer interface for structured logging.
func (r DownloadRequest) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("url", r.URL),
		slog.String("mediaType", string(r.MediaType)),
		slog.String("formatCode", r.FormatCode),
		slog.Bool("subtitles", r.Subtitles.Enabled),
		slog.String("outputDir", r.OutputDir),
	)
}

// FormatDescriptor is one stream format offered by a source.
type FormatDescriptor struct {
	Code            string  `json:"code"`
	Ext             string  `json:"ext"`
	Resolution      string  `json:"resolution"`
	Height          int     `json:"height,omitempty"`
	FPS             float64 `json:"fps,omitempty"`
	VCodec          string  `json:"vcodec,omitempty"`
	ACodec          string  `json:"acodec,omitempty"`
	TBR             float64 `json:"tbr,omitempty"`
	ApproxSizeBytes int64   `json:"approxSizeBytes,omitempty"`
	Note            string  `json:"note,omitempty"`
}
