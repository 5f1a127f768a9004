// Package request holds control API request bodies.
package request

import (
	"mediafetch/internal/entity"
	"mediafetch/internal/errs"
	"mediafetch/pkg/ptr"
	"mediafetch/pkg/urls"
)

// StartSession starts a download. Omitted fields are taken from the settings.
type StartSession struct {
	URL        string                  `json:"url"`
	MediaType  *entity.MediaType       `json:"mediaType"`
	FormatCode *string                 `json:"formatCode"`
	Subtitles  *entity.SubtitleOptions `json:"subtitles"`
	OutputDir  *string                 `json:"outputDir"`
}

// Validate checks the fields that cannot be defaulted.
func (s *StartSession) Validate() error {
	if !urls.IsURLValid(s.URL) {
		return errs.Wrap(errs.KindInvalidRequest, "Please enter a valid http(s) URL", errs.ErrInvalidURL)
	}

	return nil
}

// Request merges s over the request the settings would build.
func (s *StartSession) Request(settings entity.Settings) entity.DownloadRequest {
	req := settings.Request(s.URL)

	if s.MediaType != nil {
		req.MediaType = *s.MediaType
	}

	if s.FormatCode != nil {
		req.FormatCode = *s.FormatCode
	}

	if s.Subtitles != nil {
		req.Subtitles = *s.Subtitles
	}

	if dir := ptr.Deref(s.OutputDir); dir != "" {
		req.OutputDir = dir
	}

	return req
}

// Scan indexes a directory, the settings download directory when Dir is empty.
type Scan struct {
	Dir *string `json:"dir"`
}

// Directory returns the directory to scan.
func (s *Scan) Directory(settings entity.Settings) string {
	if dir := ptr.Deref(s.Dir); dir != "" {
		return dir
	}

	return settings.DownloadDirectory
}
