package entity

import (
	"log/slog"
	"time"
)

// Settings is the user preferences document.
type Settings struct {
	DownloadDirectory          string    `json:"downloadDirectory"          yaml:"downloadDirectory"`
	DefaultMediaType           MediaType `json:"defaultMediaType"           yaml:"defaultMediaType"`
	FormatCode                 string    `json:"formatCode"                 yaml:"formatCode"`
	FontFamily                 string    `json:"fontFamily"                 yaml:"fontFamily"`
	FontSize                   int       `json:"fontSize"                   yaml:"fontSize"`
	PreferredPlayerCommand     string    `json:"preferredPlayerCommand"     yaml:"preferredPlayerCommand"`
	SubtitlesEnabled           bool      `json:"subtitlesEnabled"           yaml:"subtitlesEnabled"`
	SubtitleLanguages          []string  `json:"subtitleLanguages"          yaml:"subtitleLanguages"`
	EmbedSubtitles             bool      `json:"embedSubtitles"             yaml:"embedSubtitles"`
	AutoPasteOnFocus           bool      `json:"autoPasteOnFocus"           yaml:"autoPasteOnFocus"`
	HotkeyEnabled              bool      `json:"hotkeyEnabled"              yaml:"hotkeyEnabled"`
	HotkeyCombo                string    `json:"hotkeyCombo"                yaml:"hotkeyCombo"`
	LastDependencyCheck        time.Time `json:"lastDependencyCheck"        yaml:"lastDependencyCheck"`
	LastDependencyCheckVersion string    `json:"lastDependencyCheckVersion" yaml:"lastDependencyCheckVersion"`
}

// Request builds a download request for url from the preferences.
func (s Settings) Request(url string) DownloadRequest {
	mediaType := s.DefaultMediaType
	if !mediaType.Valid() {
		mediaType = MediaTypeVideo
	}

	req := DownloadRequest{
		URL:        url,
		MediaType:  mediaType,
		FormatCode: s.FormatCode,
		OutputDir:  s.DownloadDirectory,
		Subtitles: SubtitleOptions{
			Enabled: s.SubtitlesEnabled,
			Embed:   s.EmbedSubtitles,
		},
	}

	if s.SubtitlesEnabled {
		req.Subtitles.Languages = append([]string(nil), s.SubtitleLanguages...)
	}

	return req
}

// LogValue implements the slog.LogValuer interface for structured logging.
func (s Settings) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("downloadDirectory", s.DownloadDirectory),
		slog.String("defaultMediaType", string(s.DefaultMediaType)),
		slog.String("formatCode", s.FormatCode),
		slog.Bool("subtitlesEnabled", s.SubtitlesEnabled),
		slog.Bool("autoPasteOnFocus", s.AutoPasteOnFocus),
		slog.Bool("hotkeyEnabled", s.HotkeyEnabled),
		slog.String("hotkeyCombo", s.HotkeyCombo),
		slog.Time("lastDependencyCheck", s.LastDependencyCheck),
		slog.String("lastDependencyCheckVersion", s.LastDependencyCheckVersion),
	)
}
