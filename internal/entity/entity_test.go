package entity_test

import (
	"errors"
	"testing"

	"mediafetch/internal/entity"
	"mediafetch/internal/errs"
)

func TestDownloadRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     entity.DownloadRequest
		wantErr error
	}{
		{
			name: "valid video",
			req:  entity.DownloadRequest{URL: "https://example.com/v/1", MediaType: entity.MediaTypeVideo},
		},
		{
			name:    "empty url",
			req:     entity.DownloadRequest{URL: "  ", MediaType: entity.MediaTypeVideo},
			wantErr: errs.ErrInvalidURL,
		},
		{
			name:    "relative url",
			req:     entity.DownloadRequest{URL: "example.com/v/1", MediaType: entity.MediaTypeAudio},
			wantErr: errs.ErrInvalidURL,
		},
		{
			name:    "ftp scheme",
			req:     entity.DownloadRequest{URL: "ftp://example.com/file", MediaType: entity.MediaTypeAudio},
			wantErr: errs.ErrInvalidURL,
		},
		{
			name:    "unknown media type",
			req:     entity.DownloadRequest{URL: "https://example.com/v/1", MediaType: "image"},
			wantErr: errs.ErrInvalidMediaType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Validate() unexpected error: %v", err)
				}

				return
			}

			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}

			if !errors.Is(err, errs.ErrInvalidRequest) {
				t.Errorf("expected InvalidRequest kind, got %v", errs.KindOf(err))
			}
		})
	}
}

func TestSessionStateTransitions(t *testing.T) {
	tests := []struct {
		from, to entity.SessionState
		want     bool
	}{
		{entity.SessionPending, entity.SessionRunning, true},
		{entity.SessionPending, entity.SessionCancelled, true},
		{entity.SessionPending, entity.SessionSucceeded, false},
		{entity.SessionRunning, entity.SessionSucceeded, true},
		{entity.SessionRunning, entity.SessionFailed, true},
		{entity.SessionRunning, entity.SessionPending, false},
		{entity.SessionRunning, entity.SessionRunning, false},
		{entity.SessionSucceeded, entity.SessionFailed, false},
		{entity.SessionCancelled, entity.SessionRunning, false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransition(tt.to); got != tt.want {
			t.Errorf("%s -> %s = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestSettingsRequest(t *testing.T) {
	s := entity.Settings{
		DownloadDirectory: "/media",
		DefaultMediaType:  entity.MediaTypeAudio,
		FormatCode:        "140",
		SubtitlesEnabled:  true,
		SubtitleLanguages: []string{"en", "de"},
		EmbedSubtitles:    true,
	}

	req := s.Request("https://example.com/v/1")

	if req.MediaType != entity.MediaTypeAudio || req.OutputDir != "/media" || req.FormatCode != "140" {
		t.Errorf("unexpected request %+v", req)
	}

	if !req.Subtitles.Enabled || len(req.Subtitles.Languages) != 2 || !req.Subtitles.Embed {
		t.Errorf("unexpected subtitles %+v", req.Subtitles)
	}

	s.SubtitleLanguages[0] = "fr"
	if req.Subtitles.Languages[0] != "en" {
		t.Errorf("request shares the settings language slice")
	}

	if (entity.Settings{}).Request("https://x.y").MediaType != entity.MediaTypeVideo {
		t.Errorf("expected video fallback for empty media type")
	}
}
