package request_test

import (
	"errors"
	"testing"

	"mediafetch/internal/entity"
	"mediafetch/internal/errs"
	"mediafetch/internal/infrastructure/delivery/http/request"
	"mediafetch/pkg/ptr"
)

func TestStartSessionValidate(t *testing.T) {
	tests := []struct {
		url     string
		wantErr bool
	}{
		{"https://youtu.be/abc", false},
		{"", true},
		{"ftp://example.com/file", true},
		{"not a url", true},
	}

	for _, tt := range tests {
		in := request.StartSession{URL: tt.url}

		err := in.Validate()
		if (err != nil) != tt.wantErr {
			t.Errorf("Validate(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
		}

		if err != nil && !errors.Is(err, errs.ErrInvalidRequest) {
			t.Errorf("Validate(%q) error %v is not an invalid request", tt.url, err)
		}
	}
}

func TestStartSessionRequest(t *testing.T) {
	settings := entity.Settings{
		DownloadDirectory: "/media",
		DefaultMediaType:  entity.MediaTypeAudio,
		FormatCode:        "best",
		SubtitlesEnabled:  true,
		SubtitleLanguages: []string{"en"},
	}

	t.Run("defaults from settings", func(t *testing.T) {
		in := request.StartSession{URL: "https://youtu.be/abc"}

		got := in.Request(settings)
		if got.MediaType != entity.MediaTypeAudio || got.OutputDir != "/media" || got.FormatCode != "best" {
			t.Errorf("request = %+v", got)
		}

		if !got.Subtitles.Enabled || len(got.Subtitles.Languages) != 1 {
			t.Errorf("subtitles = %+v", got.Subtitles)
		}
	})

	t.Run("explicit fields win", func(t *testing.T) {
		in := request.StartSession{
			URL:        "https://youtu.be/abc",
			MediaType:  ptr.Of(entity.MediaTypeVideo),
			FormatCode: ptr.Of("137+140"),
			Subtitles:  &entity.SubtitleOptions{},
			OutputDir:  ptr.Of("/tmp/x"),
		}

		got := in.Request(settings)
		if got.MediaType != entity.MediaTypeVideo || got.OutputDir != "/tmp/x" || got.FormatCode != "137+140" {
			t.Errorf("request = %+v", got)
		}

		if got.Subtitles.Enabled {
			t.Errorf("subtitles = %+v, want disabled", got.Subtitles)
		}
	})
}

func TestScanDirectory(t *testing.T) {
	settings := entity.Settings{DownloadDirectory: "/media"}

	if got := (&request.Scan{}).Directory(settings); got != "/media" {
		t.Errorf("Directory() = %q", got)
	}

	if got := (&request.Scan{Dir: ptr.Of("/other")}).Directory(settings); got != "/other" {
		t.Errorf("Directory() = %q", got)
	}
}
