package downloader_test

import (
	"errors"
	"strings"
	"testing"

	"mediafetch/internal/downloader"
	"mediafetch/internal/errs"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name        string
		lines       []string
		wantKind    errs.Kind
		wantMessage string
	}{
		{
			name:     "geo restriction wins over generic unavailable",
			lines:    []string{"ERROR: [youtube] abc: Video unavailable. The uploader has not made this video available in your country"},
			wantKind: errs.KindGeoRestricted,
		},
		{
			name:     "age restriction wins over sign in",
			lines:    []string{"ERROR: [youtube] abc: Sign in to confirm your age. This video may be inappropriate for some users."},
			wantKind: errs.KindAgeRestricted,
		},
		{
			name:     "private video",
			lines:    []string{"ERROR: [youtube] abc: Private video. Sign in if you've been granted access to this video"},
			wantKind: errs.KindRequiresAuthentication,
		},
		{
			name:     "bot check",
			lines:    []string{"ERROR: [youtube] abc: Sign in to confirm you're not a bot. Use --cookies-from-browser"},
			wantKind: errs.KindRequiresAuthentication,
		},
		{
			name:     "unavailable",
			lines:    []string{"[youtube] abc: Downloading webpage", "ERROR: [youtube] abc: Video unavailable. This video has been removed by the uploader"},
			wantKind: errs.KindUnavailableSource,
		},
		{
			name:     "unsupported url",
			lines:    []string{"ERROR: Unsupported URL: https://example.com/"},
			wantKind: errs.KindUnavailableSource,
		},
		{
			name:     "timeout",
			lines:    []string{"ERROR: [generic] Unable to download webpage: The read operation timed out"},
			wantKind: errs.KindTimedOut,
		},
		{
			name:     "missing ffmpeg",
			lines:    []string{"ERROR: You have requested merging of multiple formats but ffmpeg is not installed. Aborting due to --abort-on-error"},
			wantKind: errs.KindDependencyMissing,
		},
		{
			name:        "rate limit",
			lines:       []string{"ERROR: unable to download video data: HTTP Error 429: Too Many Requests"},
			wantKind:    errs.KindDownloadFailed,
			wantMessage: "Rate limit exceeded: too many requests. Try again later.",
		},
		{
			name:        "catch-all keeps the error text",
			lines:       []string{"ERROR: something odd happened"},
			wantKind:    errs.KindDownloadFailed,
			wantMessage: "yt-dlp error: something odd happened",
		},
		{
			name:        "no error line",
			lines:       []string{"[info] nothing to see"},
			wantKind:    errs.KindDownloadFailed,
			wantMessage: "yt-dlp exited with code 2, check the log for details",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := downloader.Classify(tc.lines, 2)

			if got.Kind != tc.wantKind {
				t.Fatalf("kind = %q, want %q (message %q)", got.Kind, tc.wantKind, got.Message)
			}

			if tc.wantMessage != "" && got.Message != tc.wantMessage {
				t.Errorf("message = %q, want %q", got.Message, tc.wantMessage)
			}

			if !errors.Is(got, tc.wantKind.Sentinel()) {
				t.Errorf("errors.Is(%v, sentinel of %s) = false", got, tc.wantKind)
			}

			if (got.Diagnostic != "") != (tc.wantKind == errs.KindDownloadFailed) {
				t.Errorf("diagnostic must be set only for download_failed, got %q", got.Diagnostic)
			}
		})
	}
}

func TestClassifyTruncatesCatchAll(t *testing.T) {
	long := strings.Repeat("x", 400)

	got := downloader.Classify([]string{"ERROR: " + long}, 1)

	want := "yt-dlp error: " + strings.Repeat("x", 150) + "..."
	if got.Message != want {
		t.Errorf("message = %q, want %q", got.Message, want)
	}
}

func TestClassifyInspectsOnlyRecentLines(t *testing.T) {
	lines := []string{"ERROR: Private video"}
	for range 1000 {
		lines = append(lines, "[download] working")
	}

	got := downloader.Classify(lines, 1)

	if got.Kind != errs.KindDownloadFailed {
		t.Errorf("kind = %q, want download_failed for an error outside the inspected window", got.Kind)
	}
}
