package downloader_test

import (
	"testing"

	"mediafetch/internal/downloader"
	"mediafetch/internal/entity"
)

func TestProgressParserParse(t *testing.T) {
	tests := []struct {
		name      string
		line      string
		wantOK    bool
		wantPct   float64
		wantSpeed float64
		wantETA   int
	}{
		{
			name:      "standard progress",
			line:      "[download]  50.0% of  100.00MiB at  10.00MiB/s ETA 00:05",
			wantOK:    true,
			wantPct:   50,
			wantSpeed: 10 * 1024 * 1024,
			wantETA:   5,
		},
		{
			name:    "finished",
			line:    "[download] 100% of 50.00MiB in 00:05",
			wantOK:  true,
			wantPct: 100,
		},
		{
			name:      "estimated size and hours",
			line:      "[download]   5.5% of ~  50.00MiB at  512.00KiB/s ETA 01:02:03 (frag 3/40)",
			wantOK:    true,
			wantPct:   5.5,
			wantSpeed: 512 * 1024,
			wantETA:   3723,
		},
		{
			name:    "unknown speed",
			line:    "[download]  12.0% of 10.00MiB at Unknown B/s ETA Unknown",
			wantOK:  true,
			wantPct: 12,
		},
		{
			name:   "no percentage",
			line:   "[youtube] Extracting URL: https://youtube.com/watch?v=abc",
			wantOK: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := downloader.NewProgressParser().Parse(tc.line)
			if ok != tc.wantOK {
				t.Fatalf("Parse() ok = %v, want %v", ok, tc.wantOK)
			}

			if !ok {
				return
			}

			if got.Percent != tc.wantPct {
				t.Errorf("percent = %v, want %v", got.Percent, tc.wantPct)
			}

			if got.SpeedBytesPerSec != tc.wantSpeed {
				t.Errorf("speed = %v, want %v", got.SpeedBytesPerSec, tc.wantSpeed)
			}

			if got.ETASeconds != tc.wantETA {
				t.Errorf("eta = %v, want %v", got.ETASeconds, tc.wantETA)
			}

			if got.Phase != entity.PhaseDownloading {
				t.Errorf("phase = %q", got.Phase)
			}
		})
	}
}

func TestProgressParserPhasesAndMonotonicPercent(t *testing.T) {
	parser := downloader.NewProgressParser()

	lines := []string{
		"[download] Destination: /out/clip.f137.mp4",
		"[download]  40.0% of 10.00MiB at 1.00MiB/s ETA 00:06",
		"[download]  30.0% of 10.00MiB at 1.00MiB/s ETA 00:07",
		"[download] 100% of 10.00MiB in 00:10",
		"[download] Destination: /out/clip.f140.m4a",
		"[download]  10.0% of 2.00MiB at 1.00MiB/s ETA 00:02",
		`[Merger] Merging formats into "/out/clip.mp4"`,
		"[EmbedSubtitle] Embedding subtitles in \"/out/clip.mp4\"",
		"[Metadata] Adding metadata to \"/out/clip.mp4\"",
	}

	var got []entity.Progress

	for _, line := range lines {
		if p, ok := parser.Parse(line); ok {
			got = append(got, p)
		}
	}

	want := []entity.Progress{
		{Phase: entity.PhaseDownloading, Stream: 1},
		{Phase: entity.PhaseDownloading, Stream: 1, Percent: 40, SpeedBytesPerSec: 1 << 20, ETASeconds: 6},
		{Phase: entity.PhaseDownloading, Stream: 1, Percent: 40, SpeedBytesPerSec: 1 << 20, ETASeconds: 7},
		{Phase: entity.PhaseDownloading, Stream: 1, Percent: 100},
		{Phase: entity.PhaseDownloading, Stream: 2},
		{Phase: entity.PhaseDownloading, Stream: 2, Percent: 10, SpeedBytesPerSec: 1 << 20, ETASeconds: 2},
		{Phase: entity.PhaseMerging, Stream: 2},
		{Phase: entity.PhaseProcessing, Stream: 2},
	}

	if len(got) != len(want) {
		t.Fatalf("got %d reports, want %d: %+v", len(got), len(want), got)
	}

	for i := range want {
		if got[i] != want[i] {
			t.Errorf("report %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}
