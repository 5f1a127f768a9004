//go:build integration
// +build integration

package integration_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"mediafetch/internal/depmanager"
	"mediafetch/internal/entity"
	"mediafetch/internal/errs"
	"mediafetch/internal/history"
	"mediafetch/pkg/logger"
)

func request(s *stack) entity.DownloadRequest {
	return s.prefs.Current().Request("https://www.youtube.com/watch?v=fake1")
}

func TestSessionSuccessRecordsHistory(t *testing.T) {
	s := newStack(t, "success")

	h, err := s.ctrl.Start(t.Context(), request(s))
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Second)
	defer cancel()

	snap, err := h.Wait(ctx)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}

	if snap.State != entity.SessionSucceeded {
		t.Fatalf("state = %q, error %q (%s)", snap.State, snap.Error, snap.Diagnostic)
	}

	want := filepath.Join(s.downloads, "Fake Clip.mp4")
	if snap.ResultPath != want {
		t.Errorf("result path = %q, want %q", snap.ResultPath, want)
	}

	if snap.Record == nil {
		t.Fatal("no history record")
	}

	rec := *snap.Record
	if rec.ThumbnailPath != filepath.Join(s.downloads, "Fake Clip.jpg") {
		t.Errorf("thumbnail = %q, want the image yt-dlp wrote", rec.ThumbnailPath)
	}

	if rec.DurationSeconds == nil || *rec.DurationSeconds != 12.5 {
		t.Errorf("duration = %v, want 12.5 from ffprobe", rec.DurationSeconds)
	}

	if rec.FileSizeBytes != int64(len("fake media")) {
		t.Errorf("file size = %d", rec.FileSizeBytes)
	}

	// a fresh store reads the persisted document
	reloaded, err := history.New(t.Context(), logger.Discard(), s.cfg, nil)
	if err != nil {
		t.Fatalf("reload history: %v", err)
	}

	got := reloaded.List(t.Context())
	if len(got) != 1 || got[0].ID != rec.ID || got[0].FilePath != want {
		t.Errorf("reloaded history = %+v", got)
	}
}

func TestSessionGeoRestricted(t *testing.T) {
	s := newStack(t, "geo")

	h, err := s.ctrl.Start(t.Context(), request(s))
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	snap, err := h.Wait(t.Context())
	if err != nil {
		t.Fatalf("wait: %v", err)
	}

	if snap.State != entity.SessionFailed || snap.ErrorKind != errs.KindGeoRestricted {
		t.Fatalf("state = %q kind = %q", snap.State, snap.ErrorKind)
	}

	if snap.Diagnostic != "" {
		t.Errorf("diagnostic must be empty for a classified failure, got %q", snap.Diagnostic)
	}

	if n := len(s.hist.List(t.Context())); n != 0 {
		t.Errorf("history has %d records after a failure", n)
	}
}

func TestSessionCancelRemovesPartials(t *testing.T) {
	s := newStack(t, "hang")

	h, err := s.ctrl.Start(t.Context(), request(s))
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	partial := filepath.Join(s.downloads, "Slow.mp4.part")

	waitFor(t, 5*time.Second, func() bool {
		_, err := os.Stat(partial)

		return err == nil
	})

	start := time.Now()

	if err := s.ctrl.Cancel(t.Context(), h.ID()); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	if elapsed := time.Since(start); elapsed > s.cfg.Session.GracePeriod+2*time.Second {
		t.Errorf("cancel took %s", elapsed)
	}

	snap := h.Snapshot()
	if snap.State != entity.SessionCancelled {
		t.Fatalf("state = %q", snap.State)
	}

	if _, err := os.Stat(partial); !os.IsNotExist(err) {
		t.Errorf("partial file left behind: %v", err)
	}

	if n := len(s.hist.List(t.Context())); n != 0 {
		t.Errorf("history has %d records after cancellation", n)
	}
}

func TestDependencyCheckStampsSettings(t *testing.T) {
	s := newStack(t, "success")

	current := s.prefs.Current()
	if !depmanager.NeedsCheck(current, s.cfg.App.Version, s.cfg.DepManager.RecheckInterval, time.Now()) {
		t.Fatal("a fresh settings document must trigger the check")
	}

	report := s.depMgr.Check(t.Context())
	if !report.OK() {
		t.Fatalf("report = %+v", report)
	}

	updated, err := s.prefs.Update(t.Context(), func(v *entity.Settings) {
		depmanager.Stamp(v, report, s.cfg.App.Version)
	})
	if err != nil {
		t.Fatalf("update settings: %v", err)
	}

	if depmanager.NeedsCheck(updated, s.cfg.App.Version, s.cfg.DepManager.RecheckInterval, time.Now()) {
		t.Errorf("check still needed after a successful stamp: %+v", updated)
	}

	if depmanager.NeedsCheck(s.prefs.Load(t.Context()), s.cfg.App.Version, s.cfg.DepManager.RecheckInterval, time.Now()) {
		t.Error("stamp was not persisted")
	}
}
