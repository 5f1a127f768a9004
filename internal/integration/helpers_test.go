//go:build integration
// +build integration

package integration_test

import (
	"context"
	_ "embed"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"mediafetch/internal/bridge"
	"mediafetch/internal/config"
	"mediafetch/internal/depmanager"
	"mediafetch/internal/downloader"
	"mediafetch/internal/formats"
	"mediafetch/internal/history"
	httprouter "mediafetch/internal/infrastructure/delivery/http"
	"mediafetch/internal/media"
	"mediafetch/internal/player"
	"mediafetch/internal/session"
	"mediafetch/internal/settings"
	"mediafetch/pkg/logger"
)

var (
	//go:embed testdata/fake-yt-dlp.sh
	fakeYTdlpScript string
	//go:embed testdata/fake-ffmpeg.sh
	fakeFFmpegScript string
	//go:embed testdata/fake-ffprobe.sh
	fakeFFprobeScript string
)

type stack struct {
	cfg       *config.Config
	depMgr    *depmanager.Manager
	ytdlp     *downloader.YTdlp
	processor *media.Processor
	hist      history.Storer
	prefs     *settings.Store
	ctrl      *session.Controller
	feed      *session.Feed
	router    *httprouter.Router
	downloads string
}

type apiResponse struct {
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Kind    string          `json:"kind"`
	Data    json.RawMessage `json:"data"`
}

// newStack wires the whole application around fake yt-dlp, ffmpeg and ffprobe found on PATH.
func newStack(t *testing.T, mode string) *stack {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("integration fakes are shell scripts")
	}

	baseDir := t.TempDir()
	pathDir := filepath.Join(baseDir, "path")
	downloads := filepath.Join(baseDir, "downloads")

	for _, dir := range []string{pathDir, downloads} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}

	for name, script := range map[string]string{
		"yt-dlp":  fakeYTdlpScript,
		"ffmpeg":  fakeFFmpegScript,
		"ffprobe": fakeFFprobeScript,
	} {
		if err := os.WriteFile(filepath.Join(pathDir, name), []byte(script), 0o755); err != nil {
			t.Fatalf("write fake %s: %v", name, err)
		}
	}

	t.Setenv("PATH", pathDir+string(os.PathListSeparator)+os.Getenv("PATH"))
	t.Setenv("FAKE_YTDLP_MODE", mode)
	t.Setenv("MEDIAFETCH_DIR_DATA", filepath.Join(baseDir, "data"))
	t.Setenv("MEDIAFETCH_DIR_DOWNLOAD", downloads)
	t.Setenv("MEDIAFETCH_DIR_CACHE", filepath.Join(baseDir, "cache"))
	t.Setenv("MEDIAFETCH_DEPMANAGER_BINS_DIR", filepath.Join(baseDir, "bins"))
	t.Setenv("MEDIAFETCH_DEPMANAGER_USE_SYSTEM_BINARIES", "true")
	t.Setenv("MEDIAFETCH_DEPMANAGER_UPDATE_INTERVAL", "0s")
	t.Setenv("MEDIAFETCH_SESSION_GRACE_PERIOD", "2s")
	t.Setenv("MEDIAFETCH_SESSION_TIMEOUT", "20s")

	cfg, err := config.New()
	if err != nil {
		t.Fatalf("config new: %v", err)
	}

	log := logger.Discard()
	depMgr := depmanager.New(log, cfg)

	if err := depMgr.Start(t.Context()); err != nil {
		t.Fatalf("dependency manager start: %v", err)
	}

	prefs, err := settings.New(log, cfg.Dir.SettingsFile)
	if err != nil {
		t.Fatalf("settings: %v", err)
	}

	current := prefs.Load(t.Context())
	current.DownloadDirectory = downloads

	if err := prefs.Save(t.Context(), current); err != nil {
		t.Fatalf("save settings: %v", err)
	}

	hist, err := history.New(t.Context(), log, cfg, nil)
	if err != nil {
		t.Fatalf("history: %v", err)
	}

	ytdlp := downloader.NewYTdlp(log, cfg, depMgr, nil, nil)
	processor := media.New(log, cfg, depMgr)
	ctrl := session.New(log, cfg, ytdlp, processor, hist, nil)

	feed := session.NewFeed(256)
	feedCtx, cancel := context.WithCancel(context.Background())

	go feed.Consume(feedCtx, ctrl.Events())

	t.Cleanup(func() {
		ctrl.Close()
		cancel()
	})

	router := httprouter.New(log, cfg, httprouter.Services{
		Sessions: ctrl,
		Events:   feed,
		History:  hist,
		Formats:  formats.New(log, cfg, ytdlp, nil),
		Settings: prefs,
		Bridge:   bridge.New(log, bridge.SystemClipboard{}, prefs, ctrl),
		Player:   player.New(log),
		Deps:     depMgr,
	}, nil)

	return &stack{
		cfg:       cfg,
		depMgr:    depMgr,
		ytdlp:     ytdlp,
		processor: processor,
		hist:      hist,
		prefs:     prefs,
		ctrl:      ctrl,
		feed:      feed,
		router:    router,
		downloads: downloads,
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}

		time.Sleep(20 * time.Millisecond)
	}

	t.Fatalf("condition not met within %s", timeout)
}
