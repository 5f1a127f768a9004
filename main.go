// entry point of the application
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mediafetch/internal/bridge"
	"mediafetch/internal/config"
	"mediafetch/internal/consts"
	"mediafetch/internal/depmanager"
	"mediafetch/internal/downloader"
	"mediafetch/internal/entity"
	"mediafetch/internal/formats"
	"mediafetch/internal/history"
	httprouter "mediafetch/internal/infrastructure/delivery/http"
	"mediafetch/internal/infrastructure/delivery/terminal"
	"mediafetch/internal/media"
	"mediafetch/internal/observability"
	"mediafetch/internal/player"
	"mediafetch/internal/proxymgr"
	"mediafetch/internal/session"
	"mediafetch/internal/settings"
	httpserver "mediafetch/pkg/http/server"
	"mediafetch/pkg/logger"
)

func main() {
	os.Exit(run())
}

func run() int {
	skipDepsCheck := flag.Bool("skip-deps-check", false, "skip the startup check of yt-dlp, ffmpeg and ffprobe")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [--skip-deps-check] [url]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.New()
	if err != nil {
		slog.Error("config new", slog.Any("error", err))

		return 1
	}

	log, err := logger.New(&logger.Options{
		AddSource: true,
		Level:     cfg.App.LogLevel,
	})
	if err != nil {
		slog.WarnContext(ctx, "logger level invalid; defaulting to info", slog.Any("error", err))
	}

	metrics := observability.New(prometheus.DefaultRegisterer)
	depMgr := depmanager.New(log, cfg)

	log.InfoContext(ctx, "resolving yt-dlp, ffmpeg and ffprobe. it may take some time...")

	if err := depMgr.Start(ctx); err != nil {
		log.WarnContext(ctx, "some dependencies are missing, downloads will fail until they are installed",
			slog.Any("error", err))
	}

	prefs, err := settings.New(log, cfg.Dir.SettingsFile)
	if err != nil {
		log.ErrorContext(ctx, "settings store", slog.Any("error", err))

		return 1
	}

	current := prefs.Load(ctx)

	if !*skipDepsCheck && depmanager.NeedsCheck(current, cfg.App.Version, cfg.DepManager.RecheckInterval, time.Now()) {
		checkDependencies(ctx, log, cfg, depMgr, prefs, metrics)
	}

	var proxyMgr *proxymgr.Manager
	if len(cfg.Proxy.Proxies) > 0 {
		proxyMgr = proxymgr.New(log, cfg)
		proxyMgr.StartHealthChecker(ctx)

		log.InfoContext(ctx, "proxy manager initialized", slog.Int("proxy_count", len(cfg.Proxy.Proxies)))
	}

	ytdlp := downloader.NewYTdlp(log, cfg, depMgr, proxyMgr, metrics)

	var dl downloader.Downloader = ytdlp
	if cfg.App.Downloader == consts.DownloaderMock {
		dl = downloader.NewMock(log, consts.DefaultSimulateTime, cfg.Dir.Downloads)
	}

	hist, err := history.New(ctx, log, cfg, metrics)
	if err != nil {
		log.ErrorContext(ctx, "history store", slog.Any("error", err))

		return 1
	}

	ctrl := session.New(log, cfg, dl, media.New(log, cfg, depMgr), hist, metrics)
	defer ctrl.Close()

	if url := flag.Arg(0); url != "" {
		return runHeadless(ctx, log, ctrl, prefs.Current().Request(url))
	}

	if !cfg.HTTP.Enabled {
		log.ErrorContext(ctx, "nothing to do: no url given and the control API is disabled")

		return 2
	}

	feed := session.NewFeed(consts.DefaultRecentEvents)

	go feed.Consume(ctx, ctrl.Events())

	svc := httprouter.Services{
		Sessions: ctrl,
		Events:   feed,
		History:  hist,
		Formats:  formats.New(log, cfg, ytdlp, metrics),
		Settings: prefs,
		Bridge:   bridge.New(log, bridge.SystemClipboard{}, prefs, ctrl),
		Player:   player.New(log),
		Deps:     depMgr,
	}
	if proxyMgr != nil {
		svc.Proxies = proxyMgr
	}

	router := httprouter.New(log, cfg, svc, metrics)

	httpSrv, err := httpserver.New(router, httpserver.Options{
		Addr:            cfg.HTTP.Addr,
		ShutdownTimeout: cfg.HTTP.ShutdownTimeout,
		WriteTimeout:    cfg.HTTP.EventsWait + cfg.HTTP.HandlerTimeout,
	})
	if err != nil {
		log.ErrorContext(ctx, "control api listen", slog.Any("error", err))

		return 1
	}

	log.InfoContext(ctx, "mediafetch started", slog.String("addr", httpSrv.Addr()))

	// Waiting for shutdown signal
	select {
	case <-ctx.Done():
	case err := <-httpSrv.Notify():
		log.ErrorContext(ctx, "control api stopped", slog.Any("error", err))
	}

	if err := httpSrv.Shutdown(); err != nil {
		log.Error(err.Error())
	}

	log.InfoContext(ctx, "mediafetch shut down gracefully")

	return 0
}

// checkDependencies runs the startup check and stamps its outcome in the settings.
func checkDependencies(
	ctx context.Context,
	log *slog.Logger,
	cfg *config.Config,
	depMgr *depmanager.Manager,
	prefs *settings.Store,
	metrics *observability.Metrics,
) {
	report := depMgr.Check(ctx)
	metrics.RecordDependencyCheck(report.OK())

	for _, s := range report.Statuses {
		if !s.Found || s.Error != "" {
			log.WarnContext(ctx, "dependency check failed", slog.Any("status", s))

			continue
		}

		log.InfoContext(ctx, "dependency found",
			slog.String("name", string(s.Name)),
			slog.String("version", s.Version))
	}

	_, err := prefs.Update(ctx, func(s *entity.Settings) {
		depmanager.Stamp(s, report, cfg.App.Version)
	})
	if err != nil {
		log.WarnContext(ctx, "failed to save dependency check result", slog.Any("error", err))
	}
}

func runHeadless(ctx context.Context, log *slog.Logger, ctrl *session.Controller, req entity.DownloadRequest) int {
	_, err := terminal.New(log, os.Stderr, ctrl, ctrl.Events()).Run(ctx, req)
	if err != nil {
		log.ErrorContext(ctx, "download failed", slog.Any("error", err))

		return 1
	}

	return 0
}
