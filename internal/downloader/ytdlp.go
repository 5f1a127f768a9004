package downloader

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"syscall"

	"mediafetch/internal/config"
	"mediafetch/internal/consts"
	"mediafetch/internal/depmanager"
	"mediafetch/internal/entity"
	"mediafetch/internal/errs"
	"mediafetch/internal/observability"
	"mediafetch/internal/proxymgr"
	"mediafetch/pkg/fsutil"
	"mediafetch/pkg/shellquote"
)

var (
	maxLineSize = 10 * 1024 * 1024 // 10 MiB scanner buffer, info JSON lines are large
	bufSize     = 4096             // 4 KiB initial buffer size
)

// YTdlp runs yt-dlp as a subprocess.
type YTdlp struct {
	log      *slog.Logger
	cfg      *config.Config
	depMgr   *depmanager.Manager
	proxyMgr *proxymgr.Manager
	metrics  *observability.Metrics
}

// NewYTdlp creates a new YTdlp downloader instance. proxyMgr and metrics may be nil.
func NewYTdlp(
	log *slog.Logger,
	cfg *config.Config,
	depMgr *depmanager.Manager,
	proxyMgr *proxymgr.Manager,
	metrics *observability.Metrics,
) *YTdlp {
	return &YTdlp{
		log:      log.With(slog.String("package", "downloader"), slog.String("downloader", consts.DownloaderYTdlp)),
		cfg:      cfg,
		depMgr:   depMgr,
		proxyMgr: proxyMgr,
		metrics:  metrics,
	}
}

// Options returns the command line options shared by downloads and metadata queries.
func (d *YTdlp) Options(outputDir string) ArgsOptions {
	opts := ArgsOptions{
		OutputDir:  outputDir,
		CacheDir:   d.cfg.Dir.Cache,
		CookieFile: d.cfg.Dir.CookieFile,
	}

	if ffmpeg := d.depMgr.GetInstalledPath(depmanager.BinaryFFmpeg); ffmpeg != "" {
		opts.FFmpegLocation = filepath.Dir(ffmpeg)
	}

	if d.proxyMgr != nil && d.proxyMgr.HasProxies() {
		opts.Proxy = d.proxyMgr.Next()
	}

	return opts
}

// Download runs yt-dlp for req and reports progress through onProgress.
func (d *YTdlp) Download(ctx context.Context, req entity.DownloadRequest, onProgress ProgressFunc) (*Result, error) {
	log := d.log.With(slog.Any("request", req))

	bin, err := d.depMgr.Path(depmanager.BinaryYTdlp)
	if err != nil {
		return nil, err
	}

	outputDir := req.OutputDir
	if outputDir == "" {
		outputDir = d.cfg.Dir.Downloads
	}

	if err := os.MkdirAll(outputDir, fsutil.PermDir); err != nil {
		return nil, errs.Wrap(errs.KindDownloadFailed, "cannot create the download directory", err)
	}

	opts := d.Options(outputDir)
	args := append(BuildArgs(req, opts), "--progress", "--print", printAfterMove)

	if opts.Proxy != "" {
		d.metrics.RecordProxyRequest(opts.Proxy)
	}

	log.DebugContext(ctx, "executing yt-dlp", slog.String("command", shellquote.Join(bin, args)))

	run, err := d.run(ctx, bin, args, outputDir, onProgress)

	d.markProxy(opts.Proxy, err)

	if err != nil {
		if ctx.Err() != nil {
			removePartials(log, run.tracker.Destinations())
		}

		return nil, err
	}

	path := run.tracker.Path()
	if path == "" || !fsutil.Exists(path) {
		log.ErrorContext(ctx, "yt-dlp finished without an output file", slog.String("path", path))

		return nil, errs.Wrap(errs.KindDownloadFailed,
			"download completed, but the output file was not found on disk", errs.ErrOutputMissing)
	}

	result := &Result{
		FilePath: path,
		Title:    run.tracker.Title(),
		Metadata: run.tracker.Metadata(),
		Warnings: run.warnings,
	}

	log.InfoContext(ctx, "done", slog.Any("result", result))

	return result, nil
}

// Metadata runs yt-dlp in metadata-only mode and returns its raw stdout.
func (d *YTdlp) Metadata(ctx context.Context, url string) ([]byte, error) {
	bin, err := d.depMgr.Path(depmanager.BinaryYTdlp)
	if err != nil {
		return nil, err
	}

	opts := d.Options("")
	args := MetadataArgs(url, opts)

	d.log.DebugContext(ctx, "executing yt-dlp", slog.String("command", shellquote.Join(bin, args)))

	var stdout, stderr strings.Builder

	cmd := d.command(ctx, bin, args)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()

	d.markProxy(opts.Proxy, err)

	if ctx.Err() != nil {
		return nil, contextError(ctx)
	}

	if err != nil {
		return nil, Classify(strings.Split(stderr.String(), "\n"), exitCode(err))
	}

	return []byte(stdout.String()), nil
}

type runResult struct {
	tracker  *outputTracker
	warnings []string
}

func (d *YTdlp) run(ctx context.Context, bin string, args []string, outputDir string, onProgress ProgressFunc) (runResult, error) {
	res := runResult{tracker: newOutputTracker(outputDir)}

	cmd := d.command(ctx, bin, args)

	// io.Pipe instead of StdoutPipe: cmd.Wait closes the writers itself after WaitDelay,
	// even when a grandchild process still holds the descriptors.
	stdoutR, stdoutW := io.Pipe()
	stderrR, stderrW := io.Pipe()
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	if err := cmd.Start(); err != nil {
		return res, errs.Wrap(errs.KindDependencyMissing, "cannot start yt-dlp", err)
	}

	var (
		mu     sync.Mutex
		lines  []string
		parser = NewProgressParser()
		wg     sync.WaitGroup
	)

	consume := func(r io.Reader) {
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, bufSize), maxLineSize)
		scanner.Split(splitLinesAny)

		defer io.Copy(io.Discard, r) //nolint:errcheck // drain after a scanner error

		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}

			mu.Lock()

			res.tracker.Observe(line)

			if !strings.HasPrefix(line, "{") {
				lines = append(lines, line)
				if len(lines) > consts.MaxDiagnosticLines {
					lines = lines[len(lines)-consts.MaxDiagnosticLines:]
				}
			}

			if strings.HasPrefix(line, "WARNING:") {
				res.warnings = append(res.warnings, strings.TrimSpace(strings.TrimPrefix(line, "WARNING:")))
			}

			// reported under the lock so that reports from both streams stay in order
			if prog, ok := parser.Parse(line); ok && onProgress != nil {
				onProgress(prog)
			}

			mu.Unlock()
		}
	}

	wg.Go(func() { consume(stdoutR) })
	wg.Go(func() { consume(stderrR) })

	err := cmd.Wait()

	stdoutW.Close()
	stderrW.Close()
	wg.Wait()

	if ctx.Err() != nil {
		return res, contextError(ctx)
	}

	if err != nil {
		d.log.ErrorContext(ctx, "yt-dlp command failed", slog.Any("error", err), slog.Int("lines", len(lines)))

		return res, Classify(lines, exitCode(err))
	}

	return res, nil
}

// command builds the yt-dlp command. Cancelling ctx sends SIGTERM and kills the process
// if it has not exited within the configured grace period.
func (d *YTdlp) command(ctx context.Context, bin string, args []string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Cancel = func() error {
		if runtime.GOOS == "windows" {
			return cmd.Process.Kill()
		}

		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = d.cfg.Session.GracePeriod
	if cmd.WaitDelay <= 0 {
		cmd.WaitDelay = consts.DefaultGracePeriod
	}

	return cmd
}

func (d *YTdlp) markProxy(proxy string, err error) {
	if proxy == "" || d.proxyMgr == nil {
		return
	}

	if err == nil || errs.KindOf(err) == errs.KindCancelled {
		d.proxyMgr.MarkSuccess(proxy)

		return
	}

	d.proxyMgr.MarkFailed(proxy)
	d.metrics.RecordProxyFailure(proxy)
}

func exitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}

	return -1
}

// removePartials deletes the intermediate files of an interrupted download.
func removePartials(log *slog.Logger, destinations []string) {
	seen := make(map[string]struct{})

	for _, dest := range destinations {
		dir, prefix := filepath.Dir(dest), filepath.Base(fsutil.StripExt(dest))

		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}

		for _, entry := range entries {
			name := entry.Name()
			if entry.IsDir() || !strings.HasPrefix(name, prefix) || !reIntermediate.MatchString(name) {
				continue
			}

			path := filepath.Join(dir, name)
			if _, ok := seen[path]; ok {
				continue
			}

			seen[path] = struct{}{}

			if err := fsutil.RemoveIfExists(path); err != nil {
				log.Warn("failed to remove partial file", slog.String("path", path), slog.Any("error", err))

				continue
			}

			log.Debug("removed partial file", slog.String("path", path))
		}
	}
}
