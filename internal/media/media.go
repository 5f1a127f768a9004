// Package media queries and post-processes downloaded files with ffprobe and ffmpeg.
package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"mediafetch/internal/config"
	"mediafetch/internal/depmanager"
	"mediafetch/internal/entity"
	"mediafetch/internal/errs"
	"mediafetch/pkg/fsutil"
	"mediafetch/pkg/ptr"
	"mediafetch/pkg/shellquote"
)

// File name suffixes of generated images.
const (
	thumbSuffix = "_thumb.jpg"
	artSuffix   = "_art.jpg"
)

// waitDelay bounds how long output pipes are drained after a killed process.
const waitDelay = time.Second

var (
	// thumbnailExts are images yt-dlp may leave next to the media file, in order of preference.
	thumbnailExts = []string{".jpg", ".jpeg", ".png", ".webp"}
	subtitleExts  = []string{".srt", ".vtt", ".ass", ".ssa", ".sub", ".lrc"}
)

// Enrichment is what post-processing learned about a downloaded file.
// Missing values are reported as warnings, never as errors.
type Enrichment struct {
	ThumbnailPath   string
	DurationSeconds *float64
	HasSubtitles    bool
	Warnings        []string
}

// Processor runs ffprobe and ffmpeg with a bounded timeout.
type Processor struct {
	log    *slog.Logger
	cfg    *config.Config
	depMgr *depmanager.Manager
}

// New creates a new media processor.
func New(log *slog.Logger, cfg *config.Config, depMgr *depmanager.Manager) *Processor {
	return &Processor{
		log:    log.With(slog.String("package", "media")),
		cfg:    cfg,
		depMgr: depMgr,
	}
}

// Enrich obtains duration, thumbnail and subtitle presence for path.
func (p *Processor) Enrich(ctx context.Context, path string, mediaType entity.MediaType) Enrichment {
	log := p.log.With(slog.String("path", path))

	var res Enrichment

	duration, err := p.Duration(ctx, path)
	if err != nil {
		log.WarnContext(ctx, "failed to read duration", slog.Any("error", err))
		res.Warnings = append(res.Warnings, "duration unavailable: "+errs.Message(err))
	} else {
		res.DurationSeconds = ptr.Of(duration)
	}

	var thumbErr error

	switch existing := ExistingThumbnail(path); {
	case existing != "":
		res.ThumbnailPath = existing
	case mediaType == entity.MediaTypeAudio:
		res.ThumbnailPath, thumbErr = p.AlbumArt(ctx, path)
	default:
		res.ThumbnailPath, thumbErr = p.Thumbnail(ctx, path, res.DurationSeconds)
	}

	if thumbErr != nil {
		log.WarnContext(ctx, "failed to create thumbnail", slog.Any("error", thumbErr))
		res.Warnings = append(res.Warnings, "thumbnail unavailable: "+errs.Message(thumbErr))
	}

	res.HasSubtitles = HasSubtitles(path)

	return res
}

// Duration returns the duration of path in seconds.
func (p *Processor) Duration(ctx context.Context, path string) (float64, error) {
	out, err := p.run(ctx, depmanager.BinaryFFprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		return 0, err
	}

	duration, err := strconv.ParseFloat(strings.TrimSpace(out), 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", strings.TrimSpace(out), err)
	}

	return duration, nil
}

// Thumbnail extracts one frame of the video at path into <base>_thumb.jpg.
// The frame is taken at the middle of the video, or at the configured offset when the duration is unknown.
func (p *Processor) Thumbnail(ctx context.Context, path string, duration *float64) (string, error) {
	offset := p.cfg.Media.ThumbnailOffset
	if duration != nil && *duration > 0 {
		offset = time.Duration(*duration / 2 * float64(time.Second))
	}

	out := fsutil.StripExt(path) + thumbSuffix

	_, err := p.run(ctx, depmanager.BinaryFFmpeg,
		"-ss", strconv.FormatFloat(offset.Seconds(), 'f', 3, 64),
		"-i", path,
		"-vframes", "1",
		"-q:v", "2",
		"-y", out,
	)
	if err != nil {
		return "", err
	}

	return out, nil
}

// AlbumArt extracts the cover image embedded in the audio file at path into <base>_art.jpg.
func (p *Processor) AlbumArt(ctx context.Context, path string) (string, error) {
	out := fsutil.StripExt(path) + artSuffix

	_, err := p.run(ctx, depmanager.BinaryFFmpeg,
		"-i", path,
		"-map", "0:v",
		"-map", "-0:V?",
		"-c:v", "copy",
		"-f", "mjpeg",
		"-vframes", "1",
		"-y", out,
	)
	if err != nil {
		return "", err
	}

	return out, nil
}

func (p *Processor) run(ctx context.Context, binary depmanager.BinaryName, args ...string) (string, error) {
	bin, err := p.depMgr.Path(binary)
	if err != nil {
		return "", err
	}

	if p.cfg.Media.Timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, p.cfg.Media.Timeout)
		defer cancel()
	}

	p.log.DebugContext(ctx, "executing", slog.String("command", shellquote.Join(bin, args)))

	var stderr strings.Builder

	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay

	out, err := cmd.Output()

	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return "", errs.Wrap(errs.KindTimedOut, fmt.Sprintf("%s timed out", binary), ctx.Err())
	case err != nil:
		return "", fmt.Errorf("%s: %w: %s", binary, err, lastLine(stderr.String()))
	}

	return string(out), nil
}

// ExistingThumbnail returns an image yt-dlp wrote next to path, or "".
func ExistingThumbnail(path string) string {
	base := fsutil.StripExt(path)

	for _, ext := range thumbnailExts {
		if candidate := base + ext; fsutil.Exists(candidate) {
			return candidate
		}
	}

	return ""
}

// HasSubtitles reports whether a subtitle file sits next to path, e.g. "clip.en.vtt" for "clip.mp4".
func HasSubtitles(path string) bool {
	prefix := filepath.Base(fsutil.StripExt(path)) + "."

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		return false
	}

	return slices.ContainsFunc(entries, func(e os.DirEntry) bool {
		name := e.Name()

		return !e.IsDir() && strings.HasPrefix(name, prefix) &&
			slices.Contains(subtitleExts, strings.ToLower(filepath.Ext(name)))
	})
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")

	return strings.TrimSpace(lines[len(lines)-1])
}
