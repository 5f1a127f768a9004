// Package formats lists the stream formats a source offers without downloading it.
package formats

import (
	"bufio"
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"mediafetch/internal/config"
	"mediafetch/internal/entity"
	"mediafetch/internal/errs"
	"mediafetch/internal/observability"
	"mediafetch/pkg/urls"
)

const (
	codecNone      = "none"
	audioOnly      = "audio only"
	noteStoryboard = "storyboard"
)

// MetadataSource returns the raw info JSON of a URL.
type MetadataSource interface {
	Metadata(ctx context.Context, url string) ([]byte, error)
}

// Lister queries formats. It is safe for concurrent use and independent of download sessions.
type Lister struct {
	log     *slog.Logger
	cfg     *config.Config
	src     MetadataSource
	metrics *observability.Metrics
}

// New creates a format lister. metrics may be nil.
func New(log *slog.Logger, cfg *config.Config, src MetadataSource, metrics *observability.Metrics) *Lister {
	return &Lister{
		log:     log.With(slog.String("package", "formats")),
		cfg:     cfg,
		src:     src,
		metrics: metrics,
	}
}

type info struct {
	Formats []rawFormat `json:"formats"`
}

type rawFormat struct {
	FormatID       string   `json:"format_id"`
	Ext            string   `json:"ext"`
	Resolution     string   `json:"resolution"`
	Height         *int     `json:"height"`
	FPS            *float64 `json:"fps"`
	VCodec         string   `json:"vcodec"`
	ACodec         string   `json:"acodec"`
	TBR            *float64 `json:"tbr"`
	ABR            *float64 `json:"abr"`
	Filesize       *int64   `json:"filesize"`
	FilesizeApprox *int64   `json:"filesize_approx"`
	FormatNote     string   `json:"format_note"`
}

// List returns the formats of url ordered by bitrate, then height, then code.
func (l *Lister) List(ctx context.Context, url string) ([]entity.FormatDescriptor, error) {
	url = strings.TrimSpace(url)
	if !urls.IsURLValid(url) {
		return nil, errs.Wrap(errs.KindInvalidRequest, "Please enter a valid http(s) URL", errs.ErrInvalidURL)
	}

	log := l.log.With(slog.String("url", url))
	start := time.Now()

	got, err := l.list(ctx, url)

	kind := errs.KindOf(err)
	l.metrics.RecordFormatRequest(string(kind), time.Since(start))

	if err != nil {
		log.WarnContext(ctx, "failed to list formats", slog.String("kind", string(kind)), slog.Any("error", err))

		return nil, err
	}

	log.InfoContext(ctx, "formats listed", slog.Int("count", len(got)), slog.Duration("took", time.Since(start)))

	return got, nil
}

func (l *Lister) list(ctx context.Context, url string) ([]entity.FormatDescriptor, error) {
	parent := ctx

	if l.cfg.Formats.Timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, l.cfg.Formats.Timeout)
		defer cancel()
	}

	out, err := l.src.Metadata(ctx, url)

	switch {
	case parent.Err() != nil:
		return nil, errs.Wrap(errs.KindCancelled, "listing formats was cancelled", parent.Err())
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return nil, errs.Wrap(errs.KindTimedOut,
			fmt.Sprintf("listing formats took longer than %s", l.cfg.Formats.Timeout), ctx.Err())
	case err != nil:
		return nil, err
	}

	return Parse(out)
}

// Parse extracts format descriptors from yt-dlp info JSON output.
func Parse(out []byte) ([]entity.FormatDescriptor, error) {
	doc, ok := firstJSONObject(out)
	if !ok {
		return nil, errs.New(errs.KindUnavailableSource, "no format information was returned for this URL")
	}

	var inf info

	err := json.Unmarshal(doc, &inf)
	if err != nil {
		return nil, errs.Wrap(errs.KindUnavailableSource, "the format information could not be read", err)
	}

	descriptors := make([]entity.FormatDescriptor, 0, len(inf.Formats))

	for _, f := range inf.Formats {
		if f.FormatID == "" || isStoryboard(f) {
			continue
		}

		descriptors = append(descriptors, describe(f))
	}

	if len(descriptors) == 0 {
		return nil, errs.New(errs.KindUnavailableSource, "no downloadable formats were found for this URL")
	}

	slices.SortFunc(descriptors, compareFormats)

	return descriptors, nil
}

// compareFormats orders by TBR descending, then height descending, then code ascending.
func compareFormats(a, b entity.FormatDescriptor) int {
	return cmp.Or(
		cmp.Compare(b.TBR, a.TBR),
		cmp.Compare(b.Height, a.Height),
		cmp.Compare(a.Code, b.Code),
	)
}

func describe(f rawFormat) entity.FormatDescriptor {
	desc := entity.FormatDescriptor{
		Code:   f.FormatID,
		Ext:    f.Ext,
		VCodec: f.VCodec,
		ACodec: f.ACodec,
		Note:   f.FormatNote,
	}

	if f.Height != nil {
		desc.Height = *f.Height
	}

	if f.FPS != nil {
		desc.FPS = *f.FPS
	}

	switch {
	case f.TBR != nil:
		desc.TBR = *f.TBR
	case f.ABR != nil:
		desc.TBR = *f.ABR
	}

	switch {
	case f.Filesize != nil:
		desc.ApproxSizeBytes = *f.Filesize
	case f.FilesizeApprox != nil:
		desc.ApproxSizeBytes = *f.FilesizeApprox
	}

	switch {
	case f.VCodec == codecNone:
		desc.Resolution = audioOnly
	case f.Resolution != "":
		desc.Resolution = f.Resolution
	case desc.Height > 0:
		desc.Resolution = fmt.Sprintf("%dp", desc.Height)
	default:
		desc.Resolution = "unknown"
	}

	return desc
}

func isStoryboard(f rawFormat) bool {
	return f.FormatNote == noteStoryboard || (f.VCodec == codecNone && f.ACodec == codecNone)
}

// firstJSONObject returns the first line of out that holds a JSON object.
func firstJSONObject(out []byte) ([]byte, bool) {
	scanner := bufio.NewScanner(bytes.NewReader(out))
	scanner.Buffer(make([]byte, 0, 64*1024), 32*1024*1024)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) > 0 && line[0] == '{' {
			return line, true
		}
	}

	return nil, false
}
