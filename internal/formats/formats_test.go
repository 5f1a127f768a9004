package formats_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediafetch/internal/config"
	"mediafetch/internal/depmanager"
	"mediafetch/internal/downloader"
	"mediafetch/internal/entity"
	"mediafetch/internal/errs"
	"mediafetch/internal/formats"
	"mediafetch/pkg/logger"
)

type sourceFunc func(ctx context.Context, url string) ([]byte, error)

func (f sourceFunc) Metadata(ctx context.Context, url string) ([]byte, error) { return f(ctx, url) }

func newLister(timeout time.Duration, src formats.MetadataSource) *formats.Lister {
	cfg := &config.Config{Formats: config.Formats{Timeout: timeout}}

	return formats.New(logger.Discard(), cfg, src, nil)
}

func codes(descs []entity.FormatDescriptor) []string {
	out := make([]string, 0, len(descs))
	for _, d := range descs {
		out = append(out, d.Code)
	}

	return out
}

func TestParse(t *testing.T) {
	out := []byte("[youtube] abc: Downloading webpage\n" +
		`{"id": "abc", "formats": [` +
		`{"format_id": "251", "ext": "webm", "vcodec": "none", "acodec": "opus", "abr": 160.2, "filesize": 5000},` +
		`{"format_id": "22", "ext": "mp4", "vcodec": "avc1", "acodec": "mp4a", "height": 720, "tbr": 1200, "resolution": "1280x720"},` +
		`{"format_id": "136", "ext": "mp4", "vcodec": "avc1", "acodec": "none", "height": 720, "fps": 30, "tbr": 1200},` +
		`{"format_id": "sb1", "ext": "mhtml", "vcodec": "none", "acodec": "none", "format_note": "storyboard"}` +
		"]}\n")

	got, err := formats.Parse(out)
	require.NoError(t, err)

	assert.Equal(t, []string{"136", "22", "251"}, codes(got))

	assert.Equal(t, "720p", got[0].Resolution)
	assert.InDelta(t, 30.0, got[0].FPS, 1e-9)
	assert.Equal(t, "1280x720", got[1].Resolution)
	assert.Equal(t, "audio only", got[2].Resolution)
	assert.InDelta(t, 160.2, got[2].TBR, 1e-9)
	assert.Equal(t, int64(5000), got[2].ApproxSizeBytes)
}

func TestParseUnavailable(t *testing.T) {
	tests := []struct {
		name string
		out  string
	}{
		{name: "empty output", out: ""},
		{name: "no json", out: "[generic] nothing here\n"},
		{name: "broken json", out: `{"formats": [` + "\n"},
		{name: "no formats", out: `{"id": "x", "formats": []}`},
		{name: "only storyboards", out: `{"formats": [{"format_id": "sb0", "vcodec": "none", "acodec": "none"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := formats.Parse([]byte(tt.out))
			assert.ErrorIs(t, err, errs.ErrUnavailableSource)
		})
	}
}

func TestListInvalidURL(t *testing.T) {
	called := false
	lister := newLister(time.Second, sourceFunc(func(context.Context, string) ([]byte, error) {
		called = true

		return nil, nil
	}))

	_, err := lister.List(t.Context(), "not a url")
	assert.ErrorIs(t, err, errs.ErrInvalidRequest)
	assert.False(t, called)
}

func TestListTimeoutIsTimedOut(t *testing.T) {
	lister := newLister(50*time.Millisecond, sourceFunc(func(ctx context.Context, _ string) ([]byte, error) {
		<-ctx.Done()

		return nil, errs.Wrap(errs.KindUnavailableSource, "killed", ctx.Err())
	}))

	_, err := lister.List(t.Context(), "https://example.com/slow")
	assert.Equal(t, errs.KindTimedOut, errs.KindOf(err))
	assert.NotErrorIs(t, err, errs.ErrUnavailableSource)
}

func TestListCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())

	lister := newLister(time.Minute, sourceFunc(func(ctx context.Context, _ string) ([]byte, error) {
		cancel()
		<-ctx.Done()

		return nil, ctx.Err()
	}))

	_, err := lister.List(ctx, "https://example.com/v")
	assert.Equal(t, errs.KindCancelled, errs.KindOf(err))
}

func TestListPassesClassifiedErrors(t *testing.T) {
	lister := newLister(time.Second, sourceFunc(func(context.Context, string) ([]byte, error) {
		return nil, errs.New(errs.KindGeoRestricted, "geo")
	}))

	_, err := lister.List(t.Context(), "https://example.com/v")
	assert.ErrorIs(t, err, errs.ErrGeoRestricted)
}

func TestListConcurrent(t *testing.T) {
	lister := newLister(time.Second, sourceFunc(func(_ context.Context, url string) ([]byte, error) {
		return []byte(`{"formats": [{"format_id": "18", "vcodec": "avc1", "acodec": "mp4a", "tbr": 500}]}`), nil
	}))

	var wg sync.WaitGroup

	for range 8 {
		wg.Go(func() {
			got, err := lister.List(t.Context(), "https://example.com/v")
			assert.NoError(t, err)
			assert.Len(t, got, 1)
		})
	}

	wg.Wait()
}

func newFakeYTdlp(t *testing.T, mode string) *downloader.YTdlp {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("fake yt-dlp is a shell script")
	}

	script, err := os.ReadFile(filepath.Join("..", "downloader", "testdata", "fake-yt-dlp.sh"))
	require.NoError(t, err)

	bin := filepath.Join(t.TempDir(), "yt-dlp")
	require.NoError(t, os.WriteFile(bin, script, 0o755))

	t.Setenv("FAKE_YTDLP_MODE", mode)

	cfg := &config.Config{Session: config.Session{GracePeriod: time.Second}}
	log := logger.Discard()
	depMgr := depmanager.New(log, cfg)
	depMgr.SetPath(depmanager.BinaryYTdlp, bin)

	return downloader.NewYTdlp(log, cfg, depMgr, nil, nil)
}

func TestListWithYTdlp(t *testing.T) {
	lister := newLister(10*time.Second, newFakeYTdlp(t, "formats"))

	got, err := lister.List(t.Context(), "https://youtu.be/fake1")
	require.NoError(t, err)

	assert.Equal(t, []string{"137", "18", "140"}, codes(got))
	assert.Equal(t, int64(120000000), got[0].ApproxSizeBytes)
	assert.Equal(t, "audio only", got[2].Resolution)
}

func TestListWithYTdlpFailures(t *testing.T) {
	tests := []struct {
		mode string
		want error
	}{
		{mode: "noformats", want: errs.ErrUnavailableSource},
		{mode: "geo", want: errs.ErrGeoRestricted},
	}

	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			lister := newLister(10*time.Second, newFakeYTdlp(t, tt.mode))

			_, err := lister.List(t.Context(), "https://youtu.be/fake1")
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}
