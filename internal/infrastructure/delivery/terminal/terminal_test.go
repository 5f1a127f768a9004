package terminal_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediafetch/internal/config"
	"mediafetch/internal/downloader"
	"mediafetch/internal/entity"
	"mediafetch/internal/errs"
	"mediafetch/internal/infrastructure/delivery/terminal"
	"mediafetch/internal/session"
	"mediafetch/pkg/logger"
)

type nopRecorder struct{}

func (nopRecorder) Append(_ context.Context, r entity.HistoryRecord) (entity.HistoryRecord, error) {
	return r, nil
}

func (nopRecorder) Remove(context.Context, string) error { return nil }

func newController(t *testing.T, d time.Duration) *session.Controller {
	t.Helper()

	log := logger.Discard()
	cfg := &config.Config{Session: config.Session{Policy: config.PolicyReplace, EventBuffer: 64}}

	ctrl := session.New(log, cfg, downloader.NewMock(log, d, t.TempDir()), nil, nopRecorder{}, nil)
	t.Cleanup(func() { ctrl.Close() })

	return ctrl
}

func request() entity.DownloadRequest {
	return entity.DownloadRequest{URL: "https://example.com/v/1", MediaType: entity.MediaTypeVideo}
}

func TestRunSucceeds(t *testing.T) {
	ctrl := newController(t, 50*time.Millisecond)

	var out bytes.Buffer

	snap, err := terminal.New(logger.Discard(), &out, ctrl, ctrl.Events()).Run(t.Context(), request())
	require.NoError(t, err)

	assert.Equal(t, entity.SessionSucceeded, snap.State)
	assert.Contains(t, out.String(), "saved "+snap.ResultPath)
}

func TestRunInterrupted(t *testing.T) {
	ctrl := newController(t, time.Minute)

	ctx, cancel := context.WithTimeout(t.Context(), 100*time.Millisecond)
	defer cancel()

	var out bytes.Buffer

	snap, err := terminal.New(logger.Discard(), &out, ctrl, ctrl.Events()).Run(ctx, request())

	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrCancelled))
	assert.Equal(t, entity.SessionCancelled, snap.State)
	assert.True(t, strings.HasSuffix(out.String(), "cancelled\n"))
}

func TestRunInvalidRequest(t *testing.T) {
	ctrl := newController(t, time.Second)

	_, err := terminal.New(logger.Discard(), &bytes.Buffer{}, ctrl, ctrl.Events()).
		Run(t.Context(), entity.DownloadRequest{URL: "nope", MediaType: entity.MediaTypeVideo})

	assert.Equal(t, errs.KindInvalidRequest, errs.KindOf(err))
}
