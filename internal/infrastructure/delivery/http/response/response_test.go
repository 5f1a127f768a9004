package response_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"mediafetch/internal/errs"
	"mediafetch/internal/infrastructure/delivery/http/response"
)

func TestStatusOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"session active", fmt.Errorf("start: %w", errs.ErrSessionActive), http.StatusConflict},
		{"session not found", errs.ErrSessionNotFound, http.StatusNotFound},
		{"record not found", errs.ErrRecordNotFound, http.StatusNotFound},
		{"file missing", fmt.Errorf("/x: %w", errs.ErrFileMissing), http.StatusGone},
		{"invalid request", errs.Wrap(errs.KindInvalidRequest, "bad url", errs.ErrInvalidURL), http.StatusUnprocessableEntity},
		{"geo", errs.New(errs.KindGeoRestricted, "geo"), http.StatusForbidden},
		{"timed out", errs.New(errs.KindTimedOut, "slow"), http.StatusGatewayTimeout},
		{"dependency", errs.New(errs.KindDependencyMissing, "no yt-dlp"), http.StatusServiceUnavailable},
		{"download failed", errs.New(errs.KindDownloadFailed, "boom"), http.StatusBadGateway},
		{"plain", errors.New("disk full"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := response.StatusOf(tt.err); got != tt.want {
				t.Errorf("StatusOf() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestErrorEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()

	response.Error(rec, "list formats failed", errs.New(errs.KindAgeRestricted, "This video is age-restricted"))

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d", rec.Code)
	}

	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q", ct)
	}

	var got response.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}

	if got.Message != "list formats failed" || got.Error != "This video is age-restricted" || got.Kind != errs.KindAgeRestricted {
		t.Errorf("envelope = %+v", got)
	}
}
