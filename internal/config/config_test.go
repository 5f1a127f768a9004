package config_test

import (
	"bufio"
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mediafetch/internal/config"
)

//go:embed testdata/.env.custom
var envCustom []byte

func parseEnv(r io.Reader) (map[string]string, error) {
	env := make(map[string]string)
	lineNo := 0

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("invalid line %d: %q", lineNo, line)
		}

		env[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan env: %w", err)
	}

	return env, nil
}

func TestNew(t *testing.T) {
	env, err := parseEnv(bytes.NewReader(envCustom))
	if err != nil {
		t.Fatalf("parseEnv() failed: %v", err)
	}

	for key, value := range env {
		t.Setenv(key, value)
	}

	got, err := config.New()
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	for name, path := range map[string]string{
		"data":      got.Dir.Data,
		"downloads": got.Dir.Downloads,
		"cache":     got.Dir.Cache,
		"settings":  got.Dir.SettingsFile,
		"history":   got.Dir.HistoryFile,
		"bins":      got.DepManager.BinsDir,
	} {
		if !filepath.IsAbs(path) {
			t.Errorf("%s: expected absolute path, got %s", name, path)
		}
	}

	if filepath.Base(got.Dir.SettingsFile) != "prefs.yaml" {
		t.Errorf("settings file = %s", got.Dir.SettingsFile)
	}

	if got.Dir.HistoryFile != filepath.Join(got.Dir.Data, "history.json") {
		t.Errorf("history file = %s, want it under %s", got.Dir.HistoryFile, got.Dir.Data)
	}

	if got.Session.Policy != config.PolicyReject {
		t.Errorf("policy = %s", got.Session.Policy)
	}

	if got.Session.GracePeriod != 2*time.Second {
		t.Errorf("grace period = %s", got.Session.GracePeriod)
	}

	if len(got.Proxy.Proxies) != 2 || got.Proxy.Proxies[1] != "socks5h://127.0.0.1:1081" {
		t.Errorf("proxies = %v", got.Proxy.Proxies)
	}
}

func TestNewDefaults(t *testing.T) {
	got, err := config.New()
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	if got.Session.Policy != config.PolicyReplace {
		t.Errorf("policy = %s, want %s", got.Session.Policy, config.PolicyReplace)
	}

	if got.Formats.Timeout != 30*time.Second || got.Media.Timeout != 30*time.Second {
		t.Errorf("timeouts = %s/%s", got.Formats.Timeout, got.Media.Timeout)
	}

	if got.DepManager.RecheckInterval != 30*24*time.Hour {
		t.Errorf("recheck interval = %s", got.DepManager.RecheckInterval)
	}
}

func TestNewRejectsGracePeriod(t *testing.T) {
	for _, value := range []string{"0s", "-1s"} {
		t.Run(value, func(t *testing.T) {
			t.Setenv("MEDIAFETCH_SESSION_GRACE_PERIOD", value)

			if _, err := config.New(); err == nil {
				t.Errorf("expected error for grace period %s", value)
			}
		})
	}
}

func TestNewInvalidPolicy(t *testing.T) {
	t.Setenv("MEDIAFETCH_SESSION_POLICY", "queue")

	if _, err := config.New(); err == nil {
		t.Errorf("expected error for unknown policy")
	}
}
