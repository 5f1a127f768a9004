// Package proxymgr rotates the proxies yt-dlp is run through.
// Proxies that keep failing are parked with an exponential backoff.
package proxymgr

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"slices"
	"sync"
	"time"

	"mediafetch/internal/config"
)

const (
	healthCheckTimeout = 10 * time.Second
	maxBackoff         = time.Hour
)

var (
	supportedSchemes = []string{"http", "https", "socks4", "socks4a", "socks5", "socks5h"}
	defaultPorts     = map[string]string{"http": "80", "https": "443"}
)

const defaultSOCKSPort = "1080"

// Status describes one proxy.
type Status struct {
	URL          string    `json:"url"`
	Available    bool      `json:"available"`
	Failures     int       `json:"failures"`
	LastFailure  time.Time `json:"lastFailure,omitzero"`
	BackoffUntil time.Time `json:"backoffUntil,omitzero"`
	LastCheck    time.Time `json:"lastCheck,omitzero"`
}

type proxy struct {
	url          string
	addr         string
	failures     int
	lastFailure  time.Time
	backoffUntil time.Time
	lastCheck    time.Time
}

func (p *proxy) available(now time.Time) bool {
	return p.backoffUntil.IsZero() || !now.Before(p.backoffUntil)
}

// Manager hands out proxies round-robin.
type Manager struct {
	log *slog.Logger
	cfg *config.Config
	now func() time.Time

	mu      sync.Mutex
	proxies []*proxy
	next    int
}

// New creates a manager for cfg.Proxy.Proxies. Entries that are not proxy URLs are skipped.
func New(log *slog.Logger, cfg *config.Config) *Manager {
	mgr := &Manager{
		log: log.With(slog.String("package", "proxymgr")),
		cfg: cfg,
		now: time.Now,
	}

	for _, raw := range cfg.Proxy.Proxies {
		addr, err := dialAddr(raw)
		if err != nil {
			mgr.log.Warn("skipping proxy", slog.String("proxy", raw), slog.Any("error", err))

			continue
		}

		if slices.ContainsFunc(mgr.proxies, func(p *proxy) bool { return p.url == raw }) {
			continue
		}

		mgr.proxies = append(mgr.proxies, &proxy{url: raw, addr: addr})
	}

	return mgr
}

// dialAddr returns host:port of a proxy URL.
func dialAddr(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse proxy url: %w", err)
	}

	if !slices.Contains(supportedSchemes, u.Scheme) {
		return "", fmt.Errorf("unsupported proxy scheme %q", u.Scheme)
	}

	if u.Hostname() == "" {
		return "", fmt.Errorf("proxy url has no host")
	}

	port := u.Port()
	if port == "" {
		port = defaultPorts[u.Scheme]
		if port == "" {
			port = defaultSOCKSPort
		}
	}

	return net.JoinHostPort(u.Hostname(), port), nil
}

// HasProxies reports whether any proxy is configured.
func (m *Manager) HasProxies() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.proxies) > 0
}

// Next returns the next proxy that is not in backoff, or "" when there is none.
func (m *Manager) Next() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()

	for range len(m.proxies) {
		p := m.proxies[m.next%len(m.proxies)]
		m.next = (m.next + 1) % len(m.proxies)

		if p.available(now) {
			return p.url
		}
	}

	return ""
}

// MarkFailed counts a failed run. After MaxFailures consecutive failures the proxy is parked,
// the backoff doubling with every further failure up to one hour.
func (m *Manager) MarkFailed(proxyURL string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := m.find(proxyURL)
	if p == nil {
		return
	}

	now := m.now()
	p.failures++
	p.lastFailure = now

	maxFailures := max(m.cfg.Proxy.MaxFailures, 1)
	if p.failures < maxFailures {
		return
	}

	backoff := min(m.cfg.Proxy.FailureBackoff<<min(p.failures-maxFailures, 16), maxBackoff)
	p.backoffUntil = now.Add(backoff)

	m.log.Warn("proxy parked",
		slog.String("proxy", proxyURL),
		slog.Int("failures", p.failures),
		slog.Duration("backoff", backoff))
}

// MarkSuccess resets the failure count of a proxy.
func (m *Manager) MarkSuccess(proxyURL string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p := m.find(proxyURL); p != nil {
		p.failures = 0
		p.backoffUntil = time.Time{}
	}
}

// Statuses returns the state of every proxy in configuration order.
func (m *Manager) Statuses() []Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	out := make([]Status, 0, len(m.proxies))

	for _, p := range m.proxies {
		out = append(out, Status{
			URL:          p.url,
			Available:    p.available(now),
			Failures:     p.failures,
			LastFailure:  p.lastFailure,
			BackoffUntil: p.backoffUntil,
			LastCheck:    p.lastCheck,
		})
	}

	return out
}

// HealthCheck opens a TCP connection to the proxy.
func (m *Manager) HealthCheck(ctx context.Context, proxyURL string) error {
	m.mu.Lock()
	p := m.find(proxyURL)
	m.mu.Unlock()

	if p == nil {
		return fmt.Errorf("unknown proxy %q", proxyURL)
	}

	dialer := &net.Dialer{Timeout: healthCheckTimeout}

	conn, err := dialer.DialContext(ctx, "tcp", p.addr)

	m.mu.Lock()
	p.lastCheck = m.now()
	m.mu.Unlock()

	if err != nil {
		m.MarkFailed(proxyURL)

		return fmt.Errorf("dial proxy: %w", err)
	}

	conn.Close()
	m.MarkSuccess(proxyURL)

	return nil
}

// StartHealthChecker checks all proxies every HealthCheckInterval until ctx is done.
func (m *Manager) StartHealthChecker(ctx context.Context) {
	if m.cfg.Proxy.HealthCheckInterval <= 0 || !m.HasProxies() {
		return
	}

	go func() {
		ticker := time.NewTicker(m.cfg.Proxy.HealthCheckInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.checkAll(ctx)
			}
		}
	}()

	m.log.Info("proxy health checker started",
		slog.Duration("interval", m.cfg.Proxy.HealthCheckInterval),
		slog.Int("proxies", len(m.proxies)))
}

func (m *Manager) checkAll(ctx context.Context) {
	for _, s := range m.Statuses() {
		if ctx.Err() != nil {
			return
		}

		if err := m.HealthCheck(ctx, s.URL); err != nil {
			m.log.Debug("proxy health check failed", slog.String("proxy", s.URL), slog.Any("error", err))
		}
	}
}

func (m *Manager) find(proxyURL string) *proxy {
	for _, p := range m.proxies {
		if p.url == proxyURL {
			return p
		}
	}

	return nil
}
