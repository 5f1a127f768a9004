// Package config handles application configuration loading and management.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Session replacement policies.
const (
	PolicyReplace = "replace"
	PolicyReject  = "reject"
)

// Config holds the application configuration.
type Config struct {
	HTTP       HTTP
	App        App
	Session    Session
	Media      Media
	Formats    Formats
	Dir        Dir
	DepManager DepManager
	Proxy      Proxy
}

// App holds application-wide configuration.
type App struct {
	LogLevel string `env:"MEDIAFETCH_APP_LOG_LEVEL" envDefault:"info"`
	// Version is compared with the version stamped by the last dependency check.
	Version string `env:"MEDIAFETCH_APP_VERSION" envDefault:"0.3.1"`
	// Downloader selects the downloader implementation: ytdlp or mock.
	Downloader string `env:"MEDIAFETCH_APP_DOWNLOADER" envDefault:"ytdlp"`
}

// Session holds download session configuration.
type Session struct {
	// Policy is applied when a session is started while another one is running.
	Policy string `env:"MEDIAFETCH_SESSION_POLICY" envDefault:"replace"`
	// GracePeriod is how long a terminated downloader may take to exit before it is killed.
	GracePeriod time.Duration `env:"MEDIAFETCH_SESSION_GRACE_PERIOD" envDefault:"5s"`
	// Timeout bounds a whole session, 0 disables it.
	Timeout          time.Duration `env:"MEDIAFETCH_SESSION_TIMEOUT"           envDefault:"0s"`
	EventBuffer      int           `env:"MEDIAFETCH_SESSION_EVENT_BUFFER"      envDefault:"256"`
	ProgressInterval time.Duration `env:"MEDIAFETCH_SESSION_PROGRESS_INTERVAL" envDefault:"200ms"`
}

// Media holds media processor (ffmpeg/ffprobe) configuration.
type Media struct {
	Timeout time.Duration `env:"MEDIAFETCH_MEDIA_TIMEOUT" envDefault:"30s"`
	// ThumbnailOffset is used when the duration of a video is unknown.
	ThumbnailOffset time.Duration `env:"MEDIAFETCH_MEDIA_THUMBNAIL_OFFSET" envDefault:"5s"`
}

// Formats holds format lister configuration.
type Formats struct {
	Timeout time.Duration `env:"MEDIAFETCH_FORMATS_TIMEOUT" envDefault:"30s"`
}

// HTTP holds control API configuration.
type HTTP struct {
	Enabled         bool          `env:"MEDIAFETCH_HTTP_ENABLED"          envDefault:"true"`
	Addr            string        `env:"MEDIAFETCH_HTTP_ADDR"             envDefault:"127.0.0.1:8765"`
	HandlerTimeout  time.Duration `env:"MEDIAFETCH_HTTP_HANDLER_TIMEOUT"  envDefault:"20s"`
	EventsWait      time.Duration `env:"MEDIAFETCH_HTTP_EVENTS_WAIT"      envDefault:"25s"`
	ShutdownTimeout time.Duration `env:"MEDIAFETCH_HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Dir holds directory and file paths.
type Dir struct {
	// Data holds settings.json and history.json unless they are set explicitly.
	Data string `env:"MEDIAFETCH_DIR_DATA" envDefault:"./data"`
	// Downloads is used when neither the request nor the settings name a directory.
	Downloads string `env:"MEDIAFETCH_DIR_DOWNLOAD" envDefault:"./data/downloads"`
	Cache     string `env:"MEDIAFETCH_DIR_CACHE"    envDefault:"./data/cache"` // yt-dlp cache (meta, sigs)

	// must contain cookies.txt file
	// see: https://github.com/yt-dlp/yt-dlp/wiki/FAQ#how-do-i-pass-cookies-to-yt-dlp
	CookieFile string `env:"MEDIAFETCH_DIR_COOKIE_FILE" envDefault:""`

	SettingsFile string `env:"MEDIAFETCH_DIR_SETTINGS_FILE" envDefault:""`
	HistoryFile  string `env:"MEDIAFETCH_DIR_HISTORY_FILE"  envDefault:""`
}

// SetAbsPaths converts all directory paths to absolute paths.
func (c *Dir) SetAbsPaths() error {
	var err error
	if c.Data, err = filepath.Abs(c.Data); err != nil {
		return fmt.Errorf("data: %w", err)
	}

	if c.Downloads, err = filepath.Abs(expandHome(c.Downloads)); err != nil {
		return fmt.Errorf("downloads: %w", err)
	}

	if c.Cache, err = filepath.Abs(c.Cache); err != nil {
		return fmt.Errorf("cache: %w", err)
	}

	if c.CookieFile != "" {
		if c.CookieFile, err = filepath.Abs(c.CookieFile); err != nil {
			return fmt.Errorf("cookie file: %w", err)
		}
	}

	if c.SettingsFile == "" {
		c.SettingsFile = filepath.Join(c.Data, "settings.json")
	}

	if c.SettingsFile, err = filepath.Abs(c.SettingsFile); err != nil {
		return fmt.Errorf("settings file: %w", err)
	}

	if c.HistoryFile == "" {
		c.HistoryFile = filepath.Join(c.Data, "history.json")
	}

	if c.HistoryFile, err = filepath.Abs(c.HistoryFile); err != nil {
		return fmt.Errorf("history file: %w", err)
	}

	return nil
}

// New loads configuration from environment variables.
func New() (*Config, error) {
	cfg := &Config{}

	err := env.Parse(cfg)
	if err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	err = cfg.Dir.SetAbsPaths()
	if err != nil {
		return nil, fmt.Errorf("set absolute paths: %w", err)
	}

	err = cfg.DepManager.SetAbsPaths()
	if err != nil {
		return nil, fmt.Errorf("set dep manager absolute paths: %w", err)
	}

	err = cfg.Session.validate()
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}

	cfg.Proxy.parseList()

	return cfg, nil
}

func (s *Session) validate() error {
	switch s.Policy {
	case PolicyReplace, PolicyReject:
	default:
		return fmt.Errorf("unknown policy %q", s.Policy)
	}

	if s.GracePeriod <= 0 {
		return fmt.Errorf("grace period must be positive, got %s", s.GracePeriod)
	}

	if s.EventBuffer <= 0 {
		s.EventBuffer = 1
	}

	return nil
}

// DepManager holds binary dependency management configuration.
type DepManager struct {
	// BinsDir is the directory where binaries are stored
	BinsDir string `env:"MEDIAFETCH_DEPMANAGER_BINS_DIR" envDefault:"./bins"`
	// UseSystemBinaries indicates whether to use system-installed binaries or download them.
	UseSystemBinaries bool `env:"MEDIAFETCH_DEPMANAGER_USE_SYSTEM_BINARIES" envDefault:"true"`
	// RecheckInterval is how long a successful startup check stays valid.
	RecheckInterval time.Duration `env:"MEDIAFETCH_DEPMANAGER_RECHECK_INTERVAL" envDefault:"720h"`
	// UpdateInterval is how often to check for binary updates, 0 disables it.
	UpdateInterval time.Duration `env:"MEDIAFETCH_DEPMANAGER_UPDATE_INTERVAL" envDefault:"24h"`

	// ffmpeg archive URLs per platform. The archives carry ffprobe too.
	FFmpegSHA256SumsURL string `env:"MEDIAFETCH_DEPMANAGER_FFMPEG_SHA256SUMS_URL" envDefault:"https://github.com/BtbN/FFmpeg-Builds/releases/latest/download/checksums.sha256"`                           //nolint:lll
	FFmpegLinuxARM64    string `env:"MEDIAFETCH_DEPMANAGER_FFMPEG_LINUX_ARM64"    envDefault:"https://github.com/BtbN/FFmpeg-Builds/releases/latest/download/ffmpeg-master-latest-linuxarm64-gpl.tar.xz"` //nolint:lll
	FFmpegLinuxAMD64    string `env:"MEDIAFETCH_DEPMANAGER_FFMPEG_LINUX_AMD64"    envDefault:"https://github.com/BtbN/FFmpeg-Builds/releases/latest/download/ffmpeg-master-latest-linux64-gpl.tar.xz"`    //nolint:lll
	FFmpegWindowsAMD64  string `env:"MEDIAFETCH_DEPMANAGER_FFMPEG_WINDOWS_AMD64"  envDefault:"https://github.com/BtbN/FFmpeg-Builds/releases/latest/download/ffmpeg-master-latest-win64-gpl.zip"`         //nolint:lll

	// yt-dlp binary URLs per platform.
	YTdlpSHA256SumsURL string `env:"MEDIAFETCH_DEPMANAGER_YTDLP_SHA256SUMS_URL" envDefault:"https://github.com/yt-dlp/yt-dlp/releases/latest/download/SHA2-256SUMS"`         //nolint:lll
	YTdlpLinuxARM64    string `env:"MEDIAFETCH_DEPMANAGER_YTDLP_LINUX_ARM64"    envDefault:"https://github.com/yt-dlp/yt-dlp/releases/latest/download/yt-dlp_linux_aarch64"` //nolint:lll
	YTdlpLinuxAMD64    string `env:"MEDIAFETCH_DEPMANAGER_YTDLP_LINUX_AMD64"    envDefault:"https://github.com/yt-dlp/yt-dlp/releases/latest/download/yt-dlp_linux"`         //nolint:lll
	YTdlpDarwin        string `env:"MEDIAFETCH_DEPMANAGER_YTDLP_DARWIN"         envDefault:"https://github.com/yt-dlp/yt-dlp/releases/latest/download/yt-dlp_macos"`         //nolint:lll
	YTdlpWindowsAMD64  string `env:"MEDIAFETCH_DEPMANAGER_YTDLP_WINDOWS_AMD64"  envDefault:"https://github.com/yt-dlp/yt-dlp/releases/latest/download/yt-dlp.exe"`           //nolint:lll
}

// SetAbsPaths converts the BinsDir path to an absolute path.
func (d *DepManager) SetAbsPaths() error {
	var err error
	if d.BinsDir, err = filepath.Abs(d.BinsDir); err != nil {
		return fmt.Errorf("bins dir: %w", err)
	}

	return nil
}

// Proxy holds proxy configuration for downloader invocations.
type Proxy struct {
	// List is a comma-separated list of proxy URLs in socks5h format
	List string `env:"MEDIAFETCH_PROXY_LIST" envDefault:""`
	// HealthCheckInterval is how often to check proxy health
	HealthCheckInterval time.Duration `env:"MEDIAFETCH_PROXY_HEALTH_CHECK_INTERVAL" envDefault:"5m"`
	// FailureBackoff is the initial backoff duration for failed proxies
	FailureBackoff time.Duration `env:"MEDIAFETCH_PROXY_FAILURE_BACKOFF" envDefault:"1m"`
	// MaxFailures is the maximum number of failures before a proxy is temporarily removed
	MaxFailures int `env:"MEDIAFETCH_PROXY_MAX_FAILURES" envDefault:"3"`

	// Proxies is the parsed list of proxy URLs
	Proxies []string `env:"-"`
}

// parseList parses the comma-separated proxy list.
func (p *Proxy) parseList() {
	if p.List == "" {
		return
	}

	for proxy := range strings.SplitSeq(p.List, ",") {
		proxy = strings.TrimSpace(proxy)
		if proxy != "" {
			p.Proxies = append(p.Proxies, proxy)
		}
	}
}

// expandHome replaces a leading ~ with the user's home directory.
func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	return expandHome(path)
}
