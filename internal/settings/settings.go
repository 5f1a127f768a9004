// Package settings loads and saves the user preferences document.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"mediafetch/internal/entity"
	"mediafetch/internal/errs"
	"mediafetch/pkg/fsutil"
)

// Default values of the preferences document.
const (
	DefaultDownloadDirectory = "~/Downloads"
	DefaultFontFamily        = "Segoe UI"
	DefaultFontSize          = 13
	DefaultHotkeyCombo       = "<ctrl>+<shift>+d"
	DefaultCheckVersion      = "0.0.0"
)

// Defaults returns the preferences used when no document exists.
func Defaults() entity.Settings {
	return entity.Settings{
		DownloadDirectory:          DefaultDownloadDirectory,
		DefaultMediaType:           entity.MediaTypeVideo,
		FormatCode:                 entity.FormatBest,
		FontFamily:                 DefaultFontFamily,
		FontSize:                   DefaultFontSize,
		PreferredPlayerCommand:     "",
		SubtitlesEnabled:           false,
		SubtitleLanguages:          []string{"en"},
		EmbedSubtitles:             true,
		AutoPasteOnFocus:           true,
		HotkeyEnabled:              false,
		HotkeyCombo:                DefaultHotkeyCombo,
		LastDependencyCheckVersion: DefaultCheckVersion,
	}
}

type codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) { return json.MarshalIndent(v, "", "  ") }

func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

type yamlCodec struct{}

func (yamlCodec) Marshal(v any) ([]byte, error) { return yaml.Marshal(v) }

func (yamlCodec) Unmarshal(data []byte, v any) error { return yaml.Unmarshal(data, v) }

func codecFor(path string) (codec, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", "":
		return jsonCodec{}, nil
	case ".yaml", ".yml":
		return yamlCodec{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", errs.ErrUnsupportedSettingsFormat, filepath.Ext(path))
	}
}

// Store keeps the current preferences and writes them through to disk.
type Store struct {
	log   *slog.Logger
	path  string
	codec codec

	mu      sync.RWMutex
	current entity.Settings
}

// New creates a settings store for the document at path. The format follows the file extension.
func New(log *slog.Logger, path string) (*Store, error) {
	c, err := codecFor(path)
	if err != nil {
		return nil, err
	}

	return &Store{
		log:     log.With(slog.String("package", "settings")),
		path:    path,
		codec:   c,
		current: Defaults(),
	}, nil
}

// Load reads the document. An absent or unreadable document yields the defaults,
// keys missing from the document keep their default values.
func (s *Store) Load(ctx context.Context) entity.Settings {
	log := s.log.With(slog.String("path", s.path))

	loaded := Defaults()

	data, err := os.ReadFile(s.path)

	switch {
	case errors.Is(err, fs.ErrNotExist):
		log.DebugContext(ctx, "settings document not found, using defaults")
	case err != nil:
		log.WarnContext(ctx, "failed to read settings, using defaults", slog.Any("error", err))
	default:
		if err := s.codec.Unmarshal(data, &loaded); err != nil {
			log.WarnContext(ctx, "settings document is corrupt, using defaults", slog.Any("error", err))

			loaded = Defaults()
		}
	}

	loaded = normalize(loaded)

	s.mu.Lock()
	s.current = loaded
	s.mu.Unlock()

	log.DebugContext(ctx, "settings loaded", slog.Any("settings", loaded))

	return clone(loaded)
}

// Current returns the last loaded or saved preferences.
func (s *Store) Current() entity.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return clone(s.current)
}

// Save overwrites the document with v.
func (s *Store) Save(ctx context.Context, v entity.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.save(ctx, normalize(v))
}

// Update applies fn to the current preferences and saves the result.
func (s *Store) Update(ctx context.Context, fn func(*entity.Settings)) (entity.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := clone(s.current)
	fn(&next)
	next = normalize(next)

	err := s.save(ctx, next)
	if err != nil {
		return entity.Settings{}, err
	}

	return clone(next), nil
}

// save writes v and makes it current. The caller holds mu.
func (s *Store) save(ctx context.Context, v entity.Settings) error {
	data, err := s.codec.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	err = fsutil.WriteFileAtomic(s.path, data)
	if err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	s.current = clone(v)

	s.log.InfoContext(ctx, "settings saved", slog.Any("settings", v))

	return nil
}

// normalize replaces values of the wrong shape with defaults.
func normalize(v entity.Settings) entity.Settings {
	def := Defaults()

	if !v.DefaultMediaType.Valid() {
		v.DefaultMediaType = def.DefaultMediaType
	}

	if v.FontSize <= 0 {
		v.FontSize = def.FontSize
	}

	if strings.TrimSpace(v.FontFamily) == "" {
		v.FontFamily = def.FontFamily
	}

	if strings.TrimSpace(v.FormatCode) == "" {
		v.FormatCode = def.FormatCode
	}

	if v.SubtitleLanguages == nil {
		v.SubtitleLanguages = def.SubtitleLanguages
	}

	if v.LastDependencyCheckVersion == "" {
		v.LastDependencyCheckVersion = def.LastDependencyCheckVersion
	}

	return v
}

func clone(v entity.Settings) entity.Settings {
	v.SubtitleLanguages = slices.Clone(v.SubtitleLanguages)

	return v
}
