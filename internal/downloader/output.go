package downloader

import (
	"encoding/json"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
)

// printAfterMove makes yt-dlp print the final path of every file once it is in place.
// Changing this may break outputTracker.Observe().
const printAfterMove = "after_move:filepath"

var (
	reExtractAudio = regexp.MustCompile(`^\[ExtractAudio\]\s+Destination:\s+(.+)$`)
	reExtractingTo = regexp.MustCompile(`Extracting audio to (.+)$`)
	reFilepath     = regexp.MustCompile(`(?i)^[^\{\[\n].*\.[a-z0-9]{1,6}$`)
	reIntermediate = regexp.MustCompile(`(?i)(\.part|\.ytdl|\.part-Frag\d+(\.part)?|\.temp\.[a-z0-9]+|\.f\d+\.[a-z0-9]+)$`)
)

// sidecarExts are files yt-dlp writes next to the media file.
var sidecarExts = []string{".jpg", ".jpeg", ".png", ".webp", ".srt", ".vtt", ".ass", ".ssa", ".lrc", ".json", ".description"}

// Metadata is the subset of the yt-dlp info JSON used by the application.
type Metadata struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Uploader  string   `json:"uploader"`
	Extractor string   `json:"extractor"`
	Duration  *float64 `json:"duration"`
	Filepath  string   `json:"filepath"`
	Filename  string   `json:"_filename"`
}

// outputTracker follows yt-dlp output to find the final file path. The latest hint wins.
type outputTracker struct {
	dir          string
	meta         *Metadata
	path         string
	destinations []string
}

func newOutputTracker(dir string) *outputTracker {
	return &outputTracker{dir: dir}
}

// Observe inspects one output line.
func (t *outputTracker) Observe(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}

	if strings.HasPrefix(line, "{") && strings.HasSuffix(line, "}") {
		var meta Metadata
		if err := json.Unmarshal([]byte(line), &meta); err == nil {
			t.meta = &meta

			if p := firstNonEmpty(meta.Filepath, meta.Filename); p != "" {
				t.setPath(p)
				t.destinations = append(t.destinations, t.path)
			}
		}

		return
	}

	if m := reMerging.FindStringSubmatch(line); m != nil {
		t.setPath(m[1])

		return
	}

	if m := reExtractAudio.FindStringSubmatch(line); m != nil {
		t.setPath(m[1])

		return
	}

	if m := reExtractingTo.FindStringSubmatch(line); m != nil {
		t.setPath(m[1])

		return
	}

	if m := reAlreadyDone.FindStringSubmatch(line); m != nil {
		t.setPath(m[1])

		return
	}

	if m := reDestination.FindStringSubmatch(line); m != nil {
		dest := t.abs(m[1])
		t.destinations = append(t.destinations, dest)

		if !reIntermediate.MatchString(dest) && !isSidecar(dest) {
			t.path = dest
		}

		return
	}

	// bare path printed by --print after_move:filepath
	if reFilepath.MatchString(line) && filepath.IsAbs(line) && !isSidecar(line) {
		t.setPath(line)
	}
}

// Path returns the final file path, or "" when none was reported.
func (t *outputTracker) Path() string {
	return t.path
}

// Title returns the media title, falling back to the file name.
func (t *outputTracker) Title() string {
	if t.meta != nil && t.meta.Title != "" {
		return t.meta.Title
	}

	if t.path != "" {
		return strings.TrimSuffix(filepath.Base(t.path), filepath.Ext(t.path))
	}

	return ""
}

// Metadata returns the parsed info JSON, or nil.
func (t *outputTracker) Metadata() *Metadata {
	return t.meta
}

// Destinations returns every file yt-dlp announced, including intermediates.
func (t *outputTracker) Destinations() []string {
	return slices.Clone(t.destinations)
}

func (t *outputTracker) setPath(p string) {
	t.path = t.abs(strings.Trim(strings.TrimSpace(p), `"`))
}

func (t *outputTracker) abs(p string) string {
	p = filepath.Clean(p)
	if !filepath.IsAbs(p) && t.dir != "" {
		p = filepath.Join(t.dir, p)
	}

	return p
}

func isSidecar(p string) bool {
	return slices.Contains(sidecarExts, strings.ToLower(filepath.Ext(p)))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}

	return ""
}
