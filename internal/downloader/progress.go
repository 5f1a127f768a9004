package downloader

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"

	"mediafetch/internal/entity"
)

const fullProgress = 100

var (
	reProgressPercent = regexp.MustCompile(`^\[download\]\s+([\d.]+)%`)
	reProgressSpeed   = regexp.MustCompile(`\bat\s+([\d.]+)\s*([KMGT]?i?B)/s`)
	reProgressETA     = regexp.MustCompile(`\bETA\s+(\d+(?::\d+){0,2})`)
	reDestination     = regexp.MustCompile(`^\[download\]\s+Destination:\s+(.+)$`)
	reAlreadyDone     = regexp.MustCompile(`^\[download\]\s+(.+?) has already been downloaded`)
	reMerging         = regexp.MustCompile(`^\[Merger\]\s+Merging formats into "(.+?)"`)
	rePostProcessor   = regexp.MustCompile(
		`^\[(?:ExtractAudio|EmbedSubtitle|EmbedThumbnail|ThumbnailsConvertor|Metadata|Fixup\w*|VideoConvertor|VideoRemuxer|MoveFiles|SponsorBlock|ModifyChapters)\]`)
)

var unitMultipliers = map[string]float64{
	"B":   1,
	"KiB": 1 << 10,
	"MiB": 1 << 20,
	"GiB": 1 << 30,
	"TiB": 1 << 40,
	"KB":  1e3,
	"MB":  1e6,
	"GB":  1e9,
	"TB":  1e12,
}

// ProgressParser turns yt-dlp output lines into progress reports.
// A parser belongs to one download: it tracks the current phase and stream so that
// the reported percent never decreases within a (phase, stream) pair.
type ProgressParser struct {
	last entity.Progress
}

// NewProgressParser creates a parser in the starting phase.
func NewProgressParser() *ProgressParser {
	return &ProgressParser{last: entity.Progress{Phase: entity.PhaseStarting}}
}

// Last returns the most recent progress report.
func (p *ProgressParser) Last() entity.Progress {
	return p.last
}

// Parse parses one output line. It returns false when the line carries no progress information.
func (p *ProgressParser) Parse(line string) (entity.Progress, bool) {
	line = strings.TrimSpace(line)

	switch {
	case reDestination.MatchString(line):
		p.last = entity.Progress{Phase: entity.PhaseDownloading, Stream: p.nextStream()}

		return p.last, true
	case reAlreadyDone.MatchString(line):
		p.last = entity.Progress{Phase: entity.PhaseDownloading, Stream: max(p.last.Stream, 1), Percent: fullProgress}

		return p.last, true
	case reMerging.MatchString(line):
		p.enter(entity.PhaseMerging)

		return p.last, true
	case rePostProcessor.MatchString(line):
		if p.last.Phase == entity.PhaseProcessing {
			return entity.Progress{}, false
		}

		p.enter(entity.PhaseProcessing)

		return p.last, true
	}

	m := reProgressPercent.FindStringSubmatch(line)
	if m == nil {
		return entity.Progress{}, false
	}

	percent, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return entity.Progress{}, false
	}

	next := entity.Progress{
		Percent:          min(percent, fullProgress),
		SpeedBytesPerSec: parseSpeed(line),
		ETASeconds:       parseETA(line),
		Phase:            entity.PhaseDownloading,
		Stream:           max(p.last.Stream, 1),
	}

	if next.SamePhase(p.last) && next.Percent < p.last.Percent {
		next.Percent = p.last.Percent
	}

	p.last = next

	return next, true
}

func (p *ProgressParser) nextStream() int {
	return p.last.Stream + 1
}

func (p *ProgressParser) enter(phase string) {
	p.last = entity.Progress{Phase: phase, Stream: p.last.Stream}
}

func parseSpeed(line string) float64 {
	m := reProgressSpeed.FindStringSubmatch(line)
	if m == nil {
		return 0
	}

	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0
	}

	return value * unitMultipliers[m[2]]
}

// parseETA parses "SS", "MM:SS" or "HH:MM:SS" into seconds. Unknown ETAs yield 0.
func parseETA(line string) int {
	m := reProgressETA.FindStringSubmatch(line)
	if m == nil {
		return 0
	}

	seconds := 0

	for part := range strings.SplitSeq(m[1], ":") {
		n, err := strconv.Atoi(part)
		if err != nil {
			return 0
		}

		seconds = seconds*60 + n
	}

	return seconds
}

// splitLinesAny is a bufio.SplitFunc that splits on \n, \r or \r\n.
// yt-dlp redraws its progress line with bare carriage returns when --newline is not honoured.
func splitLinesAny(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}

	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		if data[i] == '\r' {
			if i+1 < len(data) {
				if data[i+1] == '\n' {
					return i + 2, data[:i], nil
				}

				return i + 1, data[:i], nil
			}

			if !atEOF {
				return 0, nil, nil
			}
		}

		return i + 1, data[:i], nil
	}

	if atEOF {
		return len(data), data, nil
	}

	return 0, nil, nil
}
