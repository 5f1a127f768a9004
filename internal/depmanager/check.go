package depmanager

import (
	"bufio"
	"bytes"
	"context"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"mediafetch/internal/entity"
)

const (
	versionTimeout = 10 * time.Second
	// unknownVersion is stamped after a failed check so that the next start rechecks.
	unknownVersion = "0.0.0"
)

// Status describes one dependency as seen by Check.
type Status struct {
	Name    BinaryName `json:"name"`
	Found   bool       `json:"found"`
	Path    string     `json:"path,omitempty"`
	Version string     `json:"version,omitempty"`
	Error   string     `json:"error,omitempty"`
}

// Report is the result of Check.
type Report struct {
	Statuses  []Status  `json:"statuses"`
	CheckedAt time.Time `json:"checkedAt"`
}

// OK reports whether every dependency was found and answered its version query.
func (r Report) OK() bool {
	for _, s := range r.Statuses {
		if !s.Found || s.Error != "" {
			return false
		}
	}

	return true
}

// Check runs every registered binary with its version flag.
func (m *Manager) Check(ctx context.Context) Report {
	report := Report{CheckedAt: time.Now()}

	for _, binary := range Binaries {
		status := Status{Name: binary}

		path, err := m.Path(binary)
		if err != nil {
			status.Error = err.Error()
			report.Statuses = append(report.Statuses, status)

			continue
		}

		status.Found = true
		status.Path = path

		version, err := binaryVersion(ctx, binary, path)
		if err != nil {
			status.Error = err.Error()
		}

		status.Version = version
		report.Statuses = append(report.Statuses, status)
	}

	m.log.InfoContext(ctx, "dependency check finished",
		slog.Bool("ok", report.OK()), slog.Any("statuses", report.Statuses))

	return report
}

func binaryVersion(ctx context.Context, name BinaryName, path string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, versionTimeout)
	defer cancel()

	flag := "-version"
	if name == BinaryYTdlp {
		flag = "--version"
	}

	out, err := exec.CommandContext(ctx, path, flag).Output()
	if err != nil {
		return "", err
	}

	return firstLine(out), nil
}

// firstLine returns the first non-empty line of out.
// ffmpeg prints "ffmpeg version N-... Copyright ..." and only the version token is kept.
func firstLine(out []byte) string {
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) >= 3 && fields[1] == "version" {
			return fields[2]
		}

		return line
	}

	return ""
}

// NeedsCheck reports whether the startup dependency check should run for the given settings.
func NeedsCheck(s entity.Settings, appVersion string, interval time.Duration, now time.Time) bool {
	if s.LastDependencyCheckVersion != appVersion {
		return true
	}

	if s.LastDependencyCheck.IsZero() {
		return true
	}

	return interval > 0 && now.Sub(s.LastDependencyCheck) > interval
}

// Stamp records the outcome of a dependency check in the settings.
func Stamp(s *entity.Settings, report Report, appVersion string) {
	s.LastDependencyCheck = report.CheckedAt

	if report.OK() {
		s.LastDependencyCheckVersion = appVersion

		return
	}

	s.LastDependencyCheckVersion = unknownVersion
}
