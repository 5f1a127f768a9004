// Package player opens downloaded files with the preferred player or the OS default application.
package player

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"mediafetch/internal/errs"
	"mediafetch/pkg/fsutil"
	"mediafetch/pkg/shellquote"
)

// Placeholder is replaced by the file path in a player command.
const Placeholder = "{file}"

// Player starts external programs without waiting for them.
type Player struct {
	log   *slog.Logger
	goos  string
	start func(name string, args ...string) error
}

// New creates a player for the current OS.
func New(log *slog.Logger) *Player {
	p := &Player{
		log:  log.With(slog.String("package", "player")),
		goos: runtime.GOOS,
	}
	p.start = p.startDetached

	return p
}

// Play opens path with command, or with the OS default application when command is empty.
func (p *Player) Play(ctx context.Context, path, command string) error {
	if !fsutil.Exists(path) {
		return fmt.Errorf("%s: %w", path, errs.ErrFileMissing)
	}

	argv := OpenerCommand(p.goos, path)

	if strings.TrimSpace(command) != "" {
		var err error

		argv, err = PlayerCommand(command, path)
		if err != nil {
			return err
		}
	}

	p.log.InfoContext(ctx, "opening file", slog.String("command", shellquote.Join(argv[0], argv[1:])))

	return p.start(argv[0], argv[1:]...)
}

// Reveal shows path in the file manager.
func (p *Player) Reveal(ctx context.Context, path string) error {
	if !fsutil.Exists(path) {
		return fmt.Errorf("%s: %w", path, errs.ErrFileMissing)
	}

	argv := RevealCommand(p.goos, path)

	p.log.InfoContext(ctx, "revealing file", slog.String("command", shellquote.Join(argv[0], argv[1:])))

	return p.start(argv[0], argv[1:]...)
}

// PlayerCommand splits command shell-style and substitutes the placeholder with path.
// Without a placeholder the path is appended as the last argument.
func PlayerCommand(command, path string) ([]string, error) {
	argv, err := shellquote.Split(command)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrPlayerCommand, err)
	}

	if len(argv) == 0 {
		return nil, fmt.Errorf("%w: empty command", errs.ErrPlayerCommand)
	}

	substituted := false

	for i, arg := range argv {
		if strings.Contains(arg, Placeholder) {
			argv[i] = strings.ReplaceAll(arg, Placeholder, path)
			substituted = true
		}
	}

	if !substituted {
		argv = append(argv, path)
	}

	return argv, nil
}

// OpenerCommand returns the command that opens path with the default application of goos.
func OpenerCommand(goos, path string) []string {
	switch goos {
	case "windows":
		return []string{"cmd", "/c", "start", "", path}
	case "darwin":
		return []string{"open", path}
	default:
		return []string{"xdg-open", path}
	}
}

// RevealCommand returns the command that shows path in the file manager of goos.
func RevealCommand(goos, path string) []string {
	switch goos {
	case "windows":
		return []string{"explorer", "/select," + path}
	case "darwin":
		return []string{"open", "-R", path}
	default:
		return []string{"xdg-open", filepath.Dir(path)}
	}
}

func (p *Player) startDetached(name string, args ...string) error {
	cmd := exec.Command(name, args...) //nolint:noctx // the player outlives the request

	err := cmd.Start()
	if err != nil {
		return fmt.Errorf("start %s: %w", name, err)
	}

	go func() {
		if err := cmd.Wait(); err != nil {
			p.log.Debug("player exited", slog.String("command", name), slog.Any("error", err))
		}
	}()

	return nil
}
