package adapter

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/mmcdole/anikino/internal/domain"
)

// ErrNoPlayer is returned when no player could be started for a playlist
var ErrNoPlayer = errors.New("no media player available")

// Launcher opens resolved playlists in an external media player.
// It implements domain.Player.
type Launcher struct {
	command string   // configured player command, empty to auto-detect
	args    []string // extra arguments placed before the target
	logger  *slog.Logger

	goos     string
	lookPath func(string) (string, error)
	start    func(name string, args ...string) error
}

var _ domain.Player = (*Launcher)(nil)

// playerSpec is one auto-detected player and the arguments it needs to
// play an HLS playlist from disk
type playerSpec struct {
	name    string
	command string   // binary name, or "open-a:App" on macOS
	args    []string // placed before the target
}

// detectOrder lists players known to play local m3u8 playlists, best first
var detectOrder = map[string][]playerSpec{
	"darwin": {
		{name: "iina", command: "open-a:IINA"},
		{name: "mpv", command: "mpv", args: []string{"--force-window=immediate"}},
		{name: "vlc", command: "vlc"},
	},
	"linux": {
		{name: "mpv", command: "mpv", args: []string{"--force-window=immediate"}},
		{name: "celluloid", command: "celluloid"},
		{name: "vlc", command: "vlc", args: []string{"--play-and-exit"}},
	},
	"windows": {
		{name: "mpv", command: "mpv", args: []string{"--force-window=immediate"}},
		{name: "vlc", command: "vlc", args: []string{"--play-and-exit"}},
		{name: "potplayer", command: "PotPlayerMini64.exe"},
	},
}

// NewLauncher creates a Launcher using the configured command, if any
func NewLauncher(command string, args []string, logger *slog.Logger) *Launcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Launcher{
		command:  strings.TrimSpace(command),
		args:     append([]string{}, args...),
		logger:   logger,
		goos:     runtime.GOOS,
		lookPath: exec.LookPath,
		start:    startDetached,
	}
}

// Launch opens target, a local playlist path, without waiting for the
// player to exit
func (l *Launcher) Launch(target string) error {
	if target == "" {
		return fmt.Errorf("launch: empty target")
	}
	if _, err := os.Stat(target); err != nil {
		return fmt.Errorf("launch: playlist not readable: %w", err)
	}

	// Configured player wins and does not fall back
	if l.command != "" {
		l.logger.Info("launching configured player", "command", l.command, "target", target)
		if err := l.run(l.command, l.args, target); err != nil {
			return fmt.Errorf("launch %s: %w", l.command, err)
		}
		return nil
	}

	candidates, ok := detectOrder[l.goos]
	if !ok {
		candidates = detectOrder["linux"]
	}
	for _, p := range candidates {
		if err := l.run(p.command, p.args, target); err != nil {
			l.logger.Debug("player unavailable", "player", p.name, "error", err)
			continue
		}
		l.logger.Info("launched detected player", "player", p.name, "target", target)
		return nil
	}

	l.logger.Info("no known player found, using system default", "os", l.goos)
	if err := l.runDefault(target); err != nil {
		return fmt.Errorf("%w: %v", ErrNoPlayer, err)
	}
	return nil
}

// run starts command with args followed by target
func (l *Launcher) run(command string, args []string, target string) error {
	if app, ok := strings.CutPrefix(command, "open-a:"); ok {
		if l.goos != "darwin" {
			return fmt.Errorf("open -a is only available on macOS")
		}
		openArgs := []string{"-n", "-a", app, target}
		if len(args) > 0 {
			openArgs = append(openArgs, "--args")
			openArgs = append(openArgs, args...)
		}
		return l.start("open", openArgs...)
	}

	if _, err := l.lookPath(command); err != nil {
		return err
	}
	cmdArgs := append(append([]string{}, args...), target)
	return l.start(command, cmdArgs...)
}

// runDefault hands target to the OS file association
func (l *Launcher) runDefault(target string) error {
	switch l.goos {
	case "darwin":
		return l.start("open", target)
	case "windows":
		return l.start("cmd", "/c", "start", "", target)
	default:
		return l.start("xdg-open", target)
	}
}

func startDetached(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	// Reap the child so it does not linger as a zombie
	go func() { _ = cmd.Wait() }()
	return nil
}
