package opener

import (
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
	"strings"
)

// ErrNoURL is returned when a record has no cover image
var ErrNoURL = errors.New("no cover image")

// Opener opens cover image URLs in an external viewer
type Opener struct {
	command string   // configured viewer command, empty for auto-detection
	args    []string // additional arguments for the viewer
	goos    string
	logger  *slog.Logger

	lookPath func(file string) (string, error)
	start    func(name string, args ...string) error
}

// launchPath is one way to start a viewer
type launchPath struct {
	path string // Command path: "feh", or "open-a:AppName"
	args []string
}

// viewers lists the candidate viewers per platform, tried in order
var viewers = map[string][]launchPath{
	"darwin": {
		{path: "open-a:Preview"},
	},
	"linux": {
		{path: "imv"},
		{path: "feh", args: []string{"--scale-down"}},
		{path: "eog"},
	},
}

// New creates an Opener. An empty command picks a viewer automatically.
func New(command string, args []string, logger *slog.Logger) *Opener {
	if logger == nil {
		logger = slog.Default()
	}
	return &Opener{
		command:  strings.TrimSpace(command),
		args:     args,
		goos:     runtime.GOOS,
		logger:   logger,
		lookPath: exec.LookPath,
		start: func(name string, args ...string) error {
			return exec.Command(name, args...).Start()
		},
	}
}

// Open shows url in the configured viewer, a detected one, or the system default
func (o *Opener) Open(url string) error {
	url = strings.TrimSpace(url)
	if url == "" {
		return ErrNoURL
	}

	// Tier 1: configured viewer
	if o.command != "" {
		args := append(append([]string{}, o.args...), url)
		o.logger.Info("opening cover", "command", o.command, "args", args)
		if err := o.start(o.command, args...); err != nil {
			return fmt.Errorf("failed to start %s: %w", o.command, err)
		}
		return nil
	}

	// Tier 2: candidate viewers
	if name, err := o.detectAndOpen(url); err == nil {
		o.logger.Info("opened cover with detected viewer", "viewer", name)
		return nil
	}

	// Tier 3: system default
	return o.openDefault(url)
}

func (o *Opener) detectAndOpen(url string) (string, error) {
	for _, lp := range viewers[o.goos] {
		var err error
		if app, ok := strings.CutPrefix(lp.path, "open-a:"); ok {
			err = o.start("open", "-a", app, url)
		} else if _, err = o.lookPath(lp.path); err == nil {
			err = o.start(lp.path, append(append([]string{}, lp.args...), url)...)
		}
		if err == nil {
			return lp.path, nil
		}
		o.logger.Debug("viewer not available", "path", lp.path, "error", err)
	}
	return "", errors.New("no candidate viewers found")
}

func (o *Opener) openDefault(url string) error {
	o.logger.Info("opening cover with system default", "os", o.goos, "url", url)
	switch o.goos {
	case "darwin":
		return o.start("open", url)
	case "windows":
		return o.start("cmd", "/c", "start", "", url)
	default:
		return o.start("xdg-open", url)
	}
}
