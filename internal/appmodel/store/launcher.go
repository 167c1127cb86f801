package store

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
)

// Launcher opens a URI with the system handler for its scheme.
type Launcher interface {
	Launch(ctx context.Context, uri string) error
}

// LauncherFunc adapts a function to the Launcher interface.
type LauncherFunc func(ctx context.Context, uri string) error

// Launch calls f.
func (f LauncherFunc) Launch(ctx context.Context, uri string) error {
	return f(ctx, uri)
}

// ExecLauncher launches URIs through the desktop opener command.
type ExecLauncher struct {
	// GOOS overrides runtime.GOOS when non-empty.
	GOOS string
}

// Command returns the opener command line for uri.
func (l ExecLauncher) Command(uri string) (string, []string) {
	goos := l.GOOS
	if goos == "" {
		goos = runtime.GOOS
	}
	switch goos {
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", uri}
	case "darwin":
		return "open", []string{uri}
	default:
		return "xdg-open", []string{uri}
	}
}

// Launch runs the opener and waits for it to exit.
func (l ExecLauncher) Launch(ctx context.Context, uri string) error {
	name, args := l.Command(uri)
	cmd := exec.CommandContext(ctx, name, args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		if len(out) > 0 {
			return fmt.Errorf("%s: %w: %s", name, err, out)
		}
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}
