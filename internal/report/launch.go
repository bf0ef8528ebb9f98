package report

import (
	"context"
	"os/exec"

	"github.com/pkg/errors"
)

// Opener shows a finished report to the user.
type Opener interface {
	Open(ctx context.Context, path string) error
}

// Launcher tries Primary and, when it fails, Fallback.
type Launcher struct {
	Primary  Opener
	Fallback Opener
}

func (l Launcher) Open(ctx context.Context, path string) error {
	var err error
	if l.Primary != nil {
		if err = l.Primary.Open(ctx, path); err == nil {
			return nil
		}
	}
	if l.Fallback == nil {
		if err == nil {
			err = errors.New("no opener configured")
		}
		return errors.Wrapf(err, "could not launch %s", path)
	}
	if ferr := l.Fallback.Open(ctx, path); ferr != nil {
		return errors.Wrapf(ferr, "could not launch %s", path)
	}
	return nil
}

// CommandOpener starts Name with Args followed by the path and does not
// wait for it to exit.
type CommandOpener struct {
	Name string
	Args []string
}

func (c CommandOpener) Open(_ context.Context, path string) error {
	args := append(append([]string(nil), c.Args...), path)
	cmd := exec.Command(c.Name, args...)
	if err := cmd.Start(); err != nil {
		return errors.Wrapf(err, "%s", c.Name)
	}
	return cmd.Process.Release()
}

// DefaultLauncher returns the platform launcher.
func DefaultLauncher() Launcher {
	return Launcher{Primary: platformPrimary, Fallback: platformFallback}
}
