//go:build !windows && !darwin

package report

var (
	platformPrimary  Opener = CommandOpener{Name: "xdg-open"}
	platformFallback Opener = CommandOpener{Name: "open"}
)
