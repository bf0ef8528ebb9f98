//go:build darwin

package report

var (
	platformPrimary  Opener = CommandOpener{Name: "open"}
	platformFallback Opener
)
