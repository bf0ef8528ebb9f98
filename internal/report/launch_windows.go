//go:build windows

package report

var (
	platformPrimary  Opener = CommandOpener{Name: "rundll32", Args: []string{"url.dll,FileProtocolHandler"}}
	platformFallback Opener = CommandOpener{Name: "rundll32", Args: []string{"SHELL32.DLL,ShellExec_RunDLL"}}
)
