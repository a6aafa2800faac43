package app

import (
	"log"
	"os/exec"
	"runtime"
)

// openBrowser opens url with the platform's default handler. Failures
// are logged, not surfaced; the panel keeps working either way.
func openBrowser(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		log.Printf("app: opening %s: %v", url, err)
	}
}
