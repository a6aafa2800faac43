package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/nhle/workfeed/internal/oauth"
	"github.com/nhle/workfeed/internal/service/syscal"
)

// terminalPresenter runs the consent flow without a windowed browser
// surface: it prints the authorize URL and reads the resulting redirect
// URL back from stdin.
type terminalPresenter struct{}

func (p *terminalPresenter) Present(ctx context.Context, authURL, callbackScheme string) (string, error) {
	fmt.Println("Open this URL in your browser and authorize access:")
	fmt.Println()
	fmt.Println("  " + authURL)
	fmt.Println()
	fmt.Printf("Paste the %s:// redirect URL here (empty line cancels): ", callbackScheme)

	cb := oauth.NewCallback()
	go func() {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			cb.Fail(err)
			return
		}
		if line = strings.TrimSpace(line); line == "" {
			cb.Cancel()
			return
		}
		cb.Resolve(line)
	}()

	return cb.Wait(ctx)
}

// systemEventSource returns the platform calendar source. There is no
// terminal-accessible system calendar store on this build, so access
// reads as restricted and the adapter fails fast without prompting.
func systemEventSource() syscal.EventSource {
	return restrictedEventSource{}
}

type restrictedEventSource struct{}

func (restrictedEventSource) AuthorizationStatus() syscal.AuthorizationStatus {
	return syscal.StatusRestricted
}

func (restrictedEventSource) RequestAccess(ctx context.Context) (bool, error) {
	return false, nil
}

func (restrictedEventSource) Events(ctx context.Context, start, end time.Time) ([]syscal.Event, error) {
	return nil, nil
}
