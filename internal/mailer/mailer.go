// Package mailer hands a drafted message to the operator's mail client via a
// mailto: deep link. Nothing is sent by this program itself.
package mailer

import (
	"fmt"
	"net/url"
	"os/exec"
	"runtime"
	"strings"
)

// ComposeLink builds a mailto URI for the given address, omitting query
// parameters whose value is empty.
func ComposeLink(address, subject, body string) string {
	link := "mailto:" + address
	params := url.Values{}
	if subject != "" {
		params.Set("subject", subject)
	}
	if body != "" {
		params.Set("body", body)
	}
	if encoded := params.Encode(); encoded != "" {
		// mailto bodies conventionally use %20 rather than + for spaces.
		link += "?" + strings.ReplaceAll(encoded, "+", "%20")
	}
	return link
}

// Opener launches a URI in the operator's default handler.
type Opener func(uri string) error

// OpenSystem launches the URI through the platform launcher.
func OpenSystem(uri string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", uri)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", uri)
	default:
		cmd = exec.Command("xdg-open", uri)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("open mail client: %w", err)
	}
	return nil
}
