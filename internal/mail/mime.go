package mail

import (
	"fmt"
	"strings"
)

// BuildRawMIME assembles a minimal HTML email for the Gmail raw-send API.
// The result is the plain MIME text; the adapter base64url-encodes it.
func BuildRawMIME(from, to, subject, html string) string {
	lines := []string{
		fmt.Sprintf("From: %s", from),
		fmt.Sprintf("To: %s", to),
		fmt.Sprintf("Subject: %s", subject),
		"MIME-Version: 1.0",
		"Content-Type: text/html; charset=UTF-8",
		"",
		html,
	}
	return strings.Join(lines, "\r\n")
}
