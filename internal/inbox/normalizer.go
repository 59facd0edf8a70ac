package inbox

import (
	"encoding/base64"
	"fmt"
	netmail "net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/webfolio/mail-infra/internal/mail"
)

// maxPartDepth bounds the body-part tree walk against pathological payloads
const maxPartDepth = 32

var (
	// The contact form wraps the visitor's text in this container; recovering
	// it from HTML-only messages is best-effort and template-dependent.
	messageWrapperRe = regexp.MustCompile(`(?s)<div class="message">(.*?)</div>`)
	brRe             = regexp.MustCompile(`(?i)<br\s*/?>`)
	tagRe            = regexp.MustCompile(`</?[^>]+>`)
)

// Normalized is the provider-independent rendition of one raw message.
// Direction and read/star flags are filled in by the reconciler from
// label and configuration context.
type Normalized struct {
	Subject   string
	FromName  string
	FromEmail string
	ToEmail   string
	BodyText  *string
	BodyHTML  *string
	Snippet   *string
	Date      time.Time
}

// Normalize decodes a raw provider message into its canonical form.
// It is a pure transformation; the only failure mode is a message with
// no usable From address.
func Normalize(raw mail.RawMessage) (Normalized, error) {
	headers := make(map[string]string, len(raw.Headers))
	for _, h := range raw.Headers {
		headers[strings.ToLower(h.Name)] = h.Value
	}

	fromName, fromEmail := ParseFromHeader(headers["from"])
	if fromEmail == "" {
		return Normalized{}, fmt.Errorf("message %s has no From address", raw.ID)
	}

	var plainText, rawHTML string
	if raw.Body != nil {
		if len(raw.Body.Parts) > 0 {
			extractParts(raw.Body.Parts, &plainText, &rawHTML, 0)
		} else if raw.Body.Data != "" {
			// No nested parts: the whole payload is the body
			if raw.Body.MimeType == "text/plain" {
				plainText = decodeBody(raw.Body.Data)
			} else {
				rawHTML = decodeBody(raw.Body.Data)
			}
		}
	}

	bodyText := plainText
	if bodyText == "" && rawHTML != "" {
		bodyText = recoverTextFromHTML(rawHTML)
	}

	n := Normalized{
		Subject:   headers["subject"],
		FromName:  fromName,
		FromEmail: fromEmail,
		ToEmail:   headers["to"],
		Date:      time.UnixMilli(raw.InternalDate),
	}
	if n.Subject == "" {
		n.Subject = "(no subject)"
	}
	if bodyText != "" {
		n.BodyText = &bodyText
	}
	if rawHTML != "" {
		n.BodyHTML = &rawHTML
	}
	if raw.Snippet != "" {
		snippet := raw.Snippet
		n.Snippet = &snippet
	}

	return n, nil
}

// extractParts walks the part tree. The last plain-text and HTML parts
// encountered win; provider payloads rarely carry more than one of each.
func extractParts(parts []mail.BodyPart, plainText, rawHTML *string, depth int) {
	if depth > maxPartDepth {
		return
	}
	for _, part := range parts {
		if part.MimeType == "text/plain" && part.Data != "" {
			if decoded := decodeBody(part.Data); decoded != "" {
				*plainText = decoded
			}
		}
		if part.MimeType == "text/html" && part.Data != "" {
			if decoded := decodeBody(part.Data); decoded != "" {
				*rawHTML = decoded
			}
		}
		if len(part.Parts) > 0 {
			extractParts(part.Parts, plainText, rawHTML, depth+1)
		}
	}
}

// decodeBody decodes a base64url body payload. Providers are inconsistent
// about padding, so try the unpadded alphabet first.
func decodeBody(data string) string {
	if b, err := base64.RawURLEncoding.DecodeString(data); err == nil {
		return string(b)
	}
	if b, err := base64.URLEncoding.DecodeString(data); err == nil {
		return string(b)
	}
	return ""
}

// recoverTextFromHTML pulls the visitor's message out of the known HTML
// wrapper. Returns "" when the marker is absent; callers fall back to the
// provider snippet.
func recoverTextFromHTML(html string) string {
	match := messageWrapperRe.FindStringSubmatch(html)
	if match == nil {
		return ""
	}
	text := brRe.ReplaceAllString(match[1], "\n")
	text = tagRe.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// ParseFromHeader splits "Display Name <address>" into (name, email).
// A header that is not in that shape is treated as a bare address.
func ParseFromHeader(from string) (name, email string) {
	from = strings.TrimSpace(from)
	if from == "" {
		return "", ""
	}

	if addr, err := netmail.ParseAddress(from); err == nil {
		return strings.Trim(addr.Name, `"`), addr.Address
	}

	// Fall back to a manual split for headers net/mail rejects
	if open := strings.LastIndex(from, "<"); open >= 0 {
		if end := strings.LastIndex(from, ">"); end > open {
			name = strings.Trim(strings.TrimSpace(from[:open]), `"`)
			return name, strings.TrimSpace(from[open+1 : end])
		}
	}
	return "", from
}
