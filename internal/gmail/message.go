package gmail

import (
	"encoding/base64"
	"fmt"
	"mime"
	"net/mail"
	"strings"
	"time"

	gmail "google.golang.org/api/gmail/v1"
)

const (
	// MaxHTMLBodyBytes caps extracted HTML bodies, which can be very long
	MaxHTMLBodyBytes = 50000

	// MaxPlainBodyBytes caps extracted plain text bodies
	MaxPlainBodyBytes = 5000
)

// Message is a parsed Gmail message, reduced to the fields the
// classification pipeline works with
type Message struct {
	ID         string
	ThreadID   string
	Subject    string
	Sender     string // sender email address
	SenderName string // sender display name, may be empty
	Snippet    string
	Body       string
	ReceivedAt time.Time
	Unread     bool
}

// ParseMessage converts a raw Gmail API message into a Message
func ParseMessage(m *gmail.Message) (*Message, error) {
	if m == nil {
		return nil, fmt.Errorf("message is nil")
	}
	if m.Payload == nil {
		return nil, fmt.Errorf("message %s has no payload", m.Id)
	}

	senderName, sender := SplitAddress(HeaderValue(m, "From"))

	msg := &Message{
		ID:         m.Id,
		ThreadID:   m.ThreadId,
		Subject:    HeaderValue(m, "Subject"),
		Sender:     sender,
		SenderName: senderName,
		Snippet:    m.Snippet,
		Body:       ExtractBody(m.Payload),
		ReceivedAt: receivedAt(m),
		Unread:     hasLabel(m, "UNREAD"),
	}

	return msg, nil
}

// HeaderValue extracts a header value from a Gmail message. Header name
// matching is case-insensitive.
func HeaderValue(m *gmail.Message, header string) string {
	mpart := m.Payload
	if mpart == nil {
		return ""
	}
	for _, mph := range mpart.Headers {
		if strings.EqualFold(mph.Name, header) {
			return mph.Value
		}
	}
	return ""
}

// SplitAddress splits an RFC 5322 From value into display name and address.
// Falls back to naive angle-bracket splitting for the malformed headers
// Gmail passes through unchanged.
func SplitAddress(from string) (name, addr string) {
	from = strings.TrimSpace(from)
	if from == "" {
		return "", ""
	}

	if parsed, err := mail.ParseAddress(from); err == nil {
		return parsed.Name, parsed.Address
	}

	if i := strings.Index(from, "<"); i >= 0 {
		name = strings.Trim(strings.TrimSpace(from[:i]), `"`)
		addr = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(from[i+1:]), ">"))
		if decoded, err := new(mime.WordDecoder).DecodeHeader(name); err == nil {
			name = decoded
		}
		return name, addr
	}

	return "", from
}

// ExtractBody extracts the message body from a payload, preferring HTML
// over plain text and walking nested multipart structures
func ExtractBody(payload *gmail.MessagePart) string {
	htmlBody, plainBody := collectBodies(payload)

	if htmlBody != "" {
		return truncateBytes(htmlBody, MaxHTMLBodyBytes)
	}
	return truncateBytes(plainBody, MaxPlainBodyBytes)
}

// collectBodies gathers the first HTML and first plain text body found in
// the part tree
func collectBodies(part *gmail.MessagePart) (htmlBody, plainBody string) {
	if part == nil {
		return "", ""
	}

	walkParts(part, func(p *gmail.MessagePart) {
		if p.Body == nil || p.Body.Data == "" {
			return
		}
		switch p.MimeType {
		case "text/html":
			if htmlBody == "" {
				htmlBody = decodeBody(p.Body.Data)
			}
		case "text/plain":
			if plainBody == "" {
				plainBody = decodeBody(p.Body.Data)
			}
		}
	})

	return htmlBody, plainBody
}

// decodeBody decodes base64url-encoded body data (Gmail API uses RFC 4648
// base64url encoding). Undecodable data yields an empty string.
func decodeBody(data string) string {
	decoded, err := base64.URLEncoding.DecodeString(data)
	if err != nil {
		// Try with standard base64 if URLEncoding fails
		decoded, err = base64.StdEncoding.DecodeString(data)
		if err != nil {
			return ""
		}
	}
	return string(decoded)
}

// walkParts recursively walks through message parts
func walkParts(part *gmail.MessagePart, fn func(*gmail.MessagePart)) {
	if part == nil {
		return
	}

	fn(part)

	for _, subpart := range part.Parts {
		walkParts(subpart, fn)
	}
}

// receivedAt derives the received time, preferring the Gmail internal
// timestamp over the Date header
func receivedAt(m *gmail.Message) time.Time {
	if m.InternalDate > 0 {
		return time.UnixMilli(m.InternalDate).UTC()
	}
	if dateHeader := HeaderValue(m, "Date"); dateHeader != "" {
		if t, err := mail.ParseDate(dateHeader); err == nil {
			return t.UTC()
		}
	}
	return time.Now().UTC()
}

func hasLabel(m *gmail.Message, label string) bool {
	for _, l := range m.LabelIds {
		if l == label {
			return true
		}
	}
	return false
}

func truncateBytes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	// Cut on a rune boundary
	for max > 0 && (s[max]&0xC0) == 0x80 {
		max--
	}
	return s[:max]
}
