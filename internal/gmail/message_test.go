package gmail

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	gmail "google.golang.org/api/gmail/v1"
)

func encodeBody(s string) string {
	return base64.URLEncoding.EncodeToString([]byte(s))
}

func TestSplitAddress(t *testing.T) {
	tests := []struct {
		name     string
		from     string
		wantName string
		wantAddr string
	}{
		{
			name:     "name and address",
			from:     "Alice Smith <alice@example.com>",
			wantName: "Alice Smith",
			wantAddr: "alice@example.com",
		},
		{
			name:     "quoted name",
			from:     `"GitHub" <noreply@github.com>`,
			wantName: "GitHub",
			wantAddr: "noreply@github.com",
		},
		{
			name:     "bare address",
			from:     "bob@example.com",
			wantName: "",
			wantAddr: "bob@example.com",
		},
		{
			name:     "missing closing bracket",
			from:     `"LinkedIn" <messages-noreply@linkedin.com`,
			wantName: "LinkedIn",
			wantAddr: "messages-noreply@linkedin.com",
		},
		{
			name:     "surrounding whitespace",
			from:     "  Carol <carol@example.com>  ",
			wantName: "Carol",
			wantAddr: "carol@example.com",
		},
		{
			name:     "empty",
			from:     "",
			wantName: "",
			wantAddr: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotName, gotAddr := SplitAddress(tt.from)
			if gotName != tt.wantName {
				t.Errorf("SplitAddress() name = %q, want %q", gotName, tt.wantName)
			}
			if gotAddr != tt.wantAddr {
				t.Errorf("SplitAddress() addr = %q, want %q", gotAddr, tt.wantAddr)
			}
		})
	}
}

func TestHeaderValue(t *testing.T) {
	msg := &gmail.Message{
		Payload: &gmail.MessagePart{
			Headers: []*gmail.MessagePartHeader{
				{Name: "Subject", Value: "Quarterly report"},
				{Name: "from", Value: "Alice <alice@example.com>"},
			},
		},
	}

	if got := HeaderValue(msg, "Subject"); got != "Quarterly report" {
		t.Errorf("HeaderValue(Subject) = %q, want %q", got, "Quarterly report")
	}

	// Header name matching is case-insensitive
	if got := HeaderValue(msg, "From"); got != "Alice <alice@example.com>" {
		t.Errorf("HeaderValue(From) = %q, want %q", got, "Alice <alice@example.com>")
	}

	if got := HeaderValue(msg, "Date"); got != "" {
		t.Errorf("HeaderValue(Date) = %q, want empty", got)
	}

	if got := HeaderValue(&gmail.Message{}, "Subject"); got != "" {
		t.Errorf("HeaderValue on nil payload = %q, want empty", got)
	}
}

func TestExtractBody(t *testing.T) {
	tests := []struct {
		name    string
		payload *gmail.MessagePart
		want    string
	}{
		{
			name: "plain text only",
			payload: &gmail.MessagePart{
				MimeType: "text/plain",
				Body:     &gmail.MessagePartBody{Data: encodeBody("hello world")},
			},
			want: "hello world",
		},
		{
			name: "html preferred over plain",
			payload: &gmail.MessagePart{
				MimeType: "multipart/alternative",
				Parts: []*gmail.MessagePart{
					{
						MimeType: "text/plain",
						Body:     &gmail.MessagePartBody{Data: encodeBody("plain version")},
					},
					{
						MimeType: "text/html",
						Body:     &gmail.MessagePartBody{Data: encodeBody("<p>html version</p>")},
					},
				},
			},
			want: "<p>html version</p>",
		},
		{
			name: "nested multipart",
			payload: &gmail.MessagePart{
				MimeType: "multipart/mixed",
				Parts: []*gmail.MessagePart{
					{
						MimeType: "multipart/alternative",
						Parts: []*gmail.MessagePart{
							{
								MimeType: "text/plain",
								Body:     &gmail.MessagePartBody{Data: encodeBody("nested plain")},
							},
						},
					},
					{
						MimeType: "application/pdf",
						Body:     &gmail.MessagePartBody{AttachmentId: "att1"},
					},
				},
			},
			want: "nested plain",
		},
		{
			name: "standard base64 fallback",
			payload: &gmail.MessagePart{
				MimeType: "text/plain",
				Body:     &gmail.MessagePartBody{Data: base64.StdEncoding.EncodeToString([]byte("std encoded"))},
			},
			want: "std encoded",
		},
		{
			name:    "nil payload",
			payload: nil,
			want:    "",
		},
		{
			name: "no body data",
			payload: &gmail.MessagePart{
				MimeType: "multipart/mixed",
				Parts: []*gmail.MessagePart{
					{MimeType: "application/pdf", Body: &gmail.MessagePartBody{AttachmentId: "att1"}},
				},
			},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractBody(tt.payload); got != tt.want {
				t.Errorf("ExtractBody() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractBodyTruncatesPlainText(t *testing.T) {
	long := strings.Repeat("a", MaxPlainBodyBytes+1000)
	payload := &gmail.MessagePart{
		MimeType: "text/plain",
		Body:     &gmail.MessagePartBody{Data: encodeBody(long)},
	}

	got := ExtractBody(payload)
	if len(got) != MaxPlainBodyBytes {
		t.Errorf("ExtractBody() returned %d bytes, want %d", len(got), MaxPlainBodyBytes)
	}
}

func TestParseMessage(t *testing.T) {
	raw := &gmail.Message{
		Id:           "msg1",
		ThreadId:     "thread1",
		Snippet:      "Your invoice is ready",
		InternalDate: 1700000000000,
		LabelIds:     []string{"INBOX", "UNREAD"},
		Payload: &gmail.MessagePart{
			MimeType: "text/plain",
			Headers: []*gmail.MessagePartHeader{
				{Name: "Subject", Value: "Invoice #42"},
				{Name: "From", Value: "Billing Team <billing@example.com>"},
			},
			Body: &gmail.MessagePartBody{Data: encodeBody("Please find your invoice attached.")},
		},
	}

	msg, err := ParseMessage(raw)
	if err != nil {
		t.Fatalf("ParseMessage() error = %v", err)
	}

	if msg.ID != "msg1" {
		t.Errorf("ID = %q, want msg1", msg.ID)
	}
	if msg.ThreadID != "thread1" {
		t.Errorf("ThreadID = %q, want thread1", msg.ThreadID)
	}
	if msg.Subject != "Invoice #42" {
		t.Errorf("Subject = %q, want Invoice #42", msg.Subject)
	}
	if msg.Sender != "billing@example.com" {
		t.Errorf("Sender = %q, want billing@example.com", msg.Sender)
	}
	if msg.SenderName != "Billing Team" {
		t.Errorf("SenderName = %q, want Billing Team", msg.SenderName)
	}
	if msg.Body != "Please find your invoice attached." {
		t.Errorf("Body = %q", msg.Body)
	}
	if !msg.Unread {
		t.Error("Unread = false, want true")
	}

	wantTime := time.UnixMilli(1700000000000).UTC()
	if !msg.ReceivedAt.Equal(wantTime) {
		t.Errorf("ReceivedAt = %v, want %v", msg.ReceivedAt, wantTime)
	}
}

func TestParseMessageDateHeaderFallback(t *testing.T) {
	raw := &gmail.Message{
		Id: "msg2",
		Payload: &gmail.MessagePart{
			Headers: []*gmail.MessagePartHeader{
				{Name: "Date", Value: "Tue, 14 Nov 2023 22:13:20 +0000"},
			},
		},
	}

	msg, err := ParseMessage(raw)
	if err != nil {
		t.Fatalf("ParseMessage() error = %v", err)
	}

	want := time.Date(2023, time.November, 14, 22, 13, 20, 0, time.UTC)
	if !msg.ReceivedAt.Equal(want) {
		t.Errorf("ReceivedAt = %v, want %v", msg.ReceivedAt, want)
	}
}

func TestParseMessageErrors(t *testing.T) {
	if _, err := ParseMessage(nil); err == nil {
		t.Error("ParseMessage(nil) should return error")
	}

	if _, err := ParseMessage(&gmail.Message{Id: "nopayload"}); err == nil {
		t.Error("ParseMessage() without payload should return error")
	}
}
