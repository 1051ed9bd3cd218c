package classify_tools

import (
	"testing"
)

func TestMessageFromArgs(t *testing.T) {
	args := map[string]interface{}{
		"subject":     "Quarterly review",
		"sender":      "boss@example.com",
		"sender_name": "The Boss",
		"content":     "Please prepare the slides.",
	}
	msg := messageFromArgs(args)
	if msg.Subject != "Quarterly review" {
		t.Errorf("Subject = %q, want %q", msg.Subject, "Quarterly review")
	}
	if msg.Sender != "boss@example.com" {
		t.Errorf("Sender = %q, want %q", msg.Sender, "boss@example.com")
	}
	if msg.SenderName != "The Boss" {
		t.Errorf("SenderName = %q, want %q", msg.SenderName, "The Boss")
	}
	if msg.Content != "Please prepare the slides." {
		t.Errorf("Content = %q, want %q", msg.Content, "Please prepare the slides.")
	}
}

func TestMessageFromArgs_MissingAndNonString(t *testing.T) {
	args := map[string]interface{}{
		"subject": 42,
		"content": nil,
	}
	msg := messageFromArgs(args)
	if msg.Subject != "" || msg.Sender != "" || msg.SenderName != "" || msg.Content != "" {
		t.Errorf("expected all-empty message, got %+v", msg)
	}
}

func TestParseMessages_Array(t *testing.T) {
	param := []interface{}{
		map[string]interface{}{"subject": "Hello", "sender": "a@b.com"},
		map[string]interface{}{"content": "body only"},
	}
	msgs, err := parseMessages(param)
	if err != nil {
		t.Fatalf("parseMessages() error = %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("len(msgs) = %d, want 2", len(msgs))
	}
	if msgs[0].Subject != "Hello" {
		t.Errorf("msgs[0].Subject = %q, want %q", msgs[0].Subject, "Hello")
	}
	if msgs[1].Content != "body only" {
		t.Errorf("msgs[1].Content = %q, want %q", msgs[1].Content, "body only")
	}
}

func TestParseMessages_JSONString(t *testing.T) {
	param := `[{"subject":"Sale ends tonight","sender":"deals@shop.com"}]`
	msgs, err := parseMessages(param)
	if err != nil {
		t.Fatalf("parseMessages() error = %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("len(msgs) = %d, want 1", len(msgs))
	}
	if msgs[0].Sender != "deals@shop.com" {
		t.Errorf("msgs[0].Sender = %q, want %q", msgs[0].Sender, "deals@shop.com")
	}
}

func TestParseMessages_EmptyArray(t *testing.T) {
	msgs, err := parseMessages([]interface{}{})
	if err != nil {
		t.Fatalf("parseMessages() error = %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("len(msgs) = %d, want 0", len(msgs))
	}
}

func TestParseMessages_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		param interface{}
	}{
		{"nil", nil},
		{"number", 42},
		{"malformed JSON string", "{not json"},
		{"object instead of array", `{"subject":"x"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseMessages(tt.param); err == nil {
				t.Errorf("parseMessages(%v) expected error, got nil", tt.param)
			}
		})
	}
}

func TestRegisterClassifyTools(t *testing.T) {
	// Registration requires a live MCP server and context; here we only
	// pin the function signature.
	_ = RegisterClassifyTools
}
