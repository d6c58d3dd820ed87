package validation

import (
	"errors"
	"strings"
	"testing"

	"github.com/YuldShah/uptovipnew/internal/domain"
)

func TestURL(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"youtube", "https://www.youtube.com/watch?v=dQw4w9WgXcQ", false},
		{"plain http", "http://example.com/file.zip", false},
		{"empty", "", true},
		{"invalid scheme", "ftp://example.com", true},
		{"missing host", "https:///path", true},
		{"localhost", "http://localhost:8080", true},
		{"loopback ip", "http://127.0.0.1/x", true},
		{"private ip", "http://192.168.1.10", true},
		{"link local metadata", "http://169.254.169.254/latest", true},
		{"ipv6 loopback", "http://[::1]:9000", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := URL(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("URL(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, domain.ErrInvalidRequest) {
				t.Errorf("error should wrap ErrInvalidRequest, got %v", err)
			}
		})
	}
}

type payload struct {
	URL     string `validate:"required,safe_url"`
	Quality string `validate:"omitempty,oneof=high medium low audio"`
}

func TestStruct(t *testing.T) {
	if err := Struct(payload{URL: "https://youtu.be/abc", Quality: "low"}); err != nil {
		t.Errorf("valid payload rejected: %v", err)
	}

	err := Struct(payload{URL: "http://10.0.0.1", Quality: "ultra"})
	if !errors.Is(err, domain.ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
	msg := err.Error()
	if !strings.Contains(msg, "url must be a public http(s) URL") {
		t.Errorf("message missing url detail: %s", msg)
	}
	if !strings.Contains(msg, "quality must be one of") {
		t.Errorf("message missing quality detail: %s", msg)
	}
}

func TestStruct_Required(t *testing.T) {
	err := Struct(payload{})
	if err == nil || !strings.Contains(err.Error(), "url is required") {
		t.Errorf("expected required error, got %v", err)
	}
}
