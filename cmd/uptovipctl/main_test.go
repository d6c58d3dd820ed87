package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/YuldShah/uptovipnew/internal/domain"
	"github.com/YuldShah/uptovipnew/internal/fingerprint"
	"github.com/YuldShah/uptovipnew/pkg/crypto"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   map[string]interface{}
}

// fakeServer records admin API calls and answers with canned bodies.
type fakeServer struct {
	mu       sync.Mutex
	requests []recordedRequest
}

func (f *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body map[string]interface{}
	json.NewDecoder(r.Body).Decode(&body)

	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{Method: r.Method, Path: r.URL.Path, Body: body})
	f.mu.Unlock()

	if r.Header.Get("X-API-Key") != "secret" {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"error": "invalid API key"})
		return
	}

	switch {
	case r.URL.Path == "/api/v1/cache/evict":
		json.NewEncoder(w).Encode(map[string]int{"removed": 4})
	case strings.HasPrefix(r.URL.Path, "/api/v1/cache/"):
		w.WriteHeader(http.StatusNoContent)
	case r.URL.Path == "/api/v1/channels" && r.Method == http.MethodPost:
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(body)
	default:
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}

func (f *fakeServer) last() recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func runCtl(t *testing.T, srv *httptest.Server, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	full := append([]string{"-server", srv.URL, "-api-key", "secret"}, args...)
	err := run(context.Background(), full, &stdout, &stderr)
	return stdout.String(), err
}

func TestRun_Fingerprint(t *testing.T) {
	var stdout bytes.Buffer
	err := run(context.Background(), []string{"fingerprint", "-quality", "audio", "https://youtu.be/dQw4w9WgXcQ"}, &stdout, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	want := fingerprint.Build(domain.DownloadRequest{
		SourceURL: "https://youtu.be/dQw4w9WgXcQ",
		Quality:   domain.QualityAudio,
		Format:    domain.FormatVideo,
	})
	if !strings.HasPrefix(stdout.String(), string(want)+"\t") {
		t.Errorf("output = %q, want prefix %s", stdout.String(), want)
	}
}

func TestRun_UnknownCommand(t *testing.T) {
	if err := run(context.Background(), []string{"frobnicate"}, &bytes.Buffer{}, &bytes.Buffer{}); err == nil {
		t.Error("expected error for unknown command")
	}
	if err := run(context.Background(), nil, &bytes.Buffer{}, &bytes.Buffer{}); err == nil {
		t.Error("expected error without a command")
	}
}

func TestRun_InvalidateByURL(t *testing.T) {
	fake := &fakeServer{}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	if _, err := runCtl(t, srv, "invalidate", "https://www.youtube.com/watch?v=dQw4w9WgXcQ"); err != nil {
		t.Fatalf("run: %v", err)
	}

	want := fingerprint.Build(domain.DownloadRequest{
		SourceURL: "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		Quality:   domain.DefaultQuality,
		Format:    domain.FormatVideo,
	})
	got := fake.last()
	if got.Method != http.MethodDelete || got.Path != "/api/v1/cache/"+string(want) {
		t.Errorf("request = %s %s", got.Method, got.Path)
	}
}

func TestRun_Evict(t *testing.T) {
	srv := httptest.NewServer(&fakeServer{})
	defer srv.Close()

	out, err := runCtl(t, srv, "evict")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out, "removed 4") {
		t.Errorf("output = %q", out)
	}
}

func TestRun_SetAccess(t *testing.T) {
	tests := []struct {
		cmd  string
		want string
	}{
		{"ban", "banned"},
		{"whitelist", "whitelisted"},
		{"reset", "normal"},
	}

	for _, tt := range tests {
		t.Run(tt.cmd, func(t *testing.T) {
			fake := &fakeServer{}
			srv := httptest.NewServer(fake)
			defer srv.Close()

			if _, err := runCtl(t, srv, tt.cmd, "42"); err != nil {
				t.Fatalf("run: %v", err)
			}
			got := fake.last()
			if got.Method != http.MethodPut || got.Path != "/api/v1/users/42/access" {
				t.Errorf("request = %s %s", got.Method, got.Path)
			}
			if got.Body["status"] != tt.want {
				t.Errorf("status = %v, want %s", got.Body["status"], tt.want)
			}
		})
	}
}

func TestRun_SetAccessRejectsBadID(t *testing.T) {
	srv := httptest.NewServer(&fakeServer{})
	defer srv.Close()

	if _, err := runCtl(t, srv, "ban", "bob"); err == nil {
		t.Error("expected error for non-numeric user id")
	}
}

func TestRun_ChannelAddNegativeID(t *testing.T) {
	fake := &fakeServer{}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	out, err := runCtl(t, srv, "channel", "add", "-name", "news", "-1001234")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out, "added channel -1001234") {
		t.Errorf("output = %q", out)
	}
	got := fake.last()
	if got.Body["name"] != "news" || got.Body["channel_id"] != float64(-1001234) {
		t.Errorf("body = %v", got.Body)
	}
}

func TestRun_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(&fakeServer{})
	defer srv.Close()

	err := run(context.Background(), []string{"-server", srv.URL, "-api-key", "wrong", "evict"}, &bytes.Buffer{}, &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), "invalid API key") {
		t.Errorf("err = %v", err)
	}
}

func TestRun_EncryptCookies(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "cookies.txt")
	out := filepath.Join(dir, "cookies.enc")
	plain := []byte("# Netscape HTTP Cookie File\n.youtube.com\tTRUE\t/\tTRUE\t0\tSID\tabc\n")
	if err := os.WriteFile(in, plain, 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("COOKIE_PASSPHRASE", "hunter2")

	if err := run(context.Background(), []string{"encrypt-cookies", "-in", in, "-out", out}, &bytes.Buffer{}, &bytes.Buffer{}); err != nil {
		t.Fatalf("run: %v", err)
	}

	if !crypto.IsEncryptedFile(out) {
		t.Fatal("output is not encrypted")
	}
	got, err := crypto.DecryptFile(out, "hunter2")
	if err != nil {
		t.Fatalf("DecryptFile: %v", err)
	}
	if !bytes.Equal(got, plain) {
		t.Error("decrypted content differs")
	}
}
