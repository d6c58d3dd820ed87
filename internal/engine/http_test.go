package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/YuldShah/uptovipnew/internal/domain"
)

func testHTTPConfig() HTTPConfig {
	return HTTPConfig{UserAgent: "test-agent"}
}

func TestDirectEngine_ContentDisposition(t *testing.T) {
	content := []byte("%PDF-1.4 fake document body")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); ua != "test-agent" {
			t.Errorf("User-Agent = %q, want %q", ua, "test-agent")
		}
		w.Header().Set("Content-Disposition", `attachment; filename="report.pdf"`)
		w.Write(content)
	}))
	defer server.Close()

	e := NewDirectEngine(testHTTPConfig(), testLogger())
	in := fetchInput(t, domain.DownloadRequest{SourceURL: server.URL + "/download?id=7"})
	dl, err := e.Fetch(context.Background(), in)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	if dl.FileName() != "report.pdf" {
		t.Errorf("file name = %q, want report.pdf", dl.FileName())
	}
	if dl.Size != int64(len(content)) {
		t.Errorf("size = %d, want %d", dl.Size, len(content))
	}
	if dl.Kind != domain.ArtifactDocument {
		t.Errorf("kind = %s, want document", dl.Kind)
	}
	data, _ := os.ReadFile(dl.Path)
	if string(data) != string(content) {
		t.Errorf("content = %q", data)
	}
}

func TestDirectEngine_URLBasenameAndKind(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not really a video"))
	}))
	defer server.Close()

	e := NewDirectEngine(testHTTPConfig(), testLogger())
	dl, err := e.Fetch(context.Background(), fetchInput(t, domain.DownloadRequest{SourceURL: server.URL + "/media/clip.mp4"}))
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if dl.FileName() != "clip.mp4" || dl.Kind != domain.ArtifactVideo {
		t.Errorf("got %s (%s), want clip.mp4 (video)", dl.FileName(), dl.Kind)
	}

	// Requesting a document overrides the detected kind.
	dl, err = e.Fetch(context.Background(), fetchInput(t, domain.DownloadRequest{
		SourceURL: server.URL + "/media/clip.mp4",
		Format:    domain.FormatDocument,
	}))
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if dl.Kind != domain.ArtifactDocument {
		t.Errorf("kind = %s, want document", dl.Kind)
	}
}

func TestDirectEngine_SniffsMissingExtension(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("%PDF-1.7\n..."))
	}))
	defer server.Close()

	e := NewDirectEngine(testHTTPConfig(), testLogger())
	dl, err := e.Fetch(context.Background(), fetchInput(t, domain.DownloadRequest{SourceURL: server.URL + "/files/report"}))
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if dl.Ext != ".pdf" {
		t.Errorf("ext = %q, want .pdf", dl.Ext)
	}
}

func TestDirectEngine_StatusMapping(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusForbidden, domain.ErrAuthenticationRequired},
		{http.StatusNotFound, domain.ErrContentUnavailable},
		{http.StatusTooManyRequests, domain.ErrRateLimited},
		{http.StatusServiceUnavailable, domain.ErrUpstream},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			e := NewDirectEngine(testHTTPConfig(), testLogger())
			_, err := e.Fetch(context.Background(), fetchInput(t, domain.DownloadRequest{SourceURL: server.URL + "/a.zip"}))
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestDirectEngine_MaxFileSize(t *testing.T) {
	body := strings.Repeat("a", 2048)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("chunked") == "1" {
			// No Content-Length: the limit is enforced while streaming.
			w.(http.Flusher).Flush()
		}
		w.Write([]byte(body))
	}))
	defer server.Close()

	cfg := testHTTPConfig()
	cfg.MaxFileSize = 1024
	e := NewDirectEngine(cfg, testLogger())

	for _, query := range []string{"", "?chunked=1"} {
		_, err := e.Fetch(context.Background(), fetchInput(t, domain.DownloadRequest{SourceURL: server.URL + "/big.zip" + query}))
		if !errors.Is(err, domain.ErrFileTooLarge) {
			t.Errorf("query %q: error = %v, want ErrFileTooLarge", query, err)
		}
		if domain.IsTransient(err) {
			t.Errorf("query %q: oversized files must not be retried", query)
		}
	}
}

func TestDirectEngine_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := NewDirectEngine(testHTTPConfig(), testLogger())
	_, err := e.Fetch(ctx, fetchInput(t, domain.DownloadRequest{SourceURL: server.URL + "/a.zip"}))
	if domain.KindOf(err) != domain.FailureTimeout {
		t.Errorf("kind = %s, want timeout", domain.KindOf(err))
	}
	if domain.IsTransient(err) {
		t.Error("a cancelled fetch must not be retried")
	}
}

func TestPixeldrainFileID(t *testing.T) {
	tests := []struct {
		url    string
		want   string
		wantOK bool
	}{
		{"https://pixeldrain.com/u/abc123", "abc123", true},
		{"https://pixeldrain.com/file/abc123", "abc123", true},
		{"https://pixeldrain.com/api/file/abc123", "abc123", true},
		{"https://pixeldrain.com/l/list1", "", false},
		{"https://pixeldrain.com/", "", false},
	}
	for _, tt := range tests {
		u, _ := ParseHTTPURL(tt.url)
		got, ok := pixeldrainFileID(u)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("pixeldrainFileID(%s) = %q, %v, want %q, %v", tt.url, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestPixeldrainEngine_Fetch(t *testing.T) {
	var gotPath, gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Disposition", `attachment; filename="movie.mkv"`)
		w.Write([]byte("mkv-bytes"))
	}))
	defer server.Close()

	e := NewPixeldrainEngine(testHTTPConfig(), testLogger())
	e.SetAPIBase(server.URL + "/")

	dl, err := e.Fetch(context.Background(), fetchInput(t, domain.DownloadRequest{SourceURL: "https://pixeldrain.com/u/Xy12"}))
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if gotPath != "/api/file/Xy12" || gotQuery != "download" {
		t.Errorf("requested %s?%s, want /api/file/Xy12?download", gotPath, gotQuery)
	}
	if dl.FileName() != "movie.mkv" || dl.Kind != domain.ArtifactVideo {
		t.Errorf("got %s (%s)", dl.FileName(), dl.Kind)
	}
}

func TestPixeldrainEngine_InvalidURL(t *testing.T) {
	e := NewPixeldrainEngine(testHTTPConfig(), testLogger())
	_, err := e.Fetch(context.Background(), fetchInput(t, domain.DownloadRequest{SourceURL: "https://pixeldrain.com/l/list"}))
	if !errors.Is(err, domain.ErrContentUnavailable) {
		t.Errorf("error = %v, want ErrContentUnavailable", err)
	}
}

const krakenPage = `<html><body>
<form id="dl-form" action="/download/abc123" method="post">
  <input type="hidden" id="dl-token" name="token" value="tok-42">
</form>
</body></html>`

func TestKrakenfilesEngine_Fetch(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/view/abc123/file.html", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(krakenPage))
	})
	mux.HandleFunc("/download/abc123", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if tok := r.FormValue("token"); tok != "tok-42" {
			t.Errorf("token = %q, want tok-42", tok)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","url":"/files/song.mp3"}`))
	})
	mux.HandleFunc("/files/song.mp3", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ID3 audio"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	e := NewKrakenfilesEngine(testHTTPConfig(), testLogger())
	dl, err := e.Fetch(context.Background(), fetchInput(t, domain.DownloadRequest{SourceURL: server.URL + "/view/abc123/file.html"}))
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if dl.FileName() != "song.mp3" || dl.Kind != domain.ArtifactAudio {
		t.Errorf("got %s (%s), want song.mp3 (audio)", dl.FileName(), dl.Kind)
	}
}

func TestKrakenfilesEngine_MissingForm(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body>File not found</body></html>"))
	}))
	defer server.Close()

	e := NewKrakenfilesEngine(testHTTPConfig(), testLogger())
	_, err := e.Fetch(context.Background(), fetchInput(t, domain.DownloadRequest{SourceURL: server.URL + "/view/x/file.html"}))
	if !errors.Is(err, domain.ErrContentUnavailable) {
		t.Errorf("error = %v, want ErrContentUnavailable", err)
	}
}

func TestDetectKind(t *testing.T) {
	dir := t.TempDir()
	write := func(name string, data []byte) string {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, data, 0644); err != nil {
			t.Fatal(err)
		}
		return p
	}

	if got := DetectKind(write("a.zip", []byte("PK\x03\x04"))); got != domain.ArtifactDocument {
		t.Errorf("zip kind = %s, want document", got)
	}
	if got := DetectKind(write("a.mp3", []byte("ID3"))); got != domain.ArtifactAudio {
		t.Errorf("mp3 kind = %s, want audio", got)
	}
	// WAV header is sniffed as audio/wave.
	wav := append([]byte("RIFF\x00\x00\x00\x00WAVEfmt "), make([]byte, 32)...)
	if got := DetectKind(write("sound.dat", wav)); got != domain.ArtifactAudio {
		t.Errorf("sniffed kind = %s, want audio", got)
	}
}
