package handler

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/YuldShah/uptovipnew/internal/domain"
)

func sampleEvents() []domain.Event {
	return []domain.Event{
		{ID: "e1", Severity: domain.EventSeverityError, Category: domain.EventCategoryEngine, Message: "yt-dlp failed"},
		{ID: "e2", Severity: domain.EventSeverityWarning, Category: domain.EventCategoryAccess, Message: "membership lookup failed"},
	}
}

func TestEventHandler_List(t *testing.T) {
	src := &mockEventSource{events: sampleEvents()}
	h := NewEventHandler(src, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/events?severity=error&category=engine&limit=10&offset=2&search=yt", nil)
	w := httptest.NewRecorder()
	h.List(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if len(src.queries) != 1 {
		t.Fatalf("queries = %d", len(src.queries))
	}
	q := src.queries[0]
	if q.Limit != 10 || q.Offset != 2 || q.Filter.SearchText != "yt" {
		t.Errorf("query = %+v", q)
	}
	if q.Filter.Severity == nil || *q.Filter.Severity != domain.EventSeverityError {
		t.Error("severity filter not applied")
	}
	if q.Filter.Category == nil || *q.Filter.Category != domain.EventCategoryEngine {
		t.Error("category filter not applied")
	}
	if src.hist {
		t.Error("ring buffer should be queried by default")
	}
}

func TestEventHandler_ListHistorical(t *testing.T) {
	src := &mockEventSource{}
	h := NewEventHandler(src, testLogger())

	w := httptest.NewRecorder()
	h.List(w, httptest.NewRequest(http.MethodGet, "/api/v1/events?historical=true", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !src.hist {
		t.Error("historical=true should query the repository")
	}
	if !strings.Contains(w.Body.String(), `"events":[]`) {
		t.Errorf("empty result should encode as an empty list: %s", w.Body.String())
	}
}

func TestEventHandler_Recent(t *testing.T) {
	h := NewEventHandler(&mockEventSource{events: sampleEvents()}, testLogger())

	w := httptest.NewRecorder()
	h.Recent(w, httptest.NewRequest(http.MethodGet, "/api/v1/events/recent?limit=1", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"id":"e1"`) || strings.Contains(w.Body.String(), `"id":"e2"`) {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestEventHandler_Stream(t *testing.T) {
	src := &mockEventSource{}
	h := NewEventHandler(src, testLogger())

	srv := httptest.NewServer(http.HandlerFunc(h.Stream))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}

	reader := bufio.NewReader(resp.Body)
	line, _ := reader.ReadString('\n')
	if !strings.HasPrefix(line, "event: connected") {
		t.Fatalf("first line = %q", line)
	}

	deadline := time.Now().Add(2 * time.Second)
	for src.publish(domain.Event{ID: "live-1", Message: "upload failed"}) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("stream ended before the event arrived: %v", err)
		}
		if strings.Contains(line, `"id":"live-1"`) {
			break
		}
	}
}
