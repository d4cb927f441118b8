package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeClock advances only when told to.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return resp
}

func TestHealth_Initializing(t *testing.T) {
	state := NewState()
	srv := NewServer(state, Options{})

	rec := get(t, srv.Handler(), "/health")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("Expected 503, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected application/json, got %q", ct)
	}
	resp := decode(t, rec)
	if resp.Status != StatusInitializing {
		t.Errorf("Expected status %q, got %q", StatusInitializing, resp.Status)
	}
	if resp.Errors == nil {
		t.Error("Expected errors to be an empty array, got null")
	}
}

func TestHealth_Healthy(t *testing.T) {
	clock := newFakeClock()
	state := NewStateWithClock(clock.Now)
	srv := NewServer(state, Options{})

	clock.Advance(3 * time.Second)
	state.MarkInitialized()
	clock.Advance(2 * time.Second)

	rec := get(t, srv.Handler(), "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	resp := decode(t, rec)
	if resp.Status != StatusHealthy {
		t.Errorf("Expected status %q, got %q", StatusHealthy, resp.Status)
	}
	if resp.Uptime != 5 {
		t.Errorf("Expected uptime 5, got %v", resp.Uptime)
	}
	wantHeartbeat := time.Date(2026, 1, 2, 3, 4, 8, 0, time.UTC).Format(time.RFC3339Nano)
	if resp.LastHeartbeat != wantHeartbeat {
		t.Errorf("Expected lastHeartbeat %s, got %s", wantHeartbeat, resp.LastHeartbeat)
	}
	wantNow := time.Date(2026, 1, 2, 3, 4, 10, 0, time.UTC).Format(time.RFC3339Nano)
	if resp.Timestamp != wantNow {
		t.Errorf("Expected timestamp %s, got %s", wantNow, resp.Timestamp)
	}
}

func TestHealth_StaysHealthyAfterError(t *testing.T) {
	state := NewState()
	srv := NewServer(state, Options{})

	state.MarkInitialized()
	state.RecordError("sync connection dropped")

	rec := get(t, srv.Handler(), "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	resp := decode(t, rec)
	if resp.Status != StatusHealthy {
		t.Errorf("Expected status %q, got %q", StatusHealthy, resp.Status)
	}
	if len(resp.Errors) != 1 || !strings.HasSuffix(resp.Errors[0], ": sync connection dropped") {
		t.Errorf("unexpected errors %q", resp.Errors)
	}
	if !state.Initialized() {
		t.Error("Expected initialized to stay true")
	}
}

func TestHealth_ErrorsTruncated(t *testing.T) {
	state := NewState()
	srv := NewServer(state, Options{})

	for i := 1; i <= 8; i++ {
		state.RecordError(fmt.Sprintf("failure %d", i))
	}

	resp := decode(t, get(t, srv.Handler(), "/health"))
	if len(resp.Errors) != MaxReportedErrors {
		t.Fatalf("Expected %d errors, got %d", MaxReportedErrors, len(resp.Errors))
	}
	for i, e := range resp.Errors {
		want := fmt.Sprintf(": failure %d", i+4)
		if !strings.HasSuffix(e, want) {
			t.Errorf("errors[%d]: expected suffix %q, got %q", i, want, e)
		}
	}
	if got := state.Snapshot().ErrorCount; got != 8 {
		t.Errorf("Expected 8 stored errors, got %d", got)
	}
}

func TestHealth_NotFound(t *testing.T) {
	srv := NewServer(NewState(), Options{})

	for _, path := range []string{"/nonexistent", "/", "/health/extra"} {
		rec := get(t, srv.Handler(), path)
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s: expected 404, got %d", path, rec.Code)
		}
		if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
			t.Errorf("%s: expected non-JSON body", path)
		}
		if json.Valid(rec.Body.Bytes()) {
			t.Errorf("%s: body %q parses as JSON", path, rec.Body.String())
		}
	}
}

func TestHealth_OtherMethodNotFound(t *testing.T) {
	srv := NewServer(NewState(), Options{})

	req := httptest.NewRequest(http.MethodPost, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", rec.Code)
	}
}

func TestServer_Middleware(t *testing.T) {
	var hits int
	srv := NewServer(NewState(), Options{
		Middleware: func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				hits++
				next.ServeHTTP(w, r)
			})
		},
	})

	get(t, srv.Handler(), "/health")
	get(t, srv.Handler(), "/missing")
	if hits != 2 {
		t.Errorf("Expected middleware to see 2 requests, got %d", hits)
	}
}

func TestServer_DefaultAddr(t *testing.T) {
	srv := NewServer(NewState(), Options{})
	if srv.Addr() != ":8000" {
		t.Errorf("Expected :8000, got %s", srv.Addr())
	}
}

func TestState_ConcurrentAccess(t *testing.T) {
	state := NewState()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			state.RecordError(fmt.Sprintf("e%d", i))
			state.Heartbeat()
		}(i)
		go func() {
			defer wg.Done()
			_ = state.Snapshot()
		}()
	}
	wg.Wait()

	if got := state.Snapshot().ErrorCount; got != 10 {
		t.Errorf("Expected 10 errors, got %d", got)
	}
}

func TestServer_StartServesAndStops(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	addr := l.Addr().String()
	l.Close()

	srv := NewServer(NewState(), Options{Addr: addr})
	if err := srv.Start(); err != nil {
		t.Fatalf("Failed to start: %v", err)
	}

	// The listener is bound once Start returns.
	resp, err := http.Get("http://" + addr + "/health")
	if err != nil {
		t.Fatalf("Failed to get health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Expected 503, got %d", resp.StatusCode)
	}

	if err := srv.Stop(context.Background()); err != nil {
		t.Errorf("Failed to stop: %v", err)
	}
}

func TestServer_StartAddressInUse(t *testing.T) {
	held, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	defer held.Close()

	srv := NewServer(NewState(), Options{Addr: held.Addr().String()})
	if err := srv.Start(); err == nil {
		t.Fatal("Expected bind error when the address is taken")
	}
}
