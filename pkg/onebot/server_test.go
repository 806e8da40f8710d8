package onebot

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const messageEventJSON = `{
	"time": 1700000000,
	"self_id": 10001,
	"post_type": "message",
	"message_type": "private",
	"message_id": 7,
	"user_id": 20002,
	"message": [{"type": "text", "data": {"text": "/chat hello"}}],
	"raw_message": "/chat hello"
}`

func newTestServer(opts ...ServerOption) (*Server, chan *Event) {
	events := make(chan *Event, 1)
	h := EventHandlerFunc(func(ctx context.Context, ev *Event) {
		events <- ev
	})
	opts = append(opts, WithLogger(discardLogger()))
	return NewServer(h, opts...), events
}

func postEvent(t *testing.T, s *Server, body string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestWebhookDispatchesMessageEvent(t *testing.T) {
	s, events := newTestServer()

	rec := postEvent(t, s, messageEventJSON, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}

	select {
	case ev := <-events:
		if ev.UserID != 20002 {
			t.Errorf("UserID = %d, want 20002", ev.UserID)
		}
		if got := ev.Message.PlainText(); got != "/chat hello" {
			t.Errorf("PlainText = %q, want /chat hello", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("event was never dispatched")
	}
}

func TestWebhookIgnoresNonMessageEvents(t *testing.T) {
	s, events := newTestServer()

	rec := postEvent(t, s, `{"post_type":"meta_event","meta_event_type":"heartbeat"}`, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}

	select {
	case ev := <-events:
		t.Fatalf("unexpected dispatch of %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestWebhookRejectsBadJSON(t *testing.T) {
	s, _ := newTestServer()

	rec := postEvent(t, s, `{not json`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestWebhookMethodNotAllowed(t *testing.T) {
	s, _ := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestWebhookSignature(t *testing.T) {
	s, events := newTestServer(WithSecret("hunter2"))

	// Missing signature.
	if rec := postEvent(t, s, messageEventJSON, nil); rec.Code != http.StatusForbidden {
		t.Errorf("status without signature = %d, want 403", rec.Code)
	}

	// Wrong signature.
	h := http.Header{"X-Signature": []string{"sha1=deadbeef"}}
	if rec := postEvent(t, s, messageEventJSON, h); rec.Code != http.StatusForbidden {
		t.Errorf("status with bad signature = %d, want 403", rec.Code)
	}

	// Correct signature.
	mac := hmac.New(sha1.New, []byte("hunter2"))
	mac.Write([]byte(messageEventJSON))
	h = http.Header{"X-Signature": []string{"sha1=" + hex.EncodeToString(mac.Sum(nil))}}
	if rec := postEvent(t, s, messageEventJSON, h); rec.Code != http.StatusNoContent {
		t.Errorf("status with good signature = %d, want 204", rec.Code)
	}

	select {
	case <-events:
	case <-time.After(2 * time.Second):
		t.Fatal("signed event was never dispatched")
	}
}

func TestHealthz(t *testing.T) {
	s, _ := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if got := rec.Body.String(); got != "ok\n" {
		t.Errorf("body = %q, want ok", got)
	}
}

func TestHealthzFailingCheck(t *testing.T) {
	s, _ := newTestServer(WithHealthCheck(func(ctx context.Context) error {
		return errors.New("database unreachable")
	}))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}
