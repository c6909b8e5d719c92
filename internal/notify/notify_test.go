package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestWebhookNotifierPostsPayload(t *testing.T) {
	var got webhookPayload
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			http.Error(w, "bad", http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	t.Cleanup(srv.Close)

	n := NewWebhookNotifier(srv.URL, "secret", time.Second)
	if err := n.Notify(context.Background(), "a@x.com", "482913"); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if got.Address != "a@x.com" || got.Code != "482913" {
		t.Fatalf("unexpected payload %+v", got)
	}
	if auth != "Bearer secret" {
		t.Fatalf("unexpected auth header %q", auth)
	}
}

func TestWebhookNotifierReportsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "mailbox full", http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	err := NewWebhookNotifier(srv.URL, "", time.Second).Notify(context.Background(), "a@x.com", "1")
	if err == nil || !strings.Contains(err.Error(), "mailbox full") {
		t.Fatalf("expected upstream error, got %v", err)
	}
}

func TestWebhookNotifierRequiresURL(t *testing.T) {
	if err := NewWebhookNotifier("", "", 0).Notify(context.Background(), "a", "1"); err == nil {
		t.Fatalf("expected error without URL")
	}
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := LogNotifier{Logger: slog.New(slog.NewTextHandler(&buf, nil))}
	if err := n.Notify(context.Background(), "a@x.com", "123456"); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if !strings.Contains(buf.String(), "123456") {
		t.Fatalf("code not logged: %q", buf.String())
	}
}
