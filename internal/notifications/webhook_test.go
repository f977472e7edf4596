package notifications

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSend_NoWebhook(t *testing.T) {
	s := NewSender("", "TestApp")
	if s.Enabled() {
		t.Fatal("should not be enabled with empty URL")
	}
	// Should log without error
	s.Send(context.Background(), "hello from test")
}

func TestSend_SlackFormat(t *testing.T) {
	var received map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &received)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewSender(srv.URL, "TestApp")
	if !s.Enabled() {
		t.Fatal("should be enabled")
	}

	s.Send(context.Background(), "quandl returned status 500 for AAPL")

	if received["username"] != "TestApp" {
		t.Fatalf("username: got %s", received["username"])
	}
	if !strings.Contains(received["text"], "AAPL") {
		t.Fatalf("text: got %q", received["text"])
	}
}

func TestSend_DiscordFormat(t *testing.T) {
	var received map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &received)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	// URL containing "discord" triggers Discord format
	s := NewSender(srv.URL+"/discord/webhook", "PriceBot")
	s.Send(context.Background(), "upstream failure")

	if received["content"] == "" {
		t.Fatal("content should not be empty for Discord")
	}
	if _, hasText := received["text"]; hasText {
		t.Fatal("Discord payload should not have 'text' field")
	}
}

func TestSend_WebhookError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	s := NewSender(srv.URL, "TestApp")
	// Should not panic, just log the error
	s.Send(context.Background(), "this will be rejected")
}

func TestDefaultAppName(t *testing.T) {
	s := NewSender("", "")
	if s.appName != "PriceGraph" {
		t.Fatalf("expected default app name, got %s", s.appName)
	}
}
