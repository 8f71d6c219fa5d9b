package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSendMessage(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bottest-token/sendMessage" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("bad payload: %v", err)
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	tg := NewTelegram(srv.Client(), "test-token", "42")
	tg.baseURL = srv.URL

	if err := tg.SendMessage(context.Background(), "<b>hello</b>"); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if got["chat_id"] != "42" {
		t.Fatalf("unexpected chat id %q", got["chat_id"])
	}
	if got["text"] != "<b>hello</b>" {
		t.Fatalf("unexpected text %q", got["text"])
	}
	if got["parse_mode"] != "HTML" {
		t.Fatalf("unexpected parse mode %q", got["parse_mode"])
	}
}

func TestSendMessageAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"ok":false,"description":"chat not found"}`))
	}))
	defer srv.Close()

	tg := NewTelegram(srv.Client(), "test-token", "42")
	tg.baseURL = srv.URL

	if err := tg.SendMessage(context.Background(), "hi"); err == nil {
		t.Fatal("expected error for non-200 response")
	}
}

func TestDisabledNotifierDropsMessages(t *testing.T) {
	tg := NewTelegram(http.DefaultClient, "", "")
	if tg.Enabled() {
		t.Fatal("notifier without credentials must be disabled")
	}
	if err := tg.SendMessage(context.Background(), "hi"); err != nil {
		t.Fatalf("disabled notifier must drop silently, got %v", err)
	}
}
