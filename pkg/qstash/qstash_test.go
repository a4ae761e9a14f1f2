package qstash

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestPublish(t *testing.T) {
	t.Parallel()

	var gotPath, gotAuth string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{"messageId":"msg_1"}`))
	}))
	defer srv.Close()

	client := MustNew(Config{URL: srv.URL, Token: "tok"})
	id, err := client.Publish(context.Background(), "https://hooks.example.com/notify", map[string]string{"message": "ready"})
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if id != "msg_1" {
		t.Fatalf("unexpected message id: %s", id)
	}
	if gotAuth != "Bearer tok" {
		t.Fatalf("unexpected auth header: %s", gotAuth)
	}
	if !strings.HasPrefix(gotPath, "/v2/publish/https:/") {
		t.Fatalf("unexpected path: %s", gotPath)
	}
	if gotBody["message"] != "ready" {
		t.Fatalf("unexpected body: %#v", gotBody)
	}
}

func TestPublishErrorStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid token"}`))
	}))
	defer srv.Close()

	client := MustNew(Config{URL: srv.URL, Token: "bad"})
	_, err := client.Publish(context.Background(), "https://hooks.example.com/notify", map[string]string{})
	if err == nil || !strings.Contains(err.Error(), "invalid token") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestNewClientValidates(t *testing.T) {
	t.Parallel()

	if _, err := NewClient(Config{Token: "tok"}); err == nil {
		t.Fatal("expected error for missing url")
	}
	if _, err := NewClient(Config{URL: "https://qstash.upstash.io"}); err == nil {
		t.Fatal("expected error for missing token")
	}
}
