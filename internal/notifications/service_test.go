package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"radarpipe/internal/config"
	"radarpipe/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyVolumeProcessed(context.Background(), "RADAR01_VOLA_20240101T120000Z", "/out.json"); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsMessages(t *testing.T) {
	type captured struct {
		title    string
		tags     string
		priority string
		body     string
	}

	var got captured
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got = captured{
			title:    r.Header.Get("Title"),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
			body:     string(body),
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	svc := notifications.NewService(&cfg)

	if err := svc.NotifyVolumeProcessed(context.Background(), "RADAR01_VOLA_20240101T120000Z", "/processed/out.json"); err != nil {
		t.Fatalf("notify processed: %v", err)
	}
	if got.title != "Radarpipe - Volume Processed" {
		t.Errorf("title = %q", got.title)
	}
	if !strings.Contains(got.body, "RADAR01_VOLA_20240101T120000Z") || !strings.Contains(got.body, "/processed/out.json") {
		t.Errorf("body = %q", got.body)
	}
	if got.tags != "radarpipe,volume,processed" {
		t.Errorf("tags = %q", got.tags)
	}

	if err := svc.NotifyVolumeFailed(context.Background(), "RADAR01_VOLA_20240101T120000Z", errors.New("gate size mismatch")); err != nil {
		t.Fatalf("notify failed: %v", err)
	}
	if got.priority != "high" {
		t.Errorf("failure priority = %q", got.priority)
	}
	if !strings.Contains(got.body, "gate size mismatch") {
		t.Errorf("failure body = %q", got.body)
	}
}

func TestNtfyServiceReportsServerErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic quota exceeded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	svc := notifications.NewService(&cfg)

	err := svc.TestNotification(context.Background())
	if err == nil {
		t.Fatal("expected error from failing server")
	}
	if !strings.Contains(err.Error(), "429") {
		t.Errorf("error = %v", err)
	}
}
