package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func sampleEntry() *LogEntry {
	return &LogEntry{
		Timestamp:    time.Now(),
		Action:       "auth.client_login",
		TenantID:     "wdk_abc123",
		ResourceType: "client_key",
		IPAddress:    "203.0.113.9",
		AuthMethod:   "client_key",
		StatusCode:   200,
	}
}

func TestFileShipper_WritesJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	fs, err := NewFileShipper(&FileConfig{Path: path})
	if err != nil {
		t.Fatalf("NewFileShipper: %v", err)
	}

	if err := fs.Ship(context.Background(), sampleEntry()); err != nil {
		t.Fatalf("Ship: %v", err)
	}
	if err := fs.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		t.Fatal("audit file is empty")
	}
	var got LogEntry
	if err := json.Unmarshal(scanner.Bytes(), &got); err != nil {
		t.Fatalf("line is not valid JSON: %v", err)
	}
	if got.Action != "auth.client_login" || got.TenantID != "wdk_abc123" {
		t.Errorf("entry = %+v", got)
	}
}

func TestFileShipper_ShipAfterClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	fs, err := NewFileShipper(&FileConfig{Path: path})
	if err != nil {
		t.Fatalf("NewFileShipper: %v", err)
	}
	fs.Close()

	if err := fs.Ship(context.Background(), sampleEntry()); err == nil {
		t.Error("Ship after Close succeeded, want error")
	}
}

func TestWebhookShipper_PostsEntry(t *testing.T) {
	var received LogEntry
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Content-Type = %q", r.Header.Get("Content-Type"))
		}
		if r.Header.Get("X-Audit-Key") != "secret" {
			t.Errorf("custom header missing")
		}
		json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	ws, err := NewWebhookShipper(&WebhookConfig{
		URL:     srv.URL,
		Headers: map[string]string{"X-Audit-Key": "secret"},
	})
	if err != nil {
		t.Fatalf("NewWebhookShipper: %v", err)
	}

	if err := ws.Ship(context.Background(), sampleEntry()); err != nil {
		t.Fatalf("Ship: %v", err)
	}
	if received.Action != "auth.client_login" {
		t.Errorf("received action = %q", received.Action)
	}
}

func TestWebhookShipper_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ws, err := NewWebhookShipper(&WebhookConfig{URL: srv.URL})
	if err != nil {
		t.Fatalf("NewWebhookShipper: %v", err)
	}
	if err := ws.Ship(context.Background(), sampleEntry()); err == nil {
		t.Error("Ship succeeded against 500 endpoint, want error")
	}
}

func TestWebhookShipper_RequiresURL(t *testing.T) {
	if _, err := NewWebhookShipper(&WebhookConfig{}); err == nil {
		t.Error("NewWebhookShipper with empty URL succeeded, want error")
	}
}

func TestMultiShipper_SkipsDisabledAndFansOut(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	ms, err := NewMultiShipper([]ShipperConfig{
		{Enabled: false, Type: "webhook", Webhook: &WebhookConfig{URL: "http://ignored.invalid"}},
		{Enabled: true, Type: "file", File: &FileConfig{Path: path}},
	})
	if err != nil {
		t.Fatalf("NewMultiShipper: %v", err)
	}
	defer ms.Close()

	if ms.Count() != 1 {
		t.Fatalf("Count = %d, want 1", ms.Count())
	}
	if err := ms.Ship(context.Background(), sampleEntry()); err != nil {
		t.Errorf("Ship: %v", err)
	}
}

func TestMultiShipper_UnknownType(t *testing.T) {
	_, err := NewMultiShipper([]ShipperConfig{{Enabled: true, Type: "carrier-pigeon"}})
	if err == nil {
		t.Error("unknown shipper type accepted, want error")
	}
}
