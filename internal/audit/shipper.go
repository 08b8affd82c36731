// Package audit handles structured audit record emission for security-relevant
// events such as login attempts, client key administration, and tenant access
// denials. Audit records are intentionally separate from application logs:
// application logs are ephemeral debug output, while audit records are
// immutable evidence with their own consumers and retention requirements. The
// package supports multiple simultaneous destinations (file, webhook) via the
// Shipper interface so records can be routed to a SIEM independently of the
// application's own logging pipeline.
package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"
)

// LogEntry represents a structured audit record
type LogEntry struct {
	Timestamp    time.Time `json:"timestamp"`
	Action       string    `json:"action"`
	UserID       string    `json:"user_id,omitempty"`
	TenantID     string    `json:"tenant_id,omitempty"`
	ResourceType string    `json:"resource_type,omitempty"`
	ResourceID   string    `json:"resource_id,omitempty"`
	IPAddress    string    `json:"ip_address,omitempty"`
	AuthMethod   string    `json:"auth_method,omitempty"`
	StatusCode   int       `json:"status_code,omitempty"`
}

// Shipper defines the interface for audit record shipping
type Shipper interface {
	// Ship sends an audit record to the destination
	Ship(ctx context.Context, entry *LogEntry) error
	// Close cleans up any resources
	Close() error
}

// ShipperConfig holds configuration for one audit destination
type ShipperConfig struct {
	Enabled bool           `json:"enabled"`
	Type    string         `json:"type"`
	Webhook *WebhookConfig `json:"webhook,omitempty"`
	File    *FileConfig    `json:"file,omitempty"`
}

// WebhookConfig holds webhook shipper configuration
type WebhookConfig struct {
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
	Timeout time.Duration     `json:"timeout"`
}

// FileConfig holds file shipper configuration
type FileConfig struct {
	Path string `json:"path"`
}

// MultiShipper ships to multiple destinations. A failure at one destination
// does not stop delivery to the others.
type MultiShipper struct {
	shippers []Shipper
	mu       sync.RWMutex
}

// NewMultiShipper creates a multi-shipper from configs, skipping disabled
// entries
func NewMultiShipper(configs []ShipperConfig) (*MultiShipper, error) {
	ms := &MultiShipper{}

	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}

		var shipper Shipper
		var err error

		switch cfg.Type {
		case "webhook":
			if cfg.Webhook == nil {
				return nil, fmt.Errorf("webhook config is required for webhook shipper")
			}
			shipper, err = NewWebhookShipper(cfg.Webhook)
		case "file":
			if cfg.File == nil {
				return nil, fmt.Errorf("file config is required for file shipper")
			}
			shipper, err = NewFileShipper(cfg.File)
		default:
			return nil, fmt.Errorf("unknown shipper type: %s", cfg.Type)
		}

		if err != nil {
			return nil, fmt.Errorf("failed to create %s shipper: %w", cfg.Type, err)
		}

		ms.shippers = append(ms.shippers, shipper)
	}

	return ms, nil
}

// Ship sends an entry to all configured shippers. The first error is
// returned after every shipper has been attempted.
func (ms *MultiShipper) Ship(ctx context.Context, entry *LogEntry) error {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	var firstErr error
	for _, s := range ms.shippers {
		if err := s.Ship(ctx, entry); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Close closes all shippers
func (ms *MultiShipper) Close() error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	var firstErr error
	for _, s := range ms.shippers {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	ms.shippers = nil
	return firstErr
}

// Count returns the number of active destinations
func (ms *MultiShipper) Count() int {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return len(ms.shippers)
}

// FileShipper appends JSON lines to a local file
type FileShipper struct {
	path string
	mu   sync.Mutex
	file *os.File
}

// NewFileShipper creates a file shipper, opening the file for append
func NewFileShipper(cfg *FileConfig) (*FileShipper, error) {
	f, err := os.OpenFile(cfg.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit file: %w", err)
	}
	return &FileShipper{path: cfg.Path, file: f}, nil
}

// Ship writes the entry as one JSON line
func (fs *FileShipper) Ship(_ context.Context, entry *LogEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.file == nil {
		return fmt.Errorf("audit file shipper is closed")
	}
	_, err = fs.file.Write(append(data, '\n'))
	return err
}

// Close closes the underlying file
func (fs *FileShipper) Close() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.file == nil {
		return nil
	}
	err := fs.file.Close()
	fs.file = nil
	return err
}

// WebhookShipper POSTs entries as JSON to an HTTP endpoint
type WebhookShipper struct {
	url     string
	headers map[string]string
	client  *http.Client
}

// NewWebhookShipper creates a webhook shipper
func NewWebhookShipper(cfg *WebhookConfig) (*WebhookShipper, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("webhook URL is required")
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &WebhookShipper{
		url:     cfg.URL,
		headers: cfg.Headers,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

// Ship POSTs the entry to the webhook endpoint
func (ws *WebhookShipper) Ship(ctx context.Context, entry *LogEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ws.url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range ws.headers {
		req.Header.Set(k, v)
	}

	resp, err := ws.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("audit webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// Close is a no-op for webhook shippers
func (ws *WebhookShipper) Close() error {
	return nil
}
