package storage

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/workdesk/workdesk/internal/config"
)

type fakeBackend struct{}

func (fakeBackend) Upload(context.Context, string, io.Reader, int64) (*UploadResult, error) {
	return &UploadResult{}, nil
}
func (fakeBackend) Download(context.Context, string) (io.ReadCloser, error) { return nil, nil }
func (fakeBackend) Delete(context.Context, string) error                    { return nil }
func (fakeBackend) GetURL(context.Context, string, time.Duration) (string, error) {
	return "", nil
}
func (fakeBackend) Exists(context.Context, string) (bool, error) { return false, nil }

func TestNewStorage_DispatchesByName(t *testing.T) {
	Register("fake", func(*config.Config) (Storage, error) {
		return fakeBackend{}, nil
	})

	cfg := &config.Config{}
	cfg.Storage.DefaultBackend = "fake"

	s, err := NewStorage(cfg)
	if err != nil {
		t.Fatalf("NewStorage: %v", err)
	}
	if _, ok := s.(fakeBackend); !ok {
		t.Errorf("backend = %T, want fakeBackend", s)
	}
}

func TestNewStorage_UnknownBackend(t *testing.T) {
	cfg := &config.Config{}
	cfg.Storage.DefaultBackend = "tape-drive"

	if _, err := NewStorage(cfg); err == nil {
		t.Error("unknown backend accepted, want error")
	}
}
