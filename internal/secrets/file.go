package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
)

// FileConfig configures the JSON-file backend. Development only; the file
// holds plain-text secrets.
type FileConfig struct {
	Path string
}

// FileProvider reads secrets from a flat JSON object on disk.
type FileProvider struct {
	path string
	mu   sync.RWMutex
	data map[string]string
}

// NewFileProvider loads the file at cfg.Path.
func NewFileProvider(cfg *FileConfig) (*FileProvider, error) {
	if cfg == nil || cfg.Path == "" {
		return nil, errors.New("file backend needs a path")
	}
	p := &FileProvider{path: cfg.Path, data: make(map[string]string)}
	if err := p.Reload(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *FileProvider) Name() string { return "file" }

func (p *FileProvider) Get(_ context.Context, key string) (string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	val, ok := p.data[key]
	if !ok {
		return "", fmt.Errorf("secret not in file: %s", key)
	}
	return val, nil
}

// Reload re-reads the file, replacing the in-memory map.
func (p *FileProvider) Reload() error {
	raw, err := os.ReadFile(p.path)
	if err != nil {
		return fmt.Errorf("read secrets file: %w", err)
	}
	data := make(map[string]string)
	if err := json.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("parse secrets file: %w", err)
	}
	p.mu.Lock()
	p.data = data
	p.mu.Unlock()
	return nil
}
