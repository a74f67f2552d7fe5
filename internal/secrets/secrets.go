// Package secrets resolves credentials the config file should not carry:
// the LLM API key and the store DSN. Backends: environment (default),
// JSON file for development, HashiCorp Vault KV v2.
package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
)

// Well-known secret keys.
const (
	KeyLLMAPIKey = "llm_api_key"
	KeyStoreDSN  = "store_dsn"
)

// Provider is a secret backend.
type Provider interface {
	Get(ctx context.Context, key string) (string, error)
	Name() string
}

// Config selects and configures a backend.
type Config struct {
	// Provider is "env", "file" or "vault". Empty means env.
	Provider string
	Vault    *VaultConfig
	File     *FileConfig
	// EnvPrefix for environment lookups (default "RAGLINE_").
	EnvPrefix string
}

// Manager resolves secrets from the configured backend, falling back to the
// environment, and caches successful lookups.
type Manager struct {
	primary  Provider
	fallback Provider
	mu       sync.RWMutex
	cache    map[string]string
}

// NewManager builds a Manager from config. A nil config uses the environment.
func NewManager(cfg *Config) (*Manager, error) {
	if cfg == nil {
		cfg = &Config{}
	}

	var primary Provider
	var err error
	switch cfg.Provider {
	case "vault":
		primary, err = NewVaultProvider(cfg.Vault)
		if err != nil {
			return nil, fmt.Errorf("secrets: %w", err)
		}
	case "file":
		primary, err = NewFileProvider(cfg.File)
		if err != nil {
			return nil, fmt.Errorf("secrets: %w", err)
		}
	case "env", "":
		primary = NewEnvProvider(cfg.EnvPrefix)
	default:
		return nil, fmt.Errorf("secrets: unknown provider %q", cfg.Provider)
	}

	return &Manager{
		primary:  primary,
		fallback: NewEnvProvider(cfg.EnvPrefix),
		cache:    make(map[string]string),
	}, nil
}

// Get resolves a secret, trying the primary backend then the environment.
func (m *Manager) Get(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	if val, ok := m.cache[key]; ok {
		m.mu.RUnlock()
		return val, nil
	}
	m.mu.RUnlock()

	if val, err := m.primary.Get(ctx, key); err == nil && val != "" {
		m.put(key, val)
		return val, nil
	}
	if m.primary.Name() != m.fallback.Name() {
		if val, err := m.fallback.Get(ctx, key); err == nil && val != "" {
			m.put(key, val)
			return val, nil
		}
	}
	return "", fmt.Errorf("secrets: %s not found", key)
}

// GetOrDefault resolves a secret or returns def when absent.
func (m *Manager) GetOrDefault(ctx context.Context, key, def string) string {
	val, err := m.Get(ctx, key)
	if err != nil || val == "" {
		return def
	}
	return val
}

func (m *Manager) put(key, val string) {
	m.mu.Lock()
	m.cache[key] = val
	m.mu.Unlock()
}

// EnvProvider reads secrets from environment variables, trying the prefixed
// name first (RAGLINE_LLM_API_KEY) and the bare upper-cased key second.
type EnvProvider struct {
	prefix string
}

// NewEnvProvider creates an environment backend.
func NewEnvProvider(prefix string) *EnvProvider {
	if prefix == "" {
		prefix = "RAGLINE_"
	}
	return &EnvProvider{prefix: prefix}
}

func (p *EnvProvider) Name() string { return "env" }

func (p *EnvProvider) Get(_ context.Context, key string) (string, error) {
	upper := strings.ToUpper(key)
	if val := os.Getenv(p.prefix + upper); val != "" {
		return val, nil
	}
	if val := os.Getenv(upper); val != "" {
		return val, nil
	}
	return "", fmt.Errorf("env var not set: %s%s", p.prefix, upper)
}
