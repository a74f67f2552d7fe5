package secrets

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestEnvProvider_PrefixedWins(t *testing.T) {
	t.Setenv("RAGLINE_LLM_API_KEY", "prefixed")
	t.Setenv("LLM_API_KEY", "bare")

	p := NewEnvProvider("")
	val, err := p.Get(context.Background(), KeyLLMAPIKey)
	if err != nil {
		t.Fatal(err)
	}
	if val != "prefixed" {
		t.Fatalf("val = %q", val)
	}
}

func TestEnvProvider_BareFallback(t *testing.T) {
	t.Setenv("STORE_DSN", "postgresql://localhost/ragdb")

	p := NewEnvProvider("")
	val, err := p.Get(context.Background(), KeyStoreDSN)
	if err != nil {
		t.Fatal(err)
	}
	if val != "postgresql://localhost/ragdb" {
		t.Fatalf("val = %q", val)
	}
}

func TestEnvProvider_Missing(t *testing.T) {
	p := NewEnvProvider("RAGLINE_")
	if _, err := p.Get(context.Background(), "definitely_not_set_xyz"); err == nil {
		t.Fatal("expected error")
	}
}

func TestFileProvider(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secrets.json")
	body, _ := json.Marshal(map[string]string{KeyLLMAPIKey: "sk-test"})
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatal(err)
	}

	p, err := NewFileProvider(&FileConfig{Path: path})
	if err != nil {
		t.Fatal(err)
	}
	val, err := p.Get(context.Background(), KeyLLMAPIKey)
	if err != nil {
		t.Fatal(err)
	}
	if val != "sk-test" {
		t.Fatalf("val = %q", val)
	}
	if _, err := p.Get(context.Background(), "missing"); err == nil {
		t.Fatal("expected error for missing key")
	}
}

func TestFileProvider_Validation(t *testing.T) {
	if _, err := NewFileProvider(nil); err == nil {
		t.Fatal("nil config must fail")
	}
	if _, err := NewFileProvider(&FileConfig{Path: "/does/not/exist.json"}); err == nil {
		t.Fatal("missing file must fail")
	}
}

func TestVaultProvider_Get(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Vault-Token") != "tok" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		if r.URL.Path != "/v1/secret/data/ragline" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"data": map[string]any{KeyLLMAPIKey: "sk-vault"},
			},
		})
	}))
	defer srv.Close()

	p, err := NewVaultProvider(&VaultConfig{Address: srv.URL, Token: "tok"})
	if err != nil {
		t.Fatal(err)
	}
	val, err := p.Get(context.Background(), KeyLLMAPIKey)
	if err != nil {
		t.Fatal(err)
	}
	if val != "sk-vault" {
		t.Fatalf("val = %q", val)
	}
	if _, err := p.Get(context.Background(), "missing"); err == nil {
		t.Fatal("expected error for missing key")
	}
}

func TestVaultProvider_Validation(t *testing.T) {
	if _, err := NewVaultProvider(nil); err == nil {
		t.Fatal("nil config must fail")
	}
	if _, err := NewVaultProvider(&VaultConfig{Address: "http://x"}); err == nil {
		t.Fatal("missing token must fail")
	}
}

func TestManager_PrimaryThenEnvFallback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secrets.json")
	body, _ := json.Marshal(map[string]string{KeyLLMAPIKey: "from-file"})
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("RAGLINE_STORE_DSN", "from-env")

	m, err := NewManager(&Config{Provider: "file", File: &FileConfig{Path: path}})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if val, _ := m.Get(ctx, KeyLLMAPIKey); val != "from-file" {
		t.Fatalf("primary lookup = %q", val)
	}
	if val, _ := m.Get(ctx, KeyStoreDSN); val != "from-env" {
		t.Fatalf("fallback lookup = %q", val)
	}
	if got := m.GetOrDefault(ctx, "absent", "dflt"); got != "dflt" {
		t.Fatalf("default = %q", got)
	}
}

func TestManager_UnknownProvider(t *testing.T) {
	if _, err := NewManager(&Config{Provider: "s3"}); err == nil {
		t.Fatal("expected error")
	}
}
