package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()
	if cfg.Connections != 8 {
		t.Errorf("expected default connections 8, got %d", cfg.Connections)
	}
	if cfg.MaxSockets != 5 {
		t.Errorf("expected default max sockets 5, got %d", cfg.MaxSockets)
	}
	if cfg.Dir != "." {
		t.Errorf("expected default dir '.', got %q", cfg.Dir)
	}
	if cfg.Retries != 0 {
		t.Errorf("expected retries off by default, got %d", cfg.Retries)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadFromYAML(t *testing.T) {
	yamlContent := `
connections: 16
chunks: 4
retries: 3
limit: 2MB
timeout: 30s
workers: 2
headers:
  X-Trace: abc
proxy: http://proxy.local:3128
`
	configPath := filepath.Join(t.TempDir(), "fget.yaml")
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	cfg, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if cfg.Connections != 16 {
		t.Errorf("expected connections 16, got %d", cfg.Connections)
	}
	if cfg.Chunks != 4 {
		t.Errorf("expected chunks 4, got %d", cfg.Chunks)
	}
	if cfg.Retries != 3 {
		t.Errorf("expected retries 3, got %d", cfg.Retries)
	}
	if cfg.RateLimit != 2*1024*1024 {
		t.Errorf("expected limit 2MB, got %d", cfg.RateLimit)
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("expected timeout 30s, got %v", cfg.Timeout)
	}
	if cfg.Headers["X-Trace"] != "abc" {
		t.Errorf("expected header X-Trace, got %v", cfg.Headers)
	}
	if cfg.KATimeout != 90*time.Second {
		t.Errorf("unset fields should keep defaults, got keep-alive %v", cfg.KATimeout)
	}
}

func TestLoadFromYAMLErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := LoadFromFile(filepath.Join(dir, "absent.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("limit: lots\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFromFile(bad); err == nil {
		t.Error("expected error for an invalid byte size")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("FGET_CONNECTIONS", "12")
	t.Setenv("FGET_LIMIT", "500KB")
	t.Setenv("FGET_TIMEOUT", "45s")
	t.Setenv("FGET_HEADERS", "X-One:1,X-Two:2")
	t.Setenv("FGET_DEBUG", "true")

	cfg := Default()
	cfg.Dir = "/downloads"
	if err := cfg.LoadFromEnv(); err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}
	if cfg.Connections != 12 {
		t.Errorf("expected connections 12, got %d", cfg.Connections)
	}
	if cfg.RateLimit != 500*1024 {
		t.Errorf("expected limit 500KB, got %d", cfg.RateLimit)
	}
	if cfg.Timeout != 45*time.Second {
		t.Errorf("expected timeout 45s, got %v", cfg.Timeout)
	}
	if cfg.Headers["X-One"] != "1" || cfg.Headers["X-Two"] != "2" {
		t.Errorf("unexpected headers %v", cfg.Headers)
	}
	if !cfg.Debug {
		t.Error("expected debug true")
	}
	if cfg.Dir != "/downloads" {
		t.Errorf("unset env should leave dir alone, got %q", cfg.Dir)
	}
}

func TestLoadFromEnvInvalid(t *testing.T) {
	t.Setenv("FGET_CONNECTIONS", "many")
	cfg := Default()
	if err := cfg.LoadFromEnv(); err == nil {
		t.Error("expected error for non-numeric FGET_CONNECTIONS")
	}
}

func TestLoadLayering(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "fget.yaml")
	if err := os.WriteFile(configPath, []byte("connections: 4\nretries: 1\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("FGET_RETRIES", "5")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Connections != 4 {
		t.Errorf("file should set connections 4, got %d", cfg.Connections)
	}
	if cfg.Retries != 5 {
		t.Errorf("env should override retries to 5, got %d", cfg.Retries)
	}
}

func TestMerge(t *testing.T) {
	base := Default()
	base.Headers = map[string]string{"A": "1"}
	merged := base.Merge(Config{Connections: 20, Headers: map[string]string{"B": "2"}})

	if merged.Connections != 20 {
		t.Errorf("expected connections 20, got %d", merged.Connections)
	}
	if merged.Workers != base.Workers {
		t.Errorf("zero override should keep workers %d, got %d", base.Workers, merged.Workers)
	}
	if merged.Headers["A"] != "1" || merged.Headers["B"] != "2" {
		t.Errorf("headers should merge, got %v", merged.Headers)
	}
	if _, ok := base.Headers["B"]; ok {
		t.Error("Merge must not mutate the receiver's headers")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"zero connections", func(c *Config) { c.Connections = 0 }},
		{"negative chunks", func(c *Config) { c.Chunks = -1 }},
		{"negative retries", func(c *Config) { c.Retries = -2 }},
		{"zero workers", func(c *Config) { c.Workers = 0 }},
		{"empty dir", func(c *Config) { c.Dir = "" }},
		{"proxy user without password", func(c *Config) { c.ProxyUsername = "u" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestHTTPClientConfig(t *testing.T) {
	cfg := Default()
	cfg.Proxy = "http://proxy:8080"
	cfg.Token = "tok"
	client := cfg.HTTPClientConfig()
	if client.ProxyURL != "http://proxy:8080" || client.Token != "tok" {
		t.Errorf("unexpected client config %+v", client)
	}
	if client.MaxSocketsPerHost != 5 {
		t.Errorf("expected max sockets 5, got %d", client.MaxSocketsPerHost)
	}
}
