package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DOCSEARCH_CONFIG", "")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "8090" {
		t.Errorf("expected port 8090, got %q", cfg.Port)
	}
	if cfg.Backend != BackendElasticsearch {
		t.Errorf("expected elasticsearch backend, got %q", cfg.Backend)
	}
	if cfg.ChunkThreshold != 30000 {
		t.Errorf("expected threshold 30000, got %d", cfg.ChunkThreshold)
	}
	if cfg.MaxResults != 1000 {
		t.Errorf("expected max results 1000, got %d", cfg.MaxResults)
	}
	if cfg.ReindexTimeout != 30*time.Minute {
		t.Errorf("expected reindex timeout 30m, got %v", cfg.ReindexTimeout)
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "docsearch.yaml")
	yaml := `
port: "9000"
backend: bleve
bleve_path: /var/lib/docsearch/index
chunk_threshold: 500
job_ttl: 10m
reindex_rate: 2.5
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("PORT", "9100")
	t.Setenv("WORKER_COUNT", "-1")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "9100" {
		t.Errorf("expected env to override file port, got %q", cfg.Port)
	}
	if cfg.Backend != BackendBleve {
		t.Errorf("expected bleve backend from file, got %q", cfg.Backend)
	}
	if cfg.BlevePath != "/var/lib/docsearch/index" {
		t.Errorf("unexpected bleve path %q", cfg.BlevePath)
	}
	if cfg.ChunkThreshold != 500 {
		t.Errorf("expected threshold 500, got %d", cfg.ChunkThreshold)
	}
	if cfg.JobTTL != 10*time.Minute {
		t.Errorf("expected job ttl 10m, got %v", cfg.JobTTL)
	}
	if cfg.ReindexRate != 2.5 {
		t.Errorf("expected reindex rate 2.5, got %v", cfg.ReindexRate)
	}
	if cfg.WorkerCount != 4 {
		t.Errorf("expected non-positive worker count to fall back to 4, got %d", cfg.WorkerCount)
	}
}

func TestLoad_ConfigPathFromEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	if err := os.WriteFile(path, []byte("elastic_index: archive\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DOCSEARCH_CONFIG", path)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ElasticIndex != "archive" {
		t.Errorf("expected index from DOCSEARCH_CONFIG file, got %q", cfg.ElasticIndex)
	}
}

func TestLoad_MissingFileIsIgnored(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err != nil {
		t.Fatalf("expected missing config file to be ignored, got %v", err)
	}
}

func TestLoad_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("port: [unclosed\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	valid := Defaults()
	valid.JWTSecret = "s3cret"

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing secret", func(c *Config) { c.JWTSecret = "" }, "JWT_SECRET"},
		{"unknown backend", func(c *Config) { c.Backend = "solr" }, "BACKEND"},
		{"bleve ok", func(c *Config) { c.Backend = BackendBleve; c.ElasticURL = "" }, ""},
		{"elastic without url", func(c *Config) { c.ElasticURL = "" }, "ELASTIC_URL"},
		{"zero threshold", func(c *Config) { c.ChunkThreshold = 0 }, "CHUNK_THRESHOLD"},
	}
	for _, tt := range tests {
		cfg := valid
		tt.mutate(&cfg)
		err := cfg.Validate()
		if tt.wantErr == "" {
			if err != nil {
				t.Errorf("%s: unexpected error: %v", tt.name, err)
			}
			continue
		}
		if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
			t.Errorf("%s: expected error mentioning %s, got %v", tt.name, tt.wantErr, err)
		}
	}
}
