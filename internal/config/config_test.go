/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Storage.Kind != StorageFilesystem {
		t.Errorf("Storage.Kind = %q, want filesystem", cfg.Storage.Kind)
	}
	if cfg.Cache.Strategy != CacheInMemory {
		t.Errorf("Cache.Strategy = %q, want inmemory", cfg.Cache.Strategy)
	}
	if !cfg.Registrations {
		t.Error("Registrations should default to true")
	}
	if got := cfg.Server.Addr(); got != "0.0.0.0:3651" {
		t.Errorf("Server.Addr() = %q, want 0.0.0.0:3651", got)
	}
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
database:
  url: postgres://localhost:5432/charted
  schema: charted
cache:
  strategy: redis
  ttl: 30m
  redis:
    addresses: ["localhost:6379"]
jwt_secret_key: hunter2
server:
  port: 8080
  base_url: https://charts.noelware.org
registrations: false
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Database.URL != "postgres://localhost:5432/charted" {
		t.Errorf("Database.URL = %q", cfg.Database.URL)
	}
	if cfg.Cache.TTL.Std() != 30*time.Minute {
		t.Errorf("Cache.TTL = %v, want 30m", cfg.Cache.TTL.Std())
	}
	if cfg.Registrations {
		t.Error("Registrations should be false")
	}
	if cfg.BaseURL() != "https://charts.noelware.org" {
		t.Errorf("BaseURL() = %q", cfg.BaseURL())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate returned error: %v", err)
	}
}

func TestLoad_UnknownKeyRejected(t *testing.T) {
	path := writeConfig(t, `
database:
  url: postgres://localhost/charted
search:
  backend: elasticsearch
`)

	if _, err := Load(path); err == nil {
		t.Fatal("Load should reject unknown top-level keys")
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
database:
  url: postgres://file-host/charted
cache:
  strategy: inmemory
`)
	t.Setenv("CHARTED_DATABASE_URL", "postgres://env-host/charted")
	t.Setenv("CHARTED_CACHE_STRATEGY", "redis")
	t.Setenv("CHARTED_MAX_OBJECT_CACHE_SIZE", "2048")
	t.Setenv("CHARTED_CACHE_INMEMORY_TTL", "90s")
	t.Setenv("CHARTED_DEBUG", "true")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Database.URL != "postgres://env-host/charted" {
		t.Errorf("Database.URL = %q, env should win", cfg.Database.URL)
	}
	if cfg.Cache.Strategy != CacheRedis {
		t.Errorf("Cache.Strategy = %q, env should win", cfg.Cache.Strategy)
	}
	if cfg.Cache.MaxObjectSize != 2048 {
		t.Errorf("Cache.MaxObjectSize = %d, want 2048", cfg.Cache.MaxObjectSize)
	}
	if cfg.Cache.TTL.Std() != 90*time.Second {
		t.Errorf("Cache.TTL = %v, want 90s", cfg.Cache.TTL.Std())
	}
	if !cfg.Debug {
		t.Error("Debug should be true")
	}
}

func TestLoad_BadDuration(t *testing.T) {
	t.Setenv("CHARTED_CACHE_INMEMORY_TTL", "not-a-duration")
	if _, err := Load(""); err == nil {
		t.Fatal("Load should reject an unparseable TTL")
	}
}

func TestValidate_Failures(t *testing.T) {
	base := func() *Config {
		cfg := Default()
		cfg.Database.URL = "postgres://localhost/charted"
		cfg.Sessions.Redis.Addresses = []string{"localhost:6379"}
		cfg.JWTSecretKey = "hunter2"
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing database", func(c *Config) { c.Database.URL = "" }, "database.url"},
		{"unknown storage kind", func(c *Config) { c.Storage.Kind = "gcs" }, "storage kind"},
		{"s3 without bucket", func(c *Config) { c.Storage.Kind = StorageS3 }, "bucket"},
		{"redis cache without addresses", func(c *Config) { c.Cache.Strategy = CacheRedis }, "cache.redis.addresses"},
		{"missing session redis", func(c *Config) { c.Sessions.Redis.Addresses = nil }, "sessions.redis.addresses"},
		{"missing jwt secret", func(c *Config) { c.JWTSecretKey = "" }, "jwt_secret_key"},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "port"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate should fail")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestSessionRedis_FallsBackToCache(t *testing.T) {
	cfg := Default()
	cfg.Cache.Redis.Addresses = []string{"cache-host:6379"}

	got := cfg.SessionRedis()
	if len(got.Addresses) != 1 || got.Addresses[0] != "cache-host:6379" {
		t.Errorf("SessionRedis() = %+v, want cache connection", got)
	}

	cfg.Sessions.Redis.Addresses = []string{"session-host:6379"}
	if got := cfg.SessionRedis(); got.Addresses[0] != "session-host:6379" {
		t.Errorf("SessionRedis() = %+v, want dedicated connection", got)
	}
}

func TestRegistrationsEnabled(t *testing.T) {
	cfg := Default()
	if !cfg.RegistrationsEnabled() {
		t.Error("registrations should be enabled by default")
	}
	cfg.SingleUser = true
	if cfg.RegistrationsEnabled() {
		t.Error("single-user mode must force registrations off")
	}
}

func TestResolvePath(t *testing.T) {
	if got := ResolvePath("/etc/charted.yml"); got != "/etc/charted.yml" {
		t.Errorf("flag should win, got %q", got)
	}

	t.Setenv("CHARTED_CONFIG_PATH", "/env/charted.yml")
	if got := ResolvePath(""); got != "/env/charted.yml" {
		t.Errorf("env should win over default, got %q", got)
	}
}

func TestBaseURL_DefaultHost(t *testing.T) {
	cfg := Default()
	if got := cfg.BaseURL(); got != "http://localhost:3651" {
		t.Errorf("BaseURL() = %q, want http://localhost:3651", got)
	}
}
