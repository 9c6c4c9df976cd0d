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

// Package config provides configuration management for the charted server.
//
// Configuration comes from a YAML file merged with CHARTED_* environment
// variables; the environment wins. Unknown keys in the file are rejected.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is consulted when neither --config nor
// CHARTED_CONFIG_PATH names a file.
const DefaultConfigPath = "./config.yml"

// Cache strategies.
const (
	CacheInMemory = "inmemory"
	CacheRedis    = "redis"
)

// Storage kinds.
const (
	StorageFilesystem = "filesystem"
	StorageS3         = "s3"
)

// Duration wraps time.Duration so YAML values like "15m" decode.
type Duration time.Duration

// UnmarshalYAML decodes a Go duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("failed to parse duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Database configures the relational store.
type Database struct {
	// URL is a postgres connection string.
	URL string `yaml:"url"`

	// Username and Password override credentials in the URL when set.
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// Schema sets the search_path when non-empty.
	Schema string `yaml:"schema"`

	// Path points at an embedded single-user store. When set (and URL is
	// empty) the server runs on the in-memory entity store and persists
	// nothing across restarts.
	Path string `yaml:"path"`

	// MaxConns bounds the pool; zero keeps the pgxpool default.
	MaxConns int32 `yaml:"max_conns"`

	// ConnectTimeout bounds the initial dial; zero keeps the default.
	ConnectTimeout Duration `yaml:"connect_timeout"`
}

// Filesystem configures the local-disk blob store.
type Filesystem struct {
	// Directory is the store root.
	Directory string `yaml:"directory"`
}

// S3 configures the S3-compatible blob store.
type S3 struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Prefix          string `yaml:"prefix"`
	Endpoint        string `yaml:"endpoint"`
	UsePathStyle    bool   `yaml:"use_path_style"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// Storage selects and configures the blob store backend.
type Storage struct {
	// Kind is "filesystem" or "s3".
	Kind       string     `yaml:"kind"`
	Filesystem Filesystem `yaml:"filesystem"`
	S3         S3         `yaml:"s3"`
}

// Redis configures a Redis connection. A single address dials a standalone
// server; multiple addresses dial a cluster.
type Redis struct {
	Addresses []string `yaml:"addresses"`
	Password  string   `yaml:"password"`
	DB        int      `yaml:"db"`
}

// Cache selects and configures the object cache worker.
type Cache struct {
	// Strategy is "inmemory" or "redis".
	Strategy string `yaml:"strategy"`

	// MaxObjectSize caps a single cached object, in bytes. Zero keeps the
	// package default (1 MiB).
	MaxObjectSize int64 `yaml:"max_object_size"`

	// TTL is how long entries live. Zero keeps the package default (15m).
	TTL Duration `yaml:"ttl"`

	// Redis holds connection settings for the redis strategy.
	Redis Redis `yaml:"redis"`
}

// Sessions configures the session manager.
type Sessions struct {
	// Redis holds the session store connection. When empty, the cache's
	// Redis connection is reused. Sessions always require Redis, even with
	// the inmemory cache strategy.
	Redis Redis `yaml:"redis"`

	// AccessTokenTTL and RefreshTokenTTL override the 2d/7d defaults.
	AccessTokenTTL  Duration `yaml:"access_token_ttl"`
	RefreshTokenTTL Duration `yaml:"refresh_token_ttl"`
}

// Server configures the HTTP listener.
type Server struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// BaseURL is the externally reachable URL prefix embedded into
	// index.yaml tarball links. Defaults to http://<host>:<port>.
	BaseURL string `yaml:"base_url"`

	// MetricsAddr is the address the Prometheus endpoint binds to.
	// Empty disables the metrics listener.
	MetricsAddr string `yaml:"metrics_addr"`
}

// Addr returns the host:port the server binds to.
func (s Server) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// Config is the root configuration document.
type Config struct {
	Database Database `yaml:"database"`
	Storage  Storage  `yaml:"storage"`
	Cache    Cache    `yaml:"cache"`
	Sessions Sessions `yaml:"sessions"`

	// JWTSecretKey signs session tokens. Required to run the server.
	JWTSecretKey string `yaml:"jwt_secret_key"`

	Server Server `yaml:"server"`

	// SingleUser restricts the instance to one user and disables
	// registrations regardless of the Registrations flag.
	SingleUser bool `yaml:"single_user"`

	// Registrations controls whether PUT /v1/users is open.
	Registrations bool `yaml:"registrations"`

	// Debug is env-only (CHARTED_DEBUG); it is not a file key.
	Debug bool `yaml:"-"`

	// DistributionKind is env-only (CHARTED_DISTRIBUTION_KIND) and is
	// reported verbatim by GET /v1/info.
	DistributionKind string `yaml:"-"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Storage: Storage{
			Kind:       StorageFilesystem,
			Filesystem: Filesystem{Directory: "./data"},
		},
		Cache: Cache{Strategy: CacheInMemory},
		Server: Server{
			Host: "0.0.0.0",
			Port: 3651,
		},
		Registrations:    true,
		DistributionKind: "git",
	}
}

// ResolvePath picks the config file to load: the explicit flag value wins,
// then CHARTED_CONFIG_PATH, then ./config.yml if it exists. An empty result
// means "defaults plus environment only".
func ResolvePath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if v := os.Getenv("CHARTED_CONFIG_PATH"); v != "" {
		return v
	}
	if _, err := os.Stat(DefaultConfigPath); err == nil {
		return DefaultConfigPath
	}
	return ""
}

// Load reads the YAML file at path (when non-empty) over the defaults, then
// overlays the CHARTED_* environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		defer f.Close()

		dec := yaml.NewDecoder(f)
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config file %s: %w", path, err)
		}
	}

	if err := cfg.loadEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadEnv overlays recognized CHARTED_* environment variables.
// Unrecognized variables are ignored.
func (c *Config) loadEnv() error {
	envString(&c.Database.URL, "CHARTED_DATABASE_URL")
	envString(&c.Database.Username, "CHARTED_DATABASE_USERNAME")
	envString(&c.Database.Password, "CHARTED_DATABASE_PASSWORD")
	envString(&c.Database.Schema, "CHARTED_DATABASE_SCHEMA")
	envString(&c.Database.Path, "CHARTED_DATABASE_PATH")
	envString(&c.Cache.Strategy, "CHARTED_CACHE_STRATEGY")
	envString(&c.DistributionKind, "CHARTED_DISTRIBUTION_KIND")

	if v := os.Getenv("CHARTED_MAX_OBJECT_CACHE_SIZE"); v != "" {
		size, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("failed to parse CHARTED_MAX_OBJECT_CACHE_SIZE: %w", err)
		}
		c.Cache.MaxObjectSize = size
	}
	if v := os.Getenv("CHARTED_CACHE_INMEMORY_TTL"); v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("failed to parse CHARTED_CACHE_INMEMORY_TTL: %w", err)
		}
		c.Cache.TTL = Duration(ttl)
	}
	if v := os.Getenv("CHARTED_DEBUG"); v != "" {
		c.Debug = v == "true" || v == "1"
	}
	return nil
}

// Validate checks the configuration for running the server. The migrations
// subcommands only need ValidateDatabase.
func (c *Config) Validate() error {
	if err := c.ValidateDatabase(); err != nil {
		return err
	}

	switch c.Storage.Kind {
	case StorageFilesystem:
		if c.Storage.Filesystem.Directory == "" {
			return errors.New("storage.filesystem.directory is required")
		}
	case StorageS3:
		if c.Storage.S3.Bucket == "" {
			return errors.New("storage.s3.bucket is required")
		}
	default:
		return fmt.Errorf("unknown storage kind %q", c.Storage.Kind)
	}

	switch c.Cache.Strategy {
	case CacheInMemory:
	case CacheRedis:
		if len(c.Cache.Redis.Addresses) == 0 {
			return errors.New("cache.redis.addresses is required for the redis strategy")
		}
	default:
		return fmt.Errorf("unknown cache strategy %q", c.Cache.Strategy)
	}

	if len(c.SessionRedis().Addresses) == 0 {
		return errors.New("sessions.redis.addresses is required")
	}
	if c.JWTSecretKey == "" {
		return errors.New("jwt_secret_key is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	return nil
}

// ValidateDatabase checks only the settings the migrations subcommands need.
func (c *Config) ValidateDatabase() error {
	if c.Database.URL == "" && c.Database.Path == "" {
		return errors.New("database.url is required")
	}
	return nil
}

// SessionRedis returns the Redis connection for the session manager,
// falling back to the cache's connection when sessions has none of its own.
func (c *Config) SessionRedis() Redis {
	if len(c.Sessions.Redis.Addresses) > 0 {
		return c.Sessions.Redis
	}
	return c.Cache.Redis
}

// RegistrationsEnabled reports whether new users may sign up.
func (c *Config) RegistrationsEnabled() bool {
	return c.Registrations && !c.SingleUser
}

// BaseURL returns the external URL prefix for index.yaml links.
func (c *Config) BaseURL() string {
	if c.Server.BaseURL != "" {
		return c.Server.BaseURL
	}
	host := c.Server.Host
	if host == "0.0.0.0" || host == "::" || host == "" {
		host = "localhost"
	}
	return fmt.Sprintf("http://%s", net.JoinHostPort(host, strconv.Itoa(c.Server.Port)))
}

func envString(target *string, key string) {
	if v := os.Getenv(key); v != "" {
		*target = v
	}
}
