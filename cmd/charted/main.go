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

// charted is the Helm chart registry server.
//
// Usage:
//
//	charted server [--config path] [--node-id n]
//	charted migrations run [--config path]
//	charted migrations list [--config path]
//	charted version
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/charted-dev/charted/internal/auth"
	"github.com/charted-dev/charted/internal/caching"
	"github.com/charted-dev/charted/internal/charts"
	"github.com/charted-dev/charted/internal/config"
	"github.com/charted-dev/charted/internal/database"
	"github.com/charted-dev/charted/internal/database/inmem"
	"github.com/charted-dev/charted/internal/database/postgres"
	"github.com/charted-dev/charted/internal/server"
	"github.com/charted-dev/charted/internal/sessions"
	"github.com/charted-dev/charted/internal/storage"
	"github.com/charted-dev/charted/internal/types"
	"github.com/charted-dev/charted/pkg/logging"
	"github.com/charted-dev/charted/pkg/metrics"
)

// Exit codes. Startup covers configuration and dependency wiring; fatal
// covers errors after the listeners are up.
const (
	exitOK      = 0
	exitStartup = 1
	exitFatal   = 2
)

const shutdownTimeout = 30 * time.Second

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		printUsage(os.Stderr)
		return exitStartup
	}

	switch args[0] {
	case "server":
		return runServer(args[1:])
	case "migrations":
		return runMigrations(args[1:])
	case "version", "--version":
		fmt.Printf("charted-server %s (commit %s, built %s)\n", server.Version, server.CommitSHA, server.BuildDate)
		return exitOK
	case "help", "--help", "-h":
		printUsage(os.Stdout)
		return exitOK
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", args[0])
		printUsage(os.Stderr)
		return exitStartup
	}
}

func printUsage(w *os.File) {
	fmt.Fprintln(w, `charted — a free and open Helm chart registry

Commands:
  server              run the registry server
  migrations run      apply pending database migrations
  migrations list     show migrations and whether each has been applied
  version             print build information

Flags:
  --config path       YAML configuration file (default: $CHARTED_CONFIG_PATH,
                      then ./config.yml if it exists)`)
}

// loadConfig registers --config on fs, parses args, and loads the resolved
// configuration file plus the CHARTED_* environment.
func loadConfig(fs *flag.FlagSet, args []string) (*config.Config, error) {
	configPath := fs.String("config", "", "path to the YAML configuration file")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return config.Load(config.ResolvePath(*configPath))
}

func runServer(args []string) int {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	nodeID := fs.Int64("node-id", 0, "snowflake node id, unique per replica")
	cfg, err := loadConfig(fs, args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitStartup
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		return exitStartup
	}

	log, flush, err := logging.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		return exitStartup
	}
	defer flush()
	log = log.WithName("charted")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	inst, cleanup, err := buildInstance(ctx, cfg, *nodeID, log)
	if err != nil {
		log.Error(err, "failed to start")
		return exitStartup
	}
	defer cleanup()

	if err := serve(ctx, cfg, inst, log); err != nil {
		log.Error(err, "server terminated")
		return exitFatal
	}

	log.Info("shutdown complete")
	return exitOK
}

// buildInstance wires every dependency the handlers need. The returned
// cleanup closes them in reverse order of construction.
func buildInstance(ctx context.Context, cfg *config.Config, nodeID int64, log logr.Logger) (*server.Instance, func(), error) {
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}
	fail := func(err error) (*server.Instance, func(), error) {
		cleanup()
		return nil, nil, err
	}

	store, err := newStorage(ctx, cfg)
	if err != nil {
		return fail(fmt.Errorf("failed to initialize storage: %w", err))
	}

	cache, closeCache, err := newCache(cfg)
	if err != nil {
		return fail(fmt.Errorf("failed to initialize cache: %w", err))
	}
	cleanups = append(cleanups, closeCache)

	var (
		users         database.UserStore
		organizations database.OrganizationStore
		repositories  database.RepositoryStore
		releases      database.RepositoryReleaseStore
		apikeys       database.ApiKeyStore
	)
	if cfg.Database.URL != "" {
		mg, err := postgres.NewMigrator(cfg.Database.URL)
		if err != nil {
			return fail(fmt.Errorf("failed to initialize migrator: %w", err))
		}
		if err := mg.Run(); err != nil {
			_ = mg.Close()
			return fail(fmt.Errorf("failed to apply migrations: %w", err))
		}
		if err := mg.Close(); err != nil {
			return fail(fmt.Errorf("failed to close migrator: %w", err))
		}

		pool, err := postgres.Connect(ctx, postgres.Config{
			URL:            cfg.Database.URL,
			Username:       cfg.Database.Username,
			Password:       cfg.Database.Password,
			Schema:         cfg.Database.Schema,
			MaxConns:       cfg.Database.MaxConns,
			ConnectTimeout: cfg.Database.ConnectTimeout.Std(),
		})
		if err != nil {
			return fail(fmt.Errorf("failed to connect to postgres: %w", err))
		}
		cleanups = append(cleanups, pool.Close)

		users = postgres.NewUsers(pool, cache, log)
		organizations = postgres.NewOrganizations(pool, cache, log)
		repositories = postgres.NewRepositories(pool, cache, log)
		releases = postgres.NewReleases(pool, cache, log)
		apikeys = postgres.NewApiKeys(pool, cache, log)
	} else {
		// Embedded single-user mode: entities live in memory and nothing
		// survives a restart except the blob store.
		log.Info("database.url not set, running on the embedded entity store", "path", cfg.Database.Path)
		users = inmem.NewUsers()
		organizations = inmem.NewOrganizations()
		repositories = inmem.NewRepositories()
		releases = inmem.NewReleases()
		apikeys = inmem.NewApiKeys()
	}

	sessionClient := newRedisClient(cfg.SessionRedis())
	cleanups = append(cleanups, func() { _ = sessionClient.Close() })

	var sessionOpts []sessions.Option
	if cfg.Sessions.AccessTokenTTL > 0 || cfg.Sessions.RefreshTokenTTL > 0 {
		sessionOpts = append(sessionOpts,
			sessions.WithTokenTTLs(cfg.Sessions.AccessTokenTTL.Std(), cfg.Sessions.RefreshTokenTTL.Std()))
	}
	manager := sessions.NewManager(sessionClient, []byte(cfg.JWTSecretKey), log, sessionOpts...)
	if err := manager.Recover(ctx); err != nil {
		return fail(fmt.Errorf("failed to recover sessions: %w", err))
	}
	cleanups = append(cleanups, manager.Shutdown)

	snowflake, err := types.NewSnowflake(nodeID)
	if err != nil {
		return fail(fmt.Errorf("failed to initialize snowflake generator: %w", err))
	}

	var recorder metrics.ServerMetricsRecorder = &metrics.NoOpServerMetrics{}
	if cfg.Server.MetricsAddr != "" {
		recorder = metrics.NewServerMetrics(metrics.ServerMetricsConfig{})
	}

	backend := auth.NewLocalBackend()
	inst := &server.Instance{
		Config:  cfg,
		Logger:  log,
		Storage: store,
		Cache:   cache,

		Users:         users,
		Organizations: organizations,
		Repositories:  repositories,
		Releases:      releases,
		ApiKeys:       apikeys,

		Sessions:  manager,
		Engine:    charts.NewEngine(store, cfg.BaseURL(), log),
		Gate:      auth.NewGate(users, apikeys, manager, backend, true, log),
		Backend:   backend,
		Snowflake: snowflake,
		Metrics:   recorder,
	}
	return inst, cleanup, nil
}

func newStorage(ctx context.Context, cfg *config.Config) (storage.Storage, error) {
	switch cfg.Storage.Kind {
	case config.StorageS3:
		return storage.NewS3Storage(ctx, storage.S3Config{
			Bucket:          cfg.Storage.S3.Bucket,
			Region:          cfg.Storage.S3.Region,
			Prefix:          cfg.Storage.S3.Prefix,
			Endpoint:        cfg.Storage.S3.Endpoint,
			UsePathStyle:    cfg.Storage.S3.UsePathStyle,
			AccessKeyID:     cfg.Storage.S3.AccessKeyID,
			SecretAccessKey: cfg.Storage.S3.SecretAccessKey,
		})
	default:
		return storage.NewFilesystemStorage(cfg.Storage.Filesystem.Directory)
	}
}

func newCache(cfg *config.Config) (caching.Worker, func(), error) {
	switch cfg.Cache.Strategy {
	case config.CacheRedis:
		client := newRedisClient(cfg.Cache.Redis)
		var opts []caching.RedisOption
		if ttl := cfg.Cache.TTL.Std(); ttl > 0 {
			opts = append(opts, caching.WithRedisTTL(ttl))
		}
		if cfg.Cache.MaxObjectSize > 0 {
			opts = append(opts, caching.WithRedisMaxObjectSize(cfg.Cache.MaxObjectSize))
		}
		return caching.NewRedisWorker(client, opts...), func() { _ = client.Close() }, nil
	default:
		var opts []caching.InMemoryOption
		if ttl := cfg.Cache.TTL.Std(); ttl > 0 {
			opts = append(opts, caching.WithInMemoryTTL(ttl))
		}
		if cfg.Cache.MaxObjectSize > 0 {
			opts = append(opts, caching.WithInMemoryMaxObjectSize(cfg.Cache.MaxObjectSize))
		}
		return caching.NewInMemoryWorker(opts...), func() {}, nil
	}
}

func newRedisClient(cfg config.Redis) redis.UniversalClient {
	return redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    cfg.Addresses,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// serve runs the API listener (and the metrics listener when configured)
// until ctx is cancelled or a listener fails.
func serve(ctx context.Context, cfg *config.Config, inst *server.Instance, log logr.Logger) error {
	errCh := make(chan error, 2)

	apiSrv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           inst.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info("http server listening", "addr", apiSrv.Addr)
		if err := apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	var metricsSrv *http.Server
	if cfg.Server.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", promhttp.Handler())
		metricsSrv = &http.Server{
			Addr:              cfg.Server.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			log.Info("metrics server listening", "addr", metricsSrv.Addr)
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server: %w", err)
			}
		}()
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down", "timeout", shutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if err := apiSrv.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("http server shutdown: %w", err))
	}
	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("metrics server shutdown: %w", err))
		}
	}
	return errors.Join(errs...)
}

func runMigrations(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: charted migrations <run|list> [--config path]")
		return exitStartup
	}
	sub := args[0]
	if sub != "run" && sub != "list" {
		fmt.Fprintf(os.Stderr, "unknown migrations subcommand %q\n", sub)
		return exitStartup
	}

	fs := flag.NewFlagSet("migrations "+sub, flag.ContinueOnError)
	cfg, err := loadConfig(fs, args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitStartup
	}
	if err := cfg.ValidateDatabase(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		return exitStartup
	}
	if cfg.Database.URL == "" {
		fmt.Fprintln(os.Stderr, "migrations need database.url; the embedded entity store has no schema")
		return exitStartup
	}

	mg, err := postgres.NewMigrator(cfg.Database.URL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize migrator: %v\n", err)
		return exitStartup
	}
	defer mg.Close()

	switch sub {
	case "run":
		if err := mg.Run(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to apply migrations: %v\n", err)
			return exitFatal
		}
		fmt.Println("migrations applied")
	case "list":
		migrations, err := mg.List()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to list migrations: %v\n", err)
			return exitFatal
		}
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "VERSION\tNAME\tAPPLIED")
		for _, m := range migrations {
			applied := ""
			if m.Applied {
				applied = "yes"
			}
			fmt.Fprintf(tw, "%d\t%s\t%s\n", m.Version, m.Name, applied)
		}
		_ = tw.Flush()
	}
	return exitOK
}
