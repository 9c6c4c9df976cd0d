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

package main

import (
	"testing"

	"github.com/charted-dev/charted/internal/caching"
	"github.com/charted-dev/charted/internal/config"
)

func TestRunDispatch(t *testing.T) {
	cases := []struct {
		name string
		args []string
		want int
	}{
		{"no args", nil, exitStartup},
		{"unknown command", []string{"bogus"}, exitStartup},
		{"help", []string{"help"}, exitOK},
		{"version", []string{"version"}, exitOK},
		{"migrations without subcommand", []string{"migrations"}, exitStartup},
		{"migrations unknown subcommand", []string{"migrations", "redo"}, exitStartup},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := run(tc.args); got != tc.want {
				t.Fatalf("run(%v) = %d, want %d", tc.args, got, tc.want)
			}
		})
	}
}

func TestMigrationsRequireDatabaseURL(t *testing.T) {
	t.Setenv("CHARTED_CONFIG_PATH", "")
	t.Setenv("CHARTED_DATABASE_URL", "")
	t.Setenv("CHARTED_DATABASE_PATH", "./charted.db")
	t.Chdir(t.TempDir())

	// The embedded store satisfies ValidateDatabase but has no schema to
	// migrate against.
	if got := runMigrations([]string{"list"}); got != exitStartup {
		t.Fatalf("runMigrations = %d, want %d", got, exitStartup)
	}
}

func TestNewCacheInMemory(t *testing.T) {
	cfg := config.Default()
	cfg.Cache.MaxObjectSize = 1 << 10

	worker, closeCache, err := newCache(cfg)
	if err != nil {
		t.Fatalf("newCache: %v", err)
	}
	defer closeCache()

	if _, ok := worker.(*caching.InMemoryWorker); !ok {
		t.Fatalf("expected *caching.InMemoryWorker, got %T", worker)
	}
}
