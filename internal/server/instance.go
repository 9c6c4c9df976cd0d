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

// Package server assembles the registry's HTTP surface: the route table,
// request handlers, and the Instance handle they all share.
package server

import (
	"errors"
	"time"

	"github.com/go-logr/logr"

	"github.com/charted-dev/charted/internal/auth"
	"github.com/charted-dev/charted/internal/caching"
	"github.com/charted-dev/charted/internal/charts"
	"github.com/charted-dev/charted/internal/config"
	"github.com/charted-dev/charted/internal/database"
	"github.com/charted-dev/charted/internal/sessions"
	"github.com/charted-dev/charted/internal/storage"
	"github.com/charted-dev/charted/internal/types"
	"github.com/charted-dev/charted/pkg/metrics"
)

// Build metadata, overridable via -ldflags at release time.
var (
	Version   = "0.1.0"
	CommitSHA = "unknown"
	BuildDate = "unknown"
)

// Instance is the immutable handle shared by every request handler. It is
// constructed once in main and passed into the router; handlers never reach
// for global state.
type Instance struct {
	Config  *config.Config
	Logger  logr.Logger
	Storage storage.Storage
	Cache   caching.Worker

	Users         database.UserStore
	Organizations database.OrganizationStore
	Repositories  database.RepositoryStore
	Releases      database.RepositoryReleaseStore
	ApiKeys       database.ApiKeyStore

	Sessions  *sessions.Manager
	Engine    *charts.Engine
	Gate      *auth.Gate
	Backend   auth.Backend
	Snowflake *types.Snowflake

	// Metrics records request and chart traffic metrics. Nil disables
	// recording.
	Metrics metrics.ServerMetricsRecorder
}

// metrics returns the configured recorder, or a no-op one.
func (inst *Instance) metrics() metrics.ServerMetricsRecorder {
	if inst.Metrics != nil {
		return inst.Metrics
	}
	return &metrics.NoOpServerMetrics{}
}

// NewID generates a snowflake, absorbing a sequence overflow by waiting out
// the millisecond.
func (inst *Instance) NewID() (uint64, error) {
	for attempt := 0; ; attempt++ {
		id, err := inst.Snowflake.Generate()
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, types.ErrMonotonicOverflow) || attempt >= 3 {
			return 0, err
		}
		time.Sleep(time.Millisecond)
	}
}
