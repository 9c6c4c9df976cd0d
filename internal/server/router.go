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

package server

import (
	"net/http"
	"time"

	"github.com/charted-dev/charted/internal/api"
	"github.com/charted-dev/charted/internal/auth"
	"github.com/charted-dev/charted/internal/types"
	"github.com/charted-dev/charted/pkg/metrics"
)

// public lets anyone through; handlers may still pick up an identity when
// credentials were presented.
var public = auth.Policy{AllowUnauthenticated: true}

// statusWriter captures the status code written by a handler.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// instrument records per-route request metrics around next. The route label
// is the registered pattern, so cardinality stays bounded.
func instrument(rec metrics.ServerMetricsRecorder, pattern string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(sw, r)
		rec.RecordRequest(metrics.RequestMetrics{
			Route:           pattern,
			Method:          r.Method,
			StatusCode:      sw.status,
			DurationSeconds: time.Since(start).Seconds(),
		})
	})
}

// Handler builds the full route table wrapped per-route with the
// authentication gate and request metrics.
func (inst *Instance) Handler() http.Handler {
	mux := http.NewServeMux()

	rec := inst.metrics()
	route := func(pattern string, policy auth.Policy, h http.HandlerFunc) {
		mux.Handle(pattern, instrument(rec, pattern, inst.Gate.Middleware(policy, h)))
	}

	// Entrypoints and instance metadata.
	route("GET /{$}", public, inst.handleRoot)
	route("GET /v1/{$}", public, inst.handleRoot)
	route("GET /v1/info", public, inst.handleInfo)
	route("GET /v1/heartbeat", public, inst.handleHeartbeat)
	route("GET /v1/features", public, inst.handleFeatures)
	route("GET /v1/openapi.json", public, inst.handleOpenAPI)
	route("GET /v1/indexes/{idOrName}", public, inst.handleIndex)

	// Users and sessions.
	route("POST /v1/users", public, inst.handleCreateUser)
	route("POST /v1/users/login", public, inst.handleLogin)
	route("GET /v1/users/@me", auth.Policy{RequiredScopes: types.ScopeUserRead}, inst.handleSelf)
	route("GET /v1/users/{idOrName}", public, inst.handleGetUser)
	route("PATCH /v1/users/{idOrName}", auth.Policy{RequiredScopes: types.ScopeUserUpdate}, inst.handlePatchUser)
	route("DELETE /v1/users/{idOrName}", auth.Policy{RequiredScopes: types.ScopeUserDelete}, inst.handleDeleteUser)
	route("GET /v1/users/{idOrName}/repositories", public, inst.handleListUserRepositories)
	route("POST /v1/users/sessions/refresh", auth.Policy{RequireRefreshToken: true}, inst.handleRefreshSession)
	route("DELETE /v1/users/sessions/{uuid}", auth.Policy{}, inst.handleRevokeSession)

	// Organizations.
	route("POST /v1/organizations", auth.Policy{RequiredScopes: types.ScopeOrgCreate}, inst.handleCreateOrganization)
	route("GET /v1/organizations/{idOrName}", public, inst.handleGetOrganization)
	route("PATCH /v1/organizations/{idOrName}", auth.Policy{RequiredScopes: types.ScopeOrgUpdate}, inst.handlePatchOrganization)
	route("DELETE /v1/organizations/{idOrName}", auth.Policy{RequiredScopes: types.ScopeOrgDelete}, inst.handleDeleteOrganization)
	route("GET /v1/organizations/{idOrName}/repositories", public, inst.handleListOrganizationRepositories)

	// Repositories and releases.
	route("POST /v1/repositories", auth.Policy{RequiredScopes: types.ScopeRepoCreate}, inst.handleCreateRepository)
	route("GET /v1/repositories/{idOrName}", public, inst.handleGetRepository)
	route("PATCH /v1/repositories/{idOrName}", auth.Policy{RequiredScopes: types.ScopeRepoUpdate}, inst.handlePatchRepository)
	route("DELETE /v1/repositories/{idOrName}", auth.Policy{RequiredScopes: types.ScopeRepoDelete}, inst.handleDeleteRepository)
	route("GET /v1/repositories/{idOrName}/releases", public, inst.handleListReleases)
	route("GET /v1/repositories/{idOrName}/releases/{version}", public, inst.handleGetRelease)
	route("PATCH /v1/repositories/{idOrName}/releases/{version}", auth.Policy{RequiredScopes: types.ScopeReleaseUpdate}, inst.handlePatchRelease)
	route("DELETE /v1/repositories/{idOrName}/releases/{version}", auth.Policy{RequiredScopes: types.ScopeReleaseDelete}, inst.handleDeleteRelease)
	route("PUT /v1/repositories/{idOrName}/releases/{version}/tarball", auth.Policy{RequiredScopes: types.ScopeReleaseUpload}, inst.handleUploadTarball)
	route("GET /v1/repositories/{idOrName}/releases/{version}/tarball", public, inst.handleDownloadTarball)
	route("POST /v1/repositories/{idOrName}/icon", auth.Policy{RequiredScopes: types.ScopeRepoUpdate}, inst.handleUploadRepositoryIcon)
	route("GET /v1/repositories/{idOrName}/icon", public, inst.handleGetRepositoryIcon)
	route("DELETE /v1/repositories/{idOrName}/icon", auth.Policy{RequiredScopes: types.ScopeRepoUpdate}, inst.handleDeleteRepositoryIcon)

	// API keys. Every route is owner-scoped to the authenticated user.
	route("POST /v1/apikeys", auth.Policy{RequiredScopes: types.ScopeApiKeyCreate}, inst.handleCreateApiKey)
	route("GET /v1/apikeys", auth.Policy{RequiredScopes: types.ScopeApiKeyView}, inst.handleListApiKeys)
	route("GET /v1/apikeys/{idOrName}", auth.Policy{RequiredScopes: types.ScopeApiKeyView}, inst.handleGetApiKey)
	route("PATCH /v1/apikeys/{idOrName}", auth.Policy{RequiredScopes: types.ScopeApiKeyUpdate}, inst.handlePatchApiKey)
	route("DELETE /v1/apikeys/{idOrName}", auth.Policy{RequiredScopes: types.ScopeApiKeyDelete}, inst.handleDeleteApiKey)

	// Everything else is a typed 404.
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		api.WriteError(w, api.NewError(api.HandlerNotFound, "no handler for "+r.Method+" "+r.URL.Path))
	})

	return mux
}
