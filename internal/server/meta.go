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

	"github.com/charted-dev/charted/internal/api"
)

func (inst *Instance) handleRoot(w http.ResponseWriter, _ *http.Request) {
	api.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "Hello, world! 👋",
		"docs":    "https://charts.noelware.org/docs",
	})
}

func (inst *Instance) handleInfo(w http.ResponseWriter, _ *http.Request) {
	api.WriteJSON(w, http.StatusOK, map[string]any{
		"distribution": inst.Config.DistributionKind,
		"version":      Version,
		"commit_sha":   CommitSHA,
		"build_date":   BuildDate,
		"product":      "charted-server",
		"vendor":       "Noelware",
	})
}

func (inst *Instance) handleHeartbeat(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("Ok."))
}

func (inst *Instance) handleFeatures(w http.ResponseWriter, _ *http.Request) {
	api.WriteJSON(w, http.StatusOK, map[string]any{
		"registrations":      inst.Config.RegistrationsEnabled(),
		"webhooks":           false,
		"audit_logs":         false,
		"totp":               false,
		"oci":                false,
		"garbage_collection": false,
	})
}
