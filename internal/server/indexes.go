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

// handleIndex serves the owner's Helm chart index. The {idOrName} segment
// is tried against users first, then organizations; URLs stay stable when
// both tables contain the same name.
func (inst *Instance) handleIndex(w http.ResponseWriter, r *http.Request) {
	ref, ok := pathNameOrID(w, r, "idOrName")
	if !ok {
		return
	}

	user, org, err := inst.resolveOwner(r, ref)
	if err != nil {
		inst.internalError(w, err, "failed to resolve index owner", "ref", ref.String())
		return
	}
	var owner uint64
	switch {
	case user != nil:
		owner = user.ID
	case org != nil:
		owner = org.ID
	default:
		api.WriteError(w, api.NewError(api.EntityNotFound, "no user or organization with this name"))
		return
	}

	index, err := inst.Engine.GetIndex(r.Context(), owner)
	if err != nil {
		inst.internalError(w, err, "failed to load chart index", "owner", owner)
		return
	}

	w.Header().Set("Content-Type", "application/yaml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(index)
}
