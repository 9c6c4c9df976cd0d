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
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/charted-dev/charted/internal/api"
	"github.com/charted-dev/charted/internal/auth"
	"github.com/charted-dev/charted/internal/database"
	"github.com/charted-dev/charted/internal/types"
)

// maxJSONBody caps JSON request bodies.
const maxJSONBody = 1 << 20

// decodeJSON reads a JSON body into dst. Failures are reported to the
// client; the caller should return when ok is false.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) (ok bool) {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(dst); err != nil {
		api.WriteError(w, api.NewError(api.ValidationFailed, fmt.Sprintf("invalid JSON body: %v", err)))
		return false
	}
	return true
}

// pathNameOrID extracts and parses a {name} path segment as a NameOrID.
func pathNameOrID(w http.ResponseWriter, r *http.Request, name string) (types.NameOrID, bool) {
	raw := r.PathValue(name)
	if raw == "" {
		api.WriteError(w, api.NewError(api.MissingPathParameter, fmt.Sprintf("missing path parameter %q", name)))
		return types.NameOrID{}, false
	}
	ref, err := types.ParseNameOrID(raw)
	if err != nil {
		api.WriteError(w, api.NewError(api.UnableToParsePathParameter,
			fmt.Sprintf("path parameter %q is neither a name nor an id: %v", name, err)))
		return types.NameOrID{}, false
	}
	return ref, true
}

// parsePagination reads the per_page, cursor and order query parameters.
func parsePagination(r *http.Request) (database.PaginationRequest, error) {
	var req database.PaginationRequest
	q := r.URL.Query()

	if v := q.Get("per_page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return req, fmt.Errorf("invalid per_page %q", v)
		}
		req.PerPage = n
	}
	if v := q.Get("cursor"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return req, fmt.Errorf("invalid cursor %q", v)
		}
		req.Cursor = n
	}
	switch order := q.Get("order"); order {
	case "", "asc":
	case "desc":
		req.Order = database.OrderDescending
	default:
		return req, fmt.Errorf("invalid order %q", order)
	}
	return req, nil
}

// internalError logs err with context and reports an opaque 500.
func (inst *Instance) internalError(w http.ResponseWriter, err error, msg string, kv ...any) {
	inst.Logger.Error(err, msg, kv...)
	api.WriteError(w, api.NewError(api.InternalServerError, "an internal error occurred"))
}

// identity returns the authenticated caller, failing the request when the
// gate attached none (routes behind AllowUnauthenticated that still need a
// principal).
func identity(w http.ResponseWriter, r *http.Request) (*auth.Identity, bool) {
	id := auth.FromContext(r.Context())
	if id == nil || id.User == nil {
		api.WriteError(w, api.NewError(api.MissingAuthorizationHeader, "authentication required"))
		return nil, false
	}
	return id, true
}

// resolveOwner looks a NameOrID up as a user first and falls back to an
// organization, preserving URL stability when the two tables share a name.
// Both results nil means not found.
func (inst *Instance) resolveOwner(r *http.Request, ref types.NameOrID) (*database.User, *database.Organization, error) {
	user, err := inst.Users.GetBy(r.Context(), ref)
	if err != nil {
		return nil, nil, err
	}
	if user != nil {
		return user, nil, nil
	}
	org, err := inst.Organizations.GetBy(r.Context(), ref)
	if err != nil {
		return nil, nil, err
	}
	return nil, org, nil
}

// canManageOwner reports whether user may administer resources owned by
// ownerID: their own, or an organization they own. Admins may manage
// anything.
func (inst *Instance) canManageOwner(r *http.Request, user *database.User, ownerID uint64) (bool, error) {
	if user.Admin || user.ID == ownerID {
		return true, nil
	}
	org, err := inst.Organizations.Get(r.Context(), ownerID)
	if err != nil {
		return false, err
	}
	return org != nil && org.Owner == user.ID, nil
}

// writeForbiddenOwner reports the standard response for acting on another
// owner's resource.
func writeForbiddenOwner(w http.ResponseWriter) {
	api.WriteError(w, api.NewError(api.InsufficientScope, "you do not own this resource"))
}
