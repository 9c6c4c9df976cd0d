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
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charted-dev/charted/internal/api"
	"github.com/charted-dev/charted/internal/database"
	"github.com/charted-dev/charted/internal/types"
)

// newApiKeyToken mints the plaintext token returned once on create.
func newApiKeyToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate api key token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func (inst *Instance) handleCreateApiKey(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	var payload database.CreateApiKeyPayload
	if !decodeJSON(w, r, &payload) {
		return
	}
	name, err := types.NewName(payload.Name)
	if err != nil {
		api.WriteError(w, api.NewError(api.InvalidName, "api key name must match ^[A-Za-z0-9_-]{1,32}$"))
		return
	}

	scopes := types.NewApiKeyScopes(0)
	for _, scope := range payload.Scopes {
		if err := scopes.AddName(scope); err != nil {
			api.WriteError(w, api.NewErrorWithDetails(api.ValidationFailed,
				"unknown api key scope", map[string]string{"scope": scope}))
			return
		}
	}

	existing, err := inst.ApiKeys.GetByOwnerAndName(r.Context(), id.User.ID, name)
	if err != nil {
		inst.internalError(w, err, "failed to check api key uniqueness", "name", name)
		return
	}
	if existing != nil {
		api.WriteError(w, api.NewErrorWithDetails(api.EntityAlreadyExists,
			"you already have an api key with this name", map[string]string{"name": name.String()}))
		return
	}

	token, err := newApiKeyToken()
	if err != nil {
		inst.internalError(w, err, "failed to generate api key token")
		return
	}
	keyID, err := inst.NewID()
	if err != nil {
		inst.internalError(w, err, "failed to generate api key id")
		return
	}

	now := time.Now().UTC()
	key := &database.ApiKey{
		ID:          keyID,
		Owner:       id.User.ID,
		Name:        name,
		Description: payload.Description,
		Token:       token,
		Scopes:      scopes.Bits(),
		ExpiresIn:   payload.ExpiresIn,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := inst.ApiKeys.Create(r.Context(), payload, key); err != nil {
		if errors.Is(err, database.ErrAlreadyExists) {
			api.WriteError(w, api.NewErrorWithDetails(api.EntityAlreadyExists,
				"you already have an api key with this name", map[string]string{"name": name.String()}))
			return
		}
		inst.internalError(w, err, "failed to create api key", "name", name)
		return
	}

	// The stores persist only a digest; echo the plaintext exactly once.
	key.Token = token
	api.WriteJSON(w, http.StatusCreated, key)
}

func (inst *Instance) handleListApiKeys(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	req, err := parsePagination(r)
	if err != nil {
		api.WriteError(w, api.NewError(api.ValidationFailed, err.Error()))
		return
	}
	req.OwnerID = id.User.ID

	page, err := inst.ApiKeys.Paginate(r.Context(), req)
	if err != nil {
		inst.internalError(w, err, "failed to paginate api keys", "owner", id.User.ID)
		return
	}
	api.WriteJSON(w, http.StatusOK, page)
}

// resolveOwnApiKey fetches the caller's key named by {idOrName}.
func (inst *Instance) resolveOwnApiKey(w http.ResponseWriter, r *http.Request) (*database.ApiKey, bool) {
	id, ok := identity(w, r)
	if !ok {
		return nil, false
	}
	ref, ok := pathNameOrID(w, r, "idOrName")
	if !ok {
		return nil, false
	}

	var (
		key *database.ApiKey
		err error
	)
	if ref.IsID() {
		key, err = inst.ApiKeys.Get(r.Context(), ref.ID())
		if key != nil && key.Owner != id.User.ID {
			key = nil
		}
	} else {
		key, err = inst.ApiKeys.GetByOwnerAndName(r.Context(), id.User.ID, ref.Name())
	}
	if err != nil {
		inst.internalError(w, err, "failed to fetch api key", "ref", ref.String())
		return nil, false
	}
	if key == nil {
		api.WriteError(w, api.NewError(api.EntityNotFound, "api key not found"))
		return nil, false
	}
	return key, true
}

func (inst *Instance) handleGetApiKey(w http.ResponseWriter, r *http.Request) {
	key, ok := inst.resolveOwnApiKey(w, r)
	if !ok {
		return
	}
	api.WriteJSON(w, http.StatusOK, key)
}

func (inst *Instance) handlePatchApiKey(w http.ResponseWriter, r *http.Request) {
	key, ok := inst.resolveOwnApiKey(w, r)
	if !ok {
		return
	}

	var payload database.PatchApiKeyPayload
	if !decodeJSON(w, r, &payload) {
		return
	}
	if payload.Name != nil {
		if _, err := types.NewName(*payload.Name); err != nil {
			api.WriteError(w, api.NewError(api.InvalidName, "api key name must match ^[A-Za-z0-9_-]{1,32}$"))
			return
		}
	}

	if err := inst.ApiKeys.Patch(r.Context(), key.ID, payload); err != nil {
		if errors.Is(err, database.ErrAlreadyExists) {
			api.WriteError(w, api.NewError(api.EntityAlreadyExists, "the new api key name is taken"))
			return
		}
		if errors.Is(err, types.ErrInvalidName) {
			api.WriteError(w, api.NewError(api.InvalidName, "api key name must match ^[A-Za-z0-9_-]{1,32}$"))
			return
		}
		inst.internalError(w, err, "failed to patch api key", "key", key.ID)
		return
	}
	api.WriteJSON(w, http.StatusOK, nil)
}

func (inst *Instance) handleDeleteApiKey(w http.ResponseWriter, r *http.Request) {
	key, ok := inst.resolveOwnApiKey(w, r)
	if !ok {
		return
	}
	if err := inst.ApiKeys.Delete(r.Context(), key.ID); err != nil {
		inst.internalError(w, err, "failed to delete api key", "key", key.ID)
		return
	}
	api.WriteJSON(w, http.StatusOK, nil)
}
