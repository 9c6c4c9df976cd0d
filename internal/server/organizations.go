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
	"errors"
	"net/http"
	"time"

	"github.com/charted-dev/charted/internal/api"
	"github.com/charted-dev/charted/internal/database"
	"github.com/charted-dev/charted/internal/types"
)

func (inst *Instance) handleCreateOrganization(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	var payload database.CreateOrganizationPayload
	if !decodeJSON(w, r, &payload) {
		return
	}
	name, err := types.NewName(payload.Name)
	if err != nil {
		api.WriteError(w, api.NewError(api.InvalidName, "organization name must match ^[A-Za-z0-9_-]{1,32}$"))
		return
	}

	existing, err := inst.Organizations.GetBy(r.Context(), types.NameOrIDFromName(name))
	if err != nil {
		inst.internalError(w, err, "failed to check organization uniqueness", "name", name)
		return
	}
	if existing != nil {
		api.WriteError(w, api.NewErrorWithDetails(api.EntityAlreadyExists,
			"an organization with this name already exists", map[string]string{"name": name.String()}))
		return
	}

	orgID, err := inst.NewID()
	if err != nil {
		inst.internalError(w, err, "failed to generate organization id")
		return
	}
	now := time.Now().UTC()
	org := &database.Organization{
		ID:          orgID,
		Name:        name,
		DisplayName: payload.DisplayName,
		Owner:       id.User.ID,
		Private:     payload.Private,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := inst.Organizations.Create(r.Context(), payload, org); err != nil {
		if errors.Is(err, database.ErrAlreadyExists) {
			api.WriteError(w, api.NewErrorWithDetails(api.EntityAlreadyExists,
				"an organization with this name already exists", map[string]string{"name": name.String()}))
			return
		}
		inst.internalError(w, err, "failed to create organization", "name", name)
		return
	}

	if err := inst.Engine.CreateIndex(r.Context(), org.ID); err != nil {
		inst.Logger.Error(err, "failed to seed chart index for new organization", "organization", org.ID)
	}
	api.WriteJSON(w, http.StatusCreated, org)
}

func (inst *Instance) handleGetOrganization(w http.ResponseWriter, r *http.Request) {
	ref, ok := pathNameOrID(w, r, "idOrName")
	if !ok {
		return
	}
	org, err := inst.Organizations.GetBy(r.Context(), ref)
	if err != nil {
		inst.internalError(w, err, "failed to fetch organization", "ref", ref.String())
		return
	}
	if org == nil {
		api.WriteError(w, api.NewError(api.EntityNotFound, "organization not found"))
		return
	}
	api.WriteJSON(w, http.StatusOK, org)
}

// resolveManagedOrganization fetches the organization and enforces that the
// caller owns it.
func (inst *Instance) resolveManagedOrganization(w http.ResponseWriter, r *http.Request) (*database.Organization, bool) {
	id, ok := identity(w, r)
	if !ok {
		return nil, false
	}
	ref, ok := pathNameOrID(w, r, "idOrName")
	if !ok {
		return nil, false
	}
	org, err := inst.Organizations.GetBy(r.Context(), ref)
	if err != nil {
		inst.internalError(w, err, "failed to fetch organization", "ref", ref.String())
		return nil, false
	}
	if org == nil {
		api.WriteError(w, api.NewError(api.EntityNotFound, "organization not found"))
		return nil, false
	}
	if org.Owner != id.User.ID && !id.User.Admin {
		writeForbiddenOwner(w)
		return nil, false
	}
	return org, true
}

func (inst *Instance) handlePatchOrganization(w http.ResponseWriter, r *http.Request) {
	org, ok := inst.resolveManagedOrganization(w, r)
	if !ok {
		return
	}

	var payload database.PatchOrganizationPayload
	if !decodeJSON(w, r, &payload) {
		return
	}
	if payload.Name != nil {
		if _, err := types.NewName(*payload.Name); err != nil {
			api.WriteError(w, api.NewError(api.InvalidName, "organization name must match ^[A-Za-z0-9_-]{1,32}$"))
			return
		}
	}

	if err := inst.Organizations.Patch(r.Context(), org.ID, payload); err != nil {
		if errors.Is(err, database.ErrAlreadyExists) {
			api.WriteError(w, api.NewError(api.EntityAlreadyExists, "the new organization name is taken"))
			return
		}
		if errors.Is(err, types.ErrInvalidName) {
			api.WriteError(w, api.NewError(api.InvalidName, "organization name must match ^[A-Za-z0-9_-]{1,32}$"))
			return
		}
		inst.internalError(w, err, "failed to patch organization", "organization", org.ID)
		return
	}
	api.WriteJSON(w, http.StatusOK, nil)
}

func (inst *Instance) handleDeleteOrganization(w http.ResponseWriter, r *http.Request) {
	org, ok := inst.resolveManagedOrganization(w, r)
	if !ok {
		return
	}

	if err := inst.Organizations.Delete(r.Context(), org.ID); err != nil {
		inst.internalError(w, err, "failed to delete organization", "organization", org.ID)
		return
	}
	if err := inst.Engine.DeleteIndex(r.Context(), org.ID); err != nil {
		inst.Logger.Error(err, "failed to delete chart index", "organization", org.ID)
	}
	api.WriteJSON(w, http.StatusOK, nil)
}

func (inst *Instance) handleListOrganizationRepositories(w http.ResponseWriter, r *http.Request) {
	ref, ok := pathNameOrID(w, r, "idOrName")
	if !ok {
		return
	}
	org, err := inst.Organizations.GetBy(r.Context(), ref)
	if err != nil {
		inst.internalError(w, err, "failed to fetch organization", "ref", ref.String())
		return
	}
	if org == nil {
		api.WriteError(w, api.NewError(api.EntityNotFound, "organization not found"))
		return
	}
	inst.listRepositoriesFor(w, r, org.ID)
}
