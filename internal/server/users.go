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

	"github.com/google/uuid"

	"github.com/charted-dev/charted/internal/api"
	"github.com/charted-dev/charted/internal/auth"
	"github.com/charted-dev/charted/internal/database"
	"github.com/charted-dev/charted/internal/types"
)

// minPasswordLength matches the login form's client-side rule.
const minPasswordLength = 8

func (inst *Instance) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	if !inst.Config.RegistrationsEnabled() {
		api.WriteError(w, api.NewError(api.RegistrationsDisabled, "this instance does not accept registrations"))
		return
	}

	var payload database.CreateUserPayload
	if !decodeJSON(w, r, &payload) {
		return
	}

	username, err := types.NewName(payload.Username)
	if err != nil {
		api.WriteError(w, api.NewError(api.InvalidName, "username must match ^[A-Za-z0-9_-]{1,32}$"))
		return
	}
	if payload.Email == "" {
		api.WriteError(w, api.NewError(api.ValidationFailed, "email is required"))
		return
	}
	if len(payload.Password) < minPasswordLength {
		api.WriteError(w, api.NewError(api.ValidationFailed, "password must be at least 8 characters"))
		return
	}

	existing, err := inst.Users.GetBy(r.Context(), types.NameOrIDFromName(username))
	if err != nil {
		inst.internalError(w, err, "failed to check username uniqueness", "username", username)
		return
	}
	if existing != nil {
		api.WriteError(w, api.NewErrorWithDetails(api.EntityAlreadyExists,
			"a user with this username already exists", map[string]string{"username": username.String()}))
		return
	}
	byEmail, err := inst.Users.GetByEmail(r.Context(), payload.Email)
	if err != nil {
		inst.internalError(w, err, "failed to check email uniqueness")
		return
	}
	if byEmail != nil {
		api.WriteError(w, api.NewErrorWithDetails(api.EntityAlreadyExists,
			"a user with this email already exists", map[string]string{"email": payload.Email}))
		return
	}

	hashed, err := auth.HashPassword(payload.Password)
	if err != nil {
		inst.internalError(w, err, "failed to hash password")
		return
	}
	id, err := inst.NewID()
	if err != nil {
		inst.internalError(w, err, "failed to generate user id")
		return
	}

	now := time.Now().UTC()
	user := &database.User{
		ID:        id,
		Username:  username,
		Email:     payload.Email,
		Password:  &hashed,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := inst.Users.Create(r.Context(), payload, user); err != nil {
		if errors.Is(err, database.ErrAlreadyExists) {
			api.WriteError(w, api.NewErrorWithDetails(api.EntityAlreadyExists,
				"a user with this username already exists", map[string]string{"username": username.String()}))
			return
		}
		inst.internalError(w, err, "failed to create user", "username", username)
		return
	}

	if err := inst.Engine.CreateIndex(r.Context(), user.ID); err != nil {
		inst.Logger.Error(err, "failed to seed chart index for new user", "user", user.ID)
	}

	api.WriteJSON(w, http.StatusCreated, user)
}

// loginPayload is the body of POST /v1/users/login. One of username or
// email identifies the account.
type loginPayload struct {
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	Password string `json:"password"`
}

func (inst *Instance) handleLogin(w http.ResponseWriter, r *http.Request) {
	var payload loginPayload
	if !decodeJSON(w, r, &payload) {
		return
	}
	if payload.Password == "" {
		api.WriteError(w, api.NewError(api.MissingPassword, "password is required"))
		return
	}

	var (
		user *database.User
		err  error
	)
	switch {
	case payload.Username != "":
		name, nameErr := types.NewName(payload.Username)
		if nameErr != nil {
			api.WriteError(w, api.NewError(api.InvalidName, "username must match ^[A-Za-z0-9_-]{1,32}$"))
			return
		}
		user, err = inst.Users.GetBy(r.Context(), types.NameOrIDFromName(name))
	case payload.Email != "":
		user, err = inst.Users.GetByEmail(r.Context(), payload.Email)
	default:
		api.WriteError(w, api.NewError(api.ValidationFailed, "one of username or email is required"))
		return
	}
	if err != nil {
		inst.internalError(w, err, "failed to resolve user for login")
		return
	}
	if user == nil {
		api.WriteError(w, api.NewError(api.EntityNotFound, "user not found"))
		return
	}

	if err := inst.Backend.VerifyPassword(r.Context(), user, payload.Password); err != nil {
		if errors.Is(err, auth.ErrInvalidPassword) {
			api.WriteError(w, api.NewError(api.InvalidPassword, "invalid password"))
			return
		}
		inst.internalError(w, err, "failed to verify password", "user", user.ID)
		return
	}

	session, err := inst.Sessions.Create(r.Context(), user.ID)
	if err != nil {
		inst.internalError(w, err, "failed to create session", "user", user.ID)
		return
	}
	api.WriteJSON(w, http.StatusCreated, session)
}

func (inst *Instance) handleSelf(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	api.WriteJSON(w, http.StatusOK, id.User)
}

func (inst *Instance) handleGetUser(w http.ResponseWriter, r *http.Request) {
	ref, ok := pathNameOrID(w, r, "idOrName")
	if !ok {
		return
	}
	user, err := inst.Users.GetBy(r.Context(), ref)
	if err != nil {
		inst.internalError(w, err, "failed to fetch user", "ref", ref.String())
		return
	}
	if user == nil {
		api.WriteError(w, api.NewError(api.EntityNotFound, "user not found"))
		return
	}
	api.WriteJSON(w, http.StatusOK, user)
}

func (inst *Instance) handlePatchUser(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	ref, ok := pathNameOrID(w, r, "idOrName")
	if !ok {
		return
	}
	target, err := inst.Users.GetBy(r.Context(), ref)
	if err != nil {
		inst.internalError(w, err, "failed to fetch user", "ref", ref.String())
		return
	}
	if target == nil {
		api.WriteError(w, api.NewError(api.EntityNotFound, "user not found"))
		return
	}
	if target.ID != id.User.ID && !id.User.Admin {
		writeForbiddenOwner(w)
		return
	}

	var payload database.PatchUserPayload
	if !decodeJSON(w, r, &payload) {
		return
	}
	if payload.Username != nil {
		if _, err := types.NewName(*payload.Username); err != nil {
			api.WriteError(w, api.NewError(api.InvalidName, "username must match ^[A-Za-z0-9_-]{1,32}$"))
			return
		}
	}
	if payload.Password != nil {
		if len(*payload.Password) < minPasswordLength {
			api.WriteError(w, api.NewError(api.ValidationFailed, "password must be at least 8 characters"))
			return
		}
		hashed, err := auth.HashPassword(*payload.Password)
		if err != nil {
			inst.internalError(w, err, "failed to hash password")
			return
		}
		payload.Password = &hashed
	}

	if err := inst.Users.Patch(r.Context(), target.ID, payload); err != nil {
		if errors.Is(err, database.ErrAlreadyExists) {
			api.WriteError(w, api.NewError(api.EntityAlreadyExists, "the new username is taken"))
			return
		}
		if errors.Is(err, types.ErrInvalidName) {
			api.WriteError(w, api.NewError(api.InvalidName, "username must match ^[A-Za-z0-9_-]{1,32}$"))
			return
		}
		inst.internalError(w, err, "failed to patch user", "user", target.ID)
		return
	}
	api.WriteJSON(w, http.StatusOK, nil)
}

func (inst *Instance) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	ref, ok := pathNameOrID(w, r, "idOrName")
	if !ok {
		return
	}
	target, err := inst.Users.GetBy(r.Context(), ref)
	if err != nil {
		inst.internalError(w, err, "failed to fetch user", "ref", ref.String())
		return
	}
	if target == nil {
		api.WriteError(w, api.NewError(api.EntityNotFound, "user not found"))
		return
	}
	if target.ID != id.User.ID && !id.User.Admin {
		writeForbiddenOwner(w)
		return
	}

	if err := inst.Users.Delete(r.Context(), target.ID); err != nil {
		inst.internalError(w, err, "failed to delete user", "user", target.ID)
		return
	}
	if err := inst.Engine.DeleteIndex(r.Context(), target.ID); err != nil {
		inst.Logger.Error(err, "failed to delete chart index", "user", target.ID)
	}
	api.WriteJSON(w, http.StatusOK, nil)
}

func (inst *Instance) handleListUserRepositories(w http.ResponseWriter, r *http.Request) {
	ref, ok := pathNameOrID(w, r, "idOrName")
	if !ok {
		return
	}
	user, err := inst.Users.GetBy(r.Context(), ref)
	if err != nil {
		inst.internalError(w, err, "failed to fetch user", "ref", ref.String())
		return
	}
	if user == nil {
		api.WriteError(w, api.NewError(api.EntityNotFound, "user not found"))
		return
	}
	inst.listRepositoriesFor(w, r, user.ID)
}

func (inst *Instance) handleRefreshSession(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	if id.Session == nil {
		api.WriteError(w, api.NewError(api.RefreshTokenRequired, "this route requires a session refresh token"))
		return
	}
	session, err := inst.Sessions.Refresh(r.Context(), id.Session)
	if err != nil {
		inst.internalError(w, err, "failed to refresh session", "user", id.User.ID)
		return
	}
	api.WriteJSON(w, http.StatusCreated, session)
}

func (inst *Instance) handleRevokeSession(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	sessionID, err := uuid.Parse(r.PathValue("uuid"))
	if err != nil {
		api.WriteError(w, api.NewError(api.UnableToParsePathParameter, "session id must be a UUID"))
		return
	}

	session, err := inst.Sessions.FromUser(r.Context(), id.User.ID, sessionID)
	if err != nil {
		inst.internalError(w, err, "failed to resolve session", "session", sessionID)
		return
	}
	if session == nil {
		api.WriteError(w, api.NewError(api.UnknownSession, "no such session for this user"))
		return
	}
	if err := inst.Sessions.Destroy(r.Context(), sessionID); err != nil {
		inst.internalError(w, err, "failed to destroy session", "session", sessionID)
		return
	}
	api.WriteJSON(w, http.StatusOK, nil)
}
