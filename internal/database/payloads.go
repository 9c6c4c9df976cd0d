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

package database

import "time"

// Create payloads carry the client-supplied fields of a new entity; the
// stores receive them alongside a fully-formed skeleton with the id and
// timestamps already assigned.
//
// Patch payloads are records of optional fields. A nil field leaves the
// column untouched; for nullable string columns an empty string sets the
// column to NULL.

// CreateUserPayload is the body of POST /v1/users.
type CreateUserPayload struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// PatchUserPayload is the body of PATCH /v1/users/{idOrName}.
type PatchUserPayload struct {
	Username      *string `json:"username,omitempty"`
	Email         *string `json:"email,omitempty"`
	Password      *string `json:"password,omitempty"`
	DisplayName   *string `json:"display_name,omitempty"`
	Description   *string `json:"description,omitempty"`
	GravatarEmail *string `json:"gravatar_email,omitempty"`
}

// CreateOrganizationPayload is the body of POST /v1/organizations.
type CreateOrganizationPayload struct {
	Name        string  `json:"name"`
	DisplayName *string `json:"display_name,omitempty"`
	Private     bool    `json:"private"`
}

// PatchOrganizationPayload is the body of PATCH /v1/organizations/{idOrName}.
type PatchOrganizationPayload struct {
	Name          *string `json:"name,omitempty"`
	DisplayName   *string `json:"display_name,omitempty"`
	GravatarEmail *string `json:"gravatar_email,omitempty"`
	Private       *bool   `json:"private,omitempty"`
}

// CreateRepositoryPayload is the body of POST /v1/repositories.
type CreateRepositoryPayload struct {
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	Type        ChartType `json:"type"`
	Private     bool      `json:"private"`
}

// PatchRepositoryPayload is the body of PATCH /v1/repositories/{id}.
type PatchRepositoryPayload struct {
	Name        *string    `json:"name,omitempty"`
	Description *string    `json:"description,omitempty"`
	Type        *ChartType `json:"type,omitempty"`
	Private     *bool      `json:"private,omitempty"`
	Deprecated  *bool      `json:"deprecated,omitempty"`

	// IconHash is set by the icon upload handler, never from a request
	// body; the hash must match the stored blob.
	IconHash *string `json:"-"`
}

// CreateRepositoryReleasePayload accompanies a tarball upload.
type CreateRepositoryReleasePayload struct {
	Tag        string  `json:"tag"`
	UpdateText *string `json:"update_text,omitempty"`
}

// PatchRepositoryReleasePayload is the body of
// PATCH /v1/repositories/{id}/releases/{semver}.
type PatchRepositoryReleasePayload struct {
	UpdateText *string `json:"update_text,omitempty"`
}

// CreateApiKeyPayload is the body of POST /v1/apikeys.
type CreateApiKeyPayload struct {
	Name        string     `json:"name"`
	Description *string    `json:"description,omitempty"`
	Scopes      []string   `json:"scopes,omitempty"`
	ExpiresIn   *time.Time `json:"expires_in,omitempty"`
}

// PatchApiKeyPayload is the body of PATCH /v1/apikeys/{idOrName}.
type PatchApiKeyPayload struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}
