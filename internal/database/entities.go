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

import (
	"time"

	"github.com/charted-dev/charted/internal/types"
)

// ChartType categorizes a repository's charts.
type ChartType string

// Chart types.
const (
	ChartTypeApplication ChartType = "application"
	ChartTypeLibrary     ChartType = "library"
)

// Valid reports whether t is a known chart type.
func (t ChartType) Valid() bool {
	return t == ChartTypeApplication || t == ChartTypeLibrary
}

// User is an account that owns repositories and organizations.
type User struct {
	ID                uint64     `json:"id"`
	Username          types.Name `json:"username"`
	DisplayName       *string    `json:"display_name,omitempty"`
	Email             string     `json:"email"`
	Password          *string    `json:"-"`
	Description       *string    `json:"description,omitempty"`
	AvatarHash        *string    `json:"avatar_hash,omitempty"`
	GravatarEmail     *string    `json:"gravatar_email,omitempty"`
	Admin             bool       `json:"admin"`
	VerifiedPublisher bool       `json:"verified_publisher"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// Organization is a group account owned by a user.
type Organization struct {
	ID                uint64     `json:"id"`
	Name              types.Name `json:"name"`
	DisplayName       *string    `json:"display_name,omitempty"`
	Owner             uint64     `json:"owner"`
	GravatarEmail     *string    `json:"gravatar_email,omitempty"`
	IconHash          *string    `json:"icon_hash,omitempty"`
	Private           bool       `json:"private"`
	VerifiedPublisher bool       `json:"verified_publisher"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// Repository is a chart family owned by a user or organization.
type Repository struct {
	ID          uint64     `json:"id"`
	Name        types.Name `json:"name"`
	Owner       uint64     `json:"owner"`
	Description *string    `json:"description,omitempty"`
	IconHash    *string    `json:"icon_hash,omitempty"`
	Type        ChartType  `json:"type"`
	Private     bool       `json:"private"`
	Deprecated  bool       `json:"deprecated"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// RepositoryRelease is one published version of a repository.
type RepositoryRelease struct {
	ID         uint64    `json:"id"`
	Repository uint64    `json:"repository"`
	Tag        string    `json:"tag"`
	UpdateText *string   `json:"update_text,omitempty"`
	Prerelease bool      `json:"prerelease"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ApiKey is a personal access token owned by a user. Token carries the
// plaintext only on the create response; the store keeps a hash.
type ApiKey struct {
	ID          uint64     `json:"id"`
	Owner       uint64     `json:"owner"`
	Name        types.Name `json:"name"`
	Description *string    `json:"description,omitempty"`
	Token       string     `json:"token,omitempty"`
	Scopes      uint64     `json:"scopes"`
	ExpiresIn   *time.Time `json:"expires_in,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Expired reports whether the key is past its expiry instant.
func (k *ApiKey) Expired(now time.Time) bool {
	return k.ExpiresIn != nil && now.After(*k.ExpiresIn)
}
