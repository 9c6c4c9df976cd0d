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

// Package auth provides the credential backends and the per-route
// authentication gate.
package auth

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/charted-dev/charted/internal/database"
)

// Backend failures.
var (
	// ErrInvalidPassword is returned when the presented password does not
	// match the stored credential.
	ErrInvalidPassword = errors.New("invalid password")

	// ErrMissingPassword is returned when the user has no stored password,
	// which happens when accounts are managed by an external backend.
	ErrMissingPassword = errors.New("user has no password")
)

// Backend verifies a user's password. Variant selection (local, LDAP, …)
// happens at startup from configuration.
type Backend interface {
	VerifyPassword(ctx context.Context, user *database.User, password string) error
}

// LocalBackend checks passwords against the bcrypt hash stored on the
// user row.
type LocalBackend struct{}

// NewLocalBackend creates the local credential backend.
func NewLocalBackend() *LocalBackend { return &LocalBackend{} }

// VerifyPassword compares the presented password against the stored hash.
func (b *LocalBackend) VerifyPassword(_ context.Context, user *database.User, password string) error {
	if user.Password == nil || *user.Password == "" {
		return ErrMissingPassword
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*user.Password), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrInvalidPassword
		}
		return fmt.Errorf("failed to verify password: %w", err)
	}
	return nil
}

// HashPassword derives the bcrypt hash stored for a new or changed
// password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// Ensure LocalBackend implements Backend.
var _ Backend = (*LocalBackend)(nil)
