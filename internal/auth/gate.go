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

package auth

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-logr/logr"
	"github.com/google/uuid"

	"github.com/charted-dev/charted/internal/api"
	"github.com/charted-dev/charted/internal/database"
	"github.com/charted-dev/charted/internal/sessions"
	"github.com/charted-dev/charted/internal/types"
)

// Policy is the per-route authentication requirement.
type Policy struct {
	// AllowUnauthenticated lets requests without an Authorization header
	// through with no identity attached.
	AllowUnauthenticated bool

	// RequireRefreshToken restricts the route to bearer requests carrying
	// the session's refresh token.
	RequireRefreshToken bool

	// RequiredScopes is the scope mask an API key must fully cover.
	RequiredScopes uint64
}

// Identity is the authenticated caller attached to the request context.
// Session is nil for basic and API-key credentials.
type Identity struct {
	User    *database.User
	Session *sessions.Session
}

// timeNow is swapped in tests.
var timeNow = time.Now

type contextKey struct{}

// FromContext returns the identity the gate attached, or nil on routes
// that allow unauthenticated access.
func FromContext(ctx context.Context) *Identity {
	identity, _ := ctx.Value(contextKey{}).(*Identity)
	return identity
}

// Gate decodes the three credential schemes and enforces route policies.
type Gate struct {
	users    database.UserStore
	apikeys  database.ApiKeyStore
	sessions *sessions.Manager
	backend  Backend
	logger   logr.Logger

	// basicEnabled gates the Basic scheme; deployments with an external
	// credential backend turn it off.
	basicEnabled bool
}

// NewGate creates the authentication gate.
func NewGate(
	users database.UserStore,
	apikeys database.ApiKeyStore,
	sessionManager *sessions.Manager,
	backend Backend,
	basicEnabled bool,
	logger logr.Logger,
) *Gate {
	return &Gate{
		users:        users,
		apikeys:      apikeys,
		sessions:     sessionManager,
		backend:      backend,
		basicEnabled: basicEnabled,
		logger:       logger.WithName("auth"),
	}
}

// Middleware wraps next with the gate under the given policy.
func (g *Gate) Middleware(policy Policy, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			if policy.AllowUnauthenticated {
				next.ServeHTTP(w, r)
				return
			}
			api.WriteError(w, api.NewError(api.MissingAuthorizationHeader, "missing Authorization header"))
			return
		}

		parts := strings.Split(header, " ")
		if len(parts) != 2 {
			api.WriteError(w, api.NewError(api.InvalidAuthorizationParts,
				"Authorization header must be in the form '<scheme> <value>'"))
			return
		}
		scheme, value := parts[0], parts[1]

		var (
			identity *Identity
			apiErr   *api.Error
		)
		switch scheme {
		case "Bearer":
			identity, apiErr = g.bearer(r.Context(), value, policy)
		case "Basic":
			identity, apiErr = g.basic(r.Context(), value, policy)
		case "ApiKey":
			identity, apiErr = g.apiKey(r.Context(), value, policy)
		default:
			apiErr = api.NewErrorWithDetails(api.InvalidAuthenticationType,
				"authentication scheme is not supported", map[string]string{"scheme": scheme})
		}
		if apiErr != nil {
			api.WriteError(w, apiErr)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), contextKey{}, identity)))
	})
}

// bearer decodes a JWT, resolves its session and user, and enforces the
// refresh-token policy.
func (g *Gate) bearer(ctx context.Context, token string, policy Policy) (*Identity, *api.Error) {
	claims, err := g.sessions.DecodeToken(token)
	if err != nil {
		if errors.Is(err, sessions.ErrSessionExpired) {
			return nil, api.NewError(api.SessionExpired, "session token has expired")
		}
		return nil, api.NewError(api.InvalidSessionToken, "session token is malformed or has a bad signature")
	}

	sessionID, err := uuid.Parse(claims.SessionID)
	if err != nil {
		return nil, api.NewError(api.InvalidJwtClaim, "session_id claim is not a UUID")
	}

	session, err := g.sessions.FromUser(ctx, claims.UserID, sessionID)
	if err != nil {
		g.logger.Error(err, "session lookup failed", "session", sessionID)
		return nil, api.NewError(api.InternalServerError, "unable to resolve session")
	}
	if session == nil {
		return nil, api.NewError(api.UnknownSession, "session does not exist")
	}

	user, err := g.users.Get(ctx, claims.UserID)
	if err != nil {
		g.logger.Error(err, "user lookup failed", "user", claims.UserID)
		return nil, api.NewError(api.InternalServerError, "unable to resolve user")
	}
	if user == nil {
		return nil, api.NewError(api.EntityNotFound, "user no longer exists")
	}

	if policy.RequireRefreshToken && token != session.RefreshToken {
		return nil, api.NewError(api.RefreshTokenRequired, "route requires the session's refresh token")
	}

	return &Identity{User: user, Session: session}, nil
}

// basic decodes user:password credentials and delegates the password check
// to the backend.
func (g *Gate) basic(ctx context.Context, value string, policy Policy) (*Identity, *api.Error) {
	if !g.basicEnabled {
		return nil, api.NewError(api.InvalidAuthenticationType, "basic authentication is not enabled")
	}
	if policy.RequireRefreshToken {
		return nil, api.NewError(api.RefreshTokenRequired, "route requires a session refresh token")
	}

	decoded, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return nil, api.NewError(api.UnableToDecodeBase64, "credentials are not valid base64")
	}
	if !utf8.Valid(decoded) {
		return nil, api.NewError(api.InvalidUtf8, "credentials are not valid utf-8")
	}

	username, password, ok := strings.Cut(string(decoded), ":")
	if !ok {
		return nil, api.NewError(api.InvalidAuthorizationParts, "credentials must be in the form 'username:password'")
	}
	if strings.Contains(password, ":") {
		return nil, api.NewError(api.InvalidAuthorizationParts, "password must not contain ':'")
	}

	name, err := types.NewName(username)
	if err != nil {
		return nil, api.NewErrorWithDetails(api.InvalidName, "username is not a valid name",
			map[string]string{"username": username})
	}

	user, err := g.users.GetBy(ctx, types.NameOrIDFromName(name))
	if err != nil {
		g.logger.Error(err, "user lookup failed", "username", username)
		return nil, api.NewError(api.InternalServerError, "unable to resolve user")
	}
	if user == nil {
		return nil, api.NewErrorWithDetails(api.EntityNotFound, "user not found",
			map[string]string{"username": username})
	}

	if err := g.backend.VerifyPassword(ctx, user, password); err != nil {
		switch {
		case errors.Is(err, ErrMissingPassword):
			return nil, api.NewError(api.MissingPassword, "user has no password to check against")
		case errors.Is(err, ErrInvalidPassword):
			return nil, api.NewError(api.InvalidPassword, "password is incorrect")
		default:
			g.logger.Error(err, "password verification failed", "username", username)
			return nil, api.NewError(api.InternalServerError, "unable to verify password")
		}
	}

	return &Identity{User: user}, nil
}

// apiKey resolves a key by token, checks expiry, and confirms the scope
// mask covers the route's requirement.
func (g *Gate) apiKey(ctx context.Context, token string, policy Policy) (*Identity, *api.Error) {
	if policy.RequireRefreshToken {
		return nil, api.NewError(api.RefreshTokenRequired, "route requires a session refresh token")
	}

	key, err := g.apikeys.GetByToken(ctx, token)
	if err != nil {
		g.logger.Error(err, "api key lookup failed")
		return nil, api.NewError(api.InternalServerError, "unable to resolve api key")
	}
	if key == nil || key.Expired(timeNow()) {
		return nil, api.NewError(api.EntityNotFound, "api key does not exist or has expired")
	}

	if key.Scopes&policy.RequiredScopes != policy.RequiredScopes {
		return nil, api.NewError(api.InsufficientScope, "api key does not carry the required scopes")
	}

	user, err := g.users.Get(ctx, key.Owner)
	if err != nil {
		g.logger.Error(err, "user lookup failed", "user", key.Owner)
		return nil, api.NewError(api.InternalServerError, "unable to resolve user")
	}
	if user == nil {
		return nil, api.NewError(api.EntityNotFound, "api key owner no longer exists")
	}

	return &Identity{User: user}, nil
}
