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
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-logr/logr"
	"github.com/redis/go-redis/v9"

	"github.com/charted-dev/charted/internal/api"
	"github.com/charted-dev/charted/internal/database"
	"github.com/charted-dev/charted/internal/database/inmem"
	"github.com/charted-dev/charted/internal/sessions"
	"github.com/charted-dev/charted/internal/types"
)

type gateFixture struct {
	gate     *Gate
	users    *inmem.Users
	apikeys  *inmem.ApiKeys
	sessions *sessions.Manager
	user     *database.User
}

func newGateFixture(t *testing.T) *gateFixture {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	manager := sessions.NewManager(client, []byte("test-secret"), logr.Discard())
	t.Cleanup(manager.Shutdown)

	users := inmem.NewUsers()
	apikeys := inmem.NewApiKeys()

	hash, err := HashPassword("12345678")
	if err != nil {
		t.Fatal(err)
	}
	name, _ := types.NewName("noel")
	user := &database.User{ID: 1234, Username: name, Email: "n@x", Password: &hash}
	if err := users.Create(context.Background(), database.CreateUserPayload{}, user); err != nil {
		t.Fatal(err)
	}

	return &gateFixture{
		gate:     NewGate(users, apikeys, manager, NewLocalBackend(), true, logr.Discard()),
		users:    users,
		apikeys:  apikeys,
		sessions: manager,
		user:     user,
	}
}

// serve runs one request through the gate and returns the response plus
// the identity observed by the inner handler.
func serve(t *testing.T, gate *Gate, policy Policy, authorization string) (*httptest.ResponseRecorder, *Identity) {
	t.Helper()

	var seen *Identity
	handler := gate.Middleware(policy, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/users/@me", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec, seen
}

func firstErrorCode(t *testing.T, rec *httptest.ResponseRecorder) api.ErrorCode {
	t.Helper()
	var resp api.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not an envelope: %v", err)
	}
	if resp.Success || len(resp.Errors) == 0 {
		t.Fatalf("expected failure envelope, got %+v", resp)
	}
	return resp.Errors[0].Code
}

func TestGate_MissingHeader(t *testing.T) {
	f := newGateFixture(t)

	rec, _ := serve(t, f.gate, Policy{}, "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	if code := firstErrorCode(t, rec); code != api.MissingAuthorizationHeader {
		t.Errorf("code = %q, want MissingAuthorizationHeader", code)
	}
}

func TestGate_MissingHeaderAllowed(t *testing.T) {
	f := newGateFixture(t)

	rec, identity := serve(t, f.gate, Policy{AllowUnauthenticated: true}, "")
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if identity != nil {
		t.Errorf("identity = %+v, want nil", identity)
	}
}

func TestGate_MultiSpaceValue(t *testing.T) {
	f := newGateFixture(t)

	rec, _ := serve(t, f.gate, Policy{}, "Bearer one two")
	if code := firstErrorCode(t, rec); code != api.InvalidAuthorizationParts {
		t.Errorf("code = %q, want InvalidAuthorizationParts", code)
	}
}

func TestGate_UnknownScheme(t *testing.T) {
	f := newGateFixture(t)

	rec, _ := serve(t, f.gate, Policy{}, "Token abcdef")
	if code := firstErrorCode(t, rec); code != api.InvalidAuthenticationType {
		t.Errorf("code = %q, want InvalidAuthenticationType", code)
	}
}

func TestGate_Bearer(t *testing.T) {
	f := newGateFixture(t)
	session, err := f.sessions.Create(context.Background(), f.user.ID)
	if err != nil {
		t.Fatal(err)
	}

	rec, identity := serve(t, f.gate, Policy{}, "Bearer "+session.AccessToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if identity == nil || identity.User.ID != f.user.ID {
		t.Fatalf("identity = %+v, want user %d", identity, f.user.ID)
	}
	if identity.Session == nil || identity.Session.ID != session.ID {
		t.Errorf("identity session = %+v, want %s", identity.Session, session.ID)
	}
}

func TestGate_BearerMalformed(t *testing.T) {
	f := newGateFixture(t)

	rec, _ := serve(t, f.gate, Policy{}, "Bearer not.a.jwt")
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
	if code := firstErrorCode(t, rec); code != api.InvalidSessionToken {
		t.Errorf("code = %q, want InvalidSessionToken", code)
	}
}

func TestGate_BearerUnknownSession(t *testing.T) {
	f := newGateFixture(t)
	session, err := f.sessions.Create(context.Background(), f.user.ID)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.sessions.Destroy(context.Background(), session.ID); err != nil {
		t.Fatal(err)
	}

	rec, _ := serve(t, f.gate, Policy{}, "Bearer "+session.AccessToken)
	if code := firstErrorCode(t, rec); code != api.UnknownSession {
		t.Errorf("code = %q, want UnknownSession", code)
	}
}

func TestGate_RefreshTokenEnforcement(t *testing.T) {
	f := newGateFixture(t)
	session, err := f.sessions.Create(context.Background(), f.user.ID)
	if err != nil {
		t.Fatal(err)
	}

	// Access token on a refresh-only route is refused.
	rec, _ := serve(t, f.gate, Policy{RequireRefreshToken: true}, "Bearer "+session.AccessToken)
	if rec.Code != http.StatusNotAcceptable {
		t.Errorf("status = %d, want 406", rec.Code)
	}
	if code := firstErrorCode(t, rec); code != api.RefreshTokenRequired {
		t.Errorf("code = %q, want RefreshTokenRequired", code)
	}

	// The refresh token passes.
	rec, identity := serve(t, f.gate, Policy{RequireRefreshToken: true}, "Bearer "+session.RefreshToken)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if identity == nil || identity.Session == nil {
		t.Error("identity missing after refresh-token auth")
	}
}

func basicValue(username, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+password))
}

func TestGate_Basic(t *testing.T) {
	f := newGateFixture(t)

	rec, identity := serve(t, f.gate, Policy{}, basicValue("noel", "12345678"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if identity == nil || identity.User.ID != f.user.ID {
		t.Errorf("identity = %+v, want user %d", identity, f.user.ID)
	}
	if identity.Session != nil {
		t.Error("basic auth attached a session")
	}
}

func TestGate_BasicWrongPassword(t *testing.T) {
	f := newGateFixture(t)

	rec, _ := serve(t, f.gate, Policy{}, basicValue("noel", "wrong"))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	if code := firstErrorCode(t, rec); code != api.InvalidPassword {
		t.Errorf("code = %q, want InvalidPassword", code)
	}
}

func TestGate_BasicUnknownUser(t *testing.T) {
	f := newGateFixture(t)

	rec, _ := serve(t, f.gate, Policy{}, basicValue("ghost", "12345678"))
	if code := firstErrorCode(t, rec); code != api.EntityNotFound {
		t.Errorf("code = %q, want EntityNotFound", code)
	}
}

func TestGate_BasicNotBase64(t *testing.T) {
	f := newGateFixture(t)

	rec, _ := serve(t, f.gate, Policy{}, "Basic %%%%")
	if code := firstErrorCode(t, rec); code != api.UnableToDecodeBase64 {
		t.Errorf("code = %q, want UnableToDecodeBase64", code)
	}
}

func TestGate_BasicExtraColon(t *testing.T) {
	f := newGateFixture(t)

	rec, _ := serve(t, f.gate, Policy{}, basicValue("noel", "pass:word"))
	if code := firstErrorCode(t, rec); code != api.InvalidAuthorizationParts {
		t.Errorf("code = %q, want InvalidAuthorizationParts", code)
	}
}

func TestGate_BasicDisabled(t *testing.T) {
	f := newGateFixture(t)
	disabled := NewGate(f.users, f.apikeys, f.sessions, NewLocalBackend(), false, logr.Discard())

	rec, _ := serve(t, disabled, Policy{}, basicValue("noel", "12345678"))
	if code := firstErrorCode(t, rec); code != api.InvalidAuthenticationType {
		t.Errorf("code = %q, want InvalidAuthenticationType", code)
	}
}

func TestGate_BasicOnRefreshRoute(t *testing.T) {
	f := newGateFixture(t)

	rec, _ := serve(t, f.gate, Policy{RequireRefreshToken: true}, basicValue("noel", "12345678"))
	if code := firstErrorCode(t, rec); code != api.RefreshTokenRequired {
		t.Errorf("code = %q, want RefreshTokenRequired", code)
	}
}

func createApiKey(t *testing.T, f *gateFixture, token string, scopes uint64, expiresIn *time.Time) {
	t.Helper()
	name, _ := types.NewName("ci")
	err := f.apikeys.Create(context.Background(), database.CreateApiKeyPayload{}, &database.ApiKey{
		ID:        1,
		Owner:     f.user.ID,
		Name:      name,
		Token:     token,
		Scopes:    scopes,
		ExpiresIn: expiresIn,
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestGate_ApiKey(t *testing.T) {
	f := newGateFixture(t)
	scopes := types.NewApiKeyScopes(types.ScopeUserRead | types.ScopeRepoRead)
	createApiKey(t, f, "cthzr", scopes.Bits(), nil)

	rec, identity := serve(t, f.gate, Policy{RequiredScopes: types.ScopeUserRead}, "ApiKey cthzr")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if identity == nil || identity.User.ID != f.user.ID {
		t.Errorf("identity = %+v, want user %d", identity, f.user.ID)
	}
}

func TestGate_ApiKeyInsufficientScope(t *testing.T) {
	f := newGateFixture(t)
	createApiKey(t, f, "cthzr", types.ScopeUserRead, nil)

	rec, _ := serve(t, f.gate, Policy{RequiredScopes: types.ScopeUserRead | types.ScopeRepoDelete}, "ApiKey cthzr")
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
	if code := firstErrorCode(t, rec); code != api.InsufficientScope {
		t.Errorf("code = %q, want InsufficientScope", code)
	}
}

func TestGate_ApiKeyExpired(t *testing.T) {
	f := newGateFixture(t)
	past := time.Now().Add(-time.Hour)
	createApiKey(t, f, "cthzr", types.ScopeUserRead, &past)

	rec, _ := serve(t, f.gate, Policy{}, "ApiKey cthzr")
	if code := firstErrorCode(t, rec); code != api.EntityNotFound {
		t.Errorf("code = %q, want EntityNotFound", code)
	}
}

func TestGate_ApiKeyUnknown(t *testing.T) {
	f := newGateFixture(t)

	rec, _ := serve(t, f.gate, Policy{}, "ApiKey nope")
	if code := firstErrorCode(t, rec); code != api.EntityNotFound {
		t.Errorf("code = %q, want EntityNotFound", code)
	}
}
