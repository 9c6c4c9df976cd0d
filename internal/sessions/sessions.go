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

// Package sessions manages authenticated sessions: HMAC-SHA-512 signed
// token pairs, session records in Redis, and per-session expiry tasks.
package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/go-logr/logr"
)

// Token and storage parameters.
const (
	// Issuer is the iss claim on every minted token.
	Issuer = "Noelware/charted-server"

	// DefaultAccessTokenTTL is the access token lifetime.
	DefaultAccessTokenTTL = 2 * 24 * time.Hour

	// DefaultRefreshTokenTTL is the refresh token lifetime, which is also
	// the session's TTL in Redis.
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour

	// sessionsHash is the Redis hash holding every live session record.
	sessionsHash = "charted:sessions"
)

// Manager failures.
var (
	ErrSessionExpired = errors.New("session token expired")
	ErrInvalidToken   = errors.New("session token invalid")
	ErrUnknownSession = errors.New("unknown session")
)

// Session is the ephemeral auth artifact stored in Redis. It never lands
// in the relational store.
type Session struct {
	ID           uuid.UUID `json:"session_id"`
	UserID       uint64    `json:"user_id"`
	AccessToken  string    `json:"access_token,omitempty"`
	RefreshToken string    `json:"refresh_token,omitempty"`
}

// TokenClaims are the JWT claims on both tokens of a session.
type TokenClaims struct {
	SessionID string `json:"session_id"`
	UserID    uint64 `json:"user_id"`
	jwt.RegisteredClaims
}

// ttlKey is the per-session key whose server-side TTL mirrors the refresh
// token lifetime.
func ttlKey(id uuid.UUID) string {
	return fmt.Sprintf("%s:%s", sessionsHash, id)
}

// Manager owns the session table and the in-process expiry schedule.
type Manager struct {
	client redis.UniversalClient
	secret []byte
	logger logr.Logger
	now    func() time.Time

	accessTTL  time.Duration
	refreshTTL time.Duration

	mu     sync.Mutex
	timers map[uuid.UUID]*time.Timer
	closed bool
}

// Option customizes a Manager.
type Option func(*Manager)

// WithTokenTTLs overrides both token lifetimes.
func WithTokenTTLs(access, refresh time.Duration) Option {
	return func(m *Manager) {
		m.accessTTL = access
		m.refreshTTL = refresh
	}
}

// NewManager creates a session manager signing with secret. Call Recover
// once after construction to reschedule sessions that survived a restart.
func NewManager(client redis.UniversalClient, secret []byte, logger logr.Logger, opts ...Option) *Manager {
	m := &Manager{
		client:     client,
		secret:     secret,
		logger:     logger.WithName("sessions"),
		now:        time.Now,
		accessTTL:  DefaultAccessTokenTTL,
		refreshTTL: DefaultRefreshTokenTTL,
		timers:     map[uuid.UUID]*time.Timer{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// mint signs one token for the session.
func (m *Manager) mint(id uuid.UUID, userID uint64, ttl time.Duration) (string, error) {
	now := m.now()
	claims := TokenClaims{
		SessionID: id.String(),
		UserID:    userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}

// Create opens a session for a user and returns it with both tokens. The
// caller must only surface the token pair once.
func (m *Manager) Create(ctx context.Context, userID uint64) (*Session, error) {
	id := uuid.New()

	access, err := m.mint(id, userID, m.accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := m.mint(id, userID, m.refreshTTL)
	if err != nil {
		return nil, err
	}

	session := &Session{ID: id, UserID: userID, AccessToken: access, RefreshToken: refresh}
	data, err := json.Marshal(session)
	if err != nil {
		return nil, fmt.Errorf("failed to encode session: %w", err)
	}

	if err := m.client.HSet(ctx, sessionsHash, id.String(), data).Err(); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}
	if err := m.client.Set(ctx, ttlKey(id), "1", m.refreshTTL).Err(); err != nil {
		return nil, fmt.Errorf("failed to store session TTL: %w", err)
	}

	m.schedule(id, m.refreshTTL)
	return session, nil
}

// Get resolves a session by id, treating a missing TTL key as expired.
func (m *Manager) Get(ctx context.Context, id uuid.UUID) (*Session, error) {
	data, err := m.client.HGet(ctx, sessionsHash, id.String()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	alive, err := m.client.Exists(ctx, ttlKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to check session TTL: %w", err)
	}
	if alive == 0 {
		m.expire(ctx, id)
		return nil, nil
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &session, nil
}

// FromUser scans the session table for the (user, session) pair, returning
// nil when no live session matches.
func (m *Manager) FromUser(ctx context.Context, userID uint64, id uuid.UUID) (*Session, error) {
	entries, err := m.client.HGetAll(ctx, sessionsHash).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate sessions: %w", err)
	}

	for field, value := range entries {
		var session Session
		if err := json.Unmarshal([]byte(value), &session); err != nil {
			m.logger.Error(err, "skipping undecodable session record", "session", field)
			continue
		}
		if session.UserID != userID || session.ID != id {
			continue
		}

		alive, err := m.client.Exists(ctx, ttlKey(session.ID)).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to check session TTL: %w", err)
		}
		if alive == 0 {
			m.expire(ctx, session.ID)
			return nil, nil
		}
		return &session, nil
	}
	return nil, nil
}

// Refresh destroys the presented session and opens a fresh one for the
// same user.
func (m *Manager) Refresh(ctx context.Context, session *Session) (*Session, error) {
	if err := m.Destroy(ctx, session.ID); err != nil {
		return nil, err
	}
	return m.Create(ctx, session.UserID)
}

// Destroy removes a session from storage and cancels its expiry task.
func (m *Manager) Destroy(ctx context.Context, id uuid.UUID) error {
	m.cancel(id)

	if err := m.client.HDel(ctx, sessionsHash, id.String()).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if err := m.client.Del(ctx, ttlKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete session TTL: %w", err)
	}
	return nil
}

// Recover enumerates stored sessions after a restart: dead entries are
// deleted and live ones get their expiry tasks rescheduled with the
// remaining TTL.
func (m *Manager) Recover(ctx context.Context) error {
	entries, err := m.client.HGetAll(ctx, sessionsHash).Result()
	if err != nil {
		return fmt.Errorf("failed to enumerate sessions: %w", err)
	}

	recovered := 0
	for field := range entries {
		id, err := uuid.Parse(field)
		if err != nil {
			m.logger.Error(err, "removing session with malformed id", "session", field)
			_ = m.client.HDel(ctx, sessionsHash, field).Err()
			continue
		}

		remaining, err := m.client.TTL(ctx, ttlKey(id)).Result()
		if err != nil {
			return fmt.Errorf("failed to read session TTL: %w", err)
		}
		if remaining <= 0 {
			m.expire(ctx, id)
			continue
		}

		m.schedule(id, remaining)
		recovered++
	}

	m.logger.Info("recovered sessions", "live", recovered, "seen", len(entries))
	return nil
}

// DecodeToken verifies a presented token and returns its claims. Expired
// signatures and malformed tokens map onto distinct sentinel errors so
// the gate can answer 401 versus 403.
func (m *Manager) DecodeToken(token string) (*TokenClaims, error) {
	claims := &TokenClaims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return m.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}),
		jwt.WithIssuer(Issuer),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrSessionExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if claims.SessionID == "" {
		return nil, fmt.Errorf("%w: missing session_id claim", ErrInvalidToken)
	}
	if _, err := uuid.Parse(claims.SessionID); err != nil {
		return nil, fmt.Errorf("%w: malformed session_id claim", ErrInvalidToken)
	}
	return claims, nil
}

// schedule arms the in-process expiry task for a session.
func (m *Manager) schedule(id uuid.UUID, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}

	if existing, ok := m.timers[id]; ok {
		existing.Stop()
	}
	m.timers[id] = time.AfterFunc(ttl, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		m.expire(ctx, id)
	})
}

// cancel disarms a session's expiry task.
func (m *Manager) cancel(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if timer, ok := m.timers[id]; ok {
		timer.Stop()
		delete(m.timers, id)
	}
}

// expire deletes a dead session from storage.
func (m *Manager) expire(ctx context.Context, id uuid.UUID) {
	m.cancel(id)
	if err := m.client.HDel(ctx, sessionsHash, id.String()).Err(); err != nil {
		m.logger.Error(err, "failed to expire session", "session", id)
	}
	if err := m.client.Del(ctx, ttlKey(id)).Err(); err != nil {
		m.logger.Error(err, "failed to remove session TTL key", "session", id)
	}
}

// Shutdown disarms every expiry task without touching storage; Recover
// picks the sessions back up on the next start.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	for id, timer := range m.timers {
		timer.Stop()
		delete(m.timers, id)
	}
}
