// Copyright (c) 2026 CERN for the benefit of the FCC collaboration. All rights reserved.

package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hep-fcc/datacat/internal/platform/constants"
	"github.com/hep-fcc/datacat/internal/platform/sec"
)

// # Session Store

// SessionStore keeps transient login state in Redis: the CSRF state nonces
// of in-flight login flows and a cache of verified session claims.
//
// Session cache keys are BLAKE2b fingerprints of the token, so the raw
// token never appears in Redis.
type SessionStore struct {
	client *redis.Client
}

// NewSessionStore creates a Redis-backed SessionStore.
func NewSessionStore(client *redis.Client) *SessionStore {
	return &SessionStore{client: client}
}

// # OAuth2 State Nonces

// SaveState records a login-flow state nonce with its anti-replay TTL.
func (store *SessionStore) SaveState(ctx context.Context, state string) error {
	key := constants.RedisPrefixOAuthState + state
	if err := store.client.Set(ctx, key, "1", constants.OAuthStateTTL).Err(); err != nil {
		return fmt.Errorf("auth: failed to store oauth state: %w", err)
	}
	return nil
}

// ConsumeState atomically checks and deletes a state nonce. A nonce is
// valid exactly once; replays and expired flows report false.
func (store *SessionStore) ConsumeState(ctx context.Context, state string) (bool, error) {
	key := constants.RedisPrefixOAuthState + state
	_, err := store.client.GetDel(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("auth: failed to consume oauth state: %w", err)
	}
	return true, nil
}

// # Session Claim Cache

// CacheSession stores verified claims under the token's fingerprint.
func (store *SessionStore) CacheSession(ctx context.Context, token string, claims *sec.AuthClaims, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	payload, err := json.Marshal(claims)
	if err != nil {
		return fmt.Errorf("auth: failed to encode session claims: %w", err)
	}

	key := constants.RedisPrefixSession + sec.FingerprintString(token)
	if err := store.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("auth: failed to cache session: %w", err)
	}
	return nil
}

// LookupSession returns cached claims for a token, if present.
func (store *SessionStore) LookupSession(ctx context.Context, token string) (*sec.AuthClaims, bool, error) {
	key := constants.RedisPrefixSession + sec.FingerprintString(token)

	payload, err := store.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("auth: failed to look up session: %w", err)
	}

	claims := &sec.AuthClaims{}
	if err := json.Unmarshal(payload, claims); err != nil {
		// A corrupt cache entry must not lock the user out; drop it and
		// fall back to full token verification.
		_ = store.client.Del(ctx, key).Err()
		return nil, false, nil
	}
	return claims, true, nil
}

// DeleteSession evicts a token's cached claims, e.g. on logout.
func (store *SessionStore) DeleteSession(ctx context.Context, token string) error {
	key := constants.RedisPrefixSession + sec.FingerprintString(token)
	if err := store.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("auth: failed to delete session: %w", err)
	}
	return nil
}
