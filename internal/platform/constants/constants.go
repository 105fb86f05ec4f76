// Copyright (c) 2026 CERN for the benefit of the FCC collaboration. All rights reserved.

/*
Package constants provides centralized, immutable values for the entire platform.

It defines default timeouts, rate limits, and cross-cutting keys that are shared
between different layers of the system.

Categories:

  - Server Timing: Read/Write/Idle timeouts for the HTTP server.
  - Rate Limiting: Burst capacities and IP tracking TTLs.
  - Security: Session issuers and cookie configuration.
  - Search: Fuzzy-match thresholds and pagination bounds.

Using this package ensures Magic Strings and Magic Numbers are eliminated
from the business logic.
*/
package constants

import "time"

// # Metadata

const (
	AppName    = "datacat-api"
	AppVersion = "0.1.0-dev"
)

// # Server Timing

const (
	// DefaultReadTimeout is the maximum duration for reading the entire request.
	DefaultReadTimeout = 5 * time.Second

	// DefaultWriteTimeout is the maximum duration before timing out writes of the response.
	DefaultWriteTimeout = 10 * time.Second

	// DefaultIdleTimeout is the maximum amount of time to wait for the next request.
	DefaultIdleTimeout = 120 * time.Second

	// DefaultReadHeaderTimeout is the amount of time allowed to read request headers.
	DefaultReadHeaderTimeout = 2 * time.Second

	// GlobalRequestTimeout is the deadline for the entire request lifecycle.
	GlobalRequestTimeout = 30 * time.Second

	// ShutdownTimeout is how long we wait for in-flight requests to complete during shutdown.
	ShutdownTimeout = 30 * time.Second
)

// # Rate Limiting

const (
	// DefaultRateLimitRPS is the requests per second allowed per IP.
	DefaultRateLimitRPS = 100.0

	// DefaultRateLimitBurst is the maximum burst allowed for the rate limiter.
	DefaultRateLimitBurst = 150

	// RateLimitCleanupInterval is how often old IP entries are removed from memory.
	RateLimitCleanupInterval = 1 * time.Minute

	// RateLimitClientTTL is how long a client must be idle before its entry is deleted.
	RateLimitClientTTL = 3 * time.Minute
)

// # Authentication

const (
	// AuthIssuer is the standard 'iss' claim in session tokens.
	AuthIssuer = "datacat.cern.ch"

	// SessionTokenCookieSuffix names the cookie that stores the session token.
	// The configured cookie prefix is prepended, e.g. "fcc-auth-token".
	SessionTokenCookieSuffix = "-auth-token"

	// SessionUserCookieSuffix names the non-HttpOnly cookie that mirrors the
	// signed-in username for the frontend.
	SessionUserCookieSuffix = "-auth-user"

	// SessionTokenTTL is the lifetime of an issued session token.
	SessionTokenTTL = 8 * time.Hour

	// OAuthStateTTL bounds how long a login flow may stay in-flight.
	OAuthStateTTL = 10 * time.Minute
)

// # Search

const (
	// TrigramSimilarityThreshold is the cutoff for whole-string fuzzy matches
	// against the flattened metadata blob.
	TrigramSimilarityThreshold = 0.6

	// WordSimilarityThreshold is the cutoff for word-level fuzzy matches
	// against the flattened metadata blob.
	WordSimilarityThreshold = 0.4

	// DefaultSearchLimit is the page size when the client sends none.
	DefaultSearchLimit = 25

	// MinSearchLimit and MaxSearchLimit clamp the client-supplied page size.
	MinSearchLimit = 20
	MaxSearchLimit = 1000

	// SortingFieldsKeyLimit caps how many distinct metadata keys the
	// sorting-fields discovery scans per level.
	SortingFieldsKeyLimit = 50
)

// # Ingestion

const (
	// SchemaAdvisoryLockKey serializes DDL bootstrap across replicas.
	// The key is an arbitrary number, used to distinguish the lock from
	// other advisory locks on the same database.
	SchemaAdvisoryLockKey int64 = 0x44435f424f4f5453

	// ImportFailureRollbackRatio aborts a batch when more than this share of
	// records fail.
	ImportFailureRollbackRatio = 0.5

	// MetadataLockPrefix and MetadataLockSuffix bracket a field name to form
	// its lock marker key, e.g. "__description__lock__".
	MetadataLockPrefix = "__"
	MetadataLockSuffix = "__lock__"
)

// # HTTP Headers

const (
	HeaderXRequestID    = "X-Request-ID"
	HeaderXRealIP       = "X-Real-IP"
	HeaderXForwardedFor = "X-Forwarded-For"
)

// # JSON Field Identifiers

const (
	FieldData    = "data"
	FieldMeta    = "meta"
	FieldError   = "error"
	FieldCode    = "code"
	FieldDetails = "details"
	FieldItems   = "items"
	FieldTotal   = "total"
	FieldMessage = "message"
	FieldStatus  = "status"
	FieldApp     = "app"
	FieldVersion = "version"
	FieldChecks  = "checks"
)

// # Redis Prefixes (Cache Taxonomy)

const (
	RedisPrefixSession    = "auth:session:"
	RedisPrefixOAuthState = "auth:oauth_state:"
)
