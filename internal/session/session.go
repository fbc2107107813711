// Package session keeps the shared session and revocation state: the live
// token per subject and the blacklist of revoked tokens.
package session

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a subject has no live session.
var ErrNotFound = errors.New("session: not found")

// RevokedMarker is the value stored under a blacklist key.
const RevokedMarker = "revoked"

func SessionKey(subjectID string) string { return "session:" + subjectID }

func BlacklistKey(token string) string { return "blacklist:" + token }

// Store holds at most one live session per subject and the set of revoked
// tokens. Entries expire on their own; callers never sweep.
type Store interface {
	// PutSession records token as the subject's live session, replacing
	// any previous one.
	PutSession(ctx context.Context, subjectID, token string, ttl time.Duration) error

	// Session returns the subject's live token or ErrNotFound.
	Session(ctx context.Context, subjectID string) (string, error)

	DeleteSession(ctx context.Context, subjectID string) error

	// Revoke blacklists token for ttl. Non-positive ttls are ignored since
	// the token has already expired.
	Revoke(ctx context.Context, token string, ttl time.Duration) error

	IsRevoked(ctx context.Context, token string) (bool, error)

	Ping(ctx context.Context) error
	Close() error
}
