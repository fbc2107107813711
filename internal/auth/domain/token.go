package domain

import "time"

// IssuedToken is a freshly signed bearer token.
type IssuedToken struct {
	Token     string
	SubjectID string
	Role      Role
	RoleID    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TTL is the full lifetime of the token.
func (t IssuedToken) TTL() time.Duration { return t.ExpiresAt.Sub(t.IssuedAt) }
