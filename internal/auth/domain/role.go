package domain

import "github.com/swiftlogistics/platform/pkg/idx"

type Role string

const (
	RoleClient Role = "client"
	RoleDriver Role = "driver"
	RoleAdmin  Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleClient, RoleDriver, RoleAdmin:
		return true
	}
	return false
}

// RoleIDPrefix is the prefix of generated role ids: CL for clients and DR
// for drivers.
func (r Role) RoleIDPrefix() string {
	switch r {
	case RoleClient:
		return "CL"
	case RoleDriver:
		return "DR"
	default:
		return ""
	}
}

// NewRoleID generates a role id for r, or "" for roles without one.
func (r Role) NewRoleID() string {
	prefix := r.RoleIDPrefix()
	if prefix == "" {
		return ""
	}
	return idx.NewPrefixed(prefix)
}
