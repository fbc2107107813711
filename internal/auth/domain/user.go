package domain

import "time"

type AccountStatus string

const (
	StatusActive    AccountStatus = "Active"
	StatusInactive  AccountStatus = "Inactive"
	StatusSuspended AccountStatus = "Suspended"
)

// Account is a client, driver or admin login.
type Account struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string // bcrypt encoded
	Role         Role

	// RoleID is the clientId or driverId, depending on Role. Admins have none.
	RoleID string

	Phone     string
	Address   string
	Status    AccountStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (a Account) Active() bool { return a.Status == StatusActive }

// ClientID is the role id when the account is a client.
func (a Account) ClientID() string {
	if a.Role == RoleClient {
		return a.RoleID
	}
	return ""
}

// DriverID is the role id when the account is a driver.
func (a Account) DriverID() string {
	if a.Role == RoleDriver {
		return a.RoleID
	}
	return ""
}
