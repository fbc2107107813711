package domain

// BootstrapData describes the admin account created on first boot.
type BootstrapData struct {
	AdminEmail    string
	AdminName     string
	AdminPassword string
}
