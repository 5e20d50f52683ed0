package models

// Role is an entry of the host's role catalogue.
type Role struct {
	Name         string
	DisplayName  string
	Capabilities []string
}
