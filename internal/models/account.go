// Package models holds the records exchanged between the repositories and
// the services.
package models

import (
	"strings"
	"time"
)

// Account is a user record owned by the host store.
type Account struct {
	ID           int64
	Login        string
	Slug         string
	Email        string
	DisplayName  string
	FirstName    string
	LastName     string
	RegisteredAt time.Time
	Roles        []string
	Capabilities map[string]bool
}

// AccountID makes *Account usable wherever an identifier is expected.
func (a *Account) AccountID() int64 {
	if a == nil {
		return 0
	}
	return a.ID
}

// HasRole reports whether role is among the account's roles.
func (a *Account) HasRole(role string) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Can reports whether the account holds capability. Role names count as
// capabilities of their holders.
func (a *Account) Can(capability string) bool {
	if granted, ok := a.Capabilities[capability]; ok {
		return granted
	}
	return a.HasRole(capability)
}

// Name returns the display name, falling back to first and last name and
// then to the login.
func (a *Account) Name() string {
	if a.DisplayName != "" {
		return a.DisplayName
	}
	if full := strings.TrimSpace(a.FirstName + " " + a.LastName); full != "" {
		return full
	}
	return a.Login
}

// NewAccount is the input for creating an account.
type NewAccount struct {
	Login       string
	Email       string
	Password    string
	Slug        string
	DisplayName string
	FirstName   string
	LastName    string
	Role        string
	Meta        map[string]string
}

// AccountRecord is what the repository persists on create.
type AccountRecord struct {
	Account
	PasswordHash string
}
