package models

import "strconv"

// Option is a value/label pair ready for a form select.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// AccountOption formats a as an option keyed by id and labelled with the
// account name and email.
func AccountOption(a *Account) Option {
	label := a.Name()
	if a.Email != "" {
		label += " (" + a.Email + ")"
	}
	return Option{Value: strconv.FormatInt(a.ID, 10), Label: label}
}

// RoleOption formats r as an option keyed by role name.
func RoleOption(r Role) Option {
	label := r.DisplayName
	if label == "" {
		label = r.Name
	}
	return Option{Value: r.Name, Label: label}
}
