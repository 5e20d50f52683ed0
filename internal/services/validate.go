package services

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dmitrijs2005/userkit/internal/common"
	"github.com/dmitrijs2005/userkit/internal/identifier"
	"github.com/dmitrijs2005/userkit/internal/models"
)

const maxLoginLength = 60

var slugUnsafe = regexp.MustCompile(`[^a-z0-9]+`)

// normalizeNewAccount trims the input, checks that the account would be
// resolvable by its login and email, and fills slug and display name.
func normalizeNewAccount(in models.NewAccount) (models.NewAccount, error) {
	in.Login = strings.TrimSpace(in.Login)
	in.Email = strings.TrimSpace(in.Email)
	in.Slug = strings.TrimSpace(in.Slug)
	in.DisplayName = strings.TrimSpace(in.DisplayName)
	in.Role = strings.TrimSpace(in.Role)

	if err := validateLogin(in.Login, in.Email); err != nil {
		return in, err
	}
	if !identifier.IsEmail(in.Email) {
		return in, fmt.Errorf("%w: %q", common.ErrorInvalidEmail, in.Email)
	}

	if in.Slug == "" {
		in.Slug = slugify(in.Login)
	}
	if in.DisplayName == "" {
		in.DisplayName = in.Login
	}
	return in, nil
}

func validateLogin(login, email string) error {
	if login == "" || utf8.RuneCountInString(login) > maxLoginLength {
		return fmt.Errorf("%w: %q", common.ErrorInvalidLogin, login)
	}
	for _, r := range login {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: %q", common.ErrorInvalidLogin, login)
		}
	}

	// A login must resolve back to its own account.
	switch identifier.ParseString(login).Kind() {
	case identifier.KindID:
		return fmt.Errorf("%w: numeric login %q", common.ErrorInvalidLogin, login)
	case identifier.KindEmail:
		if !strings.EqualFold(login, email) {
			return fmt.Errorf("%w: login %q looks like another email", common.ErrorInvalidLogin, login)
		}
	}
	return nil
}

func slugify(s string) string {
	slug := strings.Trim(slugUnsafe.ReplaceAllString(strings.ToLower(s), "-"), "-")
	if slug == "" {
		return strings.ToLower(s)
	}
	return slug
}
