// Package services contains the account facade. This file implements
// UserService, the single-account operations: lookup, metadata, roles,
// creation, deletion and sessions.
//
// Every operation takes an identifier of any supported shape (see
// identifier.Parse). Reads fail soft: a missing account yields a zero value
// and a nil error, while storage failures are returned.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/dmitrijs2005/userkit/internal/auth"
	"github.com/dmitrijs2005/userkit/internal/common"
	"github.com/dmitrijs2005/userkit/internal/config"
	"github.com/dmitrijs2005/userkit/internal/dbx"
	"github.com/dmitrijs2005/userkit/internal/identifier"
	"github.com/dmitrijs2005/userkit/internal/logging"
	"github.com/dmitrijs2005/userkit/internal/models"
	"github.com/dmitrijs2005/userkit/internal/repositories/repomanager"
	"github.com/dmitrijs2005/userkit/internal/session"
	"golang.org/x/crypto/bcrypt"
)

// AdminCapability marks accounts allowed to manage the site.
const AdminCapability = "manage_options"

// Seams for tests.
var (
	now        = time.Now
	bcryptCost = bcrypt.DefaultCost
)

// UserService provides single-account operations.
type UserService struct {
	db                           *sql.DB
	repomanager                  repomanager.RepositoryManager
	resolver                     *identifier.Resolver
	log                          logging.Logger
	jwtSecret                    []byte
	sessionTokenValidityDuration time.Duration
	defaultRole                  string
	generatedPasswordBytes       int
}

// NewUserService constructs a UserService using repositories and config.
func NewUserService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, log logging.Logger) *UserService {
	if log == nil {
		log = logging.Discard()
	}
	return &UserService{
		db:                           db,
		repomanager:                  m,
		resolver:                     identifier.NewResolver(m.Accounts(db)),
		log:                          log.With("component", "user"),
		jwtSecret:                    []byte(cfg.SecretKey),
		sessionTokenValidityDuration: cfg.SessionTokenValidityDuration,
		defaultRole:                  cfg.DefaultRole,
		generatedPasswordBytes:       cfg.GeneratedPasswordBytes,
	}
}

// account resolves ident, mapping not-found to (nil, nil).
func (s *UserService) account(ctx context.Context, ident identifier.Identifier, fallback bool) (*models.Account, error) {
	a, err := s.resolver.Resolve(ctx, ident, fallback)
	if errors.Is(err, common.ErrorNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", ident, err)
	}
	return a, nil
}

// Get returns the account v identifies, or nil. With fallback set, an
// empty v or 0 means the session account.
func (s *UserService) Get(ctx context.Context, v any, fallback bool) (*models.Account, error) {
	return s.account(ctx, identifier.Parse(v), fallback)
}

// GetID returns the id of the account v identifies, or 0.
func (s *UserService) GetID(ctx context.Context, v any) (int64, error) {
	a, err := s.Get(ctx, v, true)
	return a.AccountID(), err
}

// Exists reports whether v names an existing account. The session account
// is never substituted.
func (s *UserService) Exists(ctx context.Context, v any) (bool, error) {
	a, err := s.Get(ctx, v, false)
	return a != nil, err
}

// Current returns the session account, or nil for anonymous requests.
func (s *UserService) Current(ctx context.Context) (*models.Account, error) {
	return s.account(ctx, identifier.Empty(), true)
}

// IsLoggedIn reports whether ctx carries a session.
func (s *UserService) IsLoggedIn(ctx context.Context) bool {
	_, ok := session.FromContext(ctx)
	return ok
}

// IsCurrent reports whether v names the session account.
func (s *UserService) IsCurrent(ctx context.Context, v any) (bool, error) {
	current := session.CurrentAccountID(ctx)
	if current == 0 {
		return false, nil
	}
	a, err := s.Get(ctx, v, false)
	if err != nil || a == nil {
		return false, err
	}
	return a.ID == current, nil
}

// GetMeta returns every value stored under key, in insertion order.
func (s *UserService) GetMeta(ctx context.Context, v any, key string) ([]string, error) {
	a, err := s.Get(ctx, v, true)
	if err != nil || a == nil || key == "" {
		return nil, err
	}
	return s.repomanager.Meta(s.db).Get(ctx, a.ID, key)
}

// GetMetaSingle returns the first value stored under key, or "".
func (s *UserService) GetMetaSingle(ctx context.Context, v any, key string) (string, error) {
	values, err := s.GetMeta(ctx, v, key)
	if err != nil || len(values) == 0 {
		return "", err
	}
	return values[0], nil
}

// HasMeta reports whether key holds at least one value.
func (s *UserService) HasMeta(ctx context.Context, v any, key string) (bool, error) {
	values, err := s.GetMeta(ctx, v, key)
	return len(values) > 0, err
}

// AllMeta returns all metadata of the account keyed by meta key.
func (s *UserService) AllMeta(ctx context.Context, v any) (map[string][]string, error) {
	a, err := s.Get(ctx, v, true)
	if err != nil || a == nil {
		return nil, err
	}
	return s.repomanager.Meta(s.db).List(ctx, a.ID)
}

// AddMeta stores value under key. With unique set nothing is added when the
// key already holds a value.
func (s *UserService) AddMeta(ctx context.Context, v any, key string, value any, unique bool) (bool, error) {
	if key == "" {
		return false, common.ErrorEmptyMetaKey
	}
	a, err := s.Get(ctx, v, true)
	if err != nil || a == nil {
		return false, err
	}

	stored, err := encodeMetaValue(value)
	if err != nil {
		return false, err
	}

	repo := s.repomanager.Meta(s.db)
	if unique {
		existing, err := repo.Get(ctx, a.ID, key)
		if err != nil {
			return false, err
		}
		if len(existing) > 0 {
			return false, nil
		}
	}

	if err := repo.Add(ctx, a.ID, key, stored); err != nil {
		return false, err
	}
	s.log.Debug(ctx, "meta added", "account_id", a.ID, "key", key)
	return true, nil
}

// UpdateMeta sets key to value. It reports false without writing when key
// already holds exactly that stored value.
func (s *UserService) UpdateMeta(ctx context.Context, v any, key string, value any) (bool, error) {
	if key == "" {
		return false, common.ErrorEmptyMetaKey
	}
	a, err := s.Get(ctx, v, true)
	if err != nil || a == nil {
		return false, err
	}
	return s.updateMeta(ctx, a, key, value)
}

func (s *UserService) updateMeta(ctx context.Context, a *models.Account, key string, value any) (bool, error) {
	stored, err := encodeMetaValue(value)
	if err != nil {
		return false, err
	}

	repo := s.repomanager.Meta(s.db)
	existing, err := repo.Get(ctx, a.ID, key)
	if err != nil {
		return false, err
	}
	if len(existing) == 1 && existing[0] == stored {
		return false, nil
	}

	if err := repo.Update(ctx, a.ID, key, stored); err != nil {
		return false, err
	}
	s.log.Debug(ctx, "meta updated", "account_id", a.ID, "key", key)
	return true, nil
}

// DeleteMeta removes every value stored under key.
func (s *UserService) DeleteMeta(ctx context.Context, v any, key string) (bool, error) {
	if key == "" {
		return false, common.ErrorEmptyMetaKey
	}
	a, err := s.Get(ctx, v, true)
	if err != nil || a == nil {
		return false, err
	}
	return s.deleteMeta(ctx, a, key, nil)
}

// DeleteMetaValue removes the values under key whose stored form equals
// value.
func (s *UserService) DeleteMetaValue(ctx context.Context, v any, key string, value any) (bool, error) {
	if key == "" {
		return false, common.ErrorEmptyMetaKey
	}
	a, err := s.Get(ctx, v, true)
	if err != nil || a == nil {
		return false, err
	}
	stored, err := encodeMetaValue(value)
	if err != nil {
		return false, err
	}
	return s.deleteMeta(ctx, a, key, &stored)
}

func (s *UserService) deleteMeta(ctx context.Context, a *models.Account, key string, value *string) (bool, error) {
	n, err := s.repomanager.Meta(s.db).Delete(ctx, a.ID, key, value)
	if err != nil {
		return false, err
	}
	if n > 0 {
		s.log.Debug(ctx, "meta deleted", "account_id", a.ID, "key", key, "rows", n)
	}
	return n > 0, nil
}

// Roles returns the account's roles in assignment order.
func (s *UserService) Roles(ctx context.Context, v any) ([]string, error) {
	a, err := s.Get(ctx, v, true)
	if err != nil || a == nil {
		return nil, err
	}
	return a.Roles, nil
}

// HasRole reports whether the account holds role.
func (s *UserService) HasRole(ctx context.Context, v any, role string) (bool, error) {
	a, err := s.Get(ctx, v, true)
	if err != nil || a == nil {
		return false, err
	}
	return a.HasRole(role), nil
}

// HasCapability reports whether the account is granted capability.
func (s *UserService) HasCapability(ctx context.Context, v any, capability string) (bool, error) {
	a, err := s.Get(ctx, v, true)
	if err != nil || a == nil {
		return false, err
	}
	return a.Can(capability), nil
}

// IsAdmin reports whether the account can manage the site.
func (s *UserService) IsAdmin(ctx context.Context, v any) (bool, error) {
	return s.HasCapability(ctx, v, AdminCapability)
}

// SetRole replaces all roles of the account with role. An empty role
// removes every role.
func (s *UserService) SetRole(ctx context.Context, v any, role string) (bool, error) {
	a, err := s.Get(ctx, v, false)
	if err != nil || a == nil {
		return false, err
	}
	return s.setRole(ctx, a, role)
}

func (s *UserService) setRole(ctx context.Context, a *models.Account, role string) (bool, error) {
	roles := []string{}
	if role != "" {
		roles = append(roles, role)
	}
	if err := s.setRoles(ctx, a, roles); err != nil {
		return false, err
	}
	return true, nil
}

// AddRole grants role in addition to the roles the account already holds.
func (s *UserService) AddRole(ctx context.Context, v any, role string) (bool, error) {
	a, err := s.Get(ctx, v, false)
	if err != nil || a == nil || role == "" || a.HasRole(role) {
		return false, err
	}
	if err := s.setRoles(ctx, a, append(slices.Clone(a.Roles), role)); err != nil {
		return false, err
	}
	return true, nil
}

// RemoveRole revokes role, keeping the other roles.
func (s *UserService) RemoveRole(ctx context.Context, v any, role string) (bool, error) {
	a, err := s.Get(ctx, v, false)
	if err != nil || a == nil || !a.HasRole(role) {
		return false, err
	}
	roles := slices.DeleteFunc(slices.Clone(a.Roles), func(r string) bool { return r == role })
	if err := s.setRoles(ctx, a, roles); err != nil {
		return false, err
	}
	return true, nil
}

func (s *UserService) setRoles(ctx context.Context, a *models.Account, roles []string) error {
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return s.repomanager.Accounts(tx).SetRoles(ctx, a.ID, roles)
	})
	if err != nil {
		return err
	}
	s.log.Info(ctx, "roles set", "account_id", a.ID, "roles", roles)
	return nil
}

// DisplayName returns the account's display name, or "".
func (s *UserService) DisplayName(ctx context.Context, v any) (string, error) {
	a, err := s.Get(ctx, v, true)
	if err != nil || a == nil {
		return "", err
	}
	return a.Name(), nil
}

// Email returns the account's email, or "".
func (s *UserService) Email(ctx context.Context, v any) (string, error) {
	a, err := s.Get(ctx, v, true)
	if err != nil || a == nil {
		return "", err
	}
	return a.Email, nil
}

// RegisteredAt returns the registration time, or the zero time.
func (s *UserService) RegisteredAt(ctx context.Context, v any) (time.Time, error) {
	a, err := s.Get(ctx, v, true)
	if err != nil || a == nil {
		return time.Time{}, err
	}
	return a.RegisteredAt, nil
}

// DaysSinceRegistration returns the number of whole days since the account
// registered, or -1 when there is no such account.
func (s *UserService) DaysSinceRegistration(ctx context.Context, v any) (int, error) {
	a, err := s.Get(ctx, v, true)
	if err != nil || a == nil {
		return -1, err
	}
	days := int(now().Sub(a.RegisteredAt).Hours() / 24)
	return max(days, 0), nil
}

// Create validates in, applies defaults and persists the account together
// with its role and metadata. When in.Password is empty a password is
// generated and returned; otherwise the returned password is "".
func (s *UserService) Create(ctx context.Context, in models.NewAccount) (*models.Account, string, error) {
	in, err := normalizeNewAccount(in)
	if err != nil {
		return nil, "", err
	}
	if in.Role == "" {
		in.Role = s.defaultRole
	}

	generated := ""
	if in.Password == "" {
		generated, err = common.MakeRandHexString(s.generatedPasswordBytes)
		if err != nil {
			return nil, "", common.ErrorInternal
		}
		in.Password = generated
	}

	pw := []byte(in.Password)
	hash, err := bcrypt.GenerateFromPassword(pw, bcryptCost)
	common.WipeByteArray(pw)
	if err != nil {
		return nil, "", fmt.Errorf("hash password: %w", err)
	}

	rec := &models.AccountRecord{
		Account: models.Account{
			Login:       in.Login,
			Slug:        in.Slug,
			Email:       in.Email,
			DisplayName: in.DisplayName,
			FirstName:   in.FirstName,
			LastName:    in.LastName,
		},
		PasswordHash: string(hash),
	}

	var created *models.Account
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		accounts := s.repomanager.Accounts(tx)

		a, err := accounts.Create(ctx, rec)
		if err != nil {
			return err
		}

		roles := []string{}
		if in.Role != "" {
			roles = append(roles, in.Role)
		}
		if err := accounts.SetRoles(ctx, a.ID, roles); err != nil {
			return err
		}
		a.Roles = roles

		meta := s.repomanager.Meta(tx)
		keys := make([]string, 0, len(in.Meta))
		for k := range in.Meta {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if k == "" {
				return common.ErrorEmptyMetaKey
			}
			if err := meta.Add(ctx, a.ID, k, in.Meta[k]); err != nil {
				return err
			}
		}

		created = a
		return nil
	})
	if err != nil {
		return nil, "", err
	}

	s.log.Info(ctx, "account created", "account_id", created.ID, "login", created.Login, "role", in.Role)
	return created, generated, nil
}

// Delete removes the account v names. When reassignTo is not empty the
// account's content moves to that account first; an unknown target
// deletes nothing.
func (s *UserService) Delete(ctx context.Context, v any, reassignTo any) (bool, error) {
	a, err := s.Get(ctx, v, false)
	if err != nil || a == nil {
		return false, err
	}
	return s.delete(ctx, a, identifier.Parse(reassignTo))
}

func (s *UserService) delete(ctx context.Context, a *models.Account, reassign identifier.Identifier) (bool, error) {
	var target *models.Account
	if !reassign.IsEmpty() {
		t, err := s.account(ctx, reassign, false)
		if err != nil {
			return false, err
		}
		if t == nil {
			s.log.Warn(ctx, "reassign target not found", "account_id", a.ID, "target", reassign.String())
			return false, nil
		}
		if t.ID == a.ID {
			return false, common.ErrorSelfReassign
		}
		target = t
	}

	var moved int64
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		accounts := s.repomanager.Accounts(tx)
		if target != nil {
			n, err := accounts.ReassignContent(ctx, a.ID, target.ID)
			if err != nil {
				return err
			}
			moved = n
		}
		return accounts.Delete(ctx, a.ID)
	})
	if errors.Is(err, common.ErrorNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	s.log.Info(ctx, "account deleted", "account_id", a.ID, "reassigned_to", target.AccountID(), "moved", moved)
	return true, nil
}

// Authenticate checks password against the account v names and returns a
// session token. Unknown accounts and wrong passwords both yield
// common.ErrorUnauthorized.
func (s *UserService) Authenticate(ctx context.Context, v any, password string) (string, error) {
	a, err := s.Get(ctx, v, false)
	if err != nil {
		return "", common.ErrorInternal
	}
	if a == nil {
		return "", common.ErrorUnauthorized
	}

	hash, err := s.repomanager.Accounts(s.db).PasswordHash(ctx, a.ID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", common.ErrorUnauthorized
		}
		return "", common.ErrorInternal
	}

	pw := []byte(password)
	defer common.WipeByteArray(pw)
	if err := bcrypt.CompareHashAndPassword([]byte(hash), pw); err != nil {
		s.log.Warn(ctx, "authentication failed", "account_id", a.ID)
		return "", common.ErrorUnauthorized
	}

	token, err := auth.GenerateToken(a.ID, s.jwtSecret, s.sessionTokenValidityDuration)
	if err != nil {
		return "", common.ErrorInternal
	}
	s.log.Info(ctx, "authenticated", "account_id", a.ID)
	return token, nil
}

// Session validates token and returns ctx carrying the session account.
func (s *UserService) Session(ctx context.Context, token string) (context.Context, error) {
	id, err := auth.AccountIDFromToken(token, s.jwtSecret)
	if err != nil {
		return ctx, err
	}

	a, err := s.account(ctx, identifier.ByID(id), false)
	if err != nil {
		return ctx, err
	}
	if a == nil {
		return ctx, common.ErrorUnauthorized
	}
	return session.WithSession(ctx, session.Session{AccountID: a.ID, Token: token}), nil
}

// Option returns the value/label pair of the account, or nil.
func (s *UserService) Option(ctx context.Context, v any) (*models.Option, error) {
	a, err := s.Get(ctx, v, true)
	if err != nil || a == nil {
		return nil, err
	}
	opt := models.AccountOption(a)
	return &opt, nil
}
