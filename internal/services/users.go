package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/userkit/internal/common"
	"github.com/dmitrijs2005/userkit/internal/config"
	"github.com/dmitrijs2005/userkit/internal/identifier"
	"github.com/dmitrijs2005/userkit/internal/logging"
	"github.com/dmitrijs2005/userkit/internal/models"
	"github.com/dmitrijs2005/userkit/internal/repositories/repomanager"
	"github.com/google/uuid"
)

// UsersService provides listing, search and bulk operations over many
// accounts. Bulk operations run one element at a time and never stop early:
// each element gets its own Outcome.
type UsersService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	user        *UserService
	log         logging.Logger
	pageSize    int
}

// NewUsersService constructs a UsersService using repositories and config.
func NewUsersService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, log logging.Logger) *UsersService {
	if log == nil {
		log = logging.Discard()
	}
	return &UsersService{
		db:          db,
		repomanager: m,
		user:        NewUserService(db, m, cfg, log),
		log:         log.With("component", "users"),
		pageSize:    cfg.PageSize,
	}
}

func (s *UsersService) defaults() models.Query {
	return models.Query{Number: s.pageSize}
}

// List returns the accounts matching q, with unset fields taken from the
// configured defaults.
func (s *UsersService) List(ctx context.Context, q models.Query) ([]*models.Account, error) {
	return s.repomanager.Accounts(s.db).List(ctx, q.Merge(s.defaults()))
}

// Count returns the number of accounts matching q, ignoring paging.
func (s *UsersService) Count(ctx context.Context, q models.Query) (int64, error) {
	return s.repomanager.Accounts(s.db).Count(ctx, q)
}

func (s *UsersService) ByRole(ctx context.Context, role string, q models.Query) ([]*models.Account, error) {
	q.Role = role
	return s.List(ctx, q)
}

func (s *UsersService) ByCapability(ctx context.Context, capability string, q models.Query) ([]*models.Account, error) {
	q.Capability = capability
	return s.List(ctx, q)
}

// ByMeta lists accounts having key. A nil value matches any value.
func (s *UsersService) ByMeta(ctx context.Context, key string, value any, q models.Query) ([]*models.Account, error) {
	if key == "" {
		return nil, common.ErrorEmptyMetaKey
	}
	q.MetaKey = key
	q.MetaValue = nil
	if value != nil {
		stored, err := encodeMetaValue(value)
		if err != nil {
			return nil, err
		}
		q.MetaValue = &stored
	}
	return s.List(ctx, q)
}

// Recent lists accounts registered within the last days, newest first.
func (s *UsersService) Recent(ctx context.Context, days int, q models.Query) ([]*models.Account, error) {
	if days <= 0 {
		return []*models.Account{}, nil
	}
	q.RegisteredWithinDays = days
	if q.OrderBy == "" {
		q.OrderBy = "registered"
		q.Order = "desc"
	}
	return s.List(ctx, q)
}

// Search lists accounts whose login, slug, email or display name match
// term. A '*' at either end of term anchors the match at the other end.
func (s *UsersService) Search(ctx context.Context, term string, q models.Query) ([]*models.Account, error) {
	if term == "" {
		return []*models.Account{}, nil
	}
	q.Search = term
	return s.List(ctx, q)
}

// ByIdentifiers resolves values and returns the distinct accounts found, in
// discovery order. The session account is never substituted.
func (s *UsersService) ByIdentifiers(ctx context.Context, values []any) ([]*models.Account, error) {
	return s.user.resolver.ResolveAll(ctx, identifier.ParseAll(values))
}

// SanitizeIDs returns the ids of the accounts values resolve to.
func (s *UsersService) SanitizeIDs(ctx context.Context, values []any) ([]int64, error) {
	accounts, err := s.ByIdentifiers(ctx, values)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, len(accounts))
	for i, a := range accounts {
		ids[i] = a.ID
	}
	return ids, nil
}

// Emails returns the email of every account values resolve to.
func (s *UsersService) Emails(ctx context.Context, values []any) ([]Field, error) {
	return s.project(ctx, values, func(a *models.Account) string { return a.Email })
}

// DisplayNames returns the display name of every account values resolve to.
func (s *UsersService) DisplayNames(ctx context.Context, values []any) ([]Field, error) {
	return s.project(ctx, values, (*models.Account).Name)
}

func (s *UsersService) project(ctx context.Context, values []any, field func(*models.Account) string) ([]Field, error) {
	accounts, err := s.ByIdentifiers(ctx, values)
	if err != nil {
		return nil, err
	}
	out := make([]Field, len(accounts))
	for i, a := range accounts {
		out[i] = Field{ID: a.ID, Value: field(a)}
	}
	return out, nil
}

// CreateMany creates each account independently. Accounts whose login or
// email is taken are reported as CreateExists.
func (s *UsersService) CreateMany(ctx context.Context, accounts []models.NewAccount) []CreateOutcome {
	log := s.log.With("batch_id", uuid.NewString(), "op", "create")
	log.Info(ctx, "bulk started", "size", len(accounts))

	outcomes := make([]CreateOutcome, len(accounts))
	created := 0
	for i, in := range accounts {
		o := CreateOutcome{Login: in.Login}
		a, password, err := s.user.Create(ctx, in)
		switch {
		case err == nil:
			o.Status, o.Account, o.Password = Created, a, password
			created++
		case errors.Is(err, common.ErrorAlreadyExists):
			o.Status, o.Err = CreateExists, err
		default:
			o.Status, o.Err = CreateFailed, err
			log.Warn(ctx, "element failed", "index", i, "login", in.Login, "error", err)
		}
		outcomes[i] = o
	}

	log.Info(ctx, "bulk finished", "size", len(accounts), "created", created)
	return outcomes
}

// DeleteMany deletes each account values resolve to. reassignTo applies to
// every element.
func (s *UsersService) DeleteMany(ctx context.Context, values []any, reassignTo any) []Outcome {
	target := identifier.Parse(reassignTo)
	return s.each(ctx, "delete", values, func(ctx context.Context, a *models.Account) (bool, error) {
		return s.user.delete(ctx, a, target)
	})
}

// UpdateMetaMany sets key to value on each account. OK is false for
// accounts that already held the value.
func (s *UsersService) UpdateMetaMany(ctx context.Context, values []any, key string, value any) []Outcome {
	return s.each(ctx, "update_meta", values, func(ctx context.Context, a *models.Account) (bool, error) {
		if key == "" {
			return false, common.ErrorEmptyMetaKey
		}
		return s.user.updateMeta(ctx, a, key, value)
	})
}

// DeleteMetaMany removes key from each account.
func (s *UsersService) DeleteMetaMany(ctx context.Context, values []any, key string) []Outcome {
	return s.each(ctx, "delete_meta", values, func(ctx context.Context, a *models.Account) (bool, error) {
		if key == "" {
			return false, common.ErrorEmptyMetaKey
		}
		return s.user.deleteMeta(ctx, a, key, nil)
	})
}

// SetRoleMany replaces the roles of each account with role.
func (s *UsersService) SetRoleMany(ctx context.Context, values []any, role string) []Outcome {
	return s.each(ctx, "set_role", values, func(ctx context.Context, a *models.Account) (bool, error) {
		return s.user.setRole(ctx, a, role)
	})
}

// each resolves every value without fallback and applies fn to the
// accounts found. Unresolved values get common.ErrorNotFound.
func (s *UsersService) each(ctx context.Context, op string, values []any,
	fn func(context.Context, *models.Account) (bool, error)) []Outcome {

	log := s.log.With("batch_id", uuid.NewString(), "op", op)
	log.Info(ctx, "bulk started", "size", len(values))

	outcomes := make([]Outcome, len(values))
	for i, v := range values {
		ident := identifier.Parse(v)
		o := Outcome{Identifier: ident}

		a, err := s.user.account(ctx, ident, false)
		switch {
		case err != nil:
			o.Err = err
		case a == nil:
			o.Err = common.ErrorNotFound
		default:
			o.AccountID = a.ID
			o.OK, o.Err = fn(ctx, a)
		}

		if o.Err != nil && !errors.Is(o.Err, common.ErrorNotFound) {
			log.Warn(ctx, "element failed", "index", i, "identifier", ident.String(), "error", o.Err)
		}
		outcomes[i] = o
	}

	log.Info(ctx, "bulk finished", "size", len(values), "ok", countOK(outcomes))
	return outcomes
}

// Options returns a value/label pair per account matching q.
func (s *UsersService) Options(ctx context.Context, q models.Query) ([]models.Option, error) {
	accounts, err := s.List(ctx, q)
	if err != nil {
		return nil, err
	}
	opts := make([]models.Option, len(accounts))
	for i, a := range accounts {
		opts[i] = models.AccountOption(a)
	}
	return opts, nil
}

// EmailOptions is like Options but keyed by email.
func (s *UsersService) EmailOptions(ctx context.Context, q models.Query) ([]models.Option, error) {
	accounts, err := s.List(ctx, q)
	if err != nil {
		return nil, err
	}
	opts := make([]models.Option, 0, len(accounts))
	for _, a := range accounts {
		if a.Email == "" {
			continue
		}
		opts = append(opts, models.Option{Value: a.Email, Label: a.Name()})
	}
	return opts, nil
}

// RoleOptions returns a value/label pair per known role.
func (s *UsersService) RoleOptions(ctx context.Context) ([]models.Option, error) {
	roles, err := s.repomanager.Accounts(s.db).Roles(ctx)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	opts := make([]models.Option, len(roles))
	for i, r := range roles {
		opts[i] = models.RoleOption(r)
	}
	return opts, nil
}
