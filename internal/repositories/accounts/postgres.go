// Package accounts implements the account primitives of the host store on
// PostgreSQL.
package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/userkit/internal/common"
	"github.com/dmitrijs2005/userkit/internal/dbx"
	"github.com/dmitrijs2005/userkit/internal/models"
	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQL error codes mapped to sentinel errors.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

const selectAccount = `SELECT a.id, a.login, a.slug, a.email, a.display_name, a.first_name, a.last_name, a.registered_at,
	COALESCE((SELECT string_agg(ar.role, ',' ORDER BY ar.position) FROM account_roles ar WHERE ar.account_id = a.id), ''),
	COALESCE((SELECT string_agg(g.capability || ':' || g.granted::text, ',') FROM account_capability_grants g WHERE g.account_id = a.id), '')
	FROM accounts a`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*models.Account, error) {
	a := &models.Account{}
	var roles, caps string

	err := row.Scan(&a.ID, &a.Login, &a.Slug, &a.Email, &a.DisplayName, &a.FirstName, &a.LastName,
		&a.RegisteredAt, &roles, &caps)
	if err != nil {
		return nil, err
	}

	a.Roles = splitRoles(roles)
	a.Capabilities = parseCapabilities(caps)
	return a, nil
}

func splitRoles(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.Split(s, ",")
}

// parseCapabilities decodes "cap:true,cap2:false".
func parseCapabilities(s string) map[string]bool {
	caps := make(map[string]bool)
	if s == "" {
		return caps
	}
	for _, pair := range strings.Split(s, ",") {
		name, granted, ok := strings.Cut(pair, ":")
		if !ok || name == "" {
			continue
		}
		v, err := strconv.ParseBool(granted)
		if err != nil {
			continue
		}
		caps[name] = v
	}
	return caps
}

func (r *PostgresRepository) getOne(ctx context.Context, where string, arg any) (*models.Account, error) {
	a, err := scanAccount(r.db.QueryRowContext(ctx, selectAccount+" WHERE "+where, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return a, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.Account, error) {
	return r.getOne(ctx, "a.id = $1", id)
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	return r.getOne(ctx, "lower(a.email) = lower($1)", email)
}

func (r *PostgresRepository) GetByLogin(ctx context.Context, login string) (*models.Account, error) {
	return r.getOne(ctx, "a.login = $1", login)
}

func (r *PostgresRepository) GetBySlug(ctx context.Context, slug string) (*models.Account, error) {
	return r.getOne(ctx, "a.slug = $1", slug)
}

func (r *PostgresRepository) PasswordHash(ctx context.Context, id int64) (string, error) {
	var hash string
	err := r.db.QueryRowContext(ctx, `SELECT password_hash FROM accounts WHERE id = $1`, id).Scan(&hash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", common.ErrorNotFound
		}
		return "", fmt.Errorf("db error: %w", err)
	}
	return hash, nil
}

func (r *PostgresRepository) List(ctx context.Context, q models.Query) ([]*models.Account, error) {
	b := buildWhere(q)

	query := selectAccount + b.sql() + " ORDER BY " + q.OrderColumn() + " " + q.Direction() + ", a.id"
	if limit := q.Limit(); limit > 0 {
		query += " LIMIT " + b.arg(limit)
	}
	if skip := q.Skip(); skip > 0 {
		query += " OFFSET " + b.arg(skip)
	}

	rows, err := r.db.QueryContext(ctx, query, b.args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := []*models.Account{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}

func (r *PostgresRepository) Count(ctx context.Context, q models.Query) (int64, error) {
	b := buildWhere(q)

	var n int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM accounts a"+b.sql(), b.args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) Create(ctx context.Context, rec *models.AccountRecord) (*models.Account, error) {
	query :=
		`INSERT INTO accounts (login, slug, email, display_name, first_name, last_name, password_hash)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, registered_at`

	a := rec.Account
	err := r.db.QueryRowContext(ctx, query,
		a.Login, a.Slug, a.Email, a.DisplayName, a.FirstName, a.LastName, rec.PasswordHash).
		Scan(&a.ID, &a.RegisteredAt)
	if err != nil {
		if isPgCode(err, pgUniqueViolation) {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if a.Roles == nil {
		a.Roles = []string{}
	}
	if a.Capabilities == nil {
		a.Capabilities = map[string]bool{}
	}
	return &a, nil
}

// SetRoles replaces the account's roles, keeping their order. Callers
// should run it in a transaction.
func (r *PostgresRepository) SetRoles(ctx context.Context, id int64, roles []string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM account_roles WHERE account_id = $1`, id); err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	for pos, role := range roles {
		_, err := r.db.ExecContext(ctx,
			`INSERT INTO account_roles (account_id, role, position) VALUES ($1, $2, $3)`, id, role, pos)
		if err != nil {
			if isPgCode(err, pgForeignKeyViolation) {
				return fmt.Errorf("%w: %s", common.ErrorUnknownRole, role)
			}
			return fmt.Errorf("db error: %w", err)
		}
	}
	return nil
}

func (r *PostgresRepository) ReassignContent(ctx context.Context, from, to int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE posts SET author_id = $2 WHERE author_id = $1`, from, to)
	if err != nil {
		if isPgCode(err, pgForeignKeyViolation) {
			return 0, common.ErrorNotFound
		}
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) Roles(ctx context.Context) ([]models.Role, error) {
	query :=
		`SELECT r.name, r.display_name, COALESCE(string_agg(rc.capability, ',' ORDER BY rc.capability), '')
		 FROM roles r
		 LEFT JOIN role_capabilities rc ON rc.role = r.name
		 GROUP BY r.name, r.display_name
		 ORDER BY r.name`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var roles []models.Role
	for rows.Next() {
		var role models.Role
		var caps string
		if err := rows.Scan(&role.Name, &role.DisplayName, &caps); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		role.Capabilities = splitRoles(caps)
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return roles, nil
}

func isPgCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}
