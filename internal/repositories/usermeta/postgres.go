// Package usermeta persists account metadata on PostgreSQL.
package usermeta

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/userkit/internal/common"
	"github.com/dmitrijs2005/userkit/internal/dbx"
	"github.com/jackc/pgx/v5/pgconn"
)

const pgForeignKeyViolation = "23503"

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Get(ctx context.Context, accountID int64, key string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT meta_value FROM account_meta WHERE account_id = $1 AND meta_key = $2 ORDER BY id`, accountID, key)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	values := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return values, nil
}

func (r *PostgresRepository) List(ctx context.Context, accountID int64) (map[string][]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT meta_key, meta_value FROM account_meta WHERE account_id = $1 ORDER BY id`, accountID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	meta := make(map[string][]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		meta[k] = append(meta[k], v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return meta, nil
}

func (r *PostgresRepository) Add(ctx context.Context, accountID int64, key, value string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO account_meta (account_id, meta_key, meta_value) VALUES ($1, $2, $3)`, accountID, key, value)
	if err != nil {
		return mapError(err)
	}
	return nil
}

// updateMeta keeps the oldest row of the key, rewrites it and drops the
// others in one statement. With no rows for the key nothing is affected.
const updateMeta = `
WITH keep AS (
	SELECT min(id) AS id FROM account_meta WHERE account_id = $1 AND meta_key = $2
), dropped AS (
	DELETE FROM account_meta m USING keep
	WHERE m.account_id = $1 AND m.meta_key = $2 AND m.id <> keep.id
)
UPDATE account_meta m SET meta_value = $3 FROM keep WHERE m.id = keep.id`

// Update leaves exactly one row holding value under key, inserting it when
// the key is absent.
func (r *PostgresRepository) Update(ctx context.Context, accountID int64, key, value string) error {
	res, err := r.db.ExecContext(ctx, updateMeta, accountID, key, value)
	if err != nil {
		return mapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n > 0 {
		return nil
	}
	return r.Add(ctx, accountID, key, value)
}

func (r *PostgresRepository) Delete(ctx context.Context, accountID int64, key string, value *string) (int64, error) {
	query := `DELETE FROM account_meta WHERE account_id = $1 AND meta_key = $2`
	args := []any{accountID, key}
	if value != nil {
		query += ` AND meta_value = $3`
		args = append(args, *value)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func mapError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
		return common.ErrorNotFound
	}
	return fmt.Errorf("db error: %w", err)
}
