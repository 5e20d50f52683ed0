package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/userkit/internal/dbx"
	"github.com/dmitrijs2005/userkit/internal/repositories/accounts"
	"github.com/dmitrijs2005/userkit/internal/repositories/usermeta"
)

// RepositoryManager binds repositories to a database handle or an open
// transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Accounts(db dbx.DBTX) accounts.Repository
	Meta(db dbx.DBTX) usermeta.Repository
}
