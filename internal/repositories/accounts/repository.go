package accounts

import (
	"context"

	"github.com/dmitrijs2005/userkit/internal/models"
)

// Repository is the account half of the host store. Lookups return
// common.ErrorNotFound when nothing matches.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*models.Account, error)
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	GetByLogin(ctx context.Context, login string) (*models.Account, error)
	GetBySlug(ctx context.Context, slug string) (*models.Account, error)
	PasswordHash(ctx context.Context, id int64) (string, error)

	List(ctx context.Context, q models.Query) ([]*models.Account, error)
	Count(ctx context.Context, q models.Query) (int64, error)

	Create(ctx context.Context, rec *models.AccountRecord) (*models.Account, error)
	SetRoles(ctx context.Context, id int64, roles []string) error
	ReassignContent(ctx context.Context, from, to int64) (int64, error)
	Delete(ctx context.Context, id int64) error

	Roles(ctx context.Context) ([]models.Role, error)
}
