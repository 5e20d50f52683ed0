package cli

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/userkit/internal/config"
	"github.com/dmitrijs2005/userkit/internal/logging"
	"github.com/dmitrijs2005/userkit/internal/models"
	"github.com/dmitrijs2005/userkit/internal/repositories/repomanager"
	"github.com/dmitrijs2005/userkit/internal/services"
)

// accountService is the part of services.UserService the console uses.
type accountService interface {
	Authenticate(ctx context.Context, v any, password string) (string, error)
	Session(ctx context.Context, token string) (context.Context, error)
	Current(ctx context.Context) (*models.Account, error)
	Get(ctx context.Context, v any, fallback bool) (*models.Account, error)
	Create(ctx context.Context, in models.NewAccount) (*models.Account, string, error)
	AllMeta(ctx context.Context, v any) (map[string][]string, error)
	GetMeta(ctx context.Context, v any, key string) ([]string, error)
	AddMeta(ctx context.Context, v any, key string, value any, unique bool) (bool, error)
	UpdateMeta(ctx context.Context, v any, key string, value any) (bool, error)
	DeleteMeta(ctx context.Context, v any, key string) (bool, error)
	DeleteMetaValue(ctx context.Context, v any, key string, value any) (bool, error)
}

// directoryService is the part of services.UsersService the console uses.
type directoryService interface {
	List(ctx context.Context, q models.Query) ([]*models.Account, error)
	Count(ctx context.Context, q models.Query) (int64, error)
	Search(ctx context.Context, term string, q models.Query) ([]*models.Account, error)
	Recent(ctx context.Context, days int, q models.Query) ([]*models.Account, error)
	SanitizeIDs(ctx context.Context, values []any) ([]int64, error)
	Options(ctx context.Context, q models.Query) ([]models.Option, error)
	EmailOptions(ctx context.Context, q models.Query) ([]models.Option, error)
	RoleOptions(ctx context.Context) ([]models.Option, error)
	SetRoleMany(ctx context.Context, values []any, role string) []services.Outcome
	DeleteMany(ctx context.Context, values []any, reassignTo any) []services.Outcome
}

type App struct {
	config *config.Config
	db     *sql.DB
	user   accountService
	users  directoryService
	log    logging.Logger

	token string
	login string

	in  io.Reader
	out io.Writer
}

// NewApp opens the host store, applies migrations and builds the services.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	log := logging.NewJSONLogger(os.Stderr, cfg.LogLevel)

	db, err := repomanager.Open(ctx, cfg.DatabaseDSN)
	if err != nil {
		return nil, err
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &App{
		config: cfg,
		db:     db,
		user:   services.NewUserService(db, rm, cfg, log),
		users:  services.NewUsersService(db, rm, cfg, log),
		log:    log,
		in:     os.Stdin,
		out:    os.Stdout,
	}, nil
}

// Run starts the REPL and closes the database when it ends.
func (a *App) Run(ctx context.Context) {
	defer a.db.Close()
	a.Root(ctx)
}

func (a *App) isLoggedIn() bool {
	return a.token != ""
}

func (a *App) getStatus() string {
	if a.login == "" {
		return "(anonymous)"
	}
	return fmt.Sprintf("(%s)", a.login)
}

// execute runs one console command. A fresh command tree is built per line
// so that flag values never leak between commands.
func (a *App) execute(ctx context.Context, args []string) error {
	root := a.newRootCmd()
	root.SetArgs(args)
	root.SetIn(a.in)
	root.SetOut(a.out)
	root.SetErr(a.out)
	return root.ExecuteContext(ctx)
}
