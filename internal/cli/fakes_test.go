package cli

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/userkit/internal/common"
	"github.com/dmitrijs2005/userkit/internal/identifier"
	"github.com/dmitrijs2005/userkit/internal/models"
	"github.com/dmitrijs2005/userkit/internal/services"
	"github.com/dmitrijs2005/userkit/internal/session"
)

// fakeUser resolves identifiers against a fixed set of accounts by id,
// login or email. Tokens are "token-<login>"; "expired" yields
// common.ErrTokenExpired.
type fakeUser struct {
	accounts []*models.Account
	meta     map[int64]map[string][]string
	password string

	created  []models.NewAccount
	generate string

	calls []string
	err   error
}

func (f *fakeUser) find(v any) *models.Account {
	ident := identifier.Parse(v)
	for _, a := range f.accounts {
		switch ident.Kind() {
		case identifier.KindID, identifier.KindRef:
			if a.ID == ident.ID() {
				return a
			}
		case identifier.KindEmail:
			if strings.EqualFold(a.Email, ident.Text()) {
				return a
			}
		case identifier.KindLogin:
			if a.Login == ident.Text() {
				return a
			}
		}
	}
	return nil
}

func (f *fakeUser) Authenticate(ctx context.Context, v any, password string) (string, error) {
	a := f.find(v)
	if a == nil || password != f.password {
		return "", common.ErrorUnauthorized
	}
	return "token-" + a.Login, nil
}

func (f *fakeUser) Session(ctx context.Context, token string) (context.Context, error) {
	if token == "expired" {
		return ctx, common.ErrTokenExpired
	}
	a := f.find(strings.TrimPrefix(token, "token-"))
	if a == nil {
		return ctx, common.ErrorUnauthorized
	}
	return session.WithSession(ctx, session.Session{AccountID: a.ID, Token: token}), nil
}

func (f *fakeUser) Current(ctx context.Context) (*models.Account, error) {
	id := session.CurrentAccountID(ctx)
	if id == 0 {
		return nil, nil
	}
	return f.find(id), nil
}

func (f *fakeUser) Get(ctx context.Context, v any, fallback bool) (*models.Account, error) {
	f.calls = append(f.calls, "get")
	return f.find(v), f.err
}

func (f *fakeUser) Create(ctx context.Context, in models.NewAccount) (*models.Account, string, error) {
	if f.err != nil {
		return nil, "", f.err
	}
	f.created = append(f.created, in)
	a := &models.Account{ID: int64(100 + len(f.created)), Login: in.Login, Email: in.Email, Roles: []string{in.Role}}
	password := ""
	if in.Password == "" {
		password = f.generate
	}
	return a, password, nil
}

func (f *fakeUser) AllMeta(ctx context.Context, v any) (map[string][]string, error) {
	a := f.find(v)
	if a == nil {
		return nil, f.err
	}
	m := f.meta[a.ID]
	if m == nil {
		m = map[string][]string{}
	}
	return m, f.err
}

func (f *fakeUser) GetMeta(ctx context.Context, v any, key string) ([]string, error) {
	m, err := f.AllMeta(ctx, v)
	return m[key], err
}

func (f *fakeUser) AddMeta(ctx context.Context, v any, key string, value any, unique bool) (bool, error) {
	f.calls = append(f.calls, "add:"+key)
	a := f.find(v)
	if a == nil {
		return false, f.err
	}
	if unique && len(f.meta[a.ID][key]) > 0 {
		return false, nil
	}
	m := f.metaOf(a.ID)
	m[key] = append(m[key], value.(string))
	return true, nil
}

func (f *fakeUser) UpdateMeta(ctx context.Context, v any, key string, value any) (bool, error) {
	f.calls = append(f.calls, "update:"+key)
	a := f.find(v)
	if a == nil {
		return false, f.err
	}
	m := f.metaOf(a.ID)
	if len(m[key]) == 1 && m[key][0] == value.(string) {
		return false, nil
	}
	m[key] = []string{value.(string)}
	return true, nil
}

func (f *fakeUser) DeleteMeta(ctx context.Context, v any, key string) (bool, error) {
	f.calls = append(f.calls, "delete:"+key)
	a := f.find(v)
	if a == nil || len(f.meta[a.ID][key]) == 0 {
		return false, f.err
	}
	delete(f.meta[a.ID], key)
	return true, nil
}

func (f *fakeUser) DeleteMetaValue(ctx context.Context, v any, key string, value any) (bool, error) {
	f.calls = append(f.calls, "delete_value:"+key+"="+value.(string))
	return true, f.err
}

func (f *fakeUser) metaOf(id int64) map[string][]string {
	if f.meta == nil {
		f.meta = map[int64]map[string][]string{}
	}
	if f.meta[id] == nil {
		f.meta[id] = map[string][]string{}
	}
	return f.meta[id]
}

// fakeUsers records the arguments it receives and returns canned results.
type fakeUsers struct {
	list  []*models.Account
	count int64
	ids   []int64
	opts  []models.Option
	roles []models.Option

	lastQuery  models.Query
	lastTerm   string
	lastDays   int
	lastValues []any
	lastRole   string
	lastTarget any
	emailOpts  bool

	err error
}

func (f *fakeUsers) List(ctx context.Context, q models.Query) ([]*models.Account, error) {
	f.lastQuery = q
	return f.list, f.err
}

func (f *fakeUsers) Count(ctx context.Context, q models.Query) (int64, error) {
	return f.count, f.err
}

func (f *fakeUsers) Search(ctx context.Context, term string, q models.Query) ([]*models.Account, error) {
	f.lastTerm, f.lastQuery = term, q
	return f.list, f.err
}

func (f *fakeUsers) Recent(ctx context.Context, days int, q models.Query) ([]*models.Account, error) {
	f.lastDays, f.lastQuery = days, q
	return f.list, f.err
}

func (f *fakeUsers) SanitizeIDs(ctx context.Context, values []any) ([]int64, error) {
	f.lastValues = values
	return f.ids, f.err
}

func (f *fakeUsers) Options(ctx context.Context, q models.Query) ([]models.Option, error) {
	f.lastQuery = q
	return f.opts, f.err
}

func (f *fakeUsers) EmailOptions(ctx context.Context, q models.Query) ([]models.Option, error) {
	f.lastQuery, f.emailOpts = q, true
	return f.opts, f.err
}

func (f *fakeUsers) RoleOptions(ctx context.Context) ([]models.Option, error) {
	return f.roles, f.err
}

func (f *fakeUsers) SetRoleMany(ctx context.Context, values []any, role string) []services.Outcome {
	f.lastValues, f.lastRole = values, role
	return outcomesFor(values)
}

func (f *fakeUsers) DeleteMany(ctx context.Context, values []any, reassignTo any) []services.Outcome {
	f.lastValues, f.lastTarget = values, reassignTo
	return outcomesFor(values)
}

// outcomesFor reports "missing" as not found and every other value as OK.
func outcomesFor(values []any) []services.Outcome {
	out := make([]services.Outcome, len(values))
	for i, v := range values {
		out[i] = services.Outcome{Identifier: identifier.Parse(v), OK: v != "missing"}
		if v == "missing" {
			out[i].Err = common.ErrorNotFound
		}
	}
	return out
}

func testAccounts() []*models.Account {
	return []*models.Account{
		{ID: 1, Login: "alice", Email: "alice@example.com", DisplayName: "Alice",
			RegisteredAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
			Roles:        []string{"administrator"}, Capabilities: map[string]bool{"manage_options": true, "edit_posts": true}},
		{ID: 2, Login: "bob", Email: "bob@example.com",
			Roles: []string{"subscriber"}, Capabilities: map[string]bool{"read": true}},
	}
}

func newTestApp(t *testing.T) (*App, *fakeUser, *fakeUsers, *bytes.Buffer) {
	t.Helper()
	u := &fakeUser{accounts: testAccounts(), password: "secret", generate: "gen-pass"}
	us := &fakeUsers{count: 2}
	out := &bytes.Buffer{}
	return &App{user: u, users: us, in: strings.NewReader(""), out: out}, u, us, out
}

// asAdmin logs the app in as alice.
func asAdmin(a *App) *App {
	a.token, a.login = "token-alice", "alice"
	return a
}

func stubPassword(t *testing.T, password string) {
	t.Helper()
	old := getPassword
	getPassword = func(io.Writer) ([]byte, error) {
		return []byte(password), nil
	}
	t.Cleanup(func() { getPassword = old })
}
