package services

import (
	"context"
	"database/sql"
	"slices"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/userkit/internal/common"
	"github.com/dmitrijs2005/userkit/internal/config"
	"github.com/dmitrijs2005/userkit/internal/dbx"
	"github.com/dmitrijs2005/userkit/internal/logging"
	"github.com/dmitrijs2005/userkit/internal/models"
	"github.com/dmitrijs2005/userkit/internal/repositories/accounts"
	"github.com/dmitrijs2005/userkit/internal/repositories/usermeta"
	"golang.org/x/crypto/bcrypt"
)

// --- in-memory accounts repository ---

type fakeAccounts struct {
	accounts map[int64]*models.Account
	hashes   map[int64]string
	nextID   int64

	knownRoles map[string]bool
	roles      []models.Role
	reassigned map[int64]int64

	lastQuery models.Query
	calls     []string

	getErr    error
	createErr error
	deleteErr map[int64]error
}

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{
		accounts:   map[int64]*models.Account{},
		hashes:     map[int64]string{},
		nextID:     100,
		knownRoles: map[string]bool{"administrator": true, "editor": true, "author": true, "subscriber": true},
		roles: []models.Role{
			{Name: "administrator", DisplayName: "Administrator"},
			{Name: "subscriber", DisplayName: ""},
		},
		reassigned: map[int64]int64{},
		deleteErr:  map[int64]error{},
	}
}

func (f *fakeAccounts) add(a models.Account) *fakeAccounts {
	if a.Roles == nil {
		a.Roles = []string{}
	}
	if a.Capabilities == nil {
		a.Capabilities = map[string]bool{}
	}
	f.accounts[a.ID] = &a
	return f
}

func clone(a *models.Account) *models.Account {
	c := *a
	c.Roles = slices.Clone(a.Roles)
	return &c
}

func (f *fakeAccounts) find(call string, match func(*models.Account) bool) (*models.Account, error) {
	f.calls = append(f.calls, call)
	if f.getErr != nil {
		return nil, f.getErr
	}
	ids := make([]int64, 0, len(f.accounts))
	for id := range f.accounts {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		if match(f.accounts[id]) {
			return clone(f.accounts[id]), nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeAccounts) GetByID(ctx context.Context, id int64) (*models.Account, error) {
	return f.find("id", func(a *models.Account) bool { return a.ID == id })
}

func (f *fakeAccounts) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	return f.find("email", func(a *models.Account) bool { return strings.EqualFold(a.Email, email) })
}

func (f *fakeAccounts) GetByLogin(ctx context.Context, login string) (*models.Account, error) {
	return f.find("login", func(a *models.Account) bool { return a.Login == login })
}

func (f *fakeAccounts) GetBySlug(ctx context.Context, slug string) (*models.Account, error) {
	return f.find("slug", func(a *models.Account) bool { return a.Slug == slug })
}

func (f *fakeAccounts) PasswordHash(ctx context.Context, id int64) (string, error) {
	h, ok := f.hashes[id]
	if !ok {
		return "", common.ErrorNotFound
	}
	return h, nil
}

func (f *fakeAccounts) List(ctx context.Context, q models.Query) ([]*models.Account, error) {
	f.lastQuery = q
	ids := make([]int64, 0, len(f.accounts))
	for id := range f.accounts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := []*models.Account{}
	for _, id := range ids {
		a := f.accounts[id]
		if q.Role != "" && !a.HasRole(q.Role) {
			continue
		}
		if q.Capability != "" && !a.Can(q.Capability) {
			continue
		}
		out = append(out, clone(a))
	}
	return out, nil
}

func (f *fakeAccounts) Count(ctx context.Context, q models.Query) (int64, error) {
	f.lastQuery = q
	return int64(len(f.accounts)), nil
}

func (f *fakeAccounts) Create(ctx context.Context, rec *models.AccountRecord) (*models.Account, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	for _, a := range f.accounts {
		if a.Login == rec.Login || strings.EqualFold(a.Email, rec.Email) || a.Slug == rec.Slug {
			return nil, common.ErrorAlreadyExists
		}
	}
	f.nextID++
	a := rec.Account
	a.ID = f.nextID
	a.RegisteredAt = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	f.add(a)
	f.hashes[a.ID] = rec.PasswordHash
	return clone(f.accounts[a.ID]), nil
}

func (f *fakeAccounts) SetRoles(ctx context.Context, id int64, roles []string) error {
	a, ok := f.accounts[id]
	if !ok {
		return common.ErrorNotFound
	}
	for _, r := range roles {
		if !f.knownRoles[r] {
			return common.ErrorUnknownRole
		}
	}
	a.Roles = slices.Clone(roles)
	return nil
}

func (f *fakeAccounts) ReassignContent(ctx context.Context, from, to int64) (int64, error) {
	f.reassigned[from] = to
	return 2, nil
}

func (f *fakeAccounts) Delete(ctx context.Context, id int64) error {
	if err := f.deleteErr[id]; err != nil {
		return err
	}
	if _, ok := f.accounts[id]; !ok {
		return common.ErrorNotFound
	}
	delete(f.accounts, id)
	return nil
}

func (f *fakeAccounts) Roles(ctx context.Context) ([]models.Role, error) {
	return f.roles, nil
}

// --- in-memory meta repository ---

type metaEntry struct {
	account int64
	key     string
	value   string
}

type fakeMeta struct {
	entries []metaEntry
	writes  int
	err     error
}

func (f *fakeMeta) Get(ctx context.Context, accountID int64, key string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	values := []string{}
	for _, e := range f.entries {
		if e.account == accountID && e.key == key {
			values = append(values, e.value)
		}
	}
	return values, nil
}

func (f *fakeMeta) List(ctx context.Context, accountID int64) (map[string][]string, error) {
	out := map[string][]string{}
	for _, e := range f.entries {
		if e.account == accountID {
			out[e.key] = append(out[e.key], e.value)
		}
	}
	return out, nil
}

func (f *fakeMeta) Add(ctx context.Context, accountID int64, key, value string) error {
	if f.err != nil {
		return f.err
	}
	f.writes++
	f.entries = append(f.entries, metaEntry{accountID, key, value})
	return nil
}

// Update mirrors the host: the first row of key keeps its position and
// takes value, later rows of key are dropped.
func (f *fakeMeta) Update(ctx context.Context, accountID int64, key, value string) error {
	f.writes++
	kept := f.entries[:0]
	found := false
	for _, e := range f.entries {
		if e.account == accountID && e.key == key {
			if found {
				continue
			}
			found = true
			e.value = value
		}
		kept = append(kept, e)
	}
	f.entries = kept
	if !found {
		f.entries = append(f.entries, metaEntry{accountID, key, value})
	}
	return nil
}

func (f *fakeMeta) Delete(ctx context.Context, accountID int64, key string, value *string) (int64, error) {
	var n int64
	kept := f.entries[:0]
	for _, e := range f.entries {
		if e.account == accountID && e.key == key && (value == nil || e.value == *value) {
			n++
			continue
		}
		kept = append(kept, e)
	}
	f.entries = kept
	return n, nil
}

// --- repository manager ---

type fakeRepoManager struct {
	a *fakeAccounts
	m *fakeMeta
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Accounts(db dbx.DBTX) accounts.Repository   { return m.a }
func (m *fakeRepoManager) Meta(db dbx.DBTX) usermeta.Repository       { return m.m }

// --- helpers ---

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func expectTx(mock sqlmock.Sqlmock, n int) {
	for range n {
		mock.ExpectBegin()
		mock.ExpectCommit()
	}
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.SecretKey = "k"
	cfg.SessionTokenValidityDuration = time.Hour
	cfg.PageSize = 20
	return cfg
}

// fixture seeds three accounts:
//
//	1 alice  (administrator), slug "alice-s"
//	2 bob    (editor), slug "bobby"
//	3 carol  (subscriber)
func fixture() *fakeRepoManager {
	a := newFakeAccounts().
		add(models.Account{ID: 1, Login: "alice", Slug: "alice-s", Email: "alice@example.com", DisplayName: "Alice",
			RegisteredAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			Roles:        []string{"administrator"}, Capabilities: map[string]bool{"manage_options": true}}).
		add(models.Account{ID: 2, Login: "bob", Slug: "bobby", Email: "bob@example.com", FirstName: "Bob", LastName: "Stone",
			Roles: []string{"editor"}, Capabilities: map[string]bool{"edit_posts": true}}).
		add(models.Account{ID: 3, Login: "carol", Slug: "carol", Email: "carol@example.com",
			Roles: []string{"subscriber"}})
	return &fakeRepoManager{a: a, m: &fakeMeta{}}
}

func newTestUserService(t *testing.T, rm *fakeRepoManager) (*UserService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock := newSQLMockDB(t)
	return NewUserService(db, rm, testConfig(), logging.Discard()), mock
}

func init() {
	bcryptCost = bcrypt.MinCost
}
