package services

import (
	"bytes"
	"context"
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/userkit/internal/common"
	"github.com/dmitrijs2005/userkit/internal/identifier"
	"github.com/dmitrijs2005/userkit/internal/logging"
	"github.com/dmitrijs2005/userkit/internal/models"
	"github.com/dmitrijs2005/userkit/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestUsersService(t *testing.T, rm *fakeRepoManager) (*UsersService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock := newSQLMockDB(t)
	return NewUsersService(db, rm, testConfig(), logging.Discard()), mock
}

func logins(accounts []*models.Account) []string {
	out := make([]string, len(accounts))
	for i, a := range accounts {
		out[i] = a.Login
	}
	return out
}

func TestList_MergesDefaults(t *testing.T) {
	rm := fixture()
	s, _ := newTestUsersService(t, rm)

	got, err := s.List(context.Background(), models.Query{})
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob", "carol"}, logins(got))
	assert.Equal(t, 20, rm.a.lastQuery.Number)

	_, err = s.List(context.Background(), models.Query{Number: 5})
	require.NoError(t, err)
	assert.Equal(t, 5, rm.a.lastQuery.Number)
}

func TestCount(t *testing.T) {
	rm := fixture()
	s, _ := newTestUsersService(t, rm)

	n, err := s.Count(context.Background(), models.Query{Role: "editor"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.Equal(t, "editor", rm.a.lastQuery.Role)
}

func TestListingShortcuts(t *testing.T) {
	rm := fixture()
	s, _ := newTestUsersService(t, rm)
	ctx := context.Background()

	got, err := s.ByRole(ctx, "editor", models.Query{})
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, logins(got))

	_, err = s.ByCapability(ctx, "edit_posts", models.Query{})
	require.NoError(t, err)
	assert.Equal(t, "edit_posts", rm.a.lastQuery.Capability)

	_, err = s.ByMeta(ctx, "level", 3, models.Query{})
	require.NoError(t, err)
	assert.Equal(t, "level", rm.a.lastQuery.MetaKey)
	require.NotNil(t, rm.a.lastQuery.MetaValue)
	assert.Equal(t, "3", *rm.a.lastQuery.MetaValue)

	_, err = s.ByMeta(ctx, "level", nil, models.Query{})
	require.NoError(t, err)
	assert.Nil(t, rm.a.lastQuery.MetaValue)

	_, err = s.ByMeta(ctx, "", nil, models.Query{})
	assert.ErrorIs(t, err, common.ErrorEmptyMetaKey)

	_, err = s.Recent(ctx, 7, models.Query{})
	require.NoError(t, err)
	assert.Equal(t, 7, rm.a.lastQuery.RegisteredWithinDays)
	assert.Equal(t, "registered", rm.a.lastQuery.OrderBy)
	assert.Equal(t, "desc", rm.a.lastQuery.Order)

	_, err = s.Search(ctx, "bo*", models.Query{SearchColumns: []string{"login"}})
	require.NoError(t, err)
	assert.Equal(t, "bo*", rm.a.lastQuery.Search)
	assert.Equal(t, []string{"login"}, rm.a.lastQuery.SearchColumns)
}

func TestListingShortcuts_EmptyInputs(t *testing.T) {
	rm := fixture()
	s, _ := newTestUsersService(t, rm)

	got, err := s.Recent(context.Background(), 0, models.Query{})
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = s.Search(context.Background(), "", models.Query{})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, models.Query{}, rm.a.lastQuery, "no listing issued")
}

func TestByIdentifiers_UniqueInDiscoveryOrder(t *testing.T) {
	s, _ := newTestUsersService(t, fixture())

	got, err := s.ByIdentifiers(context.Background(),
		[]any{"carol", 1, "carol@example.com", "bobby", "3", "nobody", 2, &models.Account{ID: 1}})
	require.NoError(t, err)
	assert.Equal(t, []string{"carol", "alice", "bob"}, logins(got))
}

func TestByIdentifiers_IgnoresSession(t *testing.T) {
	s, _ := newTestUsersService(t, fixture())

	got, err := s.ByIdentifiers(session.WithAccount(context.Background(), 1), []any{0, "", nil})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSanitizeIDs(t *testing.T) {
	s, _ := newTestUsersService(t, fixture())

	ids, err := s.SanitizeIDs(context.Background(), []any{"1", "invalid-login-with-no-match", "3"})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3}, ids)
}

func TestSanitizeIDs_HostError(t *testing.T) {
	rm := fixture()
	rm.a.getErr = errors.New("db down")
	s, _ := newTestUsersService(t, rm)

	_, err := s.SanitizeIDs(context.Background(), []any{1})
	assert.ErrorContains(t, err, "db down")
}

func TestProjections(t *testing.T) {
	s, _ := newTestUsersService(t, fixture())
	ctx := context.Background()

	emails, err := s.Emails(ctx, []any{2, "alice"})
	require.NoError(t, err)
	assert.Equal(t, []Field{{2, "bob@example.com"}, {1, "alice@example.com"}}, emails)

	names, err := s.DisplayNames(ctx, []any{"bob", "carol"})
	require.NoError(t, err)
	assert.Equal(t, []Field{{2, "Bob Stone"}, {3, "carol"}}, names)
}

func TestCreateMany(t *testing.T) {
	rm := fixture()
	s, mock := newTestUsersService(t, rm)
	mock.ExpectBegin()
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectCommit()

	outcomes := s.CreateMany(context.Background(), []models.NewAccount{
		{Login: "dave", Email: "dave@example.com"},
		{Login: "bob", Email: "bob2@example.com"},
		{Login: "erin", Email: "broken"},
		{Login: "frank", Email: "frank@example.com", Password: "pw"},
	})
	require.Len(t, outcomes, 4)

	assert.Equal(t, Created, outcomes[0].Status)
	assert.NotEmpty(t, outcomes[0].Password)
	assert.Equal(t, "dave", outcomes[0].Account.Login)

	assert.Equal(t, CreateExists, outcomes[1].Status)
	assert.ErrorIs(t, outcomes[1].Err, common.ErrorAlreadyExists)

	assert.Equal(t, CreateFailed, outcomes[2].Status)
	assert.ErrorIs(t, outcomes[2].Err, common.ErrorInvalidEmail)
	assert.Nil(t, outcomes[2].Account)

	assert.Equal(t, Created, outcomes[3].Status)
	assert.Empty(t, outcomes[3].Password)

	assert.Equal(t, "created", Created.String())
	assert.Equal(t, "exists", CreateExists.String())
	assert.Equal(t, "failed", CreateFailed.String())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteMany_OneOutcomePerElement(t *testing.T) {
	rm := fixture()
	rm.a.deleteErr[2] = errors.New("db down")
	s, mock := newTestUsersService(t, rm)
	mock.ExpectBegin()
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectRollback()

	values := []any{3, "nobody", "bob", 3}
	outcomes := s.DeleteMany(context.Background(), values, "alice")
	require.Len(t, outcomes, len(values))

	assert.True(t, outcomes[0].OK)
	assert.Equal(t, int64(3), outcomes[0].AccountID)
	assert.Equal(t, identifier.ByID(3), outcomes[0].Identifier)

	assert.False(t, outcomes[1].OK)
	assert.ErrorIs(t, outcomes[1].Err, common.ErrorNotFound)

	assert.False(t, outcomes[2].OK)
	assert.ErrorContains(t, outcomes[2].Err, "db down")

	assert.False(t, outcomes[3].OK, "already deleted")
	assert.ErrorIs(t, outcomes[3].Err, common.ErrorNotFound)

	assert.Equal(t, int64(1), rm.a.reassigned[3])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteMany_Empty(t *testing.T) {
	s, _ := newTestUsersService(t, fixture())
	assert.Empty(t, s.DeleteMany(context.Background(), nil, nil))
}

func TestUpdateMetaMany(t *testing.T) {
	rm := fixture()
	rm.m.entries = []metaEntry{{2, "plan", "pro"}}
	s, _ := newTestUsersService(t, rm)

	outcomes := s.UpdateMetaMany(context.Background(), []any{1, 2, "ghost"}, "plan", "pro")
	require.Len(t, outcomes, 3)
	assert.True(t, outcomes[0].OK)
	assert.False(t, outcomes[1].OK, "unchanged")
	assert.NoError(t, outcomes[1].Err)
	assert.ErrorIs(t, outcomes[2].Err, common.ErrorNotFound)

	outcomes = s.UpdateMetaMany(context.Background(), []any{1, 2}, "plan", "pro")
	assert.False(t, outcomes[0].OK, "second run finds the value already stored")
	assert.False(t, outcomes[1].OK)

	outcomes = s.UpdateMetaMany(context.Background(), []any{1}, "", "x")
	assert.ErrorIs(t, outcomes[0].Err, common.ErrorEmptyMetaKey)
}

func TestDeleteMetaMany(t *testing.T) {
	rm := fixture()
	rm.m.entries = []metaEntry{{1, "plan", "pro"}, {3, "plan", "free"}, {3, "other", "x"}}
	s, _ := newTestUsersService(t, rm)

	outcomes := s.DeleteMetaMany(context.Background(), []any{1, 2, 3}, "plan")
	assert.Equal(t, []bool{true, false, true}, []bool{outcomes[0].OK, outcomes[1].OK, outcomes[2].OK})
	assert.Equal(t, []metaEntry{{3, "other", "x"}}, rm.m.entries)
}

func TestSetRoleMany(t *testing.T) {
	rm := fixture()
	s, mock := newTestUsersService(t, rm)
	expectTx(mock, 2)

	outcomes := s.SetRoleMany(context.Background(), []any{"bob", "nobody", "carol"}, "author")
	require.Len(t, outcomes, 3)
	assert.True(t, outcomes[0].OK)
	assert.False(t, outcomes[1].OK)
	assert.True(t, outcomes[2].OK)
	assert.Equal(t, []string{"author"}, rm.a.accounts[2].Roles)
	assert.Equal(t, []string{"author"}, rm.a.accounts[3].Roles)
}

func TestBulk_LogsBatchID(t *testing.T) {
	var buf bytes.Buffer
	db, _ := newSQLMockDB(t)
	s := NewUsersService(db, fixture(), testConfig(), logging.NewJSONLogger(&buf, "debug"))

	s.DeleteMetaMany(context.Background(), []any{1}, "plan")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"msg":"bulk started"`)
	assert.Contains(t, lines[0], `"batch_id":"`)
	assert.Contains(t, lines[1], `"msg":"bulk finished"`)
	assert.Contains(t, lines[1], `"op":"delete_meta"`)
}

func TestOptions(t *testing.T) {
	rm := fixture()
	rm.a.add(models.Account{ID: 4, Login: "noemail"})
	s, _ := newTestUsersService(t, rm)
	ctx := context.Background()

	opts, err := s.Options(ctx, models.Query{Role: "editor"})
	require.NoError(t, err)
	assert.Equal(t, []models.Option{{Value: "2", Label: "Bob Stone (bob@example.com)"}}, opts)

	opts, err = s.EmailOptions(ctx, models.Query{})
	require.NoError(t, err)
	assert.Equal(t, []models.Option{
		{Value: "alice@example.com", Label: "Alice"},
		{Value: "bob@example.com", Label: "Bob Stone"},
		{Value: "carol@example.com", Label: "carol"},
	}, opts)

	opts, err = s.RoleOptions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.Option{
		{Value: "administrator", Label: "Administrator"},
		{Value: "subscriber", Label: "subscriber"},
	}, opts)
}

func TestByCapability_AgreesWithHasCapability(t *testing.T) {
	tests := []struct {
		capability string
		want       []string
	}{
		{"edit_posts", []string{"bob"}},
		{"editor", []string{"bob"}},
		{"administrator", []string{"alice"}},
		{"manage_options", []string{"alice"}},
		{"fly", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.capability, func(t *testing.T) {
			rm := fixture()
			users, _ := newTestUsersService(t, rm)
			user, _ := newTestUserService(t, rm)
			ctx := context.Background()

			got, err := users.ByCapability(ctx, tt.capability, models.Query{})
			require.NoError(t, err)
			assert.Equal(t, tt.want, logins(got))

			for _, login := range []string{"alice", "bob", "carol"} {
				has, err := user.HasCapability(ctx, login, tt.capability)
				require.NoError(t, err)
				assert.Equal(t, slices.Contains(tt.want, login), has, login)
			}
		})
	}
}
