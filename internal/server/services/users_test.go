package services

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/booklend/internal/common"
	"github.com/dmitrijs2005/booklend/internal/dbx"
	"github.com/dmitrijs2005/booklend/internal/logging"
	"github.com/dmitrijs2005/booklend/internal/server/auth"
	"github.com/dmitrijs2005/booklend/internal/server/models"
	"github.com/dmitrijs2005/booklend/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/booklend/internal/server/repositories/sessions"
	usersrepo "github.com/dmitrijs2005/booklend/internal/server/repositories/users"
	"github.com/dmitrijs2005/booklend/internal/server/store"
)

func TestRegister_CreatesRegularUser(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)

	u, err := e.users.Register(ctx, RegisterInput{UserName: " alice ", Email: "alice@example.com", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, "alice", u.UserName)
	assert.Equal(t, models.RoleUser, u.Role)
	assert.NotEqual(t, []byte("secret"), u.PasswordHash)
}

func TestRegister_DuplicateUserName(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)

	_, err := e.users.Register(ctx, RegisterInput{UserName: "alice", Email: "alice@example.com", Password: "pw"})
	require.NoError(t, err)

	_, err = e.users.Register(ctx, RegisterInput{UserName: "alice", Email: "other@example.com", Password: "pw"})
	assert.ErrorIs(t, err, common.ErrConflict)
	assert.Equal(t, 1, e.count(t, `SELECT COUNT(*) FROM users WHERE username = 'alice'`))
}

func TestRegister_Validation(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)

	tests := []struct {
		name    string
		in      RegisterInput
		message string
	}{
		{"missing username", RegisterInput{Email: "a@example.com", Password: "pw"}, "All fields are required."},
		{"blank password", RegisterInput{UserName: "a", Email: "a@example.com", Password: "   "}, "All fields are required."},
		{"bad email", RegisterInput{UserName: "a", Email: "not-an-email", Password: "pw"}, "Invalid email address."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.users.Register(ctx, tt.in)
			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Equal(t, tt.message, verr.Message)
			assert.ErrorIs(t, err, common.ErrValidation)
		})
	}
	assert.Equal(t, 0, e.count(t, `SELECT COUNT(*) FROM users`))
}

func TestCreateAccount_InvalidRole(t *testing.T) {
	e := newTestEnv(t)
	_, err := e.users.CreateAccount(context.Background(),
		RegisterInput{UserName: "x", Email: "x@example.com", Password: "pw"}, models.Role("Owner"))
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestLogin_IdentifyLogout(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	alice := e.account(t, "alice", models.RoleUser)

	s, err := e.users.Login(ctx, "alice", "alice-pw")
	require.NoError(t, err)
	assert.Equal(t, alice.UserID, s.User.ID)
	assert.NotEmpty(t, s.Token)
	assert.True(t, s.ExpiresAt.After(time.Now()))

	id, err := e.users.Identify(ctx, s.Token)
	require.NoError(t, err)
	assert.Equal(t, alice, id)

	require.NoError(t, e.users.Logout(ctx, s.Token))
	_, err = e.users.Identify(ctx, s.Token)
	assert.ErrorIs(t, err, common.ErrInvalidToken)

	// logging out twice or with garbage is harmless
	require.NoError(t, e.users.Logout(ctx, s.Token))
	require.NoError(t, e.users.Logout(ctx, "garbage"))
}

func TestLogin_InvalidCredentials(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	e.account(t, "alice", models.RoleUser)

	_, err := e.users.Login(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)

	_, err = e.users.Login(ctx, "nobody", "whatever")
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)

	assert.Equal(t, 0, e.count(t, `SELECT COUNT(*) FROM sessions`))
}

func TestIdentify_AdminRole(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	e.admin(t)

	s, err := e.users.Login(ctx, "admin", "admin-pw")
	require.NoError(t, err)

	id, err := e.users.Identify(ctx, s.Token)
	require.NoError(t, err)
	assert.True(t, id.IsAdmin())
}

func TestIdentify_ExpiredSessionRow(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	e.account(t, "alice", models.RoleUser)

	s, err := e.users.Login(ctx, "alice", "alice-pw")
	require.NoError(t, err)

	e.users.now = func() time.Time { return time.Now().UTC().Add(2 * time.Hour) }
	_, err = e.users.Identify(ctx, s.Token)
	assert.ErrorIs(t, err, common.ErrSessionExpired)
}

func TestIdentify_TokenForOtherUsersSession(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	e.account(t, "alice", models.RoleUser)
	bob := e.account(t, "bob", models.RoleUser)

	s, err := e.users.Login(ctx, "alice", "alice-pw")
	require.NoError(t, err)
	claims, err := auth.ParseToken(s.Token, []byte(e.cfg.SecretKey))
	require.NoError(t, err)

	forged, err := auth.GenerateToken(bob.UserID, "User", claims.SessionToken, []byte(e.cfg.SecretKey), time.Hour)
	require.NoError(t, err)

	_, err = e.users.Identify(ctx, forged)
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestIdentify_BadToken(t *testing.T) {
	e := newTestEnv(t)
	_, err := e.users.Identify(context.Background(), "not-a-token")
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}

// --- repository failures ---

type fakeUsersRepo struct {
	usersrepo.Repository
	getErr    error
	existsErr error
}

func (f *fakeUsersRepo) GetByUserName(ctx context.Context, name string) (*models.User, error) {
	return nil, f.getErr
}

func (f *fakeUsersRepo) ExistsByUserNameOrEmail(ctx context.Context, u, e string) (bool, error) {
	return false, f.existsErr
}

type fakeRepoManager struct {
	repomanager.RepositoryManager
	u usersrepo.Repository
	s sessions.Repository
}

func (m *fakeRepoManager) Users(db dbx.DBTX) usersrepo.Repository { return m.u }
func (m *fakeRepoManager) Sessions(db dbx.DBTX) sessions.Repository {
	return m.s
}

func newUserServiceWithRepos(t *testing.T, rm repomanager.RepositoryManager) *UserService {
	t.Helper()
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewUserService(db, rm, testConfig(), logging.Nop{})
}

func TestLogin_StoreErrorIsNotInvalidCredentials(t *testing.T) {
	s := newUserServiceWithRepos(t, &fakeRepoManager{u: &fakeUsersRepo{getErr: errDown}})

	_, err := s.Login(context.Background(), "alice", "pw")
	require.Error(t, err)
	assert.NotErrorIs(t, err, common.ErrInvalidCredentials)
	assert.Regexp(t, regexp.MustCompile(`error loading user: .*db down`), err.Error())
}

func TestRegister_StoreError(t *testing.T) {
	s := newUserServiceWithRepos(t, &fakeRepoManager{u: &fakeUsersRepo{existsErr: errBoom{}}})

	_, err := s.Register(context.Background(), RegisterInput{UserName: "a", Email: "a@example.com", Password: "pw"})
	require.Error(t, err)
	assert.Regexp(t, regexp.MustCompile(`error checking user: .*boom`), err.Error())
}

func TestUserService_RealSQLRepositoriesOnMock(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT`).WithArgs("alice").WillReturnError(sql.ErrConnDone)

	s := NewUserService(db, repomanager.NewSQLRepositoryManager(store.Postgres), testConfig(), logging.Nop{})
	_, err = s.Login(context.Background(), "alice", "pw")
	assert.ErrorIs(t, err, sql.ErrConnDone)
	require.NoError(t, mock.ExpectationsWereMet())
}
