package services

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrijs2005/booklend/internal/logging"
	"github.com/dmitrijs2005/booklend/internal/server/config"
	"github.com/dmitrijs2005/booklend/internal/server/models"
	"github.com/dmitrijs2005/booklend/internal/server/policy"
	"github.com/dmitrijs2005/booklend/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/booklend/internal/server/store"
	"github.com/dmitrijs2005/booklend/internal/server/store/storetest"
)

func init() {
	bcryptCost = bcrypt.MinCost
}

type fakeCovers struct {
	mu      sync.Mutex
	putKeys []string
	err     error
}

func (f *fakeCovers) PresignPut(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.putKeys = append(f.putKeys, key)
	return "https://s3.test/put/" + key, nil
}

func (f *fakeCovers) PresignGet(ctx context.Context, key string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "https://s3.test/get/" + key, nil
}

type testEnv struct {
	db      *sql.DB
	rm      repomanager.RepositoryManager
	cfg     *config.Config
	covers  *fakeCovers
	users   *UserService
	lending *LendingService
	catalog *CatalogService
}

func testConfig() *config.Config {
	return &config.Config{
		SecretKey:       "test-secret",
		SessionValidity: time.Hour,
		TxTimeout:       5 * time.Second,
		TxMaxAttempts:   2,
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := storetest.Open(t)
	rm := repomanager.NewSQLRepositoryManager(store.SQLite)
	cfg := testConfig()
	fc := &fakeCovers{}
	log := logging.Nop{}

	return &testEnv{
		db:      db,
		rm:      rm,
		cfg:     cfg,
		covers:  fc,
		users:   NewUserService(db, rm, cfg, log),
		lending: NewLendingService(db, rm, cfg, log),
		catalog: NewCatalogService(db, rm, cfg, log, fc),
	}
}

func (e *testEnv) account(t *testing.T, name string, role models.Role) policy.Identity {
	t.Helper()
	u, err := e.users.CreateAccount(context.Background(), RegisterInput{
		UserName: name,
		Email:    name + "@example.com",
		Password: name + "-pw",
	}, role)
	require.NoError(t, err)
	return policy.ForUser(u)
}

func (e *testEnv) admin(t *testing.T) policy.Identity {
	t.Helper()
	return e.account(t, "admin", models.RoleAdmin)
}

func (e *testEnv) book(t *testing.T, admin policy.Identity, title string, copies int) *models.Book {
	t.Helper()
	b, err := e.catalog.AddBook(context.Background(), admin, BookInput{
		Title: title, Author: "Author of " + title, Genre: "Fiction", TotalCopies: copies,
	})
	require.NoError(t, err)
	return b
}

func (e *testEnv) available(t *testing.T, bookID int64) int {
	t.Helper()
	d, err := e.catalog.BookDetail(context.Background(), policy.Anonymous, bookID)
	require.NoError(t, err)
	return d.AvailableCopies
}

func (e *testEnv) count(t *testing.T, query string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, e.db.QueryRowContext(context.Background(), query, args...).Scan(&n))
	return n
}

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

var errDown = errors.New("db down")
