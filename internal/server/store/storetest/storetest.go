// Package storetest opens migrated in-memory SQLite stores for tests.
package storetest

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/dmitrijs2005/booklend/internal/server/store"
)

var seq atomic.Int64

// Open returns a fresh, migrated in-memory SQLite database private to t.
// Foreign keys are enforced.
func Open(t testing.TB) *sql.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared&_pragma=foreign_keys(1)&_time_format=sqlite", name, seq.Add(1))

	ctx := context.Background()
	db, d, err := store.Open(ctx, dsn)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := store.Migrate(ctx, db, d); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}
