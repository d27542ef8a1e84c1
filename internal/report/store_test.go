package report

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	_ "github.com/lib/pq"
)

// newTestStore connects to the Postgres instance named by DATABASE_URL,
// applies migrations, and truncates the reports table. Tests that call this
// helper are skipped when no database is available.
func newTestStore(t *testing.T) *Store {
	t.Helper()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Skipf("postgres not available: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		t.Skipf("postgres not available: %v", err)
	}

	if err := Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if _, err := db.Exec("TRUNCATE reports"); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return NewStore(db)
}

func TestStoreCreateAndCountRecent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	r := &Report{
		Reporter:    "alice",
		Reported:    "bob",
		Reason:      "Spam or Scams",
		Description: "kept posting links",
		Context: Context{
			ChatType:      ChatTypeStranger,
			ConnectionIDs: []string{"c1", "c2"},
		},
	}
	if err := store.Create(ctx, r); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	count, err := store.CountRecent(ctx, "bob", 24*time.Hour)
	if err != nil {
		t.Fatalf("CountRecent() error: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}

	count, err = store.CountRecent(ctx, "nobody", 24*time.Hour)
	if err != nil {
		t.Fatalf("CountRecent() error: %v", err)
	}
	if count != 0 {
		t.Errorf("count for unreported identity = %d, want 0", count)
	}
}

func TestStoreCreateRejectsInvalidReason(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	r := &Report{Reporter: "alice", Reported: "bob", Reason: "vibes"}
	if err := store.Create(ctx, r); err == nil {
		t.Error("expected validation error")
	}
}
