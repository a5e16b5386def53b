package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"

	"github.com/hpungsan/unicorns/internal/errors"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestDocument(id, body string) *Document {
	return &Document{
		ID:         id,
		Account:    "acct",
		Collection: "unicorns",
		Body:       json.RawMessage(body),
	}
}

func TestInsertAndGetByID(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	d := newTestDocument("01ABC", `{"name":"Star","age":3}`)
	if err := Insert(ctx, db, d); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if d.CreatedAt == 0 || d.UpdatedAt != d.CreatedAt {
		t.Errorf("timestamps = %d/%d, want set and equal", d.CreatedAt, d.UpdatedAt)
	}

	got, err := GetByID(ctx, db, "acct", "unicorns", "01ABC")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if string(got.Body) != `{"name":"Star","age":3}` {
		t.Errorf("Body = %s", got.Body)
	}
	if got.Account != "acct" || got.Collection != "unicorns" {
		t.Errorf("scope = %s/%s", got.Account, got.Collection)
	}
}

func TestGetByID_ScopedToCollection(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := Insert(ctx, db, newTestDocument("01ABC", `{}`)); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	_, err := GetByID(ctx, db, "other", "unicorns", "01ABC")
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("GetByID from other account error = %v, want NOT_FOUND", err)
	}
	_, err = GetByID(ctx, db, "acct", "ponies", "01ABC")
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("GetByID from other collection error = %v, want NOT_FOUND", err)
	}
}

func TestList(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	docs, err := List(ctx, db, "acct", "unicorns")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if docs == nil || len(docs) != 0 {
		t.Errorf("List on empty collection = %v, want empty non-nil", docs)
	}

	for _, id := range []string{"01B", "01A", "01C"} {
		if err := Insert(ctx, db, newTestDocument(id, `{}`)); err != nil {
			t.Fatalf("Insert %s failed: %v", id, err)
		}
	}
	other := newTestDocument("01D", `{}`)
	other.Collection = "ponies"
	if err := Insert(ctx, db, other); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	docs, err = List(ctx, db, "acct", "unicorns")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(docs) != 3 {
		t.Fatalf("len(docs) = %d, want 3", len(docs))
	}
	if docs[0].ID != "01A" || docs[1].ID != "01B" || docs[2].ID != "01C" {
		t.Errorf("order = %s %s %s, want id order", docs[0].ID, docs[1].ID, docs[2].ID)
	}
}

func TestReplace(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := Insert(ctx, db, newTestDocument("01ABC", `{"age":3}`)); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	if err := Replace(ctx, db, newTestDocument("01ABC", `{"age":4}`)); err != nil {
		t.Fatalf("Replace failed: %v", err)
	}

	got, err := GetByID(ctx, db, "acct", "unicorns", "01ABC")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if string(got.Body) != `{"age":4}` {
		t.Errorf("Body = %s, want replaced", got.Body)
	}
}

func TestReplace_NotFound(t *testing.T) {
	db := openTestDB(t)

	err := Replace(context.Background(), db, newTestDocument("missing", `{}`))
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("Replace error = %v, want NOT_FOUND", err)
	}
}

func TestDelete(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := Insert(ctx, db, newTestDocument("01ABC", `{}`)); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := Delete(ctx, db, "acct", "unicorns", "01ABC"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	_, err := GetByID(ctx, db, "acct", "unicorns", "01ABC")
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("GetByID after delete error = %v, want NOT_FOUND", err)
	}

	err = Delete(ctx, db, "acct", "unicorns", "01ABC")
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("second Delete error = %v, want NOT_FOUND", err)
	}
}
