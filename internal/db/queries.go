package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/hpungsan/unicorns/internal/errors"
)

// Document is one stored JSON object. Body never contains the id; it is
// attached on the way out by the HTTP layer.
type Document struct {
	ID         string
	Account    string
	Collection string
	Body       json.RawMessage
	CreatedAt  int64
	UpdatedAt  int64
}

// Insert stores a new document.
func Insert(ctx context.Context, db *sql.DB, d *Document) error {
	now := time.Now().Unix()
	d.CreatedAt, d.UpdatedAt = now, now

	query := `
		INSERT INTO documents (id, account, collection, body, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	if _, err := db.ExecContext(ctx, query,
		d.ID, d.Account, d.Collection, string(d.Body), d.CreatedAt, d.UpdatedAt,
	); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// GetByID retrieves one document of a collection.
func GetByID(ctx context.Context, db *sql.DB, account, collection, id string) (*Document, error) {
	query := `
		SELECT id, account, collection, body, created_at, updated_at
		FROM documents
		WHERE account = ? AND collection = ? AND id = ?
	`
	d, err := scanDocument(db.QueryRowContext(ctx, query, account, collection, id))
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return d, nil
}

// List returns every document of a collection in insertion order.
// ULIDs sort by creation time, so ordering by id is enough.
func List(ctx context.Context, db *sql.DB, account, collection string) ([]Document, error) {
	query := `
		SELECT id, account, collection, body, created_at, updated_at
		FROM documents
		WHERE account = ? AND collection = ?
		ORDER BY id
	`
	rows, err := db.QueryContext(ctx, query, account, collection)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	docs := []Document{}
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		docs = append(docs, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return docs, nil
}

// Replace overwrites the body of an existing document.
func Replace(ctx context.Context, db *sql.DB, d *Document) error {
	now := time.Now().Unix()

	query := `
		UPDATE documents
		SET body = ?, updated_at = ?
		WHERE account = ? AND collection = ? AND id = ?
	`
	result, err := db.ExecContext(ctx, query, string(d.Body), now, d.Account, d.Collection, d.ID)
	if err != nil {
		return errors.NewInternal(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if rowsAffected == 0 {
		return errors.NewNotFound(d.ID)
	}

	d.UpdatedAt = now
	return nil
}

// Delete removes a document permanently.
func Delete(ctx context.Context, db *sql.DB, account, collection, id string) error {
	query := `DELETE FROM documents WHERE account = ? AND collection = ? AND id = ?`

	result, err := db.ExecContext(ctx, query, account, collection, id)
	if err != nil {
		return errors.NewInternal(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if rowsAffected == 0 {
		return errors.NewNotFound(id)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (*Document, error) {
	var (
		d    Document
		body string
	)
	if err := row.Scan(&d.ID, &d.Account, &d.Collection, &body, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	d.Body = json.RawMessage(body)
	return &d, nil
}
