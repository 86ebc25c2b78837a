package rolestore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bazaar-commerce/console/internal/platform/db"
)

// Repository defines persistence operations for Role Records.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (Document, error)
	List(ctx context.Context) ([]Document, error)
	Insert(ctx context.Context, doc Document) (Document, error)
	Replace(ctx context.Context, doc Document) (Document, error)
	// Modify applies fn to the current record and stores the result. Concurrent
	// modifications of one record are serialized.
	Modify(ctx context.Context, email string, fn func(Document) (Document, error)) (Document, error)
	Delete(ctx context.Context, email string) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const recordColumns = `id, email, role, permissions, COALESCE(updated_by, ''), created_at, updated_at`

const replaceSQL = `UPDATE role_records
SET id = $2, role = $3, permissions = $4, updated_by = NULLIF($5, ''), updated_at = NOW()
WHERE email = $1
RETURNING ` + recordColumns

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// FindByEmail fetches the record keyed by email.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (Document, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+recordColumns+` FROM role_records WHERE email = $1`, email)
	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, fmt.Errorf("rolestore: find by email: %w", err)
	}
	return doc, nil
}

// List returns every record ordered by email.
func (r *PGRepository) List(ctx context.Context) ([]Document, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+recordColumns+` FROM role_records ORDER BY email`)
	if err != nil {
		return nil, fmt.Errorf("rolestore: list: %w", err)
	}
	defer rows.Close()
	var docs []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("rolestore: list scan: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rolestore: list: %w", err)
	}
	return docs, nil
}

// Insert provisions a new record.
func (r *PGRepository) Insert(ctx context.Context, doc Document) (Document, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO role_records (id, email, role, permissions, updated_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, NULLIF($5, ''), NOW(), NOW())
RETURNING `+recordColumns, doc.ID, doc.Email, doc.Role, nonNil(doc.Permissions), doc.UpdatedBy)
	out, err := scanDocument(row)
	if err != nil {
		if isUniqueViolation(err) {
			return Document{}, ErrDuplicate
		}
		return Document{}, fmt.Errorf("rolestore: insert: %w", err)
	}
	return out, nil
}

// Replace overwrites role, permissions and id of the record keyed by email.
// Concurrent replaces resolve as last writer wins.
func (r *PGRepository) Replace(ctx context.Context, doc Document) (Document, error) {
	return replace(ctx, r.pool, doc)
}

// Modify locks the record row, applies fn and writes the result back in the
// same transaction.
func (r *PGRepository) Modify(ctx context.Context, email string, fn func(Document) (Document, error)) (Document, error) {
	var out Document
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		current, err := scanDocument(tx.QueryRow(ctx, `SELECT `+recordColumns+` FROM role_records WHERE email = $1 FOR UPDATE`, email))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("rolestore: modify load: %w", err)
		}
		next, err := fn(current)
		if err != nil {
			return err
		}
		out, err = replace(ctx, tx, next)
		return err
	})
	if err != nil {
		return Document{}, err
	}
	return out, nil
}

func replace(ctx context.Context, q rowQuerier, doc Document) (Document, error) {
	out, err := scanDocument(q.QueryRow(ctx, replaceSQL, doc.Email, doc.ID, doc.Role, nonNil(doc.Permissions), doc.UpdatedBy))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		if isUniqueViolation(err) {
			return Document{}, ErrDuplicate
		}
		return Document{}, fmt.Errorf("rolestore: replace: %w", err)
	}
	return out, nil
}

// Delete removes the record keyed by email.
func (r *PGRepository) Delete(ctx context.Context, email string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM role_records WHERE email = $1`, email)
	if err != nil {
		return fmt.Errorf("rolestore: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanDocument(row pgx.Row) (Document, error) {
	var doc Document
	err := row.Scan(&doc.ID, &doc.Email, &doc.Role, &doc.Permissions, &doc.UpdatedBy, &doc.CreatedAt, &doc.UpdatedAt)
	return doc, err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func nonNil(perms []string) []string {
	if perms == nil {
		return []string{}
	}
	return perms
}

var _ Repository = (*PGRepository)(nil)
