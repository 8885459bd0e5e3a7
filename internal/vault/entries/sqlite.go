package entries

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/mindvault/internal/common"
	"github.com/dmitrijs2005/mindvault/internal/dbx"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Get returns the row for digest, or common.ErrorNotFound.
func (r *SQLiteRepository) Get(ctx context.Context, digest string) (*Row, error) {
	row := &Row{Digest: digest}
	err := r.db.QueryRowContext(ctx,
		`SELECT envelope FROM entries WHERE digest = ?`, digest).Scan(&row.Envelope)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entry: %w", err)
	}
	return row, nil
}

func (r *SQLiteRepository) Upsert(ctx context.Context, row *Row) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO entries (digest, envelope) VALUES (?, ?)
		ON CONFLICT(digest) DO UPDATE SET envelope = excluded.envelope
	`, row.Digest, row.Envelope)
	if err != nil {
		return fmt.Errorf("failed to upsert entry: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, digest string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM entries WHERE digest = ?`, digest)
	if err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) All(ctx context.Context) ([]Row, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT digest, envelope FROM entries`)
	if err != nil {
		return nil, fmt.Errorf("failed to select entries: %w", err)
	}
	defer rows.Close()

	var result []Row
	for rows.Next() {
		var item Row
		if err := rows.Scan(&item.Digest, &item.Envelope); err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
