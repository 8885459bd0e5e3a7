package chunks

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/mindvault/internal/dbx"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Insert(ctx context.Context, row *Row) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO chunks (entry_digest, envelope) VALUES (?, ?)`,
		row.EntryDigest, row.Envelope)
	if err != nil {
		return fmt.Errorf("failed to insert chunk: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteByEntry(ctx context.Context, entryDigest string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM chunks WHERE entry_digest = ?`, entryDigest)
	if err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) All(ctx context.Context) ([]Row, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT entry_digest, envelope FROM chunks ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to select chunks: %w", err)
	}
	defer rows.Close()

	var result []Row
	for rows.Next() {
		var item Row
		if err := rows.Scan(&item.EntryDigest, &item.Envelope); err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) CountByEntry(ctx context.Context, entryDigest string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM chunks WHERE entry_digest = ?`, entryDigest).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return n, nil
}
