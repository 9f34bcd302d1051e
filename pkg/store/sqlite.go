package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/glebarez/go-sqlite"

	"github.com/goldwatch/goldwatch/pkg/models"
)

// SQLiteStore is the durable price record store. Records are keyed by type;
// concurrent upserts to the same key converge to last-writer-wins because
// each upsert is a single statement.
type SQLiteStore struct {
	db *sql.DB
}

// Open opens (or creates) the SQLite database at path with WAL enabled.
func Open(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return nil, fmt.Errorf("failed to set pragma %s: %w", pragma, err)
		}
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS gold_prices (
			type       TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			karat      TEXT NOT NULL,
			purity     TEXT NOT NULL,
			buy_price  INTEGER NOT NULL,
			sell_price INTEGER,
			updated_at TEXT NOT NULL
		);
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create gold_prices table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// FindAll returns every stored record in stable type order.
func (s *SQLiteStore) FindAll(ctx context.Context) (models.RecordSet, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT type, name, karat, purity, buy_price, sell_price, updated_at FROM gold_prices ORDER BY type",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query gold prices: %w", err)
	}
	defer rows.Close()

	set := models.RecordSet{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		set = append(set, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read gold prices: %w", err)
	}
	return set, nil
}

// FindByType returns the record for the given type, or models.ErrNotFound.
func (s *SQLiteStore) FindByType(ctx context.Context, typ string) (*models.PriceRecord, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT type, name, karat, purity, buy_price, sell_price, updated_at FROM gold_prices WHERE type = ?",
		typ,
	)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Upsert inserts the record or overwrites the business fields of an
// existing one. Idempotent for identical input.
func (s *SQLiteStore) Upsert(ctx context.Context, rec models.PriceRecord) error {
	var sell sql.NullInt64
	if rec.SellPrice != nil {
		sell = sql.NullInt64{Int64: *rec.SellPrice, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO gold_prices (type, name, karat, purity, buy_price, sell_price, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(type) DO UPDATE SET
			name       = excluded.name,
			karat      = excluded.karat,
			purity     = excluded.purity,
			buy_price  = excluded.buy_price,
			sell_price = excluded.sell_price,
			updated_at = excluded.updated_at
	`, rec.Type, rec.Name, rec.Karat, rec.Purity, rec.BuyPrice, sell, rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert record %s: %w", rec.Type, err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (models.PriceRecord, error) {
	var rec models.PriceRecord
	var sell sql.NullInt64
	if err := row.Scan(&rec.Type, &rec.Name, &rec.Karat, &rec.Purity, &rec.BuyPrice, &sell, &rec.UpdatedAt); err != nil {
		return models.PriceRecord{}, err
	}
	if sell.Valid {
		rec.SellPrice = &sell.Int64
	}
	return rec, nil
}
