// Package store exports flattened tables into a SQLite database.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/WessleyAI/pushshift-corpus/engine/flatten"
)

// rowColumn keeps the table's row order.
const rowColumn = "_row"

// Store is a SQLite database holding exported tables.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// one connection keeps ":memory:" databases alive across calls
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// WriteTable replaces the table name with t. Every column is TEXT; row
// order is kept in an integer primary key.
func (s *Store) WriteTable(ctx context.Context, name string, t flatten.Table) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	table := quote(name)
	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
		return fmt.Errorf("drop %s: %w", name, err)
	}

	cols := make([]string, 0, len(t.Columns)+1)
	defs := make([]string, 0, len(t.Columns)+1)
	cols = append(cols, quote(rowColumn))
	defs = append(defs, quote(rowColumn)+" INTEGER PRIMARY KEY")
	for _, c := range t.Columns {
		cols = append(cols, quote(c))
		defs = append(defs, quote(c)+" TEXT")
	}
	create := fmt.Sprintf("CREATE TABLE %s (%s)", table, strings.Join(defs, ", "))
	if _, err := tx.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(cols, ", "), placeholders)
	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	args := make([]any, len(cols))
	for i, row := range t.Rows {
		args[0] = i
		for j := range t.Columns {
			if j < len(row) {
				args[j+1] = row[j]
			} else {
				args[j+1] = ""
			}
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("insert row %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// Column returns one column of a table in row order.
func (s *Store) Column(ctx context.Context, name, column string) ([]string, error) {
	q := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s", quote(column), quote(name), quote(rowColumn))
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// Count returns the number of rows in a table.
func (s *Store) Count(ctx context.Context, name string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+quote(name)).Scan(&n)
	return n, err
}

func quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}
