package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/familytasks/internal/model"
)

// LedgerStore appends to and sums the points ledger. Rows are never updated
// or deleted; the schema rejects both.
type LedgerStore struct {
	db DBTX
}

func NewLedgerStore(db *sql.DB) *LedgerStore {
	return &LedgerStore{db: db}
}

func (s *LedgerStore) WithTx(tx *sql.Tx) *LedgerStore {
	return &LedgerStore{db: tx}
}

func scanEntry(scanner interface{ Scan(...any) error }) (*model.PointsLedgerEntry, error) {
	var e model.PointsLedgerEntry
	var createdAt string
	err := scanner.Scan(&e.ID, &e.FamilyID, &e.ChildID, &e.Points, &e.Source, &e.Reference, &createdAt)
	if err != nil {
		return nil, err
	}
	if e.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &e, nil
}

const entryCols = `id, family_id, child_id, points, source, reference, created_at`

// Append inserts an entry. A second entry with the same (family, source,
// reference) fails with a UNIQUE violation; see database.IsUniqueViolation.
func (s *LedgerStore) Append(ctx context.Context, e model.PointsLedgerEntry) (*model.PointsLedgerEntry, error) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	e.CreatedAt = e.CreatedAt.UTC().Truncate(time.Millisecond)
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO points_ledger (family_id, child_id, points, source, reference, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		e.FamilyID, e.ChildID, e.Points, e.Source, e.Reference, formatTime(e.CreatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("insert ledger entry: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	e.ID = id
	return &e, nil
}

// List returns the family's entries oldest first.
func (s *LedgerStore) List(ctx context.Context, familyID int64) ([]model.PointsLedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+entryCols+` FROM points_ledger WHERE family_id = ? ORDER BY created_at ASC, id ASC`, familyID)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	var out []model.PointsLedgerEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// SumByChild totals points per child for entries created in [from, to).
func (s *LedgerStore) SumByChild(ctx context.Context, familyID int64, from, to time.Time) (map[int64]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT child_id, SUM(points) FROM points_ledger
		 WHERE family_id = ? AND created_at >= ? AND created_at < ?
		 GROUP BY child_id`,
		familyID, formatTime(from), formatTime(to))
	if err != nil {
		return nil, fmt.Errorf("sum ledger by child: %w", err)
	}
	defer rows.Close()

	totals := make(map[int64]int)
	for rows.Next() {
		var childID int64
		var points int
		if err := rows.Scan(&childID, &points); err != nil {
			return nil, fmt.Errorf("scan ledger sum: %w", err)
		}
		totals[childID] = points
	}
	return totals, rows.Err()
}

// SumForChild totals one child's points for entries created in [from, to).
func (s *LedgerStore) SumForChild(ctx context.Context, familyID, childID int64, from, to time.Time) (int, error) {
	var total int
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(points), 0) FROM points_ledger
		 WHERE family_id = ? AND child_id = ? AND created_at >= ? AND created_at < ?`,
		familyID, childID, formatTime(from), formatTime(to)).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum ledger for child: %w", err)
	}
	return total, nil
}
