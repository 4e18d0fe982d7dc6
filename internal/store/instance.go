package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/familytasks/internal/model"
)

type InstanceStore struct {
	db DBTX
}

func NewInstanceStore(db *sql.DB) *InstanceStore {
	return &InstanceStore{db: db}
}

func (s *InstanceStore) WithTx(tx *sql.Tx) *InstanceStore {
	return &InstanceStore{db: tx}
}

func scanInstance(scanner interface{ Scan(...any) error }) (*model.TaskInstance, error) {
	var in model.TaskInstance
	var markedAt, confirmedAt sql.NullString
	var confirmedBy sql.NullInt64
	err := scanner.Scan(
		&in.ID, &in.FamilyID, &in.TaskID, &in.ChildID, &in.TaskDate, &in.Status,
		&markedAt, &confirmedBy, &confirmedAt, &in.PointsAwarded,
	)
	if err != nil {
		return nil, err
	}
	if in.ChildMarkedAt, err = parseNullTime(markedAt); err != nil {
		return nil, err
	}
	if in.ConfirmedAt, err = parseNullTime(confirmedAt); err != nil {
		return nil, err
	}
	if confirmedBy.Valid {
		in.ConfirmedBy = &confirmedBy.Int64
	}
	return &in, nil
}

const instanceCols = `id, family_id, task_id, child_id, task_date, status, child_marked_at, confirmed_by, confirmed_at, points_awarded`

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

// Get returns the instance for (task, child, date), or nil when none exists.
func (s *InstanceStore) Get(ctx context.Context, taskID, childID int64, date model.Date) (*model.TaskInstance, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+instanceCols+` FROM task_instances WHERE task_id = ? AND child_id = ? AND task_date = ?`,
		taskID, childID, date)
	in, err := scanInstance(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task instance: %w", err)
	}
	return in, nil
}

func (s *InstanceStore) Insert(ctx context.Context, in model.TaskInstance) (*model.TaskInstance, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO task_instances (family_id, task_id, child_id, task_date, status, child_marked_at, confirmed_by, confirmed_at, points_awarded)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		in.FamilyID, in.TaskID, in.ChildID, in.TaskDate, in.Status,
		nullTime(in.ChildMarkedAt), in.ConfirmedBy, nullTime(in.ConfirmedAt), in.PointsAwarded,
	)
	if err != nil {
		return nil, fmt.Errorf("insert task instance: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	in.ID = id
	return &in, nil
}

// Update writes the mutable status columns of an existing instance.
func (s *InstanceStore) Update(ctx context.Context, in model.TaskInstance) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE task_instances
		 SET status = ?, child_marked_at = ?, confirmed_by = ?, confirmed_at = ?, points_awarded = ?
		 WHERE id = ?`,
		in.Status, nullTime(in.ChildMarkedAt), in.ConfirmedBy, nullTime(in.ConfirmedAt), in.PointsAwarded, in.ID,
	)
	if err != nil {
		return fmt.Errorf("update task instance: %w", err)
	}
	return nil
}

// ListForDate returns the family's instances on date.
func (s *InstanceStore) ListForDate(ctx context.Context, familyID int64, date model.Date) ([]model.TaskInstance, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+instanceCols+` FROM task_instances WHERE family_id = ? AND task_date = ? ORDER BY id ASC`,
		familyID, date)
	if err != nil {
		return nil, fmt.Errorf("list task instances: %w", err)
	}
	defer rows.Close()

	var out []model.TaskInstance
	for rows.Next() {
		in, err := scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task instance: %w", err)
		}
		out = append(out, *in)
	}
	return out, rows.Err()
}

// ListForReview returns instances a child marked done on date, newest mark
// first.
func (s *InstanceStore) ListForReview(ctx context.Context, familyID int64, date model.Date) ([]model.ReviewItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT i.id, i.task_id, d.title, i.child_id, m.name, i.status, i.child_marked_at
		FROM task_instances i
		JOIN task_definitions d ON d.id = i.task_id
		JOIN family_members m ON m.id = i.child_id
		WHERE i.family_id = ? AND i.task_date = ? AND i.status = ?
		ORDER BY i.child_marked_at DESC, i.id DESC`,
		familyID, date, model.StatusChildDone)
	if err != nil {
		return nil, fmt.Errorf("list review items: %w", err)
	}
	defer rows.Close()

	var out []model.ReviewItem
	for rows.Next() {
		var it model.ReviewItem
		var markedAt sql.NullString
		if err := rows.Scan(&it.InstanceID, &it.TaskID, &it.Title, &it.ChildID, &it.ChildName, &it.Status, &markedAt); err != nil {
			return nil, fmt.Errorf("scan review item: %w", err)
		}
		if markedAt.Valid {
			if it.ChildMarkedAt, err = parseTime(markedAt.String); err != nil {
				return nil, fmt.Errorf("scan review item: %w", err)
			}
		}
		out = append(out, it)
	}
	return out, rows.Err()
}
