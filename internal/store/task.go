package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/familytasks/internal/model"
	"github.com/dukerupert/familytasks/internal/recurrence"
)

type TaskStore struct {
	db DBTX
}

func NewTaskStore(db *sql.DB) *TaskStore {
	return &TaskStore{db: db}
}

func (s *TaskStore) WithTx(tx *sql.Tx) *TaskStore {
	return &TaskStore{db: tx}
}

func scanDefinition(scanner interface{ Scan(...any) error }) (*model.TaskDefinition, error) {
	var d model.TaskDefinition
	var kind string
	var onceDate *model.Date
	var mask int
	err := scanner.Scan(
		&d.ID, &d.FamilyID, &d.Title, &d.Points, &d.Active,
		&kind, &onceDate, &mask, &d.StartDate, &d.EndDate, &d.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	k, err := recurrence.ParseKind(kind)
	if err != nil {
		return nil, err
	}
	d.Recurrence = recurrence.Rule{Kind: k, Days: recurrence.Mask(mask)}
	if onceDate != nil {
		d.Recurrence.On = onceDate.In(time.UTC)
	}
	return &d, nil
}

func scanAssignment(scanner interface{ Scan(...any) error }) (*model.TaskAssignment, error) {
	var a model.TaskAssignment
	err := scanner.Scan(&a.ID, &a.FamilyID, &a.TaskID, &a.ChildID, &a.StartDate, &a.EndDate, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

const definitionCols = `id, family_id, title, points, active, recurrence, once_date, days_mask, start_date, end_date, created_at`
const assignmentCols = `id, family_id, task_id, child_id, start_date, end_date, created_at`

func (s *TaskStore) CreateDefinition(ctx context.Context, d model.TaskDefinition) (*model.TaskDefinition, error) {
	var onceDate *model.Date
	if d.Recurrence.Kind == recurrence.Once {
		od := model.DateOf(d.Recurrence.On)
		onceDate = &od
	}
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO task_definitions (family_id, title, points, active, recurrence, once_date, days_mask, start_date, end_date)
		 VALUES (?, ?, ?, 1, ?, ?, ?, ?, ?)`,
		d.FamilyID, d.Title, d.Points, d.Recurrence.Kind.String(), onceDate, int(d.Recurrence.Days),
		d.StartDate, d.EndDate,
	)
	if err != nil {
		return nil, fmt.Errorf("insert task definition: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetDefinition(ctx, d.FamilyID, id)
}

// GetDefinition returns the definition only if it belongs to familyID.
func (s *TaskStore) GetDefinition(ctx context.Context, familyID, id int64) (*model.TaskDefinition, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+definitionCols+` FROM task_definitions WHERE id = ? AND family_id = ?`, id, familyID)
	d, err := scanDefinition(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task definition: %w", err)
	}
	return d, nil
}

func (s *TaskStore) ListDefinitions(ctx context.Context, familyID int64, activeOnly bool) ([]model.TaskDefinition, error) {
	query := `SELECT ` + definitionCols + ` FROM task_definitions WHERE family_id = ?`
	if activeOnly {
		query += ` AND active = 1`
	}
	query += ` ORDER BY lower(title) ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, familyID)
	if err != nil {
		return nil, fmt.Errorf("list task definitions: %w", err)
	}
	defer rows.Close()

	var defs []model.TaskDefinition
	for rows.Next() {
		d, err := scanDefinition(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task definition: %w", err)
		}
		defs = append(defs, *d)
	}
	return defs, rows.Err()
}

// Deactivate hides a definition from future due lists. It reports whether
// the definition exists in the family.
func (s *TaskStore) Deactivate(ctx context.Context, familyID, id int64) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE task_definitions SET active = 0 WHERE id = ? AND family_id = ?`, id, familyID)
	if err != nil {
		return false, fmt.Errorf("deactivate task definition: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

func (s *TaskStore) Assign(ctx context.Context, a model.TaskAssignment) (*model.TaskAssignment, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO task_assignments (family_id, task_id, child_id, start_date, end_date) VALUES (?, ?, ?, ?, ?)`,
		a.FamilyID, a.TaskID, a.ChildID, a.StartDate, a.EndDate,
	)
	if err != nil {
		return nil, fmt.Errorf("insert task assignment: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+assignmentCols+` FROM task_assignments WHERE id = ?`, id)
	return scanAssignment(row)
}

func (s *TaskStore) GetAssignment(ctx context.Context, familyID, taskID, childID int64) (*model.TaskAssignment, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+assignmentCols+` FROM task_assignments WHERE family_id = ? AND task_id = ? AND child_id = ?`,
		familyID, taskID, childID)
	a, err := scanAssignment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task assignment: %w", err)
	}
	return a, nil
}

// ListAssigned returns every assignment of an active definition in the
// family joined with its definition and child, ordered by child name then
// lower(title).
func (s *TaskStore) ListAssigned(ctx context.Context, familyID int64) ([]model.AssignedTask, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.id, a.family_id, a.task_id, a.child_id, a.start_date, a.end_date, a.created_at,
		       d.id, d.family_id, d.title, d.points, d.active, d.recurrence, d.once_date, d.days_mask,
		       d.start_date, d.end_date, d.created_at,
		       m.name
		FROM task_assignments a
		JOIN task_definitions d ON d.id = a.task_id
		JOIN family_members m ON m.id = a.child_id
		WHERE a.family_id = ? AND d.active = 1
		ORDER BY m.name ASC, m.id ASC, lower(d.title) ASC, d.id ASC`, familyID)
	if err != nil {
		return nil, fmt.Errorf("list assigned tasks: %w", err)
	}
	defer rows.Close()

	var out []model.AssignedTask
	for rows.Next() {
		var at model.AssignedTask
		var kind string
		var onceDate *model.Date
		var mask int
		a, d := &at.Assignment, &at.Task
		err := rows.Scan(
			&a.ID, &a.FamilyID, &a.TaskID, &a.ChildID, &a.StartDate, &a.EndDate, &a.CreatedAt,
			&d.ID, &d.FamilyID, &d.Title, &d.Points, &d.Active, &kind, &onceDate, &mask,
			&d.StartDate, &d.EndDate, &d.CreatedAt,
			&at.ChildName,
		)
		if err != nil {
			return nil, fmt.Errorf("scan assigned task: %w", err)
		}
		k, err := recurrence.ParseKind(kind)
		if err != nil {
			return nil, fmt.Errorf("scan assigned task: %w", err)
		}
		d.Recurrence = recurrence.Rule{Kind: k, Days: recurrence.Mask(mask)}
		if onceDate != nil {
			d.Recurrence.On = onceDate.In(time.UTC)
		}
		out = append(out, at)
	}
	return out, rows.Err()
}
