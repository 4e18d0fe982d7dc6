package task

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/dukerupert/familytasks/internal/apperr"
	"github.com/dukerupert/familytasks/internal/database"
	"github.com/dukerupert/familytasks/internal/model"
	"github.com/dukerupert/familytasks/internal/store"
)

var utc = time.UTC

// Controller runs the task instance state machine. Every mutation reads the
// current status and writes status and ledger in one transaction.
type Controller struct {
	db        *sql.DB
	families  *store.FamilyStore
	tasks     *store.TaskStore
	instances *store.InstanceStore
	ledger    *store.LedgerStore
	loc       *time.Location
	now       func() time.Time
	logger    *slog.Logger
}

func NewController(db *sql.DB, loc *time.Location, logger *slog.Logger) *Controller {
	if loc == nil {
		loc = time.UTC
	}
	return &Controller{
		db:        db,
		families:  store.NewFamilyStore(db),
		tasks:     store.NewTaskStore(db),
		instances: store.NewInstanceStore(db),
		ledger:    store.NewLedgerStore(db),
		loc:       loc,
		now:       time.Now,
		logger:    logger,
	}
}

// Result reports the status of an instance after an operation. Changed is
// false when the call was a no-op.
type Result struct {
	InstanceID    int64            `json:"instance_id,omitempty"`
	Status        model.TaskStatus `json:"status"`
	PointsAwarded int              `json:"points_awarded"`
	Changed       bool             `json:"changed"`
}

type ApproveRequest struct {
	FamilyID int64
	ParentID int64
	ChildID  int64
	TaskID   int64
	Date     model.Date
	Points   int
}

func validateKey(familyID, childID, taskID int64, date model.Date) error {
	switch {
	case familyID <= 0:
		return apperr.Validation("family is required")
	case childID <= 0:
		return apperr.Validation("child is required")
	case taskID <= 0:
		return apperr.Validation("task is required")
	case date.IsZero():
		return apperr.Validation("date is required")
	}
	return nil
}

// MarkDone records that the child finished the task on date.
func (c *Controller) MarkDone(ctx context.Context, familyID, childID, taskID int64, date model.Date) (*Result, error) {
	if err := validateKey(familyID, childID, taskID, date); err != nil {
		return nil, err
	}

	var res Result
	err := database.WithTx(ctx, c.db, func(tx *sql.Tx) error {
		if err := c.requireAssignment(ctx, tx, familyID, childID, taskID); err != nil {
			return err
		}
		instances := c.instances.WithTx(tx)
		in, err := instances.Get(ctx, taskID, childID, date)
		if err != nil {
			return err
		}

		cur := CurrentStatus(in)
		if !canMarkDone(cur) {
			res = Result{InstanceID: in.ID, Status: cur, PointsAwarded: in.PointsAwarded}
			return nil
		}

		now := c.now().UTC()
		if in == nil {
			in, err = instances.Insert(ctx, model.TaskInstance{
				FamilyID: familyID, TaskID: taskID, ChildID: childID, TaskDate: date,
				Status: model.StatusChildDone, ChildMarkedAt: &now,
			})
			if err != nil {
				return err
			}
		} else {
			in.Status = model.StatusChildDone
			in.ChildMarkedAt = &now
			if err := instances.Update(ctx, *in); err != nil {
				return err
			}
		}
		res = Result{InstanceID: in.ID, Status: in.Status, Changed: true}
		return nil
	})
	if err != nil {
		return nil, c.fail("mark done", err)
	}

	c.logger.Info("task marked done", "family_id", familyID, "child_id", childID, "task_id", taskID,
		"date", date.String(), "status", res.Status, "changed", res.Changed)
	return &res, nil
}

// Approve confirms the instance and credits the child exactly once.
func (c *Controller) Approve(ctx context.Context, req ApproveRequest) (*Result, error) {
	if err := validateKey(req.FamilyID, req.ChildID, req.TaskID, req.Date); err != nil {
		return nil, err
	}
	if req.ParentID <= 0 {
		return nil, apperr.Validation("parent is required")
	}
	if req.Points < 0 {
		return nil, apperr.Validation("points must not be negative")
	}

	var res Result
	err := database.WithTx(ctx, c.db, func(tx *sql.Tx) error {
		parent, err := c.families.WithTx(tx).GetMember(ctx, req.FamilyID, req.ParentID)
		if err != nil {
			return err
		}
		if parent == nil || parent.Role != model.RoleParent {
			return apperr.NotFound("parent")
		}
		def, err := c.tasks.WithTx(tx).GetDefinition(ctx, req.FamilyID, req.TaskID)
		if err != nil {
			return err
		}
		if def == nil {
			return apperr.NotFound("task")
		}
		if err := c.requireAssignment(ctx, tx, req.FamilyID, req.ChildID, req.TaskID); err != nil {
			return err
		}

		instances := c.instances.WithTx(tx)
		in, err := instances.Get(ctx, req.TaskID, req.ChildID, req.Date)
		if err != nil {
			return err
		}
		apply, err := canApprove(CurrentStatus(in))
		if err != nil {
			return err
		}
		if !apply {
			res = Result{InstanceID: in.ID, Status: in.Status, PointsAwarded: in.PointsAwarded}
			return nil
		}

		points := resolvePoints(req.Points, *def)
		now := c.now().UTC()
		if in == nil {
			in, err = instances.Insert(ctx, model.TaskInstance{
				FamilyID: req.FamilyID, TaskID: req.TaskID, ChildID: req.ChildID, TaskDate: req.Date,
				Status: model.StatusApproved, ConfirmedBy: &req.ParentID, ConfirmedAt: &now,
				PointsAwarded: points,
			})
			if err != nil {
				return err
			}
		} else {
			in.Status = model.StatusApproved
			in.ConfirmedBy = &req.ParentID
			in.ConfirmedAt = &now
			in.PointsAwarded = points
			if err := instances.Update(ctx, *in); err != nil {
				return err
			}
		}

		_, err = c.ledger.WithTx(tx).Append(ctx, model.PointsLedgerEntry{
			FamilyID:  req.FamilyID,
			ChildID:   req.ChildID,
			Points:    points,
			Source:    model.SourceTask,
			Reference: model.TaskReference(in.ID),
			CreatedAt: now,
		})
		if err != nil {
			return err
		}
		res = Result{InstanceID: in.ID, Status: in.Status, PointsAwarded: points, Changed: true}
		return nil
	})
	if err != nil {
		return nil, c.fail("approve", err)
	}

	c.logger.Info("task approved", "family_id", req.FamilyID, "child_id", req.ChildID, "task_id", req.TaskID,
		"date", req.Date.String(), "points", res.PointsAwarded, "changed", res.Changed)
	return &res, nil
}

// Reject closes the instance without points.
func (c *Controller) Reject(ctx context.Context, familyID, childID, taskID int64, date model.Date) (*Result, error) {
	if err := validateKey(familyID, childID, taskID, date); err != nil {
		return nil, err
	}

	var res Result
	err := database.WithTx(ctx, c.db, func(tx *sql.Tx) error {
		if err := c.requireAssignment(ctx, tx, familyID, childID, taskID); err != nil {
			return err
		}
		instances := c.instances.WithTx(tx)
		in, err := instances.Get(ctx, taskID, childID, date)
		if err != nil {
			return err
		}
		apply, err := canReject(CurrentStatus(in))
		if err != nil {
			return err
		}
		if !apply {
			res = Result{InstanceID: in.ID, Status: in.Status}
			return nil
		}

		now := c.now().UTC()
		if in == nil {
			in, err = instances.Insert(ctx, model.TaskInstance{
				FamilyID: familyID, TaskID: taskID, ChildID: childID, TaskDate: date,
				Status: model.StatusRejected, ConfirmedAt: &now,
			})
			if err != nil {
				return err
			}
		} else {
			in.Status = model.StatusRejected
			in.ConfirmedAt = &now
			in.PointsAwarded = 0
			if err := instances.Update(ctx, *in); err != nil {
				return err
			}
		}
		res = Result{InstanceID: in.ID, Status: in.Status, Changed: true}
		return nil
	})
	if err != nil {
		return nil, c.fail("reject", err)
	}

	c.logger.Info("task rejected", "family_id", familyID, "child_id", childID, "task_id", taskID,
		"date", date.String(), "changed", res.Changed)
	return &res, nil
}

// ListDueForDay returns the tasks due on date grouped by child, with the
// current status of each. A childID of 0 lists every child.
func (c *Controller) ListDueForDay(ctx context.Context, familyID int64, date model.Date, childID int64) ([]model.ChildDueTasks, error) {
	if familyID <= 0 {
		return nil, apperr.Validation("family is required")
	}
	if date.IsZero() {
		return nil, apperr.Validation("date is required")
	}

	assigned, err := c.tasks.ListAssigned(ctx, familyID)
	if err != nil {
		return nil, c.fail("list due tasks", err)
	}
	instances, err := c.instances.ListForDate(ctx, familyID, date)
	if err != nil {
		return nil, c.fail("list due tasks", err)
	}

	type key struct{ task, child int64 }
	byKey := make(map[key]*model.TaskInstance, len(instances))
	for i := range instances {
		in := &instances[i]
		byKey[key{in.TaskID, in.ChildID}] = in
	}

	var groups []model.ChildDueTasks
	for _, at := range assigned {
		if childID > 0 && at.Assignment.ChildID != childID {
			continue
		}
		if !IsDue(at, date) {
			continue
		}
		in := byKey[key{at.Task.ID, at.Assignment.ChildID}]
		due := model.DueTask{
			TaskID:       at.Task.ID,
			AssignmentID: at.Assignment.ID,
			Title:        at.Task.Title,
			Points:       at.Task.Points,
			Status:       CurrentStatus(in),
		}
		if in != nil {
			id := in.ID
			due.InstanceID = &id
			due.ChildMarkedAt = in.ChildMarkedAt
			due.ConfirmedAt = in.ConfirmedAt
			due.PointsAwarded = in.PointsAwarded
		}

		if n := len(groups); n == 0 || groups[n-1].ChildID != at.Assignment.ChildID {
			groups = append(groups, model.ChildDueTasks{ChildID: at.Assignment.ChildID, ChildName: at.ChildName})
		}
		g := &groups[len(groups)-1]
		g.Tasks = append(g.Tasks, due)
	}
	return groups, nil
}

// ListForReview returns instances on date waiting for a parent.
func (c *Controller) ListForReview(ctx context.Context, familyID int64, date model.Date) ([]model.ReviewItem, error) {
	if familyID <= 0 {
		return nil, apperr.Validation("family is required")
	}
	items, err := c.instances.ListForReview(ctx, familyID, date)
	if err != nil {
		return nil, c.fail("list review", err)
	}
	return items, nil
}

// DailyScore sums the child's ledger points credited on date in the
// controller's location.
func (c *Controller) DailyScore(ctx context.Context, familyID, childID int64, date model.Date) (int, error) {
	if familyID <= 0 || childID <= 0 {
		return 0, apperr.Validation("family and child are required")
	}
	child, err := c.families.GetMember(ctx, familyID, childID)
	if err != nil {
		return 0, c.fail("daily score", err)
	}
	if child == nil || child.Role != model.RoleChild {
		return 0, apperr.NotFound("child")
	}
	total, err := c.ledger.SumForChild(ctx, familyID, childID, date.In(c.loc), date.AddDays(1).In(c.loc))
	if err != nil {
		return 0, c.fail("daily score", err)
	}
	return total, nil
}

// DueTitles returns the distinct titles due for any child of the family on
// date, sorted.
func (c *Controller) DueTitles(ctx context.Context, familyID int64, date model.Date) ([]string, error) {
	assigned, err := c.tasks.ListAssigned(ctx, familyID)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	for _, at := range assigned {
		if IsDue(at, date) {
			seen[at.Task.Title] = true
		}
	}
	return sortedKeys(seen), nil
}

// ActiveTitles returns the distinct titles of the family's active
// definitions, sorted.
func (c *Controller) ActiveTitles(ctx context.Context, familyID int64) ([]string, error) {
	defs, err := c.tasks.ListDefinitions(ctx, familyID, true)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	for _, d := range defs {
		seen[d.Title] = true
	}
	return sortedKeys(seen), nil
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		li, lj := strings.ToLower(out[i]), strings.ToLower(out[j])
		if li != lj {
			return li < lj
		}
		return out[i] < out[j]
	})
	return out
}

func (c *Controller) requireAssignment(ctx context.Context, tx *sql.Tx, familyID, childID, taskID int64) error {
	asg, err := c.tasks.WithTx(tx).GetAssignment(ctx, familyID, taskID, childID)
	if err != nil {
		return err
	}
	if asg == nil {
		return apperr.NotFound("task assignment")
	}
	return nil
}

// fail passes domain errors through and wraps everything else as storage.
func (c *Controller) fail(op string, err error) error {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	c.logger.Error("task operation failed", "op", op, "error", err)
	return apperr.Storage(op, err)
}
