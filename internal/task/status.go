package task

import (
	"github.com/dukerupert/familytasks/internal/apperr"
	"github.com/dukerupert/familytasks/internal/model"
	"github.com/dukerupert/familytasks/internal/recurrence"
)

// EffectiveWindow is the intersection of the definition's and the
// assignment's validity windows.
func EffectiveWindow(def model.TaskDefinition, asg model.TaskAssignment) recurrence.Window {
	return window(def.StartDate, def.EndDate).Intersect(window(asg.StartDate, asg.EndDate))
}

func window(start, end *model.Date) recurrence.Window {
	var w recurrence.Window
	if start != nil {
		t := start.In(utc)
		w.Start = &t
	}
	if end != nil {
		t := end.In(utc)
		w.End = &t
	}
	return w
}

// IsDue reports whether an assigned task is due on date.
func IsDue(at model.AssignedTask, date model.Date) bool {
	if !at.Task.Active {
		return false
	}
	return recurrence.IsDue(at.Task.Recurrence, EffectiveWindow(at.Task, at.Assignment), date.In(utc))
}

// CurrentStatus projects an instance's status, Pending when none exists.
func CurrentStatus(in *model.TaskInstance) model.TaskStatus {
	if in == nil {
		return model.StatusPending
	}
	return in.Status
}

// canMarkDone reports whether mark-done moves the instance forward. Any
// status past Pending makes mark-done a no-op.
func canMarkDone(cur model.TaskStatus) bool {
	return cur == model.StatusPending
}

// canApprove reports whether approval should write. Re-approval is a no-op;
// approving a rejected instance conflicts.
func canApprove(cur model.TaskStatus) (bool, error) {
	switch cur {
	case model.StatusApproved:
		return false, nil
	case model.StatusRejected:
		return false, apperr.ErrTaskAlreadyRejected
	default:
		return true, nil
	}
}

// canReject reports whether rejection should write. Ledger entries are never
// retracted, so rejecting an approved instance conflicts.
func canReject(cur model.TaskStatus) (bool, error) {
	switch cur {
	case model.StatusRejected:
		return false, nil
	case model.StatusApproved:
		return false, apperr.ErrTaskAlreadyApproved
	default:
		return true, nil
	}
}

// resolvePoints picks the award: the request's points, then the
// definition's, then 1.
func resolvePoints(requested int, def model.TaskDefinition) int {
	if requested > 0 {
		return requested
	}
	if def.Points > 0 {
		return def.Points
	}
	return 1
}
