package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/familytasks/internal/model"
	"github.com/dukerupert/familytasks/internal/task"
	ws "github.com/dukerupert/familytasks/internal/websocket"
)

type TaskHandler struct {
	ctrl     *task.Controller
	clock    Clock
	notifier ws.Notifier
	logger   *slog.Logger
}

func NewTaskHandler(ctrl *task.Controller, clock Clock, notifier ws.Notifier, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{ctrl: ctrl, clock: clock, notifier: notifier, logger: logger}
}

// transitionRequest is the body of mark-done, approve and reject. Parent and
// Points are only read by approve.
type transitionRequest struct {
	Family int64  `json:"family"`
	Parent int64  `json:"parent"`
	Child  int64  `json:"child"`
	Task   int64  `json:"task"`
	Date   string `json:"date"`
	Points *int   `json:"points"`
}

func (h *TaskHandler) decodeTransition(w http.ResponseWriter, r *http.Request) (transitionRequest, model.Date, bool) {
	var req transitionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return req, model.Date{}, false
	}
	if !allowFamily(w, r, req.Family) {
		return req, model.Date{}, false
	}
	date, err := h.clock.date(req.Date)
	if err != nil {
		writeError(w, err)
		return req, model.Date{}, false
	}
	return req, date, true
}

func (h *TaskHandler) announce(familyID int64, action string, req transitionRequest, date model.Date, res *task.Result) {
	if !res.Changed {
		return
	}
	h.notifier.Broadcast(familyID, ws.NewMessage(ws.EntityTask, action, req.Task, map[string]any{
		"child_id": req.Child,
		"date":     date.String(),
		"status":   res.Status,
	}))
}

// List returns the due tasks of the day grouped by child.
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	familyID, err := queryID(r, "family")
	if err != nil {
		writeError(w, err)
		return
	}
	if !allowFamily(w, r, familyID) {
		return
	}
	childID, err := queryID(r, "child")
	if err != nil {
		writeError(w, err)
		return
	}
	date, err := h.clock.date(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, err)
		return
	}

	groups, err := h.ctrl.ListDueForDay(r.Context(), familyID, date, childID)
	if err != nil {
		writeError(w, err)
		return
	}
	if groups == nil {
		groups = []model.ChildDueTasks{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"date": date, "children": groups})
}

func (h *TaskHandler) MarkDone(w http.ResponseWriter, r *http.Request) {
	req, date, ok := h.decodeTransition(w, r)
	if !ok {
		return
	}
	res, err := h.ctrl.MarkDone(r.Context(), req.Family, req.Child, req.Task, date)
	if err != nil {
		writeError(w, err)
		return
	}
	h.announce(req.Family, "done", req, date, res)
	writeJSON(w, http.StatusOK, map[string]any{"status": res.Status})
}

func (h *TaskHandler) Approve(w http.ResponseWriter, r *http.Request) {
	req, date, ok := h.decodeTransition(w, r)
	if !ok {
		return
	}
	points := 0
	if req.Points != nil {
		points = *req.Points
	}
	res, err := h.ctrl.Approve(r.Context(), task.ApproveRequest{
		FamilyID: req.Family,
		ParentID: req.Parent,
		ChildID:  req.Child,
		TaskID:   req.Task,
		Date:     date,
		Points:   points,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	h.announce(req.Family, "approved", req, date, res)
	if res.Changed && res.PointsAwarded > 0 {
		h.notifier.Broadcast(req.Family, ws.NewMessage(ws.EntityLeaderboard, "changed", req.Child, map[string]any{"date": date.String()}))
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": res.Status, "points_awarded": res.PointsAwarded})
}

func (h *TaskHandler) Reject(w http.ResponseWriter, r *http.Request) {
	req, date, ok := h.decodeTransition(w, r)
	if !ok {
		return
	}
	res, err := h.ctrl.Reject(r.Context(), req.Family, req.Child, req.Task, date)
	if err != nil {
		writeError(w, err)
		return
	}
	h.announce(req.Family, "rejected", req, date, res)
	writeJSON(w, http.StatusOK, map[string]any{"status": res.Status})
}

func (h *TaskHandler) Review(w http.ResponseWriter, r *http.Request) {
	familyID, err := queryID(r, "family")
	if err != nil {
		writeError(w, err)
		return
	}
	if !allowFamily(w, r, familyID) {
		return
	}
	date, err := h.clock.date(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, err)
		return
	}

	items, err := h.ctrl.ListForReview(r.Context(), familyID, date)
	if err != nil {
		writeError(w, err)
		return
	}
	if items == nil {
		items = []model.ReviewItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *TaskHandler) DailyScore(w http.ResponseWriter, r *http.Request) {
	familyID, err := queryID(r, "family")
	if err != nil {
		writeError(w, err)
		return
	}
	if !allowFamily(w, r, familyID) {
		return
	}
	childID, err := queryID(r, "child")
	if err != nil {
		writeError(w, err)
		return
	}
	date, err := h.clock.date(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, err)
		return
	}

	points, err := h.ctrl.DailyScore(r.Context(), familyID, childID, date)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"child": childID, "date": date, "points": points})
}
