package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/familytasks/internal/apperr"
	"github.com/dukerupert/familytasks/internal/database"
	"github.com/dukerupert/familytasks/internal/model"
	"github.com/dukerupert/familytasks/internal/recurrence"
	"github.com/dukerupert/familytasks/internal/store"
	ws "github.com/dukerupert/familytasks/internal/websocket"
)

type TaskDefinitionHandler struct {
	tasks    *store.TaskStore
	families *store.FamilyStore
	notifier ws.Notifier
	logger   *slog.Logger
}

func NewTaskDefinitionHandler(tasks *store.TaskStore, families *store.FamilyStore, notifier ws.Notifier, logger *slog.Logger) *TaskDefinitionHandler {
	return &TaskDefinitionHandler{tasks: tasks, families: families, notifier: notifier, logger: logger}
}

type definitionRequest struct {
	Family     int64   `json:"family"`
	Title      string  `json:"title"`
	Points     *int    `json:"points"`
	Recurrence string  `json:"recurrence"`
	StartDate  *string `json:"start_date"`
	EndDate    *string `json:"end_date"`
}

// definitionView adds the readable schedule to a definition.
type definitionView struct {
	model.TaskDefinition
	Description string `json:"description"`
}

func viewOf(d model.TaskDefinition) definitionView {
	return definitionView{TaskDefinition: d, Description: d.Recurrence.Describe()}
}

func (h *TaskDefinitionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req definitionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if !allowFamily(w, r, req.Family) {
		return
	}

	def, err := req.definition()
	if err != nil {
		writeError(w, err)
		return
	}

	created, err := h.tasks.CreateDefinition(r.Context(), def)
	if err != nil {
		h.logger.Error("create task definition", "family_id", req.Family, "error", err)
		writeError(w, apperr.Storage("create task definition", err))
		return
	}

	h.notifier.Broadcast(req.Family, ws.NewMessage(ws.EntityTaskDef, "created", created.ID, nil))
	writeJSON(w, http.StatusCreated, viewOf(*created))
}

func (req definitionRequest) definition() (model.TaskDefinition, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return model.TaskDefinition{}, apperr.Validation("title is required")
	}
	points := 1
	if req.Points != nil {
		points = *req.Points
	}
	if points < 0 {
		return model.TaskDefinition{}, apperr.Validation("points must not be negative")
	}
	rule, err := recurrence.Parse(req.Recurrence)
	if err != nil {
		return model.TaskDefinition{}, apperr.Validationf("recurrence: %v", err)
	}
	start, err := optionalDate(req.StartDate)
	if err != nil {
		return model.TaskDefinition{}, err
	}
	end, err := optionalDate(req.EndDate)
	if err != nil {
		return model.TaskDefinition{}, err
	}
	if start != nil && end != nil && end.Before(*start) {
		return model.TaskDefinition{}, apperr.Validation("end_date is before start_date")
	}
	return model.TaskDefinition{
		FamilyID:   req.Family,
		Title:      title,
		Points:     points,
		Active:     true,
		Recurrence: rule,
		StartDate:  start,
		EndDate:    end,
	}, nil
}

func (h *TaskDefinitionHandler) List(w http.ResponseWriter, r *http.Request) {
	familyID, err := queryID(r, "family")
	if err != nil {
		writeError(w, err)
		return
	}
	if !allowFamily(w, r, familyID) {
		return
	}
	activeOnly := r.URL.Query().Get("active") != "false"

	defs, err := h.tasks.ListDefinitions(r.Context(), familyID, activeOnly)
	if err != nil {
		h.logger.Error("list task definitions", "family_id", familyID, "error", err)
		writeError(w, apperr.Storage("list task definitions", err))
		return
	}
	views := make([]definitionView, 0, len(defs))
	for _, d := range defs {
		views = append(views, viewOf(d))
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *TaskDefinitionHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req struct {
		Family int64 `json:"family"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if !allowFamily(w, r, req.Family) {
		return
	}

	found, err := h.tasks.Deactivate(r.Context(), req.Family, id)
	if err != nil {
		h.logger.Error("deactivate task definition", "family_id", req.Family, "task_id", id, "error", err)
		writeError(w, apperr.Storage("deactivate task definition", err))
		return
	}
	if !found {
		writeError(w, apperr.NotFound("task"))
		return
	}

	h.notifier.Broadcast(req.Family, ws.NewMessage(ws.EntityTaskDef, "deactivated", id, nil))
	w.WriteHeader(http.StatusNoContent)
}

type assignmentRequest struct {
	Family    int64   `json:"family"`
	Task      int64   `json:"task"`
	Child     int64   `json:"child"`
	StartDate *string `json:"start_date"`
	EndDate   *string `json:"end_date"`
}

func (h *TaskDefinitionHandler) Assign(w http.ResponseWriter, r *http.Request) {
	var req assignmentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if !allowFamily(w, r, req.Family) {
		return
	}
	if req.Task <= 0 || req.Child <= 0 {
		writeError(w, apperr.Validation("task and child are required"))
		return
	}
	start, err := optionalDate(req.StartDate)
	if err != nil {
		writeError(w, err)
		return
	}
	end, err := optionalDate(req.EndDate)
	if err != nil {
		writeError(w, err)
		return
	}

	ctx := r.Context()
	def, err := h.tasks.GetDefinition(ctx, req.Family, req.Task)
	if err != nil {
		writeError(w, apperr.Storage("assign task", err))
		return
	}
	if def == nil {
		writeError(w, apperr.NotFound("task"))
		return
	}
	child, err := h.families.GetMember(ctx, req.Family, req.Child)
	if err != nil {
		writeError(w, apperr.Storage("assign task", err))
		return
	}
	if child == nil || child.Role != model.RoleChild {
		writeError(w, apperr.NotFound("child"))
		return
	}

	asg, err := h.tasks.Assign(ctx, model.TaskAssignment{
		FamilyID:  req.Family,
		TaskID:    req.Task,
		ChildID:   req.Child,
		StartDate: start,
		EndDate:   end,
	})
	if err != nil {
		if database.IsUniqueViolation(err) {
			writeError(w, apperr.Conflict("ASSIGNMENT_EXISTS", "task is already assigned to this child"))
			return
		}
		h.logger.Error("assign task", "family_id", req.Family, "task_id", req.Task, "error", err)
		writeError(w, apperr.Storage("assign task", err))
		return
	}

	h.notifier.Broadcast(req.Family, ws.NewMessage(ws.EntityTaskDef, "assigned", asg.TaskID, map[string]any{"child_id": asg.ChildID}))
	writeJSON(w, http.StatusCreated, asg)
}
