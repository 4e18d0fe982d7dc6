package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/familytasks/internal/apperr"
	"github.com/dukerupert/familytasks/internal/trivia"
	ws "github.com/dukerupert/familytasks/internal/websocket"
)

type TriviaHandler struct {
	svc      *trivia.Service
	clock    Clock
	notifier ws.Notifier
	logger   *slog.Logger
}

func NewTriviaHandler(svc *trivia.Service, clock Clock, notifier ws.Notifier, logger *slog.Logger) *TriviaHandler {
	return &TriviaHandler{svc: svc, clock: clock, notifier: notifier, logger: logger}
}

func (h *TriviaHandler) Today(w http.ResponseWriter, r *http.Request) {
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

	today, err := h.svc.Today(r.Context(), familyID, childID, date)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, today)
}

type answerRequest struct {
	Family    int64  `json:"family"`
	Child     int64  `json:"child"`
	Date      string `json:"date"`
	Reference string `json:"reference"`
	Choice    *int   `json:"choice"`
}

func (h *TriviaHandler) Answer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if !allowFamily(w, r, req.Family) {
		return
	}
	if req.Choice == nil {
		writeError(w, apperr.Validation("choice is required"))
		return
	}
	date, err := h.clock.date(req.Date)
	if err != nil {
		writeError(w, err)
		return
	}

	res, err := h.svc.SubmitAnswer(r.Context(), trivia.AnswerRequest{
		FamilyID: req.Family,
		ChildID:  req.Child,
		Date:     date,
		Choice:   *req.Choice,
		Ref:      strings.TrimSpace(req.Reference),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	action := "answered"
	if res.Correct {
		action = "solved"
	}
	h.notifier.Broadcast(req.Family, ws.NewMessage(ws.EntityTrivia, action, req.Child, map[string]any{"date": date.String()}))
	if res.PointsAwarded > 0 {
		h.notifier.Broadcast(req.Family, ws.NewMessage(ws.EntityLeaderboard, "changed", req.Child, map[string]any{"date": date.String()}))
	}
	writeJSON(w, http.StatusOK, res)
}
