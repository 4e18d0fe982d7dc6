package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/familytasks/internal/apperr"
	"github.com/dukerupert/familytasks/internal/leaderboard"
	"github.com/dukerupert/familytasks/internal/model"
	"github.com/dukerupert/familytasks/internal/store"
)

type LeaderboardHandler struct {
	agg    *leaderboard.Aggregator
	ledger *store.LedgerStore
	clock  Clock
	logger *slog.Logger
}

func NewLeaderboardHandler(agg *leaderboard.Aggregator, ledger *store.LedgerStore, clock Clock, logger *slog.Logger) *LeaderboardHandler {
	return &LeaderboardHandler{agg: agg, ledger: ledger, clock: clock, logger: logger}
}

// Weekly serves the Sunday-start week containing ?date. ?limit defaults to
// leaderboard.DefaultLimit; 0 returns every child.
func (h *LeaderboardHandler) Weekly(w http.ResponseWriter, r *http.Request) {
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
	limit, err := queryInt(r, "limit", leaderboard.DefaultLimit)
	if err != nil {
		writeError(w, err)
		return
	}

	lb, err := h.agg.WeeklyTotals(r.Context(), familyID, date, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lb)
}

// History lists the family's ledger entries, oldest first.
func (h *LeaderboardHandler) History(w http.ResponseWriter, r *http.Request) {
	familyID, err := queryID(r, "family")
	if err != nil {
		writeError(w, err)
		return
	}
	if !allowFamily(w, r, familyID) {
		return
	}

	entries, err := h.ledger.List(r.Context(), familyID)
	if err != nil {
		h.logger.Error("list ledger", "family_id", familyID, "error", err)
		writeError(w, apperr.Storage("list ledger", err))
		return
	}
	if entries == nil {
		entries = []model.PointsLedgerEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}
