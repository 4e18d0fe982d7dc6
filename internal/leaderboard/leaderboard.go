// Package leaderboard ranks a family's children by the points they earned in
// a Sunday-to-Saturday week.
package leaderboard

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/dukerupert/familytasks/internal/apperr"
	"github.com/dukerupert/familytasks/internal/model"
	"github.com/dukerupert/familytasks/internal/store"
)

const DefaultLimit = 10

type Aggregator struct {
	families *store.FamilyStore
	ledger   *store.LedgerStore
	loc      *time.Location
	logger   *slog.Logger
}

func NewAggregator(families *store.FamilyStore, ledger *store.LedgerStore, loc *time.Location, logger *slog.Logger) *Aggregator {
	if loc == nil {
		loc = time.UTC
	}
	return &Aggregator{families: families, ledger: ledger, loc: loc, logger: logger}
}

// WeekStart returns the Sunday on or before date.
func WeekStart(date model.Date) model.Date {
	return date.AddDays(-int(date.Weekday()))
}

// WeeklyTotals sums ledger points per child over [Sunday 00:00, next Sunday
// 00:00) of the week containing ref in the aggregator's location. Children
// without entries score zero. A limit of 0 or less returns every child.
func (a *Aggregator) WeeklyTotals(ctx context.Context, familyID int64, ref model.Date, limit int) (*model.Leaderboard, error) {
	if familyID <= 0 {
		return nil, apperr.Validation("family is required")
	}
	if ref.IsZero() {
		return nil, apperr.Validation("date is required")
	}

	start := WeekStart(ref)
	from, to := start.In(a.loc), start.AddDays(7).In(a.loc)

	children, err := a.families.ListChildren(ctx, familyID)
	if err != nil {
		return nil, a.fail(err)
	}
	totals, err := a.ledger.SumByChild(ctx, familyID, from, to)
	if err != nil {
		return nil, a.fail(err)
	}

	items := make([]model.LeaderboardEntry, 0, len(children))
	for _, c := range children {
		items = append(items, model.LeaderboardEntry{
			ChildID: c.ID,
			Name:    c.DisplayName(),
			Points:  totals[c.ID],
		})
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Points != items[j].Points {
			return items[i].Points > items[j].Points
		}
		return items[i].Name < items[j].Name
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	for i := range items {
		items[i].Rank = i + 1
	}

	return &model.Leaderboard{WeekStart: start, Items: items}, nil
}

func (a *Aggregator) fail(err error) error {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	a.logger.Error("leaderboard failed", "error", err)
	return apperr.Storage("weekly totals", err)
}
