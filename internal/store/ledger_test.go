package store

import (
	"context"
	"testing"
	"time"

	"github.com/dukerupert/familytasks/internal/database"
	"github.com/dukerupert/familytasks/internal/model"
)

func TestLedgerAppendAndSum(t *testing.T) {
	db := setupTestDB(t)
	ls := NewLedgerStore(db)
	ctx := context.Background()
	f, _, kids := seedFamily(t, db, "Smith", "Ann", "Ben")

	base := time.Date(2026, 2, 3, 10, 0, 0, 0, time.UTC)
	entries := []model.PointsLedgerEntry{
		{FamilyID: f.ID, ChildID: kids[0].ID, Points: 3, Source: model.SourceTask, Reference: "task:1", CreatedAt: base},
		{FamilyID: f.ID, ChildID: kids[0].ID, Points: 5, Source: model.SourceTrivia, Reference: "trivia:2026-02-03", CreatedAt: base.Add(time.Hour)},
		{FamilyID: f.ID, ChildID: kids[1].ID, Points: 2, Source: model.SourceTask, Reference: "task:2", CreatedAt: base.Add(2 * time.Hour)},
		{FamilyID: f.ID, ChildID: kids[1].ID, Points: 7, Source: model.SourceTask, Reference: "task:3", CreatedAt: base.AddDate(0, 0, 1)},
	}
	for _, e := range entries {
		if _, err := ls.Append(ctx, e); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	totals, err := ls.SumByChild(ctx, f.ID, base, base.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("sum by child: %v", err)
	}
	if totals[kids[0].ID] != 8 {
		t.Errorf("Ann = %d, want 8", totals[kids[0].ID])
	}
	if totals[kids[1].ID] != 2 {
		t.Errorf("Ben = %d, want 2", totals[kids[1].ID])
	}

	sum, err := ls.SumForChild(ctx, f.ID, kids[1].ID, base, base.AddDate(0, 0, 2))
	if err != nil {
		t.Fatalf("sum for child: %v", err)
	}
	if sum != 9 {
		t.Errorf("Ben two days = %d, want 9", sum)
	}

	sum, err = ls.SumForChild(ctx, f.ID, kids[1].ID, base.AddDate(0, 0, 5), base.AddDate(0, 0, 6))
	if err != nil {
		t.Fatalf("sum for child: %v", err)
	}
	if sum != 0 {
		t.Errorf("empty range = %d, want 0", sum)
	}

	all, err := ls.List(ctx, f.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("len = %d, want 4", len(all))
	}
	if !all[0].CreatedAt.Equal(base) {
		t.Errorf("created_at = %v, want %v", all[0].CreatedAt, base)
	}
}

func TestLedgerReferenceUnique(t *testing.T) {
	db := setupTestDB(t)
	ls := NewLedgerStore(db)
	ctx := context.Background()
	f, _, kids := seedFamily(t, db, "Smith", "Ann", "Ben")

	e := model.PointsLedgerEntry{FamilyID: f.ID, ChildID: kids[0].ID, Points: 5, Source: model.SourceTrivia, Reference: "trivia:2026-02-03"}
	if _, err := ls.Append(ctx, e); err != nil {
		t.Fatalf("append: %v", err)
	}
	e.ChildID = kids[1].ID
	_, err := ls.Append(ctx, e)
	if !database.IsUniqueViolation(err) {
		t.Errorf("second trivia entry err = %v, want unique violation", err)
	}

	all, err := ls.List(ctx, f.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 1 || all[0].ChildID != kids[0].ID {
		t.Errorf("entries = %+v, want one for child %d", all, kids[0].ID)
	}
}

func TestTriviaRecords(t *testing.T) {
	db := setupTestDB(t)
	ts := NewTriviaStore(db)
	ctx := context.Background()
	f, _, kids := seedFamily(t, db, "Smith", "Ann", "Ben", "Cy")
	date := mustDate(t, "2026-02-03")

	wrong, err := ts.InsertRecord(ctx, model.TriviaDailyRecord{
		FamilyID: f.ID, ChildID: kids[0].ID, TriviaDate: date, QuestionRef: "r",
	})
	if err != nil {
		t.Fatalf("insert wrong answer: %v", err)
	}
	if wrong.Correct {
		t.Error("expected incorrect record")
	}

	_, err = ts.InsertRecord(ctx, model.TriviaDailyRecord{
		FamilyID: f.ID, ChildID: kids[0].ID, TriviaDate: date, QuestionRef: "r",
	})
	if !database.UniqueViolationOn(err, "trivia_daily.child_id") {
		t.Errorf("second attempt err = %v, want unique violation on child", err)
	}

	if _, err := ts.InsertRecord(ctx, model.TriviaDailyRecord{
		FamilyID: f.ID, ChildID: kids[1].ID, TriviaDate: date, Correct: true, PointsAwarded: 5, QuestionRef: "r",
	}); err != nil {
		t.Fatalf("insert correct answer: %v", err)
	}

	_, err = ts.InsertRecord(ctx, model.TriviaDailyRecord{
		FamilyID: f.ID, ChildID: kids[2].ID, TriviaDate: date, Correct: true, PointsAwarded: 5, QuestionRef: "r",
	})
	if !database.UniqueViolationOn(err, "trivia_daily.family_id") {
		t.Errorf("second winner err = %v, want unique violation on family", err)
	}

	winner, err := ts.Winner(ctx, f.ID, date)
	if err != nil || winner == nil {
		t.Fatalf("winner = %v, %v", winner, err)
	}
	if winner.ChildID != kids[1].ID {
		t.Errorf("winner = %d, want %d", winner.ChildID, kids[1].ID)
	}

	rec, err := ts.GetRecord(ctx, kids[0].ID, date)
	if err != nil || rec == nil {
		t.Fatalf("get record = %v, %v", rec, err)
	}
	rec, err = ts.GetRecord(ctx, kids[2].ID, date)
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	if rec != nil {
		t.Error("expected nil record for child without attempt")
	}
}

func TestTriviaExternalSnapshot(t *testing.T) {
	db := setupTestDB(t)
	ts := NewTriviaStore(db)
	ctx := context.Background()
	f, _, _ := seedFamily(t, db, "Smith")
	date := mustDate(t, "2026-02-03")

	got, err := ts.GetExternal(ctx, f.ID, date)
	if err != nil {
		t.Fatalf("get external: %v", err)
	}
	if got != nil {
		t.Fatal("expected no snapshot")
	}

	first := model.ExternalQuestion{
		FamilyID: f.ID, TriviaDate: date, SourceID: "42",
		Text: "Capital of France?", Choices: []string{"Paris", "Rome"}, CorrectIndex: 0,
	}
	stored, err := ts.PutExternal(ctx, first)
	if err != nil {
		t.Fatalf("put external: %v", err)
	}
	if stored.Text != first.Text || len(stored.Choices) != 2 {
		t.Errorf("stored = %+v", stored)
	}

	second := first
	second.SourceID = "43"
	second.Text = "Capital of Italy?"
	stored, err = ts.PutExternal(ctx, second)
	if err != nil {
		t.Fatalf("put external: %v", err)
	}
	if stored.SourceID != "42" {
		t.Errorf("source id = %q, want first snapshot kept", stored.SourceID)
	}
}
