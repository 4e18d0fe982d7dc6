package trivia

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/familytasks/internal/apperr"
	"github.com/dukerupert/familytasks/internal/database"
	"github.com/dukerupert/familytasks/internal/model"
	"github.com/dukerupert/familytasks/internal/store"
)

type serviceFixture struct {
	db     *sql.DB
	svc    *Service
	family *model.Family
	kids   []*model.FamilyMember
	parent *model.FamilyMember
	ledger *store.LedgerStore
	date   model.Date
}

func newServiceFixture(t *testing.T, children ...string) *serviceFixture {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	families := store.NewFamilyStore(db)
	fam, err := families.Create(ctx, "Smith", "secret")
	require.NoError(t, err)
	parent, err := families.AddMember(ctx, model.FamilyMember{FamilyID: fam.ID, Role: model.RoleParent, Name: "Mom"})
	require.NoError(t, err)

	f := &serviceFixture{db: db, family: fam, parent: parent, ledger: store.NewLedgerStore(db), date: model.NewDate(2026, time.February, 3)}
	for _, name := range children {
		kid, err := families.AddMember(ctx, model.FamilyMember{FamilyID: fam.ID, Role: model.RoleChild, Name: name})
		require.NoError(t, err)
		f.kids = append(f.kids, kid)
	}

	signer := NewSigner("test-secret")
	gen := NewGenerator(families, fakeTasks{}, store.NewTriviaStore(db), nil, signer, discardLogger())
	f.svc = NewService(db, gen, signer, 0, discardLogger())
	return f
}

func (f *serviceFixture) question(t *testing.T, child *model.FamilyMember) *Question {
	t.Helper()
	today, err := f.svc.Today(context.Background(), f.family.ID, child.ID, f.date)
	require.NoError(t, err)
	require.Equal(t, StatusOpen, today.Status)
	require.NotNil(t, today.Question)
	return today.Question
}

func (f *serviceFixture) answer(child *model.FamilyMember, q *Question, choice int) (*AnswerResult, error) {
	return f.svc.SubmitAnswer(context.Background(), AnswerRequest{
		FamilyID: f.family.ID, ChildID: child.ID, Date: f.date, Choice: choice, Ref: q.Ref,
	})
}

func wrongChoice(q *Question) int {
	return (q.CorrectIndex + 1) % len(q.Choices)
}

func TestSubmitCorrectAnswer(t *testing.T) {
	f := newServiceFixture(t, "Ann", "Ben")
	q := f.question(t, f.kids[0])

	res, err := f.answer(f.kids[0], q, q.CorrectIndex)
	require.NoError(t, err)
	assert.True(t, res.Correct)
	assert.Equal(t, DefaultPoints, res.PointsAwarded)

	entries, err := f.ledger.List(context.Background(), f.family.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, model.SourceTrivia, entries[0].Source)
	assert.Equal(t, "trivia:2026-02-03", entries[0].Reference)
	assert.Equal(t, f.kids[0].ID, entries[0].ChildID)
}

func TestSecondChildAfterWinnerIsRejected(t *testing.T) {
	f := newServiceFixture(t, "Ann", "Ben")
	q := f.question(t, f.kids[0])

	_, err := f.answer(f.kids[0], q, q.CorrectIndex)
	require.NoError(t, err)

	_, err = f.answer(f.kids[1], q, q.CorrectIndex)
	assert.ErrorIs(t, err, apperr.ErrAlreadySolved)

	entries, err := f.ledger.List(context.Background(), f.family.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestWrongAnswerThenRetry(t *testing.T) {
	f := newServiceFixture(t, "Ann", "Ben")
	q := f.question(t, f.kids[0])

	res, err := f.answer(f.kids[0], q, wrongChoice(q))
	require.NoError(t, err)
	assert.False(t, res.Correct)
	assert.Zero(t, res.PointsAwarded)

	_, err = f.answer(f.kids[0], q, q.CorrectIndex)
	assert.ErrorIs(t, err, apperr.ErrAlreadyAttempted)

	res, err = f.answer(f.kids[1], q, q.CorrectIndex)
	require.NoError(t, err)
	assert.True(t, res.Correct, "another child may still win")
}

func TestStaleReference(t *testing.T) {
	f := newServiceFixture(t, "Ann")
	q := f.question(t, f.kids[0])

	stale := *q
	stale.Ref = "0000"
	_, err := f.answer(f.kids[0], &stale, q.CorrectIndex)
	assert.ErrorIs(t, err, apperr.ErrStaleQuestion)

	today, err := f.svc.Today(context.Background(), f.family.ID, f.kids[0].ID, f.date)
	require.NoError(t, err)
	assert.Equal(t, StatusOpen, today.Status, "a stale submission records nothing")
}

func TestChoiceOutOfRange(t *testing.T) {
	f := newServiceFixture(t, "Ann")
	q := f.question(t, f.kids[0])

	_, err := f.answer(f.kids[0], q, len(q.Choices))
	assert.True(t, apperr.IsValidation(err))
	_, err = f.answer(f.kids[0], q, -1)
	assert.True(t, apperr.IsValidation(err))
}

func TestSubmitRequiresChild(t *testing.T) {
	f := newServiceFixture(t, "Ann")
	q := f.question(t, f.kids[0])

	_, err := f.answer(f.parent, q, q.CorrectIndex)
	assert.True(t, apperr.IsNotFound(err))
}

func TestTodayTransitions(t *testing.T) {
	f := newServiceFixture(t, "Ann", "Ben", "Cy")
	ctx := context.Background()
	q := f.question(t, f.kids[0])

	_, err := f.answer(f.kids[0], q, wrongChoice(q))
	require.NoError(t, err)

	today, err := f.svc.Today(ctx, f.family.ID, f.kids[0].ID, f.date)
	require.NoError(t, err)
	assert.Equal(t, StatusAnswered, today.Status)
	assert.Nil(t, today.Question)
	require.NotNil(t, today.Result)
	assert.False(t, today.Result.Correct)

	_, err = f.answer(f.kids[1], q, q.CorrectIndex)
	require.NoError(t, err)

	for _, kid := range f.kids {
		today, err = f.svc.Today(ctx, f.family.ID, kid.ID, f.date)
		require.NoError(t, err)
		assert.Equal(t, StatusClosed, today.Status)
		assert.Equal(t, f.kids[1].ID, today.SolvedBy)
	}

	tomorrow, err := f.svc.Today(ctx, f.family.ID, f.kids[2].ID, f.date.AddDays(1))
	require.NoError(t, err)
	assert.Equal(t, StatusOpen, tomorrow.Status)
}

func TestConcurrentCorrectAnswersCreditOnce(t *testing.T) {
	f := newServiceFixture(t, "Ann", "Ben", "Cy", "Dee")
	q := f.question(t, f.kids[0])

	var wg sync.WaitGroup
	results := make(chan error, len(f.kids))
	for _, kid := range f.kids {
		wg.Add(1)
		go func(kid *model.FamilyMember) {
			defer wg.Done()
			_, err := f.answer(kid, q, q.CorrectIndex)
			results <- err
		}(kid)
	}
	wg.Wait()
	close(results)

	var wins, solved int
	for err := range results {
		switch {
		case err == nil:
			wins++
		case apperr.CodeOf(err) == apperr.CodeAlreadySolved:
			solved++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, len(f.kids)-1, solved)

	entries, err := f.ledger.List(context.Background(), f.family.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestConfiguredPoints(t *testing.T) {
	f := newServiceFixture(t, "Ann")
	f.svc.points = 8
	q := f.question(t, f.kids[0])

	res, err := f.answer(f.kids[0], q, q.CorrectIndex)
	require.NoError(t, err)
	assert.Equal(t, 8, res.PointsAwarded)
}
