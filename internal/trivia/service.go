package trivia

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/dukerupert/familytasks/internal/apperr"
	"github.com/dukerupert/familytasks/internal/database"
	"github.com/dukerupert/familytasks/internal/model"
	"github.com/dukerupert/familytasks/internal/store"
)

const DefaultPoints = 5

type RoundStatus string

const (
	StatusOpen     RoundStatus = "open"
	StatusAnswered RoundStatus = "answered"
	StatusClosed   RoundStatus = "closed"
)

// Today is a child's view of the day's round.
type Today struct {
	Status   RoundStatus   `json:"status"`
	Question *Question     `json:"question,omitempty"`
	Result   *AnswerResult `json:"result,omitempty"`
	SolvedBy int64         `json:"solved_by,omitempty"`
}

type AnswerRequest struct {
	FamilyID int64
	ChildID  int64
	Date     model.Date
	Choice   int
	Ref      string
}

type AnswerResult struct {
	Correct       bool `json:"correct"`
	PointsAwarded int  `json:"points_awarded"`
}

// Service verifies answers. The first correct answer of a family on a date
// wins and closes the round for everyone.
type Service struct {
	db        *sql.DB
	generator *Generator
	signer    *Signer
	families  *store.FamilyStore
	trivia    *store.TriviaStore
	ledger    *store.LedgerStore
	points    int
	now       func() time.Time
	logger    *slog.Logger
}

func NewService(db *sql.DB, generator *Generator, signer *Signer, points int, logger *slog.Logger) *Service {
	if points <= 0 {
		points = DefaultPoints
	}
	return &Service{
		db:        db,
		generator: generator,
		signer:    signer,
		families:  store.NewFamilyStore(db),
		trivia:    store.NewTriviaStore(db),
		ledger:    store.NewLedgerStore(db),
		points:    points,
		now:       time.Now,
		logger:    logger,
	}
}

func (s *Service) requireChild(ctx context.Context, familyID, childID int64) error {
	child, err := s.families.GetMember(ctx, familyID, childID)
	if err != nil {
		return err
	}
	if child == nil || child.Role != model.RoleChild {
		return apperr.NotFound("child")
	}
	return nil
}

// Today returns the round's status for the child and, while it is open to
// them, the question.
func (s *Service) Today(ctx context.Context, familyID, childID int64, date model.Date) (*Today, error) {
	if familyID <= 0 || childID <= 0 {
		return nil, apperr.Validation("family and child are required")
	}
	if date.IsZero() {
		return nil, apperr.Validation("date is required")
	}
	if err := s.requireChild(ctx, familyID, childID); err != nil {
		return nil, s.fail("trivia today", err)
	}

	rec, err := s.trivia.GetRecord(ctx, childID, date)
	if err != nil {
		return nil, s.fail("trivia today", err)
	}
	var result *AnswerResult
	if rec != nil {
		result = &AnswerResult{Correct: rec.Correct, PointsAwarded: rec.PointsAwarded}
	}

	winner, err := s.trivia.Winner(ctx, familyID, date)
	if err != nil {
		return nil, s.fail("trivia today", err)
	}
	if winner != nil {
		return &Today{Status: StatusClosed, Result: result, SolvedBy: winner.ChildID}, nil
	}
	if rec != nil {
		return &Today{Status: StatusAnswered, Result: result}, nil
	}

	q, err := s.generator.Generate(ctx, familyID, date)
	if err != nil {
		return nil, s.fail("trivia today", err)
	}
	return &Today{Status: StatusOpen, Question: q}, nil
}

// SubmitAnswer checks, in order: the round is still open, the child has not
// answered, the reference matches today's question, and then the choice.
func (s *Service) SubmitAnswer(ctx context.Context, req AnswerRequest) (*AnswerResult, error) {
	if req.FamilyID <= 0 || req.ChildID <= 0 {
		return nil, apperr.Validation("family and child are required")
	}
	if req.Date.IsZero() {
		return nil, apperr.Validation("date is required")
	}
	if req.Ref == "" {
		return nil, apperr.Validation("reference is required")
	}
	if err := s.requireChild(ctx, req.FamilyID, req.ChildID); err != nil {
		return nil, s.fail("submit answer", err)
	}

	if err := s.checkOpen(ctx, s.trivia, req); err != nil {
		return nil, s.fail("submit answer", err)
	}

	q, err := s.generator.Generate(ctx, req.FamilyID, req.Date)
	if err != nil {
		return nil, s.fail("submit answer", err)
	}
	if !s.signer.Verify(req.FamilyID, req.Date, *q, req.Ref) {
		return nil, apperr.ErrStaleQuestion
	}
	if req.Choice < 0 || req.Choice >= len(q.Choices) {
		return nil, apperr.Validationf("choice must be between 0 and %d", len(q.Choices)-1)
	}

	res := &AnswerResult{Correct: req.Choice == q.CorrectIndex}
	if res.Correct {
		res.PointsAwarded = s.points
	}

	err = database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		trivia := s.trivia.WithTx(tx)
		if err := s.checkOpen(ctx, trivia, req); err != nil {
			return err
		}
		now := s.now()
		if _, err := trivia.InsertRecord(ctx, model.TriviaDailyRecord{
			FamilyID:      req.FamilyID,
			ChildID:       req.ChildID,
			TriviaDate:    req.Date,
			Correct:       res.Correct,
			PointsAwarded: res.PointsAwarded,
			QuestionRef:   req.Ref,
			CreatedAt:     now,
		}); err != nil {
			return mapUnique(err)
		}
		if !res.Correct {
			return nil
		}
		_, err := s.ledger.WithTx(tx).Append(ctx, model.PointsLedgerEntry{
			FamilyID:  req.FamilyID,
			ChildID:   req.ChildID,
			Points:    res.PointsAwarded,
			Source:    model.SourceTrivia,
			Reference: model.TriviaReference(req.Date),
			CreatedAt: now,
		})
		return mapUnique(err)
	})
	if err != nil {
		return nil, s.fail("submit answer", err)
	}

	s.logger.Info("trivia answered", "family_id", req.FamilyID, "child_id", req.ChildID,
		"date", req.Date.String(), "source", q.Source, "correct", res.Correct, "points", res.PointsAwarded)
	return res, nil
}

func (s *Service) checkOpen(ctx context.Context, trivia *store.TriviaStore, req AnswerRequest) error {
	winner, err := trivia.Winner(ctx, req.FamilyID, req.Date)
	if err != nil {
		return err
	}
	if winner != nil {
		return apperr.ErrAlreadySolved
	}
	rec, err := trivia.GetRecord(ctx, req.ChildID, req.Date)
	if err != nil {
		return err
	}
	if rec != nil {
		return apperr.ErrAlreadyAttempted
	}
	return nil
}

// mapUnique turns the constraints guarding a round into their conflicts.
func mapUnique(err error) error {
	switch {
	case err == nil:
		return nil
	case database.UniqueViolationOn(err, "trivia_daily.child_id"):
		return apperr.ErrAlreadyAttempted
	case database.UniqueViolationOn(err, "trivia_daily.family_id"),
		database.UniqueViolationOn(err, "points_ledger."):
		return apperr.ErrAlreadySolved
	default:
		return err
	}
}

func (s *Service) fail(op string, err error) error {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	s.logger.Error("trivia operation failed", "op", op, "error", err)
	return apperr.Storage(op, err)
}
