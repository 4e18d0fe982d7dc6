package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dukerupert/familytasks/internal/model"
)

type TriviaStore struct {
	db DBTX
}

func NewTriviaStore(db *sql.DB) *TriviaStore {
	return &TriviaStore{db: db}
}

func (s *TriviaStore) WithTx(tx *sql.Tx) *TriviaStore {
	return &TriviaStore{db: tx}
}

func scanRecord(scanner interface{ Scan(...any) error }) (*model.TriviaDailyRecord, error) {
	var r model.TriviaDailyRecord
	var createdAt string
	err := scanner.Scan(&r.ID, &r.FamilyID, &r.ChildID, &r.TriviaDate, &r.Correct, &r.PointsAwarded, &r.QuestionRef, &createdAt)
	if err != nil {
		return nil, err
	}
	if r.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &r, nil
}

const recordCols = `id, family_id, child_id, trivia_date, correct, points_awarded, question_ref, created_at`

// GetRecord returns the child's attempt on date, or nil.
func (s *TriviaStore) GetRecord(ctx context.Context, childID int64, date model.Date) (*model.TriviaDailyRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+recordCols+` FROM trivia_daily WHERE child_id = ? AND trivia_date = ?`, childID, date)
	r, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get trivia record: %w", err)
	}
	return r, nil
}

// Winner returns the family's correct record on date, or nil.
func (s *TriviaStore) Winner(ctx context.Context, familyID int64, date model.Date) (*model.TriviaDailyRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+recordCols+` FROM trivia_daily WHERE family_id = ? AND trivia_date = ? AND correct = 1`,
		familyID, date)
	r, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get trivia winner: %w", err)
	}
	return r, nil
}

// InsertRecord fails with a UNIQUE violation on trivia_daily.child_id when
// the child already answered, or on trivia_daily.family_id when a correct
// record already exists for the family and date.
func (s *TriviaStore) InsertRecord(ctx context.Context, r model.TriviaDailyRecord) (*model.TriviaDailyRecord, error) {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	r.CreatedAt = r.CreatedAt.UTC().Truncate(time.Millisecond)
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO trivia_daily (family_id, child_id, trivia_date, correct, points_awarded, question_ref, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.FamilyID, r.ChildID, r.TriviaDate, r.Correct, r.PointsAwarded, r.QuestionRef, formatTime(r.CreatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("insert trivia record: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	r.ID = id
	return &r, nil
}

func (s *TriviaStore) GetExternal(ctx context.Context, familyID int64, date model.Date) (*model.ExternalQuestion, error) {
	var q model.ExternalQuestion
	var choices string
	err := s.db.QueryRowContext(ctx,
		`SELECT family_id, trivia_date, source_id, text, choices, correct_index
		 FROM trivia_external_questions WHERE family_id = ? AND trivia_date = ?`,
		familyID, date,
	).Scan(&q.FamilyID, &q.TriviaDate, &q.SourceID, &q.Text, &choices, &q.CorrectIndex)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get external question: %w", err)
	}
	if err := json.Unmarshal([]byte(choices), &q.Choices); err != nil {
		return nil, fmt.Errorf("decode external choices: %w", err)
	}
	return &q, nil
}

// PutExternal stores q unless a snapshot already exists for its family and
// date, and returns whichever snapshot is stored.
func (s *TriviaStore) PutExternal(ctx context.Context, q model.ExternalQuestion) (*model.ExternalQuestion, error) {
	choices, err := json.Marshal(q.Choices)
	if err != nil {
		return nil, fmt.Errorf("encode external choices: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO trivia_external_questions (family_id, trivia_date, source_id, text, choices, correct_index)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (family_id, trivia_date) DO NOTHING`,
		q.FamilyID, q.TriviaDate, q.SourceID, q.Text, string(choices), q.CorrectIndex,
	)
	if err != nil {
		return nil, fmt.Errorf("insert external question: %w", err)
	}
	return s.GetExternal(ctx, q.FamilyID, q.TriviaDate)
}
