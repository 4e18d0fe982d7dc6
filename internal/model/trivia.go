package model

import "time"

type TriviaDailyRecord struct {
	ID            int64     `json:"id"`
	FamilyID      int64     `json:"family_id"`
	ChildID       int64     `json:"child_id"`
	TriviaDate    Date      `json:"trivia_date"`
	Correct       bool      `json:"correct"`
	PointsAwarded int       `json:"points_awarded"`
	QuestionRef   string    `json:"question_ref"`
	CreatedAt     time.Time `json:"created_at"`
}

// ExternalQuestion is a fetched third-party question stored for one family
// and date so later regenerations reproduce it.
type ExternalQuestion struct {
	FamilyID     int64    `json:"family_id"`
	TriviaDate   Date     `json:"trivia_date"`
	SourceID     string   `json:"source_id"`
	Text         string   `json:"text"`
	Choices      []string `json:"choices"`
	CorrectIndex int      `json:"correct_index"`
}
