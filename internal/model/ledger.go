package model

import (
	"fmt"
	"time"
)

type PointSource string

const (
	SourceTask   PointSource = "task"
	SourceTrivia PointSource = "trivia"
)

// PointsLedgerEntry is an immutable record of points earned.
type PointsLedgerEntry struct {
	ID        int64       `json:"id"`
	FamilyID  int64       `json:"family_id"`
	ChildID   int64       `json:"child_id"`
	Points    int         `json:"points"`
	Source    PointSource `json:"source"`
	Reference string      `json:"reference"`
	CreatedAt time.Time   `json:"created_at"`
}

func TaskReference(instanceID int64) string {
	return fmt.Sprintf("task:%d", instanceID)
}

func TriviaReference(date Date) string {
	return "trivia:" + date.String()
}

type LeaderboardEntry struct {
	Rank    int    `json:"rank"`
	ChildID int64  `json:"id"`
	Name    string `json:"name"`
	Points  int    `json:"points"`
}

type Leaderboard struct {
	WeekStart Date               `json:"week_start"`
	Items     []LeaderboardEntry `json:"items"`
}
