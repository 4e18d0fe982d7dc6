package trivia

import (
	_ "embed"
	"encoding/json"
	"fmt"
)

type Source string

const (
	SourceBirthdayToday Source = "birthday_today"
	SourceBirthdayNext  Source = "birthday_next"
	SourceTaskYesterday Source = "task_yesterday"
	SourceExternal      Source = "external"
	SourceStatic        Source = "static"
)

// Question is one day's family trivia question. CorrectIndex never leaves
// the server.
type Question struct {
	Source       Source   `json:"source"`
	Text         string   `json:"text"`
	Choices      []string `json:"choices"`
	CorrectIndex int      `json:"-"`
	Ref          string   `json:"reference"`
}

type bankItem struct {
	Text         string   `json:"text"`
	Choices      []string `json:"choices"`
	CorrectIndex int      `json:"correct_index"`
}

//go:embed bank.json
var bankJSON []byte

var staticBank = mustLoadBank(bankJSON)

func mustLoadBank(b []byte) []bankItem {
	var items []bankItem
	if err := json.Unmarshal(b, &items); err != nil {
		panic(fmt.Sprintf("trivia: decode static bank: %v", err))
	}
	for i, it := range items {
		if len(it.Choices) < 2 || it.CorrectIndex < 0 || it.CorrectIndex >= len(it.Choices) {
			panic(fmt.Sprintf("trivia: static bank item %d is malformed", i))
		}
	}
	if len(items) == 0 {
		panic("trivia: static bank is empty")
	}
	return items
}
