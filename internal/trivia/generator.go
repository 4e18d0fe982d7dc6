package trivia

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/dukerupert/familytasks/internal/model"
	"github.com/dukerupert/familytasks/internal/quizapi"
)

const maxDistractors = 3

// MemberSource lists a family's members ordered by id.
type MemberSource interface {
	ListMembers(ctx context.Context, familyID int64) ([]model.FamilyMember, error)
}

// TaskSource reports task titles for the task-yesterday tier.
type TaskSource interface {
	DueTitles(ctx context.Context, familyID int64, date model.Date) ([]string, error)
	ActiveTitles(ctx context.Context, familyID int64) ([]string, error)
}

// SnapshotStore keeps fetched external questions per family and date.
type SnapshotStore interface {
	GetExternal(ctx context.Context, familyID int64, date model.Date) (*model.ExternalQuestion, error)
	PutExternal(ctx context.Context, q model.ExternalQuestion) (*model.ExternalQuestion, error)
}

// Fetcher supplies external questions.
type Fetcher interface {
	Configured() bool
	Fetch(ctx context.Context) (*quizapi.Question, error)
}

// Generator builds the family's question for a date. With unchanged family
// data, calling Generate again returns the same question and reference.
type Generator struct {
	members   MemberSource
	tasks     TaskSource
	snapshots SnapshotStore
	fetcher   Fetcher
	signer    *Signer
	logger    *slog.Logger
}

func NewGenerator(members MemberSource, tasks TaskSource, snapshots SnapshotStore, fetcher Fetcher, signer *Signer, logger *slog.Logger) *Generator {
	return &Generator{
		members:   members,
		tasks:     tasks,
		snapshots: snapshots,
		fetcher:   fetcher,
		signer:    signer,
		logger:    logger,
	}
}

type tier func(ctx context.Context, familyID int64, date model.Date) (*Question, error)

// Generate tries each tier in order and returns the first question built.
func (g *Generator) Generate(ctx context.Context, familyID int64, date model.Date) (*Question, error) {
	tiers := []tier{g.birthdayToday, g.nextBirthday, g.taskYesterday, g.external}
	for _, t := range tiers {
		q, err := t(ctx, familyID, date)
		if err != nil {
			return nil, err
		}
		if q != nil {
			return g.sign(familyID, date, q), nil
		}
	}
	return g.sign(familyID, date, g.static(familyID, date)), nil
}

func (g *Generator) sign(familyID int64, date model.Date, q *Question) *Question {
	q.Ref = g.signer.Ref(familyID, date, *q)
	return q
}

// birthdayOn returns the member's birthday in year. Feb 29 falls on Mar 1
// in non-leap years.
func birthdayOn(birth model.Date, year int) model.Date {
	if birth.Month == time.February && birth.Day == 29 && !isLeap(year) {
		return model.NewDate(year, time.March, 1)
	}
	return model.NewDate(year, birth.Month, birth.Day)
}

func isLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// otherNames returns the distinct display names of members other than the
// answer, sorted.
func otherNames(members []model.FamilyMember, answer model.FamilyMember) []string {
	seen := map[string]bool{answer.DisplayName(): true}
	var names []string
	for _, m := range members {
		name := m.DisplayName()
		if m.ID == answer.ID || name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (g *Generator) birthdayToday(ctx context.Context, familyID int64, date model.Date) (*Question, error) {
	members, err := g.members.ListMembers(ctx, familyID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	for _, m := range members {
		if m.BirthDate == nil || birthdayOn(*m.BirthDate, date.Year) != date {
			continue
		}
		return memberQuestion(familyID, date, SourceBirthdayToday, "Whose birthday is today?", members, m), nil
	}
	return nil, nil
}

func (g *Generator) nextBirthday(ctx context.Context, familyID int64, date model.Date) (*Question, error) {
	members, err := g.members.ListMembers(ctx, familyID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}

	var target *model.FamilyMember
	var targetDay model.Date
	for i := range members {
		m := &members[i]
		if m.BirthDate == nil {
			continue
		}
		next := birthdayOn(*m.BirthDate, date.Year)
		if next.Before(date) {
			next = birthdayOn(*m.BirthDate, date.Year+1)
		}
		// members arrive ordered by id, so strict Before keeps the lowest id on ties
		if target == nil || next.Before(targetDay) {
			target, targetDay = m, next
		}
	}
	if target == nil {
		return nil, nil
	}
	text := fmt.Sprintf("Who has the next birthday on %02d/%02d?", targetDay.Day, int(targetDay.Month))
	return memberQuestion(familyID, date, SourceBirthdayNext, text, members, *target), nil
}

// memberQuestion asks for answer's name among up to three other members.
// It returns nil when the family has no one else to choose from.
func memberQuestion(familyID int64, date model.Date, source Source, text string, members []model.FamilyMember, answer model.FamilyMember) *Question {
	pool := otherNames(members, answer)
	if len(pool) == 0 {
		return nil
	}
	r := seededRand(familyID, date, source)
	choices, idx := withAnswer(r, answer.DisplayName(), sample(r, pool, maxDistractors))
	return &Question{Source: source, Text: text, Choices: choices, CorrectIndex: idx}
}

func (g *Generator) taskYesterday(ctx context.Context, familyID int64, date model.Date) (*Question, error) {
	due, err := g.tasks.DueTitles(ctx, familyID, date.AddDays(-1))
	if err != nil {
		return nil, fmt.Errorf("due titles: %w", err)
	}
	if len(due) == 0 {
		return nil, nil
	}
	active, err := g.tasks.ActiveTitles(ctx, familyID)
	if err != nil {
		return nil, fmt.Errorf("active titles: %w", err)
	}

	wasDue := make(map[string]bool, len(due))
	for _, t := range due {
		wasDue[t] = true
	}
	var notDue []string
	for _, t := range active {
		if !wasDue[t] {
			notDue = append(notDue, t)
		}
	}
	if len(notDue) == 0 {
		return nil, nil
	}

	r := seededRand(familyID, date, SourceTaskYesterday)
	answer := notDue[r.IntN(len(notDue))]
	choices, idx := withAnswer(r, answer, sample(r, due, maxDistractors))
	return &Question{
		Source:       SourceTaskYesterday,
		Text:         "Which task was NOT on yesterday's list?",
		Choices:      choices,
		CorrectIndex: idx,
	}, nil
}

// staticSnapshotID marks a stored snapshot that holds the static fallback
// because the fetch failed.
const staticSnapshotID = "static"

// external serves the stored snapshot for the day. Without one, and with a
// fetcher configured, it fetches a question and stores it; when the fetch
// fails it stores the static question instead, so later calls for the same
// family and date replay whatever was served first.
func (g *Generator) external(ctx context.Context, familyID int64, date model.Date) (*Question, error) {
	if g.snapshots == nil {
		return nil, nil
	}
	snap, err := g.snapshots.GetExternal(ctx, familyID, date)
	if err != nil {
		return nil, fmt.Errorf("get external question: %w", err)
	}

	if snap == nil {
		if g.fetcher == nil || !g.fetcher.Configured() {
			return nil, nil
		}
		fresh := model.ExternalQuestion{FamilyID: familyID, TriviaDate: date}
		fetched, err := g.fetcher.Fetch(ctx)
		if err != nil {
			g.logger.Warn("external trivia fetch failed", "family_id", familyID, "date", date.String(), "error", err)
			q := g.static(familyID, date)
			fresh.SourceID = staticSnapshotID
			fresh.Text, fresh.Choices, fresh.CorrectIndex = q.Text, q.Choices, q.CorrectIndex
		} else {
			fresh.SourceID = fetched.ID
			fresh.Text, fresh.Choices, fresh.CorrectIndex = fetched.Text, fetched.Choices, fetched.CorrectIndex
		}
		snap, err = g.snapshots.PutExternal(ctx, fresh)
		if err != nil {
			return nil, fmt.Errorf("store external question: %w", err)
		}
	}

	source := SourceExternal
	if snap.SourceID == staticSnapshotID {
		source = SourceStatic
	}
	return &Question{
		Source:       source,
		Text:         snap.Text,
		Choices:      append([]string(nil), snap.Choices...),
		CorrectIndex: snap.CorrectIndex,
	}, nil
}

func (g *Generator) static(familyID int64, date model.Date) *Question {
	r := seededRand(familyID, date, SourceStatic)
	item := staticBank[r.IntN(len(staticBank))]
	return &Question{
		Source:       SourceStatic,
		Text:         item.Text,
		Choices:      append([]string(nil), item.Choices...),
		CorrectIndex: item.CorrectIndex,
	}
}
