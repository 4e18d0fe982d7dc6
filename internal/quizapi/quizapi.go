// Package quizapi fetches general-knowledge questions from quizapi.io.
package quizapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"
)

const (
	DefaultURL = "https://quizapi.io/api/v1/questions"

	// failureBackoff keeps a failing upstream from being hit on every request.
	failureBackoff = 5 * time.Minute
)

// ErrNotConfigured is returned by Fetch when no API key is set.
var ErrNotConfigured = errors.New("quizapi: no api key configured")

// ErrBackoff is returned by Fetch while a recent failure is being honored.
var ErrBackoff = errors.New("quizapi: backing off after a failed fetch")

type Config struct {
	APIKey     string
	BaseURL    string
	Difficulty string
	Tags       string
}

// Question is one multiple-choice question with its answer index.
type Question struct {
	ID           string
	Text         string
	Choices      []string
	CorrectIndex int
}

// Client requests questions from the API.
type Client struct {
	config Config
	client *http.Client

	mu          sync.Mutex
	lastFailure time.Time
	now         func() time.Time
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultURL
	}
	if cfg.Difficulty == "" {
		cfg.Difficulty = "Easy"
	}
	if cfg.Tags == "" {
		cfg.Tags = "general,geography,science"
	}
	return &Client{
		config: cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		now:    time.Now,
	}
}

func (c *Client) Configured() bool {
	return c.config.APIKey != ""
}

// Fetch returns one question from the API.
func (c *Client) Fetch(ctx context.Context) (*Question, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	c.mu.Lock()
	if !c.lastFailure.IsZero() && c.now().Sub(c.lastFailure) < failureBackoff {
		c.mu.Unlock()
		return nil, ErrBackoff
	}
	c.mu.Unlock()

	q, err := c.fetch(ctx)

	c.mu.Lock()
	if err != nil {
		c.lastFailure = c.now()
	} else {
		c.lastFailure = time.Time{}
	}
	c.mu.Unlock()

	return q, err
}

type apiQuestion struct {
	ID             int                `json:"id"`
	Question       string             `json:"question"`
	Answers        map[string]*string `json:"answers"`
	CorrectAnswers map[string]string  `json:"correct_answers"`
}

var answerKeys = []string{"answer_a", "answer_b", "answer_c", "answer_d", "answer_e", "answer_f"}

func (c *Client) fetch(ctx context.Context) (*Question, error) {
	q := url.Values{}
	q.Set("apiKey", c.config.APIKey)
	q.Set("limit", "1")
	q.Set("difficulty", c.config.Difficulty)
	q.Set("tags", c.config.Tags)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build quizapi request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("quizapi request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("quizapi returned status %d", resp.StatusCode)
	}

	var items []apiQuestion
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, fmt.Errorf("decode quizapi response: %w", err)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("quizapi returned no questions")
	}
	return convert(items[0])
}

// convert keeps the non-empty answers in a..f order and locates the first
// one flagged correct.
func convert(item apiQuestion) (*Question, error) {
	out := &Question{ID: strconv.Itoa(item.ID), Text: item.Question, CorrectIndex: -1}
	if out.Text == "" {
		return nil, fmt.Errorf("quizapi question %d has no text", item.ID)
	}
	for _, key := range answerKeys {
		a := item.Answers[key]
		if a == nil || *a == "" {
			continue
		}
		if out.CorrectIndex < 0 && item.CorrectAnswers[key+"_correct"] == "true" {
			out.CorrectIndex = len(out.Choices)
		}
		out.Choices = append(out.Choices, *a)
	}
	if len(out.Choices) < 2 {
		return nil, fmt.Errorf("quizapi question %d has %d answers", item.ID, len(out.Choices))
	}
	if out.CorrectIndex < 0 {
		return nil, fmt.Errorf("quizapi question %d has no correct answer", item.ID)
	}
	return out, nil
}
