// Package server wires stores, services and handlers into the HTTP router.
package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/familytasks/internal/config"
	"github.com/dukerupert/familytasks/internal/handler"
	"github.com/dukerupert/familytasks/internal/leaderboard"
	"github.com/dukerupert/familytasks/internal/middleware"
	"github.com/dukerupert/familytasks/internal/quizapi"
	"github.com/dukerupert/familytasks/internal/store"
	"github.com/dukerupert/familytasks/internal/task"
	"github.com/dukerupert/familytasks/internal/trivia"
	ws "github.com/dukerupert/familytasks/internal/websocket"
)

const (
	loginLimit  = 10
	loginWindow = time.Minute
)

type Server struct {
	db           *sql.DB
	hub          *ws.Hub
	familyH      *handler.FamilyHandler
	taskDefH     *handler.TaskDefinitionHandler
	taskH        *handler.TaskHandler
	triviaH      *handler.TriviaHandler
	leaderboardH *handler.LeaderboardHandler
	sessionStore *store.SessionStore
	rateLimiter  *middleware.RateLimiter
	logger       *slog.Logger
}

func New(db *sql.DB, cfg config.Config, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))
	loc := cfg.Location()
	clock := handler.NewClock(loc)

	familyStore := store.NewFamilyStore(db)
	sessionStore := store.NewSessionStore(db)
	taskStore := store.NewTaskStore(db)
	ledgerStore := store.NewLedgerStore(db)
	triviaStore := store.NewTriviaStore(db)

	ctrl := task.NewController(db, loc, logger.With("component", "task"))

	quiz := quizapi.NewClient(quizapi.Config{APIKey: cfg.QuizAPIKey, BaseURL: cfg.QuizAPIURL})
	signer := trivia.NewSigner(cfg.TriviaSecret)
	triviaLogger := logger.With("component", "trivia")
	gen := trivia.NewGenerator(familyStore, ctrl, triviaStore, quiz, signer, triviaLogger)
	triviaSvc := trivia.NewService(db, gen, signer, cfg.TriviaPoints, triviaLogger)

	agg := leaderboard.NewAggregator(familyStore, ledgerStore, loc, logger.With("component", "leaderboard"))

	return &Server{
		db:           db,
		hub:          hub,
		familyH:      handler.NewFamilyHandler(familyStore, sessionStore, cfg.SessionTTL, cfg.Environment == "production", hub, logger.With("component", "family")),
		taskDefH:     handler.NewTaskDefinitionHandler(taskStore, familyStore, hub, logger.With("component", "task_definition")),
		taskH:        handler.NewTaskHandler(ctrl, clock, hub, logger.With("component", "task")),
		triviaH:      handler.NewTriviaHandler(triviaSvc, clock, hub, triviaLogger),
		leaderboardH: handler.NewLeaderboardHandler(agg, ledgerStore, clock, logger.With("component", "leaderboard")),
		sessionStore: sessionStore,
		rateLimiter:  middleware.NewRateLimiter(loginLimit, loginWindow),
		logger:       logger,
	}
}

// SessionStore returns the session store for cleanup tasks.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessionStore
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	rateLimited := middleware.RateLimit(s.rateLimiter, middleware.RealIP)
	outerMux.Handle("POST /family/register", rateLimited(http.HandlerFunc(s.familyH.Register)))
	outerMux.Handle("POST /family/login", rateLimited(http.HandlerFunc(s.familyH.Login)))
	outerMux.HandleFunc("GET /health", s.healthHandler)

	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)
	outerMux.Handle("/", middleware.RequireFamily(s.sessionStore)(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	w.Header().Set("Content-Type", "application/json")
	if err := s.db.PingContext(ctx); err != nil {
		s.logger.Error("health check", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"status": "unavailable"})
		return
	}
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /family/logout", s.familyH.Logout)
	mux.HandleFunc("POST /family/members", s.familyH.AddMember)
	mux.HandleFunc("GET /family/members", s.familyH.ListMembers)

	mux.HandleFunc("POST /task-definitions", s.taskDefH.Create)
	mux.HandleFunc("GET /task-definitions", s.taskDefH.List)
	mux.HandleFunc("POST /task-definitions/{id}/deactivate", s.taskDefH.Deactivate)
	mux.HandleFunc("POST /task-assignments", s.taskDefH.Assign)

	mux.HandleFunc("GET /tasks", s.taskH.List)
	mux.HandleFunc("POST /tasks/mark-done", s.taskH.MarkDone)
	mux.HandleFunc("POST /tasks/approve", s.taskH.Approve)
	mux.HandleFunc("POST /tasks/reject", s.taskH.Reject)
	mux.HandleFunc("GET /tasks/review", s.taskH.Review)
	mux.HandleFunc("GET /score/daily", s.taskH.DailyScore)

	mux.HandleFunc("GET /trivia/today", s.triviaH.Today)
	mux.HandleFunc("POST /trivia/answer", s.triviaH.Answer)

	mux.HandleFunc("GET /leaderboard", s.leaderboardH.Weekly)
	mux.HandleFunc("GET /ledger", s.leaderboardH.History)

	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.logger.With("component", "websocket")))
}
