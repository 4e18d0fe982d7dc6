package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/familytasks/internal/apperr"
	"github.com/dukerupert/familytasks/internal/database"
	"github.com/dukerupert/familytasks/internal/middleware"
	"github.com/dukerupert/familytasks/internal/model"
	"github.com/dukerupert/familytasks/internal/store"
	ws "github.com/dukerupert/familytasks/internal/websocket"
)

const minPasswordLength = 8

type FamilyHandler struct {
	families   *store.FamilyStore
	sessions   *store.SessionStore
	sessionTTL time.Duration
	secure     bool
	notifier   ws.Notifier
	logger     *slog.Logger
}

func NewFamilyHandler(families *store.FamilyStore, sessions *store.SessionStore, sessionTTL time.Duration, secure bool, notifier ws.Notifier, logger *slog.Logger) *FamilyHandler {
	return &FamilyHandler{
		families:   families,
		sessions:   sessions,
		sessionTTL: sessionTTL,
		secure:     secure,
		notifier:   notifier,
		logger:     logger,
	}
}

type credentials struct {
	FamilyName string `json:"family_name"`
	Password   string `json:"password"`
}

func (c *credentials) validate() error {
	c.FamilyName = strings.TrimSpace(c.FamilyName)
	if c.FamilyName == "" {
		return apperr.Validation("family_name is required")
	}
	if c.Password == "" {
		return apperr.Validation("password is required")
	}
	return nil
}

func (h *FamilyHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, err)
		return
	}
	if len(req.Password) < minPasswordLength {
		writeError(w, apperr.Validationf("password must be at least %d characters", minPasswordLength))
		return
	}

	fam, err := h.families.Create(r.Context(), req.FamilyName, req.Password)
	if err != nil {
		if database.UniqueViolationOn(err, "families.name") {
			writeError(w, apperr.Conflict("FAMILY_EXISTS", "a family with that name already exists"))
			return
		}
		h.logger.Error("register family", "error", err)
		writeError(w, apperr.Storage("register family", err))
		return
	}

	h.logger.Info("family registered", "family_id", fam.ID)
	writeJSON(w, http.StatusCreated, map[string]any{"family_key": fam.ID, "name": fam.Name})
}

func (h *FamilyHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, err)
		return
	}

	fam, err := h.families.Authenticate(r.Context(), req.FamilyName, req.Password)
	if errors.Is(err, store.ErrInvalidCredentials) {
		writeMessage(w, http.StatusUnauthorized, codeUnauthorized, "invalid family name or password")
		return
	}
	if err != nil {
		h.logger.Error("authenticate family", "error", err)
		writeError(w, apperr.Storage("login", err))
		return
	}

	sess, err := h.sessions.Create(r.Context(), fam.ID, h.sessionTTL)
	if err != nil {
		h.logger.Error("create session", "family_id", fam.ID, "error", err)
		writeError(w, apperr.Storage("login", err))
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    sess.Token,
		Path:     "/",
		MaxAge:   int(h.sessionTTL / time.Second),
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]any{"family_key": fam.ID, "token": sess.Token})
}

func (h *FamilyHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if token := middleware.SessionToken(r); token != "" {
		if err := h.sessions.Delete(r.Context(), token); err != nil {
			h.logger.Warn("delete session", "error", err)
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:   middleware.SessionCookieName,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
	w.WriteHeader(http.StatusNoContent)
}

type memberRequest struct {
	Family    int64   `json:"family"`
	Role      string  `json:"role"`
	Name      string  `json:"name"`
	Nickname  string  `json:"nickname"`
	BirthDate *string `json:"birth_date"`
}

func (h *FamilyHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	var req memberRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if !allowFamily(w, r, req.Family) {
		return
	}

	role := model.Role(strings.ToLower(strings.TrimSpace(req.Role)))
	if !role.Valid() {
		writeError(w, apperr.Validation("role must be child or parent"))
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		writeError(w, apperr.Validation("name is required"))
		return
	}
	birth, err := optionalDate(req.BirthDate)
	if err != nil {
		writeError(w, err)
		return
	}

	member, err := h.families.AddMember(r.Context(), model.FamilyMember{
		FamilyID:  req.Family,
		Role:      role,
		Name:      name,
		Nickname:  strings.TrimSpace(req.Nickname),
		BirthDate: birth,
	})
	if err != nil {
		h.logger.Error("add member", "family_id", req.Family, "error", err)
		writeError(w, apperr.Storage("add member", err))
		return
	}

	h.notifier.Broadcast(req.Family, ws.NewMessage(ws.EntityMember, "created", member.ID, nil))
	writeJSON(w, http.StatusCreated, member)
}

func (h *FamilyHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	familyID, err := queryID(r, "family")
	if err != nil {
		writeError(w, err)
		return
	}
	if !allowFamily(w, r, familyID) {
		return
	}

	members, err := h.families.ListMembers(r.Context(), familyID)
	if err != nil {
		h.logger.Error("list members", "family_id", familyID, "error", err)
		writeError(w, apperr.Storage("list members", err))
		return
	}
	if members == nil {
		members = []model.FamilyMember{}
	}
	writeJSON(w, http.StatusOK, members)
}
