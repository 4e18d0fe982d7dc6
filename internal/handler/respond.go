package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dukerupert/familytasks/internal/apperr"
	"github.com/dukerupert/familytasks/internal/auth"
	"github.com/dukerupert/familytasks/internal/model"
)

const (
	codeForbidden    = "FORBIDDEN"
	codeUnauthorized = "UNAUTHORIZED"
	codeBadRequest   = "BAD_REQUEST"
	codeInternal     = "INTERNAL"
)

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: message, Code: code})
}

// writeError maps an apperr kind to its HTTP status. Anything else is a 500.
func writeError(w http.ResponseWriter, err error) {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		writeMessage(w, http.StatusInternalServerError, codeInternal, "internal error")
		return
	}
	status := http.StatusInternalServerError
	switch ae.Kind {
	case apperr.KindValidation:
		status = http.StatusBadRequest
	case apperr.KindNotFound:
		status = http.StatusNotFound
	case apperr.KindConflict:
		status = http.StatusConflict
	case apperr.KindStorage:
		status = http.StatusServiceUnavailable
	}
	message := ae.Message
	if ae.Kind == apperr.KindStorage {
		message = "storage unavailable"
	}
	writeMessage(w, status, ae.Code, message)
}

// decodeJSON rejects unknown fields and trailing data.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apperr.Validation("invalid JSON body")
	}
	if dec.More() {
		return apperr.Validation("invalid JSON body")
	}
	return nil
}

// allowFamily writes 403 unless the session belongs to familyID.
func allowFamily(w http.ResponseWriter, r *http.Request, familyID int64) bool {
	if familyID <= 0 {
		writeError(w, apperr.Validation("family is required"))
		return false
	}
	if !auth.Allows(r.Context(), familyID) {
		writeMessage(w, http.StatusForbidden, codeForbidden, "session does not belong to this family")
		return false
	}
	return true
}

// queryID parses an optional positive integer query parameter. Missing
// values yield 0.
func queryID(r *http.Request, name string) (int64, error) {
	s := strings.TrimSpace(r.URL.Query().Get(name))
	if s == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validationf("%s must be a positive integer", name)
	}
	return id, nil
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	s := strings.TrimSpace(r.URL.Query().Get(name))
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, apperr.Validationf("%s must be a non-negative integer", name)
	}
	return n, nil
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation("invalid id")
	}
	return id, nil
}

// Clock resolves the date a request refers to when it names none.
type Clock struct {
	loc *time.Location
	now func() time.Time
}

func NewClock(loc *time.Location) Clock {
	if loc == nil {
		loc = time.UTC
	}
	return Clock{loc: loc, now: time.Now}
}

func (c Clock) Today() model.Date {
	return model.DateOf(c.now().In(c.loc))
}

// date returns the parsed value, or today when s is empty.
func (c Clock) date(s string) (model.Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return c.Today(), nil
	}
	d, err := model.ParseDate(s)
	if err != nil {
		return model.Date{}, apperr.Validationf("date must be YYYY-MM-DD, got %q", s)
	}
	return d, nil
}

func optionalDate(s *string) (*model.Date, error) {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil, nil
	}
	d, err := model.ParseDate(strings.TrimSpace(*s))
	if err != nil {
		return nil, apperr.Validationf("date must be YYYY-MM-DD, got %q", *s)
	}
	return &d, nil
}
