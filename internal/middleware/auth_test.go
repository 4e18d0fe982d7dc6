package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dukerupert/familytasks/internal/auth"
	"github.com/dukerupert/familytasks/internal/database"
	"github.com/dukerupert/familytasks/internal/store"
)

func setupSessions(t *testing.T) (*store.SessionStore, int64) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	fam, err := store.NewFamilyStore(db).Create(context.Background(), "Smith", "secret")
	if err != nil {
		t.Fatalf("create family: %v", err)
	}
	return store.NewSessionStore(db), fam.ID
}

func unreachable(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	})
}

func TestRequireFamilyNoToken(t *testing.T) {
	ss, _ := setupSessions(t)

	rec := httptest.NewRecorder()
	RequireFamily(ss)(unreachable(t)).ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["code"] != "UNAUTHORIZED" {
		t.Errorf("code = %q, want UNAUTHORIZED", body["code"])
	}
}

func TestRequireFamilyInvalidToken(t *testing.T) {
	ss, _ := setupSessions(t)

	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "invalid-token"})
	rec := httptest.NewRecorder()
	RequireFamily(ss)(unreachable(t)).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestRequireFamilyCookieAndBearer(t *testing.T) {
	ss, familyID := setupSessions(t)
	sess, err := ss.Create(context.Background(), familyID, time.Hour)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	withCookie := httptest.NewRequest("GET", "/", nil)
	withCookie.AddCookie(&http.Cookie{Name: SessionCookieName, Value: sess.Token})
	withBearer := httptest.NewRequest("GET", "/", nil)
	withBearer.Header.Set("Authorization", "Bearer "+sess.Token)

	for name, req := range map[string]*http.Request{"cookie": withCookie, "bearer": withBearer} {
		var got auth.Session
		h := RequireFamily(ss)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s, ok := auth.FromContext(r.Context())
			if !ok {
				t.Fatalf("%s: expected Session in request context", name)
			}
			got = s
			w.WriteHeader(http.StatusNoContent)
		}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if rec.Code != http.StatusNoContent {
			t.Errorf("%s: status = %d, want %d", name, rec.Code, http.StatusNoContent)
		}
		if got.FamilyID != familyID {
			t.Errorf("%s: FamilyID = %d, want %d", name, got.FamilyID, familyID)
		}
		if got.SessionID != sess.ID {
			t.Errorf("%s: SessionID = %d, want %d", name, got.SessionID, sess.ID)
		}
	}
}

func TestSessionTokenPrefersCookie(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "from-cookie"})
	req.Header.Set("Authorization", "Bearer from-header")
	if got := SessionToken(req); got != "from-cookie" {
		t.Errorf("SessionToken = %q, want from-cookie", got)
	}

	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Basic abc")
	if got := SessionToken(req); got != "" {
		t.Errorf("SessionToken = %q, want empty for non-bearer auth", got)
	}
}
