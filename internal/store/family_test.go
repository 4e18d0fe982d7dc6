package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dukerupert/familytasks/internal/database"
	"github.com/dukerupert/familytasks/internal/model"
)

func TestFamilyCreateAndAuthenticate(t *testing.T) {
	db := setupTestDB(t)
	fs := NewFamilyStore(db)
	ctx := context.Background()

	f, err := fs.Create(ctx, "Smith", "hunter2")
	if err != nil {
		t.Fatalf("create family: %v", err)
	}
	if f.ID == 0 {
		t.Error("expected non-zero ID")
	}
	if f.Name != "Smith" {
		t.Errorf("name = %q, want %q", f.Name, "Smith")
	}

	got, err := fs.Authenticate(ctx, "Smith", "hunter2")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if got.ID != f.ID {
		t.Errorf("id = %d, want %d", got.ID, f.ID)
	}

	if _, err := fs.Authenticate(ctx, "Smith", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password err = %v, want ErrInvalidCredentials", err)
	}
	if _, err := fs.Authenticate(ctx, "Jones", "hunter2"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown family err = %v, want ErrInvalidCredentials", err)
	}
}

func TestFamilyCreateDuplicateName(t *testing.T) {
	db := setupTestDB(t)
	fs := NewFamilyStore(db)
	ctx := context.Background()

	if _, err := fs.Create(ctx, "Smith", "a"); err != nil {
		t.Fatalf("create family: %v", err)
	}
	_, err := fs.Create(ctx, "Smith", "b")
	if !database.IsUniqueViolation(err) {
		t.Errorf("duplicate err = %v, want unique violation", err)
	}
}

func TestFamilyGetByIDNotFound(t *testing.T) {
	db := setupTestDB(t)
	f, err := NewFamilyStore(db).GetByID(context.Background(), 999)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if f != nil {
		t.Error("expected nil for nonexistent family")
	}
}

func TestFamilyMembers(t *testing.T) {
	db := setupTestDB(t)
	fs := NewFamilyStore(db)
	ctx := context.Background()

	f, _, _ := seedFamily(t, db, "Smith")
	bday := model.NewDate(2015, time.March, 4)
	zoe, err := fs.AddMember(ctx, model.FamilyMember{
		FamilyID: f.ID, Role: model.RoleChild, Name: "Zoe", Nickname: "Z", BirthDate: &bday,
	})
	if err != nil {
		t.Fatalf("add member: %v", err)
	}
	if zoe.Nickname != "Z" {
		t.Errorf("nickname = %q, want %q", zoe.Nickname, "Z")
	}
	if zoe.BirthDate == nil || *zoe.BirthDate != bday {
		t.Errorf("birth date = %v, want %v", zoe.BirthDate, bday)
	}
	if zoe.DisplayName() != "Z" {
		t.Errorf("display name = %q, want %q", zoe.DisplayName(), "Z")
	}

	adam, err := fs.AddMember(ctx, model.FamilyMember{FamilyID: f.ID, Role: model.RoleChild, Name: "Adam"})
	if err != nil {
		t.Fatalf("add member: %v", err)
	}
	if adam.BirthDate != nil {
		t.Errorf("birth date = %v, want nil", adam.BirthDate)
	}
	if adam.DisplayName() != "Adam" {
		t.Errorf("display name = %q, want %q", adam.DisplayName(), "Adam")
	}

	members, err := fs.ListMembers(ctx, f.ID)
	if err != nil {
		t.Fatalf("list members: %v", err)
	}
	if len(members) != 3 {
		t.Fatalf("len = %d, want 3", len(members))
	}

	children, err := fs.ListChildren(ctx, f.ID)
	if err != nil {
		t.Fatalf("list children: %v", err)
	}
	if len(children) != 2 {
		t.Fatalf("len = %d, want 2", len(children))
	}
	if children[0].Name != "Adam" || children[1].Name != "Zoe" {
		t.Errorf("children = %q, %q; want Adam, Zoe", children[0].Name, children[1].Name)
	}
}

func TestFamilyGetMemberScopedToFamily(t *testing.T) {
	db := setupTestDB(t)
	fs := NewFamilyStore(db)
	ctx := context.Background()

	a, _, kidsA := seedFamily(t, db, "A", "Ann")
	b, _, _ := seedFamily(t, db, "B")

	m, err := fs.GetMember(ctx, a.ID, kidsA[0].ID)
	if err != nil || m == nil {
		t.Fatalf("get member in own family: %v, %v", m, err)
	}
	m, err = fs.GetMember(ctx, b.ID, kidsA[0].ID)
	if err != nil {
		t.Fatalf("get member: %v", err)
	}
	if m != nil {
		t.Error("member of another family should not be visible")
	}
}

func TestSessionLifecycle(t *testing.T) {
	db := setupTestDB(t)
	ss := NewSessionStore(db)
	ctx := context.Background()
	f, _, _ := seedFamily(t, db, "Smith")

	sess, err := ss.Create(ctx, f.ID, time.Hour)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if len(sess.Token) != 64 {
		t.Errorf("token length = %d, want 64", len(sess.Token))
	}
	if sess.FamilyID != f.ID {
		t.Errorf("family_id = %d, want %d", sess.FamilyID, f.ID)
	}

	got, err := ss.GetByToken(ctx, sess.Token)
	if err != nil {
		t.Fatalf("get by token: %v", err)
	}
	if got == nil || got.ID != sess.ID {
		t.Fatalf("got %+v, want session %d", got, sess.ID)
	}

	if err := ss.Delete(ctx, sess.Token); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, err = ss.GetByToken(ctx, sess.Token)
	if err != nil {
		t.Fatalf("get by token: %v", err)
	}
	if got != nil {
		t.Error("expected nil after delete")
	}
}

func TestSessionExpired(t *testing.T) {
	db := setupTestDB(t)
	ss := NewSessionStore(db)
	ctx := context.Background()
	f, _, _ := seedFamily(t, db, "Smith")

	now := time.Date(2026, 2, 3, 12, 0, 0, 0, time.UTC)
	ss.now = func() time.Time { return now }
	sess, err := ss.Create(ctx, f.ID, time.Minute)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	ss.now = func() time.Time { return now.Add(2 * time.Minute) }
	got, err := ss.GetByToken(ctx, sess.Token)
	if err != nil {
		t.Fatalf("get by token: %v", err)
	}
	if got != nil {
		t.Error("expected nil for expired session")
	}

	n, err := ss.DeleteExpired(ctx)
	if err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted = %d, want 1", n)
	}
}
