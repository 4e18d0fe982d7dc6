package store

import (
	"context"
	"database/sql"
	"testing"

	"github.com/dukerupert/familytasks/internal/database"
	"github.com/dukerupert/familytasks/internal/model"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// seedFamily creates a family with one parent and the named children.
func seedFamily(t *testing.T, db *sql.DB, name string, children ...string) (*model.Family, *model.FamilyMember, []model.FamilyMember) {
	t.Helper()
	ctx := context.Background()
	fs := NewFamilyStore(db)

	f, err := fs.Create(ctx, name, "secret")
	if err != nil {
		t.Fatalf("create family: %v", err)
	}
	parent, err := fs.AddMember(ctx, model.FamilyMember{FamilyID: f.ID, Role: model.RoleParent, Name: "Parent"})
	if err != nil {
		t.Fatalf("add parent: %v", err)
	}
	var kids []model.FamilyMember
	for _, c := range children {
		m, err := fs.AddMember(ctx, model.FamilyMember{FamilyID: f.ID, Role: model.RoleChild, Name: c})
		if err != nil {
			t.Fatalf("add child %s: %v", c, err)
		}
		kids = append(kids, *m)
	}
	return f, parent, kids
}

func mustDate(t *testing.T, s string) model.Date {
	t.Helper()
	d, err := model.ParseDate(s)
	if err != nil {
		t.Fatalf("parse date: %v", err)
	}
	return d
}
