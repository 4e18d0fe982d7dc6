package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dukerupert/familytasks/internal/model"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned by Authenticate for an unknown family or
// a wrong password.
var ErrInvalidCredentials = errors.New("invalid family name or password")

type FamilyStore struct {
	db DBTX
}

func NewFamilyStore(db *sql.DB) *FamilyStore {
	return &FamilyStore{db: db}
}

func (s *FamilyStore) WithTx(tx *sql.Tx) *FamilyStore {
	return &FamilyStore{db: tx}
}

func scanFamily(scanner interface{ Scan(...any) error }) (*model.Family, error) {
	var f model.Family
	err := scanner.Scan(&f.ID, &f.Name, &f.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func scanMember(scanner interface{ Scan(...any) error }) (*model.FamilyMember, error) {
	var m model.FamilyMember
	var nickname sql.NullString
	err := scanner.Scan(&m.ID, &m.FamilyID, &m.Role, &m.Name, &nickname, &m.BirthDate, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	m.Nickname = nickname.String
	return &m, nil
}

const familyCols = `id, name, created_at`
const memberCols = `id, family_id, role, name, nickname, birth_date, created_at`

// Create registers a family with a bcrypt-hashed password.
func (s *FamilyStore) Create(ctx context.Context, name, password string) (*model.Family, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO families (name, password_hash) VALUES (?, ?)`,
		name, string(hash),
	)
	if err != nil {
		return nil, fmt.Errorf("insert family: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *FamilyStore) GetByID(ctx context.Context, id int64) (*model.Family, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+familyCols+` FROM families WHERE id = ?`, id)
	f, err := scanFamily(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get family: %w", err)
	}
	return f, nil
}

// Authenticate checks the family credential and returns the family.
func (s *FamilyStore) Authenticate(ctx context.Context, name, password string) (*model.Family, error) {
	var id int64
	var hash string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, password_hash FROM families WHERE name = ?`, name,
	).Scan(&id, &hash)
	if err == sql.ErrNoRows {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("query family: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return s.GetByID(ctx, id)
}

func (s *FamilyStore) AddMember(ctx context.Context, m model.FamilyMember) (*model.FamilyMember, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO family_members (family_id, role, name, nickname, birth_date) VALUES (?, ?, ?, ?, ?)`,
		m.FamilyID, m.Role, m.Name, nullString(m.Nickname), m.BirthDate,
	)
	if err != nil {
		return nil, fmt.Errorf("insert family member: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetMember(ctx, m.FamilyID, id)
}

// GetMember returns the member only if it belongs to familyID.
func (s *FamilyStore) GetMember(ctx context.Context, familyID, id int64) (*model.FamilyMember, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+memberCols+` FROM family_members WHERE id = ? AND family_id = ?`, id, familyID)
	m, err := scanMember(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get family member: %w", err)
	}
	return m, nil
}

// ListMembers returns the family's members ordered by id.
func (s *FamilyStore) ListMembers(ctx context.Context, familyID int64) ([]model.FamilyMember, error) {
	return s.listMembers(ctx,
		`SELECT `+memberCols+` FROM family_members WHERE family_id = ? ORDER BY id ASC`, familyID)
}

// ListChildren returns the family's children ordered by name.
func (s *FamilyStore) ListChildren(ctx context.Context, familyID int64) ([]model.FamilyMember, error) {
	return s.listMembers(ctx,
		`SELECT `+memberCols+` FROM family_members WHERE family_id = ? AND role = 'child' ORDER BY name ASC, id ASC`,
		familyID)
}

func (s *FamilyStore) listMembers(ctx context.Context, query string, args ...any) ([]model.FamilyMember, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list family members: %w", err)
	}
	defer rows.Close()

	var members []model.FamilyMember
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scan family member: %w", err)
		}
		members = append(members, *m)
	}
	return members, rows.Err()
}
