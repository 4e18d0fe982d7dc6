package model

import "time"

type Role string

const (
	RoleChild  Role = "child"
	RoleParent Role = "parent"
)

func (r Role) Valid() bool {
	return r == RoleChild || r == RoleParent
}

type Family struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type FamilyMember struct {
	ID        int64     `json:"id"`
	FamilyID  int64     `json:"family_id"`
	Role      Role      `json:"role"`
	Name      string    `json:"name"`
	Nickname  string    `json:"nickname,omitempty"`
	BirthDate *Date     `json:"birth_date,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// DisplayName is the nickname when set, otherwise the name.
func (m FamilyMember) DisplayName() string {
	if m.Nickname != "" {
		return m.Nickname
	}
	return m.Name
}

type Session struct {
	ID        int64     `json:"id"`
	Token     string    `json:"token"`
	FamilyID  int64     `json:"family_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}
