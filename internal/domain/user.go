package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is the persisted account row. Password holds the Argon2id hash and
// is nil for accounts without a local credential.
type User struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Password  *string   `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Roles     []Role    `json:"roles,omitempty"`
}

// UserPublic is the outward representation of a user.
type UserPublic struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Roles     []string  `json:"roles"`
}

// Public strips credentials and flattens roles to their names.
func (u User) Public() UserPublic {
	names := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		names = append(names, r.Name)
	}
	return UserPublic{
		ID:        u.ID,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
		Roles:     names,
	}
}

// UserFilter selects exactly one user by id or email.
type UserFilter struct {
	ID    *uuid.UUID
	Email *string
}

// UserListFilter narrows a user listing.
type UserListFilter struct {
	Email    *string
	FromDate *time.Time
	ToDate   *time.Time
}

// UserPatch carries the updatable user columns. Nil fields stay untouched.
type UserPatch struct {
	Email        *string
	PasswordHash *string
}

// IsEmpty reports whether the patch would change nothing.
func (p UserPatch) IsEmpty() bool { return p.Email == nil && p.PasswordHash == nil }
