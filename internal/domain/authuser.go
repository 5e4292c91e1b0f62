package domain

import "github.com/google/uuid"

// AuthUser is the authenticated caller attached to a request. Password holds
// the stored hash when loaded for credential checks, never plaintext.
type AuthUser struct {
	ID          uuid.UUID
	Email       string
	Password    string
	IsSuperuser bool
	Roles       []string
}

// HasRoles reports whether the user holds at least one role.
func (u *AuthUser) HasRoles() bool { return u != nil && len(u.Roles) > 0 }

// AuthUserFrom flattens a loaded user into its request representation.
func AuthUserFrom(u User) AuthUser {
	au := AuthUser{ID: u.ID, Email: u.Email}
	if u.Password != nil {
		au.Password = *u.Password
	}
	au.Roles = make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		au.Roles = append(au.Roles, r.Name)
		if r.IsSuperuser {
			au.IsSuperuser = true
		}
	}
	return au
}
