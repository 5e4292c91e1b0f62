package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role groups permissions. Level breaks ties when a user holds several roles
// granting the same permission: the highest level wins. At most one role may
// be a superuser role.
type Role struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Level       int       `json:"level"`
	IsSuperuser bool      `json:"is_superuser"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Permission is a named capability identified by its lowercase
// resource:action:operation key.
type Permission struct {
	ID          uuid.UUID         `json:"id"`
	Resource    string            `json:"resource"`
	Action      Action            `json:"action"`
	Operation   string            `json:"operation"`
	Description *string           `json:"description"`
	Key         string            `json:"key"`
	Fields      []PermissionField `json:"fields"`
}

// PermissionField names a request field a permission may constrain.
type PermissionField struct {
	ID           uuid.UUID `json:"id"`
	PermissionID uuid.UUID `json:"permission_id"`
	Src          Source    `json:"src"`
	Name         string    `json:"name"`
}

// PermissionKey builds the canonical lowercase permission key.
func PermissionKey(resource string, action Action, operation string) string {
	return strings.ToLower(resource + ":" + string(action) + ":" + operation)
}

// PermissionInput is the payload for creating a permission definition.
type PermissionInput struct {
	Resource    string
	Action      Action
	Operation   string
	Description *string
}

// Key of the permission the input would create.
func (p PermissionInput) Key() string { return PermissionKey(p.Resource, p.Action, p.Operation) }

// FieldInput is the payload for registering a permission field.
type FieldInput struct {
	Src  Source
	Name string
}

// RoleInput is the payload for creating a role.
type RoleInput struct {
	Name        string
	Level       int
	IsSuperuser bool
}

// RolePatch carries the updatable role columns. Nil fields stay untouched.
type RolePatch struct {
	Name        *string
	Level       *int
	IsSuperuser *bool
}

// IsEmpty reports whether the patch would change nothing.
func (p RolePatch) IsEmpty() bool { return p.Name == nil && p.Level == nil && p.IsSuperuser == nil }

// EffectivePermission is one row of the flattened user permission view: the
// resolved scope plus the per-source allow and deny field sets.
type EffectivePermission struct {
	Resource    string              `json:"resource"`
	Action      Action              `json:"action"`
	Operation   string              `json:"operation"`
	Scope       Scope               `json:"scope"`
	Description *string             `json:"description"`
	AllowFields map[Source][]string `json:"allow_fields"`
	DenyFields  map[Source][]string `json:"deny_fields"`
}

// Key of the underlying permission.
func (p EffectivePermission) Key() string {
	return PermissionKey(p.Resource, p.Action, p.Operation)
}
