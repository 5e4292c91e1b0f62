package domain

import (
	"context"

	"github.com/google/uuid"

	"github.com/wardenhq/warden/internal/result"
)

// IsolationLevel values mirror the SQL standard names understood by pgx.
type IsolationLevel string

const (
	IsolationReadCommitted  IsolationLevel = "read committed"
	IsolationRepeatableRead IsolationLevel = "repeatable read"
	IsolationSerializable   IsolationLevel = "serializable"
)

// TxSettings collects transaction options.
type TxSettings struct {
	Isolation IsolationLevel
	Nested    bool
}

// TxOption mutates TxSettings.
type TxOption func(*TxSettings)

// WithIsolation sets the isolation level of an outermost transaction.
func WithIsolation(level IsolationLevel) TxOption {
	return func(s *TxSettings) { s.Isolation = level }
}

// WithNested opens a savepoint inside an active transaction instead of
// failing on re-entry.
func WithNested() TxOption {
	return func(s *TxSettings) { s.Nested = true }
}

// NewTxSettings applies opts to the zero settings.
func NewTxSettings(opts ...TxOption) TxSettings {
	var s TxSettings
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// TxManager scopes fn to a database transaction. The transaction commits
// when fn returns nil and rolls back otherwise. Repositories reached through
// the owning gateway observe the active transaction.
type TxManager interface {
	WithTransaction(ctx context.Context, fn func(context.Context) error, opts ...TxOption) error
}

// UserRepository persists accounts.
type UserRepository interface {
	Create(ctx context.Context, email, passwordHash string) result.Result[uuid.UUID]
	GetOne(ctx context.Context, filter UserFilter, withRoles bool) result.Result[User]
	GetMany(ctx context.Context, filter UserListFilter, page PageQuery) result.Result[Page[User]]
	Update(ctx context.Context, id uuid.UUID, patch UserPatch) result.Result[bool]
	Delete(ctx context.Context, id uuid.UUID) result.Result[bool]
}

// RBACRepository persists roles, permissions and their grants, and reads the
// flattened per-user permission view.
type RBACRepository interface {
	CreateRole(ctx context.Context, in RoleInput) result.Result[uuid.UUID]
	UpdateRole(ctx context.Context, id uuid.UUID, patch RolePatch) result.Result[bool]
	GetRoles(ctx context.Context, page PageQuery) result.Result[Page[Role]]
	GetUserRoles(ctx context.Context, userID uuid.UUID) result.Result[[]Role]
	GetRoleUsers(ctx context.Context, roleID uuid.UUID, page PageQuery) result.Result[Page[User]]
	GetPermissions(ctx context.Context, page PageQuery) result.Result[Page[Permission]]
	GetUserPermissions(ctx context.Context, userID uuid.UUID) result.Result[[]EffectivePermission]
	GetUserPermission(ctx context.Context, userID uuid.UUID, key string) result.Result[EffectivePermission]

	AssignRole(ctx context.Context, roleID, userID uuid.UUID) result.Result[bool]
	UnassignRole(ctx context.Context, roleID, userID uuid.UUID) result.Result[bool]

	CreatePermission(ctx context.Context, in PermissionInput) result.Result[bool]
	EnsurePermission(ctx context.Context, in PermissionInput) result.Result[uuid.UUID]
	EnsurePermissionFields(ctx context.Context, permissionID uuid.UUID, fields []FieldInput) result.Result[int]

	GrantRolePermission(ctx context.Context, roleID, permissionID uuid.UUID, scope Scope) result.Result[bool]
	RevokeRolePermission(ctx context.Context, roleID, permissionID uuid.UUID) result.Result[bool]
	GrantRolePermissionField(ctx context.Context, roleID, permissionID, fieldID uuid.UUID, effect Effect) result.Result[bool]
	UpdateRolePermissionField(ctx context.Context, roleID, permissionID, fieldID uuid.UUID, effect Effect) result.Result[bool]
	RevokeRolePermissionField(ctx context.Context, roleID, permissionID, fieldID uuid.UUID) result.Result[bool]

	RefreshUserPermissions(ctx context.Context) error
}

// Gateway hands out the unit of work and its repositories. One gateway
// serves one request; repositories share the gateway's connection state.
type Gateway interface {
	Manager() TxManager
	User() UserRepository
	RBAC() RBACRepository
}
