package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/wardenhq/warden/internal/apperr"
	"github.com/wardenhq/warden/internal/domain"
	"github.com/wardenhq/warden/internal/result"
)

// RBACRepo implements domain.RBACRepository.
type RBACRepo struct {
	m *Manager
}

var _ domain.RBACRepository = (*RBACRepo)(nil)

func (r *RBACRepo) CreateRole(ctx context.Context, in domain.RoleInput) result.Result[uuid.UUID] {
	var id uuid.UUID
	err := r.m.Querier().QueryRow(ctx,
		`INSERT INTO roles (name, level, is_superuser) VALUES ($1, $2, $3) RETURNING id`,
		in.Name, in.Level, in.IsSuperuser,
	).Scan(&id)
	if err != nil {
		return result.Err[uuid.UUID](apperr.From(fmt.Errorf("failed to create role: %w", err)))
	}
	return result.Ok(id)
}

func (r *RBACRepo) UpdateRole(ctx context.Context, id uuid.UUID, patch domain.RolePatch) result.Result[bool] {
	if patch.IsEmpty() {
		return result.Ok(false)
	}

	tag, err := r.m.Querier().Exec(ctx, `
		UPDATE roles SET
			name = COALESCE($1, name),
			level = COALESCE($2, level),
			is_superuser = COALESCE($3, is_superuser),
			updated_at = now()
		WHERE id = $4`,
		patch.Name, patch.Level, patch.IsSuperuser, id,
	)
	if err != nil {
		return result.Err[bool](apperr.From(fmt.Errorf("failed to update role: %w", err)))
	}
	if tag.RowsAffected() == 0 {
		return result.Err[bool](apperr.NotFound("Role not found"))
	}
	return result.Ok(true)
}

func (r *RBACRepo) GetRoles(ctx context.Context, page domain.PageQuery) result.Result[domain.Page[domain.Role]] {
	page = page.Normalize()

	rows, err := r.m.Querier().Query(ctx, fmt.Sprintf(`
		SELECT id, name, level, is_superuser, created_at, updated_at,
		       COUNT(*) OVER() AS total
		FROM roles
		ORDER BY level %s LIMIT $1 OFFSET $2`, page.OrderBy),
		page.Limit, page.Offset(),
	)
	if err != nil {
		return result.Err[domain.Page[domain.Role]](apperr.From(fmt.Errorf("failed to list roles: %w", err)))
	}
	defer rows.Close()

	out := domain.Page[domain.Role]{Items: []domain.Role{}, Limit: page.Limit, Offset: page.Offset()}
	for rows.Next() {
		var role domain.Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Level, &role.IsSuperuser,
			&role.CreatedAt, &role.UpdatedAt, &out.Total); err != nil {
			return result.Err[domain.Page[domain.Role]](apperr.From(err))
		}
		out.Items = append(out.Items, role)
	}
	if err := rows.Err(); err != nil {
		return result.Err[domain.Page[domain.Role]](apperr.From(err))
	}
	return result.Ok(out)
}

func (r *RBACRepo) GetUserRoles(ctx context.Context, userID uuid.UUID) result.Result[[]domain.Role] {
	rows, err := r.m.Querier().Query(ctx, `
		SELECT r.id, r.name, r.level, r.is_superuser, r.created_at, r.updated_at
		FROM roles r
		JOIN user_roles ur ON ur.role_id = r.id
		WHERE ur.user_id = $1
		ORDER BY r.level DESC`,
		userID,
	)
	if err != nil {
		return result.Err[[]domain.Role](apperr.From(fmt.Errorf("failed to load user roles: %w", err)))
	}
	defer rows.Close()

	roles := []domain.Role{}
	for rows.Next() {
		var role domain.Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Level, &role.IsSuperuser,
			&role.CreatedAt, &role.UpdatedAt); err != nil {
			return result.Err[[]domain.Role](apperr.From(err))
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return result.Err[[]domain.Role](apperr.From(err))
	}
	return result.Ok(roles)
}

func (r *RBACRepo) GetRoleUsers(ctx context.Context, roleID uuid.UUID, page domain.PageQuery) result.Result[domain.Page[domain.User]] {
	page = page.Normalize()

	rows, err := r.m.Querier().Query(ctx, fmt.Sprintf(`
		SELECT u.id, u.email, u.created_at, u.updated_at, COUNT(*) OVER() AS total
		FROM users u
		JOIN user_roles ur ON ur.user_id = u.id
		WHERE ur.role_id = $1
		ORDER BY u.created_at %s LIMIT $2 OFFSET $3`, page.OrderBy),
		roleID, page.Limit, page.Offset(),
	)
	if err != nil {
		return result.Err[domain.Page[domain.User]](apperr.From(fmt.Errorf("failed to list role users: %w", err)))
	}
	defer rows.Close()

	out := domain.Page[domain.User]{Items: []domain.User{}, Limit: page.Limit, Offset: page.Offset()}
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Email, &u.CreatedAt, &u.UpdatedAt, &out.Total); err != nil {
			return result.Err[domain.Page[domain.User]](apperr.From(err))
		}
		out.Items = append(out.Items, u)
	}
	if err := rows.Err(); err != nil {
		return result.Err[domain.Page[domain.User]](apperr.From(err))
	}
	return result.Ok(out)
}

func (r *RBACRepo) GetPermissions(ctx context.Context, page domain.PageQuery) result.Result[domain.Page[domain.Permission]] {
	page = page.Normalize()

	rows, err := r.m.Querier().Query(ctx, fmt.Sprintf(`
		SELECT id, resource, action, operation, description, key,
		       COUNT(*) OVER() AS total
		FROM permissions
		ORDER BY key %s LIMIT $1 OFFSET $2`, page.OrderBy),
		page.Limit, page.Offset(),
	)
	if err != nil {
		return result.Err[domain.Page[domain.Permission]](apperr.From(fmt.Errorf("failed to list permissions: %w", err)))
	}
	defer rows.Close()

	out := domain.Page[domain.Permission]{Items: []domain.Permission{}, Limit: page.Limit, Offset: page.Offset()}
	for rows.Next() {
		var p domain.Permission
		if err := rows.Scan(&p.ID, &p.Resource, &p.Action, &p.Operation,
			&p.Description, &p.Key, &out.Total); err != nil {
			return result.Err[domain.Page[domain.Permission]](apperr.From(err))
		}
		out.Items = append(out.Items, p)
	}
	if err := rows.Err(); err != nil {
		return result.Err[domain.Page[domain.Permission]](apperr.From(err))
	}

	if err := r.attachFields(ctx, out.Items); err != nil {
		return result.Err[domain.Page[domain.Permission]](apperr.From(err))
	}
	return result.Ok(out)
}

// attachFields loads the field sets for the given permissions in one query.
func (r *RBACRepo) attachFields(ctx context.Context, perms []domain.Permission) error {
	if len(perms) == 0 {
		return nil
	}
	index := make(map[uuid.UUID]int, len(perms))
	ids := make([]uuid.UUID, len(perms))
	for i, p := range perms {
		index[p.ID] = i
		ids[i] = p.ID
	}

	rows, err := r.m.Querier().Query(ctx, `
		SELECT id, permission_id, src, name
		FROM permission_fields
		WHERE permission_id = ANY($1)
		ORDER BY src, name`,
		ids,
	)
	if err != nil {
		return fmt.Errorf("failed to load permission fields: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var f domain.PermissionField
		if err := rows.Scan(&f.ID, &f.PermissionID, &f.Src, &f.Name); err != nil {
			return err
		}
		if i, ok := index[f.PermissionID]; ok {
			perms[i].Fields = append(perms[i].Fields, f)
		}
	}
	return rows.Err()
}

func (r *RBACRepo) GetUserPermissions(ctx context.Context, userID uuid.UUID) result.Result[[]domain.EffectivePermission] {
	rows, err := r.m.Querier().Query(ctx, `
		SELECT resource, action, operation, scope, description, allow_fields, deny_fields
		FROM mv_user_permissions
		WHERE user_id = $1
		ORDER BY permission_key`,
		userID,
	)
	if err != nil {
		return result.Err[[]domain.EffectivePermission](apperr.From(fmt.Errorf("failed to load user permissions: %w", err)))
	}
	defer rows.Close()

	perms := []domain.EffectivePermission{}
	for rows.Next() {
		p, err := scanEffective(rows)
		if err != nil {
			return result.Err[[]domain.EffectivePermission](apperr.From(err))
		}
		perms = append(perms, p)
	}
	if err := rows.Err(); err != nil {
		return result.Err[[]domain.EffectivePermission](apperr.From(err))
	}
	return result.Ok(perms)
}

func (r *RBACRepo) GetUserPermission(ctx context.Context, userID uuid.UUID, key string) result.Result[domain.EffectivePermission] {
	rows, err := r.m.Querier().Query(ctx, `
		SELECT resource, action, operation, scope, description, allow_fields, deny_fields
		FROM mv_user_permissions
		WHERE user_id = $1 AND permission_key = $2`,
		userID, key,
	)
	if err != nil {
		return result.Err[domain.EffectivePermission](apperr.From(fmt.Errorf("failed to load user permission: %w", err)))
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return result.Err[domain.EffectivePermission](apperr.From(err))
		}
		return result.Err[domain.EffectivePermission](apperr.NotFound("Permission not found"))
	}
	p, err := scanEffective(rows)
	if err != nil {
		return result.Err[domain.EffectivePermission](apperr.From(err))
	}
	return result.Ok(p)
}

// scanEffective reads one mv_user_permissions row; the field sets arrive as
// jsonb objects of {src: [names]}.
func scanEffective(rows pgx.Rows) (domain.EffectivePermission, error) {
	var p domain.EffectivePermission
	var allowRaw, denyRaw []byte
	if err := rows.Scan(&p.Resource, &p.Action, &p.Operation, &p.Scope,
		&p.Description, &allowRaw, &denyRaw); err != nil {
		return p, err
	}
	if len(allowRaw) > 0 {
		if err := json.Unmarshal(allowRaw, &p.AllowFields); err != nil {
			return p, fmt.Errorf("failed to decode allow fields: %w", err)
		}
	}
	if len(denyRaw) > 0 {
		if err := json.Unmarshal(denyRaw, &p.DenyFields); err != nil {
			return p, fmt.Errorf("failed to decode deny fields: %w", err)
		}
	}
	return p, nil
}

func (r *RBACRepo) AssignRole(ctx context.Context, roleID, userID uuid.UUID) result.Result[bool] {
	_, err := r.m.Querier().Exec(ctx,
		`INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2)`,
		userID, roleID,
	)
	if err != nil {
		return result.Err[bool](apperr.From(fmt.Errorf("failed to assign role: %w", err)))
	}
	return result.Ok(true)
}

func (r *RBACRepo) UnassignRole(ctx context.Context, roleID, userID uuid.UUID) result.Result[bool] {
	tag, err := r.m.Querier().Exec(ctx,
		`DELETE FROM user_roles WHERE user_id = $1 AND role_id = $2`,
		userID, roleID,
	)
	if err != nil {
		return result.Err[bool](apperr.From(fmt.Errorf("failed to unassign role: %w", err)))
	}
	if tag.RowsAffected() == 0 {
		return result.Err[bool](apperr.NotFound("Role assignment not found"))
	}
	return result.Ok(true)
}

func (r *RBACRepo) CreatePermission(ctx context.Context, in domain.PermissionInput) result.Result[bool] {
	tag, err := r.m.Querier().Exec(ctx, `
		INSERT INTO permissions (resource, action, operation, description)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (key) DO NOTHING`,
		in.Resource, in.Action, in.Operation, in.Description,
	)
	if err != nil {
		return result.Err[bool](apperr.From(fmt.Errorf("failed to create permission: %w", err)))
	}
	return result.Ok(tag.RowsAffected() > 0)
}

// EnsurePermission upserts the permission by its natural key and returns its
// id whether the row was inserted now or already existed.
func (r *RBACRepo) EnsurePermission(ctx context.Context, in domain.PermissionInput) result.Result[uuid.UUID] {
	if created := r.CreatePermission(ctx, in); created.IsErr() {
		return result.Err[uuid.UUID](created.Err())
	}

	var id uuid.UUID
	err := r.m.Querier().QueryRow(ctx,
		`SELECT id FROM permissions WHERE key = $1`, in.Key(),
	).Scan(&id)
	if err != nil {
		return result.Err[uuid.UUID](apperr.From(fmt.Errorf("failed to resolve permission %q: %w", in.Key(), err)))
	}
	return result.Ok(id)
}

// EnsurePermissionFields batch-registers the declared fields, skipping rows
// already present. Reports the number of newly inserted fields.
func (r *RBACRepo) EnsurePermissionFields(ctx context.Context, permissionID uuid.UUID, fields []domain.FieldInput) result.Result[int] {
	if len(fields) == 0 {
		return result.Ok(0)
	}

	batch := &pgx.Batch{}
	for _, f := range fields {
		batch.Queue(`
			INSERT INTO permission_fields (permission_id, src, name)
			VALUES ($1, $2, $3)
			ON CONFLICT (permission_id, src, name) DO NOTHING`,
			permissionID, f.Src, f.Name,
		)
	}

	results := r.m.Querier().SendBatch(ctx, batch)
	defer results.Close()

	inserted := 0
	for range fields {
		tag, err := results.Exec()
		if err != nil {
			return result.Err[int](apperr.From(fmt.Errorf("failed to register permission fields: %w", err)))
		}
		inserted += int(tag.RowsAffected())
	}
	return result.Ok(inserted)
}

func (r *RBACRepo) GrantRolePermission(ctx context.Context, roleID, permissionID uuid.UUID, scope domain.Scope) result.Result[bool] {
	_, err := r.m.Querier().Exec(ctx, `
		INSERT INTO role_permissions (role_id, permission_id, scope)
		VALUES ($1, $2, $3)
		ON CONFLICT (role_id, permission_id) DO UPDATE SET scope = EXCLUDED.scope`,
		roleID, permissionID, scope,
	)
	if err != nil {
		return result.Err[bool](apperr.From(fmt.Errorf("failed to grant role permission: %w", err)))
	}
	return result.Ok(true)
}

func (r *RBACRepo) RevokeRolePermission(ctx context.Context, roleID, permissionID uuid.UUID) result.Result[bool] {
	tag, err := r.m.Querier().Exec(ctx,
		`DELETE FROM role_permissions WHERE role_id = $1 AND permission_id = $2`,
		roleID, permissionID,
	)
	if err != nil {
		return result.Err[bool](apperr.From(fmt.Errorf("failed to revoke role permission: %w", err)))
	}
	if tag.RowsAffected() == 0 {
		return result.Err[bool](apperr.NotFound("Role permission not found"))
	}
	return result.Ok(true)
}

func (r *RBACRepo) GrantRolePermissionField(ctx context.Context, roleID, permissionID, fieldID uuid.UUID, effect domain.Effect) result.Result[bool] {
	_, err := r.m.Querier().Exec(ctx, `
		INSERT INTO role_permission_fields (role_id, permission_id, field_id, effect)
		VALUES ($1, $2, $3, $4)`,
		roleID, permissionID, fieldID, effect,
	)
	if err != nil {
		return result.Err[bool](apperr.From(fmt.Errorf("failed to grant permission field: %w", err)))
	}
	return result.Ok(true)
}

func (r *RBACRepo) UpdateRolePermissionField(ctx context.Context, roleID, permissionID, fieldID uuid.UUID, effect domain.Effect) result.Result[bool] {
	tag, err := r.m.Querier().Exec(ctx, `
		UPDATE role_permission_fields SET effect = $1
		WHERE role_id = $2 AND permission_id = $3 AND field_id = $4`,
		effect, roleID, permissionID, fieldID,
	)
	if err != nil {
		return result.Err[bool](apperr.From(fmt.Errorf("failed to update permission field: %w", err)))
	}
	if tag.RowsAffected() == 0 {
		return result.Err[bool](apperr.NotFound("Role permission field not found"))
	}
	return result.Ok(true)
}

func (r *RBACRepo) RevokeRolePermissionField(ctx context.Context, roleID, permissionID, fieldID uuid.UUID) result.Result[bool] {
	tag, err := r.m.Querier().Exec(ctx, `
		DELETE FROM role_permission_fields
		WHERE role_id = $1 AND permission_id = $2 AND field_id = $3`,
		roleID, permissionID, fieldID,
	)
	if err != nil {
		return result.Err[bool](apperr.From(fmt.Errorf("failed to revoke permission field: %w", err)))
	}
	if tag.RowsAffected() == 0 {
		return result.Err[bool](apperr.NotFound("Role permission field not found"))
	}
	return result.Ok(true)
}

// RefreshUserPermissions rebuilds the flattened permission view. Runs
// concurrently so readers keep answering from the old snapshot.
func (r *RBACRepo) RefreshUserPermissions(ctx context.Context) error {
	_, err := r.m.Querier().Exec(ctx, `REFRESH MATERIALIZED VIEW CONCURRENTLY mv_user_permissions`)
	if err != nil {
		return fmt.Errorf("failed to refresh user permissions: %w", err)
	}
	return nil
}
