package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/wardenhq/warden/internal/apperr"
	"github.com/wardenhq/warden/internal/domain"
	"github.com/wardenhq/warden/internal/result"
)

// UserRepo implements domain.UserRepository.
type UserRepo struct {
	m *Manager
}

var _ domain.UserRepository = (*UserRepo)(nil)

func (r *UserRepo) Create(ctx context.Context, email, passwordHash string) result.Result[uuid.UUID] {
	var id uuid.UUID
	err := r.m.Querier().QueryRow(ctx,
		`INSERT INTO users (email, password) VALUES ($1, $2) RETURNING id`,
		email, passwordHash,
	).Scan(&id)
	if err != nil {
		return result.Err[uuid.UUID](apperr.From(fmt.Errorf("failed to create user: %w", err)))
	}
	return result.Ok(id)
}

func (r *UserRepo) GetOne(ctx context.Context, filter domain.UserFilter, withRoles bool) result.Result[domain.User] {
	query := `SELECT id, email, password, created_at, updated_at FROM users WHERE `
	var arg any
	switch {
	case filter.ID != nil:
		query += `id = $1`
		arg = *filter.ID
	case filter.Email != nil:
		query += `lower(email) = lower($1)`
		arg = *filter.Email
	default:
		return result.Err[domain.User](apperr.BadRequest("User filter requires an id or an email"))
	}

	var u domain.User
	err := r.m.Querier().QueryRow(ctx, query, arg).
		Scan(&u.ID, &u.Email, &u.Password, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return result.Err[domain.User](apperr.From(fmt.Errorf("failed to load user: %w", err)))
	}

	if withRoles {
		roles, err := r.rolesOf(ctx, u.ID)
		if err != nil {
			return result.Err[domain.User](apperr.From(err))
		}
		u.Roles = roles
	}
	return result.Ok(u)
}

func (r *UserRepo) GetMany(ctx context.Context, filter domain.UserListFilter, page domain.PageQuery) result.Result[domain.Page[domain.User]] {
	page = page.Normalize()

	var conds []string
	var args []any
	if filter.Email != nil {
		args = append(args, *filter.Email)
		conds = append(conds, fmt.Sprintf("lower(email) = lower($%d)", len(args)))
	}
	if filter.FromDate != nil {
		args = append(args, *filter.FromDate)
		conds = append(conds, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.ToDate != nil {
		args = append(args, *filter.ToDate)
		conds = append(conds, fmt.Sprintf("created_at <= $%d", len(args)))
	}

	query := `SELECT id, email, password, created_at, updated_at, COUNT(*) OVER() AS total FROM users`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += fmt.Sprintf(` ORDER BY created_at %s LIMIT $%d OFFSET $%d`,
		page.OrderBy, len(args)+1, len(args)+2)
	args = append(args, page.Limit, page.Offset())

	rows, err := r.m.Querier().Query(ctx, query, args...)
	if err != nil {
		return result.Err[domain.Page[domain.User]](apperr.From(fmt.Errorf("failed to list users: %w", err)))
	}
	defer rows.Close()

	out := domain.Page[domain.User]{
		Items:  []domain.User{},
		Limit:  page.Limit,
		Offset: page.Offset(),
	}
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Email, &u.Password, &u.CreatedAt, &u.UpdatedAt, &out.Total); err != nil {
			return result.Err[domain.Page[domain.User]](apperr.From(err))
		}
		out.Items = append(out.Items, u)
	}
	if err := rows.Err(); err != nil {
		return result.Err[domain.Page[domain.User]](apperr.From(err))
	}
	return result.Ok(out)
}

func (r *UserRepo) Update(ctx context.Context, id uuid.UUID, patch domain.UserPatch) result.Result[bool] {
	if patch.IsEmpty() {
		return result.Ok(false)
	}

	var sets []string
	var args []any
	if patch.Email != nil {
		args = append(args, *patch.Email)
		sets = append(sets, fmt.Sprintf("email = $%d", len(args)))
	}
	if patch.PasswordHash != nil {
		args = append(args, *patch.PasswordHash)
		sets = append(sets, fmt.Sprintf("password = $%d", len(args)))
	}
	sets = append(sets, "updated_at = now()")
	args = append(args, id)

	tag, err := r.m.Querier().Exec(ctx,
		fmt.Sprintf(`UPDATE users SET %s WHERE id = $%d`, strings.Join(sets, ", "), len(args)),
		args...,
	)
	if err != nil {
		return result.Err[bool](apperr.From(fmt.Errorf("failed to update user: %w", err)))
	}
	return result.Ok(tag.RowsAffected() > 0)
}

func (r *UserRepo) Delete(ctx context.Context, id uuid.UUID) result.Result[bool] {
	tag, err := r.m.Querier().Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return result.Err[bool](apperr.From(fmt.Errorf("failed to delete user: %w", err)))
	}
	if tag.RowsAffected() == 0 {
		return result.Err[bool](apperr.NotFound("Not found"))
	}
	return result.Ok(true)
}

func (r *UserRepo) rolesOf(ctx context.Context, userID uuid.UUID) ([]domain.Role, error) {
	rows, err := r.m.Querier().Query(ctx, `
		SELECT r.id, r.name, r.level, r.is_superuser, r.created_at, r.updated_at
		FROM roles r
		JOIN user_roles ur ON ur.role_id = r.id
		WHERE ur.user_id = $1
		ORDER BY r.level DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load user roles: %w", err)
	}
	defer rows.Close()

	roles := []domain.Role{}
	for rows.Next() {
		var role domain.Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Level, &role.IsSuperuser, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}
