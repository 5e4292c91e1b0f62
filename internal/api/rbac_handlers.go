package api

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/wardenhq/warden/internal/api/helpers"
	"github.com/wardenhq/warden/internal/apperr"
	"github.com/wardenhq/warden/internal/command"
	"github.com/wardenhq/warden/internal/domain"
	"github.com/wardenhq/warden/internal/policy"
	"github.com/wardenhq/warden/internal/query"
)

type createRoleRequest struct {
	Name        string `json:"name"`
	Level       int    `json:"level"`
	IsSuperuser bool   `json:"is_superuser"`
}

type updateRoleRequest struct {
	Name        *string `json:"name"`
	Level       *int    `json:"level"`
	IsSuperuser *bool   `json:"is_superuser"`
}

type grantPermissionRequest struct {
	RoleID       uuid.UUID    `json:"role_id"`
	PermissionID uuid.UUID    `json:"permission_id"`
	Scope        domain.Scope `json:"scope"`
}

type grantPermissionFieldRequest struct {
	RoleID       uuid.UUID     `json:"role_id"`
	PermissionID uuid.UUID     `json:"permission_id"`
	FieldID      uuid.UUID     `json:"field_id"`
	Effect       domain.Effect `json:"effect"`
}

type fieldEffectRequest struct {
	Effect domain.Effect `json:"effect"`
}

func (s *Server) createRole(w http.ResponseWriter, r *http.Request) {
	var req createRoleRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, r, err)
		return
	}

	res := s.commands.Dispatch(r.Context(), policy.FromContext(r.Context()), command.CreateRole{
		Name:        req.Name,
		Level:       req.Level,
		IsSuperuser: req.IsSuperuser,
	})
	created, err := res.Unwrap()
	if err != nil {
		helpers.RespondError(w, r, err)
		return
	}
	helpers.Respond(w, http.StatusCreated, created)
}

func (s *Server) updateRole(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "role_id")
	if err != nil {
		helpers.RespondError(w, r, err)
		return
	}
	var req updateRoleRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, r, err)
		return
	}

	res := s.commands.Dispatch(r.Context(), policy.FromContext(r.Context()), command.UpdateRole{
		RoleID:      id,
		Name:        req.Name,
		Level:       req.Level,
		IsSuperuser: req.IsSuperuser,
	})
	status, err := res.Unwrap()
	if err != nil {
		helpers.RespondError(w, r, err)
		return
	}
	helpers.Respond(w, http.StatusOK, status)
}

func (s *Server) getRoles(w http.ResponseWriter, r *http.Request) {
	res := s.queries.Dispatch(r.Context(), policy.FromContext(r.Context()), query.GetRoles{Page: pageQuery(r)})
	value, err := res.Unwrap()
	if err != nil {
		helpers.RespondError(w, r, err)
		return
	}
	helpers.Respond(w, http.StatusOK, value)
}

func (s *Server) getUserRoles(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "user_id")
	if err != nil {
		helpers.RespondError(w, r, err)
		return
	}

	res := s.queries.Dispatch(r.Context(), policy.FromContext(r.Context()), query.GetUserRoles{UserID: id})
	value, err := res.Unwrap()
	if err != nil {
		helpers.RespondError(w, r, err)
		return
	}
	helpers.Respond(w, http.StatusOK, value)
}

func (s *Server) getUserPermissions(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "user_id")
	if err != nil {
		helpers.RespondError(w, r, err)
		return
	}

	res := s.queries.Dispatch(r.Context(), policy.FromContext(r.Context()), query.GetUserPermissions{UserID: id})
	value, err := res.Unwrap()
	if err != nil {
		helpers.RespondError(w, r, err)
		return
	}
	helpers.Respond(w, http.StatusOK, value)
}

func (s *Server) getRoleUsers(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "role_id")
	if err != nil {
		helpers.RespondError(w, r, err)
		return
	}

	res := s.queries.Dispatch(r.Context(), policy.FromContext(r.Context()), query.GetRoleUsers{
		RoleID: id,
		Page:   pageQuery(r),
	})
	value, err := res.Unwrap()
	if err != nil {
		helpers.RespondError(w, r, err)
		return
	}
	helpers.Respond(w, http.StatusOK, value)
}

func (s *Server) listPermissions(w http.ResponseWriter, r *http.Request) {
	res := s.queries.Dispatch(r.Context(), policy.FromContext(r.Context()), query.ListPermissions{Page: pageQuery(r)})
	value, err := res.Unwrap()
	if err != nil {
		helpers.RespondError(w, r, err)
		return
	}
	helpers.Respond(w, http.StatusOK, value)
}

func (s *Server) assignRole(w http.ResponseWriter, r *http.Request) {
	roleID, userID, err := rolePairParams(r)
	if err != nil {
		helpers.RespondError(w, r, err)
		return
	}

	res := s.commands.Dispatch(r.Context(), policy.FromContext(r.Context()), command.AssignRole{
		RoleID: roleID,
		UserID: userID,
	})
	status, err := res.Unwrap()
	if err != nil {
		helpers.RespondError(w, r, err)
		return
	}
	helpers.Respond(w, http.StatusCreated, status)
}

func (s *Server) unassignRole(w http.ResponseWriter, r *http.Request) {
	roleID, userID, err := rolePairParams(r)
	if err != nil {
		helpers.RespondError(w, r, err)
		return
	}

	res := s.commands.Dispatch(r.Context(), policy.FromContext(r.Context()), command.UnassignRole{
		RoleID: roleID,
		UserID: userID,
	})
	if _, err := res.Unwrap(); err != nil {
		helpers.RespondError(w, r, err)
		return
	}
	helpers.Respond(w, http.StatusNoContent, nil)
}

func (s *Server) grantRolePermission(w http.ResponseWriter, r *http.Request) {
	var req grantPermissionRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, r, err)
		return
	}
	if req.Scope != domain.ScopeOwn && req.Scope != domain.ScopeAny {
		helpers.RespondError(w, r, apperr.Unprocessable("Scope must be own or any"))
		return
	}

	res := s.commands.Dispatch(r.Context(), policy.FromContext(r.Context()), command.GrantRolePermission{
		RoleID:       req.RoleID,
		PermissionID: req.PermissionID,
		Scope:        req.Scope,
	})
	status, err := res.Unwrap()
	if err != nil {
		helpers.RespondError(w, r, err)
		return
	}
	helpers.Respond(w, http.StatusCreated, status)
}

func (s *Server) revokeRolePermission(w http.ResponseWriter, r *http.Request) {
	roleID, err := pathUUID(r, "role_id")
	if err != nil {
		helpers.RespondError(w, r, err)
		return
	}
	permissionID, err := pathUUID(r, "permission_id")
	if err != nil {
		helpers.RespondError(w, r, err)
		return
	}

	res := s.commands.Dispatch(r.Context(), policy.FromContext(r.Context()), command.RevokeRolePermission{
		RoleID:       roleID,
		PermissionID: permissionID,
	})
	if _, err := res.Unwrap(); err != nil {
		helpers.RespondError(w, r, err)
		return
	}
	helpers.Respond(w, http.StatusNoContent, nil)
}

func (s *Server) grantRolePermissionField(w http.ResponseWriter, r *http.Request) {
	var req grantPermissionFieldRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, r, err)
		return
	}
	if req.Effect != domain.EffectAllow && req.Effect != domain.EffectDeny {
		helpers.RespondError(w, r, apperr.Unprocessable("Effect must be allow or deny"))
		return
	}

	res := s.commands.Dispatch(r.Context(), policy.FromContext(r.Context()), command.GrantRolePermissionField{
		RoleID:       req.RoleID,
		PermissionID: req.PermissionID,
		FieldID:      req.FieldID,
		Effect:       req.Effect,
	})
	status, err := res.Unwrap()
	if err != nil {
		helpers.RespondError(w, r, err)
		return
	}
	helpers.Respond(w, http.StatusCreated, status)
}

func (s *Server) updateRolePermissionField(w http.ResponseWriter, r *http.Request) {
	roleID, permissionID, fieldID, err := fieldTripleParams(r)
	if err != nil {
		helpers.RespondError(w, r, err)
		return
	}
	req, err := decodeEffect(r)
	if err != nil {
		helpers.RespondError(w, r, err)
		return
	}

	res := s.commands.Dispatch(r.Context(), policy.FromContext(r.Context()), command.UpdateRolePermissionField{
		RoleID:       roleID,
		PermissionID: permissionID,
		FieldID:      fieldID,
		Effect:       req.Effect,
	})
	status, err := res.Unwrap()
	if err != nil {
		helpers.RespondError(w, r, err)
		return
	}
	helpers.Respond(w, http.StatusOK, status)
}

func (s *Server) revokeRolePermissionField(w http.ResponseWriter, r *http.Request) {
	roleID, permissionID, fieldID, err := fieldTripleParams(r)
	if err != nil {
		helpers.RespondError(w, r, err)
		return
	}

	res := s.commands.Dispatch(r.Context(), policy.FromContext(r.Context()), command.RevokeRolePermissionField{
		RoleID:       roleID,
		PermissionID: permissionID,
		FieldID:      fieldID,
	})
	if _, err := res.Unwrap(); err != nil {
		helpers.RespondError(w, r, err)
		return
	}
	helpers.Respond(w, http.StatusNoContent, nil)
}

func rolePairParams(r *http.Request) (roleID, userID uuid.UUID, err error) {
	if roleID, err = pathUUID(r, "role_id"); err != nil {
		return
	}
	userID, err = pathUUID(r, "user_id")
	return
}

func fieldTripleParams(r *http.Request) (roleID, permissionID, fieldID uuid.UUID, err error) {
	if roleID, err = pathUUID(r, "role_id"); err != nil {
		return
	}
	if permissionID, err = pathUUID(r, "permission_id"); err != nil {
		return
	}
	fieldID, err = pathUUID(r, "field_id")
	return
}

func decodeEffect(r *http.Request) (fieldEffectRequest, error) {
	var req fieldEffectRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		return req, err
	}
	if req.Effect != domain.EffectAllow && req.Effect != domain.EffectDeny {
		return req, apperr.Unprocessable("Effect must be allow or deny")
	}
	return req, nil
}
