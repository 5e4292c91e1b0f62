package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wardenhq/warden/internal/api/helpers"
	"github.com/wardenhq/warden/internal/apperr"
	"github.com/wardenhq/warden/internal/command"
	"github.com/wardenhq/warden/internal/domain"
	"github.com/wardenhq/warden/internal/policy"
	"github.com/wardenhq/warden/internal/query"
)

type updateUserRequest struct {
	Email    *string `json:"email"`
	Password *string `json:"password"`
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	res := s.queries.Dispatch(r.Context(), policy.FromContext(r.Context()), query.GetMe{})
	value, err := res.Unwrap()
	if err != nil {
		helpers.RespondError(w, r, err)
		return
	}
	helpers.Respond(w, http.StatusOK, value)
}

func (s *Server) getUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "user_id")
	if err != nil {
		helpers.RespondError(w, r, err)
		return
	}

	res := s.queries.Dispatch(r.Context(), policy.FromContext(r.Context()), query.GetUser{UserID: id})
	value, err := res.Unwrap()
	if err != nil {
		helpers.RespondError(w, r, err)
		return
	}
	helpers.Respond(w, http.StatusOK, value)
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	q := query.ListUsers{Page: pageQuery(r)}
	values := r.URL.Query()
	if email := values.Get("email"); email != "" {
		q.Email = &email
	}
	var err error
	if q.FromDate, err = dateParam(values.Get("from_date")); err != nil {
		helpers.RespondError(w, r, err)
		return
	}
	if q.ToDate, err = dateParam(values.Get("to_date")); err != nil {
		helpers.RespondError(w, r, err)
		return
	}

	res := s.queries.Dispatch(r.Context(), policy.FromContext(r.Context()), q)
	value, err := res.Unwrap()
	if err != nil {
		helpers.RespondError(w, r, err)
		return
	}
	helpers.Respond(w, http.StatusOK, value)
}

func (s *Server) updateUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "user_id")
	if err != nil {
		helpers.RespondError(w, r, err)
		return
	}
	var req updateUserRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, r, err)
		return
	}

	res := s.commands.Dispatch(r.Context(), policy.FromContext(r.Context()), command.UpdateUser{
		UserID:   id,
		Email:    req.Email,
		Password: req.Password,
	})
	status, err := res.Unwrap()
	if err != nil {
		helpers.RespondError(w, r, err)
		return
	}
	helpers.Respond(w, http.StatusOK, status)
}

func (s *Server) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "user_id")
	if err != nil {
		helpers.RespondError(w, r, err)
		return
	}

	res := s.commands.Dispatch(r.Context(), policy.FromContext(r.Context()), command.DeleteUser{UserID: id})
	if _, err := res.Unwrap(); err != nil {
		helpers.RespondError(w, r, err)
		return
	}
	helpers.Respond(w, http.StatusNoContent, nil)
}

// pathUUID parses a route parameter as a UUID.
func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	raw := chi.URLParam(r, name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperr.BadRequest("Invalid identifier in path")
	}
	return id, nil
}

// pageQuery reads pagination parameters, leaving clamping to Normalize.
func pageQuery(r *http.Request) domain.PageQuery {
	values := r.URL.Query()
	page, _ := strconv.Atoi(values.Get("page"))
	limit, _ := strconv.Atoi(values.Get("limit"))
	return domain.PageQuery{
		Page:    page,
		Limit:   limit,
		OrderBy: domain.SortOrder(values.Get("order_by")),
	}.Normalize()
}

// dateParam accepts RFC 3339 timestamps or bare dates.
func dateParam(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, apperr.BadRequest("Invalid date filter")
}
