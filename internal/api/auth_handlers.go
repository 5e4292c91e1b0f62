package api

import (
	"net/http"
	"strings"

	"github.com/wardenhq/warden/internal/api/helpers"
	"github.com/wardenhq/warden/internal/apperr"
	"github.com/wardenhq/warden/internal/auth"
	"github.com/wardenhq/warden/internal/command"
	"github.com/wardenhq/warden/internal/policy"
)

// refreshCookieName carries the raw refresh JWT between calls.
const refreshCookieName = "refresh"

type signupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Fingerprint string `json:"fingerprint"`
	Email       string `json:"email"`
	Password    string `json:"password"`
}

type fingerprintRequest struct {
	Fingerprint string `json:"fingerprint"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

func (s *Server) signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, r, err)
		return
	}

	res := s.commands.Dispatch(r.Context(), policy.FromContext(r.Context()), command.CreateUser{
		Email:    req.Email,
		Password: req.Password,
	})
	created, err := res.Unwrap()
	if err != nil {
		helpers.RespondError(w, r, err)
		return
	}
	helpers.Respond(w, http.StatusCreated, created)
}

// login issues a credential pair: the access token in the body, the refresh
// token as an HttpOnly cookie. Dispatched directly so credential flows never
// touch the response cache.
func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, r, err)
		return
	}

	res := s.commands.DispatchDirect(r.Context(), policy.FromContext(r.Context()), command.Login{
		Email:       req.Email,
		Password:    req.Password,
		Fingerprint: req.Fingerprint,
	})
	value, err := res.Unwrap()
	if err != nil {
		helpers.RespondError(w, r, err)
		return
	}

	pair := value.(auth.TokenPair)
	setRefreshCookie(w, pair.RefreshToken, int(pair.ExpiresIn))
	helpers.Respond(w, http.StatusOK, tokenResponse{Token: pair.AccessToken})
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	var req fingerprintRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, r, err)
		return
	}
	token, err := refreshTokenFrom(r)
	if err != nil {
		helpers.RespondError(w, r, err)
		return
	}

	res := s.commands.DispatchDirect(r.Context(), policy.FromContext(r.Context()), command.Logout{
		Fingerprint:  req.Fingerprint,
		RefreshToken: token,
	})
	status, err := res.Unwrap()
	if err != nil {
		helpers.RespondError(w, r, err)
		return
	}

	// The cookie is cleared even when no session matched.
	clearRefreshCookie(w)
	helpers.Respond(w, http.StatusOK, status)
}

func (s *Server) refresh(w http.ResponseWriter, r *http.Request) {
	var req fingerprintRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, r, err)
		return
	}
	token, err := refreshTokenFrom(r)
	if err != nil {
		helpers.RespondError(w, r, err)
		return
	}

	res := s.commands.DispatchDirect(r.Context(), policy.FromContext(r.Context()), command.Refresh{
		Fingerprint:  req.Fingerprint,
		RefreshToken: token,
	})
	value, err := res.Unwrap()
	if err != nil {
		helpers.RespondError(w, r, err)
		return
	}

	pair := value.(auth.TokenPair)
	setRefreshCookie(w, pair.RefreshToken, int(pair.ExpiresIn))
	helpers.Respond(w, http.StatusOK, tokenResponse{Token: pair.AccessToken})
}

// refreshTokenFrom reads the refresh token from the cookie, falling back to
// a bearer Authorization header for clients that cannot hold cookies.
func refreshTokenFrom(r *http.Request) (string, error) {
	if cookie, err := r.Cookie(refreshCookieName); err == nil && cookie.Value != "" {
		return cookie.Value, nil
	}
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", apperr.Unauthorized("Token is missing")
	}
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return "", apperr.Unauthorized("Invalid token provided")
	}
	return token, nil
}

func setRefreshCookie(w http.ResponseWriter, token string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	})
}

func clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	})
}
