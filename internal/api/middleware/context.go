package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/wardenhq/warden/internal/policy"
)

// maxBodyBytes caps how much of a request body is buffered for the context
// record. Larger bodies are rejected before any handler runs.
const maxBodyBytes = 1 << 20

// RequestContext builds the immutable request record every downstream
// middleware and handler reads from. JSON bodies are buffered so the field
// policy can inspect them and the handler can still decode them.
func RequestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rc := &policy.Context{
			RequestID:   GetRequestID(r.Context()),
			Method:      r.Method,
			Path:        r.URL.Path,
			URL:         r.URL.String(),
			QueryParams: r.URL.Query(),
		}

		if hasJSONBody(r) {
			body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
			if err != nil || len(body) > maxBodyBytes {
				http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			// A malformed body stays nil here; the handler's strict decode
			// reports it as a 400 with a useful message.
			var params map[string]any
			if json.Unmarshal(body, &params) == nil {
				rc.JSONParams = params
			}
		}

		ctx := policy.IntoContext(r.Context(), rc)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func hasJSONBody(r *http.Request) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return false
	}
	switch r.Method {
	case http.MethodPost, http.MethodPatch, http.MethodPut, http.MethodDelete:
	default:
		return false
	}
	ct := r.Header.Get("Content-Type")
	return ct == "" || strings.HasPrefix(ct, "application/json")
}
