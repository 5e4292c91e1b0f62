package helpers

import (
	"encoding/json"
	"net/http"

	"github.com/wardenhq/warden/internal/apperr"
)

// DecodeJSON decodes the request body into v with strict validation:
// unknown fields are rejected so payload pollution fails loudly instead of
// silently dropping data.
func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		return apperr.BadRequest("Invalid JSON payload").WithCause(err)
	}
	return nil
}
