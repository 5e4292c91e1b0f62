package apperr

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// fromPG classifies driver errors. Missing rows map to not-found, integrity
// violations (SQLSTATE class 23) to conflict. Returns nil when err is not a
// Postgres error.
func fromPG(err error) *Error {
	if errors.Is(err, pgx.ErrNoRows) {
		return NotFound("Not found").WithCause(err)
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return nil
	}
	if len(pgErr.Code) >= 2 && pgErr.Code[:2] == "23" {
		return Conflict("Conflict").WithCode(pgErr.Code).WithCause(err)
	}
	return Internal("Internal server error").WithCode(pgErr.Code).WithCause(err)
}
