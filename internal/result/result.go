// Package result provides a two-channel return type used by repositories
// and use-case handlers. A Result carries either a value or an error, never
// both, and forces the caller to decide at the point of use.
package result

// Result holds a value of type T or the error that prevented producing it.
type Result[T any] struct {
	value T
	err   error
}

// Ok wraps a successful value.
func Ok[T any](v T) Result[T] {
	return Result[T]{value: v}
}

// Err wraps a failure. A nil err produces an Ok result with the zero value.
func Err[T any](err error) Result[T] {
	return Result[T]{err: err}
}

// From converts a conventional (value, error) pair.
func From[T any](v T, err error) Result[T] {
	if err != nil {
		return Err[T](err)
	}
	return Ok(v)
}

// IsOk reports whether the result holds a value.
func (r Result[T]) IsOk() bool { return r.err == nil }

// IsErr reports whether the result holds an error.
func (r Result[T]) IsErr() bool { return r.err != nil }

// Unwrap returns the value and error as a conventional pair.
func (r Result[T]) Unwrap() (T, error) { return r.value, r.err }

// Err returns the held error, nil for Ok results.
func (r Result[T]) Err() error { return r.err }

// UnwrapOr returns the value, or fallback when the result is an error.
func (r Result[T]) UnwrapOr(fallback T) T {
	if r.err != nil {
		return fallback
	}
	return r.value
}

// UnwrapOrElse returns the value, or the output of fn applied to the error.
func (r Result[T]) UnwrapOrElse(fn func(error) T) T {
	if r.err != nil {
		return fn(r.err)
	}
	return r.value
}

// UnwrapOrRaise returns the value, or substitutes err as the failure.
// Callers use it to replace an infrastructure error with a caller-facing
// one; the original stays reachable through errors.Is and errors.As.
func (r Result[T]) UnwrapOrRaise(err error) (T, error) {
	if r.err != nil {
		var zero T
		return zero, &raised{err: err, cause: r.err}
	}
	return r.value, nil
}

// raised carries the substitute error and the failure it replaced.
type raised struct {
	err   error
	cause error
}

func (e *raised) Error() string { return e.err.Error() }

// Unwrap exposes both errors so the substitute drives matching while the
// cause chain survives.
func (e *raised) Unwrap() []error { return []error{e.err, e.cause} }

// MapErr transforms the error of a failed result, leaving Ok results alone.
func (r Result[T]) MapErr(fn func(error) error) Result[T] {
	if r.err == nil {
		return r
	}
	return Err[T](fn(r.err))
}

// Map transforms the value of an Ok result.
func Map[T, U any](r Result[T], fn func(T) U) Result[U] {
	if r.err != nil {
		return Err[U](r.err)
	}
	return Ok(fn(r.value))
}

// AndThen chains a fallible transformation onto an Ok result.
func AndThen[T, U any](r Result[T], fn func(T) Result[U]) Result[U] {
	if r.err != nil {
		return Err[U](r.err)
	}
	return fn(r.value)
}
