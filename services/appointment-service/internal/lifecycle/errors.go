package lifecycle

import "errors"

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrServiceNotFound   = errors.New("service not found")
	ErrForbidden         = errors.New("forbidden")
	ErrIllegalTransition = errors.New("illegal status transition")
	ErrNotFound          = errors.New("appointment not found")
	ErrConflict          = errors.New("concurrent modification")
	ErrStoreTimeout      = errors.New("store timeout")
)
