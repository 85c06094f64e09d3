package comments

import "errors"

var (
	ErrAuth        = errors.New("unauthorized")
	ErrValidation  = errors.New("validation failed")
	ErrNotFound    = errors.New("not found")
	ErrPermission  = errors.New("forbidden")
	ErrPersistence = errors.New("persistence failed")
)
