package room

import "errors"

var (
	ErrAlreadyExists = errors.New("room already exists")
	ErrNotFound      = errors.New("not found")
)
