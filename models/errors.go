package models

import "errors"

// Store-level sentinels shared by the Mongo stores and their in-memory fakes.
var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate key")
)
