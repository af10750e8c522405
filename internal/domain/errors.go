package domain

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrInactive      = errors.New("character is not active")
	ErrInvalidInput  = errors.New("invalid input")
	ErrPromptMissing = errors.New("character prompt missing")
)
