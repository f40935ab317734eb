package models

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation error")
	ErrConfig     = errors.New("configuration error")
	ErrEncoding   = errors.New("encoding detection failed")

	ErrRateLimited   = errors.New("rate limit exceeded")
	ErrEmptyResponse = errors.New("empty response from model")
	ErrProvider      = errors.New("provider request failed")
)

// MissingColumnsError names every required column absent from a CSV header.
type MissingColumnsError struct {
	Missing []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("CSV missing required columns: %v", e.Missing)
}

// Is lets callers match the error against ErrValidation.
func (e *MissingColumnsError) Is(target error) bool {
	return target == ErrValidation
}
