package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrFileTooLarge       = errors.New("file too large")
	ErrInvalidFileType    = errors.New("invalid file type")
	ErrReadFailed         = errors.New("reading file failed")
	ErrSubmissionRejected = errors.New("setup submission rejected")
	ErrNetwork            = errors.New("network error")
	ErrNotAuthenticated   = errors.New("not authenticated")
	ErrSubmitInProgress   = errors.New("submission already in progress")
)

// ValidationError is a user-correctable input problem.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// RejectedError is a non-success answer from the setup endpoint.
type RejectedError struct {
	StatusCode int
	Message    string
}

func (e *RejectedError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("setup rejected with status %d", e.StatusCode)
}

func (e *RejectedError) Unwrap() error { return ErrSubmissionRejected }
