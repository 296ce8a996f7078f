package domain

import "errors"

// Sentinel errors shared by the service, storage and repository layers.
// Handlers translate them to HTTP status codes.
var (
	ErrExamNotFound   = errors.New("exam not found")
	ErrUserNotFound   = errors.New("user not found")
	ErrObjectNotFound = errors.New("object not found in storage")
	ErrAlreadyExists  = errors.New("exam already exists")
	ErrStorage        = errors.New("storage operation failed")
	ErrDatabase       = errors.New("database error")
	ErrInvalidPDF     = errors.New("invalid PDF document")
	ErrNoFiles        = errors.New("no files provided")
	ErrInvalidInput   = errors.New("invalid input parameters")
)
