package domain

import "errors"

var (
	ErrDocumentNotFound    = errors.New("financial document not found")
	ErrAlreadyPaid         = errors.New("document is already paid")
	ErrInvalidAmount       = errors.New("amount must not be negative")
	ErrDueBeforeIssue      = errors.New("due date is before issue date")
	ErrUnknownDocumentType = errors.New("unknown document type")
)
