package api

import (
	"errors"
	"net/http"

	billingDomain "github.com/felixgeelhaar/slate/internal/billing/domain"
	identityDomain "github.com/felixgeelhaar/slate/internal/identity/domain"
	"github.com/felixgeelhaar/slate/internal/projects/domain"
)

// Error codes that are not transition reason codes.
const (
	CodeBadRequest   = "BAD_REQUEST"
	CodeValidation   = "VALIDATION_FAILED"
	CodeNotFound     = "NOT_FOUND"
	CodeUnknownUser  = "UNKNOWN_USER"
	CodeAlreadyPaid  = "ALREADY_PAID"
	CodeHistoryWrite = "HISTORY_WRITE_FAILURE"
	CodeSideEffect   = "SIDE_EFFECT_FAILED"
	CodeInternal     = "INTERNAL_ERROR"
)

// ErrorBody is the payload of an error response.
type ErrorBody struct {
	Code    string                  `json:"code"`
	Message string                  `json:"message"`
	Unpaid  []domain.UnpaidDocument `json:"unpaid,omitempty"`
}

// ErrorResponse wraps ErrorBody as {"error": {...}}.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

var validationErrors = []error{
	domain.ErrUnknownStage,
	domain.ErrUnknownSpecialStatus,
	domain.ErrEmptyName,
	domain.ErrInvalidBudget,
	domain.ErrInvalidPaymentTerm,
	billingDomain.ErrInvalidAmount,
	billingDomain.ErrDueBeforeIssue,
	billingDomain.ErrUnknownDocumentType,
	identityDomain.ErrInvalidEmail,
	identityDomain.ErrEmptyName,
	identityDomain.ErrNameTooLong,
}

// classify maps an application error to a status and body.
func classify(err error) (int, ErrorBody) {
	var terr *domain.TransitionError
	if errors.As(err, &terr) {
		status := http.StatusConflict
		if terr.Code == domain.ReasonConfirmationRequired {
			status = http.StatusPreconditionRequired
		}
		return status, ErrorBody{Code: string(terr.Code), Message: terr.Message, Unpaid: terr.Unpaid}
	}

	switch {
	case errors.Is(err, domain.ErrProjectNotFound), errors.Is(err, billingDomain.ErrDocumentNotFound):
		return http.StatusNotFound, ErrorBody{Code: CodeNotFound, Message: err.Error()}
	case errors.Is(err, identityDomain.ErrUserNotFound):
		return http.StatusForbidden, ErrorBody{Code: CodeUnknownUser, Message: err.Error()}
	case errors.Is(err, billingDomain.ErrAlreadyPaid):
		return http.StatusConflict, ErrorBody{Code: CodeAlreadyPaid, Message: err.Error()}
	case errors.Is(err, domain.ErrHistoryWriteFailure):
		return http.StatusInternalServerError, ErrorBody{Code: CodeHistoryWrite, Message: "status history could not be written"}
	}

	var se *domain.SideEffectError
	if errors.As(err, &se) {
		return http.StatusInternalServerError, ErrorBody{Code: CodeSideEffect, Message: se.Error()}
	}

	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return http.StatusBadRequest, ErrorBody{Code: CodeValidation, Message: err.Error()}
		}
	}
	return http.StatusInternalServerError, ErrorBody{Code: CodeInternal, Message: "internal server error"}
}

// writeError writes the error envelope.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: ErrorBody{Code: code, Message: message}})
}
