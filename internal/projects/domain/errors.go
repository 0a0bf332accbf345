package domain

import (
	"errors"
	"fmt"
)

var (
	ErrProjectNotFound      = errors.New("project not found")
	ErrEmptyName            = errors.New("name cannot be empty")
	ErrInvalidBudget        = errors.New("budget must not be negative")
	ErrInvalidPaymentTerm   = errors.New("payment term must not be negative")
	ErrUnknownStage         = errors.New("unknown stage status")
	ErrUnknownSpecialStatus = errors.New("unknown special status")

	// ErrInvalidTransition covers every rejection caused by the project's
	// own state, such as the cancellation block.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrPaymentPending blocks completion while documents are unpaid.
	ErrPaymentPending = errors.New("payment pending")
	// ErrConfirmationRequired is returned when a consequential change was
	// requested without confirmation.
	ErrConfirmationRequired = errors.New("confirmation required")
	// ErrHistoryWriteFailure aborts a transition whose audit record could
	// not be written.
	ErrHistoryWriteFailure = errors.New("status history write failed")
)

// ReasonCode classifies a validator outcome.
type ReasonCode string

const (
	ReasonNone                  ReasonCode = ""
	ReasonBlockedByCancellation ReasonCode = "BLOCKED_BY_CANCELLATION"
	ReasonPaymentPending        ReasonCode = "PAYMENT_PENDING"
	ReasonNoOp                  ReasonCode = "NO_OP"
	ReasonConfirmationRequired  ReasonCode = "CONFIRMATION_REQUIRED"
	ReasonRevert                ReasonCode = "REVERT_REMOVES_PENDING_INVOICES"
	ReasonStageRevert           ReasonCode = "STAGE_REVERT"
	ReasonConsequentialStage    ReasonCode = "CONSEQUENTIAL_STAGE"
)

// TransitionError is a rejected stage or special-status change.
type TransitionError struct {
	Code    ReasonCode
	Message string
	// Unpaid is set for PAYMENT_PENDING.
	Unpaid []UnpaidDocument
}

func (e *TransitionError) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is maps reason codes onto the sentinel taxonomy.
func (e *TransitionError) Is(target error) bool {
	switch target {
	case ErrPaymentPending:
		return e.Code == ReasonPaymentPending
	case ErrConfirmationRequired:
		return e.Code == ReasonConfirmationRequired
	case ErrInvalidTransition:
		return e.Code == ReasonBlockedByCancellation
	default:
		return false
	}
}

// SideEffectError is a failed financial-document write.
type SideEffectError struct {
	Op    string
	Err   error
	Fatal bool
}

func (e *SideEffectError) Error() string {
	return fmt.Sprintf("side effect %s failed: %v", e.Op, e.Err)
}

func (e *SideEffectError) Unwrap() error { return e.Err }
