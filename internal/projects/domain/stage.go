package domain

import "fmt"

// StageStatus is a project's position in the production pipeline.
type StageStatus string

const (
	StageProposal      StageStatus = "proposal"
	StageAccepted      StageStatus = "accepted"
	StagePreProduction StageStatus = "pre_production"
	StageProduction    StageStatus = "production"
	StagePostReview    StageStatus = "post_review"
	StageDelivered     StageStatus = "delivered"
	StageCompleted     StageStatus = "completed"
)

// Stages lists the pipeline in order.
func Stages() []StageStatus {
	return []StageStatus{
		StageProposal,
		StageAccepted,
		StagePreProduction,
		StageProduction,
		StagePostReview,
		StageDelivered,
		StageCompleted,
	}
}

// ParseStageStatus validates s.
func ParseStageStatus(s string) (StageStatus, error) {
	stage := StageStatus(s)
	if !stage.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownStage, s)
	}
	return stage, nil
}

func (s StageStatus) String() string { return string(s) }

// IsValid reports whether s is a pipeline stage.
func (s StageStatus) IsValid() bool {
	return s.Rank() >= 0
}

// Rank orders the pipeline; unknown values rank -1.
func (s StageStatus) Rank() int {
	switch s {
	case StageProposal:
		return 0
	case StageAccepted:
		return 1
	case StagePreProduction:
		return 2
	case StageProduction:
		return 3
	case StagePostReview:
		return 4
	case StageDelivered:
		return 5
	case StageCompleted:
		return 6
	default:
		return -1
	}
}

// Label is the display name.
func (s StageStatus) Label() string {
	switch s {
	case StageProposal:
		return "Proposal"
	case StageAccepted:
		return "Accepted"
	case StagePreProduction:
		return "Pre-production"
	case StageProduction:
		return "Production"
	case StagePostReview:
		return "Post-review"
	case StageDelivered:
		return "Delivered"
	case StageCompleted:
		return "Completed"
	default:
		return string(s)
	}
}

// RequiresConfirmationToEnter is true for stages whose entry is consequential
// and user-facing, whichever direction the project arrives from.
func (s StageStatus) RequiresConfirmationToEnter() bool {
	switch s {
	case StageDelivered, StageCompleted:
		return true
	case StageProposal, StageAccepted, StagePreProduction, StageProduction, StagePostReview:
		return false
	default:
		return false
	}
}

// RequiresPaymentGate is true only for the terminal stage.
func (s StageStatus) RequiresPaymentGate() bool {
	switch s {
	case StageCompleted:
		return true
	case StageProposal, StageAccepted, StagePreProduction, StageProduction, StagePostReview, StageDelivered:
		return false
	default:
		return false
	}
}

// IsBilled is true from acceptance onwards: a project at such a stage is
// expected to carry an invoice.
func (s StageStatus) IsBilled() bool {
	return s.Rank() >= StageAccepted.Rank()
}

// AllowedTargets lists the stages a project at s may be asked to move to.
// Whether the move is accepted still depends on the special status and, for
// completion, on payment.
func (s StageStatus) AllowedTargets() []StageStatus {
	if !s.IsValid() {
		return nil
	}
	var out []StageStatus
	for _, t := range Stages() {
		if t != s {
			out = append(out, t)
		}
	}
	return out
}

// IsForward reports whether moving from -> to advances the pipeline.
func IsForward(from, to StageStatus) bool {
	return to.Rank() > from.Rank()
}

// EntersBilling reports whether from -> to crosses into acceptance.
func EntersBilling(from, to StageStatus) bool {
	return !from.IsBilled() && to.IsBilled()
}

// LeavesBilling reports whether from -> to reverts below acceptance.
func LeavesBilling(from, to StageStatus) bool {
	return from.IsBilled() && !to.IsBilled()
}
