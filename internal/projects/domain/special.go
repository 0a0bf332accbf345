package domain

import "fmt"

// SpecialStatus is the condition flag overlaid on a project's stage.
// Exactly one value is set at a time; setting one replaces the other.
type SpecialStatus string

const (
	SpecialNone     SpecialStatus = "none"
	SpecialDelayed  SpecialStatus = "delayed"
	SpecialPaused   SpecialStatus = "paused"
	SpecialCanceled SpecialStatus = "canceled"
)

// SpecialStatuses lists every value.
func SpecialStatuses() []SpecialStatus {
	return []SpecialStatus{SpecialNone, SpecialDelayed, SpecialPaused, SpecialCanceled}
}

// ParseSpecialStatus validates s. The empty string means none.
func ParseSpecialStatus(s string) (SpecialStatus, error) {
	if s == "" {
		return SpecialNone, nil
	}
	status := SpecialStatus(s)
	if !status.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownSpecialStatus, s)
	}
	return status, nil
}

func (s SpecialStatus) String() string { return string(s) }

func (s SpecialStatus) IsValid() bool {
	switch s {
	case SpecialNone, SpecialDelayed, SpecialPaused, SpecialCanceled:
		return true
	default:
		return false
	}
}

// BlocksStageChange is true only for canceled. Delayed and paused are advisory.
func (s SpecialStatus) BlocksStageChange() bool {
	switch s {
	case SpecialCanceled:
		return true
	case SpecialNone, SpecialDelayed, SpecialPaused:
		return false
	default:
		return false
	}
}

func (s SpecialStatus) Label() string {
	switch s {
	case SpecialNone:
		return "None"
	case SpecialDelayed:
		return "Delayed"
	case SpecialPaused:
		return "Paused"
	case SpecialCanceled:
		return "Canceled"
	default:
		return string(s)
	}
}
