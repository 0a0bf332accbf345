package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// UnpaidDocument is the summary of an outstanding financial document shown
// to the user when completion is blocked.
type UnpaidDocument struct {
	ID           uuid.UUID  `json:"id"`
	DocumentType string     `json:"document_type"`
	AmountMinor  int64      `json:"amount_minor"`
	Currency     string     `json:"currency"`
	DueDate      *time.Time `json:"due_date,omitempty"`
}

// GateResult is the payment gate's answer for one project.
type GateResult struct {
	OK bool
	// NoDocuments is set when the project has no financial documents at all.
	NoDocuments bool
	Unpaid      []UnpaidDocument
}

// PaymentGate decides whether a project may be completed.
type PaymentGate interface {
	CanComplete(ctx context.Context, projectID uuid.UUID) (GateResult, error)
}

// TransitionKind classifies an accepted transition.
type TransitionKind string

const (
	TransitionNone    TransitionKind = "none"
	TransitionForward TransitionKind = "forward"
	TransitionRevert  TransitionKind = "revert"
)

// Outcome is the validator's classification of a requested stage change.
type Outcome struct {
	Allowed              bool
	RequiresConfirmation bool
	Kind                 TransitionKind
	ReasonCode           ReasonCode
	Message              string
	Unpaid               []UnpaidDocument
}

// Err converts a disallowed outcome into a TransitionError. It returns nil
// for allowed outcomes and for no-ops.
func (o Outcome) Err() error {
	if o.Allowed || o.ReasonCode == ReasonNoOp {
		return nil
	}
	return &TransitionError{Code: o.ReasonCode, Message: o.Message, Unpaid: o.Unpaid}
}

// IsNoOp reports whether the request targeted the current stage.
func (o Outcome) IsNoOp() bool { return o.ReasonCode == ReasonNoOp }

// ValidatorPolicy tunes which accepted transitions need confirmation.
type ValidatorPolicy struct {
	RevertRequiresConfirmation bool
}

// DefaultValidatorPolicy requires confirmation for every revert.
func DefaultValidatorPolicy() ValidatorPolicy {
	return ValidatorPolicy{RevertRequiresConfirmation: true}
}

// Validator classifies stage change requests. It has no side effects apart
// from the read-only payment gate query.
type Validator struct {
	gate   PaymentGate
	policy ValidatorPolicy
}

// NewValidator creates a validator.
func NewValidator(gate PaymentGate, policy ValidatorPolicy) *Validator {
	return &Validator{gate: gate, policy: policy}
}

// Validate applies the transition rules in order: cancellation block, no-op,
// revert, completion gate, forward step.
func (v *Validator) Validate(ctx context.Context, p *Project, target StageStatus) (Outcome, error) {
	if !target.IsValid() {
		return Outcome{}, fmt.Errorf("%w: %q", ErrUnknownStage, target)
	}

	current := p.Stage()

	if p.SpecialStatus().BlocksStageChange() {
		return Outcome{
			Kind:       TransitionNone,
			ReasonCode: ReasonBlockedByCancellation,
			Message:    "canceled projects cannot change stage",
		}, nil
	}

	if target == current {
		return Outcome{
			Kind:       TransitionNone,
			ReasonCode: ReasonNoOp,
			Message:    fmt.Sprintf("project is already at %s", current.Label()),
		}, nil
	}

	if !IsForward(current, target) {
		out := Outcome{
			Allowed:              true,
			Kind:                 TransitionRevert,
			RequiresConfirmation: v.policy.RevertRequiresConfirmation || target.RequiresConfirmationToEnter(),
		}
		if LeavesBilling(current, target) {
			out.ReasonCode = ReasonRevert
			out.Message = "reverting removes associated pending invoices"
		} else {
			out.ReasonCode = ReasonStageRevert
			out.Message = fmt.Sprintf("moving back to %s", target.Label())
		}
		return out, nil
	}

	if target.RequiresPaymentGate() {
		out, err := v.gateOutcome(ctx, p)
		if err != nil {
			return Outcome{}, err
		}
		if out != nil {
			return *out, nil
		}
	}

	out := Outcome{Allowed: true, Kind: TransitionForward}
	if target.RequiresConfirmationToEnter() {
		out.RequiresConfirmation = true
		out.ReasonCode = ReasonConsequentialStage
		out.Message = fmt.Sprintf("confirm moving to %s", target.Label())
	}
	return out, nil
}

// RecheckPaymentGate re-runs the completion gate after the transition's own
// side effects, so a jump that issues an invoice cannot complete with it
// unpaid. It returns nil when target is not gated or the gate passes.
func (v *Validator) RecheckPaymentGate(ctx context.Context, p *Project, target StageStatus) error {
	if !target.RequiresPaymentGate() {
		return nil
	}
	out, err := v.gateOutcome(ctx, p)
	if err != nil {
		return err
	}
	if out != nil {
		return out.Err()
	}
	return nil
}

func (v *Validator) gateOutcome(ctx context.Context, p *Project) (*Outcome, error) {
	res, err := v.gate.CanComplete(ctx, p.ID())
	if err != nil {
		return nil, fmt.Errorf("payment gate: %w", err)
	}
	if res.OK {
		return nil, nil
	}
	msg := "all financial documents must be paid before completion"
	if res.NoDocuments {
		msg = "project has no financial documents"
	}
	return &Outcome{
		Kind:       TransitionForward,
		ReasonCode: ReasonPaymentPending,
		Message:    msg,
		Unpaid:     res.Unpaid,
	}, nil
}
