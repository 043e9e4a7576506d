package model

import "time"

// OutcomeCategory classifies how a turn ended.
type OutcomeCategory string

const (
	OutcomePrompt         OutcomeCategory = "prompt"
	OutcomeInvalid        OutcomeCategory = "invalid"
	OutcomeContinued      OutcomeCategory = "continued"
	OutcomeSuccess        OutcomeCategory = "success"
	OutcomeKnownFailure   OutcomeCategory = "known_failure"
	OutcomeUnknownFailure OutcomeCategory = "unknown_failure"
	OutcomeCancelled      OutcomeCategory = "cancelled"
	// OutcomeIgnored is a turn that changed nothing (stray text, nothing to cancel, guidance).
	OutcomeIgnored OutcomeCategory = "ignored"
)

// Terminal reports whether the category ends a flow.
func (c OutcomeCategory) Terminal() bool {
	switch c {
	case OutcomeSuccess, OutcomeKnownFailure, OutcomeUnknownFailure:
		return true
	}
	return false
}

// Operation is the audit record of one terminal action. Secrets never land here.
type Operation struct {
	ID        string
	UserID    int64
	Flow      FlowID
	ND        string
	Outcome   OutcomeCategory
	Detail    string
	CreatedAt time.Time
}
