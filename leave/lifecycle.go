package leave

import "time"

// Action is a decision taken through an approval link.
type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
)

// Outcome classifies what a decision did.
type Outcome string

const (
	OutcomeApplied              Outcome = "applied"
	OutcomeAlreadyProcessed     Outcome = "already_processed"
	OutcomeCannotRejectApproved Outcome = "cannot_reject_approved"
	OutcomeNotFound             Outcome = "not_found"
)

// Transition returns the status after applying action to current.
// Terminal states never change.
//
//	pending  + approve -> approved (applied)
//	pending  + reject  -> rejected (applied)
//	approved + approve -> approved (already_processed)
//	approved + reject  -> approved (cannot_reject_approved)
//	rejected + *       -> rejected (already_processed)
func Transition(current Status, action Action) (Status, Outcome) {
	switch current {
	case StatusApproved:
		if action == ActionReject {
			return StatusApproved, OutcomeCannotRejectApproved
		}
		return StatusApproved, OutcomeAlreadyProcessed
	case StatusRejected:
		return StatusRejected, OutcomeAlreadyProcessed
	}

	if action == ActionApprove {
		return StatusApproved, OutcomeApplied
	}
	return StatusRejected, OutcomeApplied
}

// stamp writes the decision fields for a freshly applied transition.
func stamp(r *Request, to Status, at time.Time, actor, reason string) {
	r.Status = to
	switch to {
	case StatusApproved:
		r.ApprovedAt = &at
		r.ApprovedBy = actor
	case StatusRejected:
		r.RejectedAt = &at
		r.RejectedBy = actor
		r.RejectionReason = reason
	}
}
