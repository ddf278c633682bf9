package domain

import "fmt"

// TechnicalFailure is an operational error reported by the restaurant's
// system through the continuation path. It is not a business outcome: the
// restaurant did not decide anything, its integration broke.
type TechnicalFailure struct {
	Code  string
	Cause string
}

func (f *TechnicalFailure) Error() string {
	return fmt.Sprintf("restaurant technical failure %s: %s", f.Code, f.Cause)
}

// Decision is the resolved answer for a suspended workflow instance.
// Exactly one of the three variants is set: a business accept/reject, a
// technical failure, or a synthetic timeout. Keeping this a tagged union
// (rather than error-vs-value) means "restaurant rejected" and "restaurant
// system is down" stay distinguishable all the way to the resolver.
type Decision struct {
	accepted *bool
	failure  *TechnicalFailure
	timedOut bool
}

func BusinessDecision(accepted bool) Decision {
	return Decision{accepted: &accepted}
}

func FailureDecision(code, cause string) Decision {
	return Decision{failure: &TechnicalFailure{Code: code, Cause: cause}}
}

func TimeoutDecision() Decision {
	return Decision{timedOut: true}
}

func (d Decision) Accepted() (accepted, ok bool) {
	if d.accepted == nil {
		return false, false
	}
	return *d.accepted, true
}

func (d Decision) Failure() (*TechnicalFailure, bool) {
	return d.failure, d.failure != nil
}

func (d Decision) TimedOut() bool { return d.timedOut }

// TerminalStatus maps a non-failure decision to the order status it
// produces. Timeout and exhausted-retry resolutions both land here as
// TimeoutDecision; a technical failure has no terminal status of its own
// and must be handled before this point.
func (d Decision) TerminalStatus() Status {
	if accepted, ok := d.Accepted(); ok {
		if accepted {
			return StatusAccepted
		}
		return StatusRejected
	}
	return StatusTimedOut
}
