package model

import (
	"encoding/json"
	"fmt"
)

// Termination represents why a crawl run stopped.
// Every crawl ends with exactly one of these reasons; all of them except
// TerminationCanceled are successful outcomes.
//
// Design decision: We use iota-based constants rather than string constants
// for efficiency in comparisons, with String() and JSON marshalling providing
// the stable textual form used by reports and the database.
type Termination int

const (
	// TerminationQuiescent means the frontier went empty: the last completed
	// wave discovered no new URLs, so there was nothing left to crawl.
	TerminationQuiescent Termination = iota

	// TerminationDepthExhausted means the configured maximum depth was
	// reached and deeper waves were not scheduled.
	TerminationDepthExhausted

	// TerminationTimedOut means the crawl's time-box expired. The pages
	// collected before expiry are still a complete, valid result.
	TerminationTimedOut

	// TerminationPageLimit means the configured page budget was reached at
	// a wave boundary.
	TerminationPageLimit

	// TerminationCanceled means the caller's context was cancelled, for
	// example by an interrupt signal. The report carries whatever pages
	// finished before cancellation.
	TerminationCanceled
)

// terminationNames maps termination reasons to their stable textual form.
// These strings appear in reports and database rows, so they must not change.
var terminationNames = map[Termination]string{
	TerminationQuiescent:      "quiescent",
	TerminationDepthExhausted: "depth-exhausted",
	TerminationTimedOut:       "timed-out",
	TerminationPageLimit:      "page-limit",
	TerminationCanceled:       "canceled",
}

// String returns the stable textual form of the termination reason.
func (t Termination) String() string {
	if name, ok := terminationNames[t]; ok {
		return name
	}
	return "unknown"
}

// ParseTermination converts the textual form back to a Termination.
// Unknown strings return an error so corrupt database rows surface loudly.
func ParseTermination(s string) (Termination, error) {
	for term, name := range terminationNames {
		if name == s {
			return term, nil
		}
	}
	return 0, fmt.Errorf("unknown termination reason %q", s)
}

// MarshalJSON encodes the termination reason as its textual form.
func (t Termination) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON decodes the textual form produced by MarshalJSON.
func (t *Termination) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	term, err := ParseTermination(s)
	if err != nil {
		return err
	}
	*t = term
	return nil
}
