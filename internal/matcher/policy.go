package matcher

import (
	"strings"

	"github.com/anywhere-israel/hostmatch/internal/apperrors"
)

// Policy decides how hosts picked earlier in a run affect later requests.
type Policy string

const (
	// PolicyFirstEligible looks only at persisted capacity, so one host can be
	// offered to several requests in the same run.
	PolicyFirstEligible Policy = "first_eligible"
	// PolicyDeductCapacity tracks residual capacity per run and skips a host
	// once the residual no longer covers the request.
	PolicyDeductCapacity Policy = "deduct_capacity"
)

func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PolicyFirstEligible, nil
	case PolicyFirstEligible, PolicyDeductCapacity:
		return p, nil
	default:
		return "", apperrors.Validation("unknown matching policy %q", s)
	}
}

// ledger tracks capacity consumed by matches created in the current run.
type ledger struct {
	policy Policy
	used   map[string]int
}

func newLedger(policy Policy) *ledger {
	return &ledger{policy: policy, used: map[string]int{}}
}

func (l *ledger) fits(hostID string, capacity, guests int) bool {
	if l.policy != PolicyDeductCapacity {
		return true
	}
	return capacity-l.used[hostID] >= guests
}

func (l *ledger) take(hostID string, guests int) {
	l.used[hostID] += guests
}
