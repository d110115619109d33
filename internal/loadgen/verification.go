package loadgen

import (
	"fmt"
	"strings"
)

// verify checks one 200, N-1 409 and a total that moved by the granted amount.
// A rerun against an already granted key expects zero 200s and no movement.
func verify(stats *Stats) error {
	var problems []string

	if stats.Failed > 0 || len(stats.OtherStatus) > 0 {
		problems = append(problems, fmt.Sprintf("%d transport failures, unexpected statuses %v", stats.Failed, stats.OtherStatus))
	}

	switch stats.Granted {
	case 1:
		if stats.Conflicts != stats.Requests-1 {
			problems = append(problems, fmt.Sprintf("want %d conflicts, got %d", stats.Requests-1, stats.Conflicts))
		}
		if delta := stats.TotalAfter - stats.TotalBefore; delta != stats.Amount {
			problems = append(problems, fmt.Sprintf("total moved by %d, want %d", delta, stats.Amount))
		}
	case 0:
		if stats.Conflicts != stats.Requests {
			problems = append(problems, fmt.Sprintf("no grant and only %d/%d conflicts", stats.Conflicts, stats.Requests))
		}
		if stats.TotalAfter != stats.TotalBefore {
			problems = append(problems, fmt.Sprintf("total moved by %d without a grant", stats.TotalAfter-stats.TotalBefore))
		}
	default:
		problems = append(problems, fmt.Sprintf("%d requests were granted", stats.Granted))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrVerification, strings.Join(problems, "; "))
	}
	return nil
}
