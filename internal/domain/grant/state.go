package grant

// State is a step of the grant state machine.
//
//	REQUESTED -> ELIGIBLE_CHECKED -> RESERVED -> GRANTED
//
// Every other state is terminal.
type State int

const (
	StateRequested State = iota
	StateEligibleChecked
	StateReserved
	StateGranted
	StateRejectedInvalid
	StateRejectedNotEligible
	StateRejectedAlreadyGranted
	StateFailedScoreRowMissing
	StateFailedDataSource
)

var stateNames = [...]string{
	StateRequested:              "REQUESTED",
	StateEligibleChecked:        "ELIGIBLE_CHECKED",
	StateReserved:               "RESERVED",
	StateGranted:                "GRANTED",
	StateRejectedInvalid:        "REJECTED_INVALID",
	StateRejectedNotEligible:    "REJECTED_NOT_ELIGIBLE",
	StateRejectedAlreadyGranted: "REJECTED_ALREADY_GRANTED",
	StateFailedScoreRowMissing:  "FAILED_SCORE_ROW_MISSING",
	StateFailedDataSource:       "FAILED_DATA_SOURCE",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "UNKNOWN"
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s >= StateGranted
}
