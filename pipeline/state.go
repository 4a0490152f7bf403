package pipeline

import "fmt"

// State is the progress of one configuration through its pipeline. States
// only move forward, except that any state may move to Aborted.
type State int

const (
	SetupPending State = iota
	SetupDone
	SplitSubmitted
	// SplitDone means the scheduler accepted the split array and returned
	// its job id.
	SplitDone
	MergeSplitsSubmitted
	MstepSubmitted
	MergeSubmitted
	EstepSubmitted
	Complete
	Aborted
)

var stateNames = [...]string{
	SetupPending:         "SETUP_PENDING",
	SetupDone:            "SETUP_DONE",
	SplitSubmitted:       "SPLIT_SUBMITTED",
	SplitDone:            "SPLIT_DONE",
	MergeSplitsSubmitted: "MERGE_SPLITS_SUBMITTED",
	MstepSubmitted:       "MSTEP_SUBMITTED",
	MergeSubmitted:       "MERGE_SUBMITTED",
	EstepSubmitted:       "ESTEP_SUBMITTED",
	Complete:             "COMPLETE",
	Aborted:              "ABORTED",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool { return s == Complete || s == Aborted }

// canAdvance reports whether from -> to is a legal transition.
func canAdvance(from, to State) bool {
	if from.Terminal() {
		return false
	}
	if to == Aborted {
		return true
	}
	return to > from
}
