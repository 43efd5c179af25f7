// Package sync drives the continuous pull from the centralized sequencer
// into local storage: one Loop per run, modeled directly on the
// teacher's erigon stage loop (other_examples' bobanetwork-erigon
// turbo/stages/stageloop.go StageLoop/StageLoopIteration), generalized
// from erigon's p2p-sourced staged sync to a single HTTP source pulling
// Starknet blocks, state diffs and classes in marker order.
package sync

// Phase is a loop iteration's current state machine position (spec §6).
type Phase uint8

const (
	PhaseIdle Phase = iota
	PhaseWaitingForPrerequisite
	PhasePlanningRange
	PhaseDownloading
	PhaseValidating
	PhaseCommitting
	PhaseReverting
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseWaitingForPrerequisite:
		return "waiting_for_prerequisite"
	case PhasePlanningRange:
		return "planning_range"
	case PhaseDownloading:
		return "downloading"
	case PhaseValidating:
		return "validating"
	case PhaseCommitting:
		return "committing"
	case PhaseReverting:
		return "reverting"
	default:
		return "unknown"
	}
}
