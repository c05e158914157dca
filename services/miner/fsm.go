package miner

import (
	"github.com/looplab/fsm"
)

// States of the mining loop.
const (
	StateIdle        = "IDLE"
	StateRegistering = "REGISTERING"
	StateRoundStart  = "ROUND_START"
	StateSearching   = "SEARCHING"
	StateTargeting   = "TARGETING"
	StateSubmitting  = "SUBMITTING"
)

const (
	EventRegister   = "REGISTER"
	EventStartRound = "START_ROUND"
	EventSearch     = "SEARCH"
	EventTarget     = "TARGET"
	EventSubmit     = "SUBMIT"
	EventStop       = "STOP"
)

// NewFiniteStateMachine creates the state machine of the mining loop:
//
//	IDLE -> REGISTERING -> ROUND_START -> SEARCHING -> TARGETING -> SUBMITTING -> ROUND_START
//
// Targeting goes back to ROUND_START after an epoch reset or when no bus is eligible, and
// Submitting goes back to TARGETING to retry the same solutions. STOP returns to IDLE from
// anywhere.
func NewFiniteStateMachine(opts ...func(*fsm.FSM)) *fsm.FSM {
	finiteStateMachine := fsm.NewFSM(
		StateIdle,
		fsm.Events{
			{
				Name: EventRegister,
				Src:  []string{StateIdle, StateRoundStart},
				Dst:  StateRegistering,
			},
			{
				Name: EventStartRound,
				Src:  []string{StateRegistering, StateSearching, StateTargeting, StateSubmitting},
				Dst:  StateRoundStart,
			},
			{
				Name: EventSearch,
				Src:  []string{StateRoundStart},
				Dst:  StateSearching,
			},
			{
				Name: EventTarget,
				Src:  []string{StateSearching, StateSubmitting},
				Dst:  StateTargeting,
			},
			{
				Name: EventSubmit,
				Src:  []string{StateTargeting},
				Dst:  StateSubmitting,
			},
			{
				Name: EventStop,
				Src: []string{
					StateRegistering,
					StateRoundStart,
					StateSearching,
					StateTargeting,
					StateSubmitting,
				},
				Dst: StateIdle,
			},
		},
		fsm.Callbacks{},
	)

	for _, opt := range opts {
		opt(finiteStateMachine)
	}

	return finiteStateMachine
}
