package domain

// State is a step of the per-request orchestration state machine.
type State string

const (
	StatePending        State = "PENDING"
	StateGated          State = "GATED"
	StateCacheChecked   State = "CACHE_CHECKED"
	StateCacheHit       State = "CACHE_HIT"
	StateEngineSelected State = "ENGINE_SELECTED"
	StateFetching       State = "FETCHING"
	StateStored         State = "STORED"
	StateDone           State = "DONE"
	StateFailed         State = "FAILED"
)

var transitions = map[State][]State{
	StatePending:        {StateGated, StateFailed},
	StateGated:          {StateCacheChecked, StateFailed},
	StateCacheChecked:   {StateCacheHit, StateEngineSelected, StateFailed},
	StateCacheHit:       {StateDone},
	StateEngineSelected: {StateFetching, StateFailed},
	StateFetching:       {StateStored, StateCacheHit, StateFailed},
	StateStored:         {StateDone},
}

// CanTransition reports whether moving from s to next is legal.
func (s State) CanTransition(next State) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}
