// Package conduit implements the invitation conduit state machine: the
// per-token ephemeral rendezvous that pairs a greeter and a claimer through
// seven ordered states, plus the engine that drives talk/listen over it.
package conduit

// State is one of the seven conduit states, in protocol order.
type State string

const (
	State1WaitPeers          State = "STATE_1_WAIT_PEERS"
	State21ClaimerHashedNonce State = "STATE_2_1_CLAIMER_HASHED_NONCE"
	State22GreeterNonce      State = "STATE_2_2_GREETER_NONCE"
	State23ClaimerNonce      State = "STATE_2_3_CLAIMER_NONCE"
	State31ClaimerTrust      State = "STATE_3_1_CLAIMER_TRUST"
	State32GreeterTrust      State = "STATE_3_2_GREETER_TRUST"
	State4Communicate        State = "STATE_4_COMMUNICATE"
)

// next maps each state to its successor. STATE_4_COMMUNICATE loops to
// itself: every completed exchange at that state resets the slot for
// another round.
var next = map[State]State{
	State1WaitPeers:           State21ClaimerHashedNonce,
	State21ClaimerHashedNonce: State22GreeterNonce,
	State22GreeterNonce:       State23ClaimerNonce,
	State23ClaimerNonce:       State31ClaimerTrust,
	State31ClaimerTrust:       State32GreeterTrust,
	State32GreeterTrust:       State4Communicate,
	State4Communicate:         State4Communicate,
}

// Next returns the state that follows s.
func Next(s State) State {
	return next[s]
}

// Valid reports whether s is one of the seven defined states.
func Valid(s State) bool {
	_, ok := next[s]
	return ok
}

// Side identifies which party is calling into the engine.
type Side int

const (
	SideGreeter Side = iota
	SideClaimer
)

func (s Side) String() string {
	if s == SideGreeter {
		return "greeter"
	}
	return "claimer"
}
