// internal/reconfig/state.go
package reconfig

// State of a reconfiguration.
type State uint8

const (
	Idle State = iota
	SendingChangeCommand
	AwaitingAck
	ReopeningTransport
	Verifying
	Committed
	RolledBack

	// Ambiguous: the device acknowledged the change but could not be reached
	// afterwards. Its actual address and baud are unknown.
	Ambiguous
)

var stateNames = [...]string{
	Idle:                 "idle",
	SendingChangeCommand: "sending-change-command",
	AwaitingAck:          "awaiting-ack",
	ReopeningTransport:   "reopening-transport",
	Verifying:            "verifying",
	Committed:            "committed",
	RolledBack:           "rolled-back",
	Ambiguous:            "ambiguous",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Terminal reports whether no further transition follows s.
func (s State) Terminal() bool {
	return s == Committed || s == RolledBack || s == Ambiguous
}
