package collector

// State is one step of the collection cycle.
type State uint8

const (
	StateIdle State = iota
	StateCheckingDisk
	StateSampling
	StateNormalizing
	StatePersisting
	StateRotating
	StateSleeping
	StateStopped
)

var stateNames = [...]string{
	StateIdle:         "idle",
	StateCheckingDisk: "checking_disk",
	StateSampling:     "sampling",
	StateNormalizing:  "normalizing",
	StatePersisting:   "persisting",
	StateRotating:     "rotating",
	StateSleeping:     "sleeping",
	StateStopped:      "stopped",
}

// String returns stable lower-case state name.
// Params: none.
// Returns: state name or "unknown".
func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// MarshalText encodes state as its name in JSON payloads.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
