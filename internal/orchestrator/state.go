package orchestrator

// State is the lifecycle phase of an Orchestrator
type State int

const (
	// StateInstantiated: topology validated, channels allocated, not every
	// controller handle exported yet
	StateInstantiated State = iota
	// StateInitialized: the controller holds every handle; Start may run
	StateInitialized
	// StateRunning: node units were spawned
	StateRunning
)

func (s State) String() string {
	switch s {
	case StateInstantiated:
		return "instantiated"
	case StateInitialized:
		return "initialized"
	case StateRunning:
		return "running"
	}
	return "unknown"
}

// export identifies one controller handle
type export uint8

const (
	exportDataChannels export = 1 << iota
	exportEventReceiver
	exportCommandSenders

	exportAll = exportDataChannels | exportEventReceiver | exportCommandSenders
)
