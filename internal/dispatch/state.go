package dispatch

// State is the dispatcher lifecycle state
type State string

const (
	StateInitializing      State = "initializing"
	StateRunning           State = "running"
	StateExhausted         State = "exhausted"
	StateBatchLimitReached State = "batch_limit_reached"
	StateAborted           State = "aborted"
)
