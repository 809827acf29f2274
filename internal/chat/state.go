package chat

// State is the lifecycle position of a chat request.
//
//	Idle -> Authenticating -> Rejected
//	                       -> AggregatingContext [-> ContextFailed] -> Streaming -> Completed | StreamError
type State string

const (
	StateIdle               State = "idle"
	StateAuthenticating     State = "authenticating"
	StateRejected           State = "rejected"
	StateAggregatingContext State = "aggregating_context"
	StateContextFailed      State = "context_failed"
	StateStreaming          State = "streaming"
	StateCompleted          State = "completed"
	StateStreamError        State = "stream_error"
)

// Terminal reports whether no further transition can follow s.
func (s State) Terminal() bool {
	switch s {
	case StateRejected, StateCompleted, StateStreamError:
		return true
	}
	return false
}
