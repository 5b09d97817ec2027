package domain

// ExecutionStatus represents the lifecycle state of an execution or node execution
type ExecutionStatus string

const (
	StatusPending             ExecutionStatus = "PENDING"
	StatusRunning             ExecutionStatus = "RUNNING"
	StatusSuccess             ExecutionStatus = "SUCCESS"
	StatusFailed              ExecutionStatus = "FAILED"
	StatusCancelled           ExecutionStatus = "CANCELLED"
	StatusRetrying            ExecutionStatus = "RETRYING"
	StatusWaitingForSignature ExecutionStatus = "WAITING_FOR_SIGNATURE"
)

// validTransitions encodes the monotonic state machine. Terminal states have
// no outgoing edges.
var validTransitions = map[ExecutionStatus][]ExecutionStatus{
	StatusPending:             {StatusRunning, StatusCancelled},
	StatusRunning:             {StatusSuccess, StatusFailed, StatusCancelled, StatusRetrying, StatusWaitingForSignature},
	StatusRetrying:            {StatusRunning, StatusFailed, StatusCancelled},
	StatusWaitingForSignature: {StatusRunning, StatusFailed, StatusCancelled},
	StatusSuccess:             {},
	StatusFailed:              {},
	StatusCancelled:           {},
}

// IsTerminal returns true if the status is a terminal state
func (s ExecutionStatus) IsTerminal() bool {
	switch s {
	case StatusSuccess, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo returns true if the state machine allows moving to next
func (s ExecutionStatus) CanTransitionTo(next ExecutionStatus) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Valid returns true if the status is one of the seven known states
func (s ExecutionStatus) Valid() bool {
	_, ok := validTransitions[s]
	return ok
}
