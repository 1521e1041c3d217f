package lobby

// ConnState is the lifecycle of one lobby connection.
type ConnState int32

const (
	StateUnauthenticated ConnState = iota // TCP connected, Login not yet accepted
	StateAuthenticated                    // registered in the lobby
	StateDraining                         // teardown started, flushing the mailbox
)

func (s ConnState) String() string {
	switch s {
	case StateUnauthenticated:
		return "UNAUTHENTICATED"
	case StateAuthenticated:
		return "AUTHENTICATED"
	case StateDraining:
		return "DRAINING"
	default:
		return "UNKNOWN"
	}
}
