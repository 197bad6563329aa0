// Package conn implements the connection state machine: the
// per-link object that carries a stream through pre-protocol handshake,
// authentication, and the established data-exchange tick loop, with
// sliding-window flow control on top (flowcontrol.go).
package conn

import "fmt"

// State is a position in the connection lifecycle: Idle ->
// Opening -> HandshakingPre -> Authenticating -> Established ->
// (Closing|Failed) -> Idle.
type State int

const (
	Idle State = iota
	Opening
	HandshakingPre
	Authenticating
	Established
	Closing
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Opening:
		return "opening"
	case HandshakingPre:
		return "handshaking_pre"
	case Authenticating:
		return "authenticating"
	case Established:
		return "established"
	case Closing:
		return "closing"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Role identifies which side opened the underlying stream: the initiator dialed out, the acceptor came from an end
// point's Accept loop.
type Role int

const (
	RoleInitiator Role = iota
	RoleAcceptor
)

func (r Role) String() string {
	if r == RoleAcceptor {
		return "accepted_by_end_point"
	}
	return "initiator"
}
