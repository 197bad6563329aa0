package conn

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iocafe/iocom-go/internal/wire"
	"github.com/iocafe/iocom-go/pkg/bufpool"
	"github.com/iocafe/iocom-go/pkg/iocstatus"
	"github.com/iocafe/iocom-go/pkg/mblk"
	"github.com/iocafe/iocom-go/pkg/registry"
	"github.com/iocafe/iocom-go/pkg/stream"
)

// Authenticator verifies a username/credential pair presented in an
// AUTHENTICATION_DATA frame. pkg/auth.PasswordAuthenticator satisfies this
// directly; JWTAuthenticator (auth.go) adapts the token path to the same
// shape.
type Authenticator interface {
	Authenticate(username, credential string) error
}

// DeviceNrAssigner resolves a device_nr for a peer that asked for automatic
// numbering: an AUTHENTICATION_DATA frame with device_nr 0.
// pkg/devicenr.Allocator satisfies this.
type DeviceNrAssigner interface {
	AssignDeviceNr(ctx context.Context, hasUniqueID bool, uniqueID [16]byte) (uint32, error)
}

// Config bundles the per-connection parameters that don't change once the
// connection is built: identity to present during auth, the credit limits
// flow control enforces, and the frame size cap used when chunking a
// snapshot across several ticks.
type Config struct {
	DeviceName  string
	NetworkName string
	DeviceNr    uint32
	UniqueID    [16]byte
	HasUniqueID bool

	MaxInAir            uint16
	MaxAckInAir         uint16
	UnacknowledgedLimit uint16
	MaxChunk            int

	Authenticator    Authenticator
	Password         string // presented credential when this side is the initiator
	DeviceNrAssigner DeviceNrAssigner
}

// pendingRemove is one outstanding REMOVE_MBLK_REQUEST waiting to be sent.
type pendingRemove struct {
	remoteMblkID uint32
}

// queuedMbinfo is one MBLK_INFO announcement waiting in the
// mbinfo_send_queue, carrying the announcing
// block's id for the frame header.
type queuedMbinfo struct {
	mblkID uint32
	frame  wire.MbinfoFrame
}

// Connection drives one stream through the lifecycle in state.go.
// Connection itself holds no lock of its own: registry lookups go through
// the owning registry.Registry's own locking methods, and calls into mblk
// blocks and buffers run inside Registry.WithLock, so Tick must not be
// called with the registry already locked.
type Connection struct {
	Role      Role
	Transport stream.Kind
	wireXport wire.Transport
	State     State

	stream   stream.Stream
	registry *registry.Registry
	cfg      Config

	inBuf  []byte
	outBuf []byte

	frameNrOut    byte
	frameNrIn     byte
	haveFrameNrIn bool

	Flow *FlowControl

	sourceIDs []uint32
	targetIDs []uint32
	rrCursor  int

	remoteToLocalTarget map[uint32]uint32 // remote mblk id -> local TargetBuf id

	mbinfoQueue []queuedMbinfo
	removeQueue []pendingRemove

	localHello  wire.HandshakeHello
	peerHello   wire.HandshakeHello
	helloSent   bool
	peerHelloOK bool

	authSent bool

	PeerDeviceName  string
	PeerNetworkName string
	PeerDeviceNr    uint32

	lastSend    time.Time
	lastReceive time.Time

	// OnMbinfo is invoked whenever a peer's MBLK_INFO system frame is
	// decoded, with the announcing side's block id from the frame header;
	// pkg/discovery wires this to materialize dynamic blocks and build its
	// network/signal tables.
	OnMbinfo func(c *Connection, remoteMblkID uint32, m wire.MbinfoFrame)

	// OnEstablished is invoked once when the connection reaches
	// Established, after the authentication exchange; callers use it to
	// announce local blocks to the peer (AnnounceBlock).
	OnEstablished func(*Connection)

	now func() time.Time
}

// New constructs a Connection over an already-open stream. role determines
// which side sends the handshake hello first.
func New(role Role, s stream.Stream, reg *registry.Registry, cfg Config) *Connection {
	var wx wire.Transport
	switch s.Kind() {
	case stream.KindSerial:
		wx = wire.TransportSerial
	case stream.KindTLS:
		wx = wire.TransportTLS
	default:
		wx = wire.TransportTCP
	}
	c := &Connection{
		Role:                role,
		Transport:           s.Kind(),
		wireXport:           wx,
		State:               Opening,
		stream:              s,
		registry:            reg,
		cfg:                 cfg,
		Flow:                NewFlowControl(cfg.MaxInAir, cfg.MaxAckInAir, cfg.UnacknowledgedLimit),
		remoteToLocalTarget: make(map[uint32]uint32),
		now:                 time.Now,
	}
	hRole := RoleClientHandshake
	if role == RoleAcceptor {
		hRole = RoleNetworkServiceHandshake
	}
	c.localHello = wire.HandshakeHello{Role: hRole, NetworkName: cfg.NetworkName}
	return c
}

// Handshake roles for the pre-protocol exchange: the acceptor (end point
// side) always presents itself as the network service; the dialer presents
// as the client.
const (
	RoleNetworkServiceHandshake = wire.RoleNetworkService
	RoleClientHandshake         = wire.RoleClient
)

// AttachSource creates a memory block's outbound mirror for this
// connection and starts tracking it in the round-robin send rotation.
func (c *Connection) AttachSource(blockID, remoteMblkID uint32, nbytes int) (*mblk.SourceBuf, error) {
	sb, err := c.registry.AttachSource(blockID, remoteMblkID, nbytes)
	if err != nil {
		return nil, err
	}
	c.sourceIDs = append(c.sourceIDs, sb.ID)
	return sb, nil
}

// AttachTarget creates a memory block's inbound mirror for this connection
// and indexes it by the remote's block id so incoming data frames can be
// routed to it.
func (c *Connection) AttachTarget(blockID, remoteMblkID uint32, nbytes int, bidirectional bool) (*mblk.TargetBuf, error) {
	tb, err := c.registry.AttachTarget(blockID, remoteMblkID, nbytes, bidirectional)
	if err != nil {
		return nil, err
	}
	c.targetIDs = append(c.targetIDs, tb.ID)
	c.remoteToLocalTarget[remoteMblkID] = tb.ID
	return tb, nil
}

// HasTarget reports whether a target buffer is already indexed for the
// peer's block id, so a re-announced mbinfo doesn't grow a second mirror.
func (c *Connection) HasTarget(remoteMblkID uint32) bool {
	_, ok := c.remoteToLocalTarget[remoteMblkID]
	return ok
}

// QueueRemoveMblk requests that the peer forget remoteMblkID; the
// request drains on a later Established tick, after pending data frames.
func (c *Connection) QueueRemoveMblk(remoteMblkID uint32) {
	c.removeQueue = append(c.removeQueue, pendingRemove{remoteMblkID: remoteMblkID})
}

// QueueMbinfo schedules an MBLK_INFO announcement to be sent on a later
// Established tick. mblkID is the announcing side's block id,
// carried in the frame header so the receiver can route later data frames.
func (c *Connection) QueueMbinfo(mblkID uint32, m wire.MbinfoFrame) {
	c.mbinfoQueue = append(c.mbinfoQueue, queuedMbinfo{mblkID: mblkID, frame: m})
}

// AnnounceBlock attaches b as an outbound source on this connection and
// queues its mbinfo announcement, honoring the cloud-boundary flags
// (NoCloud blocks never cross a cloud connection, CloudOnly blocks cross
// nothing else). A static block is sent once in full right after the
// announcement — the block itself is the reference, there is no shadow to
// track. The block's own id doubles as the wire routing tag the peer
// indexes its target buffer by.
func (c *Connection) AnnounceBlock(b *mblk.Block, cloudConnection bool) error {
	if b.Flags.Has(mblk.NoCloud) && cloudConnection {
		return nil
	}
	if b.Flags.Has(mblk.CloudOnly) && !cloudConnection {
		return nil
	}
	switch {
	case b.Flags.Has(mblk.Static):
		sb, err := c.AttachSource(b.ID, b.ID, 0)
		if err != nil {
			return err
		}
		c.registry.WithLock(func() {
			sb.Extend(sb.ID, 0, uint32(b.Nbytes()))
		})
	case b.Direction == mblk.Up || b.Flags.Has(mblk.Bidirectional):
		if _, err := c.AttachSource(b.ID, b.ID, b.Nbytes()); err != nil {
			return err
		}
	}
	c.QueueMbinfo(b.ID, wire.MbinfoFrame{
		DeviceNr:   b.DeviceNr,
		Nbytes:     uint32(b.Nbytes()),
		MblkFlags:  uint32(b.Flags),
		DeviceName: b.DeviceName,
		MblkName:   b.MblkName,
	})
	return nil
}

// Tick advances the connection by at most one unit of work and never
// blocks: every stream call carries ctx and treats iocstatus.ErrPending as
// "nothing to do this round", matching the single-threaded cooperative
// run loop (a thread-per-connection worker can simply call Tick in a loop
// with its own blocking select instead).
func (c *Connection) Tick(ctx context.Context) error {
	switch c.State {
	case Opening:
		c.State = HandshakingPre
		return c.tickHandshake(ctx)
	case HandshakingPre:
		return c.tickHandshake(ctx)
	case Authenticating:
		return c.tickAuth(ctx)
	case Established:
		return c.tickEstablished(ctx)
	case Closing, Failed, Idle:
		return nil
	default:
		return fmt.Errorf("conn: unknown state %v", c.State)
	}
}

// fail transitions to Failed and records the reason; callers keep calling
// Tick, which becomes a no-op, until the owner notices and tears the
// connection down.
func (c *Connection) fail(err error) error {
	c.State = Failed
	return err
}

// Close releases the underlying stream. The owner (an End point or dial
// loop) calls this once it has finished reacting to a Failed/Closing
// connection.
func (c *Connection) Close() error {
	c.State = Closing
	return c.stream.Close()
}

func (c *Connection) drainOut(ctx context.Context) error {
	for len(c.outBuf) > 0 {
		n, err := c.stream.Write(ctx, c.outBuf)
		if err != nil {
			if errors.Is(err, iocstatus.ErrPending) {
				return nil
			}
			return c.fail(err)
		}
		c.outBuf = c.outBuf[n:]
		if n > 0 {
			c.lastSend = c.now()
		}
	}
	return nil
}

func (c *Connection) fillIn(ctx context.Context) error {
	tmp := bufpool.Get(4096)
	defer bufpool.Put(tmp)
	n, err := c.stream.Read(ctx, tmp)
	if err != nil {
		if errors.Is(err, iocstatus.ErrPending) {
			return nil
		}
		return c.fail(err)
	}
	if n > 0 {
		c.inBuf = append(c.inBuf, tmp[:n]...)
		c.lastReceive = c.now()
	}
	return nil
}
