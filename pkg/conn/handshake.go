package conn

import (
	"context"

	"github.com/iocafe/iocom-go/internal/wire"
)

// tickHandshake drives the pre-protocol exchange: both sides
// send a HandshakeHello; the acceptor additionally honors a requested
// trust certificate before either side moves on to Authenticating.
func (c *Connection) tickHandshake(ctx context.Context) error {
	if !c.helloSent {
		c.outBuf = append(c.outBuf, wire.EncodeHello(c.localHello)...)
		c.helloSent = true
	}
	if err := c.drainOut(ctx); err != nil {
		return err
	}
	if err := c.fillIn(ctx); err != nil {
		return err
	}

	if !c.peerHelloOK {
		hello, n, err := wire.DecodeHello(c.inBuf)
		if err != nil {
			return c.fail(err)
		}
		if n == 0 {
			return nil
		}
		c.inBuf = c.inBuf[n:]
		c.peerHello = hello
		c.peerHelloOK = true
		if hello.NetworkName != "" && hello.NetworkName != "*" {
			c.PeerNetworkName = hello.NetworkName
		}
	}

	if c.Role == RoleInitiator && c.peerHello.RequestTrustCrt {
		cert, n, err := wire.DecodeTrustCert(c.inBuf)
		if err != nil {
			return c.fail(err)
		}
		if n == 0 {
			return nil
		}
		c.inBuf = c.inBuf[n:]
		if len(cert) > 0 {
			// Certificate verification happens at the transport layer for
			// tls_socket (pkg/stream); the trust blob read here is
			// discarded, neither stored nor verified.
			_ = cert
		}
	} else if c.Role == RoleAcceptor && c.localHello.RequestTrustCrt {
		c.outBuf = append(c.outBuf, wire.EncodeTrustCert(nil)...)
		if err := c.drainOut(ctx); err != nil {
			return err
		}
	}

	c.State = Authenticating
	return nil
}

// resolveNetworkName applies the single-device-mode policy: an acceptor with
// "*" or an empty network name adopts whatever name the peer offers in its
// AUTHENTICATION_DATA frame instead of rejecting the connection.
func resolveNetworkName(local, peerOffered string) string {
	if local == "" || local == "*" {
		return peerOffered
	}
	return local
}
