package conn

import (
	"context"
	"fmt"

	"github.com/iocafe/iocom-go/internal/wire"
	"github.com/iocafe/iocom-go/pkg/auth"
	"github.com/iocafe/iocom-go/pkg/iocstatus"
)

// JWTAuthenticator adapts auth.JWTService to the Authenticator interface
// for the CLOUD_CON path: the "password" field of
// the auth frame carries a bearer token instead of a plaintext password.
type JWTAuthenticator struct {
	Service *auth.JWTService
}

func (j *JWTAuthenticator) Authenticate(username, token string) error {
	claims, err := j.Service.VerifyToken(token)
	if err != nil {
		return err
	}
	if claims.DeviceName != "" && claims.DeviceName != username {
		return auth.ErrInvalidToken
	}
	return nil
}

// tickAuth drives the AUTHENTICATION_DATA exchange. The
// initiator sends its credentials first; the acceptor verifies them via
// cfg.Authenticator and, on success, adopts the peer's offered network name
// when its own was left as "*" or empty.
func (c *Connection) tickAuth(ctx context.Context) error {
	if !c.authSent {
		frame := wire.AuthFrame{
			UserName:    c.cfg.DeviceName,
			DeviceNr:    c.cfg.DeviceNr,
			UniqueID:    c.cfg.UniqueID,
			HasUniqueID: c.cfg.HasUniqueID,
			NetworkName: c.cfg.NetworkName,
			Password:    c.cfg.Password,
		}
		c.outBuf = append(c.outBuf, wire.EncodeAuthFrame(frame)...)
		c.authSent = true
	}
	if err := c.drainOut(ctx); err != nil {
		return err
	}
	if err := c.fillIn(ctx); err != nil {
		return err
	}

	frame, n, err := wire.DecodeAuthFrame(c.inBuf)
	if err != nil {
		// Malformed bytes can never become a valid frame; drop the
		// connection instead of re-parsing them forever.
		return c.fail(fmt.Errorf("%w: %v", iocstatus.ErrAuthFailed, err))
	}
	if n == 0 {
		return nil // incomplete frame, wait for more bytes
	}
	// Trim exactly the auth frame; a peer that established first may have
	// pipelined its first mbinfo right behind it.
	c.inBuf = c.inBuf[n:]

	if c.Role == RoleAcceptor {
		if c.cfg.Authenticator != nil {
			if err := c.cfg.Authenticator.Authenticate(frame.UserName, frame.Password); err != nil {
				return c.fail(fmt.Errorf("%w: %v", iocstatus.ErrAuthFailed, err))
			}
		}
		c.PeerNetworkName = resolveNetworkName(c.cfg.NetworkName, frame.NetworkName)
	} else {
		c.PeerNetworkName = frame.NetworkName
	}
	c.PeerDeviceName = frame.UserName
	c.PeerDeviceNr = frame.DeviceNr

	if c.Role == RoleAcceptor && frame.DeviceNr == 0 && c.cfg.DeviceNrAssigner != nil {
		nr, err := c.cfg.DeviceNrAssigner.AssignDeviceNr(ctx, frame.HasUniqueID, frame.UniqueID)
		if err != nil {
			return c.fail(fmt.Errorf("%w: %v", iocstatus.ErrAuthFailed, err))
		}
		c.PeerDeviceNr = nr
	}

	c.State = Established
	c.lastSend = c.now()
	c.lastReceive = c.now()
	if c.OnEstablished != nil {
		c.OnEstablished(c)
	}
	return nil
}
