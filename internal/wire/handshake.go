package wire

import "fmt"

// Pre-protocol handshake: before any framed system traffic, the two ends
// exchange a 1-byte type code, an optional network name, and (server
// side) an optional trust certificate. pkg/conn drives the exchange; this
// package only encodes/decodes the messages.

// HandshakeRole identifies which side of the pre-protocol exchange a
// participant plays.
type HandshakeRole byte

const (
	RoleNetworkService HandshakeRole = 1
	RoleClient         HandshakeRole = 2
)

const (
	hasNetNameBit      byte = 0x04
	requestTrustCert   byte = 0x08
	handshakeRoleMask  byte = 0x03
)

// HandshakeHello is the client/server's first handshake message.
type HandshakeHello struct {
	Role            HandshakeRole
	NetworkName     string // optional, per HasNetName
	RequestTrustCrt bool
}

// EncodeHello serializes a HandshakeHello: type byte (role | bits), then,
// if a network name is present, a length byte and the name bytes.
func EncodeHello(h HandshakeHello) []byte {
	typeByte := byte(h.Role) & handshakeRoleMask
	if h.NetworkName != "" {
		typeByte |= hasNetNameBit
	}
	if h.RequestTrustCrt {
		typeByte |= requestTrustCert
	}
	buf := []byte{typeByte}
	if h.NetworkName != "" {
		buf = append(buf, byte(len(h.NetworkName)))
		buf = append(buf, h.NetworkName...)
	}
	return buf
}

// DecodeHello parses a HandshakeHello, returning the bytes consumed. If the
// name-length byte hasn't arrived yet it returns (zero, 0, nil) so the
// caller retries once more bytes are buffered.
func DecodeHello(buf []byte) (HandshakeHello, int, error) {
	if len(buf) < 1 {
		return HandshakeHello{}, 0, nil
	}
	typeByte := buf[0]
	h := HandshakeHello{
		Role:            HandshakeRole(typeByte & handshakeRoleMask),
		RequestTrustCrt: typeByte&requestTrustCert != 0,
	}
	if typeByte&hasNetNameBit == 0 {
		return h, 1, nil
	}
	if len(buf) < 2 {
		return HandshakeHello{}, 0, nil
	}
	nameLen := int(buf[1])
	if len(buf) < 2+nameLen {
		return HandshakeHello{}, 0, nil
	}
	h.NetworkName = string(buf[2 : 2+nameLen])
	return h, 2 + nameLen, nil
}

// EncodeTrustCert serializes the server's optional trust-certificate
// message: a 2-byte length prefix (0 meaning "none") followed by the DER
// bytes.
func EncodeTrustCert(cert []byte) []byte {
	n := len(cert)
	buf := make([]byte, 2, 2+n)
	buf[0] = byte(n)
	buf[1] = byte(n >> 8)
	return append(buf, cert...)
}

// DecodeTrustCert parses the length-prefixed trust certificate. Returns
// (nil, 0, nil) if the 2-byte length prefix hasn't fully arrived yet.
func DecodeTrustCert(buf []byte) ([]byte, int, error) {
	if len(buf) < 2 {
		return nil, 0, nil
	}
	n := int(buf[0]) | int(buf[1])<<8
	if len(buf) < 2+n {
		return nil, 0, nil
	}
	if n == 0 {
		return nil, 2, nil
	}
	return buf[2 : 2+n], 2 + n, nil
}

func (r HandshakeRole) String() string {
	switch r {
	case RoleNetworkService:
		return "network_service"
	case RoleClient:
		return "client"
	default:
		return fmt.Sprintf("handshake_role(%d)", byte(r))
	}
}
