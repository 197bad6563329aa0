package wire

import "fmt"

// AuthFlags bits control which optional fields the AUTHENTICATION_DATA
// system frame carries.
type AuthFlags byte

const (
	AuthDeviceNrTwoBytes  AuthFlags = 1 << 0
	AuthDeviceNrFourBytes AuthFlags = 1 << 1
	AuthUniqueID          AuthFlags = 1 << 2
	AuthConnectUp         AuthFlags = 1 << 3
	AuthCloudCon          AuthFlags = 1 << 4
	AuthCertificateReq    AuthFlags = 1 << 5
)

func (f AuthFlags) Has(bit AuthFlags) bool { return f&bit != 0 }

// AuthFrame is the decoded AUTHENTICATION_DATA system frame payload: user
// name, optional device nr, optional 16-byte unique id, network name,
// optional password. The CLOUD_CON bit additionally carries a
// server-assigned connection nickname used when connecting through a
// cloud relay; the JWT for that path travels in the Password field when
// AuthCloudCon is set.
type AuthFrame struct {
	Flags        AuthFlags
	UserName     string
	DeviceNr     uint32
	UniqueID     [16]byte
	HasUniqueID  bool
	NetworkName  string
	Password     string // plaintext password, or a JWT when AuthCloudCon is set
	ConnNickname string // CLOUD_CON only
}

// deviceNrWidth returns the number of bytes needed to encode nr, matching
// the narrowest-fit convention used elsewhere in the wire format.
func deviceNrWidth(nr uint32) (AuthFlags, int) {
	switch {
	case nr > 0xFFFF:
		return AuthDeviceNrFourBytes, 4
	case nr > 0xFF:
		return AuthDeviceNrTwoBytes, 2
	default:
		return 0, 1
	}
}

func putLenPrefixed(buf []byte, s string) []byte {
	buf = append(buf, byte(len(s)))
	return append(buf, s...)
}

// getLenPrefixed reads one length-prefixed string. A consumed count of 0
// means the field hasn't fully arrived yet; a complete field always
// consumes at least its length byte.
func getLenPrefixed(buf []byte) (string, int) {
	if len(buf) < 1 {
		return "", 0
	}
	n := int(buf[0])
	if len(buf) < 1+n {
		return "", 0
	}
	return string(buf[1 : 1+n]), 1 + n
}

// EncodeAuthFrame serializes a.
func EncodeAuthFrame(a AuthFrame) []byte {
	widthFlag, width := deviceNrWidth(a.DeviceNr)
	flags := a.Flags | widthFlag
	if a.HasUniqueID {
		flags |= AuthUniqueID
	}

	buf := []byte{byte(SysAuthenticationData), byte(flags)}
	buf = putLenPrefixed(buf, a.UserName)

	for i := 0; i < width; i++ {
		buf = append(buf, byte(a.DeviceNr>>(8*i)))
	}
	if flags.Has(AuthUniqueID) {
		buf = append(buf, a.UniqueID[:]...)
	}
	buf = putLenPrefixed(buf, a.NetworkName)
	buf = putLenPrefixed(buf, a.Password)
	if flags.Has(AuthCloudCon) {
		buf = putLenPrefixed(buf, a.ConnNickname)
	}
	return buf
}

// DecodeAuthFrame parses the payload of an AUTHENTICATION_DATA system
// frame (payload starts with the type byte), returning the number of
// bytes consumed so a caller reading from a stream buffer can trim
// exactly one frame and keep whatever the peer pipelined after it. Like
// DecodeHello, a buffer that simply hasn't received the whole frame yet
// returns (zero, 0, nil) so the caller retries; an error means the bytes
// can never parse and the connection should fail.
func DecodeAuthFrame(payload []byte) (AuthFrame, int, error) {
	if len(payload) < 1 {
		return AuthFrame{}, 0, nil
	}
	if SystemFrameType(payload[0]) != SysAuthenticationData {
		return AuthFrame{}, 0, fmt.Errorf("wire: not an authentication frame")
	}
	if len(payload) < 2 {
		return AuthFrame{}, 0, nil
	}
	flags := AuthFlags(payload[1])
	pos := 2

	userName, n := getLenPrefixed(payload[pos:])
	if n == 0 {
		return AuthFrame{}, 0, nil
	}
	pos += n

	width := 1
	if flags.Has(AuthDeviceNrFourBytes) {
		width = 4
	} else if flags.Has(AuthDeviceNrTwoBytes) {
		width = 2
	}
	if len(payload) < pos+width {
		return AuthFrame{}, 0, nil
	}
	var deviceNr uint32
	for i := 0; i < width; i++ {
		deviceNr |= uint32(payload[pos+i]) << (8 * i)
	}
	pos += width

	a := AuthFrame{Flags: flags, UserName: userName, DeviceNr: deviceNr}

	if flags.Has(AuthUniqueID) {
		if len(payload) < pos+16 {
			return AuthFrame{}, 0, nil
		}
		copy(a.UniqueID[:], payload[pos:pos+16])
		a.HasUniqueID = true
		pos += 16
	}

	netName, n := getLenPrefixed(payload[pos:])
	if n == 0 {
		return AuthFrame{}, 0, nil
	}
	a.NetworkName = netName
	pos += n

	password, n := getLenPrefixed(payload[pos:])
	if n == 0 {
		return AuthFrame{}, 0, nil
	}
	a.Password = password
	pos += n

	if flags.Has(AuthCloudCon) {
		nickname, n := getLenPrefixed(payload[pos:])
		if n == 0 {
			return AuthFrame{}, 0, nil
		}
		a.ConnNickname = nickname
		pos += n
	}

	return a, pos, nil
}
