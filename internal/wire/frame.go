// Package wire implements the framed wire protocol: header encode/decode
// (frame.go), the delta+RLE payload compressor (compress.go), the
// pre-protocol handshake (handshake.go), and the system frames exchanged
// once a connection reaches Authenticating/Established (systemframe.go,
// authframe.go).
package wire

import (
	"fmt"

	"github.com/iocafe/iocom-go/pkg/iocstatus"
)

// Transport names the three stream kinds a connection can run over. Only
// Serial carries frame_nr and a checksum; socket transports rely on TCP/TLS
// for integrity and omit both.
type Transport int

const (
	TransportSerial Transport = iota
	TransportTCP
	TransportTLS
)

func (t Transport) IsSerial() bool { return t == TransportSerial }

// Flags bits packed into the single flags byte of the frame header.
type Flags uint8

const (
	FlagSystemFrame     Flags = 1 << 0
	FlagCompressed      Flags = 1 << 1
	FlagDeltaEncoded    Flags = 1 << 2
	FlagSyncComplete    Flags = 1 << 3
	FlagMblkHasTwoBytes Flags = 1 << 4
	FlagAddrHasTwoBytes Flags = 1 << 5
	FlagAddrHasFourByte Flags = 1 << 6
)

func (f Flags) Has(bit Flags) bool { return f&bit != 0 }

// FrameNrMax is the wrap bound for the serial frame counter: valid values
// are 1..FrameNrMax, and FrameNrMax wraps to 1 rather than 0.
const FrameNrMax = 255

// NextFrameNr returns the frame_nr that follows cur under the 1..MAX wrap.
func NextFrameNr(cur byte) byte {
	if cur >= FrameNrMax {
		return 1
	}
	return cur + 1
}

// SystemFrameType is the first payload byte of a SYSTEM_FRAME.
type SystemFrameType byte

const (
	SysMblkInfo           SystemFrameType = 1
	SysAcknowledge        SystemFrameType = 2
	SysRemoveMblkRequest  SystemFrameType = 3
	SysAuthenticationData SystemFrameType = 4
)

// Header is the decoded form of one frame header. The payload that
// follows the header is returned separately by Decode.
type Header struct {
	FrameNr byte // serial only; 0 on socket transports
	Flags   Flags
	MblkID  uint32
	Addr    uint32
	DataSz  int
}

// addrFlags picks the narrowest representation for addr: no flag for
// 0-255, ADDR_HAS_TWO_BYTES for 256-65535, ADDR_HAS_FOUR_BYTES above that.
func addrFlags(addr uint32) Flags {
	switch {
	case addr > 0xFFFF:
		return FlagAddrHasFourByte
	case addr > 0xFF:
		return FlagAddrHasTwoBytes
	default:
		return 0
	}
}

func mblkFlags(id uint32) Flags {
	if id > 0xFF {
		return FlagMblkHasTwoBytes
	}
	return 0
}

// EncodeOpts carries the fields Encode needs beyond the payload itself.
type EncodeOpts struct {
	Transport Transport
	FrameNr   byte // ignored for socket transports
	System    bool
	Compressed,
	Delta,
	SyncComplete bool
	MblkID uint32
	Addr   uint32
}

// Encode serializes header + payload into a single frame. It chooses the
// narrowest mblk_id/addr width, includes frame_nr and a placeholder
// checksum on serial transports only, and fixes up the checksum once the
// whole frame is laid out.
func Encode(opts EncodeOpts, payload []byte) ([]byte, error) {
	flags := addrFlags(opts.Addr) | mblkFlags(opts.MblkID)
	if opts.System {
		flags |= FlagSystemFrame
	}
	if opts.Compressed {
		flags |= FlagCompressed
	}
	if opts.Delta {
		flags |= FlagDeltaEncoded
	}
	if opts.SyncComplete {
		flags |= FlagSyncComplete
	}

	buf := make([]byte, 0, 16+len(payload))
	if opts.Transport.IsSerial() {
		buf = append(buf, opts.FrameNr, 0, 0) // frame_nr, checksum_lo, checksum_hi (fixed up below)
	}
	buf = append(buf, byte(flags))

	dataSz := len(payload)
	buf = append(buf, byte(dataSz))
	if !opts.Transport.IsSerial() {
		buf = append(buf, byte(dataSz>>8))
	} else if dataSz > 0xFF {
		return nil, fmt.Errorf("wire: data size %d exceeds single-byte limit on serial transport", dataSz)
	}

	buf = append(buf, byte(opts.MblkID))
	if flags.Has(FlagMblkHasTwoBytes) {
		buf = append(buf, byte(opts.MblkID>>8))
	}

	buf = append(buf, byte(opts.Addr))
	if flags.Has(FlagAddrHasTwoBytes) {
		buf = append(buf, byte(opts.Addr>>8))
	} else if flags.Has(FlagAddrHasFourByte) {
		buf = append(buf, byte(opts.Addr>>8), byte(opts.Addr>>16), byte(opts.Addr>>24))
	}

	buf = append(buf, payload...)

	if opts.Transport.IsSerial() {
		sum := fletcher16(zeroChecksum(buf))
		buf[1] = byte(sum)
		buf[2] = byte(sum >> 8)
	}
	return buf, nil
}

// zeroChecksum returns a copy of buf with the checksum field (bytes 1-2)
// zeroed, as required to compute the checksum over "the whole frame with
// the checksum field zeroed".
func zeroChecksum(buf []byte) []byte {
	cp := make([]byte, len(buf))
	copy(cp, buf)
	if len(cp) > 2 {
		cp[1] = 0
		cp[2] = 0
	}
	return cp
}

// Decode parses one frame from buf, returning the header, the payload
// slice (aliasing buf), and the number of bytes consumed. It peeks the
// flags byte to size the header before reading the remaining fields, per
// the narrowest-representation decoding rules.
func Decode(buf []byte, transport Transport) (Header, []byte, int, error) {
	pos := 0
	var h Header

	if transport.IsSerial() {
		if len(buf) < 3 {
			return h, nil, 0, iocstatus.ErrPending
		}
		h.FrameNr = buf[0]
		checksum := uint16(buf[1]) | uint16(buf[2])<<8
		pos = 3
		if len(buf) < pos+1 {
			return h, nil, 0, iocstatus.ErrPending
		}
		h.Flags = Flags(buf[pos])

		// Header length known; wait for enough bytes before verifying
		// checksum against the whole frame.
		hdrLen, err := headerLen(h.Flags, transport)
		if err != nil {
			return h, nil, 0, err
		}
		if len(buf) < pos+hdrLen {
			return h, nil, 0, iocstatus.ErrPending
		}

		dataSz := int(buf[pos+1])
		total := 3 + hdrLen + dataSz
		if len(buf) < total {
			return h, nil, 0, iocstatus.ErrPending
		}

		frame := buf[:total]
		got := fletcher16(zeroChecksum(frame))
		if got != checksum {
			return h, nil, 0, iocstatus.ErrChecksumError
		}

		h.DataSz = dataSz
		rest := buf[pos:total]
		rest, payload, err := parseFixedHeader(rest, h.Flags, transport, &h)
		_ = rest
		if err != nil {
			return h, nil, 0, err
		}
		return h, payload, total, nil
	}

	if len(buf) < 1 {
		return h, nil, 0, iocstatus.ErrPending
	}
	h.Flags = Flags(buf[0])
	hdrLen, err := headerLen(h.Flags, transport)
	if err != nil {
		return h, nil, 0, err
	}
	if len(buf) < hdrLen {
		return h, nil, 0, iocstatus.ErrPending
	}
	dataSz := int(buf[1]) | int(buf[2])<<8
	total := hdrLen + dataSz
	if len(buf) < total {
		return h, nil, 0, iocstatus.ErrPending
	}
	h.DataSz = dataSz
	_, payload, err := parseFixedHeader(buf[:total], h.Flags, transport, &h)
	if err != nil {
		return h, nil, 0, err
	}
	return h, payload, total, nil
}

// FrameOverhead returns the number of wire bytes a frame addressed with
// the given routing values consumes beyond its payload: the flag-width
// header plus, on serial links, the frame_nr and checksum prefix. Used by
// senders to gate a payload against the remaining credit window with the
// exact size Encode will produce.
func FrameOverhead(transport Transport, mblkID, addr uint32) int {
	n, _ := headerLen(addrFlags(addr)|mblkFlags(mblkID), transport)
	if transport.IsSerial() {
		n += 3 // frame_nr + checksum
	}
	return n
}

// headerLen returns the number of bytes from the flags byte (inclusive)
// through the last address byte, before the payload starts.
func headerLen(flags Flags, transport Transport) (int, error) {
	n := 1 // flags
	n++    // data_sz_lo
	if !transport.IsSerial() {
		n++ // data_sz_hi
	}
	n++ // mblk_id_lo
	if flags.Has(FlagMblkHasTwoBytes) {
		n++
	}
	n++ // addr_b0
	if flags.Has(FlagAddrHasTwoBytes) {
		n++
	} else if flags.Has(FlagAddrHasFourByte) {
		n += 3
	}
	return n, nil
}

// parseFixedHeader reads mblk_id and addr out of frame (which starts at the
// flags byte) given the already-known flags, filling h and returning the
// payload slice.
func parseFixedHeader(frame []byte, flags Flags, transport Transport, h *Header) ([]byte, []byte, error) {
	pos := 1 // past flags
	pos++    // data_sz_lo
	if !transport.IsSerial() {
		pos++
	}

	mblkID := uint32(frame[pos])
	pos++
	if flags.Has(FlagMblkHasTwoBytes) {
		mblkID |= uint32(frame[pos]) << 8
		pos++
	}
	h.MblkID = mblkID

	addr := uint32(frame[pos])
	pos++
	if flags.Has(FlagAddrHasTwoBytes) {
		addr |= uint32(frame[pos]) << 8
		pos++
	} else if flags.Has(FlagAddrHasFourByte) {
		addr |= uint32(frame[pos])<<8 | uint32(frame[pos+1])<<16 | uint32(frame[pos+2])<<24
		pos += 3
	}
	h.Addr = addr

	return frame[:pos], frame[pos:], nil
}

// fletcher16 computes a Fletcher-16-class checksum, the class of rolling
// mod-255 sum-of-sums checksum used on serial transports
// (cheap enough for microcontrollers, catches burst errors XOR misses).
func fletcher16(data []byte) uint16 {
	var sum1, sum2 uint16
	for _, b := range data {
		sum1 = (sum1 + uint16(b)) % 255
		sum2 = (sum2 + sum1) % 255
	}
	return sum2<<8 | sum1
}

// CheckFrameNr verifies that nr is the monotonic successor of prev modulo
// FrameNrMax. A gap is a fatal connection error.
func CheckFrameNr(prev, nr byte) error {
	if nr == NextFrameNr(prev) {
		return nil
	}
	return iocstatus.ErrFrameNrGap
}
