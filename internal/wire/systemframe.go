package wire

import "fmt"

// Mbinfo version_flags bits: which variable-width fields are wide
// and which optional names are present.
type MbinfoFlags byte

const (
	MbinfoDeviceNrTwoBytes MbinfoFlags = 1 << 0
	MbinfoNbytesTwoBytes   MbinfoFlags = 1 << 1
	MbinfoFlagsTwoBytes    MbinfoFlags = 1 << 2
	MbinfoHasDeviceName    MbinfoFlags = 1 << 3
	MbinfoHasMblkName      MbinfoFlags = 1 << 4
)

func (f MbinfoFlags) Has(bit MbinfoFlags) bool { return f&bit != 0 }

// MbinfoFrame announces a memory block's identity and size to the peer
// to the peer.
type MbinfoFrame struct {
	DeviceNr   uint32
	Nbytes     uint32
	MblkFlags  uint32
	DeviceName string
	MblkName   string
}

func widthFlag(v uint32, twoByteBit MbinfoFlags) (MbinfoFlags, int) {
	if v > 0xFF {
		return twoByteBit, 2
	}
	return 0, 1
}

// EncodeMbinfo serializes m as a SYSTEM_FRAME payload.
func EncodeMbinfo(m MbinfoFrame) []byte {
	devFlag, devWidth := widthFlag(m.DeviceNr, MbinfoDeviceNrTwoBytes)
	szFlag, szWidth := widthFlag(m.Nbytes, MbinfoNbytesTwoBytes)
	flgFlag, flgWidth := widthFlag(m.MblkFlags, MbinfoFlagsTwoBytes)
	flags := devFlag | szFlag | flgFlag
	if m.DeviceName != "" {
		flags |= MbinfoHasDeviceName
	}
	if m.MblkName != "" {
		flags |= MbinfoHasMblkName
	}

	buf := []byte{byte(SysMblkInfo), byte(flags)}
	buf = appendWidth(buf, m.DeviceNr, devWidth)
	buf = appendWidth(buf, m.Nbytes, szWidth)
	buf = appendWidth(buf, m.MblkFlags, flgWidth)
	if flags.Has(MbinfoHasDeviceName) {
		buf = putLenPrefixed(buf, m.DeviceName)
	}
	if flags.Has(MbinfoHasMblkName) {
		buf = putLenPrefixed(buf, m.MblkName)
	}
	return buf
}

func appendWidth(buf []byte, v uint32, width int) []byte {
	for i := 0; i < width; i++ {
		buf = append(buf, byte(v>>(8*i)))
	}
	return buf
}

// DecodeMbinfo parses a SYSTEM_FRAME payload produced by EncodeMbinfo.
func DecodeMbinfo(payload []byte) (MbinfoFrame, error) {
	if len(payload) < 2 || SystemFrameType(payload[0]) != SysMblkInfo {
		return MbinfoFrame{}, fmt.Errorf("wire: not an mbinfo frame")
	}
	flags := MbinfoFlags(payload[1])
	pos := 2

	readWidth := func(twoByteBit MbinfoFlags) (uint32, error) {
		width := 1
		if flags.Has(twoByteBit) {
			width = 2
		}
		if len(payload) < pos+width {
			return 0, fmt.Errorf("wire: truncated mbinfo field")
		}
		var v uint32
		for i := 0; i < width; i++ {
			v |= uint32(payload[pos+i]) << (8 * i)
		}
		pos += width
		return v, nil
	}

	deviceNr, err := readWidth(MbinfoDeviceNrTwoBytes)
	if err != nil {
		return MbinfoFrame{}, err
	}
	nbytes, err := readWidth(MbinfoNbytesTwoBytes)
	if err != nil {
		return MbinfoFrame{}, err
	}
	mblkFlags, err := readWidth(MbinfoFlagsTwoBytes)
	if err != nil {
		return MbinfoFrame{}, err
	}

	m := MbinfoFrame{DeviceNr: deviceNr, Nbytes: nbytes, MblkFlags: mblkFlags}

	// Mbinfo arrives inside a complete frame, so a short field here is
	// malformed rather than "not yet received".
	if flags.Has(MbinfoHasDeviceName) {
		name, n := getLenPrefixed(payload[pos:])
		if n == 0 {
			return MbinfoFrame{}, fmt.Errorf("wire: truncated mbinfo device name")
		}
		m.DeviceName = name
		pos += n
	}
	if flags.Has(MbinfoHasMblkName) {
		name, n := getLenPrefixed(payload[pos:])
		if n == 0 {
			return MbinfoFrame{}, fmt.Errorf("wire: truncated mbinfo mblk name")
		}
		m.MblkName = name
		pos += n
	}
	return m, nil
}

// EncodeAck serializes an ACKNOWLEDGE system frame carrying the receiver's
// bytes_received counter (16-bit, wrapping).
func EncodeAck(bytesReceived uint16) []byte {
	return []byte{byte(SysAcknowledge), byte(bytesReceived), byte(bytesReceived >> 8)}
}

// DecodeAck parses an ACKNOWLEDGE system frame payload.
func DecodeAck(payload []byte) (uint16, error) {
	if len(payload) < 3 || SystemFrameType(payload[0]) != SysAcknowledge {
		return 0, fmt.Errorf("wire: not an acknowledge frame")
	}
	return uint16(payload[1]) | uint16(payload[2])<<8, nil
}

// EncodeRemoveMblk serializes a REMOVE_MBLK_REQUEST carrying the remote
// block id the peer must forget.
func EncodeRemoveMblk(remoteMblkID uint32) []byte {
	buf := []byte{byte(SysRemoveMblkRequest)}
	wide := remoteMblkID > 0xFF
	if wide {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	width := 1
	if wide {
		width = 2
	}
	return appendWidth(buf, remoteMblkID, width)
}

// DecodeRemoveMblk parses a REMOVE_MBLK_REQUEST payload.
func DecodeRemoveMblk(payload []byte) (uint32, error) {
	if len(payload) < 2 || SystemFrameType(payload[0]) != SysRemoveMblkRequest {
		return 0, fmt.Errorf("wire: not a remove-mblk frame")
	}
	width := 1
	if payload[1] != 0 {
		width = 2
	}
	if len(payload) < 2+width {
		return 0, fmt.Errorf("wire: truncated remove-mblk id")
	}
	var id uint32
	for i := 0; i < width; i++ {
		id |= uint32(payload[2+i]) << (8 * i)
	}
	return id, nil
}
