package devicenr

import (
	"encoding/binary"
	"fmt"
)

// entryWireSize is the serialized size of one entry: 16-byte unique id +
// 4-byte device_nr + 8-byte lastUsed timestamp.
const entryWireSize = 16 + 4 + 8

// encodeEntries serializes the table to a flat byte slice for
// pkg/persist.Provider.Save.
func encodeEntries(entries []entry) []byte {
	buf := make([]byte, len(entries)*entryWireSize)
	for i, e := range entries {
		off := i * entryWireSize
		copy(buf[off:off+16], e.uniqueID[:])
		binary.LittleEndian.PutUint32(buf[off+16:off+20], e.nr)
		binary.LittleEndian.PutUint64(buf[off+20:off+28], uint64(e.lastUsed))
	}
	return buf
}

// decodeEntries parses the byte slice produced by encodeEntries.
func decodeEntries(data []byte) ([]entry, error) {
	if len(data) == 0 {
		return nil, nil
	}
	if len(data)%entryWireSize != 0 {
		return nil, fmt.Errorf("devicenr: malformed auto device_nr table (%d bytes)", len(data))
	}
	n := len(data) / entryWireSize
	entries := make([]entry, n)
	for i := 0; i < n; i++ {
		off := i * entryWireSize
		var e entry
		copy(e.uniqueID[:], data[off:off+16])
		e.nr = binary.LittleEndian.Uint32(data[off+16 : off+20])
		e.lastUsed = int64(binary.LittleEndian.Uint64(data[off+20 : off+28]))
		entries[i] = e
	}
	return entries, nil
}
