package discovery

// DynamicSignal is one entry in a dynamic network's signal table: enough
// to resolve a bare signal name to the memory block and byte range it
// lives in without consulting the info block again.
type DynamicSignal struct {
	Name       string
	MblkName   string
	DeviceName string
	DeviceNr   uint32
	Addr       int
	N          int
	NColumns   int
	Type       SignalType
}

// Bytes returns how many memory-block bytes the signal occupies,
// including its leading state byte.
func (s *DynamicSignal) Bytes() int {
	return SignalBytes(s.Type, s.N)
}

// Covers reports whether the changed address range [startAddr, endAddr]
// touches this signal, for receive callbacks asking "is this signal
// affected?".
func (s *DynamicSignal) Covers(startAddr, endAddr int) bool {
	if endAddr < s.Addr {
		return false
	}
	return startAddr < s.Addr+s.Bytes()
}

// Shortcut records one memory block known to belong to a dynamic network,
// populated as mbinfo announcements arrive so signal resolution never
// needs a linear scan over the registry.
type Shortcut struct {
	BlockID    uint32
	MblkName   string
	DeviceName string
	DeviceNr   uint32
}
