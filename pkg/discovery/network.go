package discovery

// DynamicNetwork is the controller-side shadow of one remote network's
// schema: signals keyed by name, plus a
// shortcut list of the memory blocks that belong to the network. The
// original keeps the name index as a fixed-bucket hash table with chained
// duplicates; a Go map of slices gives the same O(1) amortized lookup and
// the same multiple-signals-per-name tolerance.
type DynamicNetwork struct {
	Name string

	signals   map[string][]*DynamicSignal
	shortcuts []Shortcut
}

func newDynamicNetwork(name string) *DynamicNetwork {
	return &DynamicNetwork{
		Name:    name,
		signals: make(map[string][]*DynamicSignal),
	}
}

func (dn *DynamicNetwork) addSignal(s *DynamicSignal) {
	dn.signals[s.Name] = append(dn.signals[s.Name], s)
}

// signal returns the first signal registered under name.
func (dn *DynamicNetwork) signal(name string) (*DynamicSignal, bool) {
	list := dn.signals[name]
	if len(list) == 0 {
		return nil, false
	}
	return list[0], true
}

func (dn *DynamicNetwork) addShortcut(sc Shortcut) {
	for _, have := range dn.shortcuts {
		if have.BlockID == sc.BlockID {
			return
		}
	}
	dn.shortcuts = append(dn.shortcuts, sc)
}

// dropDevice removes every signal and shortcut belonging to one device,
// called when the device disconnects.
func (dn *DynamicNetwork) dropDevice(deviceName string, deviceNr uint32) {
	for name, list := range dn.signals {
		kept := list[:0]
		for _, s := range list {
			if s.DeviceName != deviceName || s.DeviceNr != deviceNr {
				kept = append(kept, s)
			}
		}
		if len(kept) == 0 {
			delete(dn.signals, name)
		} else {
			dn.signals[name] = kept
		}
	}

	kept := dn.shortcuts[:0]
	for _, sc := range dn.shortcuts {
		if sc.DeviceName != deviceName || sc.DeviceNr != deviceNr {
			kept = append(kept, sc)
		}
	}
	dn.shortcuts = kept
}

func (dn *DynamicNetwork) signalCount() int {
	n := 0
	for _, list := range dn.signals {
		n += len(list)
	}
	return n
}
