package discovery

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// Schema generates the JSON Schema for the info block document from the
// Go structs describing it, so an operator can validate a device's schema
// file before flashing it (iocomctl infoblock schema / validate).
func Schema() ([]byte, error) {
	r := &jsonschema.Reflector{
		DoNotReference: true,
	}
	s := r.Reflect(&InfoBlock{})
	out, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("discovery: marshal info block schema: %w", err)
	}
	return out, nil
}

// Validate checks an already-decoded info block for the constraints the
// schema alone cannot express: non-empty names, known directions and
// signal types, non-negative addresses and counts.
func Validate(ib *InfoBlock) error {
	for i, mb := range ib.MemoryBlocks {
		if mb.Name == "" {
			return fmt.Errorf("discovery: memory_blocks[%d]: name is required", i)
		}
		switch mb.Direction {
		case "", "up", "down":
		default:
			return fmt.Errorf("discovery: memory block %q: unknown direction %q", mb.Name, mb.Direction)
		}
		for j, sig := range mb.Signals {
			if sig.Name == "" {
				return fmt.Errorf("discovery: memory block %q: signals[%d]: name is required", mb.Name, j)
			}
			if sig.Addr < 0 {
				return fmt.Errorf("discovery: signal %q: negative addr %d", sig.Name, sig.Addr)
			}
			if sig.N < 0 {
				return fmt.Errorf("discovery: signal %q: negative n %d", sig.Name, sig.N)
			}
			if _, err := ParseSignalType(sig.Type); err != nil {
				return fmt.Errorf("discovery: signal %q: %w", sig.Name, err)
			}
		}
	}
	return nil
}
