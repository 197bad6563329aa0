// Package discovery implements dynamic discovery: parsing a
// device's "info" block (a JSON description of its memory blocks and
// signals) and materializing, per network, a hash table of dynamic
// signals plus a shortcut list of the memory blocks that belong to it, so
// a caller can resolve a bare signal name to a concrete
// (mblk, addr, n, type) without a linear scan.
package discovery

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// SignalInfo describes one signal within a memory block. Unknown JSON fields are ignored by
// encoding/json's default decode behavior, satisfying the "parsers must
// tolerate unknown fields" requirement without extra code.
type SignalInfo struct {
	Name     string `json:"name"`
	Addr     int    `json:"addr"`
	N        int    `json:"n"`
	NColumns int    `json:"ncolumns,omitempty"`
	Type     string `json:"type"`
}

// MemoryBlockInfo describes one memory block and its signals.
type MemoryBlockInfo struct {
	Name      string       `json:"name"`
	Direction string       `json:"direction"`
	Signals   []SignalInfo `json:"signals"`
}

// InfoBlock is the decoded shape of a device's "info" memory block
// content: a static, UTF-8 JSON payload, optionally zstd-compressed.
type InfoBlock struct {
	MemoryBlocks []MemoryBlockInfo `json:"memory_blocks"`
}

// zstdMagic is the 4-byte frame magic number every zstd frame begins
// with, used to tell a compressed info block from a plain JSON one
// without an out-of-band content-type flag.
var zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}

func isZstdFrame(payload []byte) bool {
	return bytes.HasPrefix(payload, zstdMagic)
}

// ParseInfoBlock decodes an "info" memory block's content:
// the payload is zstd-decompressed first if it carries a zstd frame
// header, then unmarshaled as JSON.
func ParseInfoBlock(payload []byte) (*InfoBlock, error) {
	raw := payload
	if isZstdFrame(payload) {
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("discovery: open zstd decoder: %w", err)
		}
		defer dec.Close()
		decoded, err := dec.DecodeAll(payload, nil)
		if err != nil {
			return nil, fmt.Errorf("discovery: decompress info block: %w", err)
		}
		raw = decoded
	}

	var ib InfoBlock
	if err := json.Unmarshal(raw, &ib); err != nil {
		return nil, fmt.Errorf("discovery: parse info block: %w", err)
	}
	return &ib, nil
}

// EncodeInfoBlock serializes ib as plain JSON, optionally zstd-compressing
// it first; used by the device side of the fabric (cmd/iocomd) to build
// its own "info" block content, and by tests as ParseInfoBlock's inverse.
func EncodeInfoBlock(ib *InfoBlock, compress bool) ([]byte, error) {
	raw, err := json.Marshal(ib)
	if err != nil {
		return nil, fmt.Errorf("discovery: encode info block: %w", err)
	}
	if !compress {
		return raw, nil
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("discovery: open zstd encoder: %w", err)
	}
	defer enc.Close()
	return enc.EncodeAll(raw, nil), nil
}
