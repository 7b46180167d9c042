// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package export

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/gogpu/animnode/gpu"
	"github.com/gogpu/gputypes"
)

// ErrBadRecord is returned by Unpack for malformed records.
var ErrBadRecord = errors.New("export: malformed share record")

// recordMagic prefixes every packed record ("ANTX").
const recordMagic uint32 = 0x58544e41

const recordVersion uint32 = 1

// wireRecord is the fixed little-endian layout of a packed ShareInfo.
type wireRecord struct {
	Magic          uint32
	Version        uint32
	Width          uint32
	Height         uint32
	Format         uint32
	Usage          uint32
	FieldType      uint32
	HandleType     uint32
	ResourceHandle uint64
	ResourceSize   uint64
	ExternalHandle uint64
	Offset         uint64
	AllocationSize uint64
	PID            uint64
}

// RecordSize is the length of a packed record in bytes.
var RecordSize = binary.Size(wireRecord{})

// Pack encodes info for the output port.
func Pack(info ShareInfo) []byte {
	w := wireRecord{
		Magic:          recordMagic,
		Version:        recordVersion,
		Width:          info.Texture.Width,
		Height:         info.Texture.Height,
		Format:         uint32(info.Texture.Format),
		Usage:          uint32(info.Texture.Usage),
		FieldType:      uint32(info.Texture.FieldType),
		HandleType:     uint32(info.Memory.External.HandleType),
		ResourceHandle: info.Memory.Handle,
		ResourceSize:   info.Memory.Size,
		ExternalHandle: info.Memory.External.Handle,
		Offset:         info.Memory.External.Offset,
		AllocationSize: info.Memory.External.AllocationSize,
		PID:            uint64(info.Memory.External.PID), //nolint:gosec // pids are non-negative
	}
	var buf bytes.Buffer
	buf.Grow(RecordSize)
	_ = binary.Write(&buf, binary.LittleEndian, &w)
	return buf.Bytes()
}

// Unpack decodes a record produced by Pack.
func Unpack(data []byte) (ShareInfo, error) {
	if len(data) != RecordSize {
		return ShareInfo{}, fmt.Errorf("%w: %d bytes, want %d", ErrBadRecord, len(data), RecordSize)
	}
	var w wireRecord
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &w); err != nil {
		return ShareInfo{}, fmt.Errorf("%w: %w", ErrBadRecord, err)
	}
	if w.Magic != recordMagic || w.Version != recordVersion {
		return ShareInfo{}, fmt.Errorf("%w: magic %#x version %d", ErrBadRecord, w.Magic, w.Version)
	}
	return ShareInfo{
		Texture: TextureInfo{
			Width:     w.Width,
			Height:    w.Height,
			Format:    gputypes.TextureFormat(w.Format),
			Usage:     Usage(w.Usage),
			FieldType: FieldType(w.FieldType),
		},
		Memory: MemoryInfo{
			Handle: w.ResourceHandle,
			Size:   w.ResourceSize,
			External: ExternalMemory{
				HandleType:     gpu.HandleType(w.HandleType),
				Handle:         w.ExternalHandle,
				Offset:         w.Offset,
				AllocationSize: w.AllocationSize,
				PID:            int(w.PID), //nolint:gosec // written from an int
			},
		},
	}, nil
}
