// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package node

import (
	"encoding/binary"
	"fmt"

	"github.com/gogpu/animnode/binding"
	"github.com/gogpu/animnode/export"
)

// Host is the node graph the node is embedded in.
//
// Watch callbacks run synchronously inside the call that changed the port
// and may call back into the node.
type Host interface {
	export.Importer

	// NewID returns a unique port id.
	NewID() string

	// Ports returns every port of the node, reserved ones included.
	Ports() []binding.Port

	// SetPinValue writes a port value on behalf of the node.
	SetPinValue(name string, value []byte) error

	// UpdatePorts adds and deletes dynamic ports in one batch.
	UpdatePorts(add []binding.Port, del []binding.Port) error

	// Watch registers fn to run whenever the named port changes.
	Watch(name string, fn func(value []byte) error)
}

// EncodeResolution returns the Resolution payload: two little-endian
// uint32 values.
func EncodeResolution(width, height uint32) []byte {
	p := binary.LittleEndian.AppendUint32(nil, width)
	return binary.LittleEndian.AppendUint32(p, height)
}

// DecodeResolution reads a Resolution payload.
func DecodeResolution(p []byte) (width, height uint32, err error) {
	if len(p) < 8 {
		return 0, 0, fmt.Errorf("%w: resolution needs 8 bytes, got %d", binding.ErrPayload, len(p))
	}
	return binary.LittleEndian.Uint32(p), binary.LittleEndian.Uint32(p[4:]), nil
}
