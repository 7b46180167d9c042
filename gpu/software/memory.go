// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package software

import (
	"sync"
	"sync/atomic"
)

// Memory is a block of texel memory shared between the device that
// rendered it and any number of importers. It is reference counted:
// the owning texture holds one reference and every Open adds one.
type Memory struct {
	handle uint64
	width  int
	height int
	stride int

	mu      sync.RWMutex
	data    []byte
	version uint64
	refs    int
}

var (
	sharedMu   sync.Mutex
	shared     = make(map[uint64]*Memory)
	nextHandle atomic.Uint64
)

func newMemory(width, height, bpp int) *Memory {
	m := &Memory{
		handle: nextHandle.Add(1),
		width:  width,
		height: height,
		stride: width * bpp,
		data:   make([]byte, width*height*bpp),
		refs:   1,
	}
	sharedMu.Lock()
	shared[m.handle] = m
	sharedMu.Unlock()
	return m
}

// Open looks up shared memory by handle and takes a reference to it.
// The caller must Close it when done.
func Open(handle uint64) (*Memory, bool) {
	sharedMu.Lock()
	defer sharedMu.Unlock()

	m, ok := shared[handle]
	if !ok {
		return nil, false
	}
	m.mu.Lock()
	m.refs++
	m.mu.Unlock()
	return m, true
}

// Live reports the number of shared memory blocks still referenced.
func Live() int {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	return len(shared)
}

// Close drops one reference. The block is unregistered when the last
// reference goes away.
func (m *Memory) Close() {
	sharedMu.Lock()
	defer sharedMu.Unlock()

	m.mu.Lock()
	m.refs--
	if m.refs == 0 {
		delete(shared, m.handle)
	}
	m.mu.Unlock()
}

// Handle returns the process-local handle value.
func (m *Memory) Handle() uint64 { return m.handle }

// Size returns the dimensions of the block in texels.
func (m *Memory) Size() (width, height int) { return m.width, m.height }

// Stride returns the number of bytes per row.
func (m *Memory) Stride() int { return m.stride }

// Version returns how many times the device has written the block.
func (m *Memory) Version() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.version
}

// Read calls fn with the current contents under a read lock.
func (m *Memory) Read(fn func(pix []byte)) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	fn(m.data)
}

func (m *Memory) write(src []byte, swizzle bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	copy(m.data, src)
	if swizzle {
		for i := 0; i+3 < len(m.data); i += 4 {
			m.data[i], m.data[i+2] = m.data[i+2], m.data[i]
		}
	}
	m.version++
}
