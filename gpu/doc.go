// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package gpu selects a graphics adapter and owns the per-node graphics
// context: the device, its command context and a CPU-wait fence.
//
// # Backends
//
// Backends register themselves by name, usually from an init function:
//
//	import _ "github.com/gogpu/animnode/gpu/software"
//
// [Open] picks the named backend, or the best registered one by priority,
// enumerates its adapters and opens a device on the preferred adapter.
//
// # Synchronization
//
// [Context.Sync] inserts a completion marker after all submitted work and
// blocks the calling goroutine until the device signals it. The wait
// busy-polls the fence. It has no timeout unless Options.FenceTimeout is
// set, so a stalled device stalls the caller.
//
// # Thread Safety
//
// A Context is used from the node's host thread only. Backends may run
// submitted work on their own goroutines.
package gpu
