// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package gpu

import (
	"cmp"
	"context"
	"fmt"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/gogpu/animnode"
	"github.com/gogpu/gg"
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
)

// Options configures Open.
type Options struct {
	// Backend names a registered backend. Empty selects Default().
	Backend string

	// AdapterMatch, if set, selects the first adapter whose name contains
	// it (case-insensitive). No match is an error rather than a fallback.
	AdapterMatch string

	// Provider is an optional host device shared with gg's accelerator so
	// that path rasterization can run on the host's GPU.
	Provider gpucontext.DeviceProvider

	// FenceTimeout bounds Sync. Zero waits forever.
	FenceTimeout time.Duration
}

// Context owns the device, command context and fence of one node.
type Context struct {
	backend    Backend
	device     Device
	commands   CommandContext
	fence      Fence
	fenceValue uint64
	timeout    time.Duration
	format     gputypes.TextureFormat
	closed     bool
}

// Open selects an adapter and creates a graphics context on it.
func Open(opts Options) (*Context, error) {
	var b Backend
	if opts.Backend != "" {
		b = Get(opts.Backend)
		if b == nil {
			return nil, fmt.Errorf("%w: %q", ErrBackendNotAvailable, opts.Backend)
		}
	} else if b = Default(); b == nil {
		return nil, ErrBackendNotAvailable
	}

	adapters, err := b.Adapters()
	if err != nil {
		return nil, fmt.Errorf("gpu: enumerate %s adapters: %w", b.Name(), err)
	}
	adapter, err := SelectAdapter(adapters, opts.AdapterMatch)
	if err != nil {
		return nil, err
	}

	dev, err := b.OpenDevice(adapter)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDeviceCreationFailed, adapter.Name, err)
	}
	fence, err := dev.CreateFence()
	if err != nil {
		dev.Destroy()
		return nil, fmt.Errorf("%w: create fence: %w", ErrDeviceCreationFailed, err)
	}

	c := &Context{
		backend:  b,
		device:   dev,
		commands: dev.Commands(),
		fence:    fence,
		timeout:  opts.FenceTimeout,
		format:   gputypes.TextureFormatRGBA8Unorm,
	}

	if p := opts.Provider; p != nil && p.Device() != nil {
		if err := gg.SetAcceleratorDeviceProvider(p); err != nil {
			animnode.Logger().Debug("gpu: host device not shared with accelerator", "err", err)
		}
		if f := p.SurfaceFormat(); BytesPerPixel(f) == 4 {
			c.format = f
		}
	}

	animnode.Logger().Info("gpu: adapter selected",
		"backend", b.Name(), "adapter", adapter.Name, "type", adapter.Type.String())
	return c, nil
}

// SelectAdapter picks an adapter. With a non-empty match the first adapter
// whose name contains it wins; otherwise the most preferred adapter type
// wins, ties broken by enumeration order.
func SelectAdapter(adapters []AdapterInfo, match string) (AdapterInfo, error) {
	if match != "" {
		needle := strings.ToLower(match)
		for _, a := range adapters {
			if strings.Contains(strings.ToLower(a.Name), needle) {
				return a, nil
			}
		}
		return AdapterInfo{}, fmt.Errorf("%w: no adapter matches %q", ErrDeviceNotFound, match)
	}
	if len(adapters) == 0 {
		return AdapterInfo{}, ErrDeviceNotFound
	}
	sorted := slices.Clone(adapters)
	slices.SortStableFunc(sorted, func(a, b AdapterInfo) int {
		return cmp.Compare(a.Type, b.Type)
	})
	return sorted[0], nil
}

// Backend returns the backend the context was opened on.
func (c *Context) Backend() Backend { return c.backend }

// Device returns the logical device.
func (c *Context) Device() Device { return c.device }

// Commands returns the device's command context.
func (c *Context) Commands() CommandContext { return c.commands }

// Format returns the color format used for render targets.
func (c *Context) Format() gputypes.TextureFormat { return c.format }

// FenceValue returns the last value passed to the fence.
func (c *Context) FenceValue() uint64 { return c.fenceValue }

// Sync signals the fence after all submitted work and blocks until the
// device reaches it.
func (c *Context) Sync(ctx context.Context) error {
	if c.closed {
		return ErrContextClosed
	}
	c.fenceValue++
	if err := c.commands.Signal(c.fence, c.fenceValue); err != nil {
		return fmt.Errorf("gpu: signal fence: %w", err)
	}
	return WaitFence(ctx, c.fence, c.fenceValue, c.timeout)
}

// pollInterval is the number of spins between cancellation checks.
const pollInterval = 256

// WaitFence busy-polls f until it reaches value. ctx cancellation and a
// positive timeout end the wait early with an error.
func WaitFence(ctx context.Context, f Fence, value uint64, timeout time.Duration) error {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	for spins := 0; f.Completed() < value; spins++ {
		if spins%pollInterval == 0 {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("gpu: fence wait: %w", err)
			}
			if !deadline.IsZero() && time.Now().After(deadline) {
				return fmt.Errorf("%w after %s (value %d, completed %d)", ErrFenceTimeout, timeout, value, f.Completed())
			}
		}
		runtime.Gosched()
	}
	return nil
}

// Close waits for outstanding work and releases the fence and device.
// Close is idempotent.
func (c *Context) Close() error {
	if c.closed {
		return nil
	}
	err := c.Sync(context.Background())
	c.closed = true
	c.fence.Destroy()
	c.device.Destroy()
	return err
}
