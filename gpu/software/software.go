// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package software provides a CPU device for the gpu package.
//
// Textures are gg pixmaps drawn on the caller's goroutine. Flush copies the
// pixels into shared Memory on a queue goroutine and fences are signalled
// on the same queue, so waiting on a fence is a real wait for the upload.
// Shared handles are keys into a process-wide table opened with [Open].
//
// Importing the package registers the backend under [Name]:
//
//	import _ "github.com/gogpu/animnode/gpu/software"
package software

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/gogpu/animnode/gpu"
	"github.com/gogpu/gg"
	"github.com/gogpu/gputypes"
)

// Name is the registry name of the software backend.
const Name = "software"

// ErrNotShareable is returned by CreateSharedHandle for textures allocated
// without gpu.TextureUsageShared.
var ErrNotShareable = errors.New("software: texture was not allocated as shareable")

// errDeviceLost is returned when work is submitted after Destroy.
var errDeviceLost = errors.New("software: device destroyed")

func init() {
	gpu.Register(Name, func() gpu.Backend { return New() })
}

// Backend is the software backend. It exposes a single CPU adapter.
type Backend struct{}

// New returns a software backend.
func New() *Backend { return &Backend{} }

// Name returns the backend name.
func (*Backend) Name() string { return Name }

// Adapters reports the single CPU adapter.
func (*Backend) Adapters() ([]gpu.AdapterInfo, error) {
	return []gpu.AdapterInfo{{
		Index:  0,
		Name:   "gg software rasterizer",
		Vendor: "gogpu",
		Type:   gpu.AdapterCPU,
	}}, nil
}

// OpenDevice starts a device with its own submission queue.
func (*Backend) OpenDevice(adapter gpu.AdapterInfo) (gpu.Device, error) {
	if adapter.Type != gpu.AdapterCPU {
		return nil, fmt.Errorf("software: cannot open %s adapter %q", adapter.Type, adapter.Name)
	}
	d := &device{
		info: adapter,
		jobs: make(chan func(), 64),
		done: make(chan struct{}),
	}
	d.cmds = &commands{dev: d}
	go d.run()
	return d, nil
}

type device struct {
	info gpu.AdapterInfo
	cmds *commands

	mu     sync.Mutex
	closed bool
	jobs   chan func()
	done   chan struct{}
}

func (d *device) run() {
	defer close(d.done)
	for job := range d.jobs {
		job()
	}
}

func (d *device) submit(job func()) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return errDeviceLost
	}
	d.jobs <- job
	return nil
}

func (d *device) Info() gpu.AdapterInfo { return d.info }

func (d *device) Commands() gpu.CommandContext { return d.cmds }

func (d *device) CreateTexture(desc gpu.TextureDescriptor) (gpu.Texture, error) {
	if desc.Width <= 0 || desc.Height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", gpu.ErrInvalidDimensions, desc.Width, desc.Height)
	}
	switch desc.Format {
	case gputypes.TextureFormatRGBA8Unorm, gputypes.TextureFormatBGRA8Unorm:
	default:
		return nil, fmt.Errorf("%w: %v", gpu.ErrUnsupportedFormat, desc.Format)
	}
	pm := gg.NewPixmap(desc.Width, desc.Height)
	return &texture{
		dev:    d,
		desc:   desc,
		pixmap: pm,
		dc:     gg.NewContext(desc.Width, desc.Height, gg.WithPixmap(pm)),
	}, nil
}

func (d *device) CreateFence() (gpu.Fence, error) {
	return &fence{}, nil
}

// Destroy drains the queue and stops it.
func (d *device) Destroy() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.jobs)
	d.mu.Unlock()
	<-d.done
}

type texture struct {
	dev    *device
	desc   gpu.TextureDescriptor
	pixmap *gg.Pixmap
	dc     *gg.Context
	mem    *Memory

	destroyed bool
}

func (t *texture) Descriptor() gpu.TextureDescriptor { return t.desc }

func (t *texture) CreateSharedHandle() (gpu.SharedHandle, error) {
	if t.destroyed {
		return gpu.SharedHandle{}, gpu.ErrTextureDestroyed
	}
	if t.desc.Usage&gpu.TextureUsageShared == 0 {
		return gpu.SharedHandle{}, ErrNotShareable
	}
	if t.mem == nil {
		t.mem = newMemory(t.desc.Width, t.desc.Height, gpu.BytesPerPixel(t.desc.Format))
	}
	return gpu.SharedHandle{Type: gpu.HandleTypeProcessLocal, Value: t.mem.handle}, nil
}

func (t *texture) Destroy() {
	if t.destroyed {
		return
	}
	t.destroyed = true
	_ = t.dc.Close()
	if t.mem != nil {
		t.mem.Close()
	}
}

type fence struct {
	value atomic.Uint64
}

func (f *fence) Completed() uint64 { return f.value.Load() }

func (f *fence) Destroy() {}

type commands struct {
	dev *device
}

func (c *commands) own(target gpu.Texture) (*texture, error) {
	t, ok := target.(*texture)
	if !ok || t.dev != c.dev {
		return nil, gpu.ErrForeignTexture
	}
	if t.destroyed {
		return nil, gpu.ErrTextureDestroyed
	}
	return t, nil
}

func (c *commands) BeginFrame(target gpu.Texture, desc gpu.FrameDescriptor) (*gg.Context, error) {
	t, err := c.own(target)
	if err != nil {
		return nil, err
	}
	t.dc.Identity()
	t.dc.ResetClip()
	if desc.LoadAction == gpu.LoadActionClear {
		t.dc.ClearWithColor(desc.ClearColor)
	}
	return t.dc, nil
}

func (c *commands) Flush(target gpu.Texture) error {
	t, err := c.own(target)
	if err != nil {
		return err
	}
	if err := t.dc.FlushGPU(); err != nil {
		return fmt.Errorf("software: flush accelerator: %w", err)
	}
	if t.mem == nil {
		return nil
	}
	pix := slices.Clone(t.pixmap.Data())
	mem := t.mem
	swizzle := t.desc.Format == gputypes.TextureFormatBGRA8Unorm
	return c.dev.submit(func() { mem.write(pix, swizzle) })
}

func (c *commands) Signal(f gpu.Fence, value uint64) error {
	sf, ok := f.(*fence)
	if !ok {
		return fmt.Errorf("software: foreign fence %T", f)
	}
	return c.dev.submit(func() { sf.value.Store(value) })
}
