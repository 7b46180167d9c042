// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package export allocates render targets that another graphics subsystem
// can consume without a copy.
//
// An [Exporter] allocates a native texture with a shareable OS handle,
// computes the size of its backing allocation and hands a [ShareInfo]
// record to an [Importer]. The importer opens the memory on its side and
// fills in its own resource handle.
//
// # Replacement
//
// At most one exported texture is current. When a new one is imported the
// previous imported resource is destroyed only after the new import has
// succeeded with a non-zero handle, so the consumer never holds a record
// that points at freed memory.
package export

import (
	"errors"
	"fmt"
	"os"

	"github.com/gogpu/animnode"
	"github.com/gogpu/animnode/gpu"
	"github.com/gogpu/gputypes"
)

var (
	// ErrDeviceError is returned when the native texture cannot be allocated.
	ErrDeviceError = errors.New("export: texture allocation failed")

	// ErrExportFailed is returned when the shareable handle cannot be created.
	ErrExportFailed = errors.New("export: shared handle creation failed")

	// ErrImportFailed is returned when the importer fails or returns a zero handle.
	ErrImportFailed = errors.New("export: import failed")
)

// ImportLabel is the debug label passed to the importer.
const ImportLabel = "Imported Render Target"

// Usage mirrors the consumer-side image usage flags.
type Usage uint32

const (
	// UsageSampled allows the consumer to sample the image.
	UsageSampled Usage = 1 << iota
	// UsageTransferSrc allows the consumer to copy from the image.
	UsageTransferSrc
)

// FieldType describes the scan layout of the image.
type FieldType uint32

const (
	// FieldProgressive is a full progressive frame.
	FieldProgressive FieldType = iota + 1
)

// ExternalMemory describes an OS-level allocation shared across APIs.
type ExternalMemory struct {
	HandleType     gpu.HandleType
	Handle         uint64
	Offset         uint64
	AllocationSize uint64
	PID            int
}

// TextureInfo describes the image the consumer will see.
type TextureInfo struct {
	Width     uint32
	Height    uint32
	Format    gputypes.TextureFormat
	Usage     Usage
	FieldType FieldType
}

// MemoryInfo holds the consumer's resource handle and the external memory
// it was imported from. Handle is zero until an import succeeds.
type MemoryInfo struct {
	Handle   uint64
	Size     uint64
	External ExternalMemory
}

// ShareInfo is the record exchanged with the importer and published on
// the node's output.
type ShareInfo struct {
	Texture TextureInfo
	Memory  MemoryInfo
}

// Importer is the external subsystem consuming exported textures.
type Importer interface {
	// ImportResource opens the external memory described by info and
	// stores the resulting resource handle in info.Memory.Handle.
	ImportResource(info *ShareInfo, label string) error

	// DestroyResource releases a previously imported resource.
	DestroyResource(info ShareInfo) error
}

// Texture is an exported render target.
type Texture struct {
	Native         gpu.Texture
	Shared         gpu.SharedHandle
	AllocationSize uint64
	Info           ShareInfo
}

// Width returns the texture width in pixels.
func (t *Texture) Width() int { return t.Native.Descriptor().Width }

// Height returns the texture height in pixels.
func (t *Texture) Height() int { return t.Native.Descriptor().Height }

// AllocationSize returns the size in bytes of the backing allocation of a
// texture: the sum over mip levels of row pitch times rows, per layer.
func AllocationSize(desc gpu.TextureDescriptor) uint64 {
	bpp := uint64(gpu.BytesPerPixel(desc.Format)) * 8
	mips := max(desc.MipLevelCount, 1)
	layers := uint64(max(desc.ArrayLayers, 1))

	var total uint64
	for mip := range mips {
		w := uint64(max(desc.Width>>mip, 1))
		h := uint64(max(desc.Height>>mip, 1))
		rowPitch := (w*bpp + 7) / 8
		total += rowPitch * h * layers
	}
	return total
}

// Exporter creates exported textures on a device and keeps the current one.
type Exporter struct {
	device   gpu.Device
	importer Importer
	format   gputypes.TextureFormat
	current  *Texture
}

// NewExporter returns an exporter allocating format textures on device
// and importing them through importer.
func NewExporter(device gpu.Device, importer Importer, format gputypes.TextureFormat) *Exporter {
	return &Exporter{device: device, importer: importer, format: format}
}

// Current returns the current exported texture, or nil.
func (e *Exporter) Current() *Texture { return e.current }

// CreateAndExport allocates a width×height texture, exports it, imports it
// and makes it current, destroying the previously imported resource only
// after the import succeeded. On failure the current texture is unchanged.
func (e *Exporter) CreateAndExport(width, height int) (*Texture, error) {
	desc := gpu.RenderTargetDescriptor(width, height, e.format)
	native, err := e.device.CreateTexture(desc)
	if err != nil {
		return nil, fmt.Errorf("%w: %dx%d: %w", ErrDeviceError, width, height, err)
	}

	shared, err := native.CreateSharedHandle()
	if err != nil {
		native.Destroy()
		return nil, fmt.Errorf("%w: %w", ErrExportFailed, err)
	}
	if shared.Value == 0 {
		native.Destroy()
		return nil, fmt.Errorf("%w: zero handle", ErrExportFailed)
	}

	size := AllocationSize(desc)
	info := ShareInfo{
		Texture: TextureInfo{
			Width:     uint32(width),  //nolint:gosec // validated by CreateTexture
			Height:    uint32(height), //nolint:gosec // validated by CreateTexture
			Format:    e.format,
			Usage:     UsageSampled | UsageTransferSrc,
			FieldType: FieldProgressive,
		},
		Memory: MemoryInfo{
			Size: size,
			External: ExternalMemory{
				HandleType:     shared.Type,
				Handle:         shared.Value,
				AllocationSize: size,
				PID:            os.Getpid(),
			},
		},
	}

	if err := e.importer.ImportResource(&info, ImportLabel); err != nil {
		native.Destroy()
		return nil, fmt.Errorf("%w: %w", ErrImportFailed, err)
	}
	if info.Memory.Handle == 0 {
		native.Destroy()
		return nil, fmt.Errorf("%w: importer returned a zero resource handle", ErrImportFailed)
	}

	tex := &Texture{Native: native, Shared: shared, AllocationSize: size, Info: info}
	prev := e.current
	e.current = tex
	if prev != nil {
		e.retire(prev)
	}

	animnode.Logger().Debug("export: texture imported",
		"width", width, "height", height, "bytes", size, "resource", info.Memory.Handle)
	return tex, nil
}

// retire destroys a superseded texture. Destroy failures are logged only:
// the new resource is already valid.
func (e *Exporter) retire(t *Texture) {
	if err := e.importer.DestroyResource(t.Info); err != nil {
		animnode.Logger().Warn("export: destroy superseded resource failed",
			"resource", t.Info.Memory.Handle, "err", err)
	}
	t.Native.Destroy()
}

// Release destroys the current imported resource and native texture.
func (e *Exporter) Release() error {
	if e.current == nil {
		return nil
	}
	t := e.current
	e.current = nil
	err := e.importer.DestroyResource(t.Info)
	t.Native.Destroy()
	if err != nil {
		return fmt.Errorf("export: release resource %d: %w", t.Info.Memory.Handle, err)
	}
	return nil
}
