// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package gpu

import (
	"github.com/gogpu/gg"
	"github.com/gogpu/gputypes"
)

// AdapterType classifies a physical adapter. Lower values are preferred.
type AdapterType int

const (
	// AdapterDiscrete is a dedicated GPU.
	AdapterDiscrete AdapterType = iota
	// AdapterIntegrated is a GPU sharing memory with the CPU.
	AdapterIntegrated
	// AdapterVirtual is a virtualized or remote GPU.
	AdapterVirtual
	// AdapterCPU is a software rasterizer.
	AdapterCPU
)

func (t AdapterType) String() string {
	switch t {
	case AdapterDiscrete:
		return "discrete"
	case AdapterIntegrated:
		return "integrated"
	case AdapterVirtual:
		return "virtual"
	case AdapterCPU:
		return "cpu"
	default:
		return "unknown"
	}
}

// AdapterInfo describes an adapter reported by a backend.
type AdapterInfo struct {
	Index  int
	Name   string
	Vendor string
	Type   AdapterType
}

// HandleType identifies the OS mechanism behind a shareable texture handle.
type HandleType uint32

const (
	// HandleTypeUnknown marks an unset handle type.
	HandleTypeUnknown HandleType = iota
	// HandleTypeOpaqueFD is a POSIX file descriptor.
	HandleTypeOpaqueFD
	// HandleTypeOpaqueWin32 is an NT handle to a shared resource.
	HandleTypeOpaqueWin32
	// HandleTypeD3D12Resource is an NT handle created for a D3D resource.
	HandleTypeD3D12Resource
	// HandleTypeProcessLocal is a key into an in-process shared memory table.
	HandleTypeProcessLocal
)

func (h HandleType) String() string {
	switch h {
	case HandleTypeOpaqueFD:
		return "opaque-fd"
	case HandleTypeOpaqueWin32:
		return "opaque-win32"
	case HandleTypeD3D12Resource:
		return "d3d12-resource"
	case HandleTypeProcessLocal:
		return "process-local"
	default:
		return "unknown"
	}
}

// SharedHandle is an OS-level handle through which another graphics
// subsystem can open the memory of a texture without copying it.
type SharedHandle struct {
	Type  HandleType
	Value uint64
}

// TextureUsage specifies how a texture can be used.
type TextureUsage uint32

const (
	// TextureUsageCopySrc allows the texture to be a copy source.
	TextureUsageCopySrc TextureUsage = 1 << iota
	// TextureUsageTextureBinding allows sampling the texture.
	TextureUsageTextureBinding
	// TextureUsageStorageBinding allows unordered access.
	TextureUsageStorageBinding
	// TextureUsageRenderAttachment allows drawing into the texture.
	TextureUsageRenderAttachment
	// TextureUsageShared requests an allocation that can be exported.
	TextureUsageShared
)

// TextureDescriptor describes a texture to allocate.
type TextureDescriptor struct {
	Label         string
	Width         int
	Height        int
	MipLevelCount int
	ArrayLayers   int
	Format        gputypes.TextureFormat
	Usage         TextureUsage
}

// RenderTargetDescriptor returns a descriptor for a shareable, single-mip
// render target of the given size and format.
func RenderTargetDescriptor(width, height int, format gputypes.TextureFormat) TextureDescriptor {
	return TextureDescriptor{
		Label:         "render target",
		Width:         width,
		Height:        height,
		MipLevelCount: 1,
		ArrayLayers:   1,
		Format:        format,
		Usage: TextureUsageRenderAttachment | TextureUsageTextureBinding |
			TextureUsageStorageBinding | TextureUsageShared,
	}
}

// Texture is a native texture owned by a Device.
type Texture interface {
	// Descriptor returns the descriptor the texture was created with.
	Descriptor() TextureDescriptor

	// CreateSharedHandle produces a handle another process or API can open.
	CreateSharedHandle() (SharedHandle, error)

	// Destroy releases the texture. The shared memory stays alive while
	// an importer holds it open.
	Destroy()
}

// Fence is a CPU-visible completion marker.
type Fence interface {
	// Completed returns the last value the device signalled.
	Completed() uint64

	// Destroy releases the fence.
	Destroy()
}

// LoadAction selects what happens to a target's contents at frame start.
type LoadAction int

const (
	// LoadActionClear discards previous contents and fills with the clear color.
	LoadActionClear LoadAction = iota
	// LoadActionPreserve keeps previous contents.
	LoadActionPreserve
)

func (a LoadAction) String() string {
	if a == LoadActionPreserve {
		return "preserve"
	}
	return "clear"
}

// FrameDescriptor configures the start of a frame.
type FrameDescriptor struct {
	LoadAction LoadAction
	ClearColor gg.RGBA
}

// CommandContext records and submits drawing work.
type CommandContext interface {
	// BeginFrame starts a frame on target and returns the drawing context
	// bound to it. The context is valid until Flush.
	BeginFrame(target Texture, desc FrameDescriptor) (*gg.Context, error)

	// Flush submits all drawing queued for target.
	Flush(target Texture) error

	// Signal queues a fence update after all previously submitted work.
	Signal(f Fence, value uint64) error
}

// Device is an opened logical device.
type Device interface {
	Info() AdapterInfo
	CreateTexture(desc TextureDescriptor) (Texture, error)
	CreateFence() (Fence, error)
	Commands() CommandContext
	Destroy()
}

// Backend enumerates adapters and opens devices on them.
type Backend interface {
	Name() string
	Adapters() ([]AdapterInfo, error)
	OpenDevice(adapter AdapterInfo) (Device, error)
}

// BytesPerPixel reports the texel size of a color format, or 0 when the
// format is not a supported color format.
func BytesPerPixel(format gputypes.TextureFormat) int {
	switch format {
	case gputypes.TextureFormatRGBA8Unorm, gputypes.TextureFormatBGRA8Unorm:
		return 4
	case gputypes.TextureFormatR8Unorm:
		return 1
	default:
		return 0
	}
}
