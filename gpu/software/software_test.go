// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package software

import (
	"context"
	"testing"

	"github.com/gogpu/animnode/gpu"
	"github.com/gogpu/gg"
	"github.com/gogpu/gputypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openContext(t *testing.T) *gpu.Context {
	t.Helper()
	c, err := gpu.Open(gpu.Options{Backend: Name})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestRegistered(t *testing.T) {
	assert.Contains(t, gpu.Available(), Name)
	assert.Equal(t, Name, gpu.Get(Name).Name())
}

func TestOpenDeviceRejectsHardwareAdapter(t *testing.T) {
	_, err := New().OpenDevice(gpu.AdapterInfo{Name: "NVIDIA", Type: gpu.AdapterDiscrete})
	assert.Error(t, err)
}

func TestCreateTextureValidation(t *testing.T) {
	c := openContext(t)

	_, err := c.Device().CreateTexture(gpu.RenderTargetDescriptor(0, 10, gputypes.TextureFormatRGBA8Unorm))
	assert.ErrorIs(t, err, gpu.ErrInvalidDimensions)

	_, err = c.Device().CreateTexture(gpu.RenderTargetDescriptor(4, 4, gputypes.TextureFormatR8Unorm))
	assert.ErrorIs(t, err, gpu.ErrUnsupportedFormat)
}

func TestSharedHandleRequiresSharedUsage(t *testing.T) {
	c := openContext(t)
	desc := gpu.RenderTargetDescriptor(4, 4, gputypes.TextureFormatRGBA8Unorm)
	desc.Usage &^= gpu.TextureUsageShared

	tex, err := c.Device().CreateTexture(desc)
	require.NoError(t, err)
	defer tex.Destroy()

	_, err = tex.CreateSharedHandle()
	assert.ErrorIs(t, err, ErrNotShareable)
}

func TestFlushReachesSharedMemoryAfterSync(t *testing.T) {
	c := openContext(t)
	tex, err := c.Device().CreateTexture(gpu.RenderTargetDescriptor(8, 8, gputypes.TextureFormatRGBA8Unorm))
	require.NoError(t, err)

	h, err := tex.CreateSharedHandle()
	require.NoError(t, err)
	assert.Equal(t, gpu.HandleTypeProcessLocal, h.Type)

	mem, ok := Open(h.Value)
	require.True(t, ok)
	defer mem.Close()

	dc, err := c.Commands().BeginFrame(tex, gpu.FrameDescriptor{LoadAction: gpu.LoadActionClear, ClearColor: gg.Red})
	require.NoError(t, err)
	dc.SetRGBA(1, 0, 0, 1)
	dc.DrawRectangle(0, 0, 8, 8)
	require.NoError(t, dc.Fill())
	require.NoError(t, c.Commands().Flush(tex))
	require.NoError(t, c.Sync(context.Background()))

	assert.Equal(t, uint64(1), mem.Version())
	mem.Read(func(pix []byte) {
		assert.Equal(t, byte(255), pix[0], "red")
		assert.Equal(t, byte(0), pix[2], "blue")
		assert.Equal(t, byte(255), pix[3], "alpha")
	})
	tex.Destroy()
}

func TestBGRASwizzle(t *testing.T) {
	c := openContext(t)
	tex, err := c.Device().CreateTexture(gpu.RenderTargetDescriptor(2, 2, gputypes.TextureFormatBGRA8Unorm))
	require.NoError(t, err)
	defer tex.Destroy()

	h, err := tex.CreateSharedHandle()
	require.NoError(t, err)
	mem, ok := Open(h.Value)
	require.True(t, ok)
	defer mem.Close()

	_, err = c.Commands().BeginFrame(tex, gpu.FrameDescriptor{LoadAction: gpu.LoadActionClear, ClearColor: gg.Red})
	require.NoError(t, err)
	require.NoError(t, c.Commands().Flush(tex))
	require.NoError(t, c.Sync(context.Background()))

	mem.Read(func(pix []byte) {
		assert.Equal(t, byte(0), pix[0])
		assert.Equal(t, byte(255), pix[2])
	})
}

func TestSharedMemoryOutlivesTextureWhileOpen(t *testing.T) {
	c := openContext(t)
	before := Live()

	tex, err := c.Device().CreateTexture(gpu.RenderTargetDescriptor(4, 4, gputypes.TextureFormatRGBA8Unorm))
	require.NoError(t, err)
	h, err := tex.CreateSharedHandle()
	require.NoError(t, err)
	mem, ok := Open(h.Value)
	require.True(t, ok)

	tex.Destroy()
	tex.Destroy()
	assert.Equal(t, before+1, Live(), "importer still holds the memory")

	mem.Close()
	assert.Equal(t, before, Live())
	_, ok = Open(h.Value)
	assert.False(t, ok)
}

func TestDestroyedTextureRejected(t *testing.T) {
	c := openContext(t)
	tex, err := c.Device().CreateTexture(gpu.RenderTargetDescriptor(4, 4, gputypes.TextureFormatRGBA8Unorm))
	require.NoError(t, err)
	tex.Destroy()

	_, err = c.Commands().BeginFrame(tex, gpu.FrameDescriptor{})
	assert.ErrorIs(t, err, gpu.ErrTextureDestroyed)
	_, err = tex.CreateSharedHandle()
	assert.ErrorIs(t, err, gpu.ErrTextureDestroyed)
}

func TestForeignTextureRejected(t *testing.T) {
	a := openContext(t)
	b := openContext(t)
	tex, err := a.Device().CreateTexture(gpu.RenderTargetDescriptor(4, 4, gputypes.TextureFormatRGBA8Unorm))
	require.NoError(t, err)
	defer tex.Destroy()

	assert.ErrorIs(t, b.Commands().Flush(tex), gpu.ErrForeignTexture)
}
