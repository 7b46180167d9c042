// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package gpu

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gogpu/gg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockFence completes whatever value it is signalled with, unless stuck.
type mockFence struct {
	value     atomic.Uint64
	stuck     bool
	destroyed bool
}

func (f *mockFence) Completed() uint64 { return f.value.Load() }
func (f *mockFence) Destroy()          { f.destroyed = true }

type mockCommands struct {
	signals int
}

func (c *mockCommands) BeginFrame(Texture, FrameDescriptor) (*gg.Context, error) {
	return gg.NewContext(1, 1), nil
}
func (c *mockCommands) Flush(Texture) error { return nil }
func (c *mockCommands) Signal(f Fence, value uint64) error {
	c.signals++
	if mf := f.(*mockFence); !mf.stuck {
		mf.value.Store(value)
	}
	return nil
}

type mockDevice struct {
	info      AdapterInfo
	fence     *mockFence
	cmds      *mockCommands
	destroyed bool
}

func (d *mockDevice) Info() AdapterInfo                             { return d.info }
func (d *mockDevice) CreateTexture(TextureDescriptor) (Texture, error) { return nil, errors.New("unused") }
func (d *mockDevice) CreateFence() (Fence, error)                   { return d.fence, nil }
func (d *mockDevice) Commands() CommandContext                      { return d.cmds }
func (d *mockDevice) Destroy()                                      { d.destroyed = true }

type mockBackend struct {
	name     string
	adapters []AdapterInfo
	dev      *mockDevice
}

func (b *mockBackend) Name() string                      { return b.name }
func (b *mockBackend) Adapters() ([]AdapterInfo, error) { return b.adapters, nil }
func (b *mockBackend) OpenDevice(a AdapterInfo) (Device, error) {
	b.dev = &mockDevice{info: a, fence: &mockFence{}, cmds: &mockCommands{}}
	return b.dev, nil
}

func registerMock(t *testing.T, name string, adapters ...AdapterInfo) *mockBackend {
	t.Helper()
	b := &mockBackend{name: name, adapters: adapters}
	Register(name, func() Backend { return b })
	t.Cleanup(func() { Unregister(name) })
	return b
}

func TestSelectAdapter(t *testing.T) {
	adapters := []AdapterInfo{
		{Index: 0, Name: "Microsoft Basic Render Driver", Type: AdapterCPU},
		{Index: 1, Name: "Intel(R) UHD Graphics 770", Type: AdapterIntegrated},
		{Index: 2, Name: "NVIDIA GeForce RTX 4090", Type: AdapterDiscrete},
		{Index: 3, Name: "NVIDIA RTX A6000", Type: AdapterDiscrete},
	}

	tests := []struct {
		name    string
		match   string
		want    int
		wantErr error
	}{
		{"prefers discrete", "", 2, nil},
		{"match substring", "intel", 1, nil},
		{"match is case-insensitive", "rtx a6000", 3, nil},
		{"first match wins", "NVIDIA", 2, nil},
		{"no match", "Radeon", 0, ErrDeviceNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SelectAdapter(adapters, tt.match)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Index)
		})
	}
}

func TestSelectAdapterEmpty(t *testing.T) {
	_, err := SelectAdapter(nil, "")
	assert.ErrorIs(t, err, ErrDeviceNotFound)
}

func TestOpenUnknownBackend(t *testing.T) {
	_, err := Open(Options{Backend: "does-not-exist"})
	assert.ErrorIs(t, err, ErrBackendNotAvailable)
}

func TestOpenNoAdapters(t *testing.T) {
	registerMock(t, "mock-empty")
	_, err := Open(Options{Backend: "mock-empty"})
	assert.ErrorIs(t, err, ErrDeviceNotFound)
}

func TestContextSyncAndClose(t *testing.T) {
	b := registerMock(t, "mock-sync", AdapterInfo{Name: "mock", Type: AdapterDiscrete})

	c, err := Open(Options{Backend: "mock-sync"})
	require.NoError(t, err)

	require.NoError(t, c.Sync(context.Background()))
	require.NoError(t, c.Sync(context.Background()))
	assert.Equal(t, uint64(2), c.FenceValue())
	assert.Equal(t, 2, b.dev.cmds.signals)

	require.NoError(t, c.Close())
	assert.True(t, b.dev.destroyed)
	assert.True(t, b.dev.fence.destroyed)
	assert.NoError(t, c.Close(), "Close must be idempotent")
	assert.ErrorIs(t, c.Sync(context.Background()), ErrContextClosed)
}

func TestWaitFenceTimeout(t *testing.T) {
	f := &mockFence{stuck: true}
	err := WaitFence(context.Background(), f, 1, 5*time.Millisecond)
	assert.ErrorIs(t, err, ErrFenceTimeout)
}

func TestWaitFenceCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := WaitFence(ctx, &mockFence{}, 1, 0)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWaitFenceAsyncSignal(t *testing.T) {
	f := &mockFence{}
	go func() {
		time.Sleep(2 * time.Millisecond)
		f.value.Store(7)
	}()
	require.NoError(t, WaitFence(context.Background(), f, 7, time.Second))
}

func TestRegistryDefaultPriority(t *testing.T) {
	registerMock(t, "zz-fallback", AdapterInfo{Name: "a"})
	assert.Contains(t, Available(), "zz-fallback")
	assert.NotNil(t, Default())

	registerMock(t, "vulkan", AdapterInfo{Name: "b"})
	assert.Equal(t, "vulkan", Default().Name())
}
