// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package memhost

import (
	"errors"
	"testing"

	"github.com/gogpu/animnode/binding"
	"github.com/gogpu/animnode/export"
	"github.com/gogpu/animnode/gpu"
	"github.com/gogpu/animnode/gpu/software"
	"github.com/gogpu/gputypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReservedPorts(t *testing.T) {
	h := New()
	ports := h.Ports()
	require.Len(t, ports, 3)
	assert.Equal(t, binding.PortResolution, ports[0].Name)
	assert.Equal(t, binding.PortAssetPath, ports[1].Name)
	assert.Equal(t, binding.PortOutput, ports[2].Name)
	assert.NotEqual(t, ports[0].ID, ports[1].ID)

	err := h.UpdatePorts(nil, []binding.Port{ports[0]})
	assert.Error(t, err)
	assert.Len(t, h.Ports(), 3)
}

func TestUpdatePorts(t *testing.T) {
	h := New()
	a := binding.Port{ID: h.NewID(), Name: "vm:A.x", TypeTag: binding.TagFloat}
	b := binding.Port{ID: h.NewID(), Name: "vm:A.y", TypeTag: binding.TagBool}
	require.NoError(t, h.UpdatePorts([]binding.Port{a, b}, nil))
	require.NoError(t, h.UpdatePorts(nil, []binding.Port{a}))

	_, ok := h.Port("vm:A.x")
	assert.False(t, ok)
	got, ok := h.Port("vm:A.y")
	require.True(t, ok)
	assert.Equal(t, b, got)
	assert.Len(t, h.Ports(), 4)
}

func TestSetRunsWatchers(t *testing.T) {
	h := New()
	var seen []string
	h.Watch(binding.PortAssetPath, func(v []byte) error {
		seen = append(seen, binding.DecodeString(v))
		return nil
	})
	h.Watch(binding.PortAssetPath, func([]byte) error { return errors.New("boom") })

	err := h.Set(binding.PortAssetPath, binding.EncodeString("a.yaml"))
	assert.EqualError(t, err, "boom")
	assert.Equal(t, []string{"a.yaml"}, seen)

	assert.ErrorIs(t, h.Set("nope", nil), ErrUnknownPort)
}

func TestPumpDeliversNodeWrites(t *testing.T) {
	h := New()
	calls := 0
	h.Watch(binding.PortResolution, func([]byte) error {
		calls++
		if calls == 1 {
			return h.SetPinValue(binding.PortOutput, []byte{1})
		}
		return nil
	})

	require.NoError(t, h.SetPinValue(binding.PortResolution, []byte{1, 2}))
	assert.Equal(t, 0, calls, "queued until Pump")
	_, ok := h.Value(binding.PortResolution)
	assert.False(t, ok)

	require.NoError(t, h.Pump())
	assert.Equal(t, 1, calls)
	v, _ := h.Value(binding.PortResolution)
	assert.Equal(t, []byte{1, 2}, v)
	out, _ := h.Value(binding.PortOutput)
	assert.Equal(t, []byte{1}, out, "writes made by watchers are delivered too")
	assert.Equal(t, 1, h.Writes(binding.PortResolution))
	assert.Equal(t, 1, h.Writes(binding.PortOutput))

	assert.ErrorIs(t, h.SetPinValue("nope", nil), ErrUnknownPort)
}

func TestPumpStopsOnFeedbackLoop(t *testing.T) {
	h := New()
	h.Watch(binding.PortResolution, func(v []byte) error {
		return h.SetPinValue(binding.PortResolution, v)
	})
	require.NoError(t, h.SetPinValue(binding.PortResolution, []byte{0}))
	require.NoError(t, h.Pump())
	assert.Equal(t, maxPumpRounds+1, h.Writes(binding.PortResolution))
}

func TestTickClearsChanged(t *testing.T) {
	h := New()
	require.NoError(t, h.UpdatePorts([]binding.Port{{ID: h.NewID(), Name: "vm:A.x", TypeTag: binding.TagFloat}}, nil))
	require.NoError(t, h.Set("vm:A.x", binding.EncodeNumber(2)))
	require.NoError(t, h.Set(binding.PortAssetPath, binding.EncodeString("a")))

	first := h.Tick()
	require.Len(t, first, 1, "reserved ports are not inputs")
	assert.True(t, first["vm:A.x"].Changed)
	assert.Equal(t, binding.EncodeNumber(2), first["vm:A.x"].Data)

	assert.Empty(t, h.Tick(), "only ports written since the last tick")

	require.NoError(t, h.Set("vm:A.x", binding.EncodeNumber(3)))
	require.NoError(t, h.UpdatePorts(nil, []binding.Port{{Name: "vm:A.x"}}))
	assert.Empty(t, h.Tick(), "deleted ports are dropped")
}

func exportInfo(t *testing.T) (gpu.Texture, export.ShareInfo) {
	t.Helper()
	dev, err := software.New().OpenDevice(gpu.AdapterInfo{Name: "test"})
	require.NoError(t, err)
	t.Cleanup(dev.Destroy)
	tex, err := dev.CreateTexture(gpu.RenderTargetDescriptor(8, 4, gputypes.TextureFormatRGBA8Unorm))
	require.NoError(t, err)
	t.Cleanup(tex.Destroy)
	sh, err := tex.CreateSharedHandle()
	require.NoError(t, err)
	return tex, export.ShareInfo{
		Texture: export.TextureInfo{Width: 8, Height: 4},
		Memory:  export.MemoryInfo{External: export.ExternalMemory{HandleType: sh.Type, Handle: sh.Value}},
	}
}

func TestImportDestroy(t *testing.T) {
	h := New()
	_, info := exportInfo(t)

	require.NoError(t, h.ImportResource(&info, export.ImportLabel))
	assert.NotZero(t, info.Memory.Handle)
	assert.Equal(t, 1, h.Live())
	mem, ok := h.Memory(info.Memory.Handle)
	require.True(t, ok)
	w, hh := mem.Size()
	assert.Equal(t, 8, w)
	assert.Equal(t, 4, hh)

	require.NoError(t, h.DestroyResource(info))
	assert.Equal(t, 0, h.Live())
	_, ok = h.Memory(info.Memory.Handle)
	assert.False(t, ok)
	assert.ErrorIs(t, h.DestroyResource(info), ErrUnknownResource)
	assert.Equal(t, 2, h.Destroys())
	assert.Equal(t, 1, h.Imports())
}

func TestImportFailures(t *testing.T) {
	h := New()
	_, info := exportInfo(t)

	h.SetFailures(Failures{ImportErr: errors.New("out of memory")})
	assert.EqualError(t, h.ImportResource(&info, export.ImportLabel), "out of memory")

	h.SetFailures(Failures{ZeroHandle: true})
	require.NoError(t, h.ImportResource(&info, export.ImportLabel))
	assert.Zero(t, info.Memory.Handle)
	assert.Equal(t, 0, h.Imports())

	info.Memory.External.Handle = 1 << 40
	h.SetFailures(Failures{})
	assert.Error(t, h.ImportResource(&info, export.ImportLabel), "unknown shared memory")
}
