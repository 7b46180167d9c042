// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package node

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/gogpu/animnode/asset"
	"github.com/gogpu/animnode/binding"
	"github.com/gogpu/animnode/config"
	"github.com/gogpu/animnode/export"
	"github.com/gogpu/animnode/frame"
	"github.com/gogpu/animnode/gpu"
	"github.com/gogpu/animnode/gpu/software"
	"github.com/gogpu/animnode/host/memhost"
	"github.com/gogpu/animnode/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	togglePath = "../asset/testdata/toggle.yaml"
	bouncePath = "../asset/testdata/bounce.yaml"
)

func testConfig() config.Config {
	cfg := config.Default()
	cfg.GPU.Backend = software.Name
	return cfg
}

func newNode(t *testing.T, host Host, opts ...Option) *Node {
	t.Helper()
	n := New(host, append([]Option{WithConfig(testConfig())}, opts...)...)
	require.NoError(t, n.Create(context.Background()))
	t.Cleanup(func() { _ = n.Destroy() })
	return n
}

// ready loads path and round-trips the intrinsic resolution.
func ready(t *testing.T, h *memhost.Host, n *Node, path string) {
	t.Helper()
	require.NoError(t, h.Set(binding.PortAssetPath, binding.EncodeString(path)))
	require.Equal(t, StatePending, n.State())
	require.NoError(t, h.Pump())
	require.Equal(t, StateReady, n.State())
}

func dynamicPorts(h *memhost.Host) []binding.Port {
	var ports []binding.Port
	for _, p := range h.Ports() {
		if !binding.IsReserved(p.Name) {
			ports = append(ports, p)
		}
	}
	return ports
}

func TestCreateTwice(t *testing.T) {
	n := newNode(t, memhost.New())
	assert.ErrorIs(t, n.Create(context.Background()), ErrAlreadyCreated)
}

func TestCreateUnknownBackend(t *testing.T) {
	cfg := testConfig()
	cfg.GPU.Backend = "vulkan-does-not-exist"
	n := New(memhost.New(), WithConfig(cfg))
	assert.ErrorIs(t, n.Create(context.Background()), gpu.ErrBackendNotAvailable)
	assert.Equal(t, StateUninitialized, n.State())
}

func TestExecuteBeforeRecreate(t *testing.T) {
	n := New(memhost.New(), WithConfig(testConfig()))
	assert.ErrorIs(t, n.Execute(context.Background(), ExecuteParams{}), ErrNotCreated)

	n = newNode(t, memhost.New())
	assert.ErrorIs(t, n.Execute(context.Background(), ExecuteParams{}), ErrNotReady)
}

func TestResolutionNegotiation(t *testing.T) {
	h := memhost.New()
	n := newNode(t, h)

	require.NoError(t, h.Set(binding.PortAssetPath, binding.EncodeString(togglePath)))
	assert.Equal(t, StatePending, n.State())
	assert.Equal(t, 0, h.Imports(), "no texture before the resolution is known")
	assert.Empty(t, dynamicPorts(h), "no bindings before the resolution is known")
	assert.Equal(t, 1, h.Writes(binding.PortResolution))
	assert.ErrorIs(t, n.Execute(context.Background(), ExecuteParams{DeltaTime: 0.016}), ErrNotReady)

	require.NoError(t, h.Pump())
	v, ok := h.Value(binding.PortResolution)
	require.True(t, ok)
	w, hh, err := DecodeResolution(v)
	require.NoError(t, err)
	assert.Equal(t, uint32(320), w)
	assert.Equal(t, uint32(180), hh)

	assert.Equal(t, StateReady, n.State())
	assert.Equal(t, 1, h.Writes(binding.PortResolution), "intrinsic size is published once")
	assert.Equal(t, 1, h.Imports())
}

func TestRecreateDirectWithUnknownResolution(t *testing.T) {
	h := memhost.New()
	n := newNode(t, h)
	n.path = togglePath

	status, err := n.Recreate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusPending, status)
	assert.Nil(t, n.Texture())
	assert.Equal(t, 1, h.Writes(binding.PortResolution))
}

func TestEndToEnd(t *testing.T) {
	reg := prometheus.NewRegistry()
	col, err := metrics.New(reg)
	require.NoError(t, err)

	h := memhost.New()
	n := newNode(t, h, WithMetrics(col))
	ready(t, h, n, togglePath)
	require.NoError(t, h.Set(binding.PortResolution, EncodeResolution(640, 360)))
	require.Equal(t, StateReady, n.State())
	require.NoError(t, h.Pump())

	ports := dynamicPorts(h)
	require.Len(t, ports, 2)
	tags := map[string]string{}
	for _, p := range ports {
		tags[p.Name] = p.TypeTag
	}
	assert.Equal(t, map[string]string{"vm:Toggle.enabled": "bool", "vm:Toggle.level": "float"}, tags)
	level, ok := h.Port("vm:Toggle.level")
	require.True(t, ok)
	assert.Equal(t, "Toggle.level", level.DisplayName)

	out, ok := h.Value(binding.PortOutput)
	require.True(t, ok)
	info, err := export.Unpack(out)
	require.NoError(t, err)
	assert.Equal(t, uint32(640), info.Texture.Width)
	assert.Equal(t, uint32(360), info.Texture.Height)
	assert.Equal(t, n.Texture().Info, info)

	require.NoError(t, h.Set("vm:Toggle.level", binding.EncodeNumber(0.5)))
	require.NoError(t, n.Execute(context.Background(), ExecuteParams{DeltaTime: 0.016, Values: h.Tick()}))

	vm := n.Scene().ViewModel()
	assert.Equal(t, 0.5, vm.Number(vm.PropertyIndex("level")))

	mem, ok := h.Memory(info.Memory.Handle)
	require.True(t, ok)
	assert.Equal(t, uint64(1), mem.Version(), "frame complete when Execute returns")
	mem.Read(func(pix []byte) {
		i := (180*640 + 320) * 4
		assert.NotZero(t, pix[i], "knob drawn")
		assert.Zero(t, pix[i+1])
		assert.InDelta(t, 128, int(pix[i+3]), 2, "at half opacity")
	})

	series, err := testutil.GatherAndCount(reg, "animnode_recreates_total")
	require.NoError(t, err)
	assert.Equal(t, 2, series, "pending and ready")
}

func TestResourceSafety(t *testing.T) {
	h := memhost.New()
	n := newNode(t, h)
	require.NoError(t, h.Set(binding.PortAssetPath, binding.EncodeString(togglePath)))

	const recreates = 5
	for i := range recreates {
		require.NoError(t, h.Set(binding.PortResolution, EncodeResolution(uint32(100+i), 100)))
		require.Equal(t, StateReady, n.State())
		assert.Equal(t, i, h.Destroys(), "old resource destroyed only after the new import")
		assert.Equal(t, 1, h.Live())
	}
	assert.Equal(t, recreates, h.Imports())
	assert.Equal(t, recreates-1, h.Destroys())
	assert.Equal(t, 1, h.Live())

	require.NoError(t, n.Destroy())
	assert.Equal(t, 0, h.Live())
	assert.Equal(t, 0, software.Live())
}

func TestPortsSurviveResize(t *testing.T) {
	h := memhost.New()
	n := newNode(t, h)
	ready(t, h, n, bouncePath)

	before := dynamicPorts(h)
	require.NotEmpty(t, before)
	require.NoError(t, h.Set(binding.PortResolution, EncodeResolution(800, 600)))
	assert.Equal(t, before, dynamicPorts(h), "same ids, no churn")

	var names []string
	for _, p := range before {
		names = append(names, p.Name)
	}
	assert.Contains(t, names, "builtin:PointerMove")
	assert.Contains(t, names, "sm:Controller.bouncing")
	assert.Equal(t, "Controller", n.Machine().Name())
}

func TestAssetChangeReconcilesPorts(t *testing.T) {
	h := memhost.New()
	n := newNode(t, h)
	ready(t, h, n, bouncePath)
	require.Greater(t, len(dynamicPorts(h)), 2)

	ready(t, h, n, togglePath)
	ports := dynamicPorts(h)
	require.Len(t, ports, 2)
	w, hh := n.Resolution()
	assert.Equal(t, uint32(320), w, "asset change resets the resolution to intrinsic")
	assert.Equal(t, uint32(180), hh)
}

func TestOrphanedPorts(t *testing.T) {
	h := memhost.New()
	h.AddPort(binding.Port{ID: "old-1", Name: "vm:Toggle.enabled", DisplayName: "Toggle.enabled", TypeTag: "bool"})
	h.AddPort(binding.Port{ID: "old-2", Name: "vm:Gone.value", DisplayName: "Gone.value", TypeTag: "float"})

	n := newNode(t, h)
	assert.Equal(t, []string{"vm:Gone.value", "vm:Toggle.enabled"}, n.Orphans())

	ready(t, h, n, togglePath)
	assert.Empty(t, n.Orphans())

	kept, ok := h.Port("vm:Toggle.enabled")
	require.True(t, ok)
	assert.Equal(t, "old-1", kept.ID, "revalidated port keeps its id")
	_, ok = h.Port("vm:Gone.value")
	assert.False(t, ok)
}

func TestMissingAsset(t *testing.T) {
	h := memhost.New()
	n := newNode(t, h)
	ready(t, h, n, togglePath)

	err := h.Set(binding.PortAssetPath, binding.EncodeString(filepath.Join(t.TempDir(), "nope.yaml")))
	assert.ErrorIs(t, err, asset.ErrFileNotFound)
	assert.ErrorIs(t, n.Execute(context.Background(), ExecuteParams{}), ErrNotReady)
	assert.Equal(t, 1, h.Live(), "the last exported texture stays valid")
}

func TestImportFailureKeepsTexture(t *testing.T) {
	h := memhost.New()
	n := newNode(t, h)
	ready(t, h, n, togglePath)
	before := n.Texture()

	h.SetFailures(memhost.Failures{ZeroHandle: true})
	err := h.Set(binding.PortResolution, EncodeResolution(64, 64))
	assert.ErrorIs(t, err, export.ErrImportFailed)
	assert.Same(t, before, n.Texture())
	assert.Equal(t, 0, h.Destroys())

	h.SetFailures(memhost.Failures{DestroyErr: errors.New("device lost")})
	require.NoError(t, h.Set(binding.PortResolution, EncodeResolution(64, 64)), "destroy failures are not fatal")
	assert.NotSame(t, before, n.Texture())
	h.SetFailures(memhost.Failures{})
}

// syncHost delivers node writes immediately, so watchers re-enter Recreate.
type syncHost struct {
	*memhost.Host
}

func (s syncHost) SetPinValue(name string, value []byte) error {
	return s.Host.Set(name, value)
}

func TestReentrantRecreateIsCoalesced(t *testing.T) {
	h := syncHost{memhost.New()}
	n := newNode(t, h)

	require.NoError(t, h.Set(binding.PortAssetPath, binding.EncodeString(togglePath)))
	assert.Equal(t, StateReady, n.State())
	assert.Equal(t, 1, h.Imports())
	w, hh := n.Resolution()
	assert.Equal(t, uint32(320), w)
	assert.Equal(t, uint32(180), hh)
}

func TestInitialPortValues(t *testing.T) {
	cfg := testConfig()
	cfg.Ports = map[string]any{"vm:Toggle.level": "0.25", "vm:Toggle.enabled": false, "vm:Nope.x": 1}
	h := memhost.New()
	n := New(h, WithConfig(cfg))
	require.NoError(t, n.Create(context.Background()))
	defer n.Destroy()

	ready(t, h, n, togglePath)
	vm := n.Scene().ViewModel()
	assert.Equal(t, 0.25, vm.Number(vm.PropertyIndex("level")))
	assert.False(t, vm.Bool(vm.PropertyIndex("enabled")))
}

func TestDestroy(t *testing.T) {
	h := memhost.New()
	n := New(h, WithConfig(testConfig()))
	require.NoError(t, n.Create(context.Background()))
	ready(t, h, n, togglePath)

	require.NoError(t, n.Destroy())
	require.NoError(t, n.Destroy())
	assert.Equal(t, 0, h.Live())
	assert.Equal(t, StateUninitialized, n.State())
	assert.ErrorIs(t, n.Execute(context.Background(), ExecuteParams{}), ErrNotCreated)
}

func TestCreateAfterDestroyWatchesOnce(t *testing.T) {
	h := memhost.New()
	n := New(h, WithConfig(testConfig()))
	require.NoError(t, n.Create(context.Background()))
	ready(t, h, n, togglePath)
	require.NoError(t, n.Destroy())

	require.NoError(t, n.Create(context.Background()))
	t.Cleanup(func() { _ = n.Destroy() })
	writes, imports := h.Writes(binding.PortResolution), h.Imports()

	ready(t, h, n, togglePath)
	assert.Equal(t, writes+1, h.Writes(binding.PortResolution), "one recreate per asset change")
	assert.Equal(t, imports+1, h.Imports(), "one export per resolution change")
	assert.Equal(t, 1, h.Live())
}

func TestExecuteRejectsBadDeltaTime(t *testing.T) {
	h := memhost.New()
	n := newNode(t, h)
	ready(t, h, n, togglePath)

	for _, dt := range []float64{math.Inf(1), math.NaN(), -1} {
		err := n.Execute(context.Background(), ExecuteParams{DeltaTime: dt, Values: h.Tick()})
		assert.ErrorIs(t, err, frame.ErrDeltaTime, "dt=%v", dt)
	}
	require.NoError(t, n.Execute(context.Background(), ExecuteParams{DeltaTime: 0.016, Values: h.Tick()}))
}

func TestResolutionPayload(t *testing.T) {
	w, h, err := DecodeResolution(EncodeResolution(1920, 1080))
	require.NoError(t, err)
	assert.Equal(t, uint32(1920), w)
	assert.Equal(t, uint32(1080), h)

	_, _, err = DecodeResolution([]byte{1, 2, 3})
	assert.ErrorIs(t, err, binding.ErrPayload)
}
