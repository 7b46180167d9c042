// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package node implements the render node: it renders one frame of a
// vector animation per Execute into an exported GPU texture and keeps the
// node's input ports in sync with the animation's bindable surface.
//
// The host drives a node through [Node.Create], [Node.Execute] and
// [Node.Destroy]. Writes to the Resolution and AssetPath ports trigger
// [Node.Recreate] through watchers. A Recreate with an unknown resolution
// publishes the artboard's intrinsic size to Resolution and returns
// [StatusPending]; the host writing that size back completes it.
//
// A Node is not safe for concurrent use; the host serializes calls.
package node

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/gogpu/animnode"
	"github.com/gogpu/animnode/asset"
	"github.com/gogpu/animnode/binding"
	"github.com/gogpu/animnode/config"
	"github.com/gogpu/animnode/export"
	"github.com/gogpu/animnode/frame"
	"github.com/gogpu/animnode/gpu"
	"github.com/gogpu/animnode/metrics"
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
)

var (
	// ErrNotReady is returned by Execute while no render target or scene
	// exists. It is a normal transient condition during Recreate.
	ErrNotReady = errors.New("node: not ready")

	// ErrNotCreated is returned when the node was not created or was
	// destroyed.
	ErrNotCreated = errors.New("node: not created")

	// ErrAlreadyCreated is returned by a second Create.
	ErrAlreadyCreated = errors.New("node: already created")
)

// State is the lifecycle state of a node.
type State int

const (
	StateUninitialized State = iota
	StateReady
	StateRecreating
	StatePending
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateRecreating:
		return "recreating"
	case StatePending:
		return "pending"
	}
	return "unknown"
}

// Status is the non-error outcome of Recreate.
type Status int

const (
	// StatusReady means the node has a texture and a scene.
	StatusReady Status = iota
	// StatusPending means the node waits for the host to write back the
	// published resolution.
	StatusPending
)

func (s Status) String() string {
	if s == StatusPending {
		return "pending"
	}
	return "ready"
}

// Option configures a Node.
type Option func(*options)

type options struct {
	cfg      config.Config
	metrics  *metrics.Collector
	provider gpucontext.DeviceProvider
}

// WithConfig sets the node configuration. The default is config.Default().
func WithConfig(cfg config.Config) Option {
	return func(o *options) { o.cfg = cfg }
}

// WithMetrics records node activity in c.
func WithMetrics(c *metrics.Collector) Option {
	return func(o *options) { o.metrics = c }
}

// WithDeviceProvider shares the host's GPU device with the rasterizer.
func WithDeviceProvider(p gpucontext.DeviceProvider) Option {
	return func(o *options) { o.provider = p }
}

// ExecuteParams are the inputs of one Execute.
type ExecuteParams struct {
	// DeltaTime is the time since the previous frame in seconds.
	DeltaTime float64
	// Values are the dynamic ports written since the previous Execute.
	// Entries whose Changed flag is false are ignored.
	Values map[string]binding.PortValue
}

// Node is a render node.
type Node struct {
	host    Host
	opts    options
	state   State
	gpu     *gpu.Context
	export  *export.Exporter
	frames  *frame.Executor
	fit     asset.Fit
	orphans map[string]bool

	path          string
	width, height uint32

	asset    *asset.Asset
	scene    *asset.Instance
	machine  *asset.MachineInstance
	bindings *binding.Bindings
	target   *export.Texture
	fresh    bool

	recreating bool
	again      bool
	watching   bool
}

// New returns an uninitialized node attached to host.
func New(host Host, opts ...Option) *Node {
	n := &Node{host: host, opts: options{cfg: config.Default()}}
	for _, opt := range opts {
		opt(&n.opts)
	}
	return n
}

// Create opens the graphics context, registers the Resolution and
// AssetPath watchers and marks dynamic ports left by an earlier session
// as orphaned until the next Recreate revalidates them.
func (n *Node) Create(ctx context.Context) error {
	if n.state != StateUninitialized {
		return ErrAlreadyCreated
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	cfg := &n.opts.cfg
	if err := cfg.Validate(); err != nil {
		return err
	}
	format, _ := cfg.TextureFormat()
	clearColor, _ := cfg.ClearColor()
	n.fit, _ = cfg.Fit()

	g, err := gpu.Open(gpu.Options{
		Backend:      cfg.GPU.Backend,
		AdapterMatch: cfg.GPU.Adapter,
		Provider:     n.opts.provider,
		FenceTimeout: time.Duration(cfg.GPU.FenceTimeout),
	})
	if err != nil {
		return fmt.Errorf("node: create: %w", err)
	}
	if format == gputypes.TextureFormatUndefined {
		format = g.Format()
	}
	n.gpu = g
	n.export = export.NewExporter(g.Device(), n.host, format)
	n.frames = frame.NewExecutor(g, frame.LoadPolicy{ClearEvery: cfg.Render.ClearEvery, ClearColor: clearColor})

	n.orphans = make(map[string]bool)
	for _, p := range n.host.Ports() {
		if !binding.IsReserved(p.Name) {
			n.orphans[p.Name] = true
		}
	}

	// Watchers outlive Destroy; a later Create reuses them.
	if !n.watching {
		n.host.Watch(binding.PortResolution, n.onResolution)
		n.host.Watch(binding.PortAssetPath, n.onAssetPath)
		n.watching = true
	}
	n.state = StateReady

	animnode.Logger().Info("node: created", "orphans", len(n.orphans))
	return nil
}

func (n *Node) onResolution(value []byte) error {
	w, h, err := DecodeResolution(value)
	if err != nil {
		return err
	}
	n.width, n.height = w, h
	_, err = n.Recreate(context.Background())
	return err
}

func (n *Node) onAssetPath(value []byte) error {
	n.path = binding.DecodeString(value)
	n.width, n.height = 0, 0
	_, err := n.Recreate(context.Background())
	return err
}

// Recreate rebuilds the scene, texture and bindings for the current asset
// path and resolution. A call made while a Recreate is running, such as
// one from a watcher, is folded into a single follow-up run and returns
// StatusPending.
func (n *Node) Recreate(ctx context.Context) (Status, error) {
	if n.state == StateUninitialized {
		return StatusPending, ErrNotCreated
	}
	if n.recreating {
		n.again = true
		return StatusPending, nil
	}
	n.recreating = true
	defer func() { n.recreating = false }()

	for {
		status, err := n.recreate(ctx)
		if !n.again {
			n.record(status, err)
			return status, err
		}
		n.again = false
	}
}

func (n *Node) record(status Status, err error) {
	switch {
	case err != nil:
		n.opts.metrics.Recreate("error")
		animnode.Logger().Warn("node: recreate failed", "path", n.path, "err", err)
	default:
		n.opts.metrics.Recreate(status.String())
	}
}

func (n *Node) teardown() {
	n.bindings.Invalidate()
	n.bindings = nil
	n.machine = nil
	n.scene = nil
	n.asset = nil
	n.target = nil
}

func (n *Node) recreate(ctx context.Context) (Status, error) {
	n.state = StateRecreating
	n.teardown()
	defer func() {
		if n.state == StateRecreating {
			n.state = StateReady
		}
	}()

	if n.path == "" {
		return StatusPending, fmt.Errorf("%w: no asset path", asset.ErrFileNotFound)
	}
	if err := ctx.Err(); err != nil {
		return StatusPending, err
	}
	a, inst, err := asset.LoadScene(n.path)
	if err != nil {
		return StatusPending, err
	}

	if n.width == 0 || n.height == 0 {
		iw, ih := inst.IntrinsicSize()
		w, h := uint32(math.Ceil(iw)), uint32(math.Ceil(ih))
		if err := n.host.SetPinValue(binding.PortResolution, EncodeResolution(w, h)); err != nil {
			return StatusPending, fmt.Errorf("node: publish resolution: %w", err)
		}
		n.state = StatePending
		animnode.Logger().Info("node: resolution pending", "path", n.path, "width", w, "height", h)
		return StatusPending, nil
	}

	tex, err := n.export.CreateAndExport(int(n.width), int(n.height))
	if err != nil {
		return StatusPending, err
	}
	n.opts.metrics.TextureBytes(tex.AllocationSize)
	if err := n.host.SetPinValue(binding.PortOutput, export.Pack(tex.Info)); err != nil {
		return StatusPending, fmt.Errorf("node: publish output: %w", err)
	}

	inst.SetSize(float64(n.width), float64(n.height))
	inst.SetFit(n.fit)

	bs := binding.Discover(inst)
	if err := n.syncPorts(bs); err != nil {
		return StatusPending, err
	}
	n.applyInitial(bs)

	n.asset, n.scene, n.bindings, n.target = a, inst, bs, tex
	n.machine = inst.Machine()
	n.fresh = true

	machine := ""
	if n.machine != nil {
		machine = n.machine.Name()
	}
	animnode.Logger().Info("node: recreated",
		"path", n.path, "width", n.width, "height", n.height,
		"bindings", bs.Len(), "machine", machine)
	return StatusReady, nil
}

// syncPorts reconciles the host's ports with bs.
func (n *Node) syncPorts(bs *binding.Bindings) error {
	del, create := binding.Reconcile(n.host.Ports(), bs)
	add := make([]binding.Port, 0, len(create))
	for _, b := range create {
		add = append(add, b.Port(n.host.NewID()))
	}
	if len(add) > 0 || len(del) > 0 {
		if err := n.host.UpdatePorts(add, del); err != nil {
			return fmt.Errorf("node: update ports: %w", err)
		}
	}
	n.orphans = make(map[string]bool)
	n.opts.metrics.Ports(len(add), len(del))
	animnode.Logger().Info("node: ports reconciled", "created", len(add), "deleted", len(del), "kept", bs.Len()-len(add))
	return nil
}

// applyInitial writes configured port values into fresh bindings.
func (n *Node) applyInitial(bs *binding.Bindings) {
	for key, v := range n.opts.cfg.Ports {
		b, ok := bs.Lookup(key)
		if !ok {
			continue
		}
		payload, err := binding.Encode(b.Value, v)
		if err == nil {
			err = bs.Set(b, payload)
		}
		if err != nil && !errors.Is(err, binding.ErrNoSetter) {
			animnode.Logger().Warn("node: initial port value", "port", key, "err", err)
		}
	}
}

// Execute renders one frame. It returns ErrNotReady while there is no
// render target or scene.
func (n *Node) Execute(ctx context.Context, p ExecuteParams) error {
	if n.state == StateUninitialized {
		return ErrNotCreated
	}
	if n.target == nil || n.scene == nil {
		return ErrNotReady
	}
	start := time.Now()
	_, err := n.frames.Run(ctx, &frame.Frame{
		Target:    n.target.Native,
		Scene:     n.scene,
		Machine:   n.machine,
		Bindings:  n.bindings,
		Inputs:    p.Values,
		DeltaTime: p.DeltaTime,
		Fresh:     n.fresh,
	})
	if err == nil {
		n.fresh = false
	}
	n.opts.metrics.Frame(time.Since(start), err)
	return err
}

// Destroy releases the imported texture and closes the graphics context.
// It is safe to call more than once.
func (n *Node) Destroy() error {
	if n.state == StateUninitialized {
		return nil
	}
	n.teardown()
	var errs []error
	if err := n.export.Release(); err != nil {
		errs = append(errs, err)
	}
	n.opts.metrics.TextureBytes(0)
	if err := n.gpu.Close(); err != nil {
		errs = append(errs, err)
	}
	n.state = StateUninitialized
	animnode.Logger().Info("node: destroyed")
	return errors.Join(errs...)
}

// State returns the lifecycle state.
func (n *Node) State() State { return n.state }

// AssetPath returns the current asset path.
func (n *Node) AssetPath() string { return n.path }

// Resolution returns the requested render size; zero means unknown.
func (n *Node) Resolution() (width, height uint32) { return n.width, n.height }

// Scene returns the live scene instance, or nil.
func (n *Node) Scene() *asset.Instance { return n.scene }

// Machine returns the active state machine, or nil.
func (n *Node) Machine() *asset.MachineInstance { return n.machine }

// Bindings returns the current binding set, or nil.
func (n *Node) Bindings() *binding.Bindings { return n.bindings }

// Texture returns the current exported texture, or nil. It stays valid
// while a Recreate is pending.
func (n *Node) Texture() *export.Texture {
	if n.export == nil {
		return nil
	}
	return n.export.Current()
}

// Orphans returns the names of ports from an earlier session that no
// Recreate has revalidated yet.
func (n *Node) Orphans() []string {
	names := make([]string, 0, len(n.orphans))
	for name := range n.orphans {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
