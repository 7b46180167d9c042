// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package frame runs the per-frame render protocol of a node.
//
// Every frame runs the same steps in the same order: begin a frame on the
// render target, advance the state machine, apply changed port values,
// advance and draw the scene, flush, and wait for the GPU. A failing step
// aborts the rest of the frame.
package frame

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/gogpu/animnode"
	"github.com/gogpu/animnode/asset"
	"github.com/gogpu/animnode/binding"
	"github.com/gogpu/animnode/gpu"
	"github.com/gogpu/gg"
)

// ErrDeltaTime is returned for a negative, NaN or infinite frame delta.
var ErrDeltaTime = errors.New("frame: invalid delta time")

// GPU is what the executor needs from a graphics context.
// *gpu.Context implements it.
type GPU interface {
	Commands() gpu.CommandContext
	Sync(ctx context.Context) error
}

// LoadPolicy decides how a frame treats the previous contents of its
// target. A freshly created target is always cleared. After that the
// target is cleared every ClearEvery frames; zero preserves it.
type LoadPolicy struct {
	ClearEvery int
	ClearColor gg.RGBA
}

// DefaultLoadPolicy clears every frame to transparent.
func DefaultLoadPolicy() LoadPolicy {
	return LoadPolicy{ClearEvery: 1, ClearColor: gg.Transparent}
}

// Frame is the input of one frame.
type Frame struct {
	Target    gpu.Texture
	Scene     *asset.Instance
	Machine   *asset.MachineInstance
	Bindings  *binding.Bindings
	Inputs    map[string]binding.PortValue
	DeltaTime float64

	// Fresh is set on the first frame after the target was created.
	Fresh bool
}

// Result reports what a frame did.
type Result struct {
	LoadAction gpu.LoadAction
	Applied    int
	Playing    bool
}

// Executor runs frames against one graphics context.
type Executor struct {
	gpu    GPU
	policy LoadPolicy
	since  int
}

// NewExecutor returns an executor drawing through g.
func NewExecutor(g GPU, policy LoadPolicy) *Executor {
	return &Executor{gpu: g, policy: policy}
}

// Policy returns the load policy.
func (e *Executor) Policy() LoadPolicy { return e.policy }

func (e *Executor) loadAction(fresh bool) gpu.LoadAction {
	if fresh {
		e.since = 0
	}
	n := e.since
	e.since++
	if fresh || (e.policy.ClearEvery > 0 && n%e.policy.ClearEvery == 0) {
		return gpu.LoadActionClear
	}
	return gpu.LoadActionPreserve
}

// Run executes one frame. It returns after the GPU finished writing the
// target, so the exported texture is complete when Run returns nil.
func (e *Executor) Run(ctx context.Context, f *Frame) (Result, error) {
	var res Result
	if dt := f.DeltaTime; dt < 0 || math.IsNaN(dt) || math.IsInf(dt, 0) {
		return res, fmt.Errorf("%w: %v", ErrDeltaTime, dt)
	}
	cmds := e.gpu.Commands()

	// 1. Begin.
	res.LoadAction = e.loadAction(f.Fresh)
	dc, err := cmds.BeginFrame(f.Target, gpu.FrameDescriptor{
		LoadAction: res.LoadAction,
		ClearColor: e.policy.ClearColor,
	})
	if err != nil {
		return res, fmt.Errorf("frame: begin: %w", err)
	}

	// 2. State machine.
	if f.Machine != nil {
		res.Playing = f.Machine.Advance(f.DeltaTime)
	}

	// 3. Changed inputs.
	if f.Bindings != nil {
		res.Applied, err = f.Bindings.Apply(f.Inputs)
		if err != nil {
			return res, fmt.Errorf("frame: apply inputs: %w", err)
		}
	}

	// 4. Scene clock and draw.
	if f.Scene.Advance(f.DeltaTime) {
		res.Playing = true
	}
	if err := f.Scene.Draw(dc); err != nil {
		return res, fmt.Errorf("frame: draw: %w", err)
	}

	// 5. Flush.
	if err := cmds.Flush(f.Target); err != nil {
		return res, fmt.Errorf("frame: flush: %w", err)
	}

	// 6. Wait for the GPU.
	if err := e.gpu.Sync(ctx); err != nil {
		return res, fmt.Errorf("frame: wait: %w", err)
	}

	animnode.Logger().Debug("frame: done",
		"dt", f.DeltaTime, "load", res.LoadAction, "applied", res.Applied, "playing", res.Playing)
	return res, nil
}
