// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package binding

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/gogpu/animnode/asset"
)

var (
	// ErrStaleHandle is returned when a handle outlived its table.
	ErrStaleHandle = errors.New("binding: stale handle")

	// ErrNoSetter is returned for bindings that are discovered but cannot
	// be written, such as state machine triggers.
	ErrNoSetter = errors.New("binding: no setter")
)

// generations is shared by all tables so a handle never validates against
// a table other than the one that issued it.
var generations atomic.Uint64

// Handle addresses one live scene object in a Table.
type Handle struct {
	gen   uint64
	index int
}

// IsZero reports whether h was never issued.
func (h Handle) IsZero() bool { return h.gen == 0 }

type entry struct {
	kind    BindKind
	value   ValueKind
	vm      *asset.ViewModelInstance
	machine *asset.MachineInstance
	index   int
}

// Table owns the references from bindings into a scene instance.
type Table struct {
	gen     uint64
	entries []entry
}

// NewTable returns an empty table with a fresh generation.
func NewTable() *Table {
	return &Table{gen: generations.Add(1)}
}

// Len returns the number of entries.
func (t *Table) Len() int { return len(t.entries) }

// Invalidate drops every entry. All handles issued so far become stale.
func (t *Table) Invalidate() {
	t.gen = generations.Add(1)
	t.entries = nil
}

func (t *Table) add(e entry) Handle {
	t.entries = append(t.entries, e)
	return Handle{gen: t.gen, index: len(t.entries) - 1}
}

func (t *Table) lookup(h Handle) (*entry, error) {
	if h.IsZero() || h.gen != t.gen || h.index < 0 || h.index >= len(t.entries) {
		return nil, ErrStaleHandle
	}
	return &t.entries[h.index], nil
}

// Set decodes payload according to the entry's value kind and writes it
// into the scene.
func (t *Table) Set(h Handle, payload []byte) error {
	e, err := t.lookup(h)
	if err != nil {
		return err
	}
	switch e.kind {
	case ViewModelProperty:
		return e.setProperty(payload)
	case StateMachineInput:
		return e.setInput(payload)
	case BuiltinInput:
		x, y, err := DecodeVector2(payload)
		if err != nil {
			return err
		}
		e.machine.PointerMove(float64(x), float64(y))
		return nil
	}
	return fmt.Errorf("binding: unknown bind kind %d", e.kind)
}

func (e *entry) setProperty(payload []byte) error {
	switch e.value {
	case Bool:
		v, err := DecodeBool(payload)
		if err != nil {
			return err
		}
		return e.vm.SetBool(e.index, v)
	case Number:
		v, err := DecodeNumber(payload)
		if err != nil {
			return err
		}
		return e.vm.SetNumber(e.index, float64(v))
	case String:
		return e.vm.SetString(e.index, DecodeString(payload))
	case Trigger:
		return e.vm.Fire(e.index)
	}
	return ErrNoSetter
}

func (e *entry) setInput(payload []byte) error {
	switch e.value {
	case Bool:
		v, err := DecodeBool(payload)
		if err != nil {
			return err
		}
		return e.machine.SetBool(e.index, v)
	case Number:
		v, err := DecodeNumber(payload)
		if err != nil {
			return err
		}
		return e.machine.SetNumber(e.index, float64(v))
	}
	return ErrNoSetter
}
