// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package binding

import (
	"errors"
	"fmt"
	"sort"

	"github.com/gogpu/animnode"
	"github.com/gogpu/animnode/asset"
)

// Bindings is the binding set of one scene instance, in discovery order.
type Bindings struct {
	table *Table
	list  []*Binding
	byKey map[string]int
}

func newBindings() *Bindings {
	return &Bindings{table: NewTable(), byKey: make(map[string]int)}
}

// add inserts b, replacing an earlier binding with the same key.
func (bs *Bindings) add(b *Binding, e entry) {
	b.Handle = bs.table.add(e)
	key := b.Key()
	if i, ok := bs.byKey[key]; ok {
		animnode.Logger().Warn("binding: duplicate key", "key", key)
		bs.list[i] = b
		return
	}
	bs.byKey[key] = len(bs.list)
	bs.list = append(bs.list, b)
}

// Len returns the number of bindings.
func (bs *Bindings) Len() int { return len(bs.list) }

// List returns the bindings in discovery order.
func (bs *Bindings) List() []*Binding { return bs.list }

// Lookup returns the binding with the given key.
func (bs *Bindings) Lookup(key string) (*Binding, bool) {
	i, ok := bs.byKey[key]
	if !ok {
		return nil, false
	}
	return bs.list[i], true
}

// Keys returns the sorted binding keys.
func (bs *Bindings) Keys() []string {
	keys := make([]string, 0, len(bs.list))
	for _, b := range bs.list {
		keys = append(keys, b.Key())
	}
	sort.Strings(keys)
	return keys
}

// Set writes payload through b's handle.
func (bs *Bindings) Set(b *Binding, payload []byte) error {
	if err := bs.table.Set(b.Handle, payload); err != nil {
		return fmt.Errorf("binding %s: %w", b.Key(), err)
	}
	return nil
}

// Invalidate makes every handle of this set stale. Call it before the
// scene instance the set was discovered from is dropped.
func (bs *Bindings) Invalidate() {
	if bs != nil {
		bs.table.Invalidate()
	}
}

// PortValue is the current raw value of a port and whether it changed
// since the previous frame.
type PortValue struct {
	Data    []byte
	Changed bool
}

// Apply writes every changed value in inputs to the binding with the same
// key. Unchanged values and unknown keys are skipped. Bindings without a
// setter are skipped too. Values are applied in key order and the first
// error stops the pass. It returns the number of setters invoked.
//
// Apply visits every entry of inputs, so hosts should pass only the ports
// written since the previous frame.
func (bs *Bindings) Apply(inputs map[string]PortValue) (int, error) {
	var changed []string
	for key, v := range inputs {
		if v.Changed {
			changed = append(changed, key)
		}
	}
	sort.Strings(changed)

	applied := 0
	for _, key := range changed {
		b, ok := bs.Lookup(key)
		if !ok {
			continue
		}
		err := bs.Set(b, inputs[key].Data)
		if errors.Is(err, ErrNoSetter) {
			animnode.Logger().Debug("binding: input has no setter", "key", key)
			continue
		}
		if err != nil {
			return applied, err
		}
		applied++
	}
	return applied, nil
}

// Discover builds the binding set of inst. It walks the view-model
// properties, then the inputs of the instance's state machine, then adds
// the builtin pointer input when a state machine exists.
func Discover(inst *asset.Instance) *Bindings {
	bs := newBindings()

	if vm := inst.ViewModel(); vm != nil {
		for i := range vm.NumProperties() {
			p := vm.Property(i)
			var kind ValueKind
			switch p.Type {
			case asset.PropertyBool:
				kind = Bool
			case asset.PropertyNumber:
				kind = Number
			case asset.PropertyString:
				kind = String
			case asset.PropertyTrigger:
				kind = Trigger
			default:
				continue
			}
			bs.add(&Binding{Scope: vm.Name(), Name: p.Name, Value: kind, Kind: ViewModelProperty},
				entry{kind: ViewModelProperty, value: kind, vm: vm, index: i})
		}
	}

	m := inst.Machine()
	if m == nil {
		return bs
	}
	for i := range m.NumInputs() {
		in := m.Input(i)
		var kind ValueKind
		switch in.Type {
		case asset.InputBool:
			kind = Bool
		case asset.InputNumber:
			kind = Number
		case asset.InputTrigger:
			kind = Trigger
			animnode.Logger().Debug("binding: trigger input discovered without setter", "machine", m.Name(), "input", in.Name)
		}
		bs.add(&Binding{Scope: m.Name(), Name: in.Name, Value: kind, Kind: StateMachineInput},
			entry{kind: StateMachineInput, value: kind, machine: m, index: i})
	}
	bs.add(&Binding{Name: PointerMoveName, Value: Vector2, Kind: BuiltinInput},
		entry{kind: BuiltinInput, value: Vector2, machine: m, index: -1})
	return bs
}

// Reconcile diffs the ports a host exposes against a binding set. A
// non-reserved port is kept when a binding with the same key and type tag
// exists and is deleted otherwise. Every binding without a kept port is
// returned for creation, in discovery order.
func Reconcile(existing []Port, bs *Bindings) (del []Port, create []*Binding) {
	kept := make(map[string]bool, len(existing))
	for _, p := range existing {
		if IsReserved(p.Name) {
			continue
		}
		if b, ok := bs.Lookup(p.Name); ok && b.TypeTag() == p.TypeTag && !kept[p.Name] {
			kept[p.Name] = true
			continue
		}
		del = append(del, p)
	}
	for _, b := range bs.list {
		if !kept[b.Key()] {
			create = append(create, b)
		}
	}
	return del, create
}
