// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package memhost is an in-process node host.
//
// It stores port values, runs watchers and imports exported textures of
// the software backend. Values written by the user with [Host.Set] fire
// watchers at once. Values written by the node are queued and delivered by
// [Host.Pump], the way a graph host round-trips them on its next update.
package memhost

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/animnode"
	"github.com/gogpu/animnode/binding"
	"github.com/gogpu/animnode/export"
	"github.com/gogpu/animnode/gpu"
	"github.com/gogpu/animnode/gpu/software"
	"github.com/google/uuid"
)

var (
	// ErrUnknownPort is returned for writes to a port that does not exist.
	ErrUnknownPort = errors.New("memhost: unknown port")

	// ErrUnknownResource is returned when destroying a resource that was
	// never imported or was already destroyed.
	ErrUnknownResource = errors.New("memhost: unknown resource")
)

// maxPumpRounds bounds Pump when watchers keep producing writes.
const maxPumpRounds = 16

type pin struct {
	port    binding.Port
	value   []byte
	changed bool
}

type write struct {
	name  string
	value []byte
}

type resource struct {
	info export.ShareInfo
	mem  *software.Memory
}

// Failures injects importer failures.
type Failures struct {
	ImportErr  error
	ZeroHandle bool
	DestroyErr error
}

// Host is an in-memory node host. It is safe for concurrent use; watchers
// run without the lock held.
type Host struct {
	mu        sync.Mutex
	pins      map[string]*pin
	order     []string
	watchers  map[string][]func([]byte) error
	queue     []write
	dirty     map[string]struct{}
	writes    map[string]int
	resources map[uint64]*resource
	next      uint64
	imports   int
	destroys  int
	fail      Failures
}

// New returns a host with the reserved Resolution, AssetPath and Output
// ports.
func New() *Host {
	h := &Host{
		pins:      make(map[string]*pin),
		watchers:  make(map[string][]func([]byte) error),
		writes:    make(map[string]int),
		dirty:     make(map[string]struct{}),
		resources: make(map[uint64]*resource),
		next:      1,
	}
	h.addLocked(binding.Port{ID: uuid.NewString(), Name: binding.PortResolution, DisplayName: binding.PortResolution, TypeTag: binding.TagGeneric})
	h.addLocked(binding.Port{ID: uuid.NewString(), Name: binding.PortAssetPath, DisplayName: binding.PortAssetPath, TypeTag: binding.TagString})
	h.addLocked(binding.Port{ID: uuid.NewString(), Name: binding.PortOutput, DisplayName: binding.PortOutput, TypeTag: binding.TagGeneric})
	return h
}

func (h *Host) addLocked(p binding.Port) {
	if _, ok := h.pins[p.Name]; !ok {
		h.order = append(h.order, p.Name)
	}
	h.pins[p.Name] = &pin{port: p}
}

func (h *Host) removeLocked(name string) {
	if _, ok := h.pins[name]; !ok {
		return
	}
	delete(h.pins, name)
	for i, n := range h.order {
		if n == name {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
}

// NewID returns a random UUID.
func (h *Host) NewID() string { return uuid.NewString() }

// Ports returns all ports in creation order.
func (h *Host) Ports() []binding.Port {
	h.mu.Lock()
	defer h.mu.Unlock()
	ports := make([]binding.Port, 0, len(h.order))
	for _, name := range h.order {
		ports = append(ports, h.pins[name].port)
	}
	return ports
}

// Port returns the named port.
func (h *Host) Port(name string) (binding.Port, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, ok := h.pins[name]
	if !ok {
		return binding.Port{}, false
	}
	return p.port, true
}

// AddPort declares a port, as a host restoring an earlier session would.
func (h *Host) AddPort(p binding.Port) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.addLocked(p)
}

// UpdatePorts deletes del and adds add.
func (h *Host) UpdatePorts(add []binding.Port, del []binding.Port) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, p := range del {
		if binding.IsReserved(p.Name) {
			return fmt.Errorf("memhost: cannot delete reserved port %s", p.Name)
		}
		h.removeLocked(p.Name)
	}
	for _, p := range add {
		h.addLocked(p)
	}
	return nil
}

// Watch registers fn for changes of the named port.
func (h *Host) Watch(name string, fn func(value []byte) error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.watchers[name] = append(h.watchers[name], fn)
}

// SetPinValue queues a node-originated write until the next Pump.
func (h *Host) SetPinValue(name string, value []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.pins[name]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPort, name)
	}
	h.writes[name]++
	h.queue = append(h.queue, write{name: name, value: bytes.Clone(value)})
	return nil
}

// Writes returns how many times the node wrote the named port.
func (h *Host) Writes(name string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.writes[name]
}

// Set writes a port value as the user would and runs its watchers.
func (h *Host) Set(name string, value []byte) error {
	fns, err := h.store(name, value)
	if err != nil {
		return err
	}
	return notify(fns, value)
}

func (h *Host) store(name string, value []byte) ([]func([]byte) error, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, ok := h.pins[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPort, name)
	}
	p.value = bytes.Clone(value)
	if !binding.IsReserved(name) {
		p.changed = true
		h.dirty[name] = struct{}{}
	}
	return append([]func([]byte) error(nil), h.watchers[name]...), nil
}

func notify(fns []func([]byte) error, value []byte) error {
	var errs []error
	for _, fn := range fns {
		if err := fn(value); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Pump delivers queued node writes, running watchers, until the queue is
// empty. It returns the joined watcher errors.
func (h *Host) Pump() error {
	var errs []error
	for range maxPumpRounds {
		h.mu.Lock()
		queue := h.queue
		h.queue = nil
		h.mu.Unlock()
		if len(queue) == 0 {
			return errors.Join(errs...)
		}
		for _, w := range queue {
			if err := h.Set(w.name, w.value); err != nil {
				errs = append(errs, err)
			}
		}
	}
	animnode.Logger().Warn("memhost: pump did not settle", "rounds", maxPumpRounds)
	return errors.Join(errs...)
}

// Value returns the current value of a port.
func (h *Host) Value(name string) ([]byte, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, ok := h.pins[name]
	if !ok || p.value == nil {
		return nil, false
	}
	return p.value, true
}

// Tick returns the dynamic ports written since the previous Tick and
// clears their changed flags.
func (h *Host) Tick() map[string]binding.PortValue {
	h.mu.Lock()
	defer h.mu.Unlock()
	values := make(map[string]binding.PortValue, len(h.dirty))
	for name := range h.dirty {
		if p, ok := h.pins[name]; ok && p.changed {
			values[name] = binding.PortValue{Data: p.value, Changed: true}
			p.changed = false
		}
	}
	clear(h.dirty)
	return values
}

// SetFailures changes the injected importer failures.
func (h *Host) SetFailures(f Failures) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.fail = f
}

// ImportResource imports an exported texture. Process-local handles of
// the software backend are opened so the pixels stay readable.
func (h *Host) ImportResource(info *export.ShareInfo, label string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.fail.ImportErr != nil {
		return h.fail.ImportErr
	}
	if h.fail.ZeroHandle {
		return nil
	}
	r := &resource{}
	if info.Memory.External.HandleType == gpu.HandleTypeProcessLocal {
		mem, ok := software.Open(info.Memory.External.Handle)
		if !ok {
			return fmt.Errorf("memhost: no shared memory %d", info.Memory.External.Handle)
		}
		r.mem = mem
	}
	info.Memory.Handle = h.next
	h.next++
	r.info = *info
	h.resources[info.Memory.Handle] = r
	h.imports++
	animnode.Logger().Debug("memhost: imported", "label", label, "resource", info.Memory.Handle,
		"width", info.Texture.Width, "height", info.Texture.Height)
	return nil
}

// DestroyResource releases an imported texture.
func (h *Host) DestroyResource(info export.ShareInfo) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.destroys++
	if h.fail.DestroyErr != nil {
		return h.fail.DestroyErr
	}
	r, ok := h.resources[info.Memory.Handle]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownResource, info.Memory.Handle)
	}
	if r.mem != nil {
		r.mem.Close()
	}
	delete(h.resources, info.Memory.Handle)
	return nil
}

// Live returns the number of imported resources not yet destroyed.
func (h *Host) Live() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.resources)
}

// Imports returns the number of successful imports.
func (h *Host) Imports() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.imports
}

// Destroys returns the number of destroy requests.
func (h *Host) Destroys() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.destroys
}

// Memory returns the pixels of an imported software texture.
func (h *Host) Memory(id uint64) (*software.Memory, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.resources[id]
	if !ok || r.mem == nil {
		return nil, false
	}
	return r.mem, true
}
