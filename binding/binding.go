// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package binding discovers the settable surface of a scene instance and
// keeps host ports in sync with it.
//
// A [Binding] is a named, typed value of a running scene: a view-model
// property, a state machine input or the builtin pointer input. Its
// identity is [Key], derived from the bind kind, scope and name, so the
// same asset loaded twice yields the same keys. [Reconcile] diffs keys and
// type tags against the ports a host already exposes and returns the
// minimal create and delete sets.
//
// Bindings write into the scene through handles into a [Table]. A table is
// rebuilt on every discovery and invalidating it makes every outstanding
// handle fail with [ErrStaleHandle].
package binding

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// ValueKind is the closed set of value types a binding carries.
type ValueKind int

const (
	Bool ValueKind = iota
	Number
	String
	Trigger
	Vector2
	Generic
)

var valueKindNames = []string{
	Bool:    "bool",
	Number:  "number",
	String:  "string",
	Trigger: "trigger",
	Vector2: "vector2",
	Generic: "generic",
}

func (k ValueKind) String() string {
	if k >= 0 && int(k) < len(valueKindNames) {
		return valueKindNames[k]
	}
	return "unknown"
}

// BindKind is where a binding comes from.
type BindKind int

const (
	ViewModelProperty BindKind = iota
	StateMachineInput
	BuiltinInput
)

func (k BindKind) String() string {
	switch k {
	case ViewModelProperty:
		return "ViewModelProperty"
	case StateMachineInput:
		return "StateMachineInput"
	case BuiltinInput:
		return "BuiltinInput"
	}
	return "unknown"
}

// KindPrefix returns the prefix that keeps keys of different bind kinds
// apart.
func KindPrefix(k BindKind) string {
	switch k {
	case ViewModelProperty:
		return "vm"
	case StateMachineInput:
		return "sm"
	case BuiltinInput:
		return "builtin"
	}
	return "unknown"
}

// Port type tags.
const (
	TagBool    = "bool"
	TagFloat   = "float"
	TagString  = "string"
	TagExe     = "exe"
	TagGeneric = "generic"
)

// TypeTag returns the port type tag for a value kind.
func TypeTag(k ValueKind) string {
	switch k {
	case Bool:
		return TagBool
	case Number:
		return TagFloat
	case String:
		return TagString
	case Trigger:
		return TagExe
	}
	return TagGeneric
}

// Host-declared ports. Reconciliation never creates or deletes them.
const (
	PortResolution = "Resolution"
	PortAssetPath  = "AssetPath"
	PortOutput     = "Output"
)

// IsReserved reports whether name is a host-declared port.
func IsReserved(name string) bool {
	switch name {
	case PortResolution, PortAssetPath, PortOutput:
		return true
	}
	return false
}

// PointerMoveName is the name of the builtin pointer input.
const PointerMoveName = "PointerMove"

// displayName joins scope and name. Names are NFC-normalized so that
// visually identical names produce the same key.
func displayName(scope, name string) string {
	scope, name = norm.NFC.String(scope), norm.NFC.String(name)
	if scope == "" {
		return name
	}
	return scope + "." + name
}

// Key returns the unique port name of a binding: "<prefix>:<scope>.<name>",
// or "<prefix>:<name>" without a scope.
func Key(kind BindKind, scope, name string) string {
	return KindPrefix(kind) + ":" + displayName(scope, name)
}

// SplitKey returns the prefix and display name of a key.
func SplitKey(key string) (prefix, display string, ok bool) {
	return strings.Cut(key, ":")
}

// Binding is one settable value of a scene instance.
type Binding struct {
	Scope  string
	Name   string
	Value  ValueKind
	Kind   BindKind
	Handle Handle
}

// Key returns the binding's unique port name.
func (b *Binding) Key() string { return Key(b.Kind, b.Scope, b.Name) }

// DisplayName returns the human-readable port name, without kind prefix.
func (b *Binding) DisplayName() string { return displayName(b.Scope, b.Name) }

// TypeTag returns the port type tag.
func (b *Binding) TypeTag() string { return TypeTag(b.Value) }

// Port describes the binding as a port with the given id.
func (b *Binding) Port(id string) Port {
	return Port{ID: id, Name: b.Key(), DisplayName: b.DisplayName(), TypeTag: b.TypeTag()}
}

// Port is an input port exposed by the host.
type Port struct {
	ID          string
	Name        string
	DisplayName string
	TypeTag     string
}
