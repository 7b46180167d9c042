package asset

import (
	"fmt"
	"math"
)

// InputType is the type of a state machine input.
type InputType int

const (
	InputBool InputType = iota
	InputNumber
	InputTrigger
)

func (t InputType) String() string {
	switch t {
	case InputBool:
		return "bool"
	case InputNumber:
		return "number"
	case InputTrigger:
		return "trigger"
	}
	return "unknown"
}

// InputDef declares a state machine input and its initial value.
type InputDef struct {
	Name   string
	Type   InputType
	Bool   bool
	Number float64
}

// CondOp compares an input against a value.
type CondOp int

const (
	OpEq CondOp = iota
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
)

// Condition guards a transition. Bool inputs compare as 0 or 1; trigger
// conditions hold while the trigger is fired and ignore Op and Value.
type Condition struct {
	Input int
	Op    CondOp
	Value float64
}

// AnyState as a transition source matches every state.
const AnyState = -1

// Transition moves the machine from one state to another once all its
// conditions hold and, when ExitTime > 0, the source animation has
// reached that fraction of its duration.
type Transition struct {
	From       int
	To         int
	Conditions []Condition
	ExitTime   float64
}

// StateDef is a state that plays an animation at a speed. Animation is -1
// for a state without animation.
type StateDef struct {
	Name      string
	Animation int
	Speed     float64
}

// ListenerEvent is a pointer event a listener reacts to.
type ListenerEvent int

const (
	PointerEnter ListenerEvent = iota
	PointerExit
	PointerMove
)

// Listener writes Value into an input when the pointer event happens over
// a shape. Bool inputs take Value != 0, triggers are fired.
type Listener struct {
	Shape int
	Event ListenerEvent
	Input int
	Value float64
}

// StateMachine is the authored logic graph of an artboard.
type StateMachine struct {
	Name        string
	Default     bool
	Inputs      []InputDef
	States      []StateDef
	Initial     int
	Transitions []Transition
	Listeners   []Listener
}

type inputValue struct {
	b     bool
	n     float64
	fired bool
}

// MachineInstance is a running state machine bound to an Instance.
type MachineInstance struct {
	def    *StateMachine
	inst   *Instance
	inputs []inputValue
	state  int
	player *Player

	pointerX, pointerY float64
	pointerDirty       bool
	hovered            []bool
}

func newMachineInstance(def *StateMachine, inst *Instance) *MachineInstance {
	m := &MachineInstance{
		def:     def,
		inst:    inst,
		inputs:  make([]inputValue, len(def.Inputs)),
		hovered: make([]bool, len(inst.shapes)),
		state:   -1,
	}
	for i, in := range def.Inputs {
		m.inputs[i] = inputValue{b: in.Bool, n: in.Number}
	}
	m.enter(def.Initial)
	return m
}

// Name returns the state machine's name.
func (m *MachineInstance) Name() string { return m.def.Name }

// Definition returns the authored state machine.
func (m *MachineInstance) Definition() *StateMachine { return m.def }

// NumInputs returns the number of inputs.
func (m *MachineInstance) NumInputs() int { return len(m.inputs) }

// Input returns the definition of input i.
func (m *MachineInstance) Input(i int) InputDef { return m.def.Inputs[i] }

// InputIndex returns the index of the named input, or -1.
func (m *MachineInstance) InputIndex(name string) int {
	for i, in := range m.def.Inputs {
		if in.Name == name {
			return i
		}
	}
	return -1
}

// State returns the name of the current state.
func (m *MachineInstance) State() string {
	if m.state < 0 {
		return ""
	}
	return m.def.States[m.state].Name
}

func (m *MachineInstance) check(i int, want InputType) error {
	if i < 0 || i >= len(m.inputs) {
		return fmt.Errorf("%w: input %d of %s", ErrInputIndex, i, m.def.Name)
	}
	if got := m.def.Inputs[i].Type; got != want {
		return fmt.Errorf("%w: input %q is %s, not %s", ErrTypeMismatch, m.def.Inputs[i].Name, got, want)
	}
	return nil
}

// SetBool sets a bool input.
func (m *MachineInstance) SetBool(i int, v bool) error {
	if err := m.check(i, InputBool); err != nil {
		return err
	}
	m.inputs[i].b = v
	return nil
}

// Bool returns a bool input.
func (m *MachineInstance) Bool(i int) bool { return m.inputs[i].b }

// SetNumber sets a number input.
func (m *MachineInstance) SetNumber(i int, v float64) error {
	if err := m.check(i, InputNumber); err != nil {
		return err
	}
	m.inputs[i].n = v
	return nil
}

// Number returns a number input.
func (m *MachineInstance) Number(i int) float64 { return m.inputs[i].n }

// Fire fires a trigger input. It stays fired until the end of the next
// Advance.
func (m *MachineInstance) Fire(i int) error {
	if err := m.check(i, InputTrigger); err != nil {
		return err
	}
	m.inputs[i].fired = true
	return nil
}

// PointerMove records a pointer position in render target coordinates.
// Listeners are evaluated on the next Advance.
func (m *MachineInstance) PointerMove(x, y float64) {
	m.pointerX, m.pointerY = m.inst.ToArtboard(x, y)
	m.pointerDirty = true
}

// Pointer returns the last pointer position in artboard coordinates.
func (m *MachineInstance) Pointer() (x, y float64) { return m.pointerX, m.pointerY }

// Advance evaluates listeners, takes at most one transition, then advances
// the current state's animation by dt and applies it to the instance's
// shapes. Fired triggers are cleared. It reports whether anything is still
// changing.
func (m *MachineInstance) Advance(dt float64) bool {
	if m.pointerDirty {
		m.dispatchPointer()
		m.pointerDirty = false
	}

	next, changed := m.nextState()
	if changed {
		m.enter(next)
	}

	playing := false
	if m.player != nil {
		speed := m.def.States[m.state].Speed
		playing = m.player.Advance(dt * speed)
		m.player.Apply(m.inst.shapes)
	}

	for i := range m.inputs {
		m.inputs[i].fired = false
	}
	return playing || changed
}

func (m *MachineInstance) enter(state int) {
	m.state = state
	m.player = nil
	if a := m.def.States[state].Animation; a >= 0 {
		m.player = NewPlayer(m.inst.art.Animations[a])
		m.player.Apply(m.inst.shapes)
	}
}

func (m *MachineInstance) nextState() (int, bool) {
	for _, tr := range m.def.Transitions {
		if tr.From != m.state && (tr.From != AnyState || tr.To == m.state) {
			continue
		}
		if tr.ExitTime > 0 && (m.player == nil || m.player.Progress() < tr.ExitTime) {
			continue
		}
		if m.holds(tr.Conditions) {
			return tr.To, true
		}
	}
	return 0, false
}

func (m *MachineInstance) holds(conds []Condition) bool {
	for _, c := range conds {
		in := m.inputs[c.Input]
		var v float64
		switch m.def.Inputs[c.Input].Type {
		case InputTrigger:
			if !in.fired {
				return false
			}
			continue
		case InputBool:
			if in.b {
				v = 1
			}
		case InputNumber:
			v = in.n
		}
		if !compare(v, c.Op, c.Value) {
			return false
		}
	}
	return true
}

func compare(v float64, op CondOp, want float64) bool {
	const eps = 1e-9
	switch op {
	case OpEq:
		return math.Abs(v-want) < eps
	case OpNe:
		return math.Abs(v-want) >= eps
	case OpLt:
		return v < want
	case OpLe:
		return v <= want
	case OpGt:
		return v > want
	case OpGe:
		return v >= want
	}
	return false
}

func (m *MachineInstance) dispatchPointer() {
	inside := make([]bool, len(m.hovered))
	for i := range m.inst.shapes {
		inside[i] = m.inst.hit(i, m.pointerX, m.pointerY)
	}
	for _, l := range m.def.Listeners {
		was, is := m.hovered[l.Shape], inside[l.Shape]
		var match bool
		switch l.Event {
		case PointerEnter:
			match = is && !was
		case PointerExit:
			match = was && !is
		case PointerMove:
			match = is
		}
		if match {
			m.write(l.Input, l.Value)
		}
	}
	m.hovered = inside
}

func (m *MachineInstance) write(i int, v float64) {
	switch m.def.Inputs[i].Type {
	case InputBool:
		m.inputs[i].b = v != 0
	case InputNumber:
		m.inputs[i].n = v
	case InputTrigger:
		m.inputs[i].fired = true
	}
}
