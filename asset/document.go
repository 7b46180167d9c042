package asset

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/gogpu/gg"
	"gopkg.in/yaml.v3"
)

// FormatVersion is the only document version Decode accepts.
const FormatVersion = 1

type document struct {
	Version   int           `yaml:"version"`
	Artboards []artboardDoc `yaml:"artboards"`
}

type artboardDoc struct {
	Name          string         `yaml:"name"`
	Width         float64        `yaml:"width"`
	Height        float64        `yaml:"height"`
	Default       bool           `yaml:"default"`
	Background    string         `yaml:"background"`
	Shapes        []shapeDoc     `yaml:"shapes"`
	Animations    []animationDoc `yaml:"animations"`
	StateMachines []machineDoc   `yaml:"stateMachines"`
	ViewModel     *viewModelDoc  `yaml:"viewModel"`
}

type shapeDoc struct {
	Name         string   `yaml:"name"`
	Kind         string   `yaml:"kind"`
	Sides        int      `yaml:"sides"`
	X            float64  `yaml:"x"`
	Y            float64  `yaml:"y"`
	Width        float64  `yaml:"width"`
	Height       float64  `yaml:"height"`
	Rotation     float64  `yaml:"rotation"`
	Scale        *float64 `yaml:"scale"`
	Opacity      *float64 `yaml:"opacity"`
	CornerRadius float64  `yaml:"cornerRadius"`
	StrokeWidth  float64  `yaml:"strokeWidth"`
	Visible      *bool    `yaml:"visible"`
	Fill         string   `yaml:"fill"`
	Stroke       string   `yaml:"stroke"`
}

type animationDoc struct {
	Name     string     `yaml:"name"`
	Duration float64    `yaml:"duration"`
	Loop     string     `yaml:"loop"`
	Tracks   []trackDoc `yaml:"tracks"`
}

type trackDoc struct {
	Target string   `yaml:"target"`
	Keys   []keyDoc `yaml:"keys"`
}

type keyDoc struct {
	Time   float64   `yaml:"time"`
	Value  yaml.Node `yaml:"value"`
	Interp string    `yaml:"interp"`
}

type machineDoc struct {
	Name        string          `yaml:"name"`
	Default     bool            `yaml:"default"`
	Initial     string          `yaml:"initial"`
	Inputs      []inputDoc      `yaml:"inputs"`
	States      []stateDoc      `yaml:"states"`
	Transitions []transitionDoc `yaml:"transitions"`
	Listeners   []listenerDoc   `yaml:"listeners"`
}

type inputDoc struct {
	Name  string    `yaml:"name"`
	Type  string    `yaml:"type"`
	Value yaml.Node `yaml:"value"`
}

type stateDoc struct {
	Name      string   `yaml:"name"`
	Animation string   `yaml:"animation"`
	Speed     *float64 `yaml:"speed"`
}

type transitionDoc struct {
	From     string         `yaml:"from"`
	To       string         `yaml:"to"`
	When     []conditionDoc `yaml:"when"`
	ExitTime float64        `yaml:"exitTime"`
}

type conditionDoc struct {
	Input string    `yaml:"input"`
	Op    string    `yaml:"op"`
	Value yaml.Node `yaml:"value"`
}

type listenerDoc struct {
	Shape string    `yaml:"shape"`
	Event string    `yaml:"event"`
	Input string    `yaml:"input"`
	Value yaml.Node `yaml:"value"`
}

type viewModelDoc struct {
	Name       string        `yaml:"name"`
	Properties []propertyDoc `yaml:"properties"`
}

type propertyDoc struct {
	Name  string    `yaml:"name"`
	Type  string    `yaml:"type"`
	Value yaml.Node `yaml:"value"`
	Bind  string    `yaml:"bind"`
}

// Decode parses and validates a document. Every failure wraps
// ErrDecodeFailed.
func Decode(data []byte) (*Asset, error) {
	var doc document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", ErrDecodeFailed)
		}
		return nil, fmt.Errorf("%w: %w", ErrDecodeFailed, err)
	}
	if doc.Version != FormatVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrDecodeFailed, doc.Version)
	}

	a := &Asset{}
	names := make(map[string]bool)
	for i := range doc.Artboards {
		ab, err := buildArtboard(&doc.Artboards[i])
		if err != nil {
			return nil, fmt.Errorf("%w: artboard %d: %w", ErrDecodeFailed, i, err)
		}
		if names[ab.Name] {
			return nil, fmt.Errorf("%w: duplicate artboard %q", ErrDecodeFailed, ab.Name)
		}
		names[ab.Name] = true
		a.Artboards = append(a.Artboards, ab)
	}
	return a, nil
}

func buildArtboard(d *artboardDoc) (*Artboard, error) {
	if d.Name == "" {
		return nil, errors.New("missing name")
	}
	if d.Width <= 0 || d.Height <= 0 {
		return nil, fmt.Errorf("%s: invalid size %gx%g", d.Name, d.Width, d.Height)
	}
	ab := &Artboard{Name: d.Name, Width: d.Width, Height: d.Height, Default: d.Default, Background: gg.Transparent}
	if d.Background != "" {
		c, err := parseColor(d.Background)
		if err != nil {
			return nil, fmt.Errorf("%s: background: %w", d.Name, err)
		}
		ab.Background = c
	}

	for i := range d.Shapes {
		s, err := buildShape(&d.Shapes[i])
		if err != nil {
			return nil, fmt.Errorf("%s: shape %d: %w", d.Name, i, err)
		}
		if ab.ShapeIndex(s.Name) >= 0 {
			return nil, fmt.Errorf("%s: duplicate shape %q", d.Name, s.Name)
		}
		ab.Shapes = append(ab.Shapes, s)
	}

	anims := make(map[string]int)
	for i := range d.Animations {
		anim, err := buildAnimation(ab, &d.Animations[i])
		if err != nil {
			return nil, fmt.Errorf("%s: animation %d: %w", d.Name, i, err)
		}
		if _, dup := anims[anim.Name]; dup {
			return nil, fmt.Errorf("%s: duplicate animation %q", d.Name, anim.Name)
		}
		anims[anim.Name] = len(ab.Animations)
		ab.Animations = append(ab.Animations, anim)
	}

	machines := make(map[string]bool)
	for i := range d.StateMachines {
		sm, err := buildMachine(ab, anims, &d.StateMachines[i])
		if err != nil {
			return nil, fmt.Errorf("%s: state machine %d: %w", d.Name, i, err)
		}
		if machines[sm.Name] {
			return nil, fmt.Errorf("%s: duplicate state machine %q", d.Name, sm.Name)
		}
		machines[sm.Name] = true
		ab.StateMachines = append(ab.StateMachines, sm)
	}

	if d.ViewModel != nil {
		vm, err := buildViewModel(ab, d.ViewModel)
		if err != nil {
			return nil, fmt.Errorf("%s: view model: %w", d.Name, err)
		}
		ab.ViewModel = vm
	}
	return ab, nil
}

func buildShape(d *shapeDoc) (ShapeDef, error) {
	if d.Name == "" {
		return ShapeDef{}, errors.New("missing name")
	}
	kind, ok := parseShapeKind(d.Kind)
	if !ok {
		return ShapeDef{}, fmt.Errorf("%s: unknown kind %q", d.Name, d.Kind)
	}
	sides := d.Sides
	if kind == ShapePolygon {
		if sides == 0 {
			sides = 5
		}
		if sides < 3 {
			return ShapeDef{}, fmt.Errorf("%s: polygon needs at least 3 sides", d.Name)
		}
	}
	st := ShapeState{
		X: d.X, Y: d.Y,
		Width: d.Width, Height: d.Height,
		Rotation:     d.Rotation,
		Scale:        1,
		Opacity:      1,
		CornerRadius: d.CornerRadius,
		StrokeWidth:  d.StrokeWidth,
		Visible:      true,
		Fill:         gg.RGBA{A: 1},
		Stroke:       gg.Transparent,
	}
	if d.Scale != nil {
		st.Scale = *d.Scale
	}
	if d.Opacity != nil {
		st.Opacity = *d.Opacity
	}
	if d.Visible != nil {
		st.Visible = *d.Visible
	}
	var err error
	if d.Fill != "" {
		if st.Fill, err = parseColor(d.Fill); err != nil {
			return ShapeDef{}, fmt.Errorf("%s: fill: %w", d.Name, err)
		}
	}
	if d.Stroke != "" {
		if st.Stroke, err = parseColor(d.Stroke); err != nil {
			return ShapeDef{}, fmt.Errorf("%s: stroke: %w", d.Name, err)
		}
	}
	return ShapeDef{Name: d.Name, Kind: kind, Sides: sides, Initial: st}, nil
}

func buildAnimation(ab *Artboard, d *animationDoc) (*Animation, error) {
	if d.Name == "" {
		return nil, errors.New("missing name")
	}
	if d.Duration < 0 {
		return nil, fmt.Errorf("%s: negative duration", d.Name)
	}
	loop, err := parseLoop(d.Loop)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", d.Name, err)
	}
	anim := &Animation{Name: d.Name, Duration: d.Duration, Loop: loop}
	for i := range d.Tracks {
		td := &d.Tracks[i]
		target, err := parseTarget(ab, td.Target)
		if err != nil {
			return nil, fmt.Errorf("%s: track %d: %w", d.Name, i, err)
		}
		tr := Track{Target: target}
		for j := range td.Keys {
			kd := &td.Keys[j]
			if kd.Time < 0 {
				return nil, fmt.Errorf("%s: track %d key %d: negative time", d.Name, i, j)
			}
			interp, err := parseInterp(kd.Interp)
			if err != nil {
				return nil, fmt.Errorf("%s: track %d key %d: %w", d.Name, i, j, err)
			}
			k := Keyframe{Time: kd.Time, Interp: interp}
			if target.Prop.IsColor() {
				var s string
				if err := kd.Value.Decode(&s); err != nil {
					return nil, fmt.Errorf("%s: track %d key %d: %w", d.Name, i, j, err)
				}
				if k.Color, err = parseColor(s); err != nil {
					return nil, fmt.Errorf("%s: track %d key %d: %w", d.Name, i, j, err)
				}
			} else if k.Value, err = nodeNumber(&kd.Value); err != nil {
				return nil, fmt.Errorf("%s: track %d key %d: %w", d.Name, i, j, err)
			}
			tr.Keys = append(tr.Keys, k)
		}
		sort.SliceStable(tr.Keys, func(a, b int) bool { return tr.Keys[a].Time < tr.Keys[b].Time })
		if n := len(tr.Keys); n > 0 && d.Duration == 0 && tr.Keys[n-1].Time > anim.Duration {
			anim.Duration = tr.Keys[n-1].Time
		}
		anim.Tracks = append(anim.Tracks, tr)
	}
	return anim, nil
}

func buildMachine(ab *Artboard, anims map[string]int, d *machineDoc) (*StateMachine, error) {
	if d.Name == "" {
		return nil, errors.New("missing name")
	}
	if len(d.States) == 0 {
		return nil, fmt.Errorf("%s: no states", d.Name)
	}
	sm := &StateMachine{Name: d.Name, Default: d.Default}

	inputs := make(map[string]int)
	for i := range d.Inputs {
		id := &d.Inputs[i]
		if id.Name == "" {
			return nil, fmt.Errorf("%s: input %d: missing name", d.Name, i)
		}
		if _, dup := inputs[id.Name]; dup {
			return nil, fmt.Errorf("%s: duplicate input %q", d.Name, id.Name)
		}
		in := InputDef{Name: id.Name}
		var err error
		switch id.Type {
		case "bool":
			in.Type = InputBool
			in.Bool, err = nodeBool(&id.Value)
		case "number":
			in.Type = InputNumber
			in.Number, err = nodeNumber(&id.Value)
		case "trigger":
			in.Type = InputTrigger
		default:
			err = fmt.Errorf("unknown type %q", id.Type)
		}
		if err != nil {
			return nil, fmt.Errorf("%s: input %q: %w", d.Name, id.Name, err)
		}
		inputs[id.Name] = len(sm.Inputs)
		sm.Inputs = append(sm.Inputs, in)
	}

	states := make(map[string]int)
	for i := range d.States {
		sd := &d.States[i]
		if sd.Name == "" {
			return nil, fmt.Errorf("%s: state %d: missing name", d.Name, i)
		}
		if _, dup := states[sd.Name]; dup {
			return nil, fmt.Errorf("%s: duplicate state %q", d.Name, sd.Name)
		}
		st := StateDef{Name: sd.Name, Animation: -1, Speed: 1}
		if sd.Animation != "" {
			a, ok := anims[sd.Animation]
			if !ok {
				return nil, fmt.Errorf("%s: state %q: unknown animation %q", d.Name, sd.Name, sd.Animation)
			}
			st.Animation = a
		}
		if sd.Speed != nil {
			st.Speed = *sd.Speed
		}
		states[sd.Name] = len(sm.States)
		sm.States = append(sm.States, st)
	}
	if d.Initial != "" {
		s, ok := states[d.Initial]
		if !ok {
			return nil, fmt.Errorf("%s: unknown initial state %q", d.Name, d.Initial)
		}
		sm.Initial = s
	}

	for i := range d.Transitions {
		td := &d.Transitions[i]
		tr := Transition{From: AnyState, ExitTime: td.ExitTime}
		if td.From != "any" {
			s, ok := states[td.From]
			if !ok {
				return nil, fmt.Errorf("%s: transition %d: unknown state %q", d.Name, i, td.From)
			}
			tr.From = s
		}
		to, ok := states[td.To]
		if !ok {
			return nil, fmt.Errorf("%s: transition %d: unknown state %q", d.Name, i, td.To)
		}
		tr.To = to
		for j := range td.When {
			cd := &td.When[j]
			in, ok := inputs[cd.Input]
			if !ok {
				return nil, fmt.Errorf("%s: transition %d: unknown input %q", d.Name, i, cd.Input)
			}
			op, err := parseOp(cd.Op)
			if err != nil {
				return nil, fmt.Errorf("%s: transition %d: %w", d.Name, i, err)
			}
			v, err := nodeNumber(&cd.Value)
			if err != nil {
				return nil, fmt.Errorf("%s: transition %d: %w", d.Name, i, err)
			}
			tr.Conditions = append(tr.Conditions, Condition{Input: in, Op: op, Value: v})
		}
		sm.Transitions = append(sm.Transitions, tr)
	}

	for i := range d.Listeners {
		ld := &d.Listeners[i]
		shape := ab.ShapeIndex(ld.Shape)
		if shape < 0 {
			return nil, fmt.Errorf("%s: listener %d: unknown shape %q", d.Name, i, ld.Shape)
		}
		in, ok := inputs[ld.Input]
		if !ok {
			return nil, fmt.Errorf("%s: listener %d: unknown input %q", d.Name, i, ld.Input)
		}
		var ev ListenerEvent
		switch ld.Event {
		case "enter":
			ev = PointerEnter
		case "exit":
			ev = PointerExit
		case "move":
			ev = PointerMove
		default:
			return nil, fmt.Errorf("%s: listener %d: unknown event %q", d.Name, i, ld.Event)
		}
		v := 1.0
		if ld.Value.Kind != 0 {
			var err error
			if v, err = nodeNumber(&ld.Value); err != nil {
				return nil, fmt.Errorf("%s: listener %d: %w", d.Name, i, err)
			}
		}
		sm.Listeners = append(sm.Listeners, Listener{Shape: shape, Event: ev, Input: in, Value: v})
	}
	return sm, nil
}

func buildViewModel(ab *Artboard, d *viewModelDoc) (*ViewModel, error) {
	vm := &ViewModel{Name: d.Name}
	if vm.Name == "" {
		vm.Name = ab.Name
	}
	seen := make(map[string]bool)
	for i := range d.Properties {
		pd := &d.Properties[i]
		if pd.Name == "" {
			return nil, fmt.Errorf("property %d: missing name", i)
		}
		if seen[pd.Name] {
			return nil, fmt.Errorf("duplicate property %q", pd.Name)
		}
		seen[pd.Name] = true

		p := PropertyDef{Name: pd.Name}
		var err error
		switch pd.Type {
		case "bool":
			p.Type = PropertyBool
			p.Bool, err = nodeBool(&pd.Value)
		case "number":
			p.Type = PropertyNumber
			p.Number, err = nodeNumber(&pd.Value)
		case "string":
			p.Type = PropertyString
			if pd.Value.Kind != 0 {
				err = pd.Value.Decode(&p.String)
			}
		case "trigger":
			p.Type = PropertyTrigger
		case "color":
			p.Type = PropertyColor
			p.Color = gg.Transparent
			if pd.Value.Kind != 0 {
				var s string
				if err = pd.Value.Decode(&s); err == nil {
					p.Color, err = parseColor(s)
				}
			}
		default:
			err = fmt.Errorf("unknown type %q", pd.Type)
		}
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", pd.Name, err)
		}

		if pd.Bind != "" {
			t, err := parseTarget(ab, pd.Bind)
			if err != nil {
				return nil, fmt.Errorf("property %q: %w", pd.Name, err)
			}
			colorValue := p.Type == PropertyString || p.Type == PropertyColor
			if p.Type == PropertyTrigger || colorValue != t.Prop.IsColor() {
				return nil, fmt.Errorf("property %q: %s cannot bind to %s", pd.Name, p.Type, t.Prop)
			}
			p.Bind = &t
		}
		vm.Properties = append(vm.Properties, p)
	}
	return vm, nil
}

func parseLoop(s string) (LoopMode, error) {
	switch s {
	case "", "oneshot":
		return LoopOneShot, nil
	case "loop":
		return LoopLoop, nil
	case "pingpong":
		return LoopPingPong, nil
	}
	return 0, fmt.Errorf("unknown loop mode %q", s)
}

func parseInterp(s string) (Interpolation, error) {
	switch s {
	case "", "linear":
		return InterpLinear, nil
	case "hold":
		return InterpHold, nil
	case "ease":
		return InterpEase, nil
	}
	return 0, fmt.Errorf("unknown interpolation %q", s)
}

func parseOp(s string) (CondOp, error) {
	switch s {
	case "", "==":
		return OpEq, nil
	case "!=":
		return OpNe, nil
	case "<":
		return OpLt, nil
	case "<=":
		return OpLe, nil
	case ">":
		return OpGt, nil
	case ">=":
		return OpGe, nil
	}
	return 0, fmt.Errorf("unknown operator %q", s)
}

// parseColor accepts #RGB, #RGBA, #RRGGBB and #RRGGBBAA. "none" is
// transparent.
func parseColor(s string) (gg.RGBA, error) {
	if s == "none" {
		return gg.Transparent, nil
	}
	hex, ok := strings.CutPrefix(s, "#")
	if !ok {
		return gg.RGBA{}, fmt.Errorf("color %q: want #hex", s)
	}
	switch len(hex) {
	case 3, 4, 6, 8:
	default:
		return gg.RGBA{}, fmt.Errorf("color %q: bad length", s)
	}
	for _, r := range hex {
		if !strings.ContainsRune("0123456789abcdefABCDEF", r) {
			return gg.RGBA{}, fmt.Errorf("color %q: bad digit %q", s, r)
		}
	}
	return gg.Hex(hex), nil
}

// nodeNumber decodes an optional scalar as a number. Booleans read as 0
// or 1.
func nodeNumber(n *yaml.Node) (float64, error) {
	if n.Kind == 0 {
		return 0, nil
	}
	var f float64
	if err := n.Decode(&f); err == nil {
		return f, nil
	}
	var b bool
	if err := n.Decode(&b); err != nil {
		return 0, fmt.Errorf("line %d: %q is not a number", n.Line, n.Value)
	}
	if b {
		return 1, nil
	}
	return 0, nil
}

// nodeBool decodes an optional scalar as a bool. Numbers are true when
// non-zero.
func nodeBool(n *yaml.Node) (bool, error) {
	if n.Kind == 0 {
		return false, nil
	}
	var b bool
	if err := n.Decode(&b); err == nil {
		return b, nil
	}
	f, err := nodeNumber(n)
	if err != nil {
		return false, err
	}
	return f != 0, nil
}
