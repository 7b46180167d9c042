package asset

import (
	"fmt"

	"github.com/gogpu/gg"
)

// PropertyType is the type of a view-model property.
type PropertyType int

const (
	PropertyBool PropertyType = iota
	PropertyNumber
	PropertyString
	PropertyTrigger
	PropertyColor
)

var propertyTypeNames = []string{
	PropertyBool:    "bool",
	PropertyNumber:  "number",
	PropertyString:  "string",
	PropertyTrigger: "trigger",
	PropertyColor:   "color",
}

func (t PropertyType) String() string {
	if t >= 0 && int(t) < len(propertyTypeNames) {
		return propertyTypeNames[t]
	}
	return "unknown"
}

// PropertyDef is an authored view-model property. Bind, when set, names
// the shape property the value is written to on every Advance. String
// properties bind only to color properties and are parsed as hex colors.
type PropertyDef struct {
	Name   string
	Type   PropertyType
	Bool   bool
	Number float64
	String string
	Color  gg.RGBA
	Bind   *Target
}

// ViewModel is the authored data-binding surface of an artboard.
type ViewModel struct {
	Name       string
	Properties []PropertyDef
}

type propertyValue struct {
	b     bool
	n     float64
	s     string
	c     gg.RGBA
	fired int
}

// ViewModelInstance holds live values for a ViewModel.
type ViewModelInstance struct {
	def    *ViewModel
	values []propertyValue
}

func newViewModelInstance(def *ViewModel) *ViewModelInstance {
	vm := &ViewModelInstance{def: def, values: make([]propertyValue, len(def.Properties))}
	for i, p := range def.Properties {
		vm.values[i] = propertyValue{b: p.Bool, n: p.Number, s: p.String, c: p.Color}
	}
	return vm
}

// Name returns the view model's name.
func (vm *ViewModelInstance) Name() string { return vm.def.Name }

// NumProperties returns the number of properties.
func (vm *ViewModelInstance) NumProperties() int { return len(vm.values) }

// Property returns the definition of property i.
func (vm *ViewModelInstance) Property(i int) PropertyDef { return vm.def.Properties[i] }

// PropertyIndex returns the index of the named property, or -1.
func (vm *ViewModelInstance) PropertyIndex(name string) int {
	for i, p := range vm.def.Properties {
		if p.Name == name {
			return i
		}
	}
	return -1
}

func (vm *ViewModelInstance) check(i int, want PropertyType) error {
	if i < 0 || i >= len(vm.values) {
		return fmt.Errorf("%w: property %d of %s", ErrInputIndex, i, vm.def.Name)
	}
	if got := vm.def.Properties[i].Type; got != want {
		return fmt.Errorf("%w: property %q is %s, not %s", ErrTypeMismatch, vm.def.Properties[i].Name, got, want)
	}
	return nil
}

// SetBool sets a bool property.
func (vm *ViewModelInstance) SetBool(i int, v bool) error {
	if err := vm.check(i, PropertyBool); err != nil {
		return err
	}
	vm.values[i].b = v
	return nil
}

// Bool returns a bool property.
func (vm *ViewModelInstance) Bool(i int) bool { return vm.values[i].b }

// SetNumber sets a number property.
func (vm *ViewModelInstance) SetNumber(i int, v float64) error {
	if err := vm.check(i, PropertyNumber); err != nil {
		return err
	}
	vm.values[i].n = v
	return nil
}

// Number returns a number property.
func (vm *ViewModelInstance) Number(i int) float64 { return vm.values[i].n }

// SetString sets a string property.
func (vm *ViewModelInstance) SetString(i int, v string) error {
	if err := vm.check(i, PropertyString); err != nil {
		return err
	}
	vm.values[i].s = v
	return nil
}

// String returns a string property.
func (vm *ViewModelInstance) String(i int) string { return vm.values[i].s }

// SetColor sets a color property.
func (vm *ViewModelInstance) SetColor(i int, c gg.RGBA) error {
	if err := vm.check(i, PropertyColor); err != nil {
		return err
	}
	vm.values[i].c = c
	return nil
}

// Color returns a color property.
func (vm *ViewModelInstance) Color(i int) gg.RGBA { return vm.values[i].c }

// Fire fires a trigger property.
func (vm *ViewModelInstance) Fire(i int) error {
	if err := vm.check(i, PropertyTrigger); err != nil {
		return err
	}
	vm.values[i].fired++
	return nil
}

// Fired returns how many times trigger i has fired.
func (vm *ViewModelInstance) Fired(i int) int { return vm.values[i].fired }

// apply writes bound property values into shapes.
func (vm *ViewModelInstance) apply(shapes []ShapeState) {
	for i, p := range vm.def.Properties {
		if p.Bind == nil {
			continue
		}
		s := &shapes[p.Bind.Shape]
		v := vm.values[i]
		switch p.Type {
		case PropertyBool:
			n := 0.0
			if v.b {
				n = 1
			}
			s.SetNumber(p.Bind.Prop, n)
		case PropertyNumber:
			s.SetNumber(p.Bind.Prop, v.n)
		case PropertyString:
			if v.s != "" {
				s.SetColor(p.Bind.Prop, gg.Hex(v.s))
			}
		case PropertyColor:
			s.SetColor(p.Bind.Prop, v.c)
		}
	}
}
