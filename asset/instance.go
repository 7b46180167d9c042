package asset

import (
	"math"

	"github.com/gogpu/gg"
)

// Fit selects how an artboard is mapped into the render size.
type Fit int

const (
	// FitContain scales uniformly to fit and centers the artboard.
	FitContain Fit = iota
	// FitFill stretches the artboard to the render size.
	FitFill
	// FitNone draws at authored size, centered.
	FitNone
)

var fitNames = []string{
	FitContain: "contain",
	FitFill:    "fill",
	FitNone:    "none",
}

func (f Fit) String() string {
	if f >= 0 && int(f) < len(fitNames) {
		return fitNames[f]
	}
	return "unknown"
}

// ParseFit parses a fit mode name.
func ParseFit(name string) (Fit, bool) {
	for i, n := range fitNames {
		if n == name {
			return Fit(i), true
		}
	}
	return 0, false
}

// Instance is a live, mutable copy of an artboard.
type Instance struct {
	art    *Artboard
	shapes []ShapeState
	width  float64
	height float64
	fit    Fit

	vm      *ViewModelInstance
	machine *MachineInstance
	idle    *Player
}

// Instantiate creates a new instance at the artboard's intrinsic size.
func (ab *Artboard) Instantiate() *Instance {
	inst := &Instance{
		art:    ab,
		shapes: make([]ShapeState, len(ab.Shapes)),
		width:  ab.Width,
		height: ab.Height,
	}
	for i := range ab.Shapes {
		inst.shapes[i] = ab.Shapes[i].Initial
	}
	if ab.ViewModel != nil {
		inst.vm = newViewModelInstance(ab.ViewModel)
		inst.vm.apply(inst.shapes)
	}
	if len(ab.StateMachines) == 0 && len(ab.Animations) > 0 {
		inst.idle = NewPlayer(ab.Animations[0])
		inst.idle.Apply(inst.shapes)
	}
	return inst
}

// Artboard returns the definition this instance was created from.
func (inst *Instance) Artboard() *Artboard { return inst.art }

// IntrinsicSize returns the authored artboard size.
func (inst *Instance) IntrinsicSize() (w, h float64) { return inst.art.Width, inst.art.Height }

// SetSize sets the size the instance is drawn at.
func (inst *Instance) SetSize(w, h float64) {
	inst.width, inst.height = w, h
}

// Size returns the size the instance is drawn at.
func (inst *Instance) Size() (w, h float64) { return inst.width, inst.height }

// SetFit sets how the artboard is mapped into the draw size.
func (inst *Instance) SetFit(f Fit) { inst.fit = f }

// ViewModel returns the view-model instance, or nil when the artboard has
// no view model.
func (inst *Instance) ViewModel() *ViewModelInstance { return inst.vm }

// Machine returns the running instance of the default state machine, or
// of the first one when none is marked default. It returns nil when the
// artboard has no state machine. The same instance is returned on every
// call.
func (inst *Instance) Machine() *MachineInstance {
	if inst.machine != nil || len(inst.art.StateMachines) == 0 {
		return inst.machine
	}
	def := inst.art.StateMachines[0]
	for _, sm := range inst.art.StateMachines {
		if sm.Default {
			def = sm
			break
		}
	}
	inst.machine = newMachineInstance(def, inst)
	return inst.machine
}

// Shape returns the live state of the named shape.
func (inst *Instance) Shape(name string) (*ShapeState, bool) {
	i := inst.art.ShapeIndex(name)
	if i < 0 {
		return nil, false
	}
	return &inst.shapes[i], true
}

// Advance moves the artboard's own clock by dt seconds. Artboards without a
// state machine loop their first animation. Bound view-model values are
// then written into the shapes. It reports whether an animation is still
// playing.
func (inst *Instance) Advance(dt float64) bool {
	playing := false
	if inst.idle != nil {
		playing = inst.idle.Advance(dt)
		inst.idle.Apply(inst.shapes)
	}
	if inst.vm != nil {
		inst.vm.apply(inst.shapes)
	}
	return playing
}

// transform returns the scale and offset mapping artboard coordinates to
// draw coordinates.
func (inst *Instance) transform() (sx, sy, ox, oy float64) {
	aw, ah := inst.art.Width, inst.art.Height
	if aw <= 0 || ah <= 0 {
		return 1, 1, 0, 0
	}
	switch inst.fit {
	case FitFill:
		sx, sy = inst.width/aw, inst.height/ah
	case FitNone:
		sx, sy = 1, 1
	default:
		s := math.Min(inst.width/aw, inst.height/ah)
		sx, sy = s, s
	}
	ox = (inst.width - aw*sx) / 2
	oy = (inst.height - ah*sy) / 2
	return sx, sy, ox, oy
}

// ToArtboard maps a point in draw coordinates to artboard coordinates.
func (inst *Instance) ToArtboard(x, y float64) (float64, float64) {
	sx, sy, ox, oy := inst.transform()
	return (x - ox) / sx, (y - oy) / sy
}

// hit reports whether the point, in artboard coordinates, is inside shape i.
func (inst *Instance) hit(i int, x, y float64) bool {
	s := &inst.shapes[i]
	if !s.Visible || s.Scale == 0 {
		return false
	}
	dx, dy := x-s.X, y-s.Y
	rad := -s.Rotation * math.Pi / 180
	cos, sin := math.Cos(rad), math.Sin(rad)
	dx, dy = (dx*cos-dy*sin)/s.Scale, (dx*sin+dy*cos)/s.Scale
	hw, hh := s.Width/2, s.Height/2
	switch inst.art.Shapes[i].Kind {
	case ShapeEllipse:
		if hw <= 0 || hh <= 0 {
			return false
		}
		return (dx*dx)/(hw*hw)+(dy*dy)/(hh*hh) <= 1
	case ShapePolygon:
		r := math.Min(hw, hh)
		return dx*dx+dy*dy <= r*r
	default:
		return math.Abs(dx) <= hw && math.Abs(dy) <= hh
	}
}

// Draw renders the instance into dc at its current size.
func (inst *Instance) Draw(dc *gg.Context) error {
	sx, sy, ox, oy := inst.transform()
	dc.Push()
	defer dc.Pop()
	dc.Translate(ox, oy)
	dc.Scale(sx, sy)

	if bg := inst.art.Background; bg.A > 0 {
		dc.DrawRectangle(0, 0, inst.art.Width, inst.art.Height)
		dc.SetRGBA(bg.R, bg.G, bg.B, bg.A)
		if err := dc.Fill(); err != nil {
			return err
		}
	}
	for i := range inst.shapes {
		if err := inst.drawShape(dc, i); err != nil {
			return err
		}
	}
	return nil
}

func (inst *Instance) drawShape(dc *gg.Context, i int) error {
	s := &inst.shapes[i]
	if !s.Visible || s.Opacity <= 0 || s.Scale == 0 {
		return nil
	}
	fill := s.Fill.A*s.Opacity > 0
	stroke := s.Stroke.A*s.Opacity > 0 && s.StrokeWidth > 0
	if !fill && !stroke {
		return nil
	}

	dc.Push()
	defer dc.Pop()
	dc.Translate(s.X, s.Y)
	dc.Rotate(s.Rotation * math.Pi / 180)
	dc.Scale(s.Scale, s.Scale)

	def := &inst.art.Shapes[i]
	hw, hh := s.Width/2, s.Height/2
	switch def.Kind {
	case ShapeEllipse:
		dc.DrawEllipse(0, 0, hw, hh)
	case ShapeRoundRect:
		dc.DrawRoundedRectangle(-hw, -hh, s.Width, s.Height, s.CornerRadius)
	case ShapePolygon:
		dc.DrawRegularPolygon(def.Sides, 0, 0, math.Min(hw, hh), 0)
	default:
		dc.DrawRectangle(-hw, -hh, s.Width, s.Height)
	}

	if fill {
		dc.SetRGBA(s.Fill.R, s.Fill.G, s.Fill.B, s.Fill.A*s.Opacity)
		var err error
		if stroke {
			err = dc.FillPreserve()
		} else {
			err = dc.Fill()
		}
		if err != nil {
			return err
		}
	}
	if stroke {
		dc.SetLineWidth(s.StrokeWidth)
		dc.SetRGBA(s.Stroke.R, s.Stroke.G, s.Stroke.B, s.Stroke.A*s.Opacity)
		return dc.Stroke()
	}
	return nil
}
