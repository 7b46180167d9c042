package asset

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/gogpu/animnode"
	"github.com/gogpu/gg"
)

var (
	// ErrFileNotFound is returned when the asset path does not name a file.
	ErrFileNotFound = errors.New("asset: file not found")

	// ErrDecodeFailed is returned when the bytes are not a valid document.
	ErrDecodeFailed = errors.New("asset: decode failed")

	// ErrNoDefaultScene is returned when a document has no artboard.
	ErrNoDefaultScene = errors.New("asset: no default artboard")

	// ErrInputIndex is returned for out-of-range input or property indices.
	ErrInputIndex = errors.New("asset: index out of range")

	// ErrTypeMismatch is returned when a value is written with the wrong type.
	ErrTypeMismatch = errors.New("asset: value type mismatch")
)

// Asset is a decoded, immutable document.
type Asset struct {
	Artboards []*Artboard
}

// Artboard is the definition of a root scene.
type Artboard struct {
	Name          string
	Width         float64
	Height        float64
	Default       bool
	Background    gg.RGBA
	Shapes        []ShapeDef
	Animations    []*Animation
	StateMachines []*StateMachine
	ViewModel     *ViewModel
}

// Load reads and decodes the document at path.
func Load(path string) (*Asset, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrFileNotFound, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFileNotFound, err)
	}
	a, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	animnode.Logger().Info("asset: loaded", "path", path, "artboards", len(a.Artboards))
	return a, nil
}

// LoadScene loads path and instantiates its default artboard.
func LoadScene(path string) (*Asset, *Instance, error) {
	a, err := Load(path)
	if err != nil {
		return nil, nil, err
	}
	ab, err := a.DefaultArtboard()
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return a, ab.Instantiate(), nil
}

// DefaultArtboard returns the artboard marked default, or the first one.
func (a *Asset) DefaultArtboard() (*Artboard, error) {
	if len(a.Artboards) == 0 {
		return nil, ErrNoDefaultScene
	}
	for _, ab := range a.Artboards {
		if ab.Default {
			return ab, nil
		}
	}
	return a.Artboards[0], nil
}

// Artboard returns the artboard with the given name.
func (a *Asset) Artboard(name string) (*Artboard, bool) {
	for _, ab := range a.Artboards {
		if ab.Name == name {
			return ab, true
		}
	}
	return nil, false
}

// ShapeIndex returns the index of the named shape, or -1.
func (ab *Artboard) ShapeIndex(name string) int {
	for i := range ab.Shapes {
		if ab.Shapes[i].Name == name {
			return i
		}
	}
	return -1
}

// ShapeKind selects the outline of a shape.
type ShapeKind int

const (
	ShapeRect ShapeKind = iota
	ShapeEllipse
	ShapeRoundRect
	ShapePolygon
)

var shapeKindNames = []string{
	ShapeRect:      "rect",
	ShapeEllipse:   "ellipse",
	ShapeRoundRect: "roundrect",
	ShapePolygon:   "polygon",
}

func (k ShapeKind) String() string {
	if k >= 0 && int(k) < len(shapeKindNames) {
		return shapeKindNames[k]
	}
	return "unknown"
}

func parseShapeKind(name string) (ShapeKind, bool) {
	for i, n := range shapeKindNames {
		if n == name {
			return ShapeKind(i), true
		}
	}
	return 0, false
}

// ShapeDef is an authored shape and its initial state.
type ShapeDef struct {
	Name    string
	Kind    ShapeKind
	Sides   int
	Initial ShapeState
}

// ShapeState is the live, animatable state of a shape. X and Y locate the
// shape's center in artboard coordinates; Rotation is in degrees.
type ShapeState struct {
	X, Y          float64
	Width, Height float64
	Rotation      float64
	Scale         float64
	Opacity       float64
	CornerRadius  float64
	StrokeWidth   float64
	Visible       bool
	Fill          gg.RGBA
	Stroke        gg.RGBA
}

// Prop names an animatable or bindable shape property.
type Prop int

const (
	PropX Prop = iota
	PropY
	PropWidth
	PropHeight
	PropRotation
	PropScale
	PropOpacity
	PropCornerRadius
	PropStrokeWidth
	PropVisible
	PropFill
	PropStroke
)

var propNames = []string{
	PropX:            "x",
	PropY:            "y",
	PropWidth:        "width",
	PropHeight:       "height",
	PropRotation:     "rotation",
	PropScale:        "scale",
	PropOpacity:      "opacity",
	PropCornerRadius: "cornerRadius",
	PropStrokeWidth:  "strokeWidth",
	PropVisible:      "visible",
	PropFill:         "fill",
	PropStroke:       "stroke",
}

func (p Prop) String() string {
	if p >= 0 && int(p) < len(propNames) {
		return propNames[p]
	}
	return "unknown"
}

// IsColor reports whether p holds a color.
func (p Prop) IsColor() bool { return p == PropFill || p == PropStroke }

// ParseProp parses a property name.
func ParseProp(name string) (Prop, bool) {
	for i, n := range propNames {
		if n == name {
			return Prop(i), true
		}
	}
	return 0, false
}

// Target addresses one property of one shape.
type Target struct {
	Shape int
	Prop  Prop
}

// parseTarget splits "shape.prop" and resolves it against ab.
func parseTarget(ab *Artboard, ref string) (Target, error) {
	shape, prop, ok := strings.Cut(ref, ".")
	if !ok {
		return Target{}, fmt.Errorf("target %q: want shape.property", ref)
	}
	idx := ab.ShapeIndex(shape)
	if idx < 0 {
		return Target{}, fmt.Errorf("target %q: unknown shape %q", ref, shape)
	}
	p, ok := ParseProp(prop)
	if !ok {
		return Target{}, fmt.Errorf("target %q: unknown property %q", ref, prop)
	}
	return Target{Shape: idx, Prop: p}, nil
}

// Number returns a numeric property. Visible reads as 0 or 1; colors read
// as their alpha.
func (s *ShapeState) Number(p Prop) float64 {
	switch p {
	case PropX:
		return s.X
	case PropY:
		return s.Y
	case PropWidth:
		return s.Width
	case PropHeight:
		return s.Height
	case PropRotation:
		return s.Rotation
	case PropScale:
		return s.Scale
	case PropOpacity:
		return s.Opacity
	case PropCornerRadius:
		return s.CornerRadius
	case PropStrokeWidth:
		return s.StrokeWidth
	case PropVisible:
		if s.Visible {
			return 1
		}
		return 0
	case PropFill:
		return s.Fill.A
	case PropStroke:
		return s.Stroke.A
	}
	return 0
}

// SetNumber writes a numeric property. Visible is set when v > 0.5;
// colors take v as their alpha.
func (s *ShapeState) SetNumber(p Prop, v float64) {
	switch p {
	case PropX:
		s.X = v
	case PropY:
		s.Y = v
	case PropWidth:
		s.Width = v
	case PropHeight:
		s.Height = v
	case PropRotation:
		s.Rotation = v
	case PropScale:
		s.Scale = v
	case PropOpacity:
		s.Opacity = v
	case PropCornerRadius:
		s.CornerRadius = v
	case PropStrokeWidth:
		s.StrokeWidth = v
	case PropVisible:
		s.Visible = v > 0.5
	case PropFill:
		s.Fill.A = v
	case PropStroke:
		s.Stroke.A = v
	}
}

// SetColor writes a color property. It is a no-op for other properties.
func (s *ShapeState) SetColor(p Prop, c gg.RGBA) {
	switch p {
	case PropFill:
		s.Fill = c
	case PropStroke:
		s.Stroke = c
	}
}

// Color returns a color property, or transparent for other properties.
func (s *ShapeState) Color(p Prop) gg.RGBA {
	switch p {
	case PropFill:
		return s.Fill
	case PropStroke:
		return s.Stroke
	}
	return gg.Transparent
}
