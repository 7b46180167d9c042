package asset

import (
	"math"

	"github.com/gogpu/gg"
)

// Interpolation selects how a keyframe blends toward the next one.
type Interpolation int

const (
	InterpLinear Interpolation = iota
	InterpHold
	InterpEase
)

// LoopMode selects what happens when an animation reaches its end.
type LoopMode int

const (
	LoopOneShot LoopMode = iota
	LoopLoop
	LoopPingPong
)

// Keyframe is one key of a track. Color is used by color properties,
// Value by all others. Interp applies to the segment starting here.
type Keyframe struct {
	Time   float64
	Value  float64
	Color  gg.RGBA
	Interp Interpolation
}

// Track animates one property of one shape. Keys are sorted by Time.
type Track struct {
	Target Target
	Keys   []Keyframe
}

// Animation is a named set of tracks with a duration in seconds.
type Animation struct {
	Name     string
	Duration float64
	Loop     LoopMode
	Tracks   []Track
}

// segment returns the keys surrounding t and the eased mix between them.
func (tr *Track) segment(t float64) (a, b *Keyframe, mix float64) {
	keys := tr.Keys
	if t <= keys[0].Time {
		return &keys[0], &keys[0], 0
	}
	last := &keys[len(keys)-1]
	if t >= last.Time {
		return last, last, 0
	}
	i := 1
	for keys[i].Time < t {
		i++
	}
	a, b = &keys[i-1], &keys[i]
	span := b.Time - a.Time
	if span <= 0 {
		return b, b, 0
	}
	mix = (t - a.Time) / span
	switch a.Interp {
	case InterpHold:
		mix = 0
	case InterpEase:
		mix = mix * mix * (3 - 2*mix)
	}
	return a, b, mix
}

// apply writes the track's value at time t into shapes.
func (tr *Track) apply(shapes []ShapeState, t float64) {
	if len(tr.Keys) == 0 {
		return
	}
	a, b, mix := tr.segment(t)
	s := &shapes[tr.Target.Shape]
	if tr.Target.Prop.IsColor() {
		s.SetColor(tr.Target.Prop, a.Color.Lerp(b.Color, mix))
		return
	}
	s.SetNumber(tr.Target.Prop, a.Value+(b.Value-a.Value)*mix)
}

// Apply writes every track's value at time t into shapes.
func (a *Animation) Apply(shapes []ShapeState, t float64) {
	for i := range a.Tracks {
		a.Tracks[i].apply(shapes, t)
	}
}

// Player plays an Animation over time.
type Player struct {
	anim *Animation
	time float64
	dir  float64
	done bool
}

// NewPlayer returns a player positioned at the start of anim.
func NewPlayer(anim *Animation) *Player {
	return &Player{anim: anim, dir: 1}
}

// Animation returns the animation being played.
func (p *Player) Animation() *Animation { return p.anim }

// Time returns the current local time in seconds.
func (p *Player) Time() float64 { return p.time }

// Progress returns the current time as a fraction of the duration.
func (p *Player) Progress() float64 {
	if p.anim.Duration <= 0 {
		return 1
	}
	return p.time / p.anim.Duration
}

// Done reports whether a one-shot animation has finished.
func (p *Player) Done() bool { return p.done }

// Advance moves the clock by dt seconds and reports whether the
// animation is still playing.
func (p *Player) Advance(dt float64) bool {
	d := p.anim.Duration
	if p.done || d <= 0 {
		p.done = true
		return false
	}
	if math.IsNaN(dt) || math.IsInf(dt, 0) {
		return true
	}
	p.time += dt * p.dir
	switch p.anim.Loop {
	case LoopOneShot:
		if p.time >= d {
			p.time = d
			p.done = true
		}
	case LoopLoop:
		p.time = math.Mod(p.time, d)
		if p.time < 0 {
			p.time += d
		}
	case LoopPingPong:
		// Unfold onto one forward and one backward pass.
		m := math.Mod(p.time, 2*d)
		if m < 0 {
			m += 2 * d
		}
		if m > d {
			m = 2*d - m
			p.dir = -p.dir
		}
		p.time = m
	}
	return !p.done
}

// Apply writes the animation's current values into shapes.
func (p *Player) Apply(shapes []ShapeState) {
	p.anim.Apply(shapes, p.time)
}
