package model

import "image/color"

// Kind distinguishes the two entity roles in a scene.
type Kind int

const (
	KindUnknown Kind = iota
	KindCentralBody
	KindSatellite
)

func (k Kind) String() string {
	switch k {
	case KindCentralBody:
		return "central_body"
	case KindSatellite:
		return "satellite"
	default:
		return "unknown"
	}
}

// Sprite is the draw-only projection of an entity: where it is, how big it
// is and what color to paint it.
type Sprite struct {
	ID       string
	Kind     Kind
	Position Vec2
	Radius   float64
	Color    color.RGBA
}
