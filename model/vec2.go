package model

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r2"
)

// Vec2 is a 2D screen-space coordinate in pixels. Y grows downwards.
// Vec2 is a value type; every method returns a new value.
type Vec2 struct {
	X float64
	Y float64
}

// Zero is the origin.
var Zero = Vec2{}

// V is shorthand for Vec2{X: x, Y: y}.
func V(x, y float64) Vec2 { return Vec2{X: x, Y: y} }

func (v Vec2) vec() r2.Vec { return r2.Vec{X: v.X, Y: v.Y} }
func fromR2(v r2.Vec) Vec2 { return Vec2{X: v.X, Y: v.Y} }

// Add returns v + o.
func (v Vec2) Add(o Vec2) Vec2 { return fromR2(r2.Add(v.vec(), o.vec())) }

// Sub returns v - o.
func (v Vec2) Sub(o Vec2) Vec2 { return fromR2(r2.Sub(v.vec(), o.vec())) }

// Scale returns v * f.
func (v Vec2) Scale(f float64) Vec2 { return fromR2(r2.Scale(f, v.vec())) }

// Len returns the Euclidean length of v.
func (v Vec2) Len() float64 { return r2.Norm(v.vec()) }

// IsZero reports whether both components are exactly zero.
func (v Vec2) IsZero() bool { return v.X == 0 && v.Y == 0 }

func (v Vec2) String() string { return fmt.Sprintf("(%.3f, %.3f)", v.X, v.Y) }
