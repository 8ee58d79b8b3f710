package model

import (
	"math"
	"testing"
)

func TestVec2Arithmetic(t *testing.T) {
	a := V(1, 2)
	b := V(-3, 0.5)

	if got := a.Add(b); got != V(-2, 2.5) {
		t.Fatalf("Add = %v", got)
	}
	if got := a.Sub(b); got != V(4, 1.5) {
		t.Fatalf("Sub = %v", got)
	}
	if got := a.Scale(2); got != V(2, 4) {
		t.Fatalf("Scale = %v", got)
	}
	if got := V(3, 4).Len(); math.Abs(got-5) > 1e-12 {
		t.Fatalf("Len = %v, want 5", got)
	}
	// Operands are untouched.
	if a != V(1, 2) || b != V(-3, 0.5) {
		t.Fatalf("operands mutated: %v %v", a, b)
	}
	if !Zero.IsZero() || a.IsZero() {
		t.Fatalf("IsZero wrong")
	}
}
