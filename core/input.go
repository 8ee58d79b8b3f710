package core

import (
	"github.com/signalsfoundry/star-system-simulator/kb"
	"github.com/signalsfoundry/star-system-simulator/model"
)

// InputCell is the shared input snapshot. The render loop is the only writer
// and the central body the only reader. The four keys are replaced as one
// value, so the reader never sees old and new keys mixed.
type InputCell struct {
	cell kb.Cell[model.InputState]
}

// NewInputCell returns a cell with no keys held.
func NewInputCell() *InputCell { return &InputCell{} }

// Set replaces the snapshot.
func (c *InputCell) Set(in model.InputState) { c.cell.Store(in) }

// Get returns the latest snapshot.
func (c *InputCell) Get() model.InputState { return c.cell.Load() }
