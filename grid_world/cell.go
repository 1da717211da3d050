package grid_world

import (
	"fmt"
	"math"
)

// Cell is a single grid unit. A cell is either a wall, a floor with a positive hazard
// probability, or a plain floor; the setters keep those states exclusive.
// Cells have no identity beyond their position in the owning Grid.
type Cell struct {
	isWall bool
	hazard float64
}

func (c Cell) IsWall() bool { return c.isWall }

// HazardProbability is the chance in [0,1] that entering the cell ends an attempt.
func (c Cell) HazardProbability() float64 { return c.hazard }

func (c Cell) IsHazard() bool {
	return !c.isWall && c.hazard > 0
}

// setWall overrides any hazard when walling the cell.
func (c *Cell) setWall(isWall bool) {
	if isWall {
		c.hazard = 0
	}
	c.isWall = isWall
}

// setHazard overrides a wall when the probability is positive.
func (c *Cell) setHazard(p float64) error {
	if err := checkProbability(p); err != nil {
		return err
	}
	if p > 0 {
		c.isWall = false
	}
	c.hazard = p
	return nil
}

func checkProbability(p float64) error {
	if math.IsNaN(p) || p < 0 || p > 1 {
		return fmt.Errorf("%w: hazard probability %v not in [0,1]", ErrConfiguration, p)
	}
	return nil
}

// CellKind is the classification of a cell for drawing.
type CellKind int

const (
	Floor CellKind = iota
	Wall
	Hazard
	Start
	Goal
)

func (k CellKind) String() string {
	switch k {
	case Floor:
		return "floor"
	case Wall:
		return "wall"
	case Hazard:
		return "hazard"
	case Start:
		return "start"
	case Goal:
		return "goal"
	}
	return fmt.Sprintf("CellKind(%d)", int(k))
}
