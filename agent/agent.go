// Package agent is the environment interface through which a learner moves in a maze:
// a cursor over a grid that resolves hazard draws as it enters cells.
package agent

import (
	"errors"
	"fmt"

	"mazelab/grid_world"
)

// ErrInvalidAction is returned by TracePath for labels that are not moves or "reset".
var ErrInvalidAction = errors.New("invalid maze action")

// Observer receives the cursor position after every successful move, e.g. to draw it.
// OnClear is called before OnMove unless trace drawing is on, so that only the
// current position remains drawn.
type Observer interface {
	OnMove(x, y int)
	OnClear()
}

// Mode is the cursor state derived from its fields.
type Mode int

const (
	Normal Mode = iota
	InHazard
	AtGoal
)

func (m Mode) String() string {
	switch m {
	case InHazard:
		return "in-hazard"
	case AtGoal:
		return "at-goal"
	}
	return "normal"
}

// Option configures an Agent.
type Option func(*Agent)

// WithObserver attaches a move observer, which is immediately told the start position.
func WithObserver(obs Observer) Option {
	return func(a *Agent) {
		a.observers = append(a.observers, obs)
	}
}

// WithStepOverHazards lets the cursor keep moving after landing in a hazard.
func WithStepOverHazards(enabled bool) Option {
	return func(a *Agent) { a.StepOverHazards = enabled }
}

// WithName names the agent, e.g. for view titles.
func WithName(name string) Option {
	return func(a *Agent) { a.name = name }
}

// Agent is a cursor over a Grid. It is the only component that resolves hazards;
// a hazard is drawn once per entry into a cell, so repeated queries while standing
// on the same cell are consistent.
type Agent struct {
	name string
	grid *grid_world.Grid
	x, y int
	// Flat index of the cell for which the current hazard draw was made, -1 for none.
	hazardResolvedFor int
	inHazard          bool
	observers         []Observer

	// StepOverHazards allows moving out of a hazard instead of being stuck in it.
	StepOverHazards bool
	// DrawSteps notifies observers of moves.
	DrawSteps bool
	// DrawTrace keeps earlier positions drawn instead of clearing them.
	DrawTrace bool
}

// New places a cursor on the grid's start cell.
func New(grid *grid_world.Grid, opts ...Option) *Agent {
	x, y := grid.Start()
	a := &Agent{
		name:              "agent",
		grid:              grid,
		x:                 x,
		y:                 y,
		hazardResolvedFor: -1,
		DrawSteps:         true,
	}
	for _, opt := range opts {
		opt(a)
	}
	for _, obs := range a.observers {
		obs.OnMove(x, y)
	}
	return a
}

func (a *Agent) Name() string { return a.name }

func (a *Agent) Grid() *grid_world.Grid { return a.grid }

// Position returns the cursor coordinates.
func (a *Agent) Position() (x, y int) { return a.x, a.y }

// State is the RL state id of the cursor: the flat index of its cell.
func (a *Agent) State() int {
	return grid_world.Index(a.x, a.y, a.grid.Width())
}

// States is the number of RL states, one per grid cell.
func (a *Agent) States() int { return a.grid.Size() }

// Actions is the number of RL actions.
func (a *Agent) Actions() int { return grid_world.NumDirections }

func (a *Agent) IsAtStart() bool { return a.grid.IsStart(a.x, a.y) }

func (a *Agent) IsAtGoal() bool { return a.grid.IsGoal(a.x, a.y) }

func (a *Agent) IsInHazard() bool { return a.inHazard }

// Mode derives the cursor state. Callers are expected to stop or reset in
// InHazard and AtGoal; the agent never resets itself.
func (a *Agent) Mode() Mode {
	switch {
	case a.inHazard:
		return InHazard
	case a.IsAtGoal():
		return AtGoal
	}
	return Normal
}

// CanStep reports whether a step in direction d is legal.
func (a *Agent) CanStep(d grid_world.Direction) bool {
	if !d.Valid() {
		return false
	}
	if a.inHazard && !a.StepOverHazards {
		return false
	}
	return a.grid.CanEnter(d.Apply(a.x, a.y))
}

// Step moves one cell in direction d, returning false with no state change if illegal.
func (a *Agent) Step(d grid_world.Direction) bool {
	if !a.CanStep(d) {
		return false
	}
	x, y := d.Apply(a.x, a.y)
	return a.move(x, y)
}

func (a *Agent) StepLeft() bool { return a.Step(grid_world.Left) }

func (a *Agent) StepRight() bool { return a.Step(grid_world.Right) }

func (a *Agent) StepUp() bool { return a.Step(grid_world.Up) }

func (a *Agent) StepDown() bool { return a.Step(grid_world.Down) }

// LegalMoves lists the currently legal directions in enumeration order, which implies
// no preference.
func (a *Agent) LegalMoves() []grid_world.Direction {
	moves := make([]grid_world.Direction, 0, grid_world.NumDirections)
	for _, d := range grid_world.Directions {
		if a.CanStep(d) {
			moves = append(moves, d)
		}
	}
	return moves
}

// ResetToStart moves the cursor back to the start. The start can never be a hazard,
// so it is marked resolved as safe without drawing.
func (a *Agent) ResetToStart() bool {
	x, y := a.grid.Start()
	a.inHazard = false
	a.hazardResolvedFor = grid_world.Index(x, y, a.grid.Width())
	return a.move(x, y)
}

// move is the only place the cursor position changes.
func (a *Agent) move(x, y int) bool {
	if !a.grid.CanEnter(x, y) {
		return false
	}
	a.x, a.y = x, y
	// Re-roll only when newly entering a cell, so a probabilistic hazard is not
	// re-drawn while the cursor stays put.
	if i := grid_world.Index(x, y, a.grid.Width()); i != a.hazardResolvedFor {
		a.inHazard = a.grid.RollHazard(x, y)
		a.hazardResolvedFor = i
	}
	a.notify(x, y)
	return true
}

func (a *Agent) notify(x, y int) {
	if !a.DrawSteps {
		return
	}
	for _, obs := range a.observers {
		if !a.DrawTrace {
			obs.OnClear()
		}
		obs.OnMove(x, y)
	}
}

// TracePath runs a sequence of action labels ("left", "right", "up", "down", "reset")
// with trace drawing on, so observers see the whole path. It optionally resets when a
// hazard is hit and halts at the goal. Draw settings are restored afterward.
func (a *Agent) TracePath(actions []string, autoresetOnHazard, autohaltOnGoal bool) error {
	drawSteps, drawTrace := a.DrawSteps, a.DrawTrace
	a.DrawSteps, a.DrawTrace = true, true
	defer func() {
		a.DrawSteps, a.DrawTrace = drawSteps, drawTrace
	}()

	for _, action := range actions {
		if action == "reset" {
			a.ResetToStart()
		} else {
			d, err := grid_world.ParseDirection(action)
			if err != nil {
				return fmt.Errorf("%w: %q", ErrInvalidAction, action)
			}
			a.Step(d)
		}

		if autohaltOnGoal && a.IsAtGoal() {
			break
		}
		if autoresetOnHazard && a.IsInHazard() {
			a.ResetToStart()
		}
	}
	return nil
}

// Follow is TracePath for a path of directions.
func (a *Agent) Follow(path []grid_world.Direction, autoresetOnHazard, autohaltOnGoal bool) error {
	return a.TracePath(grid_world.Labels(path), autoresetOnHazard, autohaltOnGoal)
}
