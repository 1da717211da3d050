package grid_world

import (
	"fmt"
	"math/rand"
	"time"
)

const (
	// Minimum grid extent in either dimension.
	MinDimension = 2
	// MaxCells bounds width*height so that definitions cannot overflow the
	// cell count or demand huge allocations.
	MaxCells = 1 << 16
)

// Sampler is the randomness source for hazard draws. *rand.Rand satisfies it.
type Sampler interface {
	Float64() float64
}

// Option configures a Grid at construction.
type Option func(*Grid)

// WithRand injects the hazard randomness source, e.g. a seeded *rand.Rand for tests.
func WithRand(src Sampler) Option {
	return func(g *Grid) {
		if src != nil {
			g.rng = src
		}
	}
}

// Grid is the static maze: a fixed width x height field of cells stored row-major,
// plus the start and goal cells. Width and height never change after construction.
// Start and goal are always distinct, never walls, and never hazardous.
type Grid struct {
	name   string
	width  int
	height int
	cells  []Cell
	start  int
	goal   int
	rng    Sampler
}

// NewGrid returns a blank grid of plain floor with the start at the top-left corner
// and the goal at the bottom-right corner.
func NewGrid(name string, width, height int, opts ...Option) (*Grid, error) {
	if width < MinDimension || height < MinDimension {
		return nil, fmt.Errorf("%w: grid dimensions must be at least %dx%d, got %dx%d",
			ErrConfiguration, MinDimension, MinDimension, width, height)
	}
	if width > MaxCells/height {
		return nil, fmt.Errorf("%w: grid of %dx%d exceeds %d cells",
			ErrConfiguration, width, height, MaxCells)
	}

	g := &Grid{
		name:   name,
		width:  width,
		height: height,
		cells:  make([]Cell, width*height),
		start:  0,
		goal:   width*height - 1,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Index maps (x, y) to the flat index used for cell storage and as the Q-table state id.
// It is the single definition of the coordinate bijection; it performs no bounds checks.
func Index(x, y, width int) int {
	return x + y*width
}

// Coordinates is the inverse of Index.
func Coordinates(index, width int) (x, y int) {
	return index % width, index / width
}

func (g *Grid) Name() string { return g.name }

func (g *Grid) SetName(name string) { g.name = name }

func (g *Grid) Width() int { return g.width }

func (g *Grid) Height() int { return g.height }

// Size is the number of cells, which is also the number of RL states.
func (g *Grid) Size() int { return len(g.cells) }

func (g *Grid) inBounds(x, y int) bool {
	return x >= 0 && x < g.width && y >= 0 && y < g.height
}

// Flatten is the bounds-checked form of Index.
func (g *Grid) Flatten(x, y int) (int, error) {
	if !g.inBounds(x, y) {
		return 0, fmt.Errorf("%w: (%d,%d) outside %dx%d grid", ErrOutOfBounds, x, y, g.width, g.height)
	}
	return Index(x, y, g.width), nil
}

// Unflatten is the bounds-checked form of Coordinates.
func (g *Grid) Unflatten(index int) (x, y int, err error) {
	if index < 0 || index >= len(g.cells) {
		return 0, 0, fmt.Errorf("%w: cell %d outside %dx%d grid", ErrOutOfBounds, index, g.width, g.height)
	}
	x, y = Coordinates(index, g.width)
	return
}

// Start returns the coordinates of the start cell.
func (g *Grid) Start() (x, y int) {
	return Coordinates(g.start, g.width)
}

// Goal returns the coordinates of the goal cell.
func (g *Grid) Goal() (x, y int) {
	return Coordinates(g.goal, g.width)
}

func (g *Grid) IsStart(x, y int) bool {
	return g.inBounds(x, y) && Index(x, y, g.width) == g.start
}

func (g *Grid) IsGoal(x, y int) bool {
	return g.inBounds(x, y) && Index(x, y, g.width) == g.goal
}

// IsWall reports whether (x, y) is a wall. Everything outside the grid is a wall.
func (g *Grid) IsWall(x, y int) bool {
	if !g.inBounds(x, y) {
		return true
	}
	return g.cells[Index(x, y, g.width)].isWall
}

// CanEnter reports whether a cursor may step into (x, y).
func (g *Grid) CanEnter(x, y int) bool {
	return !g.IsWall(x, y)
}

// Cell returns a copy of the cell at (x, y).
func (g *Grid) Cell(x, y int) (Cell, error) {
	i, err := g.Flatten(x, y)
	if err != nil {
		return Cell{}, err
	}
	return g.cells[i], nil
}

// RollHazard draws whether entering (x, y) lands in a hazard. Start, goal, walls and
// zero-probability cells never draw. Otherwise exactly one sample is consumed.
// Callers must roll at most once per entry into a cell.
func (g *Grid) RollHazard(x, y int) bool {
	if !g.inBounds(x, y) || g.IsStart(x, y) || g.IsGoal(x, y) || g.IsWall(x, y) {
		return false
	}
	p := g.cells[Index(x, y, g.width)].hazard
	if p == 0 {
		return false
	}
	return g.rng.Float64() <= p
}

// Kind classifies (x, y) for drawing. Start and goal take precedence.
func (g *Grid) Kind(x, y int) CellKind {
	switch {
	case !g.inBounds(x, y):
		return Wall
	case g.IsStart(x, y):
		return Start
	case g.IsGoal(x, y):
		return Goal
	}
	cell := g.cells[Index(x, y, g.width)]
	if cell.isWall {
		return Wall
	}
	if cell.hazard > 0 {
		return Hazard
	}
	return Floor
}

// Visit calls fn for every cell in row-major order.
func (g *Grid) Visit(fn func(x, y int, kind CellKind, cell Cell)) {
	for i, cell := range g.cells {
		x, y := Coordinates(i, g.width)
		fn(x, y, g.Kind(x, y), cell)
	}
}

func (g *Grid) isAnchor(i int) bool {
	return i == g.start || i == g.goal
}

// SetWall turns (x, y) into a wall, clearing any hazard. Start and goal cannot be walled.
func (g *Grid) SetWall(x, y int) error {
	i, err := g.Flatten(x, y)
	if err != nil {
		return err
	}
	if g.isAnchor(i) {
		return fmt.Errorf("%w: wall at (%d,%d) collides with start or goal", ErrInvariantViolation, x, y)
	}
	g.cells[i].setWall(true)
	return nil
}

// SetFloor clears (x, y) to plain floor.
func (g *Grid) SetFloor(x, y int) error {
	i, err := g.Flatten(x, y)
	if err != nil {
		return err
	}
	g.cells[i] = Cell{}
	return nil
}

// SetHazard assigns the hazard probability of (x, y), clearing a wall when p > 0.
// A positive hazard cannot be placed on the start or goal.
func (g *Grid) SetHazard(x, y int, p float64) error {
	i, err := g.Flatten(x, y)
	if err != nil {
		return err
	}
	if err = checkProbability(p); err != nil {
		return err
	}
	if p > 0 && g.isAnchor(i) {
		return fmt.Errorf("%w: hazard at (%d,%d) collides with start or goal", ErrInvariantViolation, x, y)
	}
	return g.cells[i].setHazard(p)
}

// SetStart moves the start to (x, y), clearing that cell to plain floor.
func (g *Grid) SetStart(x, y int) error {
	i, err := g.Flatten(x, y)
	if err != nil {
		return err
	}
	if i == g.goal {
		return fmt.Errorf("%w: start (%d,%d) collides with goal", ErrInvariantViolation, x, y)
	}
	g.cells[i] = Cell{}
	g.start = i
	return nil
}

// SetGoal moves the goal to (x, y), clearing that cell to plain floor.
func (g *Grid) SetGoal(x, y int) error {
	i, err := g.Flatten(x, y)
	if err != nil {
		return err
	}
	if i == g.start {
		return fmt.Errorf("%w: goal (%d,%d) collides with start", ErrInvariantViolation, x, y)
	}
	g.cells[i] = Cell{}
	g.goal = i
	return nil
}

func (g *Grid) String() string {
	sx, sy := g.Start()
	gx, gy := g.Goal()
	return fmt.Sprintf("Grid(name=%q, width=%d, height=%d, start=(%d,%d), goal=(%d,%d))",
		g.name, g.width, g.height, sx, sy, gx, gy)
}
