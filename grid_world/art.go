package grid_world

import "fmt"

// Text-art cell markers accepted by FromArt.
const (
	ArtWall  = '#'
	ArtFloor = '.'
	ArtStart = 'S'
	ArtGoal  = 'G'
	ArtHole  = 'O'
)

// Small mazes for development and tests, in the FromArt format.
var (
	DebugMaze = []string{
		"S..#",
		"#.#.",
		"..1.",
		"#.#G",
	}

	OpenMaze = []string{
		"S...",
		"....",
		"....",
		"...G",
	}
)

// FromArt builds a grid from rows of text art, top row first. Digits 1-9 are hazards
// with probability 0.1-0.9 and 'O' is a certain hole. Exactly one 'S' and one 'G' are required.
func FromArt(name string, rows []string, opts ...Option) (*Grid, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: empty maze art", ErrConfiguration)
	}
	width := len(rows[0])
	g, err := NewGrid(name, width, len(rows), opts...)
	if err != nil {
		return nil, err
	}

	starts, goals := 0, 0
	for y, row := range rows {
		if len(row) != width {
			return nil, fmt.Errorf("%w: row %d has width %d, want %d", ErrConfiguration, y, len(row), width)
		}
		for x, r := range row {
			i := Index(x, y, width)
			switch {
			case r == ArtWall:
				g.cells[i].setWall(true)
			case r == ArtFloor:
			case r == ArtStart:
				g.start = i
				starts++
			case r == ArtGoal:
				g.goal = i
				goals++
			case r == ArtHole:
				_ = g.cells[i].setHazard(1)
			case r >= '1' && r <= '9':
				_ = g.cells[i].setHazard(float64(r-'0') / 10)
			default:
				return nil, fmt.Errorf("%w: unknown maze art %q at (%d,%d)", ErrConfiguration, r, x, y)
			}
		}
	}

	if starts != 1 || goals != 1 {
		return nil, fmt.Errorf("%w: maze art needs one start and one goal, got %d and %d",
			ErrInvariantViolation, starts, goals)
	}
	return g, nil
}

// MustFromArt is FromArt for fixed, known-good art; it panics on error.
func MustFromArt(name string, rows []string, opts ...Option) *Grid {
	g, err := FromArt(name, rows, opts...)
	if err != nil {
		panic(err)
	}
	return g
}
