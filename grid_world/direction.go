package grid_world

import "fmt"

// Direction is one of the four cardinal moves. Its integer value doubles as the
// action index of the Q-table, so the enumeration order is fixed.
type Direction int

const (
	Left Direction = iota
	Right
	Up
	Down
)

// NumDirections is the size of the action space.
const NumDirections = 4

// Directions lists every direction in enumeration order.
var Directions = [NumDirections]Direction{Left, Right, Up, Down}

// The y axis grows downward, as printed in a console: Up is -1.
var deltas = [NumDirections][2]int{
	Left:  {-1, 0},
	Right: {1, 0},
	Up:    {0, -1},
	Down:  {0, 1},
}

var names = [NumDirections]string{
	Left:  "left",
	Right: "right",
	Up:    "up",
	Down:  "down",
}

// Delta returns the coordinate offset of a single step in this direction.
func (d Direction) Delta() (dx, dy int) {
	if !d.Valid() {
		return 0, 0
	}
	return deltas[d][0], deltas[d][1]
}

// Apply returns the coordinates reached by stepping from (x, y) in this direction.
func (d Direction) Apply(x, y int) (int, int) {
	dx, dy := d.Delta()
	return x + dx, y + dy
}

func (d Direction) Valid() bool {
	return d >= Left && d <= Down
}

func (d Direction) String() string {
	if !d.Valid() {
		return fmt.Sprintf("Direction(%d)", int(d))
	}
	return names[d]
}

// ParseDirection converts an action label ("left", "right", "up", "down") to a Direction.
func ParseDirection(label string) (Direction, error) {
	for d, name := range names {
		if name == label {
			return Direction(d), nil
		}
	}
	return 0, fmt.Errorf("unknown direction %q", label)
}

// Labels converts a path to its action labels, e.g. for printing or json.
func Labels(path []Direction) []string {
	labels := make([]string, len(path))
	for i, d := range path {
		labels[i] = d.String()
	}
	return labels
}
