package reinforcement

import (
	"fmt"

	"mazelab/atomic_float"
	"mazelab/grid_world"
)

// QTable holds one value per (state, action), zero initialised and never resized.
// Values are atomic so views may read them while the learner writes.
type QTable struct {
	states  int
	actions int
	values  []atomic_float.AtomicFloat64
}

// NewQTable allocates a states x actions table of zeros.
func NewQTable(states, actions int) (*QTable, error) {
	if states < 1 || actions < 1 {
		return nil, fmt.Errorf("%w: q-table needs at least one state and action, got %dx%d",
			grid_world.ErrConfiguration, states, actions)
	}
	return &QTable{
		states:  states,
		actions: actions,
		values:  make([]atomic_float.AtomicFloat64, states*actions),
	}, nil
}

func (qt *QTable) States() int { return qt.states }

func (qt *QTable) Actions() int { return qt.actions }

func (qt *QTable) cell(state, action int) *atomic_float.AtomicFloat64 {
	return &qt.values[state*qt.actions+action]
}

// Get returns Q(state, action). Indices are trusted; an out of range index panics.
func (qt *QTable) Get(state, action int) float64 {
	return qt.cell(state, action).Read()
}

// Set replaces Q(state, action).
func (qt *QTable) Set(state, action int, val float64) {
	qt.cell(state, action).Set(val)
}

// Row copies the action values of a state.
func (qt *QTable) Row(state int) []float64 {
	row := make([]float64, qt.actions)
	for a := range row {
		row[a] = qt.Get(state, a)
	}
	return row
}

// Max returns the largest action value of a state.
func (qt *QTable) Max(state int) float64 {
	max := qt.Get(state, 0)
	for a := 1; a < qt.actions; a++ {
		if v := qt.Get(state, a); v > max {
			max = v
		}
	}
	return max
}

// ArgMax returns every action attaining the state's maximum, in index order.
func (qt *QTable) ArgMax(state int) (best []int, max float64) {
	row := qt.Row(state)
	max = row[0]
	best = []int{0}
	for a := 1; a < len(row); a++ {
		switch {
		case row[a] > max:
			max = row[a]
			best = append(best[:0], a)
		case row[a] == max:
			best = append(best, a)
		}
	}
	return
}
