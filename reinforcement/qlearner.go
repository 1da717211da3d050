package reinforcement

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"mazelab/grid_world"
)

// Rand is the randomness a learner consumes; *rand.Rand satisfies it.
type Rand interface {
	Float64() float64
	Intn(n int) int
}

// LearnerOption configures a QLearner.
type LearnerOption func(*QLearner)

// WithLearnerRand injects the exploration source, e.g. a seeded *rand.Rand for tests.
func WithLearnerRand(rng Rand) LearnerOption {
	return func(ql *QLearner) { ql.rng = rng }
}

// QLearner is one-step tabular Q-learning with an epsilon-greedy policy.
// It does not sequence training; see Train.
type QLearner struct {
	table   *QTable
	alpha   float64
	gamma   float64
	epsilon float64
	rng     Rand
}

// NewQLearner builds a learner over a zeroed table. Every hyperparameter must lie in [0,1].
func NewQLearner(states, actions int, alpha, gamma, epsilon float64, opts ...LearnerOption) (*QLearner, error) {
	table, err := NewQTable(states, actions)
	if err != nil {
		return nil, err
	}

	ql := &QLearner{
		table: table,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, set := range []struct {
		fn  func(float64) error
		val float64
	}{
		{ql.SetAlpha, alpha},
		{ql.SetGamma, gamma},
		{ql.SetEpsilon, epsilon},
	} {
		if err = set.fn(set.val); err != nil {
			return nil, err
		}
	}
	for _, opt := range opts {
		opt(ql)
	}
	return ql, nil
}

func checkUnit(name string, val float64) error {
	if math.IsNaN(val) || val < 0 || val > 1 {
		return fmt.Errorf("%w: %s must be in [0,1], got %v", grid_world.ErrConfiguration, name, val)
	}
	return nil
}

// SetAlpha sets the learning rate. 1 only believes new information, 0 only old.
func (ql *QLearner) SetAlpha(alpha float64) error {
	if err := checkUnit("alpha", alpha); err != nil {
		return err
	}
	ql.alpha = alpha
	return nil
}

// SetGamma sets the temporal discount. 0 only considers the immediate reward.
func (ql *QLearner) SetGamma(gamma float64) error {
	if err := checkUnit("gamma", gamma); err != nil {
		return err
	}
	ql.gamma = gamma
	return nil
}

// SetEpsilon sets the exploration rate. 1 always explores, 0 always follows the table.
func (ql *QLearner) SetEpsilon(epsilon float64) error {
	if err := checkUnit("epsilon", epsilon); err != nil {
		return err
	}
	ql.epsilon = epsilon
	return nil
}

func (ql *QLearner) Alpha() float64 { return ql.alpha }

func (ql *QLearner) Gamma() float64 { return ql.gamma }

func (ql *QLearner) Epsilon() float64 { return ql.epsilon }

func (ql *QLearner) Table() *QTable { return ql.table }

// EpsilonGreedyAction explores with probability epsilon, otherwise exploits.
// Exactly one draw decides between the two.
func (ql *QLearner) EpsilonGreedyAction(state int) int {
	if ql.rng.Float64() < ql.epsilon {
		return ql.rng.Intn(ql.table.actions)
	}
	return ql.GreedyAction(state)
}

// GreedyAction returns the maximal action of a state. Ties are broken uniformly, so a
// state whose actions are all equal (e.g. unvisited) is a random choice and a strictly
// dominant action is always returned.
func (ql *QLearner) GreedyAction(state int) int {
	best, _ := ql.table.ArgMax(state)
	if len(best) == 1 {
		return best[0]
	}
	return best[ql.rng.Intn(len(best))]
}

// Update applies Q(s,a) <- (1-alpha)*Q(s,a) + alpha*(reward + gamma*max Q(next,.))
// and returns the new value.
func (ql *QLearner) Update(state, action, next int, reward float64) float64 {
	target := reward + ql.gamma*ql.table.Max(next)
	newQ := (1-ql.alpha)*ql.table.Get(state, action) + ql.alpha*target
	ql.table.Set(state, action, newQ)
	return newQ
}

// Policy returns the greedy direction per state with ties resolved to the lowest index,
// for display. Rows that are all equal are reported as undetermined.
func (ql *QLearner) Policy() (policy []grid_world.Direction, determined []bool) {
	policy = make([]grid_world.Direction, ql.table.states)
	determined = make([]bool, ql.table.states)
	for s := range policy {
		best, _ := ql.table.ArgMax(s)
		policy[s] = grid_world.Direction(best[0])
		determined[s] = len(best) < ql.table.actions
	}
	return
}
