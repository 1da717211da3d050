package reinforcement

/*
Training follows the basic maze Q-learner: every episode restarts at the start cell and
runs the epsilon-greedy policy until the goal is reached, a hole swallows the agent, or
the step budget runs out. Exactly one table update is made per observed transition,
including the terminal one, whose successor row is simply never improved afterward.
*/

import (
	"context"
	"fmt"

	"mazelab/grid_world"
)

// Environment is the control surface of a maze cursor consumed by training;
// *agent.Agent satisfies it.
type Environment interface {
	State() int
	States() int
	Actions() int
	Step(grid_world.Direction) bool
	ResetToStart() bool
	IsAtGoal() bool
	IsInHazard() bool
}

// Outcome is how an episode ended.
type Outcome int

const (
	Timeout Outcome = iota
	Goal
	Hazard
)

func (o Outcome) String() string {
	switch o {
	case Goal:
		return "goal"
	case Hazard:
		return "hazard"
	}
	return "timeout"
}

// EpisodeStats summarises one training episode.
type EpisodeStats struct {
	Episode int
	Steps   int
	Reward  float64
	Outcome Outcome
}

// ProgressFunc is a callback by which the training method can lend progress details.
// ProgressFunc is synchronous/blocking and should be defined to complete quickly.
type ProgressFunc func(context.Context, EpisodeStats)

// Reward scores the transition the environment just made.
func (r Rewards) Reward(env Environment, moved bool) (reward float64, terminal bool) {
	reward = r.Step
	if !moved {
		reward = r.Wall
	}
	if env.IsAtGoal() {
		reward, terminal = r.Goal, true
	}
	if env.IsInHazard() {
		reward, terminal = r.Hazard, true
	}
	return
}

// RunEpisode runs a single training episode from the start.
func RunEpisode(env Environment, learner *QLearner, rewards Rewards, maxSteps int) EpisodeStats {
	stats := EpisodeStats{Outcome: Timeout}
	env.ResetToStart()

	for stats.Steps < maxSteps {
		state := env.State()
		action := learner.EpsilonGreedyAction(state)
		moved := env.Step(grid_world.Direction(action))
		reward, terminal := rewards.Reward(env, moved)

		learner.Update(state, action, env.State(), reward)
		stats.Steps++
		stats.Reward += reward

		if terminal {
			stats.Outcome = Goal
			if env.IsInHazard() {
				stats.Outcome = Hazard
			}
			break
		}
	}
	return stats
}

// Train runs cfg.Episodes episodes and returns their stats. The context is checked
// between episodes; on cancellation the stats so far are returned with ctx.Err().
// progressFn, if given, is called after every episode.
func Train(
	ctx context.Context,
	env Environment,
	learner *QLearner,
	cfg *TrainingConfig,
	progressFn ProgressFunc,
) ([]EpisodeStats, error) {
	if env.Actions() != learner.Table().Actions() || env.States() != learner.Table().States() {
		return nil, fmt.Errorf("%w: q-table is %dx%d but the environment has %d states and %d actions",
			grid_world.ErrConfiguration,
			learner.Table().States(), learner.Table().Actions(),
			env.States(), env.Actions())
	}

	episodes := cfg.Episodes
	if episodes <= 0 {
		episodes = DefaultEpisodes
	}
	maxSteps := cfg.MaxSteps(env.States())
	rewards := cfg.GetRewards()

	history := make([]EpisodeStats, 0, episodes)
	for i := 0; i < episodes; i++ {
		select {
		case <-ctx.Done():
			return history, ctx.Err()
		default:
		}

		stats := RunEpisode(env, learner, rewards, maxSteps)
		stats.Episode = i
		history = append(history, stats)

		if progressFn != nil {
			progressFn(ctx, stats)
		}
	}
	return history, nil
}

// Rollout runs the greedy policy from the start, resetting whenever a hole is hit,
// until the goal is reached or maxSteps steps were taken. The outcome is Goal or
// Timeout. The returned path includes the steps taken before any reset.
func Rollout(env Environment, learner *QLearner, maxSteps int) (path []grid_world.Direction, outcome Outcome) {
	env.ResetToStart()
	for !env.IsAtGoal() {
		if len(path) >= maxSteps {
			return path, Timeout
		}
		d := grid_world.Direction(learner.GreedyAction(env.State()))
		path = append(path, d)
		env.Step(d)
		if env.IsInHazard() {
			env.ResetToStart()
		}
	}
	return path, Goal
}
