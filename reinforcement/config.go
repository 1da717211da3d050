package reinforcement

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"mazelab/grid_world"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Defaults of the basic Q-learning demo.
const (
	DefaultAlpha          = 0.5
	DefaultGamma          = 0.5
	DefaultEpsilon        = 0.5
	DefaultEpisodes       = 1000
	DefaultMaxStepsFactor = 5
	DefaultReportEvery    = 100
)

// OuterConfig is the config file envelope: a kind selector and its definition.
type OuterConfig struct {
	Kind string      `mapstructure:"kind"`
	Def  interface{} `mapstructure:"def"`
}

// Rewards assigned to the outcome of a single step.
type Rewards struct {
	Hazard float64 `yaml:"hazard"`
	Wall   float64 `yaml:"wall"`
	Goal   float64 `yaml:"goal"`
	Step   float64 `yaml:"step"`
}

// DefaultRewards punishes holes hard and bumping walls lightly.
var DefaultRewards = Rewards{
	Hazard: -1.0,
	Wall:   -0.005,
	Goal:   1.0,
	Step:   0,
}

// TrainingConfig holds the Q-learning hyperparameters and the training budget.
// Viper lowercases keys before they are re-marshalled, hence the lowercase yaml tags.
type TrainingConfig struct {
	// HyperParams is a key-val pair of param names and their value: alpha, gamma, epsilon.
	HyperParams []HyperParameter `yaml:"hyperparams"`
	// Episodes is the number of training episodes.
	Episodes int `yaml:"episodes"`
	// MaxStepsFactor bounds an episode to this many steps per grid cell.
	MaxStepsFactor int `yaml:"maxstepsfactor"`
	// Rewards overrides DefaultRewards when present.
	Rewards *Rewards `yaml:"rewards"`
	// TrainingDeadline is a duration describing when to terminate training.
	TrainingDeadline map[string]string `yaml:"trainingdeadline"`
	// Seed makes training reproducible when non-zero.
	Seed int64 `yaml:"seed"`
	// ReportEvery is the episode interval at which progress is published.
	ReportEvery int `yaml:"reportevery"`
}

type HyperParameter struct {
	Key string  `yaml:"key"`
	Val float64 `yaml:"val"`
}

// DefaultConfig returns the configuration of the basic demo.
func DefaultConfig() *TrainingConfig {
	rewards := DefaultRewards
	return &TrainingConfig{
		HyperParams: []HyperParameter{
			{Key: "alpha", Val: DefaultAlpha},
			{Key: "gamma", Val: DefaultGamma},
			{Key: "epsilon", Val: DefaultEpsilon},
		},
		Episodes:       DefaultEpisodes,
		MaxStepsFactor: DefaultMaxStepsFactor,
		Rewards:        &rewards,
		ReportEvery:    DefaultReportEvery,
	}
}

func (cfg *TrainingConfig) GetHyperParamOrDefault(param string, defaultVal float64) float64 {
	for _, kvp := range cfg.HyperParams {
		if kvp.Key == param {
			return kvp.Val
		}
	}
	return defaultVal
}

// GetRewards returns the configured rewards or the defaults.
func (cfg *TrainingConfig) GetRewards() Rewards {
	if cfg.Rewards == nil {
		return DefaultRewards
	}
	return *cfg.Rewards
}

// MaxSteps is the per-episode step budget for a grid with the given number of states.
func (cfg *TrainingConfig) MaxSteps(states int) int {
	factor := cfg.MaxStepsFactor
	if factor <= 0 {
		factor = DefaultMaxStepsFactor
	}
	return factor * states
}

// Validate applies defaults to zero fields and checks ranges.
func (cfg *TrainingConfig) Validate() error {
	if cfg.Episodes == 0 {
		cfg.Episodes = DefaultEpisodes
	}
	if cfg.MaxStepsFactor == 0 {
		cfg.MaxStepsFactor = DefaultMaxStepsFactor
	}
	if cfg.ReportEvery == 0 {
		cfg.ReportEvery = DefaultReportEvery
	}
	if cfg.Episodes < 0 || cfg.MaxStepsFactor < 0 || cfg.ReportEvery < 0 {
		return fmt.Errorf("%w: episodes, maxStepsFactor and reportEvery must be positive",
			grid_world.ErrConfiguration)
	}
	for _, name := range []string{"alpha", "gamma", "epsilon"} {
		if err := checkUnit(name, cfg.GetHyperParamOrDefault(name, 0)); err != nil {
			return err
		}
	}
	if val, ok := cfg.TrainingDeadline["duration"]; ok {
		if _, err := time.ParseDuration(val); err != nil {
			return fmt.Errorf("%w: training deadline: %v", grid_world.ErrConfiguration, err)
		}
	}
	return nil
}

// NewLearner builds a learner from the configured hyperparameters.
func (cfg *TrainingConfig) NewLearner(states, actions int, opts ...LearnerOption) (*QLearner, error) {
	return NewQLearner(
		states,
		actions,
		cfg.GetHyperParamOrDefault("alpha", DefaultAlpha),
		cfg.GetHyperParamOrDefault("gamma", DefaultGamma),
		cfg.GetHyperParamOrDefault("epsilon", DefaultEpsilon),
		opts...)
}

// WithTrainingDeadline returns a context extended by the training deadline, if one is specified.
func (cfg *TrainingConfig) WithTrainingDeadline(
	ctx context.Context,
) (context.Context, context.CancelFunc, error) {
	if val, ok := cfg.TrainingDeadline["duration"]; ok {
		duration, err := time.ParseDuration(val)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: training deadline: %v", grid_world.ErrConfiguration, err)
		}
		innerCtx, cancel := context.WithTimeout(ctx, duration)
		return innerCtx, cancel, nil
	}
	defaultCtx, cancel := context.WithCancel(ctx)
	return defaultCtx, cancel, nil
}

// FromYaml reads a training config in the {kind, def} envelope. Fields missing from def
// keep the values of DefaultConfig.
func FromYaml(path string) (*TrainingConfig, error) {
	vp := viper.New()
	vp.SetConfigFile(path)
	vp.SetConfigType("yaml")
	vp.AddConfigPath(filepath.Dir(path))
	var err error
	if err = vp.ReadInConfig(); err != nil {
		return nil, err
	}

	outerConfig := &OuterConfig{}
	if err = vp.Unmarshal(outerConfig); err != nil {
		return nil, err
	}
	if outerConfig.Kind != "qlearning" {
		return nil, fmt.Errorf("%w: unsupported config kind %q", grid_world.ErrConfiguration, outerConfig.Kind)
	}

	var raw []byte
	if raw, err = yaml.Marshal(outerConfig.Def); err != nil {
		return nil, err
	}

	innerConfig := DefaultConfig()
	innerConfig.HyperParams = nil
	if err = yaml.Unmarshal(raw, innerConfig); err != nil {
		return nil, err
	}

	if err = innerConfig.Validate(); err != nil {
		return nil, err
	}
	return innerConfig, nil
}
