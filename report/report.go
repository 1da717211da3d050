// Package report renders training history as HTML charts.
package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"mazelab/reinforcement"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// Window of the moving averages.
const Window = 50

// MovingAverage averages each value with up to window-1 predecessors.
func MovingAverage(values []float64, window int) []float64 {
	if window < 1 {
		window = 1
	}
	avg := make([]float64, len(values))
	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= window {
			sum -= values[i-window]
		}
		n := i + 1
		if n > window {
			n = window
		}
		avg[i] = sum / float64(n)
	}
	return avg
}

func lineData(values []float64) []opts.LineData {
	items := make([]opts.LineData, 0, len(values))
	for _, v := range values {
		items = append(items, opts.LineData{Value: v})
	}
	return items
}

func newLine(title string, episodes []string) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title: title,
		}),
		charts.WithInitializationOpts(opts.Initialization{
			Theme: "shine",
		}),
	)
	return line.SetXAxis(episodes)
}

// LearningCurve writes a page with the reward, step count and goal rate per episode.
func LearningCurve(w io.Writer, title string, stats []reinforcement.EpisodeStats) error {
	if len(stats) == 0 {
		return fmt.Errorf("no episodes to plot")
	}

	episodes := make([]string, 0, len(stats))
	rewards := make([]float64, 0, len(stats))
	steps := make([]float64, 0, len(stats))
	goals := make([]float64, 0, len(stats))
	for _, s := range stats {
		episodes = append(episodes, fmt.Sprintf("%d", s.Episode))
		rewards = append(rewards, s.Reward)
		steps = append(steps, float64(s.Steps))
		goal := 0.0
		if s.Outcome == reinforcement.Goal {
			goal = 1
		}
		goals = append(goals, goal)
	}

	rewardLine := newLine(title+": reward", episodes)
	rewardLine.AddSeries("reward", lineData(rewards))
	rewardLine.AddSeries(fmt.Sprintf("reward (avg %d)", Window), lineData(MovingAverage(rewards, Window)))

	stepLine := newLine(title+": steps", episodes)
	stepLine.AddSeries("steps", lineData(steps))
	stepLine.AddSeries(fmt.Sprintf("steps (avg %d)", Window), lineData(MovingAverage(steps, Window)))

	goalLine := newLine(title+": goal rate", episodes)
	goalLine.AddSeries(fmt.Sprintf("goal rate (avg %d)", Window), lineData(MovingAverage(goals, Window)))

	page := components.NewPage()
	page.AddCharts(
		rewardLine,
		stepLine,
		goalLine,
	)
	return page.Render(w)
}

// WriteLearningCurve renders the learning curve into the file at path, creating its directory.
func WriteLearningCurve(path, title string, stats []reinforcement.EpisodeStats) (err error) {
	if err = os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return
	}
	f, err := os.Create(path)
	if err != nil {
		return
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return LearningCurve(f, title, stats)
}
