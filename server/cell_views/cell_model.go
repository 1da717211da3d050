// Package cell_views contains views derived from the Board view-model.
package cell_views

import (
	"mazelab/grid_world"
	"mazelab/reinforcement"
)

// Snapshot is the training state published after an episode. Table values are read
// atomically when converted, so the learner may keep writing.
type Snapshot struct {
	Grid  *grid_world.Grid
	Table *reinforcement.QTable
	Stats reinforcement.EpisodeStats
	// Goals is the number of episodes so far that reached the goal.
	Goals int
}

// Board is the view-model shared by all the training views.
type Board struct {
	Name     string
	Cells    [][]Cell // indexed [x][y]
	Progress Progress
}

// Progress summarizes the latest episode.
type Progress struct {
	Episode  int
	Steps    int
	Reward   float64
	Outcome  string
	GoalRate float64
}

// Cell is one grid position with fields immediately usable as view parameters.
// [0][0] is the top left cell, matching both the console and the svg coordinate system.
type Cell struct {
	X, Y                int
	Max                 float64
	PolicyArrowRotation int
	// PolicyArrowOpacity hides the arrow where no action is preferred.
	PolicyArrowOpacity float64
	Fill               string
}

// Convert transforms a snapshot into the Board consumed by the views.
func Convert(snap Snapshot) Board {
	g := snap.Grid
	cells := make([][]Cell, g.Width())
	for x := range cells {
		cells[x] = make([]Cell, g.Height())
	}

	g.Visit(func(x, y int, kind grid_world.CellKind, _ grid_world.Cell) {
		cell := Cell{
			X:    x,
			Y:    y,
			Fill: getFill(kind),
		}
		if snap.Table != nil && kind != grid_world.Wall {
			state := grid_world.Index(x, y, g.Width())
			best, max := snap.Table.ArgMax(state)
			cell.Max = max
			if kind != grid_world.Goal && len(best) < snap.Table.Actions() {
				cell.PolicyArrowRotation = getDegrees(grid_world.Direction(best[0]))
				cell.PolicyArrowOpacity = 1
			}
		}
		cells[x][y] = cell
	})

	board := Board{
		Name:  g.Name(),
		Cells: cells,
		Progress: Progress{
			Episode: snap.Stats.Episode,
			Steps:   snap.Stats.Steps,
			Reward:  snap.Stats.Reward,
			Outcome: snap.Stats.Outcome.String(),
		},
	}
	if played := snap.Stats.Episode + 1; played > 0 {
		board.Progress.GoalRate = float64(snap.Goals) / float64(played)
	}
	return board
}

// getDegrees converts a direction into the degrees passed to svg's rotate()
// for an upward arrow rune, clockwise from vertical.
func getDegrees(d grid_world.Direction) int {
	switch d {
	case grid_world.Right:
		return 90
	case grid_world.Down:
		return 180
	case grid_world.Left:
		return 270
	}
	return 0
}

func getFill(kind grid_world.CellKind) (fill string) {
	switch kind {
	case grid_world.Wall:
		fill = "dimgray"
	case grid_world.Floor:
		fill = "lightgray"
	case grid_world.Hazard:
		fill = "salmon"
	case grid_world.Start:
		fill = "lightblue"
	case grid_world.Goal:
		fill = "lightyellow"
	}
	return
}
