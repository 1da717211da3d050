// Package maze_view renders a grid as terminal ASCII art with an overlay of
// foreground pixels, such as the agent position or a traced path.
package maze_view

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"mazelab/grid_world"

	"github.com/logrusorgru/aurora"
)

// Every pixel is three columns wide.
const (
	WallIcon  = "███"
	FloorIcon = "─┼─"
	HoleIcon  = "   "
	StartIcon = " S "
	GoalIcon  = " G "
	AgentIcon = " @ "
)

// Pixel is a foreground icon at grid coordinates.
type Pixel struct {
	X, Y int
	Icon string
}

type Option func(*MazeView)

// WithColors enables ANSI colors.
func WithColors(enabled bool) Option {
	return func(mv *MazeView) { mv.au = aurora.NewAurora(enabled) }
}

// WithNumericHazards prints hazard probabilities instead of blank holes.
func WithNumericHazards(enabled bool) Option {
	return func(mv *MazeView) { mv.numericHazards = enabled }
}

// MazeView is a frame buffer over a grid. It implements agent.Observer, so attaching
// it to an agent draws the cursor.
type MazeView struct {
	name           string
	grid           *grid_world.Grid
	fg             []Pixel
	numericHazards bool
	au             aurora.Aurora
}

// New returns a view of grid with colors enabled.
func New(name string, grid *grid_world.Grid, opts ...Option) *MazeView {
	mv := &MazeView{
		name: name,
		grid: grid,
		au:   aurora.NewAurora(true),
	}
	for _, opt := range opts {
		opt(mv)
	}
	return mv
}

func (mv *MazeView) AddPixel(p Pixel) {
	mv.fg = append(mv.fg, p)
}

// AddWidget adds several pixels at once.
func (mv *MazeView) AddWidget(pixels []Pixel) {
	mv.fg = append(mv.fg, pixels...)
}

func (mv *MazeView) Clear() {
	mv.fg = nil
}

func (mv *MazeView) OnMove(x, y int) {
	mv.AddPixel(Pixel{X: x, Y: y, Icon: AgentIcon})
}

func (mv *MazeView) OnClear() {
	mv.Clear()
}

// cellIcon is the background pixel of a cell and its color.
func (mv *MazeView) cellIcon(x, y int) string {
	kind := mv.grid.Kind(x, y)
	switch kind {
	case grid_world.Wall:
		return mv.au.White(WallIcon).String()
	case grid_world.Start:
		return mv.au.Green(StartIcon).String()
	case grid_world.Goal:
		return mv.au.Yellow(GoalIcon).String()
	case grid_world.Hazard:
		if mv.numericHazards {
			cell, _ := mv.grid.Cell(x, y)
			return mv.au.Red(fmt.Sprintf("%.1f", cell.HazardProbability())).String()
		}
		return HoleIcon
	}
	return mv.au.Blue(FloorIcon).String()
}

// center pads s to a width of three columns.
func center(s string) string {
	n := utf8.RuneCountInString(s)
	if n >= 3 {
		return s
	}
	left := (3 - n) / 2
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", 3-n-left)
}

// truncate cuts an icon to three runes.
func truncate(icon string) string {
	if utf8.RuneCountInString(icon) <= 3 {
		return icon
	}
	return string([]rune(icon)[:3])
}

// FrameBuffer combines the framed background with the foreground pixels. Lines are
// indexed by row first. Pixels outside the grid are dropped.
func (mv *MazeView) FrameBuffer() [][]string {
	width, height := mv.grid.Width(), mv.grid.Height()
	wall := mv.au.White(WallIcon).String()
	frame := make([][]string, 0, height+3)

	top := make([]string, 0, width+3)
	for i := 0; i < width+2; i++ {
		top = append(top, wall)
	}
	frame = append(frame, append(top, " Y"))

	for y := 0; y < height; y++ {
		line := []string{wall}
		for x := 0; x < width; x++ {
			line = append(line, mv.cellIcon(x, y))
		}
		frame = append(frame, append(line, wall, fmt.Sprintf(" %d", y)))
	}

	bottom := make([]string, 0, width+3)
	for i := 0; i < width+2; i++ {
		bottom = append(bottom, wall)
	}
	frame = append(frame, append(bottom, " ↓"))

	labels := []string{" X "}
	for x := 0; x < width; x++ {
		labels = append(labels, center(fmt.Sprint(x)))
	}
	frame = append(frame, append(labels, center("→")))

	// The frame is offset by one wall in each direction.
	for _, p := range mv.fg {
		if p.X < 0 || p.X >= width || p.Y < 0 || p.Y >= height {
			continue
		}
		frame[p.Y+1][p.X+1] = mv.au.Bold(mv.au.Cyan(truncate(p.Icon))).String()
	}
	return frame
}

// Draw renders the view name followed by the frame.
func (mv *MazeView) Draw() string {
	sb := strings.Builder{}
	sb.WriteString(mv.name)
	for _, line := range mv.FrameBuffer() {
		sb.WriteString("\n")
		sb.WriteString(strings.Join(line, ""))
	}
	return sb.String()
}

var arrows = map[grid_world.Direction]string{
	grid_world.Left:  " ← ",
	grid_world.Right: " → ",
	grid_world.Up:    " ↑ ",
	grid_world.Down:  " ↓ ",
}

// PolicyWidget draws an arrow per determined state, skipping walls and the anchors.
// policy and determined are indexed by flat state id.
func PolicyWidget(grid *grid_world.Grid, policy []grid_world.Direction, determined []bool) []Pixel {
	pixels := []Pixel{}
	grid.Visit(func(x, y int, kind grid_world.CellKind, _ grid_world.Cell) {
		s := grid_world.Index(x, y, grid.Width())
		if kind == grid_world.Wall || kind == grid_world.Start || kind == grid_world.Goal {
			return
		}
		if s >= len(policy) || !determined[s] {
			return
		}
		pixels = append(pixels, Pixel{X: x, Y: y, Icon: arrows[policy[s]]})
	})
	return pixels
}

// PathWidget draws the cells visited along a path from the start, skipping the start.
func PathWidget(grid *grid_world.Grid, path []grid_world.Direction) []Pixel {
	pixels := []Pixel{}
	x, y := grid.Start()
	for _, d := range path {
		nx, ny := d.Apply(x, y)
		if !grid.CanEnter(nx, ny) {
			continue
		}
		x, y = nx, ny
		pixels = append(pixels, Pixel{X: x, Y: y, Icon: " * "})
	}
	return pixels
}
