package cell_views

import (
	"bytes"
	"context"
	"html/template"
	"strings"
	"testing"

	"mazelab/grid_world"
	"mazelab/reinforcement"

	. "github.com/smartystreets/goconvey/convey"
)

var testFuncs = template.FuncMap{
	"add":  func(i, j int) int { return i + j },
	"sub":  func(i, j int) int { return i - j },
	"mult": func(i, j int) int { return i * j },
	"div":  func(i, j int) int { return i / j },
}

func debugSnapshot() Snapshot {
	g := grid_world.MustFromArt("debug", grid_world.DebugMaze)
	table, err := reinforcement.NewQTable(g.Size(), grid_world.NumDirections)
	So(err, ShouldBeNil)
	// The start prefers right and the cell below it dislikes down.
	table.Set(grid_world.Index(0, 0, g.Width()), int(grid_world.Right), 0.5)
	table.Set(grid_world.Index(1, 1, g.Width()), int(grid_world.Down), -0.25)
	return Snapshot{
		Grid:  g,
		Table: table,
		Stats: reinforcement.EpisodeStats{Episode: 3, Steps: 7, Reward: 0.75, Outcome: reinforcement.Goal},
		Goals: 2,
	}
}

func render(name string, parse func(*template.Template) (string, error), board Board) string {
	t := template.New("test").Funcs(testFuncs)
	tname, err := parse(t)
	So(err, ShouldBeNil)
	So(tname, ShouldEqual, name)
	buf := &bytes.Buffer{}
	So(t.ExecuteTemplate(buf, tname, board), ShouldBeNil)
	return buf.String()
}

func TestConvert(t *testing.T) {
	Convey("When converting a snapshot", t, func() {
		board := Convert(debugSnapshot())

		Convey("Cells are indexed by x then y", func() {
			So(board.Name, ShouldEqual, "debug")
			So(len(board.Cells), ShouldEqual, 4)
			So(len(board.Cells[0]), ShouldEqual, 4)
			So(board.Cells[3][3].X, ShouldEqual, 3)
			So(board.Cells[3][3].Y, ShouldEqual, 3)
		})

		Convey("Cells are filled by kind", func() {
			So(board.Cells[0][0].Fill, ShouldEqual, "lightblue")
			So(board.Cells[3][0].Fill, ShouldEqual, "dimgray")
			So(board.Cells[2][2].Fill, ShouldEqual, "salmon")
			So(board.Cells[3][3].Fill, ShouldEqual, "lightyellow")
			So(board.Cells[1][0].Fill, ShouldEqual, "lightgray")
		})

		Convey("Arrows point along the best action and hide when undetermined", func() {
			start := board.Cells[0][0]
			So(start.Max, ShouldEqual, 0.5)
			So(start.PolicyArrowRotation, ShouldEqual, 90)
			So(start.PolicyArrowOpacity, ShouldEqual, 1)

			// Three zero actions beat the negative one and the lowest of them is drawn.
			below := board.Cells[1][1]
			So(below.Max, ShouldEqual, 0)
			So(below.PolicyArrowRotation, ShouldEqual, 270)
			So(below.PolicyArrowOpacity, ShouldEqual, 1)

			// All actions tie on an untouched row.
			So(board.Cells[1][0].PolicyArrowOpacity, ShouldEqual, 0)
		})

		Convey("Progress carries the episode and goal rate", func() {
			So(board.Progress, ShouldResemble, Progress{
				Episode:  3,
				Steps:    7,
				Reward:   0.75,
				Outcome:  "goal",
				GoalRate: 0.5,
			})
		})

		Convey("Directions map to clockwise degrees", func() {
			So(getDegrees(grid_world.Up), ShouldEqual, 0)
			So(getDegrees(grid_world.Right), ShouldEqual, 90)
			So(getDegrees(grid_world.Down), ShouldEqual, 180)
			So(getDegrees(grid_world.Left), ShouldEqual, 270)
		})
	})
}

func TestViews(t *testing.T) {
	Convey("When rendering views", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		board := Convert(debugSnapshot())
		boards := make(chan Board, 1)

		Convey("The values grid renders and updates every cell", func() {
			vg := NewValuesGrid(ctx.Done(), boards)
			html := render("valuesgrid", vg.Parse, board)
			So(html, ShouldContainSubstring, `id="0-0-value-text"`)
			So(html, ShouldContainSubstring, `id="3-3-policy-arrow"`)
			So(html, ShouldContainSubstring, "0.50")

			boards <- board
			updates := <-vg.Updates()
			So(len(updates), ShouldEqual, 2*16)
			So(updates[0].EleId, ShouldEqual, "0-0-value-text")
			So(updates[0].Ops[0].Value, ShouldEqual, "0.50")
			So(updates[1].Ops[0].Value, ShouldEqual, "rotate(90)")
		})

		Convey("The progress view shows the latest episode", func() {
			pv := NewProgressView(ctx.Done(), boards)
			html := render("progress", pv.Parse, board)
			So(html, ShouldContainSubstring, `id="progress-goalrate"`)
			So(html, ShouldContainSubstring, "50.0%")

			boards <- board
			updates := <-pv.Updates()
			So(len(updates), ShouldEqual, 5)
			So(updates[3].EleId, ShouldEqual, "progress-outcome")
			So(updates[3].Ops[0].Value, ShouldEqual, "goal")
		})

		Convey("The value function draws a polygon per patch of four cells", func() {
			vf := NewValueFunction(ctx.Done(), boards)
			html := render("valuefunction", vf.Parse, board)
			So(strings.Count(html, "<polygon"), ShouldEqual, 9)

			boards <- board
			updates := <-vf.Updates()
			// Nine polygons and the enclosing group.
			So(len(updates), ShouldEqual, 10)
			So(updates[9].EleId, ShouldEqual, "valuefunction-group")
		})

		Convey("Value patches are ordered back to front", func() {
			ps := patches(board)
			So(len(ps), ShouldEqual, 9)
			So(ps[0].Id(), ShouldEqual, "0-0-value-polygon")
			So(ps[8].Id(), ShouldEqual, "2-2-value-polygon")
			for i := 1; i < len(ps); i++ {
				So(ps[i].X+ps[i].Y, ShouldBeGreaterThanOrEqualTo, ps[i-1].X+ps[i-1].Y)
			}
			// The patch at the start averages its four corners.
			So(ps[0].mean, ShouldAlmostEqual, board.Cells[0][0].Max/4)
		})

		Convey("Fills blend from blue to red", func() {
			So(getRGBFill(0, 0, 1), ShouldEqual, "rgb(0%,0%,100%)")
			So(getRGBFill(1, 0, 1), ShouldEqual, "rgb(100%,0%,0%)")
			So(getRGBFill(0.5, 0.5, 0.5), ShouldEqual, "rgb(0%,0%,100%)")
		})
	})
}
