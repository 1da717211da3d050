package search

import (
	"errors"
	"testing"

	"mazelab/grid_world"

	. "github.com/smartystreets/goconvey/convey"
)

// replay walks a path from the start, failing on any illegal step, and reports
// whether it ended on the goal.
func replay(g *grid_world.Grid, path []grid_world.Direction) bool {
	x, y := g.Start()
	for _, d := range path {
		nx, ny := d.Apply(x, y)
		if !g.CanEnter(nx, ny) {
			return false
		}
		x, y = nx, ny
	}
	return g.IsGoal(x, y)
}

func TestFrontiers(t *testing.T) {
	Convey("When using frontiers", t, func() {
		Convey("A stack pops in LIFO order", func() {
			s := NewStack()
			for i := 0; i < 3; i++ {
				s.Push(Node{X: i})
			}
			So(s.Pop().X, ShouldEqual, 2)
			So(s.Pop().X, ShouldEqual, 1)
			So(s.Pop().X, ShouldEqual, 0)
			So(s.Empty(), ShouldBeTrue)
		})

		Convey("A queue pops in FIFO order across compactions", func() {
			q := NewQueue()
			next := 0
			for i := 0; i < 20; i++ {
				q.Push(Node{X: i})
			}
			for i := 0; i < 15; i++ {
				So(q.Pop().X, ShouldEqual, next)
				next++
			}
			for i := 20; i < 25; i++ {
				q.Push(Node{X: i})
			}
			for !q.Empty() {
				So(q.Pop().X, ShouldEqual, next)
				next++
			}
			So(next, ShouldEqual, 25)
		})
	})
}

func TestPathfinders(t *testing.T) {
	solvers := map[Algorithm]func(Maze) Result{
		DFS:          DepthFirst,
		BFS:          BreadthFirst,
		Backtracking: Backtrack,
	}

	Convey("When searching the trivial 2x2 maze", t, func() {
		g, _ := grid_world.NewGrid("trivial", 2, 2)

		Convey("Every algorithm finds a two step path", func() {
			for _, solve := range solvers {
				res := solve(g)
				So(res.Found, ShouldBeTrue)
				So(len(res.Path), ShouldEqual, 2)
				So(replay(g, res.Path), ShouldBeTrue)
			}
		})

		Convey("Revisited pops are counted as work", func() {
			So(DepthFirst(g).NodesInvestigated, ShouldEqual, 4)
			// The start is re-queued from (0,1) and popped again before the goal.
			So(BreadthFirst(g).NodesInvestigated, ShouldEqual, 5)
			So(Backtrack(g).NodesInvestigated, ShouldEqual, 3)
		})

		Convey("Down is expanded before right", func() {
			So(BreadthFirst(g).Path, ShouldResemble, []grid_world.Direction{grid_world.Down, grid_world.Right})
			So(Backtrack(g).Path, ShouldResemble, []grid_world.Direction{grid_world.Down, grid_world.Right})
		})
	})

	Convey("When the goal is walled off", t, func() {
		g, _ := grid_world.NewGrid("sealed", 2, 2)
		So(g.SetWall(1, 0), ShouldBeNil)
		So(g.SetWall(0, 1), ShouldBeNil)

		Convey("No algorithm finds a path", func() {
			for _, solve := range solvers {
				res := solve(g)
				So(res.Found, ShouldBeFalse)
				So(res.Path, ShouldBeEmpty)
				So(res.NodesInvestigated, ShouldEqual, 1)
			}
		})
	})

	Convey("When searching the debug maze", t, func() {
		g := grid_world.MustFromArt("debug", grid_world.DebugMaze)

		Convey("Every path is legal and BFS is never longer", func() {
			bfs := BreadthFirst(g)
			So(bfs.Found, ShouldBeTrue)
			So(replay(g, bfs.Path), ShouldBeTrue)
			for _, solve := range solvers {
				res := solve(g)
				So(res.Found, ShouldBeTrue)
				So(replay(g, res.Path), ShouldBeTrue)
				So(len(bfs.Path), ShouldBeLessThanOrEqualTo, len(res.Path))
			}
		})

		Convey("The shortest path has six steps", func() {
			So(len(BreadthFirst(g).Path), ShouldEqual, 6)
		})
	})

	Convey("When a maze holds a loop", t, func() {
		g := grid_world.MustFromArt("loop", []string{
			"S...",
			".#..",
			"....",
			"#..G",
		})

		Convey("DFS terminates with a legal path", func() {
			res := DepthFirst(g)
			So(res.Found, ShouldBeTrue)
			So(replay(g, res.Path), ShouldBeTrue)
		})
	})
}

func TestSolve(t *testing.T) {
	Convey("When selecting an algorithm by name", t, func() {
		g, _ := grid_world.NewGrid("trivial", 3, 3)

		Convey("Known names dispatch", func() {
			for _, name := range []string{"dfs", "bfs", "backtrack"} {
				alg, err := ParseAlgorithm(name)
				So(err, ShouldBeNil)
				res, err := Solve(g, alg)
				So(err, ShouldBeNil)
				So(res.Found, ShouldBeTrue)
			}
		})

		Convey("Unknown names are a configuration error", func() {
			_, err := ParseAlgorithm("astar")
			So(errors.Is(err, grid_world.ErrConfiguration), ShouldBeTrue)
			_, err = Solve(g, Algorithm("astar"))
			So(errors.Is(err, grid_world.ErrConfiguration), ShouldBeTrue)
		})
	})
}
