// Package search implements classical pathfinders over a maze. They read the grid
// directly rather than moving an agent, since they explore counterfactual branches.
package search

import (
	"fmt"

	"mazelab/grid_world"
)

// Maze is the read-only view of a grid that the pathfinders need.
type Maze interface {
	CanEnter(x, y int) bool
	IsGoal(x, y int) bool
	Start() (x, y int)
	Width() int
}

// Result of a search. NodesInvestigated is a work metric, not a path length: it
// counts every pop (or every recursive entry for Backtrack), revisits included.
type Result struct {
	Path              []grid_world.Direction
	NodesInvestigated int
	Found             bool
}

// Expansion order of a node's neighbours. It decides which path DFS and Backtrack
// return when several exist.
var expansionOrder = [grid_world.NumDirections]grid_world.Direction{
	grid_world.Down,
	grid_world.Up,
	grid_world.Right,
	grid_world.Left,
}

// extend copies the path so sibling branches never share a backing array.
func extend(path []grid_world.Direction, d grid_world.Direction) []grid_world.Direction {
	extended := make([]grid_world.Direction, len(path), len(path)+1)
	copy(extended, path)
	return append(extended, d)
}

// Pathfind is the generalized frontier search from the maze start. Visited positions
// are suppressed when popped, not when pushed, so a position may sit in the frontier
// several times but is expanded at most once.
func Pathfind(maze Maze, frontier Frontier) Result {
	visited := map[int]struct{}{}
	investigated := 0

	x, y := maze.Start()
	frontier.Push(Node{X: x, Y: y, Path: []grid_world.Direction{}})

	for !frontier.Empty() {
		node := frontier.Pop()
		investigated++

		i := grid_world.Index(node.X, node.Y, maze.Width())
		if _, seen := visited[i]; seen {
			continue
		}
		if maze.IsGoal(node.X, node.Y) {
			return Result{Path: node.Path, NodesInvestigated: investigated, Found: true}
		}

		visited[i] = struct{}{}
		for _, d := range expansionOrder {
			nx, ny := d.Apply(node.X, node.Y)
			if maze.CanEnter(nx, ny) {
				frontier.Push(Node{X: nx, Y: ny, Path: extend(node.Path, d)})
			}
		}
	}

	// Exhausted the frontier without reaching the goal.
	return Result{NodesInvestigated: investigated}
}

// DepthFirst runs Pathfind with a stack.
func DepthFirst(maze Maze) Result {
	return Pathfind(maze, NewStack())
}

// BreadthFirst runs Pathfind with a queue. Its path is a shortest one.
func BreadthFirst(maze Maze) Result {
	return Pathfind(maze, NewQueue())
}

// Backtrack is recursive depth-first search over the call stack. Unlike Pathfind it
// marks positions visited on entry, so a position is never entered twice; the path it
// returns may therefore differ from DepthFirst's.
func Backtrack(maze Maze) Result {
	bt := backtracker{maze: maze, visited: map[int]struct{}{}}
	x, y := maze.Start()

	// The recursion returns the path from goal back to start.
	path := bt.visit(x, y)
	if path == nil {
		return Result{NodesInvestigated: bt.investigated}
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return Result{Path: path, NodesInvestigated: bt.investigated, Found: true}
}

type backtracker struct {
	maze         Maze
	visited      map[int]struct{}
	investigated int
}

// visit returns nil for a dead end, letting the caller try the next sibling.
func (bt *backtracker) visit(x, y int) []grid_world.Direction {
	bt.investigated++
	if bt.maze.IsGoal(x, y) {
		return []grid_world.Direction{}
	}
	bt.visited[grid_world.Index(x, y, bt.maze.Width())] = struct{}{}

	for _, d := range expansionOrder {
		nx, ny := d.Apply(x, y)
		if !bt.maze.CanEnter(nx, ny) {
			continue
		}
		if _, seen := bt.visited[grid_world.Index(nx, ny, bt.maze.Width())]; seen {
			continue
		}
		if path := bt.visit(nx, ny); path != nil {
			return append(path, d)
		}
	}
	return nil
}

// Algorithm selects a pathfinder.
type Algorithm string

const (
	DFS          Algorithm = "dfs"
	BFS          Algorithm = "bfs"
	Backtracking Algorithm = "backtrack"
)

// Algorithms lists the pathfinders in a stable order.
var Algorithms = []Algorithm{DFS, BFS, Backtracking}

// ParseAlgorithm validates an algorithm name.
func ParseAlgorithm(name string) (Algorithm, error) {
	for _, alg := range Algorithms {
		if string(alg) == name {
			return alg, nil
		}
	}
	return "", fmt.Errorf("%w: unknown search algorithm %q", grid_world.ErrConfiguration, name)
}

// Solve runs the selected pathfinder.
func Solve(maze Maze, alg Algorithm) (Result, error) {
	switch alg {
	case DFS:
		return DepthFirst(maze), nil
	case BFS:
		return BreadthFirst(maze), nil
	case Backtracking:
		return Backtrack(maze), nil
	}
	return Result{}, fmt.Errorf("%w: unknown search algorithm %q", grid_world.ErrConfiguration, alg)
}
