package search

import "mazelab/grid_world"

// Node is a discovered position and the moves that reached it from the start.
type Node struct {
	X, Y int
	Path []grid_world.Direction
}

// Frontier holds discovered but not yet expanded nodes. Its pop order decides the
// search strategy.
type Frontier interface {
	Push(Node)
	Pop() Node
	Empty() bool
}

// Stack is a last-in-first-out frontier, giving depth-first search.
type Stack struct {
	nodes []Node
}

func NewStack() *Stack { return &Stack{} }

func (s *Stack) Push(n Node) { s.nodes = append(s.nodes, n) }

func (s *Stack) Pop() Node {
	last := len(s.nodes) - 1
	n := s.nodes[last]
	s.nodes[last] = Node{}
	s.nodes = s.nodes[:last]
	return n
}

func (s *Stack) Empty() bool { return len(s.nodes) == 0 }

// Queue is a first-in-first-out frontier, giving breadth-first search.
type Queue struct {
	nodes []Node
	head  int
}

func NewQueue() *Queue { return &Queue{} }

func (q *Queue) Push(n Node) { q.nodes = append(q.nodes, n) }

func (q *Queue) Pop() Node {
	n := q.nodes[q.head]
	q.nodes[q.head] = Node{}
	q.head++
	// Reclaim the consumed prefix once it dominates the backing array.
	if q.head > len(q.nodes)/2 {
		q.nodes = append(q.nodes[:0], q.nodes[q.head:]...)
		q.head = 0
	}
	return n
}

func (q *Queue) Empty() bool { return q.head >= len(q.nodes) }
