package grid_world

import (
	"encoding/json"
	"fmt"
	"io"
)

// Definition is the persisted form of a Grid, e.g. a mazes/<name>/map.json file.
type Definition struct {
	Name   string           `json:"name"`
	Width  int              `json:"width"`
	Height int              `json:"height"`
	Start  [2]int           `json:"start"`
	Goal   [2]int           `json:"goal"`
	Cells  []CellDefinition `json:"cells"`
}

// CellDefinition is the persisted form of one cell.
type CellDefinition struct {
	X          int     `json:"x"`
	Y          int     `json:"y"`
	IsBlocked  bool    `json:"is_blocked"`
	HoleChance float64 `json:"hole_chance"`
}

// FromDefinition builds a grid from its persisted form. Per cell the hazard is applied
// before the wall, so a blocked cell ends up a wall with no hazard. Definitions placing
// a wall or hazard on the start or goal are rejected. Cells absent from the definition
// stay plain floor.
func FromDefinition(def Definition, opts ...Option) (*Grid, error) {
	g, err := NewGrid(def.Name, def.Width, def.Height, opts...)
	if err != nil {
		return nil, err
	}

	start, err := g.Flatten(def.Start[0], def.Start[1])
	if err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}
	goal, err := g.Flatten(def.Goal[0], def.Goal[1])
	if err != nil {
		return nil, fmt.Errorf("goal: %w", err)
	}
	if start == goal {
		return nil, fmt.Errorf("%w: start and goal both at (%d,%d)", ErrInvariantViolation, def.Start[0], def.Start[1])
	}
	// The grid is blank, so assigning the anchors directly cannot violate anything,
	// and avoids a spurious collision with the default anchors.
	g.start, g.goal = start, goal

	for _, cell := range def.Cells {
		if err = g.SetHazard(cell.X, cell.Y, cell.HoleChance); err != nil {
			return nil, fmt.Errorf("cell (%d,%d): %w", cell.X, cell.Y, err)
		}
		if cell.IsBlocked {
			if err = g.SetWall(cell.X, cell.Y); err != nil {
				return nil, fmt.Errorf("cell (%d,%d): %w", cell.X, cell.Y, err)
			}
		}
	}
	return g, nil
}

// Definition returns the persisted form of the grid, cells row by row.
func (g *Grid) Definition() Definition {
	sx, sy := g.Start()
	gx, gy := g.Goal()
	def := Definition{
		Name:   g.name,
		Width:  g.width,
		Height: g.height,
		Start:  [2]int{sx, sy},
		Goal:   [2]int{gx, gy},
		Cells:  make([]CellDefinition, 0, len(g.cells)),
	}
	for i, cell := range g.cells {
		x, y := Coordinates(i, g.width)
		def.Cells = append(def.Cells, CellDefinition{
			X:          x,
			Y:          y,
			IsBlocked:  cell.isWall,
			HoleChance: cell.hazard,
		})
	}
	return def
}

// ReadDefinition decodes a json definition.
func ReadDefinition(r io.Reader) (def Definition, err error) {
	if err = json.NewDecoder(r).Decode(&def); err != nil {
		err = fmt.Errorf("decode maze definition: %w", err)
	}
	return
}

// WriteDefinition encodes a json definition, indented for humans.
func WriteDefinition(w io.Writer, def Definition) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	return enc.Encode(def)
}
