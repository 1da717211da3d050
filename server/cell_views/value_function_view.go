package cell_views

import (
	"fmt"
	"html/template"
	"math"
	"sort"
	"strings"

	"mazelab/server/fastview"

	channerics "github.com/niceyeti/channerics/channels"
)

const (
	cellDim = 80.0          // Cell height/width in pixels
	xyscale = cellDim       // pixels per x or y unit
	zscale  = cellDim * 0.3 // pixels per value unit
	ang     = math.Pi / 6   // angle of the x and y axes
)

var sinAng, cosAng = math.Sin(ang), math.Cos(ang)

// ValueFunction shows the state values as an isometric projection of the
// surface (x, y, max value).
type ValueFunction struct {
	id      string
	updates <-chan []fastview.EleUpdate
}

func NewValueFunction(
	done <-chan struct{},
	boards <-chan Board,
) (vf *ValueFunction) {
	// Hyphenated ids interfere with html/template's `template` directive.
	vf = &ValueFunction{id: "valuefunction"}
	vf.updates = channerics.Convert(done, boards, vf.onUpdate)
	return
}

func (vf *ValueFunction) Updates() <-chan []fastview.EleUpdate {
	return vf.updates
}

type point struct {
	x, y float64
}

// project applies an isometric projection to the cell's position and value.
func project(cell Cell) point {
	x, y := float64(cell.X), float64(cell.Y)
	return point{
		x: (x - y) * cosAng * xyscale,
		y: (x+y)*sinAng*xyscale - cell.Max*zscale,
	}
}

// patch is the projected surface quad whose top left corner is the cell (X, Y).
type patch struct {
	X, Y    int
	corners [4]point
	mean    float64
}

func (p *patch) Id() string {
	return fmt.Sprintf("%d-%d-value-polygon", p.X, p.Y)
}

// Points returns a string suitable for the svg-polygon 'points' attribute.
func (p *patch) Points() string {
	pts := make([]string, len(p.corners))
	for i, c := range p.corners {
		pts[i] = fmt.Sprintf("%d,%d", int(c.x), int(c.y))
	}
	return strings.Join(pts, " ")
}

// patches returns one patch per square of four adjacent cells, ordered back to
// front so that nearer patches are drawn over farther ones.
func patches(board Board) (out []*patch) {
	cells := board.Cells
	for x := 0; x+1 < len(cells); x++ {
		for y := 0; y+1 < len(cells[x]); y++ {
			quad := [4]Cell{cells[x+1][y], cells[x][y], cells[x][y+1], cells[x+1][y+1]}
			p := &patch{X: x, Y: y}
			for i, cell := range quad {
				p.corners[i] = project(cell)
				p.mean += cell.Max / float64(len(quad))
			}
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].X+out[i].Y < out[j].X+out[j].Y
	})
	return
}

// valueRange returns the extreme state values of the board.
func valueRange(board Board) (minVal, maxVal float64) {
	minVal, maxVal = math.MaxFloat64, -math.MaxFloat64
	for _, col := range board.Cells {
		for _, cell := range col {
			minVal = math.Min(minVal, cell.Max)
			maxVal = math.Max(maxVal, cell.Max)
		}
	}
	return
}

// Returns the set of view updates needed for the view to reflect current values.
func (vf *ValueFunction) onUpdate(board Board) (ops []fastview.EleUpdate) {
	minVal, maxVal := valueRange(board)
	lo := point{math.MaxFloat64, math.MaxFloat64}
	hi := point{-math.MaxFloat64, -math.MaxFloat64}
	for _, p := range patches(board) {
		for _, c := range p.corners {
			lo.x, lo.y = math.Min(lo.x, c.x), math.Min(lo.y, c.y)
			hi.x, hi.y = math.Max(hi.x, c.x), math.Max(hi.y, c.y)
		}
		ops = append(ops, fastview.EleUpdate{
			EleId: p.Id(),
			Ops: []fastview.Op{
				{Key: "points", Value: p.Points()},
				{Key: "fill", Value: getRGBFill(p.mean, minVal, maxVal)},
			},
		})
	}

	// Shift the plot to the origin and shrink it only when it does not fit the svg.
	width := float64(len(board.Cells)) * cellDim
	height := float64(len(board.Cells[0])) * cellDim
	scaler := math.Min(math.Min(width/(hi.x-lo.x), height/(hi.y-lo.y)), 1.0)
	ops = append(ops, fastview.EleUpdate{
		EleId: vf.id + "-group",
		Ops: []fastview.Op{
			{
				Key:   "transform",
				Value: fmt.Sprintf("scale(%f) translate(%d %d)", scaler, int(-lo.x), int(-lo.y)),
			},
		},
	})
	return
}

// getRGBFill blends from blue at minVal to red at maxVal.
func getRGBFill(avgVal, minVal, maxVal float64) string {
	redPct := 0
	if span := maxVal - minVal; span > 0 {
		redPct = int(math.Round(100 * (avgVal - minVal) / span))
	}
	return fmt.Sprintf("rgb(%d%%,0%%,%d%%)", redPct, 100-redPct)
}

// Parse returns an svg of polygons plotting the value surface as a 2D projection.
// The polygons are positioned by the first update.
func (vf *ValueFunction) Parse(
	t *template.Template,
) (name string, err error) {
	name = vf.id
	addedMap := template.FuncMap{
		"valuePatches": patches,
	}
	_, err = t.Funcs(addedMap).Parse(
		`{{ define "` + name + `" }}
		<div style="padding:40px;">
			{{ $cell_width := ` + fmt.Sprintf("%d", int(cellDim)) + ` }}
			{{ $width := mult $cell_width (len .Cells) }}
			{{ $height := mult $cell_width (len (index .Cells 0)) }}
			<svg id="` + vf.id + `" xmlns='http://www.w3.org/2000/svg'
				width="{{ mult $width 2 }}px"
				height="{{ mult $height 2 }}px"
				style="shape-rendering: crispEdges; stroke: lightgrey; stroke-opacity: 1.0; stroke-width: 3;">
				<g id="` + vf.id + "-group" + `" transform="translate(0 0)">
				{{ range valuePatches . }}
					<polygon id="{{ .Id }}" fill="black" fill-opacity="1.0" points="{{ .Points }}" />
				{{ end }}
				</g>
			</svg>
		</div>
		{{ end }}`)
	return
}
