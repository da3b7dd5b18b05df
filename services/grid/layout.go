package grid

import (
	"image"
	"math"
)

// Poster cells keep a 2:3 width:height ratio.
const (
	aspectW = 2
	aspectH = 3
)

// Policy parameterises the single layout algorithm. A fixed policy pins the
// grid and cell size; an adaptive one derives them from the item count and
// canvas bounds.
type Policy struct {
	Adaptive bool

	// Fixed layout.
	Columns    int
	Rows       int
	CellWidth  int
	CellHeight int

	// Adaptive layout.
	MaxCanvasWidth  int
	MaxCanvasHeight int
	MinColumns      int
	MaxColumns      int
	MaxCellWidth    int
	MinCellWidth    int
	ShrinkStep      int
}

// FixedPolicy is the 3x2 "top six" grid of 200x300 posters.
func FixedPolicy() Policy {
	return Policy{Columns: 3, Rows: 2, CellWidth: 200, CellHeight: 300}
}

// AdaptivePolicy sizes the grid to the number of items.
func AdaptivePolicy() Policy {
	return Policy{
		Adaptive:        true,
		MaxCanvasWidth:  1200,
		MaxCanvasHeight: 1800,
		MinColumns:      2,
		MaxColumns:      4,
		MaxCellWidth:    300,
		MinCellWidth:    80,
		ShrinkStep:      15,
	}
}

// Layout is the geometry derived from a policy and an item count.
type Layout struct {
	Columns    int
	Rows       int
	CellWidth  int
	CellHeight int
	// Capacity is the number of items that get a cell.
	Capacity int
}

// Width is the canvas width in pixels.
func (l Layout) Width() int { return l.Columns * l.CellWidth }

// Height is the canvas height in pixels.
func (l Layout) Height() int { return l.Rows * l.CellHeight }

// Cell returns the canvas rectangle of item i, placed row-major.
func (l Layout) Cell(i int) image.Rectangle {
	x := (i % l.Columns) * l.CellWidth
	y := (i / l.Columns) * l.CellHeight
	return image.Rect(x, y, x+l.CellWidth, y+l.CellHeight)
}

// Compute derives the layout for n items.
func Compute(p Policy, n int) Layout {
	if !p.Adaptive {
		return Layout{
			Columns:    p.Columns,
			Rows:       p.Rows,
			CellWidth:  p.CellWidth,
			CellHeight: p.CellHeight,
			Capacity:   min(n, p.Columns*p.Rows),
		}
	}
	if n <= 0 {
		return Layout{}
	}

	cols := AdaptiveColumns(n, p.MinColumns, p.MaxColumns)
	rows := (n + cols - 1) / cols

	w := min(p.MaxCanvasWidth/cols, p.MaxCellWidth)
	h := w * aspectH / aspectW

	step := max(p.ShrinkStep, 1)
	for rows*h > p.MaxCanvasHeight && w > p.MinCellWidth {
		h -= step
		w = h * aspectW / aspectH
	}
	if w < p.MinCellWidth {
		w = p.MinCellWidth
		h = w * aspectH / aspectW
	}

	return Layout{Columns: cols, Rows: rows, CellWidth: w, CellHeight: h, Capacity: n}
}

// AdaptiveColumns is clamp(round(sqrt(n))+1, minCols, maxCols).
func AdaptiveColumns(n, minCols, maxCols int) int {
	cols := int(math.Round(math.Sqrt(float64(n)))) + 1
	if cols < minCols {
		cols = minCols
	}
	if maxCols > 0 && cols > maxCols {
		cols = maxCols
	}
	return cols
}
