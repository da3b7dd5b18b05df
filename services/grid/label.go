package grid

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/mozillazg/go-unidecode"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
)

const (
	labelBandHeight = 30
	labelFontSize   = 16
	labelPadding    = 10
	// labelCharWidth approximates one glyph's width when budgeting title length.
	labelCharWidth = 9
	ellipsis       = "…"
)

var (
	labelText    = color.RGBA{255, 255, 255, 255}
	labelOutline = color.RGBA{0, 0, 0, 255}
	labelBand    = color.RGBA{0, 0, 0, 255}
)

// labeler draws title bands. The parsed font is shared; faces are created per
// call because opentype faces are not safe for concurrent use.
type labeler struct {
	font *opentype.Font
}

func newLabeler() (*labeler, error) {
	f, err := opentype.Parse(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse label font: %w", err)
	}
	return &labeler{font: f}, nil
}

func (l *labeler) newFace() (font.Face, error) {
	return opentype.NewFace(l.font, &opentype.FaceOptions{
		Size:    labelFontSize,
		DPI:     72,
		Hinting: font.HintingFull,
	})
}

// draw paints an opaque band across the bottom of cell and writes title on it
// with a one-pixel outline.
func (l *labeler) draw(cell *image.RGBA, title string) error {
	b := cell.Bounds()
	band := image.Rect(b.Min.X, b.Max.Y-labelBandHeight, b.Max.X, b.Max.Y)
	xdraw.Draw(cell, band, image.NewUniform(labelBand), image.Point{}, xdraw.Src)

	if title == "" {
		return nil
	}

	face, err := l.newFace()
	if err != nil {
		return fmt.Errorf("create label face: %w", err)
	}
	defer face.Close()

	text := fitLabel(face, l.printable(title), b.Dx())

	metrics := face.Metrics()
	baseline := band.Min.Y + (labelBandHeight+metrics.Ascent.Ceil()-metrics.Descent.Ceil())/2
	origin := fixed.P(b.Min.X+labelPadding, baseline)

	d := &font.Drawer{Dst: cell, Face: face}

	d.Src = image.NewUniform(labelOutline)
	for _, off := range [][2]int{{-1, -1}, {0, -1}, {1, -1}, {-1, 0}, {1, 0}, {-1, 1}, {0, 1}, {1, 1}} {
		d.Dot = origin.Add(fixed.P(off[0], off[1]))
		d.DrawString(text)
	}

	d.Src = image.NewUniform(labelText)
	d.Dot = origin
	d.DrawString(text)
	return nil
}

// printable transliterates titles containing runes the font has no glyph for.
func (l *labeler) printable(title string) string {
	var buf sfnt.Buffer
	for _, r := range title {
		idx, err := l.font.GlyphIndex(&buf, r)
		if err != nil || idx == 0 {
			return unidecode.Unidecode(title)
		}
	}
	return title
}

// fitLabel truncates title to the rune budget of the cell width, then keeps
// trimming until it also fits in pixels.
func fitLabel(face font.Face, title string, cellWidth int) string {
	text := TruncateTitle(title, TitleBudget(cellWidth))
	limit := fixed.I(cellWidth - 2*labelPadding)

	runes := []rune(strings.TrimSuffix(text, ellipsis))
	for len(runes) > 0 && font.MeasureString(face, text) > limit {
		runes = runes[:len(runes)-1]
		text = string(runes) + ellipsis
	}
	return text
}

// TitleBudget is the maximum number of title runes drawn in a cell of the given width.
func TitleBudget(cellWidth int) int {
	return max(cellWidth/labelCharWidth, 1)
}

// TruncateTitle shortens title to budget runes, ending with an ellipsis when cut.
func TruncateTitle(title string, budget int) string {
	runes := []rune(title)
	if len(runes) <= budget {
		return title
	}
	if budget <= 1 {
		return ellipsis
	}
	return string(runes[:budget-1]) + ellipsis
}
