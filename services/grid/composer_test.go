package grid

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solidPNG(t *testing.T, c color.Color, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// posterServer serves a red poster at /ok, 404 at /missing and HTML at /html.
func posterServer(t *testing.T) *httptest.Server {
	t.Helper()
	red := solidPNG(t, color.RGBA{200, 0, 0, 255}, 100, 150)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			w.Header().Set("Content-Type", "image/png")
			w.Write(red)
		case "/html":
			w.Write([]byte("<html><body>not a poster</body></html>"))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestComposer(t *testing.T) *Composer {
	t.Helper()
	c, err := NewComposer(Options{})
	require.NoError(t, err)
	return c
}

func decode(t *testing.T, res *Result) *image.RGBA {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(res.Data))
	require.NoError(t, err)
	rgba, ok := img.(*image.RGBA)
	if !ok {
		rgba = image.NewRGBA(img.Bounds())
		for y := img.Bounds().Min.Y; y < img.Bounds().Max.Y; y++ {
			for x := img.Bounds().Min.X; x < img.Bounds().Max.X; x++ {
				rgba.Set(x, y, img.At(x, y))
			}
		}
	}
	return rgba
}

func TestComposeFixedGridWithFailedDownloads(t *testing.T) {
	server := posterServer(t)
	items := []Item{
		{URL: server.URL + "/ok", Title: "Heat (1995)"},
		{URL: server.URL + "/missing", Title: "Missing (2001)"},
		{URL: server.URL + "/ok", Title: "Ronin (1998)"},
		{URL: server.URL + "/ok", Title: "Thief (1981)"},
		{URL: server.URL + "/html", Title: "Broken (2010)"},
		{URL: server.URL + "/ok", Title: "Collateral (2004)"},
	}

	res, err := newTestComposer(t).Compose(context.Background(), items, FixedPolicy())
	require.NoError(t, err)
	assert.Equal(t, 600, res.Width)
	assert.Equal(t, 600, res.Height)
	assert.Equal(t, 4, res.Rendered)
	assert.Equal(t, 2, res.Failed)
	assert.Equal(t, "image/png", res.ContentType)

	img := decode(t, res)
	assert.Equal(t, image.Rect(0, 0, 600, 600), img.Bounds())

	layout := Compute(FixedPolicy(), len(items))
	center := func(i int) color.RGBA {
		r := layout.Cell(i)
		return img.RGBAAt((r.Min.X+r.Max.X)/2, (r.Min.Y+r.Max.Y)/2)
	}

	assert.Equal(t, color.RGBA{200, 0, 0, 255}, center(0))
	assert.Equal(t, background, center(1), "failed cell stays background")
	assert.Equal(t, color.RGBA{200, 0, 0, 255}, center(2))
	assert.Equal(t, background, center(4), "non-image cell stays background")

	band := layout.Cell(0)
	assert.Equal(t, labelBand, img.RGBAAt(band.Min.X+1, band.Max.Y-2), "title band is opaque")
}

func TestComposeSparseFixedGrid(t *testing.T) {
	server := posterServer(t)
	res, err := newTestComposer(t).Compose(context.Background(), []Item{{URL: server.URL + "/ok", Title: "Solo"}}, FixedPolicy())
	require.NoError(t, err)
	assert.Equal(t, 600, res.Width)
	assert.Equal(t, 1, res.Rendered)

	img := decode(t, res)
	assert.Equal(t, background, img.RGBAAt(500, 450), "unfilled cells stay background")
}

func TestComposeDropsItemsBeyondFixedCapacity(t *testing.T) {
	server := posterServer(t)
	var items []Item
	for i := 0; i < 9; i++ {
		items = append(items, Item{URL: server.URL + "/ok", Title: "Poster"})
	}
	res, err := newTestComposer(t).Compose(context.Background(), items, FixedPolicy())
	require.NoError(t, err)
	assert.Equal(t, 6, res.Rendered)
	assert.Equal(t, 0, res.Failed)
}

func TestComposeAdaptiveGrid(t *testing.T) {
	server := posterServer(t)
	var items []Item
	for i := 0; i < 4; i++ {
		items = append(items, Item{URL: server.URL + "/ok", Title: "Poster"})
	}

	res, err := newTestComposer(t).Compose(context.Background(), items, AdaptivePolicy())
	require.NoError(t, err)
	assert.Equal(t, 900, res.Width)
	assert.Equal(t, 900, res.Height)
	assert.Equal(t, 4, res.Rendered)
}

func TestComposeNothingToRender(t *testing.T) {
	server := posterServer(t)
	c := newTestComposer(t)

	_, err := c.Compose(context.Background(), nil, FixedPolicy())
	assert.True(t, errors.Is(err, ErrNothingToRender))

	_, err = c.Compose(context.Background(), []Item{
		{URL: server.URL + "/missing"},
		{URL: "file:///etc/passwd"},
	}, AdaptivePolicy())
	assert.True(t, errors.Is(err, ErrNothingToRender))
}

func TestTruncateTitle(t *testing.T) {
	assert.Equal(t, "Heat (1995)", TruncateTitle("Heat (1995)", 22))
	assert.Equal(t, "Eternal Sunshine of t…", TruncateTitle("Eternal Sunshine of the Spotless Mind (2004)", 22))
	assert.Equal(t, "…", TruncateTitle("Anything", 1))
	assert.Equal(t, 22, TitleBudget(200))
}

func TestLabelTransliteratesMissingGlyphs(t *testing.T) {
	l, err := newLabeler()
	require.NoError(t, err)

	assert.Equal(t, "Amélie (2001)", l.printable("Amélie (2001)"))
	got := l.printable("千と千尋の神隠し")
	assert.NotEqual(t, "千と千尋の神隠し", got)
	assert.NotEmpty(t, got)
}

func TestFitLabelFitsCellWidth(t *testing.T) {
	l, err := newLabeler()
	require.NoError(t, err)
	face, err := l.newFace()
	require.NoError(t, err)
	defer face.Close()

	got := fitLabel(face, "WWWWWWWWWWWWWWWWWWWWWWWWWWWWWW", 120)
	assert.LessOrEqual(t, len([]rune(got)), TitleBudget(120))
	assert.Contains(t, got, "…")
}
