package grid

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/sourcegraph/conc/pool"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"traktfm/utils"
)

// ErrNothingToRender is returned when there is no item to draw, either because
// the input was empty or because every poster download failed.
var ErrNothingToRender = errors.New("grid: nothing to render")

const (
	defaultFetchTimeout   = 15 * time.Second
	defaultMaxConcurrency = 8
	maxPosterBytes        = 10 << 20
)

var background = color.RGBA{0, 0, 0, 255}

// Item is one poster to place in the grid.
type Item struct {
	URL   string
	Title string
}

// Result is an encoded grid image.
type Result struct {
	Data        []byte
	ContentType string
	Width       int
	Height      int
	Rendered    int
	Failed      int
}

// Options tunes a Composer.
type Options struct {
	FetchTimeout   time.Duration
	MaxConcurrency int
}

// Composer downloads posters and assembles them into a titled grid.
type Composer struct {
	fetchTimeout   time.Duration
	maxConcurrency int
	labels         *labeler
}

// NewComposer returns a Composer with the embedded Go Bold font loaded.
func NewComposer(opts Options) (*Composer, error) {
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = defaultFetchTimeout
	}
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = defaultMaxConcurrency
	}
	labels, err := newLabeler()
	if err != nil {
		return nil, err
	}
	return &Composer{
		fetchTimeout:   opts.FetchTimeout,
		maxConcurrency: opts.MaxConcurrency,
		labels:         labels,
	}, nil
}

// Compose renders items on a canvas laid out by policy and returns it PNG-encoded.
// A poster that fails to download or decode leaves its cell background-coloured.
func (c *Composer) Compose(ctx context.Context, items []Item, policy Policy) (*Result, error) {
	if len(items) == 0 {
		return nil, ErrNothingToRender
	}

	layout := Compute(policy, len(items))
	if layout.Capacity == 0 {
		return nil, ErrNothingToRender
	}
	items = items[:layout.Capacity]

	// One HTTP session per composition, released when the grid is built.
	transport := http.DefaultTransport.(*http.Transport).Clone()
	defer transport.CloseIdleConnections()
	session := &http.Client{Transport: transport, Timeout: c.fetchTimeout}

	cells := make([]*image.RGBA, len(items))

	p := pool.New().WithMaxGoroutines(c.maxConcurrency)
	for i, item := range items {
		p.Go(func() {
			src, err := fetchPoster(ctx, session, item.URL)
			if err != nil {
				log.Printf("[grid] poster fetch failed index=%d url=%s err=%v", i, item.URL, err)
				return
			}
			cell, err := c.renderCell(src, item.Title, layout.CellWidth, layout.CellHeight)
			if err != nil {
				log.Printf("[grid] poster render failed index=%d title=%q err=%v", i, item.Title, err)
				return
			}
			cells[i] = cell
		})
	}
	p.Wait()

	canvas := image.NewRGBA(image.Rect(0, 0, layout.Width(), layout.Height()))
	xdraw.Draw(canvas, canvas.Bounds(), image.NewUniform(background), image.Point{}, xdraw.Src)

	rendered := 0
	for i, cell := range cells {
		if cell == nil {
			continue
		}
		xdraw.Draw(canvas, layout.Cell(i), cell, image.Point{}, xdraw.Src)
		rendered++
	}

	if rendered == 0 {
		return nil, ErrNothingToRender
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return nil, fmt.Errorf("encode grid: %w", err)
	}

	return &Result{
		Data:        buf.Bytes(),
		ContentType: "image/png",
		Width:       layout.Width(),
		Height:      layout.Height(),
		Rendered:    rendered,
		Failed:      len(items) - rendered,
	}, nil
}

// renderCell scales src to the cell size and draws the title band.
func (c *Composer) renderCell(src image.Image, title string, w, h int) (*image.RGBA, error) {
	cell := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.BiLinear.Scale(cell, cell.Bounds(), src, src.Bounds(), xdraw.Src, nil)

	if err := c.labels.draw(cell, title); err != nil {
		return nil, err
	}
	return cell, nil
}

func fetchPoster(ctx context.Context, session *http.Client, rawURL string) (image.Image, error) {
	if err := utils.ValidateImageURL(rawURL); err != nil {
		return nil, err
	}
	target, err := utils.EncodeURLWithSpaces(rawURL)
	if err != nil {
		return nil, fmt.Errorf("encode url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := session.Do(req)
	if err != nil {
		return nil, fmt.Errorf("poster request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("poster request failed: %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPosterBytes))
	if err != nil {
		return nil, fmt.Errorf("read poster: %w", err)
	}

	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return nil, fmt.Errorf("poster is %s, not an image", mt.String())
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", mt.String(), err)
	}
	return img, nil
}
