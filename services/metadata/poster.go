package metadata

import (
	"context"

	"traktfm/utils"
)

// PlaceholderPoster is shown when neither Trakt nor TMDB has artwork.
const PlaceholderPoster = "https://i.imgur.com/Z2MYNbj.png"

// PosterKind selects which TMDB search a fallback lookup uses.
type PosterKind int

const (
	PosterMovie PosterKind = iota
	PosterShow
)

// PosterQuery describes one poster to resolve.
type PosterQuery struct {
	Kind     PosterKind
	Title    string
	Year     int
	Embedded string // poster reference shipped with the Trakt payload, may lack a scheme
}

type posterSearcher interface {
	SearchMoviePoster(ctx context.Context, title string, year int) (string, bool)
	SearchShowPoster(ctx context.Context, title string, year int) (string, bool)
}

var _ posterSearcher = (*TMDBClient)(nil)

// PosterResolver resolves a poster reference: embedded → TMDB search → placeholder.
type PosterResolver struct {
	fallback    posterSearcher
	placeholder string
}

// NewPosterResolver returns a resolver backed by fallback. A nil fallback skips the search step.
func NewPosterResolver(fallback posterSearcher) *PosterResolver {
	return &PosterResolver{fallback: fallback, placeholder: PlaceholderPoster}
}

// Resolve always returns a usable URL.
func (r *PosterResolver) Resolve(ctx context.Context, q PosterQuery) string {
	if q.Embedded != "" {
		return utils.EnsureHTTPS(q.Embedded)
	}

	if r.fallback != nil {
		var (
			found string
			ok    bool
		)
		switch q.Kind {
		case PosterShow:
			found, ok = r.fallback.SearchShowPoster(ctx, q.Title, q.Year)
		default:
			found, ok = r.fallback.SearchMoviePoster(ctx, q.Title, q.Year)
		}
		if ok && found != "" {
			return utils.EnsureHTTPS(found)
		}
	}

	return r.placeholder
}
