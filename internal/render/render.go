// Package render fetches profile pages. Browser drives headless Chrome and
// sees the page as a logged-in user would; HTTP fetches raw markup with colly
// and is cheaper but never runs scripts.
package render

import (
	"context"

	"github.com/cockroachdb/errors"

	"profile_spider/internal/models"
)

const (
	KindBrowser = "browser"
	KindHTTP    = "http"
)

var (
	// ErrRendererUnavailable means the render resource could not be set up.
	// It is fatal for a batch.
	ErrRendererUnavailable = errors.New("renderer unavailable")
	// ErrDisallowed is returned for URLs robots.txt forbids.
	ErrDisallowed = errors.New("disallowed by robots.txt")
)

// Renderer is a render resource that must be released with Close exactly
// once.
type Renderer interface {
	Render(ctx context.Context, url string) (models.Page, error)
	Close() error
}
