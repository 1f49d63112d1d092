// Package render provides the browser-rendering capability the crawlers are
// built against: fetch a rendered page by URL, and discover navigation
// targets on it. Implementations own the browser lifecycle; callers obtain
// clients from a bounded Pool for the duration of one run.
package render

import "context"

// Page is one rendered page's content with its origin.
type Page struct {
	URL     string
	Content string
}

// Client is the rendering capability consumed by the source crawlers.
type Client interface {
	// Fetch navigates to url and returns the rendered page content.
	Fetch(ctx context.Context, url string) (*Page, error)

	// Discover navigates to url and returns, in document order, the link
	// target (href) or form value of every element matching selector.
	Discover(ctx context.Context, url, selector string) ([]string, error)

	// Close releases the underlying browser resources.
	Close() error
}
