// Package browser defines the capture agent's view of the page it operates
// on. The real embedding (a content script driving the live DOM) sits outside
// this repository; everything here talks to the page through the Page port.
package browser

import (
	"context"

	"golang.org/x/net/html"
)

// Page is a handle on the page the capture agent scrapes and acts upon.
// Document returns a fresh parse of the current DOM; nodes handed back to
// Click and ScrollIntoView come from the most recent Document call.
type Page interface {
	// Document returns the current DOM as a parsed tree.
	Document(ctx context.Context) (*html.Node, error)

	// Path returns the current location path, e.g. "/alice".
	Path() string

	// Click activates the given element.
	Click(ctx context.Context, n *html.Node) error

	// DismissOverlay clicks outside any open menu or sheet to close it.
	DismissOverlay(ctx context.Context) error

	// ScrollBy scrolls the viewport vertically by dy pixels (negative is up).
	ScrollBy(ctx context.Context, dy int) error

	// ScrollIntoView centers the given element in the viewport.
	ScrollIntoView(ctx context.Context, n *html.Node) error
}
