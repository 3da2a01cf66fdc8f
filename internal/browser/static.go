package browser

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"golang.org/x/net/html"
)

// StaticPage implements Page over an HTML snapshot file. Interactions are
// logged no-ops. It exists for dry runs of the capture pipeline (cmd/agent)
// and for exercising the loop and executor without a live browser; the file
// is re-read on every Document call, so an external process may swap the
// snapshot under a running agent.
type StaticPage struct {
	file   string
	path   string
	logger *slog.Logger

	mu     sync.Mutex
	clicks int
}

// NewStaticPage creates a StaticPage backed by the snapshot at file,
// reporting path as its location.
func NewStaticPage(file, path string, logger *slog.Logger) *StaticPage {
	return &StaticPage{
		file:   file,
		path:   path,
		logger: logger,
	}
}

// Document parses the snapshot file.
func (p *StaticPage) Document(_ context.Context) (*html.Node, error) {
	f, err := os.Open(p.file)
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()

	doc, err := html.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	return doc, nil
}

// Path returns the configured location path.
func (p *StaticPage) Path() string {
	return p.path
}

// Click records the interaction and does nothing else.
func (p *StaticPage) Click(_ context.Context, n *html.Node) error {
	p.mu.Lock()
	p.clicks++
	p.mu.Unlock()
	p.logger.Info("static page click", "element", n.Data)
	return nil
}

// DismissOverlay is a no-op.
func (p *StaticPage) DismissOverlay(context.Context) error {
	p.logger.Info("static page overlay dismissed")
	return nil
}

// ScrollBy is a no-op; a snapshot has no viewport.
func (p *StaticPage) ScrollBy(_ context.Context, dy int) error {
	p.logger.Debug("static page scroll", "dy", dy)
	return nil
}

// ScrollIntoView is a no-op.
func (p *StaticPage) ScrollIntoView(context.Context, *html.Node) error {
	return nil
}

// Clicks returns how many elements were clicked so far.
func (p *StaticPage) Clicks() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.clicks
}
