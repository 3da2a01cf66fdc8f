package capture

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/blackmichael/tweet-sweep/internal/browser"
)

const (
	searchAttempts = 5
	searchStep     = 300
	searchSettle   = 300 * time.Millisecond
	menuSettle     = 500 * time.Millisecond
)

// Menu labels, with the known localized alternates.
var (
	undoRepostLabels = []string{"Undo Repost", "Undo Retweet", "Retweeti Geri Al"}
	deleteLabels     = []string{"Delete", "Sil"}
)

// Executor carries out delete commands against the live page. It re-locates
// the target post in the mutated, virtualized DOM (scrolling up in bounded
// steps when it is offscreen) and drives the host UI's menu flow. Every
// outcome is logged; nothing is reported back to the hub, and a post that can
// no longer be found stays DELETED in hub state regardless.
type Executor struct {
	page   browser.Page
	logger *slog.Logger

	// settle pauses between UI steps so menus and sheets have time to
	// render. Tests shrink these to zero.
	settle       time.Duration
	searchSettle time.Duration
}

// NewExecutor creates an action executor over the given page.
func NewExecutor(page browser.Page, logger *slog.Logger) *Executor {
	return &Executor{
		page:         page,
		logger:       logger,
		settle:       menuSettle,
		searchSettle: searchSettle,
	}
}

// Delete removes the post with the given id from the live page: un-repost if
// the post exposes that affordance, otherwise the overflow-menu delete flow
// with final confirmation. Best-effort and fire-and-forget: any step that
// cannot find its target logs a warning and halts the command.
func (x *Executor) Delete(ctx context.Context, postID string) {
	article := x.locate(ctx, postID)
	if article == nil {
		x.logger.Warn("post not found in DOM after search", "id", postID)
		return
	}

	if unrepost := findByTestID(article, "unretweet"); unrepost != nil {
		x.undoRepost(ctx, postID, unrepost)
		return
	}

	x.standardDelete(ctx, postID, article)
}

// locate searches the rendered articles for one whose permalink contains the
// post id. When absent it scrolls the viewport up in fixed steps, waiting for
// the page to settle between attempts, up to searchAttempts times.
func (x *Executor) locate(ctx context.Context, postID string) *html.Node {
	if article := x.findArticle(ctx, postID); article != nil {
		return article
	}

	x.logger.Info("post not visible, scroll-searching", "id", postID)

	for i := 0; i < searchAttempts; i++ {
		if err := x.page.ScrollBy(ctx, -searchStep); err != nil {
			x.logger.Warn("scroll failed during search", "id", postID, "error", err)
			return nil
		}
		if !x.wait(ctx, x.searchSettle) {
			return nil
		}

		if article := x.findArticle(ctx, postID); article != nil {
			if err := x.page.ScrollIntoView(ctx, article); err == nil {
				x.wait(ctx, x.settle)
			}
			return article
		}
	}

	return nil
}

func (x *Executor) findArticle(ctx context.Context, postID string) *html.Node {
	doc, err := x.page.Document(ctx)
	if err != nil {
		x.logger.Warn("failed to read page document", "error", err)
		return nil
	}

	for _, article := range findElements(doc, "article") {
		for _, a := range findElements(article, "a") {
			if strings.Contains(getAttr(a, "href"), postID) {
				return article
			}
		}
	}
	return nil
}

// undoRepost invokes the un-repost affordance and confirms through the menu.
// If the undo item is absent the menu is dismissed and the command stops; it
// never falls through to the delete flow.
func (x *Executor) undoRepost(ctx context.Context, postID string, unrepost *html.Node) {
	x.logger.Info("un-reposting", "id", postID)

	if err := x.page.Click(ctx, unrepost); err != nil {
		x.logger.Warn("failed to click un-repost button", "id", postID, "error", err)
		return
	}
	if !x.wait(ctx, x.settle) {
		return
	}

	item := x.findMenuItem(ctx, undoRepostLabels)
	if item == nil {
		x.logger.Warn("undo repost menu item not found", "id", postID)
		x.page.DismissOverlay(ctx)
		return
	}

	if err := x.page.Click(ctx, item); err != nil {
		x.logger.Warn("failed to click undo repost item", "id", postID, "error", err)
		return
	}
	x.logger.Info("post un-reposted", "id", postID)
}

func (x *Executor) standardDelete(ctx context.Context, postID string, article *html.Node) {
	caret := findByTestID(article, "caret")
	if caret == nil {
		x.logger.Warn("overflow menu button not found", "id", postID)
		return
	}

	if err := x.page.Click(ctx, caret); err != nil {
		x.logger.Warn("failed to open overflow menu", "id", postID, "error", err)
		return
	}
	if !x.wait(ctx, x.settle) {
		return
	}

	item := x.findMenuItem(ctx, deleteLabels)
	if item == nil {
		x.logger.Warn("delete menu item not found, closing menu", "id", postID)
		x.page.DismissOverlay(ctx)
		return
	}

	if err := x.page.Click(ctx, item); err != nil {
		x.logger.Warn("failed to click delete item", "id", postID, "error", err)
		return
	}
	if !x.wait(ctx, x.settle) {
		return
	}

	confirm := x.findConfirm(ctx)
	if confirm == nil {
		x.logger.Warn("confirmation button not found", "id", postID)
		return
	}
	if err := x.page.Click(ctx, confirm); err != nil {
		x.logger.Warn("failed to confirm deletion", "id", postID, "error", err)
		return
	}

	x.logger.Info("post deleted", "id", postID)
}

// findMenuItem re-reads the document (the menu renders outside the article)
// and returns the first open menu item whose text contains any of the labels.
func (x *Executor) findMenuItem(ctx context.Context, labels []string) *html.Node {
	doc, err := x.page.Document(ctx)
	if err != nil {
		x.logger.Warn("failed to read page document", "error", err)
		return nil
	}

	for _, item := range findMenuItems(doc) {
		text := nodeText(item)
		for _, label := range labels {
			if strings.Contains(text, label) {
				return item
			}
		}
	}
	return nil
}

func (x *Executor) findConfirm(ctx context.Context) *html.Node {
	doc, err := x.page.Document(ctx)
	if err != nil {
		x.logger.Warn("failed to read page document", "error", err)
		return nil
	}
	return findByTestID(doc, "confirmationSheetConfirm")
}

// wait sleeps for d, returning false if the context was cancelled first.
func (x *Executor) wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

// Node lookups local to the executor. The extraction engine has its own
// richer set; these cover only what the delete flows touch.

func findElements(n *html.Node, tag string) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.ElementNode && node.Data == tag {
			out = append(out, node)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

func findMenuItems(n *html.Node) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.ElementNode && getAttr(node, "role") == "menuitem" {
			out = append(out, node)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

func findByTestID(n *html.Node, id string) *html.Node {
	var found *html.Node
	var walk func(*html.Node) bool
	walk = func(node *html.Node) bool {
		if node.Type == html.ElementNode && getAttr(node, "data-testid") == id {
			found = node
			return true
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			if walk(c) {
				return true
			}
		}
		return false
	}
	walk(n)
	return found
}

func getAttr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}
