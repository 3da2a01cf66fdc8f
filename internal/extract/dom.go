package extract

import (
	"strings"

	"golang.org/x/net/html"
)

// Small query helpers over x/net/html node trees. The source layout is
// addressed through data-testid markers, so these cover just the lookups the
// engine needs rather than a general selector engine.

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func isElement(n *html.Node, tag string) bool {
	return n.Type == html.ElementNode && n.Data == tag
}

func hasTestID(n *html.Node, id string) bool {
	return n.Type == html.ElementNode && attr(n, "data-testid") == id
}

// findAll returns every descendant of n (including n itself) matching pred,
// in document order.
func findAll(n *html.Node, pred func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if pred(node) {
			out = append(out, node)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

// findFirst returns the first descendant of n (including n itself) matching
// pred in document order, or nil.
func findFirst(n *html.Node, pred func(*html.Node) bool) *html.Node {
	var found *html.Node
	var walk func(*html.Node) bool
	walk = func(node *html.Node) bool {
		if pred(node) {
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

// closest walks up from n looking for an ancestor (or n itself) matching pred.
func closest(n *html.Node, pred func(*html.Node) bool) *html.Node {
	for cur := n; cur != nil; cur = cur.Parent {
		if pred(cur) {
			return cur
		}
	}
	return nil
}

// innerText flattens all text nodes under n, trimming surrounding whitespace.
func innerText(n *html.Node) string {
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
	return strings.TrimSpace(sb.String())
}

// spanTexts returns the trimmed text of every span under n, in document
// order, skipping empty ones.
func spanTexts(n *html.Node) []string {
	var out []string
	for _, span := range findAll(n, func(node *html.Node) bool { return isElement(node, "span") }) {
		if t := innerText(span); t != "" {
			out = append(out, t)
		}
	}
	return out
}
