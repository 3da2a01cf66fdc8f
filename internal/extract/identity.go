package extract

import (
	"strings"

	"golang.org/x/net/html"
)

// ResolveViewerHandle determines the handle of the logged-in viewer from the
// ambient page chrome, trying an ordered chain of UI locations: the sidebar
// account switcher, then the profile tab link, then the mobile nav profile
// link. The first probe that yields a handle wins. Returns the handle
// lowercased without the "@" prefix, or "" when no probe succeeds.
func ResolveViewerHandle(doc *html.Node) string {
	if h := handleFromAccountSwitcher(doc); h != "" {
		return h
	}
	if h := handleFromProfileTab(doc); h != "" {
		return h
	}
	return handleFromMobileNav(doc)
}

func handleFromAccountSwitcher(doc *html.Node) string {
	switcher := findFirst(doc, func(n *html.Node) bool {
		return hasTestID(n, "SideNav_AccountSwitcher_Button")
	})
	if switcher == nil {
		return ""
	}
	span := findFirst(switcher, func(n *html.Node) bool {
		return isElement(n, "span") && strings.HasPrefix(innerText(n), "@")
	})
	if span == nil {
		return ""
	}
	return normalizeHandle(innerText(span))
}

func handleFromProfileTab(doc *html.Node) string {
	link := findFirst(doc, func(n *html.Node) bool {
		return hasTestID(n, "AppTabBar_Profile_Link")
	})
	if link == nil {
		return ""
	}
	return handleFromHref(attr(link, "href"))
}

func handleFromMobileNav(doc *html.Node) string {
	link := findFirst(doc, func(n *html.Node) bool {
		return isElement(n, "a") &&
			attr(n, "role") == "link" &&
			strings.Contains(attr(n, "aria-label"), "Profile")
	})
	if link == nil {
		return ""
	}
	return handleFromHref(attr(link, "href"))
}

func handleFromHref(href string) string {
	return normalizeHandle(strings.TrimPrefix(href, "/"))
}

func normalizeHandle(h string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(h), "@"))
}
