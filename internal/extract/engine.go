package extract

import (
	"encoding/json"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/blackmichael/tweet-sweep/internal/domain"
)

// MediaOnlyContent is the content placeholder for posts without body text.
const MediaOnlyContent = "[Media/No Text]"

const (
	defaultAuthorName   = "Unknown"
	defaultAuthorHandle = "@unknown"
)

var countPattern = regexp.MustCompile(`\d+`)

// Engine turns a DOM snapshot into an ordered sequence of PostRecords. It is
// pure and synchronous: every field extraction degrades to a documented
// default rather than failing, and records without a derivable id are dropped.
// Deduplication is not its job; the hub dedupes by id on ingest.
type Engine struct {
	logger *slog.Logger
	now    func() time.Time
}

// NewEngine creates an extraction engine.
func NewEngine(logger *slog.Logger) *Engine {
	return &Engine{
		logger: logger,
		now:    time.Now,
	}
}

// Extract produces PostRecords for the viewer's own posts and reposts visible
// in doc. path is the current location path and gates extraction: once the
// viewer's identity is known, anything other than the viewer's own profile
// page (root or "with replies") yields nothing, so other people's timelines
// are never scraped. With identity unknown, filtering degrades to
// reposts-only.
func (e *Engine) Extract(doc *html.Node, path string) []domain.PostRecord {
	viewer := ResolveViewerHandle(doc)

	if viewer != "" {
		p := strings.ToLower(path)
		if p != "/"+viewer && p != "/"+viewer+"/with_replies" {
			e.logger.Warn("not on viewer's profile page, skipping extraction",
				"path", path, "viewer", viewer)
			return nil
		}
	} else {
		e.logger.Warn("viewer handle not resolved, filtering degrades to reposts only")
	}

	articles := findAll(doc, func(n *html.Node) bool {
		return isElement(n, "article") && attr(n, "data-testid") == "tweet"
	})

	var records []domain.PostRecord
	for i, article := range articles {
		// A post without the overflow menu cannot be deleted later, so it
		// is not worth capturing.
		if findFirst(article, func(n *html.Node) bool { return hasTestID(n, "caret") }) == nil {
			continue
		}

		rec := e.extractArticle(article)
		if rec.ID == "" {
			continue
		}
		if !e.include(rec, viewer) {
			continue
		}

		// Stitch the neighboring timeline items on as inert display context,
		// whether or not they would pass the filter themselves.
		if i > 0 {
			rec.ThreadParent = e.snapshot(articles[i-1])
		}
		if i < len(articles)-1 {
			rec.ThreadChild = e.snapshot(articles[i+1])
		}

		records = append(records, rec)
	}

	return records
}

func (e *Engine) include(rec domain.PostRecord, viewer string) bool {
	if viewer != "" && normalizeHandle(rec.AuthorHandle) == viewer {
		return true
	}
	return rec.IsRepost
}

// snapshot re-extracts a neighboring article as an opaque value. Failures
// just drop the context; a record never fails because of its neighbors.
func (e *Engine) snapshot(article *html.Node) json.RawMessage {
	rec := e.extractArticle(article)
	raw, err := json.Marshal(rec)
	if err != nil {
		return nil
	}
	return raw
}

func (e *Engine) extractArticle(article *html.Node) domain.PostRecord {
	rec := domain.PostRecord{
		Content:      MediaOnlyContent,
		CreatedAt:    e.now().UTC(),
		Status:       domain.StatusPending,
		AuthorName:   defaultAuthorName,
		AuthorHandle: defaultAuthorHandle,
	}

	e.extractIDAndTime(article, &rec)
	e.extractContent(article, &rec)
	e.extractAuthor(article, &rec)
	e.extractMetrics(article, &rec)
	e.extractMedia(article, &rec)
	e.extractRepost(article, &rec)
	e.extractLinkCard(article, &rec)

	return rec
}

// extractIDAndTime derives the post id from the timestamp element's enclosing
// permalink, falling back to the first status permalink that is not a photo
// modal link.
func (e *Engine) extractIDAndTime(article *html.Node, rec *domain.PostRecord) {
	if timeEl := findFirst(article, func(n *html.Node) bool { return isElement(n, "time") }); timeEl != nil {
		if dt := attr(timeEl, "datetime"); dt != "" {
			if t, err := time.Parse(time.RFC3339, dt); err == nil {
				rec.CreatedAt = t
			}
		}
		if link := closest(timeEl, func(n *html.Node) bool { return isElement(n, "a") }); link != nil {
			rec.ID = statusID(attr(link, "href"))
		}
	}

	if rec.ID != "" {
		return
	}

	for _, a := range findAll(article, func(n *html.Node) bool { return isElement(n, "a") }) {
		href := attr(a, "href")
		if strings.Contains(href, "/status/") && !strings.Contains(href, "/photo/") {
			rec.ID = statusID(href)
			return
		}
	}
}

func (e *Engine) extractContent(article *html.Node, rec *domain.PostRecord) {
	if textEl := findFirst(article, func(n *html.Node) bool { return hasTestID(n, "tweetText") }); textEl != nil {
		if text := innerText(textEl); text != "" {
			rec.Content = text
		}
	}
}

func (e *Engine) extractAuthor(article *html.Node, rec *domain.PostRecord) {
	if userEl := findFirst(article, func(n *html.Node) bool { return hasTestID(n, "User-Name") }); userEl != nil {
		for _, t := range spanTexts(userEl) {
			if strings.HasPrefix(t, "@") {
				if rec.AuthorHandle == defaultAuthorHandle {
					rec.AuthorHandle = t
				}
			} else if rec.AuthorName == defaultAuthorName {
				rec.AuthorName = t
			}
		}
	}

	if img := findFirst(article, func(n *html.Node) bool {
		return isElement(n, "img") && strings.Contains(attr(n, "src"), "profile_images")
	}); img != nil {
		rec.AvatarURL = attr(img, "src")
	}
}

// extractMetrics parses engagement counts from the action buttons'
// aria-labels. Unreadable counts stay 0.
func (e *Engine) extractMetrics(article *html.Node, rec *domain.PostRecord) {
	rec.Metrics.Likes = countFromButton(article, "like")
	rec.Metrics.Reposts = countFromButton(article, "retweet")
	rec.Metrics.Replies = countFromButton(article, "reply")
}

func countFromButton(article *html.Node, testID string) int {
	btn := findFirst(article, func(n *html.Node) bool { return hasTestID(n, testID) })
	if btn == nil {
		return 0
	}
	m := countPattern.FindString(attr(btn, "aria-label"))
	if m == "" {
		return 0
	}
	count, err := strconv.Atoi(m)
	if err != nil {
		return 0
	}
	return count
}

// extractMedia collects photo urls and video poster frames in DOM order.
func (e *Engine) extractMedia(article *html.Node, rec *domain.PostRecord) {
	for _, photo := range findAll(article, func(n *html.Node) bool { return hasTestID(n, "tweetPhoto") }) {
		for _, img := range findAll(photo, func(n *html.Node) bool { return isElement(n, "img") }) {
			if src := attr(img, "src"); src != "" {
				rec.Media = append(rec.Media, src)
			}
		}
	}

	sawVideo := false
	for _, player := range findAll(article, func(n *html.Node) bool { return hasTestID(n, "videoPlayer") }) {
		for _, video := range findAll(player, func(n *html.Node) bool { return isElement(n, "video") }) {
			sawVideo = true
			if poster := attr(video, "poster"); poster != "" {
				rec.Media = append(rec.Media, poster)
			}
		}
	}

	if !sawVideo {
		if comp := findFirst(article, func(n *html.Node) bool { return hasTestID(n, "videoComponent") }); comp != nil {
			if img := findFirst(comp, func(n *html.Node) bool { return isElement(n, "img") }); img != nil {
				if src := attr(img, "src"); src != "" {
					rec.Media = append(rec.Media, src)
				}
			}
		}
	}
}

func (e *Engine) extractRepost(article *html.Node, rec *domain.PostRecord) {
	ctxEl := findFirst(article, func(n *html.Node) bool { return hasTestID(n, "socialContext") })
	if ctxEl == nil {
		return
	}
	text := strings.ToLower(innerText(ctxEl))
	if strings.Contains(text, "reposted") ||
		strings.Contains(text, "retweeted") ||
		strings.Contains(text, "retweetledi") {
		rec.IsRepost = true
	}
}

// extractLinkCard applies the card heuristics: the domain is a short span
// containing a dot, the title is the first other non-empty span.
func (e *Engine) extractLinkCard(article *html.Node, rec *domain.PostRecord) {
	wrapper := findFirst(article, func(n *html.Node) bool { return hasTestID(n, "card.wrapper") })
	if wrapper == nil {
		return
	}

	card := &domain.LinkCard{}

	if img := findFirst(wrapper, func(n *html.Node) bool { return isElement(n, "img") }); img != nil {
		card.ImageURL = attr(img, "src")
	}

	texts := spanTexts(wrapper)
	for _, t := range texts {
		if strings.Contains(t, ".") && len(t) < 30 {
			card.Domain = t
			break
		}
	}
	for _, t := range texts {
		if t != card.Domain {
			card.Title = t
			break
		}
	}

	if card.Title != "" || card.Domain != "" || card.ImageURL != "" {
		rec.LinkCard = card
	}
}

func statusID(href string) string {
	_, after, ok := strings.Cut(href, "/status/")
	if !ok {
		return ""
	}
	id, _, _ := strings.Cut(after, "/")
	return id
}
