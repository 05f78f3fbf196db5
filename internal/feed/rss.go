// Package feed renders the public RSS document exported alongside the
// system bundle.
package feed

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"lbm-go/internal/bundle"
	"lbm-go/internal/lbm"
)

const generator = "LBM 0.6"

// Exporter renders the site's public posts as RSS 2.0. Only public,
// untagged-protected posts are included; everything gated behind a
// session, password or protected tag stays out of the feed.
type Exporter struct {
	store   *bundle.Store
	siteURL string
}

func NewExporter(store *bundle.Store, siteURL string) *Exporter {
	return &Exporter{store: store, siteURL: strings.TrimRight(siteURL, "/")}
}

func (e *Exporter) Render() (string, error) {
	cfg := e.store.System.SiteConfig

	var posts []bundle.Post
	for _, p := range e.store.System.Posts {
		if p.Access.Kind != "" && p.Access.Kind != bundle.AccessPublic {
			continue
		}
		if carriesProtectedTag(&cfg, &p) {
			continue
		}
		posts = append(posts, p)
	}
	sort.Slice(posts, func(i, j int) bool { return posts[i].ID > posts[j].ID })

	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString(`<rss version="2.0">` + "\n<channel>\n")
	fmt.Fprintf(&b, "<title>%s</title>\n", escapeXML(cfg.SiteName))
	fmt.Fprintf(&b, "<link>%s</link>\n", escapeXML(e.siteURL))
	fmt.Fprintf(&b, "<description>%s</description>\n", escapeXML(cfg.MetaDescription))
	fmt.Fprintf(&b, "<generator>%s</generator>\n", generator)

	for _, p := range posts {
		link := fmt.Sprintf("%s/#%d", e.siteURL, p.ID)
		b.WriteString("<item>\n")
		fmt.Fprintf(&b, "<title>%s</title>\n", escapeXML(itemTitle(p.Content)))
		fmt.Fprintf(&b, "<link>%s</link>\n", escapeXML(link))
		fmt.Fprintf(&b, "<guid isPermaLink=\"false\">%s</guid>\n", escapeXML(link))
		fmt.Fprintf(&b, "<pubDate>%s</pubDate>\n", pubDate(p.ID))
		fmt.Fprintf(&b, "<description><![CDATA[%s]]></description>\n", escapeCDATA(p.Content))
		b.WriteString("</item>\n")
	}

	b.WriteString("</channel>\n</rss>\n")
	return b.String(), nil
}

// itemTitle derives a short title from the first line of the content.
func itemTitle(content string) string {
	line := content
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return "Untitled"
	}
	runes := []rune(line)
	if len(runes) > 60 {
		return string(runes[:60]) + "..."
	}
	return line
}

// pubDate derives the publication time from the time-based post id.
func pubDate(id int64) string {
	return time.UnixMilli(id).UTC().Format("Mon, 02 Jan 2006 15:04:05 GMT")
}

func carriesProtectedTag(cfg *bundle.SiteConfig, p *bundle.Post) bool {
	for _, tag := range cfg.ElevatedTags() {
		if p.HasTag(tag) {
			return true
		}
	}
	return false
}

func escapeXML(s string) string {
	r := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
	)
	return r.Replace(s)
}

// escapeCDATA splits any closing CDATA marker so content cannot break out
// of the section.
func escapeCDATA(s string) string {
	return strings.ReplaceAll(s, "]]>", "]]]]><![CDATA[>")
}

var _ lbm.FeedExporter = (*Exporter)(nil)
