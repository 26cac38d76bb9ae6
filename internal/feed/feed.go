// Package feed builds the RSS feed and XML sitemap for the site.
package feed

import (
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/sgx-labs/breakdown/internal/content"
)

// DefaultLimit is the number of items in the RSS feed.
const DefaultLimit = 50

// Site identifies the publication.
type Site struct {
	Name        string
	URL         string
	Description string
}

func (s Site) abs(path string) string {
	return strings.TrimRight(s.URL, "/") + path
}

type rss struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Atom    string     `xml:"xmlns:atom,attr"`
	Channel rssChannel `xml:"channel"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
	Type string `xml:"type,attr"`
}

type rssChannel struct {
	Title         string    `xml:"title"`
	Link          string    `xml:"link"`
	Description   string    `xml:"description"`
	Language      string    `xml:"language"`
	LastBuildDate string    `xml:"lastBuildDate,omitempty"`
	Self          atomLink  `xml:"atom:link"`
	Items         []rssItem `xml:"item"`
}

type rssGUID struct {
	Value       string `xml:",chardata"`
	IsPermaLink bool   `xml:"isPermaLink,attr"`
}

type rssItem struct {
	Title       string   `xml:"title"`
	Link        string   `xml:"link"`
	GUID        rssGUID  `xml:"guid"`
	PubDate     string   `xml:"pubDate"`
	Description string   `xml:"description,omitempty"`
	Categories  []string `xml:"category"`
}

// RSS renders an RSS 2.0 document with the first limit items, which are
// expected newest first.
func RSS(site Site, items []content.Summary, limit int) ([]byte, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if len(items) > limit {
		items = items[:limit]
	}
	ch := rssChannel{
		Title:       site.Name,
		Link:        site.abs("/"),
		Description: site.Description,
		Language:    "en-us",
		Self:        atomLink{Href: site.abs("/feed.xml"), Rel: "self", Type: "application/rss+xml"},
	}
	if len(items) > 0 {
		ch.LastBuildDate = items[0].Date.UTC().Format(time.RFC1123Z)
	}
	for _, it := range items {
		link := site.abs(it.URL)
		cats := []string{it.Category.Display}
		if !it.Subtopic.IsZero() {
			cats = append(cats, it.Subtopic.Display)
		}
		cats = append(cats, it.Tags...)
		ch.Items = append(ch.Items, rssItem{
			Title:       it.Title,
			Link:        link,
			GUID:        rssGUID{Value: link, IsPermaLink: true},
			PubDate:     it.Date.UTC().Format(time.RFC1123Z),
			Description: it.Description,
			Categories:  cats,
		})
	}
	return marshal(rss{Version: "2.0", Atom: "http://www.w3.org/2005/Atom", Channel: ch})
}

type urlset struct {
	XMLName xml.Name     `xml:"urlset"`
	NS      string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc        string `xml:"loc"`
	LastMod    string `xml:"lastmod,omitempty"`
	ChangeFreq string `xml:"changefreq,omitempty"`
	Priority   string `xml:"priority,omitempty"`
}

// Sitemap renders a urlset with the home page, category and subtopic
// listings, and every article.
func Sitemap(site Site, items []content.Summary, categories []content.CategoryInfo) ([]byte, error) {
	set := urlset{NS: "http://www.sitemaps.org/schemas/sitemap/0.9"}
	home := sitemapURL{Loc: site.abs("/"), ChangeFreq: "daily", Priority: "1.0"}
	if len(items) > 0 {
		home.LastMod = items[0].Date.UTC().Format("2006-01-02")
	}
	set.URLs = append(set.URLs, home)
	for _, c := range categories {
		set.URLs = append(set.URLs, sitemapURL{Loc: site.abs("/category/" + c.Key), ChangeFreq: "weekly", Priority: "0.6"})
		for _, s := range c.Subtopics {
			set.URLs = append(set.URLs, sitemapURL{Loc: site.abs("/category/" + c.Key + "/" + s.Key), ChangeFreq: "weekly", Priority: "0.5"})
		}
	}
	for _, it := range items {
		set.URLs = append(set.URLs, sitemapURL{
			Loc:      site.abs(it.URL),
			LastMod:  it.Date.UTC().Format("2006-01-02"),
			Priority: "0.8",
		})
	}
	return marshal(set)
}

func marshal(v any) ([]byte, error) {
	out, err := xml.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal feed: %w", err)
	}
	return append([]byte(xml.Header), out...), nil
}
