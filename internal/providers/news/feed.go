/*
Copyright (C) 2026 Airwave Co

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package news

import "encoding/xml"

// rssFeed models the subset of RSS 2.0 / Atom fields this provider
// needs. No third-party feed parser appears anywhere in the retrieval
// pack (see DESIGN.md), so parsing is done against encoding/xml
// directly rather than fabricating a dependency.
type rssFeed struct {
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
	// Atom fallback: some sources serve <feed><entry> instead of
	// <rss><channel><item>.
	Entries []atomEntry `xml:"entry"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Description string `xml:"description"`
	Link        string `xml:"link"`
	PubDate     string `xml:"pubDate"`
}

type atomEntry struct {
	Title   string `xml:"title"`
	Summary string `xml:"summary"`
	Link    struct {
		Href string `xml:"href,attr"`
	} `xml:"link"`
	Updated   string `xml:"updated"`
	Published string `xml:"published"`
}

// feedEntry is the parser's normalized output, before sanitization.
type feedEntry struct {
	Title       string
	Description string
	Link        string
	PublishedAt string // RFC822 or RFC3339, parsed by the caller
}

func parseFeed(body []byte) ([]feedEntry, error) {
	var feed rssFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, err
	}

	var out []feedEntry
	for _, item := range feed.Channel.Items {
		out = append(out, feedEntry{
			Title:       item.Title,
			Description: item.Description,
			Link:        item.Link,
			PublishedAt: item.PubDate,
		})
	}
	for _, entry := range feed.Entries {
		published := entry.Published
		if published == "" {
			published = entry.Updated
		}
		out = append(out, feedEntry{
			Title:       entry.Title,
			Description: entry.Summary,
			Link:        entry.Link.Href,
			PublishedAt: published,
		})
	}
	return out, nil
}
