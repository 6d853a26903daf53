package feed

import (
	"bytes"
	"cmp"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"
)

type Parser struct {
	gofeedParser *gofeed.Parser
}

func NewParser() *Parser {
	return &Parser{
		gofeedParser: gofeed.NewParser(),
	}
}

// Run converts raw feed bytes into a validated Feed. A malformed document or
// missing channel title is fatal; an invalid item is skipped. Zero valid
// items is fatal, the same as an unreadable feed.
func (p *Parser) Run(data []byte, now time.Time) (*Feed, error) {
	parsed, err := p.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}

	title := strings.TrimSpace(parsed.Title)
	if title == "" {
		return nil, fmt.Errorf("feed has no title")
	}

	feed := &Feed{
		Title:       title,
		Link:        URL(parsed.Link),
		Language:    Language(parsed.Language),
		Description: strings.TrimSpace(parsed.Description),
	}

	if parsed.Image != nil {
		feed.CoverURL = URL(parsed.Image.URL)
	}

	if itunes := parsed.ITunesExt; itunes != nil {
		feed.Explicit = Explicit(itunes.Explicit)
		feed.Complete = Complete(itunes.Complete)
		feed.Owner = cmp.Or(strings.TrimSpace(itunes.Author), ownerName(itunes.Owner))
		feed.Description = cmp.Or(feed.Description,
			strings.TrimSpace(itunes.Summary), strings.TrimSpace(itunes.Subtitle))
		if feed.CoverURL == "" {
			feed.CoverURL = URL(itunes.Image)
		}
	}
	if feed.Owner == "" && len(parsed.Authors) > 0 && parsed.Authors[0] != nil {
		feed.Owner = strings.TrimSpace(parsed.Authors[0].Name)
	}

	feed.FundingURL, feed.FundingText = funding(parsed)
	feed.Categories = categoryTerms(parsed)

	for _, entry := range parsed.Items {
		item, err := p.buildItem(entry, now)
		if err != nil {
			slog.Debug("Skipping invalid item", "feed", title, "error", err)
			continue
		}
		feed.Items = append(feed.Items, item)
		if item.PubDate.After(feed.PubDate) {
			feed.PubDate = item.PubDate
		}
	}

	if len(feed.Items) == 0 {
		return nil, fmt.Errorf("no valid items in feed")
	}

	return feed, nil
}

func (p *Parser) buildItem(item *gofeed.Item, now time.Time) (Item, error) {
	guid := strings.TrimSpace(cmp.Or(item.GUID, item.Link))
	if guid == "" {
		return Item{}, fmt.Errorf("item has no guid")
	}

	title := strings.TrimSpace(item.Title)
	if title == "" {
		return Item{}, fmt.Errorf("item %q has no title", guid)
	}

	pubDate, err := PubDate(item.Published, item.PublishedParsed, now)
	if err != nil {
		return Item{}, fmt.Errorf("item %q: %w", guid, err)
	}

	mediaURL, mediaType, lengthValue := selectEnclosure(item)
	if mediaURL == "" {
		return Item{}, fmt.Errorf("item %q has no audio enclosure", guid)
	}

	normalized := Item{
		GUID:        guid,
		Title:       title,
		Link:        URL(item.Link),
		PubDate:     pubDate,
		MediaURL:    mediaURL,
		MediaType:   mediaType,
		Description: cmp.Or(strings.TrimSpace(item.Content), strings.TrimSpace(item.Description)),
		EpisodeType: "full",
		Keywords:    strings.Join(item.Categories, " "),
	}

	if parsed := PGInteger(lengthValue); parsed != nil {
		length := int64(*parsed)
		normalized.Length = &length
	}

	if itunes := item.ITunesExt; itunes != nil {
		normalized.Duration = Duration(itunes.Duration)
		normalized.Explicit = Explicit(itunes.Explicit)
		normalized.Season = PGInteger(itunes.Season)
		normalized.Episode = PGInteger(itunes.Episode)
		normalized.CoverURL = URL(itunes.Image)
		if episodeType := strings.TrimSpace(itunes.EpisodeType); episodeType != "" {
			normalized.EpisodeType = episodeType
		}
		if normalized.Description == "" {
			normalized.Description = strings.TrimSpace(itunes.Summary)
		}
	}
	if normalized.CoverURL == "" && item.Image != nil {
		normalized.CoverURL = URL(item.Image.URL)
	}

	return normalized, nil
}

// selectEnclosure picks the first audio enclosure, falling back to
// media:content elements when the feed carries none.
func selectEnclosure(item *gofeed.Item) (mediaURL, mediaType, length string) {
	for _, enclosure := range item.Enclosures {
		if enclosure == nil {
			continue
		}
		if url := URL(enclosure.URL); url != "" && IsAudio(enclosure.Type) {
			return url, enclosure.Type, enclosure.Length
		}
	}

	for _, content := range extensionElements(item.Extensions, "media", "content") {
		url := URL(content.Attrs["url"])
		mimeType := content.Attrs["type"]
		if url != "" && IsAudio(mimeType) {
			return url, mimeType, content.Attrs["fileSize"]
		}
	}

	return "", "", ""
}

func funding(parsed *gofeed.Feed) (fundingURL, fundingText string) {
	for _, element := range extensionElements(parsed.Extensions, "podcast", "funding") {
		if url := URL(element.Attrs["url"]); url != "" {
			return url, strings.TrimSpace(element.Value)
		}
	}
	return "", ""
}

func categoryTerms(parsed *gofeed.Feed) []string {
	var terms []string
	seen := make(map[string]bool)

	add := func(term string) {
		term = strings.TrimSpace(term)
		if term == "" || seen[term] {
			return
		}
		seen[term] = true
		terms = append(terms, term)
	}

	if itunes := parsed.ITunesExt; itunes != nil {
		for _, category := range itunes.Categories {
			if category == nil {
				continue
			}
			add(category.Text)
			if category.Subcategory != nil {
				add(category.Subcategory.Text)
			}
		}
	}
	for _, term := range parsed.Categories {
		add(term)
	}

	return terms
}

func ownerName(owner *ext.ITunesOwner) string {
	if owner == nil {
		return ""
	}
	return strings.TrimSpace(owner.Name)
}

func extensionElements(extensions ext.Extensions, namespace, name string) []ext.Extension {
	if extensions == nil {
		return nil
	}
	return extensions[namespace][name]
}
