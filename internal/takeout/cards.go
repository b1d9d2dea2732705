package takeout

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"
)

// Card is the structured content of one activity entry.
type Card struct {
	// Text is the visible content, NFKD-normalized and whitespace-joined.
	Text string
	// Details is the value following the "Details:" caption label, if any.
	Details string
	// MapHref is the first map-search link in the entry, if any.
	MapHref string
}

// CardFinder extracts activity cards from an export document.
type CardFinder interface {
	FindCards(r io.Reader) ([]Card, error)
}

// HTMLCardFinder reads the "My Activity" HTML export, where every entry is a
// div.outer-cell holding a div.content-cell.
type HTMLCardFinder struct{}

// FindCards implements CardFinder.
func (HTMLCardFinder) FindCards(r io.Reader) ([]Card, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse activity html: %w", err)
	}

	var cards []Card
	doc.Find("div.outer-cell").Each(func(_ int, cell *goquery.Selection) {
		card := Card{
			Text:    normalizeText(joinedText(cell.Find("div.content-cell").First())),
			Details: normalizeText(detailsText(cell)),
		}
		if href, ok := cell.Find(`a[href*="maps/search"]`).First().Attr("href"); ok {
			card.MapHref = href
		}
		cards = append(cards, card)
	})
	return cards, nil
}

// joinedText concatenates the trimmed text nodes under sel with single spaces.
func joinedText(sel *goquery.Selection) string {
	var parts []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if text := strings.TrimSpace(n.Data); text != "" {
				parts = append(parts, text)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range sel.Nodes {
		walk(n)
	}
	return strings.Join(parts, " ")
}

// detailsText returns the text right after the <br> that follows <b>Details:</b>
// in the caption cell.
func detailsText(cell *goquery.Selection) string {
	label := cell.Find(".mdl-typography--caption b").FilterFunction(func(_ int, b *goquery.Selection) bool {
		return strings.TrimSpace(b.Text()) == "Details:"
	}).First()
	if label.Length() == 0 {
		return ""
	}

	for n := label.Nodes[0].NextSibling; n != nil; n = n.NextSibling {
		if n.Type == html.ElementNode && n.Data == "br" {
			if next := n.NextSibling; next != nil && next.Type == html.TextNode {
				return strings.TrimSpace(next.Data)
			}
			return ""
		}
	}
	return ""
}

func normalizeText(s string) string {
	return norm.NFKD.String(s)
}
