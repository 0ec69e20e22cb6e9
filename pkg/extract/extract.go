package extract

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
	goerrors "github.com/go-errors/errors"
	"golang.org/x/net/html"
)

const nextPageSelector = "div.pagination > a.next_page"

func parseDocument(body []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, goerrors.WrapPrefix(err, "failed to parse HTML", 0)
	}
	return doc, nil
}

// nextPages returns the href of every "next page" pagination anchor
func nextPages(doc *goquery.Document) []string {
	var links []string
	doc.Find(nextPageSelector).Each(func(_ int, a *goquery.Selection) {
		if href, ok := a.Attr("href"); ok && href != "" {
			links = append(links, href)
		}
	})
	return links
}

// strippedStrings returns every non-blank text node below the selection,
// trimmed, in document order.
func strippedStrings(sel *goquery.Selection) []string {
	var out []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if s := strings.TrimSpace(n.Data); s != "" {
				out = append(out, s)
			}
			return
		}
		if n.Type == html.CommentNode {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range sel.Nodes {
		walk(n)
	}
	return out
}

// cellText is the trimmed text content of a single cell
func cellText(sel *goquery.Selection) string {
	return strings.TrimSpace(sel.Text())
}
