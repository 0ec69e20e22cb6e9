package extract

import (
	"dwarchive/pkg/models"

	"github.com/PuerkitoBio/goquery"
	goerrors "github.com/go-errors/errors"
)

// FeedbackExtractor collects ratings from a seller's feedback pages
type FeedbackExtractor struct {
	ratings []models.Rating
}

// NewFeedbackExtractor returns an extractor with no ratings
func NewFeedbackExtractor() *FeedbackExtractor {
	return &FeedbackExtractor{ratings: []models.Rating{}}
}

// Ratings returns everything collected so far, in page order
func (e *FeedbackExtractor) Ratings() []models.Rating {
	return e.ratings
}

// Extract reads one feedback page. The first table row is the header.
// Unlike listing pages, a feedback page without its table is malformed.
func (e *FeedbackExtractor) Extract(body []byte) ([]string, error) {
	doc, err := parseDocument(body)
	if err != nil {
		return nil, err
	}

	table := doc.Find("table#feedback").First()
	if table.Length() == 0 {
		return nil, goerrors.New("feedback table missing")
	}

	rows := table.Find("tr")
	if rows.Length() < 2 {
		return nextPages(doc), nil
	}

	var page []models.Rating
	var rowErr error
	rows.Slice(1, goquery.ToEnd).EachWithBreak(func(i int, row *goquery.Selection) bool {
		cells := row.ChildrenFiltered("td")
		if cells.Length() < 4 {
			rowErr = goerrors.Errorf("rating row %d: expected 4 cells, got %d", i+1, cells.Length())
			return false
		}
		page = append(page, models.Rating{
			Stars:  cells.Eq(0).Find("img").Length(),
			Text:   nonNil(strippedStrings(cells.Eq(1))),
			Author: cellText(cells.Eq(2)),
			Date:   cellText(cells.Eq(3)),
		})
		return true
	})
	if rowErr != nil {
		return nil, rowErr
	}

	// A page is kept whole or not at all.
	e.ratings = append(e.ratings, page...)
	return nextPages(doc), nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
