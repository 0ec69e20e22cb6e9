package extract

import (
	"strconv"
	"strings"

	"dwarchive/pkg/logger"
	"dwarchive/pkg/models"

	"github.com/PuerkitoBio/goquery"
	goerrors "github.com/go-errors/errors"
)

// ListingExtractor collects product summaries from the seller's product
// table pages.
type ListingExtractor struct {
	products *models.ProductSet
	logger   logger.Logger
}

// NewListingExtractor returns an extractor with an empty product set
func NewListingExtractor(log logger.Logger) *ListingExtractor {
	if log == nil {
		log = logger.GetLogger()
	}
	return &ListingExtractor{
		products: models.NewProductSet(),
		logger:   log,
	}
}

// Products returns everything collected so far
func (e *ListingExtractor) Products() *models.ProductSet {
	return e.products
}

// Extract reads one listing page. A page without a product table ends
// pagination: it yields no products and no links.
func (e *ListingExtractor) Extract(body []byte) ([]string, error) {
	doc, err := parseDocument(body)
	if err != nil {
		return nil, err
	}

	table := doc.Find("table#product_table").First()
	if table.Length() == 0 {
		return nil, nil
	}

	var page []models.Product
	var rowErr error
	table.Find("tbody").First().ChildrenFiltered("tr").EachWithBreak(func(i int, row *goquery.Selection) bool {
		product, err := parseListingRow(row)
		if err != nil {
			rowErr = goerrors.WrapPrefix(err, "row "+strconv.Itoa(i+1), 0)
			return false
		}
		page = append(page, product)
		return true
	})
	if rowErr != nil {
		return nil, rowErr
	}

	// A page is kept whole or not at all.
	for _, product := range page {
		if e.products.Put(product) {
			e.logger.WithField("product_id", product.ID).Warn("product encountered twice, keeping the later row")
		}
	}

	return nextPages(doc), nil
}

func parseListingRow(row *goquery.Selection) (models.Product, error) {
	cells := row.ChildrenFiltered("td")
	if cells.Length() < 3 {
		return models.Product{}, goerrors.Errorf("expected at least 3 cells, got %d", cells.Length())
	}

	id, ok := cells.Eq(0).Find("input").First().Attr("value")
	if !ok {
		return models.Product{}, goerrors.New("product id input missing")
	}

	info := cells.Eq(2)
	var title string
	if a := info.Find("a").First(); a.Length() > 0 {
		title = cellText(a)
	} else {
		strs := strippedStrings(info)
		if len(strs) == 0 {
			return models.Product{}, goerrors.Errorf("product %s has no title", id)
		}
		title = strs[0]
	}

	var sku *string
	if s := info.Find("div.product-sku").First(); s.Length() > 0 {
		text := cellText(s)
		sku = &text
	}

	price, err := parsePrice(row.Find("td span.money").First())
	if err != nil {
		return models.Product{}, goerrors.WrapPrefix(err, "product "+id, 0)
	}

	return models.Product{
		ID:    id,
		SKU:   sku,
		Title: title,
		Price: price,
	}, nil
}

func parsePrice(money *goquery.Selection) (models.Price, error) {
	if money.Length() == 0 {
		return models.Price{}, goerrors.New("price missing")
	}
	amountText := strings.TrimSpace(money.Find("span.amount").First().Text())
	amount, err := strconv.ParseFloat(amountText, 64)
	if err != nil {
		return models.Price{}, goerrors.Errorf("invalid price amount %q", amountText)
	}
	unit := money.Find("abbr.unit").First()
	if unit.Length() == 0 {
		return models.Price{}, goerrors.New("price unit missing")
	}
	return models.Price{Amount: amount, Unit: cellText(unit)}, nil
}
