package extract

import (
	"encoding/json"
	"strings"

	"dwarchive/pkg/models"

	goerrors "github.com/go-errors/errors"
)

// ParseDetail returns the product document embedded in an edit page's
// script.product_data tag, field order intact.
func ParseDetail(body []byte) (*models.Object, error) {
	doc, err := parseDocument(body)
	if err != nil {
		return nil, err
	}

	script := doc.Find("script.product_data").First()
	if script.Length() == 0 {
		return nil, goerrors.New("product data script missing")
	}

	detail := models.NewObject()
	if err := json.Unmarshal([]byte(strings.TrimSpace(script.Text())), detail); err != nil {
		return nil, goerrors.WrapPrefix(err, "invalid product data", 0)
	}
	return detail, nil
}
