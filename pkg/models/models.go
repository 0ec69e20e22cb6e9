package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Price is a listing price as shown on the seller's product table
type Price struct {
	Amount float64 `json:"amount"`
	Unit   string  `json:"unit"`
}

// Rating is one row of a seller's feedback table
type Rating struct {
	Stars  int      `json:"stars"`
	Text   []string `json:"text"`
	Author string   `json:"author"`
	Date   string   `json:"date"`
}

// Product is a seller listing. It starts as a summary scraped from the
// product table and is later merged with the full detail document.
type Product struct {
	ID    string
	SKU   *string
	Title string
	Price Price

	detail *Object
}

// Merge returns a copy of p carrying every field of detail. Detail fields
// replace summary fields of the same name, except the id.
func (p Product) Merge(detail *Object) Product {
	merged := p
	merged.detail = detail
	return merged
}

// Detail returns the merged detail document, or nil before Merge
func (p Product) Detail() *Object {
	return p.detail
}

// Images returns the image descriptors listed in the product's detail
func (p Product) Images() ([]Image, error) {
	if p.detail == nil {
		return nil, nil
	}
	raw, ok := p.detail.Get("product_images_attributes")
	if !ok || isNull(raw) {
		return nil, nil
	}

	var attrs []struct {
		ID        json.RawMessage `json:"id"`
		GUID      json.RawMessage `json:"guid"`
		URL       string          `json:"url"`
		Extension string          `json:"extension"`
	}
	if err := json.Unmarshal(raw, &attrs); err != nil {
		return nil, fmt.Errorf("product %s: invalid product_images_attributes: %w", p.ID, err)
	}

	images := make([]Image, 0, len(attrs))
	for _, a := range attrs {
		id := scalarString(a.ID)
		if id == "" {
			id = scalarString(a.GUID)
		}
		images = append(images, Image{
			ProductID: p.ID,
			ID:        id,
			URL:       a.URL,
			Extension: a.Extension,
		})
	}
	return images, nil
}

// MarshalJSON writes the summary fields followed by the detail fields in
// document order. A detail field named like a summary field takes its
// slot; the id always stays the summary id.
func (p Product) MarshalJSON() ([]byte, error) {
	out := NewObject()

	id, err := json.Marshal(p.ID)
	if err != nil {
		return nil, err
	}
	out.Set("id", id)

	sku := []byte("null")
	if p.SKU != nil {
		if sku, err = json.Marshal(*p.SKU); err != nil {
			return nil, err
		}
	}
	out.Set("sku", sku)

	title, err := json.Marshal(p.Title)
	if err != nil {
		return nil, err
	}
	out.Set("title", title)

	price, err := json.Marshal(p.Price)
	if err != nil {
		return nil, err
	}
	out.Set("price", price)

	if p.detail != nil {
		for _, key := range p.detail.Keys() {
			if key == "id" {
				continue
			}
			value, _ := p.detail.Get(key)
			out.Set(key, value)
		}
	}

	return out.MarshalJSON()
}

// Image is a product image referenced by the product detail
type Image struct {
	ProductID string
	ID        string
	URL       string
	Extension string
}

// EntryName is the archive path the image is stored under
func (i Image) EntryName() string {
	ext := strings.ToLower(i.Extension)
	if ext == "" {
		ext = "dat"
	}
	return "product_images/" + i.ID + "." + ext
}

func isNull(raw json.RawMessage) bool {
	return len(bytes.TrimSpace(raw)) == 0 || string(bytes.TrimSpace(raw)) == "null"
}

// scalarString renders a JSON string or number as plain text. Empty, null,
// false and zero values come back empty so a fallback can be used.
func scalarString(raw json.RawMessage) string {
	if isNull(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&n); err == nil {
		if f, err := n.Float64(); err == nil && f == 0 {
			return ""
		}
		return n.String()
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil && b {
		return strconv.FormatBool(b)
	}
	return ""
}
