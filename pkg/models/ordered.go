package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Object is a JSON object that remembers key order. Detail documents are
// archived as received, so their field order must survive a round trip.
type Object struct {
	keys   []string
	values map[string]json.RawMessage
}

// NewObject returns an empty Object
func NewObject() *Object {
	return &Object{values: make(map[string]json.RawMessage)}
}

// Set stores value under key. An existing key keeps its position.
func (o *Object) Set(key string, value json.RawMessage) {
	if _, ok := o.values[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.values[key] = value
}

// Get returns the raw value stored under key
func (o *Object) Get(key string) (json.RawMessage, bool) {
	v, ok := o.values[key]
	return v, ok
}

// Keys returns the keys in insertion order
func (o *Object) Keys() []string {
	out := make([]string, len(o.keys))
	copy(out, o.keys)
	return out
}

// Len returns the number of keys
func (o *Object) Len() int {
	return len(o.keys)
}

// UnmarshalJSON reads a JSON object, keeping the order of its keys
func (o *Object) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("expected JSON object, got %v", tok)
	}

	o.keys = nil
	o.values = make(map[string]json.RawMessage)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("expected object key, got %v", tok)
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("field %q: %w", key, err)
		}
		o.Set(key, value)
	}

	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}

// MarshalJSON writes the object with keys in insertion order
func (o *Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		value := o.values[key]
		if len(value) == 0 {
			value = json.RawMessage("null")
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ProductSet holds products keyed by id in first-seen order
type ProductSet struct {
	order []string
	byID  map[string]Product
}

// NewProductSet returns an empty set
func NewProductSet() *ProductSet {
	return &ProductSet{byID: make(map[string]Product)}
}

// Put stores p. If the id is already present the old record is replaced in
// place and Put reports true.
func (s *ProductSet) Put(p Product) bool {
	_, exists := s.byID[p.ID]
	if !exists {
		s.order = append(s.order, p.ID)
	}
	s.byID[p.ID] = p
	return exists
}

// Get returns the product with the given id
func (s *ProductSet) Get(id string) (Product, bool) {
	p, ok := s.byID[id]
	return p, ok
}

// Len returns the number of products
func (s *ProductSet) Len() int {
	return len(s.order)
}

// All returns the products in first-seen order
func (s *ProductSet) All() []Product {
	out := make([]Product, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out
}

// MarshalJSON writes the set as an object keyed by product id
func (s *ProductSet) MarshalJSON() ([]byte, error) {
	obj := NewObject()
	for _, id := range s.order {
		data, err := json.Marshal(s.byID[id])
		if err != nil {
			return nil, fmt.Errorf("product %s: %w", id, err)
		}
		obj.Set(id, data)
	}
	return obj.MarshalJSON()
}
