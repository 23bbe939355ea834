package catalog

import (
	"encoding/json"
	"fmt"
)

// Document is the aggregate catalog. Collections other than the one being
// edited are carried through untouched, so unknown keys survive a round trip.
type Document map[string]json.RawMessage

// ParseDocument decodes a stored catalog. An empty input yields an empty document.
func ParseDocument(raw []byte) (Document, error) {
	doc := Document{}
	if len(raw) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode catalog document: %w", err)
	}
	if doc == nil {
		doc = Document{}
	}
	return doc, nil
}

// Records decodes the named collection. A missing or null collection is empty.
func (d Document) Records(collection string) ([]MediaRecord, error) {
	raw, ok := d[collection]
	if !ok || len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var records []MediaRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("decode collection %q: %w", collection, err)
	}
	return records, nil
}

// RawRecords returns the collection as raw items so fields this service does
// not model survive a merge.
func (d Document) RawRecords(collection string) ([]json.RawMessage, error) {
	raw, ok := d[collection]
	if !ok || len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decode collection %q: %w", collection, err)
	}
	return items, nil
}

func (d Document) SetRaw(collection string, items []json.RawMessage) error {
	if items == nil {
		items = []json.RawMessage{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode collection %q: %w", collection, err)
	}
	d[collection] = b
	return nil
}

func (d Document) Marshal() ([]byte, error) {
	return json.Marshal(d)
}

// recordID extracts the id field of a raw collection item.
func recordID(item json.RawMessage) string {
	var probe struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(item, &probe); err != nil || len(probe.ID) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(probe.ID, &s); err == nil {
		return s
	}
	// Some editors store numeric ids.
	return string(probe.ID)
}
