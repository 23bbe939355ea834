package catalog

import (
	"encoding/json"
	"fmt"
)

// MergeResult reports the outcome of prepending records to a collection.
type MergeResult struct {
	Added []MediaRecord
	Total int
}

// Merge prepends the records whose ids are not already present in the
// collection, newest first, then truncates the collection to maxRetained
// (when positive). Duplicates within records are dropped as well.
func (d Document) Merge(collection string, records []MediaRecord, maxRetained int) (MergeResult, error) {
	existing, err := d.RawRecords(collection)
	if err != nil {
		return MergeResult{}, err
	}

	seen := make(map[string]struct{}, len(existing)+len(records))
	for _, item := range existing {
		if id := recordID(item); id != "" {
			seen[id] = struct{}{}
		}
	}

	var added []MediaRecord
	fresh := make([]json.RawMessage, 0, len(records))
	for _, rec := range records {
		if rec.ID == "" {
			continue
		}
		if _, dup := seen[rec.ID]; dup {
			continue
		}
		seen[rec.ID] = struct{}{}
		b, err := json.Marshal(rec)
		if err != nil {
			return MergeResult{}, fmt.Errorf("encode record %s: %w", rec.ID, err)
		}
		fresh = append(fresh, b)
		added = append(added, rec)
	}

	combined := append(fresh, existing...)
	if maxRetained > 0 && len(combined) > maxRetained {
		combined = combined[:maxRetained]
		if len(added) > maxRetained {
			added = added[:maxRetained]
		}
	}
	if err := d.SetRaw(collection, combined); err != nil {
		return MergeResult{}, err
	}
	return MergeResult{Added: added, Total: len(combined)}, nil
}
