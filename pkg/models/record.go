package models

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrNotFound is returned by stores and readers when no record exists for
// the requested type.
var ErrNotFound = errors.New("price record not found")

// PriceRecord represents one quoted gold instrument. Field names follow the
// wire payload.
type PriceRecord struct {
	Type      string `json:"type"`                 // unique key, e.g. "gold_7"
	Name      string `json:"name"`                 // display label
	Karat     string `json:"karat"`                // opaque grade attribute
	Purity    string `json:"purity"`               // opaque grade attribute
	BuyPrice  int64  `json:"buy_price"`            // whole currency units, >= 0
	SellPrice *int64 `json:"sell_price,omitempty"` // nil means not quoted for sale
	UpdatedAt string `json:"updated_at"`           // source-supplied timestamp, opaque token
}

// RecordSet is one full fetch cycle: the latest record per type.
// Transport order carries no meaning; comparisons are keyed by Type.
type RecordSet []PriceRecord

// Sell is a convenience constructor for the optional sell price.
func Sell(v int64) *int64 { return &v }

// ByType returns the set as a map keyed by Type. Later entries win on
// duplicate keys.
func (s RecordSet) ByType() map[string]PriceRecord {
	m := make(map[string]PriceRecord, len(s))
	for _, r := range s {
		m[r.Type] = r
	}
	return m
}

// Get returns the record for the given type, if present.
func (s RecordSet) Get(typ string) (PriceRecord, bool) {
	for _, r := range s {
		if r.Type == typ {
			return r, true
		}
	}
	return PriceRecord{}, false
}

// Changed reports whether next differs from prev on the business fields.
// A nil prev means no prior observation and always counts as changed; an
// empty non-nil prev compares by the normal rules. The comparison is a set
// comparison keyed by Type: any cardinality mismatch, type missing from
// prev, or difference in buy price, sell price or updated_at is a change.
// Equality is exact, there is no tolerance on prices.
func Changed(next, prev RecordSet) bool {
	if prev == nil {
		return true
	}
	if len(next) != len(prev) {
		return true
	}
	old := prev.ByType()
	for _, r := range next {
		o, ok := old[r.Type]
		if !ok {
			return true
		}
		if r.BuyPrice != o.BuyPrice || r.UpdatedAt != o.UpdatedAt || !sellEqual(r.SellPrice, o.SellPrice) {
			return true
		}
	}
	return false
}

func sellEqual(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// Validate checks the fields that must hold for a record to enter the
// pipeline.
func (r PriceRecord) Validate() error {
	if strings.TrimSpace(r.Type) == "" {
		return errors.New("record type must not be empty")
	}
	if r.BuyPrice < 0 {
		return fmt.Errorf("record %s: buy price must not be negative", r.Type)
	}
	if r.SellPrice != nil && *r.SellPrice < 0 {
		return fmt.Errorf("record %s: sell price must not be negative", r.Type)
	}
	return nil
}

// Normalize validates every record, collapses duplicate types (last entry
// wins) and returns the set in stable Type order. It is applied at every
// ingestion boundary so the rest of the pipeline only ever sees well-formed
// sets.
func Normalize(in RecordSet) (RecordSet, error) {
	for _, r := range in {
		if err := r.Validate(); err != nil {
			return nil, err
		}
	}
	byType := in.ByType()
	out := make(RecordSet, 0, len(byType))
	for _, r := range byType {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out, nil
}
