package entity

import (
	"fmt"
	"slices"
	"sort"
	"time"
)

// Conditions условия выборки документов одного типа.
// Все заданные условия объединяются через AND.
type Conditions struct {
	IDs          []string
	Equals       map[string]any
	In           map[string][]string
	Linked       string // integrations[Linked] существует
	LinkedID     string // integrations[Linked].id == LinkedID
	UpdatedAfter time.Time
	WithDeleted  bool
}

// Match проверяет документ на соответствие условиям
func (c Conditions) Match(d *Datum) bool {
	if d == nil {
		return false
	}
	if d.Deleted && !c.WithDeleted {
		return false
	}
	if c.IDs != nil && !slices.Contains(c.IDs, d.ID) {
		return false
	}
	for field, want := range c.Equals {
		if !equalValues(d.Fields[field], want) {
			return false
		}
	}
	for field, allowed := range c.In {
		s, ok := d.Fields[field].(string)
		if !ok || !slices.Contains(allowed, s) {
			return false
		}
	}
	if c.Linked != "" {
		l, ok := d.LinkFor(c.Linked)
		if !ok {
			return false
		}
		if c.LinkedID != "" && l.ID != c.LinkedID {
			return false
		}
	}
	if !c.UpdatedAfter.IsZero() && !d.UpdatedAt.After(c.UpdatedAfter) {
		return false
	}
	return true
}

func equalValues(got, want any) bool {
	if got == nil || want == nil {
		return got == want
	}
	return fmt.Sprint(got) == fmt.Sprint(want)
}

// Apply сортирует и обрезает выборку согласно опциям
func (o QueryOptions) Apply(data []*Datum) []*Datum {
	if o.SortBy != "" {
		sort.SliceStable(data, func(i, j int) bool {
			a, b := data[i].Fields[o.SortBy], data[j].Fields[o.SortBy]
			if o.Desc {
				return lessValues(b, a)
			}
			return lessValues(a, b)
		})
	}
	// нулевой лимит означает выборку без ограничения
	if o.Limit > 0 && len(data) > o.Limit {
		data = data[:o.Limit]
	}
	return data
}

func lessValues(a, b any) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af < bf
	}
	if aok != bok {
		return aok
	}
	return fmt.Sprint(a) < fmt.Sprint(b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
