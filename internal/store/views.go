package store

import (
	"cmp"
	"slices"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/hpungsan/unicorns/internal/unicorn"
)

// PageSize is the number of records per page.
const PageSize = 5

// SortField is a record field the list can be sorted by.
type SortField string

const (
	SortByName  SortField = "name"
	SortByAge   SortField = "age"
	SortByColor SortField = "color"
)

// SortFields lists the sortable fields in display order.
var SortFields = []SortField{SortByName, SortByAge, SortByColor}

// Valid reports whether f names a sortable field.
func (f SortField) Valid() bool {
	return slices.Contains(SortFields, f)
}

// ParseSortField parses a field name case-insensitively.
func ParseSortField(s string) (SortField, bool) {
	f := SortField(strings.ToLower(strings.TrimSpace(s)))
	return f, f.Valid()
}

// SortOrder is the sort direction.
type SortOrder string

const (
	Asc  SortOrder = "asc"
	Desc SortOrder = "desc"
)

// ParseSortOrder parses "asc" or "desc" case-insensitively.
func ParseSortOrder(s string) (SortOrder, bool) {
	switch o := SortOrder(strings.ToLower(strings.TrimSpace(s))); o {
	case Asc, Desc:
		return o, true
	default:
		return o, false
	}
}

// Toggle returns the opposite direction.
func (o SortOrder) Toggle() SortOrder {
	if o == Asc {
		return Desc
	}
	return Asc
}

// sortRecords stable-sorts records in place and returns them. Age compares
// numerically; name and color compare with language-aware collation.
func sortRecords(records []unicorn.Unicorn, field SortField, order SortOrder, lang language.Tag) []unicorn.Unicorn {
	// Collators keep internal buffers, so each sort gets its own.
	col := collate.New(lang)

	slices.SortStableFunc(records, func(a, b unicorn.Unicorn) int {
		var c int
		switch field {
		case SortByAge:
			c = compareAge(a, b)
		case SortByColor:
			c = col.CompareString(a.Color, b.Color)
		default:
			c = col.CompareString(a.Name, b.Name)
		}
		if order == Desc {
			return -c
		}
		return c
	})
	return records
}

// compareAge orders unknown ages before known ones, then numerically.
func compareAge(a, b unicorn.Unicorn) int {
	if a.AgeKnown() != b.AgeKnown() {
		if a.AgeKnown() {
			return 1
		}
		return -1
	}
	return cmp.Compare(a.Age, b.Age)
}

// paginate returns page (1-based) of sorted. Pages outside the available
// range, including page < 1, are empty.
func paginate(sorted []unicorn.Unicorn, page int) []unicorn.Unicorn {
	start := (page - 1) * PageSize
	if page < 1 || start >= len(sorted) {
		return []unicorn.Unicorn{}
	}
	end := min(start+PageSize, len(sorted))
	return slices.Clone(sorted[start:end])
}

// totalPages is ceil(n / PageSize).
func totalPages(n int) int {
	return (n + PageSize - 1) / PageSize
}
