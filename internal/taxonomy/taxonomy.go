// Package taxonomy holds the fixed photo category enumeration and the gallery filter.
package taxonomy

import "strings"

// AllCategories is the filter sentinel that passes every photo through.
// It is never a valid category for a record.
const AllCategories = "All Categories"

// Legacy is the first category set. Every value is still part of Categories.
var Legacy = []string{
	"Birthday",
	"Holiday",
	"Work",
	"School",
	"Friends",
	"College Friends",
}

// Categories is the current enumeration offered by the upload and edit forms.
var Categories = []string{
	"Birthday",
	"Holiday",
	"Work",
	"School",
	"Friends",
	"College Friends",
	"Travel",
	"Nature",
	"Landscape",
	"Portrait",
	"Street",
	"Architecture",
	"Wildlife",
	"Food",
	"Festival",
	"Family",
	"Wedding",
	"Events",
	"Sports",
	"Night",
	"Monochrome",
	"Macro",
	"Sunset",
	"Urban",
	"Culture",
	"Temple",
	"Village",
	"Rain",
	"Music",
	"Art",
}

var current = func() map[string]struct{} {
	set := make(map[string]struct{}, len(Categories))
	for _, c := range Categories {
		set[c] = struct{}{}
	}
	return set
}()

// IsValid reports whether category may be written to a record.
func IsValid(category string) bool {
	_, ok := current[category]
	return ok
}

// IsSentinel reports whether category is the "all" filter value or empty.
func IsSentinel(category string) bool {
	trimmed := strings.TrimSpace(category)
	return trimmed == "" || trimmed == AllCategories
}

// Filter narrows items to a single category, preserving order. The sentinel returns items
// unchanged. Records holding a category that has since left the taxonomy still match by
// exact string.
func Filter[T any](items []T, category string, categoryOf func(T) string) []T {
	if IsSentinel(category) {
		return items
	}
	out := make([]T, 0, len(items))
	for _, item := range items {
		if categoryOf(item) == category {
			out = append(out, item)
		}
	}
	return out
}
