// =============================================================================
// Subscription Flow Audit - Garment Categorizer
// =============================================================================
//
// Pure classification of a product name into bra / panty / other.
//
// RULES:
//   - IsBra and IsPanty are plain, case-sensitive substring checks against
//     keyword tables. A name can satisfy both (combination products).
//   - IsSkipped flags administrative names (subscription, renewal terms).
//     Skipped names are excluded from garment categorization entirely,
//     whatever keywords they contain.
//
// =============================================================================

package garment

import (
	"strings"

	"github.com/ginjaninja78/subscription-flow-audit/internal/types"
)

// =============================================================================
// KEYWORD TABLES
// =============================================================================

// BraKeywords mark a name as a bra.
var BraKeywords = []string{"Bra", "Bralette", "Balconette"}

// PantyKeywords mark a name as a panty.
var PantyKeywords = []string{"Panty", "Brief", "Thong", "High", "Bikini", "Cheeky"}

// SkipKeywords are matched against the lower-cased name.
var SkipKeywords = []string{"subscription", "quarterly", "semi annual", "semi-annual", "auto renew"}

// =============================================================================
// PREDICATES
// =============================================================================

// IsBra reports whether name contains a bra keyword.
func IsBra(name string) bool {
	return containsAny(name, BraKeywords)
}

// IsPanty reports whether name contains a panty keyword.
func IsPanty(name string) bool {
	return containsAny(name, PantyKeywords)
}

// IsSkipped reports whether name is administrative rather than a garment.
func IsSkipped(name string) bool {
	return containsAny(strings.ToLower(name), SkipKeywords)
}

// Categorize returns a single display category for name.
//
// The predicates never arbitrate; Categorize is the one caller-side
// convention used by the reports. Skipped names are Other, and a name
// matching both predicates is shown as Bra. Graph building applies IsBra
// and IsPanty directly.
func Categorize(name string) types.GarmentCategory {
	switch {
	case IsSkipped(name):
		return types.Other
	case IsBra(name):
		return types.Bra
	case IsPanty(name):
		return types.Panty
	default:
		return types.Other
	}
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
