// =============================================================================
// Subscription Flow Audit - Subscription Type Resolver
// =============================================================================
//
// Maps a free-text product name onto one of the known subscription boxes.
//
// Every box carries two rules, kept together in one ranked table so the
// tie-break order is data rather than control flow:
//
//   | Type           | Detected by (lower-case substring)     | Primary bra must contain |
//   |----------------|----------------------------------------|--------------------------|
//   | ReliefBraSet   | "relief bra set subscription"          | "Relief Bra"             |
//   | SupportBraSet  | "custom support bra set subscription"  | "Bralette"               |
//   | SheerBraSet    | "custom sheer bra set subscription"    | "Mesh" and "Bralette"    |
//   | WirelessBraSet | "wireless bra set subscription"        | "Bralette"               |
//
// Detection is looser than the bra rule; the bra rule is only consulted by
// the flow graph builder when it picks an order's primary bra.
//
// =============================================================================

package subscription

import (
	"strings"

	"github.com/ginjaninja78/subscription-flow-audit/internal/types"
)

// LiteralMarker is the case-sensitive text carried by the subscription line
// item itself.
const LiteralMarker = "Subscription"

// Rule describes one subscription box.
type Rule struct {
	Type types.SubscriptionType

	// Pattern is matched against the lower-cased name.
	Pattern string

	// BraKeywords must all appear (case-sensitive) in the primary bra name.
	BraKeywords []string
}

// Rules is the ranked rule table. The first matching pattern wins.
var Rules = []Rule{
	{Type: types.ReliefBraSet, Pattern: "relief bra set subscription", BraKeywords: []string{"Relief Bra"}},
	{Type: types.SupportBraSet, Pattern: "custom support bra set subscription", BraKeywords: []string{"Bralette"}},
	{Type: types.SheerBraSet, Pattern: "custom sheer bra set subscription", BraKeywords: []string{"Mesh", "Bralette"}},
	{Type: types.WirelessBraSet, Pattern: "wireless bra set subscription", BraKeywords: []string{"Bralette"}},
}

// Resolve returns the subscription type named by name, or SubscriptionNone.
func Resolve(name string) types.SubscriptionType {
	lower := strings.ToLower(name)
	for _, r := range Rules {
		if strings.Contains(lower, r.Pattern) {
			return r.Type
		}
	}
	return types.SubscriptionNone
}

// RuleFor returns the rule of t. ok is false for SubscriptionNone.
func RuleFor(t types.SubscriptionType) (Rule, bool) {
	for _, r := range Rules {
		if r.Type == t {
			return r, true
		}
	}
	return Rule{}, false
}

// MatchesBra reports whether name satisfies the primary bra rule of t.
// It does not check garment categorization; see garment.IsBra.
func MatchesBra(t types.SubscriptionType, name string) bool {
	r, ok := RuleFor(t)
	if !ok {
		return false
	}
	for _, kw := range r.BraKeywords {
		if !strings.Contains(name, kw) {
			return false
		}
	}
	return true
}

// IsLiteral reports whether name carries the literal subscription marker.
func IsLiteral(name string) bool {
	return strings.Contains(name, LiteralMarker)
}

// =============================================================================
// OBSERVED TYPES
// =============================================================================

// TypeSet collects the subscription types seen during a run, in first-seen
// order. The zero value is ready to use.
type TypeSet struct {
	seen  map[types.SubscriptionType]bool
	order []types.SubscriptionType
}

// Add records t. SubscriptionNone is ignored.
func (s *TypeSet) Add(t types.SubscriptionType) {
	if t == types.SubscriptionNone {
		return
	}
	if s.seen == nil {
		s.seen = make(map[types.SubscriptionType]bool)
	}
	if s.seen[t] {
		return
	}
	s.seen[t] = true
	s.order = append(s.order, t)
}

// Types returns the recorded types in first-seen order.
func (s *TypeSet) Types() []types.SubscriptionType {
	out := make([]types.SubscriptionType, len(s.order))
	copy(out, s.order)
	return out
}

// Len returns the number of distinct types recorded.
func (s *TypeSet) Len() int {
	return len(s.order)
}
