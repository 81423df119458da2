// =============================================================================
// Subscription Flow Audit - Diagnostics
// =============================================================================
//
// Data problems never abort a run. Each stage reports them as Diagnostic
// values; the engine logs them and hands them to the reports.
//
// ERROR HANDLING STRATEGY:
//   - Diagnostics are collected, not returned as Go errors
//   - Each diagnostic carries context (source, row, order, code)
//   - Severity "warning" marks a genuine data discrepancy
//   - Severity "info" marks a tolerated condition (defaulted number, etc.)
//
// =============================================================================

package diagnostics

import (
	"fmt"
	"sort"
	"strings"
)

// =============================================================================
// SEVERITY AND CODES
// =============================================================================

// Severity of a diagnostic.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Code is a stable identifier for a kind of diagnostic.
type Code string

const (
	// MalformedNumber: quantity, price or total could not be parsed; 0 used.
	MalformedNumber Code = "malformed_number"

	// MissingSubscriptionLine: a box was detected but no item carries the
	// literal "Subscription" marker.
	MissingSubscriptionLine Code = "missing_subscription_line"

	// UnknownSubscriptionLine: the authoritative subscription line does not
	// resolve to a known box type.
	UnknownSubscriptionLine Code = "unknown_subscription_line"

	// MissingPrimaryBra: no item satisfies the box's bra rule.
	MissingPrimaryBra Code = "missing_primary_bra"

	// MissingPrimaryPanty: a bra was found but no panty.
	MissingPrimaryPanty Code = "missing_primary_panty"

	// DuplicateSource: two sources have identical content.
	DuplicateSource Code = "duplicate_source"
)

// =============================================================================
// DIAGNOSTIC
// =============================================================================

// Diagnostic is one non-fatal finding.
type Diagnostic struct {
	Severity Severity
	Code     Code

	// Source and Row locate row-level findings; Row is 0 when not applicable.
	Source string
	Row    int

	// OrderID is empty for source-level findings.
	OrderID string

	Message string
}

// Warning returns a warning for an order.
func Warning(code Code, source, orderID, format string, args ...interface{}) Diagnostic {
	return Diagnostic{
		Severity: SeverityWarning,
		Code:     code,
		Source:   source,
		OrderID:  orderID,
		Message:  fmt.Sprintf(format, args...),
	}
}

// String renders the diagnostic for logs and reports.
func (d Diagnostic) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", strings.ToUpper(string(d.Severity)), d.Code)
	if d.OrderID != "" {
		fmt.Fprintf(&b, " order %s", d.OrderID)
	}
	if d.Source != "" {
		fmt.Fprintf(&b, " (%s", d.Source)
		if d.Row > 0 {
			fmt.Fprintf(&b, ":%d", d.Row)
		}
		b.WriteString(")")
	}
	if d.Message != "" {
		fmt.Fprintf(&b, ": %s", d.Message)
	}
	return b.String()
}

// =============================================================================
// COLLECTOR
// =============================================================================

// Collector accumulates diagnostics in report order. The zero value is ready
// to use. It is not safe for concurrent use.
type Collector struct {
	items []Diagnostic
}

// Add records d.
func (c *Collector) Add(d Diagnostic) {
	c.items = append(c.items, d)
}

// Warn records a warning for an order.
func (c *Collector) Warn(code Code, source, orderID, format string, args ...interface{}) {
	c.Add(Warning(code, source, orderID, format, args...))
}

// Info records an informational finding.
func (c *Collector) Info(code Code, source string, row int, format string, args ...interface{}) {
	c.Add(Diagnostic{
		Severity: SeverityInfo,
		Code:     code,
		Source:   source,
		Row:      row,
		Message:  fmt.Sprintf(format, args...),
	})
}

// Merge appends every diagnostic of other.
func (c *Collector) Merge(other []Diagnostic) {
	c.items = append(c.items, other...)
}

// All returns the collected diagnostics.
func (c *Collector) All() []Diagnostic {
	out := make([]Diagnostic, len(c.items))
	copy(out, c.items)
	return out
}

// Len returns the number of diagnostics collected.
func (c *Collector) Len() int {
	return len(c.items)
}

// CountBySeverity returns how many diagnostics have severity s.
func (c *Collector) CountBySeverity(s Severity) int {
	n := 0
	for _, d := range c.items {
		if d.Severity == s {
			n++
		}
	}
	return n
}

// CodeCount is the number of diagnostics sharing a code.
type CodeCount struct {
	Code  Code
	Count int
}

// CountByCode returns per-code totals sorted by code.
func (c *Collector) CountByCode() []CodeCount {
	counts := make(map[Code]int)
	for _, d := range c.items {
		counts[d.Code]++
	}

	out := make([]CodeCount, 0, len(counts))
	for code, n := range counts {
		out = append(out, CodeCount{Code: code, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}
