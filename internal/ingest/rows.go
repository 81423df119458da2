// =============================================================================
// Subscription Flow Audit - Row Mapping
// =============================================================================
//
// Maps parsed export rows onto line items.
//
// COLUMN CONTRACT (names are exact and must not be renamed):
//   Name               order identifier
//   Lineitem name      dash-delimited product name
//   Lineitem quantity  integer quantity
//   Lineitem price     unit price
//   Total              line total
//   Discount Code      optional discount code
//
// NUMBER HANDLING:
//   Missing numbers default to 0 silently. Present but malformed numbers
//   also default to 0 and produce an info diagnostic; they never fail the
//   run. Negative quantities are clamped to 0.
//
// =============================================================================

package ingest

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/subscription-flow-audit/internal/catalog"
	"github.com/ginjaninja78/subscription-flow-audit/internal/csvparser"
	"github.com/ginjaninja78/subscription-flow-audit/internal/diagnostics"
	"github.com/ginjaninja78/subscription-flow-audit/internal/types"
)

// Export column names.
const (
	ColumnOrderID      = "Name"
	ColumnName         = "Lineitem name"
	ColumnQuantity     = "Lineitem quantity"
	ColumnPrice        = "Lineitem price"
	ColumnTotal        = "Total"
	ColumnDiscountCode = "Discount Code"
)

// RequiredColumns are the columns every export must carry.
var RequiredColumns = []string{
	ColumnName, ColumnQuantity, ColumnPrice, ColumnTotal, ColumnDiscountCode, ColumnOrderID,
}

// MapRows converts every row of data into a line item.
//
// PARAMETERS:
//   - data: The parsed export.
//   - date: The date the export covers.
//   - sourceIndex: Position of the source in the run.
//   - diags: Receives malformed-number diagnostics.
func MapRows(data *csvparser.Data, date time.Time, sourceIndex int, diags *diagnostics.Collector) []types.LineItem {
	items := make([]types.LineItem, 0, len(data.Rows))
	for _, row := range data.Rows {
		items = append(items, mapRow(row, data.SourceFile, date, sourceIndex, diags))
	}
	return items
}

func mapRow(row csvparser.Row, source string, date time.Time, sourceIndex int, diags *diagnostics.Collector) types.LineItem {
	raw := row.Get(ColumnName)
	name := catalog.ParseName(raw)

	item := types.LineItem{
		Date:        date,
		RawName:     raw,
		Subtype:     name.Subtype,
		Product:     name.Product,
		Variant:     name.Variant,
		OrderID:     row.Get(ColumnOrderID),
		Source:      source,
		SourceIndex: sourceIndex,
		RowNumber:   row.Number,
	}

	item.Quantity = parseQuantity(row, source, diags)
	item.UnitPrice = parseDecimal(row, ColumnPrice, source, diags)
	item.LineTotal = parseDecimal(row, ColumnTotal, source, diags)

	if code := row.Get(ColumnDiscountCode); code != "" {
		item.DiscountCode = &code
	}
	return item
}

func parseQuantity(row csvparser.Row, source string, diags *diagnostics.Collector) int {
	raw := row.Get(ColumnQuantity)
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		// Spreadsheet round-trips turn "2" into "2.0".
		d, derr := decimal.NewFromString(raw)
		if derr != nil || !d.Equal(d.Truncate(0)) {
			diags.Info(diagnostics.MalformedNumber, source, row.Number,
				"%s %q is not an integer; using 0", ColumnQuantity, raw)
			return 0
		}
		n = int(d.IntPart())
	}
	if n < 0 {
		return 0
	}
	return n
}

func parseDecimal(row csvparser.Row, column, source string, diags *diagnostics.Collector) decimal.Decimal {
	raw := strings.TrimSpace(row.Get(column))
	if raw == "" {
		return decimal.Zero
	}
	raw = strings.ReplaceAll(strings.TrimPrefix(raw, "$"), ",", "")
	d, err := decimal.NewFromString(raw)
	if err != nil {
		diags.Info(diagnostics.MalformedNumber, source, row.Number,
			"%s %q is not a number; using 0", column, row.Get(column))
		return decimal.Zero
	}
	return d
}
