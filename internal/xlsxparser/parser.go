// =============================================================================
// Subscription Flow Audit - XLSX Export Parser
// =============================================================================
//
// Some stores hand over their order export as a workbook instead of a CSV.
// This parser reads one sheet of such a workbook into the same header-keyed
// row shape the CSV parser produces, so the ingest stage does not care which
// format a source came in.
//
// SHEET LAYOUT:
//   Row 1 holds the column headers (same names as the CSV export); every
//   following non-blank row is one line item.
//
// =============================================================================

package xlsxparser

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/subscription-flow-audit/internal/csvparser"
)

// Parse reads sheet from the workbook at path. An empty sheet name selects
// the first sheet.
//
// RETURNS:
//   - The parsed rows, in the csvparser.Data shape.
//   - An error if the workbook cannot be opened or the sheet is missing.
//     A sheet without any rows yields csvparser.ErrEmptyFile.
func Parse(path, sheet string) (*csvparser.Data, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheet = f.GetSheetName(0)
		if sheet == "" {
			return nil, fmt.Errorf("%s: workbook has no sheets", path)
		}
	}

	if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		return nil, fmt.Errorf("%s: sheet %q not found", path, sheet)
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read rows: %w", path, err)
	}

	return fromRows(rows, path)
}

// fromRows converts raw sheet rows, header row first.
func fromRows(rows [][]string, name string) (*csvparser.Data, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: %w", name, csvparser.ErrEmptyFile)
	}

	headers := csvparser.CleanHeaders(rows[0])

	data := &csvparser.Data{
		Headers:    headers,
		Rows:       make([]csvparser.Row, 0, len(rows)-1),
		SourceFile: name,
	}

	for i := 1; i < len(rows); i++ {
		if len(rows[i]) == 0 || csvparser.IsRowEmpty(rows[i]) {
			continue
		}
		data.Rows = append(data.Rows, csvparser.Row{
			Number: i + 1,
			Values: csvparser.RowMap(headers, rows[i]),
		})
	}

	return data, nil
}
