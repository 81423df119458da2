package report

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/subscription-flow-audit/internal/garment"
)

// Sheet names of the audit workbook.
const (
	SheetOrders      = "Orders"
	SheetEdges       = "Edges"
	SheetDiagnostics = "Diagnostics"
	SheetFamilies    = "Families"
)

// BuildWorkbook renders in as an audit workbook. The caller closes the file.
func BuildWorkbook(in Input) (*excelize.File, error) {
	f := excelize.NewFile()

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	if err := f.SetSheetName("Sheet1", SheetOrders); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}
	for _, name := range []string{SheetEdges, SheetDiagnostics, SheetFamilies} {
		if _, err := f.NewSheet(name); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to create sheet %s: %w", name, err)
		}
	}

	sheets := []struct {
		name string
		rows [][]interface{}
	}{
		{SheetOrders, orderRows(in)},
		{SheetEdges, edgeRows(in)},
		{SheetDiagnostics, diagnosticRows(in)},
		{SheetFamilies, familyRows(in)},
	}

	for _, s := range sheets {
		if err := writeRows(f, s.name, s.rows, header); err != nil {
			f.Close()
			return nil, err
		}
	}

	f.SetActiveSheet(0)
	return f, nil
}

// WriteWorkbook renders in and saves it to path.
func WriteWorkbook(path string, in Input) error {
	f, err := BuildWorkbook(in)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}, headerStyle int) error {
	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &rows[i]); err != nil {
			return fmt.Errorf("%s row %d: %w", sheet, i+1, err)
		}
	}

	if len(rows) > 0 {
		last, err := excelize.CoordinatesToCellName(len(rows[0]), 1)
		if err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
			return fmt.Errorf("%s header style: %w", sheet, err)
		}
	}
	return nil
}

func orderRows(in Input) [][]interface{} {
	rows := [][]interface{}{{
		"Order", "Source", "Subscription", "Status", "Primary Bra", "Primary Panty",
		"Leftovers", "Leftover Categories", "Items", "Total Spent", "Discount Codes",
	}}
	for _, a := range in.Audits {
		rows = append(rows, []interface{}{
			a.OrderID,
			a.Source,
			a.SubscriptionType.String(),
			string(a.Status),
			a.PrimaryBra,
			a.PrimaryPanty,
			strings.Join(a.Leftovers, "; "),
			leftoverCategories(a.Leftovers),
			a.ItemCount,
			a.TotalSpent.InexactFloat64(),
			strings.Join(a.DiscountCodes, ", "),
		})
	}
	return rows
}

// leftoverCategories lists the display category of each leftover.
func leftoverCategories(leftovers []string) string {
	cats := make([]string, len(leftovers))
	for i, l := range leftovers {
		cats[i] = garment.Categorize(l).String()
	}
	return strings.Join(cats, "; ")
}

func edgeRows(in Input) [][]interface{} {
	rows := [][]interface{}{{"Source", "Source Layer", "Target", "Target Layer", "Weight"}}
	for _, e := range TopEdges(in.Graph, 0) {
		rows = append(rows, []interface{}{
			e.Source.Label, e.Source.Layer.String(), e.Target.Label, e.Target.Layer.String(), e.Weight,
		})
	}
	return rows
}

func diagnosticRows(in Input) [][]interface{} {
	rows := [][]interface{}{{"Severity", "Code", "Source", "Row", "Order", "Message"}}
	for _, d := range in.Diagnostics {
		var row interface{}
		if d.Row > 0 {
			row = d.Row
		}
		rows = append(rows, []interface{}{
			string(d.Severity), string(d.Code), d.Source, row, d.OrderID, d.Message,
		})
	}
	return rows
}

func familyRows(in Input) [][]interface{} {
	rows := [][]interface{}{{"Subscription", "Family", "Color", "Orders"}}
	for _, fc := range FamilyBreakdown(in.Audits) {
		rows = append(rows, []interface{}{fc.Type.String(), fc.Family, fc.Color, fc.Orders})
	}
	return rows
}
