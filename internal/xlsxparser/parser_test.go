package xlsxparser

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/subscription-flow-audit/internal/csvparser"
)

func writeWorkbook(t *testing.T, sheet string, rows [][]interface{}) string {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	if sheet != "Sheet1" {
		_, err := f.NewSheet(sheet)
		require.NoError(t, err)
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}

	path := filepath.Join(t.TempDir(), "orders.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestParse(t *testing.T) {
	path := writeWorkbook(t, "Orders", [][]interface{}{
		{"Name", "Lineitem name", "Lineitem quantity", "Discount Code"},
		{"#1001", "Custom Relief Bra Set Subscription Box - S", 1, "WELCOME10"},
		{},
		{"#1001", "Nude Thong - M", 2},
	})

	data, err := Parse(path, "Orders")
	require.NoError(t, err)

	assert.Equal(t, []string{"Name", "Lineitem name", "Lineitem quantity", "Discount Code"}, data.Headers)
	require.Len(t, data.Rows, 2)

	assert.Equal(t, 2, data.Rows[0].Number)
	assert.Equal(t, "WELCOME10", data.Rows[0].Get("Discount Code"))

	assert.Equal(t, 4, data.Rows[1].Number)
	assert.Equal(t, "2", data.Rows[1].Get("Lineitem quantity"))
	assert.Equal(t, "", data.Rows[1].Get("Discount Code"))
}

func TestParse_DefaultSheet(t *testing.T) {
	path := writeWorkbook(t, "Sheet1", [][]interface{}{{"Name"}, {"#1"}})

	data, err := Parse(path, "")
	require.NoError(t, err)
	require.Len(t, data.Rows, 1)
	assert.Equal(t, "#1", data.Rows[0].Get("Name"))
}

func TestParse_MissingSheet(t *testing.T) {
	path := writeWorkbook(t, "Sheet1", [][]interface{}{{"Name"}})

	_, err := Parse(path, "Exports")
	assert.Error(t, err)
}

func TestFromRows_Empty(t *testing.T) {
	_, err := fromRows(nil, "empty.xlsx")
	assert.True(t, errors.Is(err, csvparser.ErrEmptyFile))
}

func TestParse_CleansHeaders(t *testing.T) {
	path := writeWorkbook(t, "Sheet1", [][]interface{}{
		{"\ufeffName ", " Lineitem name", ""},
		{"#1001", "Nude Thong - M", "x"},
	})

	data, err := Parse(path, "")
	require.NoError(t, err)

	assert.Equal(t, []string{"Name", "Lineitem name", "Column_3"}, data.Headers)
	require.NoError(t, data.RequireColumns("Name", "Lineitem name"))
	assert.Equal(t, "Nude Thong - M", data.Rows[0].Get("Lineitem name"))
}
