// =============================================================================
// Subscription Flow Audit - CSV Export Parser
// =============================================================================
//
// Parses commerce order exports into header-keyed rows. It handles:
//   - Different delimiters (comma, pipe, tab, semicolon)
//   - Multi-line headers (merged with a space)
//   - Custom data start rows
//   - Compressed exports: ".csv.gz" (gzip) and ".csv.zst" (zstandard)
//
// The parser knows nothing about orders; mapping rows onto line items is the
// ingest package's job. Callers check the columns they depend on with
// RequireColumns.
//
// =============================================================================

package csvparser

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/ginjaninja78/subscription-flow-audit/internal/config"
)

var (
	// ErrEmptyFile is returned when a file has no rows at all.
	ErrEmptyFile = errors.New("file is empty")

	// ErrMissingColumn is returned by RequireColumns.
	ErrMissingColumn = errors.New("missing required column")
)

// =============================================================================
// DATA STRUCTURES
// =============================================================================

// Row is one data row.
type Row struct {
	// Number is the 1-based record number, headers included. Blank lines
	// are not records.
	Number int

	// Values maps header -> trimmed cell value. Missing trailing cells are "".
	Values map[string]string
}

// Get returns the value of header, or "" when absent.
func (r Row) Get(header string) string {
	return r.Values[header]
}

// Data represents a parsed export.
type Data struct {
	// Headers are the merged, cleaned column headers.
	Headers []string

	// Rows are the non-empty data rows in file order.
	Rows []Row

	// SourceFile is the path (or name) the data was read from.
	SourceFile string
}

// RowCount returns the number of data rows.
func (d *Data) RowCount() int {
	return len(d.Rows)
}

// HasColumn reports whether header is present.
func (d *Data) HasColumn(header string) bool {
	for _, h := range d.Headers {
		if h == header {
			return true
		}
	}
	return false
}

// RequireColumns returns an error wrapping ErrMissingColumn naming every
// absent column.
func (d *Data) RequireColumns(headers ...string) error {
	var missing []string
	for _, h := range headers {
		if !d.HasColumn(h) {
			missing = append(missing, h)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%s: %w: %s", d.SourceFile, ErrMissingColumn, strings.Join(missing, ", "))
	}
	return nil
}

// =============================================================================
// PARSER FUNCTIONS
// =============================================================================

// Parse reads a CSV export from disk.
//
// PARAMETERS:
//   - filePath: The path to the export. ".gz" and ".zst" suffixes are
//     decompressed transparently.
//   - settings: The CSV parsing settings.
//
// RETURNS:
//   - A pointer to the parsed Data.
//   - An error if the file cannot be read or parsed.
func Parse(filePath string, settings config.CSVSettings) (*Data, error) {
	rc, err := Open(filePath)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	return ParseReader(rc, filePath, settings)
}

// ParseReader parses an export from r. name is used in errors and as the
// SourceFile of the result.
//
// PARSING PROCESS:
//   1. Configure the CSV reader with the delimiter
//   2. Read and merge header rows
//   3. Read data rows from the configured data start row
//   4. Convert each row to a header -> value map
func ParseReader(r io.Reader, name string, settings config.CSVSettings) (*Data, error) {
	csvReader := csv.NewReader(bufio.NewReader(r))
	configureReader(csvReader, settings)

	allRows, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read CSV: %w", name, err)
	}

	if len(allRows) == 0 {
		return nil, fmt.Errorf("%s: %w", name, ErrEmptyFile)
	}

	headers, err := extractHeaders(allRows, settings)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to extract headers: %w", name, err)
	}

	return &Data{
		Headers:    headers,
		Rows:       extractDataRows(allRows, headers, settings),
		SourceFile: name,
	}, nil
}

// Open opens filePath, decompressing by extension.
func Open(filePath string) (io.ReadCloser, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	switch {
	case strings.HasSuffix(filePath, ".gz"):
		zr, err := gzip.NewReader(file)
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("%s: failed to open gzip stream: %w", filePath, err)
		}
		return &stackedCloser{Reader: zr, closers: []io.Closer{zr, file}}, nil

	case strings.HasSuffix(filePath, ".zst"):
		dec, err := zstd.NewReader(file)
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("%s: failed to open zstd stream: %w", filePath, err)
		}
		zr := dec.IOReadCloser()
		return &stackedCloser{Reader: zr, closers: []io.Closer{zr, file}}, nil
	}

	return file, nil
}

// stackedCloser closes a decompressor and then its underlying file.
type stackedCloser struct {
	io.Reader
	closers []io.Closer
}

func (s *stackedCloser) Close() error {
	var first error
	for _, c := range s.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// configureReader configures the CSV reader based on the settings.
func configureReader(reader *csv.Reader, settings config.CSVSettings) {
	switch settings.Delimiter {
	case "\\t", "\t", "tab", "TAB":
		reader.Comma = '\t'
	case "|", "pipe", "PIPE":
		reader.Comma = '|'
	case ";", "semicolon":
		reader.Comma = ';'
	default:
		if len(settings.Delimiter) > 0 {
			reader.Comma = rune(settings.Delimiter[0])
		} else {
			reader.Comma = ','
		}
	}

	// Exports are not always rectangular.
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
}

// extractHeaders extracts and merges headers.
//
// MULTI-LINE HEADER HANDLING:
//   Row 1: "Lineitem", "",         "Discount"
//   Row 2: "name",     "quantity", "Code"
//   Result: "Lineitem name", "quantity", "Discount Code"
func extractHeaders(allRows [][]string, settings config.CSVSettings) ([]string, error) {
	headerRows := settings.HeaderRows
	if headerRows <= 0 {
		headerRows = 1
	}

	if len(allRows) < headerRows {
		return nil, fmt.Errorf("file has fewer rows than header_rows setting")
	}

	if headerRows == 1 {
		return CleanHeaders(allRows[0]), nil
	}

	maxCols := 0
	for i := 0; i < headerRows; i++ {
		if len(allRows[i]) > maxCols {
			maxCols = len(allRows[i])
		}
	}

	headers := make([]string, maxCols)
	for col := 0; col < maxCols; col++ {
		var parts []string
		for row := 0; row < headerRows; row++ {
			if col < len(allRows[row]) {
				if value := strings.TrimSpace(allRows[row][col]); value != "" {
					parts = append(parts, value)
				}
			}
		}
		headers[col] = strings.Join(parts, " ")
	}

	return CleanHeaders(headers), nil
}

// CleanHeaders trims headers, strips a UTF-8 byte order mark and names
// empty headers by position.
func CleanHeaders(headers []string) []string {
	cleaned := make([]string, len(headers))
	for i, header := range headers {
		if i == 0 {
			header = strings.TrimPrefix(header, "\ufeff")
		}
		header = strings.TrimSpace(header)
		if header == "" {
			header = fmt.Sprintf("Column_%d", i+1)
		}
		cleaned[i] = header
	}
	return cleaned
}

// extractDataRows converts the data rows to Row values, skipping blank rows.
func extractDataRows(allRows [][]string, headers []string, settings config.CSVSettings) []Row {
	// DataStartRow is 1-indexed.
	startIndex := settings.DataStartRow - 1
	if startIndex < 0 {
		startIndex = settings.HeaderRows
		if startIndex <= 0 {
			startIndex = 1
		}
	}

	if startIndex >= len(allRows) {
		return []Row{}
	}

	rows := make([]Row, 0, len(allRows)-startIndex)
	for rowIndex := startIndex; rowIndex < len(allRows); rowIndex++ {
		row := allRows[rowIndex]
		if IsRowEmpty(row) {
			continue
		}
		rows = append(rows, Row{Number: rowIndex + 1, Values: RowMap(headers, row)})
	}
	return rows
}

// RowMap zips headers with a record.
func RowMap(headers, record []string) map[string]string {
	m := make(map[string]string, len(headers))
	for i, header := range headers {
		if i < len(record) {
			m[header] = strings.TrimSpace(record[i])
		} else {
			m[header] = ""
		}
	}
	return m
}

// IsRowEmpty reports whether a record contains only blank cells.
func IsRowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
