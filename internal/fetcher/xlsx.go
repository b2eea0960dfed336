package fetcher

import (
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// XLSXReader yields the rows of one sheet, header first. Short rows are
// padded to the header width and blank rows are skipped.
type XLSXReader struct {
	rows  [][]string
	width int
	next  int
}

// NewXLSXReader parses a workbook. sheet selects a sheet by name; empty
// means the first sheet.
func NewXLSXReader(data []byte, sheet string) (*XLSXReader, error) {
	f, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open workbook")
	}

	s, err := getSheet(f, sheet)
	if err != nil {
		return nil, err
	}

	r := &XLSXReader{}
	for _, row := range s.Rows {
		if row == nil {
			continue
		}
		cells := rowToStrings(row)
		if blank(cells) {
			continue
		}
		if r.rows == nil {
			r.width = len(cells)
		}
		r.rows = append(r.rows, cells)
	}
	return r, nil
}

// Read implements csvutil.Reader.
func (r *XLSXReader) Read() ([]string, error) {
	if r.next >= len(r.rows) {
		return nil, io.EOF
	}
	row := r.rows[r.next]
	r.next++

	if len(row) < r.width {
		padded := make([]string, r.width)
		copy(padded, row)
		row = padded
	}
	return row[:r.width], nil
}

func getSheet(f *xlsx.File, name string) (*xlsx.Sheet, error) {
	if name != "" {
		sheet, ok := f.Sheet[name]
		if !ok {
			return nil, eris.Errorf("xlsx: sheet %q not found", name)
		}
		return sheet, nil
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("xlsx: workbook has no sheets")
	}
	return f.Sheets[0], nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = strings.TrimSpace(cell.String())
	}
	return cells
}

func blank(cells []string) bool {
	for _, c := range cells {
		if c != "" {
			return false
		}
	}
	return true
}
