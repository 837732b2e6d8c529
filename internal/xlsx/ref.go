package xlsx

import (
	"fmt"
	"strconv"
	"strings"
)

// Sheet limits of the workbook format.
const (
	MaxRows    = 1 << 20
	MaxColumns = 1 << 14
)

// MergedRegion is a merged block of cells, zero-based and inclusive.
type MergedRegion struct {
	FirstRow int `json:"firstRow"`
	LastRow  int `json:"lastRow"`
	FirstCol int `json:"firstCol"`
	LastCol  int `json:"lastCol"`
}

// Contains reports whether the zero-based cell lies inside the region.
func (m MergedRegion) Contains(row, col int) bool {
	return row >= m.FirstRow && row <= m.LastRow && col >= m.FirstCol && col <= m.LastCol
}

// Rows returns the number of rows spanned.
func (m MergedRegion) Rows() int { return m.LastRow - m.FirstRow + 1 }

// Cols returns the number of columns spanned.
func (m MergedRegion) Cols() int { return m.LastCol - m.FirstCol + 1 }

// String renders the region in A1 notation.
func (m MergedRegion) String() string {
	return CellName(m.FirstRow, m.FirstCol) + ":" + CellName(m.LastRow, m.LastCol)
}

// RangeError reports a cell reference that cannot be decoded.
type RangeError struct {
	Ref    string
	Reason string
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("invalid cell range %q: %s", e.Ref, e.Reason)
}

// ParseRange decodes "A1:B2" (or a single cell "A1") into a zero-based region.
// Absolute markers ("$A$1") are accepted and reversed corners are normalized.
func ParseRange(ref string) (MergedRegion, error) {
	first, last, found := strings.Cut(ref, ":")
	if !found {
		last = first
	}

	r1, c1, err := parseCell(ref, first)
	if err != nil {
		return MergedRegion{}, err
	}
	r2, c2, err := parseCell(ref, last)
	if err != nil {
		return MergedRegion{}, err
	}

	return MergedRegion{
		FirstRow: min(r1, r2),
		LastRow:  max(r1, r2),
		FirstCol: min(c1, c2),
		LastCol:  max(c1, c2),
	}, nil
}

// ParseCell decodes a single "B7" style reference into zero-based row and column.
func ParseCell(ref string) (row, col int, err error) {
	return parseCell(ref, ref)
}

func parseCell(whole, cell string) (row, col int, err error) {
	s := strings.TrimPrefix(strings.TrimSpace(cell), "$")

	i := 0
	col = 0
	for i < len(s) {
		c := s[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		if c < 'A' || c > 'Z' {
			break
		}
		col = col*26 + int(c-'A'+1)
		if col > MaxColumns {
			return 0, 0, &RangeError{Ref: whole, Reason: "column out of range"}
		}
		i++
	}
	if i == 0 {
		return 0, 0, &RangeError{Ref: whole, Reason: "missing column letters"}
	}

	digits := strings.TrimPrefix(s[i:], "$")
	if digits == "" {
		return 0, 0, &RangeError{Ref: whole, Reason: "missing row number"}
	}
	for _, d := range digits {
		if d < '0' || d > '9' {
			return 0, 0, &RangeError{Ref: whole, Reason: "row is not a number"}
		}
	}
	row, err = strconv.Atoi(digits)
	if err != nil || row < 1 || row > MaxRows {
		return 0, 0, &RangeError{Ref: whole, Reason: "row out of range"}
	}

	return row - 1, col - 1, nil
}

// ColumnName converts a zero-based column index to letters (0 -> "A", 26 -> "AA").
func ColumnName(col int) string {
	var buf [8]byte
	i := len(buf)
	for n := col + 1; n > 0; n = (n - 1) / 26 {
		i--
		buf[i] = byte('A' + (n-1)%26)
	}
	return string(buf[i:])
}

// CellName renders a zero-based cell position in A1 notation.
func CellName(row, col int) string {
	return ColumnName(col) + strconv.Itoa(row+1)
}
