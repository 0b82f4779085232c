package xlbind

import "io"

// Transformer abstracts spreadsheet I/O. Import reads sheets through it and
// export writes through it; the core never touches the file format directly.
type Transformer interface {
	// Sheet lookup
	GetSheetNames() []string
	HasSheet(name string) bool
	IsHidden(name string) (bool, error)

	// Cell data access. Row 0 is the header row.
	GetRows(sheet string) ([][]Cell, error)

	// Sheet writing
	AddSheet(name string) error
	SetCellValue(ref CellRef, value any) error
	SetHeaderStyle(sheet string, row, firstCol, lastCol int) error
	SetDateFormat(ref CellRef, pattern string) error
	SetColumnWidth(sheet string, col int, width float64) error
	SetHyperlink(ref CellRef, link Link) error

	// I/O
	Write(w io.Writer) error
	Close() error
}
