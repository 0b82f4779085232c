package xlbind

import (
	"errors"
	"fmt"
	"io"

	"github.com/extrame/xls"
)

var errNotLegacyWorkbook = errors.New("no BIFF workbook stream found")

// The xls reader stores no formula results and renders every formula cell
// as this text.
const legacyFormulaText = "FormulaCol"

// ConvertLegacy reads a BIFF (.xls) workbook and copies every sheet into a
// new in-memory xlsx workbook. Cells arrive as text; the coercer parses them
// like any other text cell. Formula cells are left empty and sheet
// visibility is not carried over.
func ConvertLegacy(r io.ReadSeeker, charset string) (tx *ExcelizeTransformer, err error) {
	defer func() {
		if p := recover(); p != nil {
			if tx != nil {
				tx.Close()
			}
			tx, err = nil, fmt.Errorf("read legacy workbook: %v", p)
		}
	}()

	wb, err := xls.OpenReader(r, charset)
	if err != nil {
		return nil, fmt.Errorf("read legacy workbook: %w", err)
	}
	if wb == nil {
		return nil, errNotLegacyWorkbook
	}

	tx = NewWorkbookTransformer()
	for i := 0; i < wb.NumSheets(); i++ {
		ws := wb.GetSheet(i)
		if ws == nil {
			continue
		}
		if err := tx.AddSheet(ws.Name); err != nil {
			tx.Close()
			return nil, err
		}
		for r := 0; r <= int(ws.MaxRow); r++ {
			row := legacyRow(ws, r)
			if row == nil {
				continue
			}
			for c := row.FirstCol(); c <= row.LastCol(); c++ {
				text := row.Col(c)
				if text == "" || text == legacyFormulaText {
					continue
				}
				if err := tx.SetCellValue(NewCellRef(ws.Name, r, c), text); err != nil {
					tx.Close()
					return nil, fmt.Errorf("copy %s: %w", NewCellRef(ws.Name, r, c), err)
				}
			}
		}
	}
	return tx, nil
}

// legacyRow returns row i of ws, or nil when the sheet has no such row.
func legacyRow(ws *xls.WorkSheet, i int) (row *xls.Row) {
	defer func() {
		if recover() != nil {
			row = nil
		}
	}()
	return ws.Row(i)
}
