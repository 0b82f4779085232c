package xlbind

import (
	"fmt"
	"io"
	"math"
	"math/big"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/sirupsen/logrus"
)

const (
	minColumnWidth = 8
	maxColumnWidth = 80
)

// Export writes records as a workbook to w. records is keyed by each sheet's
// records field; sheets without records get a header row only.
func (m *Mapper) Export(w io.Writer, schema *WorkbookSchema, records map[string][]any) error {
	if err := checkSchema(schema); err != nil {
		return err
	}
	tx := NewWorkbookTransformer()
	defer tx.Close()
	if err := m.ExportWorkbook(tx, schema, records); err != nil {
		return err
	}
	if err := tx.Write(w); err != nil {
		return newError(ErrExport, CodeExport, "write workbook").wrap(err)
	}
	return nil
}

// ExportFile is Export to a file on disk. The file is removed when the
// export fails.
func (m *Mapper) ExportFile(path string, schema *WorkbookSchema, records map[string][]any) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return newError(ErrExport, CodeExport, "create "+path).wrap(err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = newError(ErrExport, CodeExport, "close "+path).wrap(cerr)
		}
		if err != nil {
			os.Remove(path)
		}
	}()
	return m.Export(f, schema, records)
}

// ExportWorkbook writes records through tx without saving it. A field that
// cannot be read aborts the whole export.
func (m *Mapper) ExportWorkbook(tx Transformer, schema *WorkbookSchema, records map[string][]any) error {
	if err := checkSchema(schema); err != nil {
		return err
	}
	log := m.runLogger("export")
	for _, sheet := range schema.Sheets {
		if err := m.exportSheet(tx, sheet, records[sheet.Field], log); err != nil {
			log.WithError(err).Error("export failed")
			return err
		}
	}
	return nil
}

func (m *Mapper) exportSheet(tx Transformer, sheet *SheetSchema, recs []any, log logrus.FieldLogger) error {
	log = log.WithField("sheet", sheet.Name)
	wrapIO := func(err error) error {
		return newError(ErrExport, CodeExport, "write sheet").withSheet(sheet.Name).wrap(err)
	}
	if err := tx.AddSheet(sheet.Name); err != nil {
		return wrapIO(err)
	}
	if len(sheet.Columns) == 0 {
		return nil
	}

	widths := make([]int, len(sheet.Columns))
	for _, col := range sheet.Columns {
		if err := tx.SetCellValue(NewCellRef(sheet.Name, 0, col.Index), col.HeaderTitle); err != nil {
			return wrapIO(err)
		}
		widths[col.Index] = utf8.RuneCountInString(col.HeaderTitle)
	}
	if err := tx.SetHeaderStyle(sheet.Name, 0, 0, len(sheet.Columns)-1); err != nil {
		return wrapIO(err)
	}

	for i, rec := range recs {
		row := i + 1
		for _, col := range sheet.Columns {
			v, err := col.Field.Get(rec)
			if err != nil {
				return newError(ErrExport, CodeExport, "read field").
					withSheet(sheet.Name).withRow(i).withField(col.Index, col.FieldName).wrap(err)
			}
			cell, text, pattern, err := m.exportValue(col, v)
			if err != nil {
				return newError(ErrExport, CodeExport, "encode field").
					withSheet(sheet.Name).withRow(i).withField(col.Index, col.FieldName).wrap(err)
			}
			if cell == nil {
				continue
			}
			ref := NewCellRef(sheet.Name, row, col.Index)
			if link, ok := cell.(Link); ok {
				err = tx.SetHyperlink(ref, link)
			} else {
				err = tx.SetCellValue(ref, cell)
			}
			if err != nil {
				return wrapIO(err)
			}
			if pattern != "" {
				if err := tx.SetDateFormat(ref, pattern); err != nil {
					return wrapIO(err)
				}
			}
			if n := utf8.RuneCountInString(text); n > widths[col.Index] {
				widths[col.Index] = n
			}
		}
	}

	for i, w := range widths {
		width := float64(min(max(w+2, minColumnWidth), maxColumnWidth))
		if err := tx.SetColumnWidth(sheet.Name, i, width); err != nil {
			return wrapIO(err)
		}
	}
	log.WithField("rows", len(recs)).Debug("sheet exported")
	return nil
}

// exportValue converts a field value to what the cell stores, the text used
// for sizing the column, and the date pattern to format it with. A nil cell
// means the cell stays empty.
func (m *Mapper) exportValue(col *ColumnSchema, v any) (cell any, text, pattern string, err error) {
	if v == nil {
		return nil, "", "", nil
	}
	if col.Kind == KindCustom {
		enc, err := col.Field.Codec.Encode(v)
		if err != nil {
			return nil, "", "", err
		}
		if enc == nil {
			return nil, "", "", nil
		}
		v = enc
	}

	switch x := v.(type) {
	case time.Time:
		if x.IsZero() {
			return nil, "", "", nil
		}
		pattern = col.DatePattern
		if pattern == "" {
			pattern = m.coercer.datePattern
			if col.Kind == KindDateTime {
				pattern = DefaultDateTimePattern
			}
		}
		return x, x.Format(GoLayout(pattern)), pattern, nil
	case *time.Time:
		if x == nil {
			return nil, "", "", nil
		}
		return m.exportValue(col, *x)
	case *int:
		if x == nil {
			return nil, "", "", nil
		}
		return m.exportValue(col, *x)
	case *float64:
		if x == nil {
			return nil, "", "", nil
		}
		return m.exportValue(col, *x)
	case pgtype.Numeric:
		if !x.Valid {
			return nil, "", "", nil
		}
		s, ok := decimalText(x)
		if !ok {
			return nil, "", "", nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err == nil && strconv.FormatFloat(f, 'f', -1, 64) == s {
			return m.exportValue(col, f)
		}
		// more digits than a float64 carries: keep them as text
		return s, s, "", nil
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil, "", "", nil
		}
		return x, strconv.FormatFloat(x, 'f', -1, 64), "", nil
	case float32:
		return m.exportValue(col, float64(x))
	case Link:
		if x.URL == "" {
			return m.exportValue(col, x.Display)
		}
		return x, x.String(), "", nil
	case string:
		if x == "" {
			return nil, "", "", nil
		}
		return x, x, "", nil
	case bool:
		return x, strconv.FormatBool(x), "", nil
	case int:
		return x, strconv.Itoa(x), "", nil
	case int64:
		return x, strconv.FormatInt(x, 10), "", nil
	case int32:
		return x, strconv.FormatInt(int64(x), 10), "", nil
	}
	text = fmt.Sprint(v)
	return text, text, "", nil
}

// decimalText formats a finite numeric in plain notation without trailing
// fractional zeros. NaN and infinities report false.
func decimalText(n pgtype.Numeric) (string, bool) {
	if n.NaN || n.InfinityModifier != pgtype.Finite {
		return "", false
	}
	if n.Int == nil || n.Int.Sign() == 0 {
		return "0", true
	}
	digits := new(big.Int).Abs(n.Int).String()
	var s string
	if n.Exp >= 0 {
		s = digits + strings.Repeat("0", int(n.Exp))
	} else {
		k := int(-n.Exp)
		if len(digits) <= k {
			digits = strings.Repeat("0", k-len(digits)+1) + digits
		}
		s = strings.TrimRight(digits[:len(digits)-k]+"."+digits[len(digits)-k:], "0")
		s = strings.TrimSuffix(s, ".")
	}
	if n.Int.Sign() < 0 {
		s = "-" + s
	}
	return s, true
}
