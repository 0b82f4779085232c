package xlbind

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/xuri/excelize/v2"
)

// DefaultDatePattern formats dates when a column declares no pattern.
const DefaultDatePattern = "dd.MM.yyyy"

// DefaultDateTimePattern formats date-times when a column declares no pattern.
const DefaultDateTimePattern = "dd.MM.yyyy HH:mm:ss"

// DefaultDatePatterns are tried in order when text must become a date.
var DefaultDatePatterns = []string{
	"dd.MM.yyyy",
	"yyyy-MM-dd",
	"MM/dd/yyyy",
	"dd/MM/yyyy",
	"dd-MM-yyyy",
	"yyyy/MM/dd",
	"dd.MM.yyyy HH:mm:ss",
	"dd.MM.yyyy HH:mm",
	"yyyy-MM-dd HH:mm:ss",
	"yyyy-MM-dd'T'HH:mm:ss",
	"EEE, dd MMM yyyy HH:mm:ss z",
}

var errErrorCell = errors.New("cell holds an error value")

// Coercer converts cells into record field values. It is read-only after
// construction and safe to share between sequential runs.
type Coercer struct {
	locale      *Locale
	layouts     []string
	datePattern string
	date1904    bool
	trueWords   map[string]bool
	falseWords  map[string]bool
}

// NewCoercer creates a Coercer for msgs' locale. Empty patterns select
// DefaultDatePatterns.
func NewCoercer(msgs *Messages, patterns ...string) *Coercer {
	if len(patterns) == 0 {
		patterns = DefaultDatePatterns
	}
	c := &Coercer{
		locale:      msgs.Locale(),
		datePattern: DefaultDatePattern,
		trueWords:   map[string]bool{"yes": true, "y": true, "on": true},
		falseWords:  map[string]bool{"no": true, "n": true, "off": true},
	}
	for _, p := range patterns {
		c.layouts = append(c.layouts, GoLayout(p))
	}
	for _, w := range msgs.wordList("bool.true") {
		c.trueWords[w] = true
	}
	for _, w := range msgs.wordList("bool.false") {
		c.falseWords[w] = true
	}
	return c
}

// forWorkbook returns a copy bound to a workbook's date system.
func (c *Coercer) forWorkbook(date1904 bool) *Coercer {
	cp := *c
	cp.date1904 = date1904
	return &cp
}

// withDefaultPattern returns a copy that stringifies dates with pattern.
func (c *Coercer) withDefaultPattern(pattern string) *Coercer {
	cp := *c
	cp.datePattern = pattern
	return &cp
}

// Coerce converts cell to a value of kind. Blank cells give nil. Values that
// cannot be converted give nil and a non-nil error describing why; callers
// treat that error as a warning.
func (c *Coercer) Coerce(cell Cell, kind FieldKind, datePattern string) (any, error) {
	if cell.IsBlank() {
		return nil, nil
	}
	src := cell.ValueKind()
	if src == CellError {
		return nil, fmt.Errorf("%w %q", errErrorCell, cell.Raw)
	}

	if src == CellNumber && cell.IsDate && kind.isTime() {
		return c.fromSerial(cell.Number, kind)
	}
	if kind == KindString {
		return c.stringify(cell, datePattern), nil
	}

	switch src {
	case CellNumber:
		return c.fromNumber(cell.Number, kind)
	case CellBoolean:
		return c.fromBool(cell.Bool, kind)
	}
	text := cell.Text()
	if text == "" {
		return nil, nil
	}
	return c.fromText(text, kind, datePattern)
}

func (c *Coercer) coerceColumn(cell Cell, col *ColumnSchema) (any, error) {
	if col.Kind != KindCustom {
		return c.Coerce(cell, col.Kind, col.DatePattern)
	}
	if cell.IsBlank() {
		return nil, nil
	}
	if cell.ValueKind() == CellError {
		return nil, fmt.Errorf("%w %q", errErrorCell, cell.Raw)
	}
	v, err := col.Field.Codec.Decode(cell)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (c *Coercer) stringify(cell Cell, datePattern string) string {
	if cell.ValueKind() == CellNumber && cell.IsDate {
		t, err := excelize.ExcelDateToTime(cell.Number, c.date1904)
		if err == nil {
			if datePattern == "" {
				datePattern = c.datePattern
			}
			return t.Format(GoLayout(datePattern))
		}
	}
	if cell.Display == "" && cell.ValueKind() == CellNumber {
		return strconv.FormatFloat(cell.Number, 'f', -1, 64)
	}
	return cell.Display
}

func (c *Coercer) fromSerial(n float64, kind FieldKind) (any, error) {
	t, err := excelize.ExcelDateToTime(n, c.date1904)
	if err != nil {
		return nil, fmt.Errorf("date serial %v: %w", n, err)
	}
	if kind == KindDate {
		return truncateDay(t), nil
	}
	return t, nil
}

func (c *Coercer) fromNumber(n float64, kind FieldKind) (any, error) {
	switch kind {
	case KindInt:
		t := math.Trunc(n)
		if t >= math.MaxInt || t < math.MinInt {
			return nil, fmt.Errorf("%v overflows int", n)
		}
		return int(t), nil
	case KindInt64:
		t := math.Trunc(n)
		if t >= math.MaxInt64 || t < math.MinInt64 {
			return nil, fmt.Errorf("%v overflows int64", n)
		}
		return int64(t), nil
	case KindFloat:
		return n, nil
	case KindFloat32:
		return float32(n), nil
	case KindDecimal:
		return parseDecimal(strconv.FormatFloat(n, 'f', -1, 64))
	case KindBool:
		switch n {
		case 0:
			return false, nil
		case 1:
			return true, nil
		}
		return nil, fmt.Errorf("number %v is not a boolean", n)
	case KindDate, KindDateTime:
		return c.fromSerial(n, kind)
	}
	return nil, fmt.Errorf("cannot convert number to %s", kind)
}

func (c *Coercer) fromBool(b bool, kind FieldKind) (any, error) {
	if kind == KindBool {
		return b, nil
	}
	n := 0.0
	if b {
		n = 1
	}
	if kind.isNumeric() {
		return c.fromNumber(n, kind)
	}
	return nil, fmt.Errorf("cannot convert boolean to %s", kind)
}

func (c *Coercer) fromText(text string, kind FieldKind, datePattern string) (any, error) {
	switch kind {
	case KindInt, KindInt64:
		if i, err := strconv.ParseInt(text, 10, 64); err == nil {
			return intOfKind(i, kind)
		}
		norm, ok := c.locale.ParseNumber(text)
		if !ok {
			return nil, fmt.Errorf("%q is not a number", text)
		}
		if !strings.ContainsAny(norm, ".eE") {
			i, err := strconv.ParseInt(norm, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%q overflows int64: %w", text, err)
			}
			return intOfKind(i, kind)
		}
		n, err := strconv.ParseFloat(norm, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not a number: %w", text, err)
		}
		return c.fromNumber(n, kind)
	case KindFloat, KindFloat32:
		if n, err := strconv.ParseFloat(text, 64); err == nil {
			return c.fromNumber(n, kind)
		}
		n, err := c.parseLocaleFloat(text)
		if err != nil {
			return nil, err
		}
		return c.fromNumber(n, kind)
	case KindDecimal:
		if d, err := parseDecimal(text); err == nil {
			return d, nil
		}
		norm, ok := c.locale.ParseNumber(text)
		if !ok {
			return nil, fmt.Errorf("%q is not a number", text)
		}
		d, err := parseDecimal(norm)
		if err != nil {
			return nil, fmt.Errorf("%q is not a number: %w", text, err)
		}
		return d, nil
	case KindBool:
		return c.parseBool(text)
	case KindDate, KindDateTime:
		t, err := c.parseDate(text, datePattern)
		if err != nil {
			return nil, err
		}
		if kind == KindDate {
			return truncateDay(t), nil
		}
		return t, nil
	}
	return nil, fmt.Errorf("cannot convert text to %s", kind)
}

// intOfKind narrows an exactly parsed integer without a float round trip.
func intOfKind(i int64, kind FieldKind) (any, error) {
	if kind == KindInt64 {
		return i, nil
	}
	if i > math.MaxInt || i < math.MinInt {
		return nil, fmt.Errorf("%d overflows int", i)
	}
	return int(i), nil
}

func (c *Coercer) parseLocaleFloat(text string) (float64, error) {
	norm, ok := c.locale.ParseNumber(text)
	if !ok {
		return 0, fmt.Errorf("%q is not a number", text)
	}
	n, err := strconv.ParseFloat(norm, 64)
	if err != nil {
		return 0, fmt.Errorf("%q is not a number: %w", text, err)
	}
	return n, nil
}

func (c *Coercer) parseBool(text string) (any, error) {
	if b, err := strconv.ParseBool(text); err == nil {
		return b, nil
	}
	w := strings.ToLower(text)
	switch {
	case c.trueWords[w]:
		return true, nil
	case c.falseWords[w]:
		return false, nil
	}
	return nil, fmt.Errorf("%q is not a boolean", text)
}

// parseDate tries the column pattern, then ISO 8601, then the fallback
// patterns in order, then a bare serial number. Every attempt must consume
// the whole text.
func (c *Coercer) parseDate(text, datePattern string) (time.Time, error) {
	if datePattern != "" {
		if t, err := time.ParseInLocation(GoLayout(datePattern), text, time.UTC); err == nil {
			return t, nil
		}
	}
	if t, err := time.Parse(time.RFC3339, text); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation(time.DateOnly, text, time.UTC); err == nil {
		return t, nil
	}
	for _, layout := range c.layouts {
		if t, err := time.ParseInLocation(layout, text, time.UTC); err == nil {
			return t, nil
		}
	}
	if n, err := strconv.ParseFloat(text, 64); err == nil {
		if t, err := excelize.ExcelDateToTime(n, c.date1904); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%q matches no date pattern", text)
}

// parseDecimal reads plain or scientific notation without going through
// float64, so "0.1" stays exact.
func parseDecimal(s string) (pgtype.Numeric, error) {
	if strings.ContainsAny(s, "eE") {
		f, ok := new(big.Float).SetPrec(256).SetString(s)
		if !ok {
			return pgtype.Numeric{}, fmt.Errorf("%q is not a number", s)
		}
		s = f.Text('f', -1)
	}
	var d pgtype.Numeric
	if err := d.Scan(s); err != nil {
		return pgtype.Numeric{}, err
	}
	return d, nil
}
