package xlbind

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Match them with errors.Is.
var (
	ErrSchema          = errors.New("schema error")
	ErrSource          = errors.New("source error")
	ErrSheetMissing    = errors.New("sheet missing")
	ErrExport          = errors.New("export error")
	ErrValidation      = errors.New("validation failed")
	ErrRowConstruction = errors.New("row construction failed")
)

// Stable error codes.
const (
	CodeSchema          = "XB-SCH-001"
	CodeSource          = "XB-SRC-001"
	CodeSheetMissing    = "XB-IMP-001"
	CodeRowConstruction = "XB-IMP-002"
	CodeExport          = "XB-EXP-001"
	CodeValidation      = "XB-VAL-001"
	CodeCoercion        = "XB-COE-001"
)

// Error is the classified error returned by every fatal path and recorded for
// every skipped row. Row and Col are 0-based; -1 means not applicable.
type Error struct {
	Kind  error
	Code  string
	Sheet string
	Row   int
	Col   int
	Field string
	Msg   string
	Err   error
}

func newError(kind error, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Row: -1, Col: -1, Msg: msg}
}

func (e *Error) withSheet(sheet string) *Error {
	e.Sheet = sheet
	return e
}

func (e *Error) withRow(row int) *Error {
	e.Row = row
	return e
}

func (e *Error) withField(col int, field string) *Error {
	e.Col = col
	e.Field = field
	return e
}

func (e *Error) wrap(err error) *Error {
	e.Err = err
	return e
}

// Error formats as "[XB-IMP-001] sheet missing: Employees: sheet is not in the workbook".
func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %v", e.Code, e.Kind)
	if loc := e.location(); loc != "" {
		b.WriteString(": ")
		b.WriteString(loc)
	}
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) location() string {
	var parts []string
	if e.Sheet != "" {
		parts = append(parts, e.Sheet)
	}
	if e.Row >= 0 {
		parts = append(parts, fmt.Sprintf("row %d", e.Row))
	}
	if e.Col >= 0 {
		parts = append(parts, "column "+ColToName(e.Col))
	}
	if e.Field != "" {
		parts = append(parts, "field "+e.Field)
	}
	return strings.Join(parts, " ")
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the error's kind sentinel.
func (e *Error) Is(target error) bool {
	return e.Kind != nil && target == e.Kind
}

// ValidationError is returned in strict mode when a run produced violations.
type ValidationError struct {
	Report *Report
}

func (e *ValidationError) Error() string {
	n := e.Report.Count()
	return fmt.Sprintf("[%s] %v: %d violation(s) in %d sheet(s)", CodeValidation, ErrValidation, n, len(e.Report.Failing()))
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Violations returns every violation in the report, sheet by sheet.
func (e *ValidationError) Violations() []Violation {
	return e.Report.Violations()
}

// SchemaError is returned by Resolve. It lists every error-severity issue
// found in the descriptor.
type SchemaError struct {
	Issues []SchemaIssue
}

func (e *SchemaError) Error() string {
	msgs := make([]string, 0, len(e.Issues))
	for _, is := range e.Issues {
		msgs = append(msgs, is.String())
	}
	return fmt.Sprintf("[%s] %v: %s", CodeSchema, ErrSchema, strings.Join(msgs, "; "))
}

func (e *SchemaError) Is(target error) bool { return target == ErrSchema }
