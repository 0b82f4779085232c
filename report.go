package xlbind

import (
	"fmt"
	"strconv"
)

// Location points at the origin of a violation. Row is the 0-based data row
// index (the header row excluded) and Col the 0-based physical column; -1
// means not applicable.
type Location struct {
	Sheet  string
	Row    int
	Col    int
	Header string
}

// String formats the location as "Employees!B3", "Employees row 3" or
// "Employees". Row numbers are the ones spreadsheet applications show.
func (l Location) String() string {
	switch {
	case l.Row >= 0 && l.Col >= 0:
		return NewCellRef(l.Sheet, sheetRowNumber(l.Row)-1, l.Col).String()
	case l.Row >= 0:
		return l.Sheet + " row " + strconv.Itoa(sheetRowNumber(l.Row))
	case l.Header != "":
		return fmt.Sprintf("%s header %q", l.Sheet, l.Header)
	}
	return l.Sheet
}

// Violation is one rule failure. It is never modified after creation.
type Violation struct {
	Location Location
	Message  string
	Code     string
}

// String formats the violation as "Employees!B3 [required]: message".
func (v Violation) String() string {
	return fmt.Sprintf("%s [%s]: %s", v.Location, v.Code, v.Message)
}

// SheetReport holds the violations of one sheet in discovery order.
type SheetReport struct {
	Sheet      string
	Violations []Violation
}

// Report aggregates sheet reports for a workbook.
type Report struct {
	Sheets []*SheetReport
}

func newReport() *Report {
	return &Report{}
}

func (r *Report) add(sr *SheetReport) {
	r.Sheets = append(r.Sheets, sr)
}

// Sheet returns the report for sheet, or nil when it was not validated.
func (r *Report) Sheet(name string) *SheetReport {
	for _, sr := range r.Sheets {
		if sr.Sheet == name {
			return sr
		}
	}
	return nil
}

// Violations returns all violations, sheet by sheet.
func (r *Report) Violations() []Violation {
	var out []Violation
	for _, sr := range r.Sheets {
		out = append(out, sr.Violations...)
	}
	return out
}

// Count returns the number of violations.
func (r *Report) Count() int {
	n := 0
	for _, sr := range r.Sheets {
		n += len(sr.Violations)
	}
	return n
}

// HasViolations reports whether any sheet has a violation.
func (r *Report) HasViolations() bool {
	return r.Count() > 0
}

// Failing returns the sheet reports with at least one violation.
func (r *Report) Failing() []*SheetReport {
	var out []*SheetReport
	for _, sr := range r.Sheets {
		if len(sr.Violations) > 0 {
			out = append(out, sr)
		}
	}
	return out
}

// Err returns a *ValidationError when the report has violations, else nil.
func (r *Report) Err() error {
	if !r.HasViolations() {
		return nil
	}
	return &ValidationError{Report: r}
}

// CoercionWarning records a cell whose value could not be converted; the
// field was left empty.
type CoercionWarning struct {
	Location Location
	Value    string
	Target   FieldKind
	Reason   string
}

func (w CoercionWarning) String() string {
	return fmt.Sprintf("%s [%s]: %q is not a valid %s: %s", w.Location, CodeCoercion, w.Value, w.Target, w.Reason)
}
