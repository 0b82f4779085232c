package xlbind

import (
	"bytes"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type Employee struct {
	ID     int
	Name   string
	Email  string
	Salary float64
	Hired  time.Time
	Active bool
	Bonus  *float64
}

var employeeType = NewRecordType[Employee]("Employee",
	IntField("id", func(e *Employee) int { return e.ID }, func(e *Employee, v int) { e.ID = v }),
	StringField("name", func(e *Employee) string { return e.Name }, func(e *Employee, v string) { e.Name = v }),
	StringField("email", func(e *Employee) string { return e.Email }, func(e *Employee, v string) { e.Email = v }),
	FloatField("salary", func(e *Employee) float64 { return e.Salary }, func(e *Employee, v float64) { e.Salary = v }),
	DateField("hired", func(e *Employee) time.Time { return e.Hired }, func(e *Employee, v time.Time) { e.Hired = v }),
	BoolField("active", func(e *Employee) bool { return e.Active }, func(e *Employee, v bool) { e.Active = v }),
	OptionalFloatField("bonus", func(e *Employee) *float64 { return e.Bonus }, func(e *Employee, v *float64) { e.Bonus = v }),
)

var employeeHeader = []any{"Employee ID", "Employee Name", "Email", "Salary", "Hired", "Active"}

// employeeDescriptor maps the Employees sheet:
//
//	A: Employee ID (required)  B: Employee Name (required)  C: Email (pattern)
//	D: Salary                  E: Hired (dd.MM.yyyy)        F: Active
func employeeDescriptor() *Workbook {
	return &Workbook{
		Name: "Staff",
		Sheets: []Sheet{{
			Name:   "Employees",
			Field:  "employees",
			Record: employeeType,
			Columns: []Column{
				{Field: "id", Header: "Employee ID", Required: true},
				{Field: "name", Header: "Employee Name", Required: true},
				{Field: "email", Header: "Email", Pattern: `^([^@\s]+@[^@\s]+)?$`},
				{Field: "salary", Header: "Salary"},
				{Field: "hired", Header: "Hired", DatePattern: "dd.MM.yyyy"},
				{Field: "active", Header: "Active"},
			},
		}},
	}
}

// newTestMapper returns a mapper logging into a test hook.
func newTestMapper(t *testing.T, opts ...Option) (*Mapper, *test.Hook) {
	t.Helper()
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return New(append([]Option{WithLogger(logger)}, opts...)...), hook
}

func resolve(t *testing.T, m *Mapper, desc *Workbook) *WorkbookSchema {
	t.Helper()
	schema, err := m.Resolve(desc)
	require.NoError(t, err)
	return schema
}

// setRows writes rows to sheet starting at A1, creating the sheet if needed.
// nil values leave the cell empty.
func setRows(t *testing.T, f *excelize.File, sheet string, rows [][]any) {
	t.Helper()
	if idx, _ := f.GetSheetIndex(sheet); idx < 0 {
		_, err := f.NewSheet(sheet)
		require.NoError(t, err)
	}
	for r, row := range rows {
		for c, v := range row {
			if v == nil {
				continue
			}
			name, err := excelize.CoordinatesToCellName(c+1, r+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue(sheet, name, v))
		}
	}
}

// newWorkbook builds an xlsx with one sheet holding rows and returns its bytes.
func newWorkbook(t *testing.T, sheet string, rows [][]any) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetName("Sheet1", sheet))
	setRows(t, f, sheet, rows)
	return saveBuffer(t, f)
}

func saveBuffer(t *testing.T, f *excelize.File) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return &buf
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func codes(vs []Violation) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.Code
	}
	return out
}
