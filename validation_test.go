package xlbind

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func twoColumnDescriptor() *Workbook {
	return &Workbook{Name: "Staff", Sheets: []Sheet{{
		Name:   "Employees",
		Record: employeeType,
		Columns: []Column{
			{Field: "id", Header: "Employee ID", Required: true},
			{Field: "name", Header: "Employee Name"},
		},
	}}}
}

func TestValidate_CleanSheet(t *testing.T) {
	m, _ := newTestMapper(t)
	schema := resolve(t, m, employeeDescriptor())
	buf := newWorkbook(t, "Employees", [][]any{
		employeeHeader,
		{1, "Ann", "ann@example.com", 5000.5, "15.01.2024", true},
		{2, "Bob", "bob@example.com", 4200, "01.03.2023", false},
	})

	report, err := m.Validate(buf, schema)
	require.NoError(t, err)
	assert.False(t, report.HasViolations())
	require.Len(t, report.Sheets, 1)
	assert.Equal(t, "Employees", report.Sheets[0].Sheet)
	assert.NoError(t, report.Err())
}

func TestValidate_RequiredYieldsExactlyOneViolation(t *testing.T) {
	m, _ := newTestMapper(t, WithMessages(map[string]string{"id.rule": "id must be positive"}))
	desc := employeeDescriptor()
	desc.Sheets[0].Columns[0].Validators = []string{"maxLength(3)"}
	desc.Sheets[0].Columns[0].Rules = []Rule{{Expr: "value > 0", Message: "id.rule"}}
	schema := resolve(t, m, desc)
	buf := newWorkbook(t, "Employees", [][]any{
		employeeHeader,
		{nil, "Ann", "ann@example.com"},
	})

	report, err := m.Validate(buf, schema)
	require.NoError(t, err)
	vs := report.Violations()
	require.Len(t, vs, 1)
	assert.Equal(t, "required", vs[0].Code)
	assert.Equal(t, Location{Sheet: "Employees", Row: 0, Col: 0, Header: "Employee ID"}, vs[0].Location)
	assert.Equal(t, `Row 2, column "Employee ID": value is required`, vs[0].Message)
	assert.Equal(t, `Employees!A2 [required]: Row 2, column "Employee ID": value is required`, vs[0].String())
}

func TestValidate_DuplicateRows(t *testing.T) {
	m, _ := newTestMapper(t)
	schema := resolve(t, m, twoColumnDescriptor())
	buf := newWorkbook(t, "Employees", [][]any{
		{"Employee ID", "Employee Name"},
		{1, "A"},
		{2, "B"},
		{3, "C"},
		{1, "A"},
	})

	report, err := m.Validate(buf, schema)
	require.NoError(t, err)
	vs := report.Violations()
	require.Len(t, vs, 1)
	assert.Equal(t, "duplicate.row", vs[0].Code)
	assert.Equal(t, 3, vs[0].Location.Row)
	assert.Equal(t, -1, vs[0].Location.Col)
	assert.Equal(t, "Row 5: row duplicates row 2", vs[0].Message)
	assert.Equal(t, "Employees row 5", vs[0].Location.String())
}

func TestValidate_AllowDuplicateRows(t *testing.T) {
	m, _ := newTestMapper(t)
	desc := twoColumnDescriptor()
	desc.Sheets[0].AllowDuplicateRows = true
	schema := resolve(t, m, desc)
	buf := newWorkbook(t, "Employees", [][]any{
		{"Employee ID", "Employee Name"},
		{1, "A"},
		{1, "A"},
	})
	report, err := m.Validate(buf, schema)
	require.NoError(t, err)
	assert.False(t, report.HasViolations())
}

func TestValidate_HeaderMismatch(t *testing.T) {
	m, _ := newTestMapper(t)
	schema := resolve(t, m, twoColumnDescriptor())
	buf := newWorkbook(t, "Employees", [][]any{{"Employee ID", "Name"}})

	report, err := m.Validate(buf, schema)
	require.NoError(t, err)
	vs := report.Violations()
	require.Len(t, vs, 1)
	assert.Equal(t, "header.mismatch", vs[0].Code)
	assert.Equal(t, "Employee Name", vs[0].Location.Header)
	assert.Equal(t, -1, vs[0].Location.Row)
	assert.Equal(t, `Header: expected header "Employee Name" not found, actual headers: [Employee ID, Name]`, vs[0].Message)
}

func TestValidate_ColumnsFoundByTitle(t *testing.T) {
	m, _ := newTestMapper(t)
	schema := resolve(t, m, twoColumnDescriptor())
	buf := newWorkbook(t, "Employees", [][]any{
		{"Notes", "Employee Name", "Employee ID"},
		{"x", "Ann", nil},
	})

	report, err := m.Validate(buf, schema)
	require.NoError(t, err)
	vs := report.Violations()
	require.Len(t, vs, 1)
	assert.Equal(t, "required", vs[0].Code)
	assert.Equal(t, 2, vs[0].Location.Col)
}

func TestValidate_EmptyRowSkipped(t *testing.T) {
	m, _ := newTestMapper(t)
	schema := resolve(t, m, employeeDescriptor())
	buf := newWorkbook(t, "Employees", [][]any{
		append(append([]any{}, employeeHeader...), "Notes"),
		{1, "Ann"},
		{nil, "   ", nil, nil, nil, nil, "ignored"},
		{nil, "", nil},
		{2, "Bob"},
	})

	report, err := m.Validate(buf, schema)
	require.NoError(t, err)
	assert.Empty(t, report.Violations())

	res, err := m.Import(newWorkbook(t, "Employees", [][]any{
		employeeHeader,
		{1, "Ann"},
		{nil, "   "},
		{2, "Bob"},
	}), schema)
	require.NoError(t, err)
	assert.Len(t, res.Sheet("employees"), 2)
}

func TestValidate_PatternAndRules(t *testing.T) {
	m, _ := newTestMapper(t)
	desc := employeeDescriptor()
	desc.Sheets[0].Columns[3].Rules = []Rule{{Expr: "value >= 1000"}}
	desc.Sheets[0].Columns[1].Validators = []string{"maxLength(5)"}
	schema := resolve(t, m, desc)
	buf := newWorkbook(t, "Employees", [][]any{
		employeeHeader,
		{1, "Ann", "ANN@EXAMPLE.COM", 5000},
		{2, "Robert", "not-an-email", 500},
		{3, "Cid", nil, nil},
	})

	report, err := m.Validate(buf, schema)
	require.NoError(t, err)
	vs := report.Violations()
	require.Len(t, vs, 3)
	assert.Equal(t, []string{"maxLength", "pattern", "rule"}, codes(vs))
	for _, v := range vs {
		assert.Equal(t, 1, v.Location.Row)
	}
	assert.Equal(t, `Row 3, column "Email": value "not-an-email" does not match pattern ^([^@\s]+@[^@\s]+)?$`, vs[1].Message)
	assert.Equal(t, `Row 3, column "Salary": value fails rule value >= 1000`, vs[2].Message)
}

func TestValidate_PatternRejectsBlank(t *testing.T) {
	m, _ := newTestMapper(t)
	desc := twoColumnDescriptor()
	desc.Sheets[0].Columns[1].Pattern = "^[A-Z]"
	schema := resolve(t, m, desc)
	buf := newWorkbook(t, "Employees", [][]any{
		{"Employee ID", "Employee Name"},
		{1, nil},
		{2, "Bob"},
	})

	report, err := m.Validate(buf, schema)
	require.NoError(t, err)
	vs := report.Violations()
	require.Len(t, vs, 1)
	assert.Equal(t, "pattern", vs[0].Code)
	assert.Equal(t, 0, vs[0].Location.Row)
	assert.Equal(t, `Row 2, column "Employee Name": value "" does not match pattern ^[A-Z]`, vs[0].Message)
}

func TestValidate_SheetLevelRowFinding(t *testing.T) {
	tooFew := RowValidatorFunc(func(ctx *SheetContext) []Finding {
		if ctx.RowCount() < 3 {
			return []Finding{{Row: -1, Col: -1, Message: "at least 3 rows expected"}}
		}
		return nil
	})
	m, _ := newTestMapper(t, WithRowValidator("minRows", tooFew))
	desc := twoColumnDescriptor()
	desc.Sheets[0].RowValidators = []string{"minRows"}
	schema := resolve(t, m, desc)
	buf := newWorkbook(t, "Employees", [][]any{
		{"Employee ID", "Employee Name"},
		{1, "Ann"},
	})

	report, err := m.Validate(buf, schema)
	require.NoError(t, err)
	vs := report.Violations()
	require.Len(t, vs, 1)
	assert.Equal(t, "minRows", vs[0].Code)
	assert.Equal(t, `Sheet "Employees": at least 3 rows expected`, vs[0].Message)
	assert.Equal(t, "Employees", vs[0].Location.String())
}

func TestValidate_OrderColumnRowCell(t *testing.T) {
	m, _ := newTestMapper(t)
	schema := resolve(t, m, twoColumnDescriptor())
	buf := newWorkbook(t, "Employees", [][]any{
		{"Employee ID", "Name"},
		{nil, "A"},
		{nil, "A"},
	})

	report, err := m.Validate(buf, schema)
	require.NoError(t, err)
	assert.Equal(t, []string{"header.mismatch", "duplicate.row", "required", "required"}, codes(report.Violations()))
}

func TestValidate_Idempotent(t *testing.T) {
	m, _ := newTestMapper(t)
	schema := resolve(t, m, employeeDescriptor())
	data := newWorkbook(t, "Employees", [][]any{
		{"Employee ID", "Name", "Email"},
		{nil, "Ann", "bad"},
		{nil, "Ann", "bad"},
		{3, "Cid", "x@y"},
	}).Bytes()

	first, err := m.Validate(bytes.NewReader(data), schema)
	require.NoError(t, err)
	second, err := m.Validate(bytes.NewReader(data), schema)
	require.NoError(t, err)
	assert.NotEmpty(t, first.Violations())
	assert.ElementsMatch(t, first.Violations(), second.Violations())
}

func TestValidate_SheetsSkipped(t *testing.T) {
	m, _ := newTestMapper(t)
	desc := employeeDescriptor()
	desc.Sheets = append(desc.Sheets,
		Sheet{Name: "Archive", Field: "archive", Record: employeeType, Columns: []Column{{Field: "id", Required: true}}},
		Sheet{Name: "Absent", Field: "absent", Record: employeeType, Columns: []Column{{Field: "id"}}},
		Sheet{Name: "Unchecked", Field: "unchecked", Record: employeeType, Columns: []Column{{Field: "id"}}, SkipValidation: true},
	)
	schema := resolve(t, m, desc)

	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetName("Sheet1", "Employees"))
	setRows(t, f, "Employees", [][]any{employeeHeader, {1, "Ann"}})
	setRows(t, f, "Archive", [][]any{{"wrong"}, {nil}})
	setRows(t, f, "Unchecked", [][]any{{"wrong"}})
	require.NoError(t, f.SetSheetVisible("Archive", false))

	report, err := m.Validate(saveBuffer(t, f), schema)
	require.NoError(t, err)
	assert.False(t, report.HasViolations())
	require.Len(t, report.Sheets, 1)
	assert.Nil(t, report.Sheet("Archive"))
	assert.Nil(t, report.Sheet("Unchecked"))
}

func TestValidate_RequiredSheetMissing(t *testing.T) {
	m, _ := newTestMapper(t)
	desc := employeeDescriptor()
	desc.Sheets[0].Required = true
	schema := resolve(t, m, desc)

	_, err := m.Validate(newWorkbook(t, "Other", [][]any{{"x"}}), schema)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSheetMissing)
	var xerr *Error
	require.ErrorAs(t, err, &xerr)
	assert.Equal(t, CodeSheetMissing, xerr.Code)
	assert.Equal(t, "Employees", xerr.Sheet)
	assert.Contains(t, err.Error(), `sheet "Employees" not found`)
}

func TestValidate_NilSchema(t *testing.T) {
	m, _ := newTestMapper(t)
	_, err := m.Validate(newWorkbook(t, "Employees", nil), nil)
	assert.ErrorIs(t, err, ErrSchema)
}

func TestValidate_TurkishMessages(t *testing.T) {
	m, _ := newTestMapper(t, WithLocale("tr"))
	schema := resolve(t, m, twoColumnDescriptor())
	buf := newWorkbook(t, "Employees", [][]any{{"Employee ID", "Employee Name"}, {nil, "Ayşe"}})

	report, err := m.Validate(buf, schema)
	require.NoError(t, err)
	vs := report.Violations()
	require.Len(t, vs, 1)
	assert.Contains(t, vs[0].Message, "değer zorunludur")
}
