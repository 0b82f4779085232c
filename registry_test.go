package xlbind

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func TestParseRef(t *testing.T) {
	tests := []struct {
		ref     string
		name    string
		args    []string
		wantErr bool
	}{
		{"email", "email", nil, false},
		{"  maxLength(10) ", "maxLength", []string{"10"}, false},
		{`oneOf(red, "green", 'blue')`, "oneOf", []string{"red", "green", "blue"}, false},
		{"headerOrder()", "headerOrder", nil, false},
		{"", "", nil, true},
		{"maxLength(10", "", nil, true},
		{"(10)", "", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			name, args, err := parseRef(tt.ref)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.name, name)
			assert.Equal(t, tt.args, args)
		})
	}
}

func cellCtx(value string) *CellContext {
	return &CellContext{
		Value:    value,
		Column:   &ColumnSchema{HeaderTitle: "Col"},
		Messages: NewMessages(NewLocale(language.English)),
	}
}

func TestRegistry_CellValidators(t *testing.T) {
	reg := NewRegistry()
	tests := []struct {
		ref   string
		value string
		want  string
	}{
		{"maxLength(3)", "abc", ""},
		{"maxLength(3)", "abcd", "value is longer than 3 characters"},
		{"maxLength(3)", "çağ", ""},
		{"minLength(2)", "a", "value is shorter than 2 characters"},
		{"minLength(2)", "", ""},
		{"oneOf(red, green)", "GREEN", ""},
		{"oneOf(red, green)", "blue", "value must be one of [red, green]"},
		{"oneOf(red, green)", "", ""},
		{"email", "ann@example.com", ""},
		{"email", "ann", "value is not a valid e-mail address"},
		{"email", "", ""},
		{"url", "https://example.com/x", ""},
		{"url", "example", "value is not a valid URL"},
	}
	for _, tt := range tests {
		t.Run(tt.ref+"/"+tt.value, func(t *testing.T) {
			v, err := reg.Cell(tt.ref)
			require.NoError(t, err)
			assert.Equal(t, tt.want, v.Validator.Validate(cellCtx(tt.value)))
		})
	}
}

func TestRegistry_FactoryErrors(t *testing.T) {
	reg := NewRegistry()
	for _, ref := range []string{"maxLength", "maxLength(-1)", "maxLength(1, 2)", "oneOf()", "email(x)"} {
		_, err := reg.Cell(ref)
		assert.Error(t, err, ref)
	}
	_, err := reg.Cell("nope")
	assert.EqualError(t, err, `unknown cell validator "nope"`)
	_, err = reg.Column("headerOrder(x)")
	assert.Error(t, err)
	_, err = reg.Row("duplicateKey")
	assert.Error(t, err)
}

func TestRegistry_CustomValidator(t *testing.T) {
	upper := CellValidatorFunc(func(ctx *CellContext) string {
		if ctx.Value != "" && ctx.Value[0] >= 'a' && ctx.Value[0] <= 'z' {
			return "must start upper case"
		}
		return ""
	})
	m, _ := newTestMapper(t, WithCellValidator("upper", upper))
	v, err := m.Registry().Cell("upper")
	require.NoError(t, err)
	assert.Equal(t, "upper", v.Name)
	assert.Equal(t, "must start upper case", v.Validator.Validate(cellCtx("abc")))

	_, err = m.Registry().Cell("upper(1)")
	assert.Error(t, err)
}

func TestRegistry_ZeroValue(t *testing.T) {
	var reg Registry
	reg.RegisterRow("duplicateKey", func(args []string) (RowValidator, error) { return DuplicateKey(args...), nil })
	_, err := reg.Row("duplicateKey(id)")
	require.NoError(t, err)
	_, err = reg.Cell("email")
	assert.EqualError(t, err, `unknown cell validator "email"`)
}

func TestRegistry_OptionsDoNotLeakIntoSharedRegistry(t *testing.T) {
	shared := &Registry{}
	nonEmpty := CellValidatorFunc(func(ctx *CellContext) string { return "" })
	assert.NotPanics(t, func() {
		newTestMapper(t, WithRegistry(shared), WithCellValidator("nonEmpty", nonEmpty))
	})
	m, _ := newTestMapper(t, WithRegistry(shared), WithCellValidator("nonEmpty", nonEmpty))

	_, err := m.Registry().Cell("nonEmpty")
	require.NoError(t, err)
	_, err = shared.Cell("nonEmpty")
	assert.Error(t, err)

	reg := NewRegistry()
	other, _ := newTestMapper(t, WithRegistry(reg), WithCellValidator("nonEmpty", nonEmpty))
	_, err = other.Registry().Cell("email")
	assert.NoError(t, err)
	_, err = reg.Cell("nonEmpty")
	assert.Error(t, err)
}

func headerSheet(t *testing.T, header []any) *SheetContext {
	t.Helper()
	m, _ := newTestMapper(t)
	schema := resolve(t, m, employeeDescriptor())
	sheet := schema.Sheet("Employees")
	row := make([]Cell, len(header))
	for i, h := range header {
		row[i] = ValueCell(h)
	}
	return newSheetContext(sheet, m.Messages(), [][]Cell{row})
}

func TestHeaderOrder(t *testing.T) {
	ctx := headerSheet(t, employeeHeader)
	assert.Empty(t, headerOrder{}.ValidateColumns(ctx))

	swapped := []any{"Employee Name", "Employee ID", "Email", "Salary", "Hired", "Active"}
	findings := headerOrder{}.ValidateColumns(headerSheet(t, swapped))
	require.Len(t, findings, 2)
	assert.Equal(t, `expected header "Employee ID" in column A, found "Employee Name"`, findings[0].Message)
	assert.Equal(t, 1, findings[1].Col)
}

func TestNoExtraHeaders(t *testing.T) {
	header := append(append([]any{}, employeeHeader...), nil, "Notes")
	findings := noExtraHeaders{}.ValidateColumns(headerSheet(t, header))
	require.Len(t, findings, 1)
	assert.Equal(t, 7, findings[0].Col)
	assert.Equal(t, "Notes", findings[0].Header)
	assert.Equal(t, `unexpected header "Notes" in column H`, findings[0].Message)
}

func TestDuplicateKey(t *testing.T) {
	m, _ := newTestMapper(t)
	sheet := resolve(t, m, employeeDescriptor()).Sheet("Employees")
	rows := [][]Cell{
		{ValueCell("Employee ID"), ValueCell("Employee Name")},
		{ValueCell(1.0), ValueCell("Ann")},
		{ValueCell(2.0), ValueCell("Bob")},
		{ValueCell(1.0), ValueCell("Ann B.")},
		{ValueCell(nil), ValueCell("Cid")},
		{ValueCell(nil), ValueCell("Dan")},
	}
	ctx := newSheetContext(sheet, m.Messages(), rows)

	key := DuplicateKey("id")
	require.NoError(t, key.(SchemaChecker).CheckSchema(sheet))
	findings := key.ValidateRows(ctx)
	require.Len(t, findings, 1)
	assert.Equal(t, 2, findings[0].Row)
	assert.Equal(t, 0, findings[0].Col)
	assert.Equal(t, `duplicate Employee ID "1", first seen in row 2`, findings[0].Message)

	both := DuplicateKey("id", "name")
	assert.Empty(t, both.ValidateRows(ctx))
	assert.Equal(t, -1, DuplicateKey("name", "id").ValidateRows(newSheetContext(sheet, m.Messages(), append(rows, rows[1])))[0].Col)

	err := DuplicateKey("bonus").(SchemaChecker).CheckSchema(sheet)
	assert.EqualError(t, err, `duplicateKey: sheet "Employees" has no column for field "bonus"`)
}
