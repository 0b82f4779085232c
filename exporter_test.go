package xlbind

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func exportEmployees(t *testing.T, m *Mapper, schema *WorkbookSchema, emps ...*Employee) *bytes.Buffer {
	t.Helper()
	recs := make([]any, len(emps))
	for i, e := range emps {
		recs[i] = e
	}
	var buf bytes.Buffer
	require.NoError(t, m.Export(&buf, schema, map[string][]any{"employees": recs}))
	return &buf
}

func TestExport_RoundTrip(t *testing.T) {
	m, _ := newTestMapper(t)
	schema := resolve(t, m, employeeDescriptor())
	bonus := 250.0
	in := []*Employee{
		{ID: 1, Name: "Ann", Email: "ann@example.com", Salary: 5000.5, Hired: date(2024, 1, 15), Active: true, Bonus: &bonus},
		{ID: 2, Name: "Bob", Email: "bob@example.com", Salary: 4200, Hired: date(2020, 12, 31)},
	}
	buf := exportEmployees(t, m, schema, in...)

	res, err := m.Import(buf, schema)
	require.NoError(t, err)
	assert.False(t, res.Report.HasViolations())
	assert.Empty(t, res.Warnings)

	out := RecordsOf[Employee](res, "employees")
	require.Len(t, out, 2)
	for i := range in {
		want := *in[i]
		want.Bonus = nil // not a mapped column
		assert.Equal(t, want, *out[i])
	}
}

func TestExport_Cells(t *testing.T) {
	m, _ := newTestMapper(t)
	schema := resolve(t, m, employeeDescriptor())
	buf := exportEmployees(t, m, schema,
		&Employee{ID: 1, Name: "Ann", Salary: 10, Hired: date(2024, 1, 15), Active: true},
	)

	f, err := excelize.OpenReader(buf)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"Employees"}, f.GetSheetList())

	rows, err := f.GetRows("Employees")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"Employee ID", "Employee Name", "Email", "Salary", "Hired", "Active"}, rows[0])

	// header is bold
	styleID, err := f.GetCellStyle("Employees", "A1")
	require.NoError(t, err)
	style, err := f.GetStyle(styleID)
	require.NoError(t, err)
	require.NotNil(t, style.Font)
	assert.True(t, style.Font.Bold)

	// empty string field leaves the cell empty
	email, err := f.GetCellValue("Employees", "C2")
	require.NoError(t, err)
	assert.Empty(t, email)
	typ, err := f.GetCellType("Employees", "C2")
	require.NoError(t, err)
	assert.Equal(t, excelize.CellTypeUnset, typ)

	// dates carry the column pattern
	hired, err := f.GetCellValue("Employees", "E2")
	require.NoError(t, err)
	assert.Equal(t, "15.01.2024", hired)
	styleID, err = f.GetCellStyle("Employees", "E2")
	require.NoError(t, err)
	style, err = f.GetStyle(styleID)
	require.NoError(t, err)
	require.NotNil(t, style.CustomNumFmt)
	assert.Equal(t, "dd.mm.yyyy", *style.CustomNumFmt)

	active, err := f.GetCellValue("Employees", "F2")
	require.NoError(t, err)
	assert.Equal(t, "TRUE", active)
}

func TestExport_EmptySheetGetsHeader(t *testing.T) {
	m, _ := newTestMapper(t)
	schema := resolve(t, m, employeeDescriptor())
	var buf bytes.Buffer
	require.NoError(t, m.Export(&buf, schema, nil))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Employees")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Len(t, rows[0], 6)
}

func TestExport_ColumnWidths(t *testing.T) {
	m, _ := newTestMapper(t)
	schema := resolve(t, m, twoColumnDescriptor())
	long := make([]byte, 200)
	for i := range long {
		long[i] = 'x'
	}
	var buf bytes.Buffer
	require.NoError(t, m.Export(&buf, schema, map[string][]any{"Employees": {
		&Employee{ID: 1, Name: string(long)},
	}}))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	a, err := f.GetColWidth("Employees", "A")
	require.NoError(t, err)
	b, err := f.GetColWidth("Employees", "B")
	require.NoError(t, err)
	assert.Equal(t, float64(len("Employee ID")+2), a)
	assert.Equal(t, float64(maxColumnWidth), b)
}

type contact struct {
	Name string
	Site Link
	Born *time.Time
}

var contactType = NewRecordType[contact]("Contact",
	StringField("name", func(c *contact) string { return c.Name }, func(c *contact, v string) { c.Name = v }),
	CustomField("site", linkCodec{}, func(c *contact) any { return c.Site }, func(c *contact, v any) { c.Site = v.(Link) }),
	OptionalTimeField("born", func(c *contact) *time.Time { return c.Born }, func(c *contact, v *time.Time) { c.Born = v }),
)

type linkCodec struct{}

func (linkCodec) Decode(cell Cell) (any, error) { return Link{Display: cell.Text()}, nil }
func (linkCodec) Encode(v any) (any, error)     { return v, nil }

func TestExport_Hyperlinks(t *testing.T) {
	m, _ := newTestMapper(t)
	schema := resolve(t, m, &Workbook{Name: "Contacts", Sheets: []Sheet{{
		Name:   "Contacts",
		Record: contactType,
		Columns: []Column{
			{Field: "name", Header: "Name"},
			{Field: "site", Header: "Site"},
			{Field: "born", Header: "Born", DatePattern: "yyyy-MM-dd"},
		},
	}}})
	born := date(1990, 5, 17)
	var buf bytes.Buffer
	require.NoError(t, m.Export(&buf, schema, map[string][]any{"Contacts": {
		&contact{Name: "Ann", Site: Link{URL: "https://example.com", Display: "Example"}, Born: &born},
		&contact{Name: "Bob", Site: Link{Display: "no link"}},
		&contact{Name: "Cid", Site: Link{URL: "Contacts!A1"}},
	}}))

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	ok, target, err := f.GetCellHyperLink("Contacts", "B2")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "https://example.com", target)
	v, _ := f.GetCellValue("Contacts", "B2")
	assert.Equal(t, "Example", v)

	ok, _, err = f.GetCellHyperLink("Contacts", "B3")
	require.NoError(t, err)
	assert.False(t, ok)
	v, _ = f.GetCellValue("Contacts", "B3")
	assert.Equal(t, "no link", v)

	ok, target, err = f.GetCellHyperLink("Contacts", "B4")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Contacts!A1", target)

	bornText, _ := f.GetCellValue("Contacts", "C2")
	assert.Equal(t, "1990-05-17", bornText)
	bornText, _ = f.GetCellValue("Contacts", "C3")
	assert.Empty(t, bornText)

	res, err := m.Import(bytes.NewReader(buf.Bytes()), schema)
	require.NoError(t, err)
	contacts := RecordsOf[contact](res, "Contacts")
	require.Len(t, contacts, 3)
	assert.Equal(t, "Example", contacts[0].Site.Display)
	require.NotNil(t, contacts[0].Born)
	assert.Equal(t, born, *contacts[0].Born)
	assert.Nil(t, contacts[1].Born)
}

func TestExport_FieldReadFailureIsFatal(t *testing.T) {
	m, hook := newTestMapper(t)
	schema := resolve(t, m, employeeDescriptor())
	var buf bytes.Buffer
	err := m.Export(&buf, schema, map[string][]any{"employees": {&Employee{ID: 1}, "not an employee"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExport)

	var xerr *Error
	require.True(t, errors.As(err, &xerr))
	assert.Equal(t, CodeExport, xerr.Code)
	assert.Equal(t, "Employees", xerr.Sheet)
	assert.Equal(t, 1, xerr.Row)
	assert.Equal(t, "id", xerr.Field)
	assert.Zero(t, buf.Len())
	assert.Equal(t, "export failed", hook.LastEntry().Message)
}

func TestExport_MapRecords(t *testing.T) {
	desc, err := ParseDescriptor([]byte(`
name: Inventory
sheets:
  - name: Items
    columns:
      - {field: sku, header: SKU, type: string}
      - {field: price, header: Price, type: decimal}
      - {field: qty, header: Quantity, type: int}
`))
	require.NoError(t, err)
	m, _ := newTestMapper(t)
	schema := resolve(t, m, desc)
	price := mustDecimal(t, "19.99")
	wide := mustDecimal(t, "12345678901234567890.123")

	var buf bytes.Buffer
	require.NoError(t, m.Export(&buf, schema, map[string][]any{"Items": {
		map[string]any{"sku": "A-1", "price": price, "qty": 3},
		map[string]any{"sku": "A-2"},
		map[string]any{"sku": "A-3", "price": wide},
	}}))
	data := bytes.Clone(buf.Bytes())

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Items")
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"SKU", "Price", "Quantity"},
		{"A-1", "19.99", "3"},
		{"A-2"},
		{"A-3", "12345678901234567890.123"},
	}, rows)

	res, err := m.Import(bytes.NewReader(data), schema)
	require.NoError(t, err)
	items := res.Sheet("Items")
	require.Len(t, items, 3)
	assert.Equal(t, wide, items[2].(map[string]any)["price"])
}

func TestExportFile(t *testing.T) {
	m, _ := newTestMapper(t)
	schema := resolve(t, m, twoColumnDescriptor())
	dir := t.TempDir()

	path := filepath.Join(dir, "out.xlsx")
	require.NoError(t, m.ExportFile(path, schema, map[string][]any{"Employees": {&Employee{ID: 1, Name: "Ann"}}}))
	res, err := m.ImportFile(path, schema)
	require.NoError(t, err)
	assert.Len(t, res.Sheet("Employees"), 1)

	bad := filepath.Join(dir, "bad.xlsx")
	err = m.ExportFile(bad, schema, map[string][]any{"Employees": {42}})
	assert.ErrorIs(t, err, ErrExport)
	_, statErr := os.Stat(bad)
	assert.True(t, os.IsNotExist(statErr))
}

func mustDecimal(t *testing.T, s string) pgtype.Numeric {
	t.Helper()
	d, err := parseDecimal(s)
	require.NoError(t, err)
	return d
}

func TestDecimalText(t *testing.T) {
	for in, want := range map[string]string{
		"0":      "0",
		"1200":   "1200",
		"12.500": "12.5",
		"0.0012": "0.0012",
		"-3.10":  "-3.1",
		"1e3":    "1000",

		"98765432109876543210.000000001": "98765432109876543210.000000001",
	} {
		got, ok := decimalText(mustDecimal(t, in))
		require.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
}

func TestExportValue(t *testing.T) {
	m, _ := newTestMapper(t)
	col := &ColumnSchema{Kind: KindFloat}
	tests := []struct {
		name    string
		in      any
		cell    any
		text    string
		pattern string
	}{
		{"nil", nil, nil, "", ""},
		{"empty string", "", nil, "", ""},
		{"zero time", time.Time{}, nil, "", ""},
		{"nil pointer", (*float64)(nil), nil, "", ""},
		{"float", 2.5, 2.5, "2.5", ""},
		{"float32", float32(0.5), 0.5, "0.5", ""},
		{"int64", int64(7), int64(7), "7", ""},
		{"bool", false, false, "false", ""},
		{"time", date(2024, 1, 2), date(2024, 1, 2), "02.01.2024", "dd.MM.yyyy"},
		{"stringer", KindDate, "date", "date", ""},
		{"decimal", mustDecimal(t, "19.99"), 19.99, "19.99", ""},
		{"negative decimal", mustDecimal(t, "-0.005"), -0.005, "-0.005", ""},
		{"wide decimal", mustDecimal(t, "12345678901234567890.123"), "12345678901234567890.123", "12345678901234567890.123", ""},
		{"nan decimal", pgtype.Numeric{NaN: true, Valid: true}, nil, "", ""},
		{"null decimal", pgtype.Numeric{}, nil, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cell, text, pattern, err := m.exportValue(col, tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.cell, cell)
			assert.Equal(t, tt.text, text)
			assert.Equal(t, tt.pattern, pattern)
		})
	}

	cell, text, pattern, err := m.exportValue(&ColumnSchema{Kind: KindDateTime}, time.Date(2024, 1, 2, 15, 4, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.NotNil(t, cell)
	assert.Equal(t, DefaultDateTimePattern, pattern)
	assert.Equal(t, "02.01.2024 15:04:00", text)
}
