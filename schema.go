package xlbind

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Workbook is the caller-supplied description of a workbook. A non-nil
// Workbook with a Name marks a valid descriptor.
type Workbook struct {
	Name   string  `yaml:"name" validate:"required"`
	Sheets []Sheet `yaml:"sheets" validate:"required,min=1,dive"`
}

// Sheet describes one sheet and the record type its rows map to.
type Sheet struct {
	Name string `yaml:"name" validate:"required"`
	// Field is the key of the sheet's records in Result.Records. Defaults to Name.
	Field string `yaml:"field"`
	// Record is the record accessor table. When nil, every column must
	// declare a Type and records are maps.
	Record  *RecordType `yaml:"-"`
	Columns []Column    `yaml:"columns" validate:"required,min=1,dive"`

	SkipImport         bool `yaml:"skipImport"`
	SkipValidation     bool `yaml:"skipValidation"`
	Required           bool `yaml:"required"`
	AllowDuplicateRows bool `yaml:"allowDuplicateRows"`

	ColumnValidators []string `yaml:"columnValidators"`
	RowValidators    []string `yaml:"rowValidators"`
}

// Column maps one record field to one spreadsheet column.
type Column struct {
	Field       string   `yaml:"field" validate:"required"`
	Header      string   `yaml:"header"`
	Required    bool     `yaml:"required"`
	Pattern     string   `yaml:"pattern"`
	DatePattern string   `yaml:"datePattern"`
	Type        string   `yaml:"type" validate:"omitempty,oneof=string int int64 float float32 decimal bool date datetime"`
	Validators  []string `yaml:"validators"`
	Rules       []Rule   `yaml:"rules" validate:"dive"`
}

// Rule is an expression every non-blank cell of a column must satisfy.
// Expressions see value, text, row and header.
type Rule struct {
	Expr    string `yaml:"expr" validate:"required"`
	Message string `yaml:"message"`
}

// WorkbookSchema is a resolved, read-only workbook description.
type WorkbookSchema struct {
	Name   string
	Sheets []*SheetSchema

	byName map[string]*SheetSchema
}

// Sheet returns the sheet schema called name, or nil.
func (w *WorkbookSchema) Sheet(name string) *SheetSchema {
	return w.byName[name]
}

// SheetSchema is a resolved sheet description.
type SheetSchema struct {
	Name             string
	Field            string
	Record           *RecordType
	Columns          []*ColumnSchema
	ImportEnabled    bool
	ValidateEnabled  bool
	Required         bool
	DetectDuplicates bool
	ColumnValidators []Named[ColumnValidator] // built-in header check first
	RowValidators    []Named[RowValidator]    // built-in duplicate check first when enabled
}

// Column returns the column bound to field, or nil.
func (s *SheetSchema) Column(field string) *ColumnSchema {
	for _, c := range s.Columns {
		if c.FieldName == field {
			return c
		}
	}
	return nil
}

// Headers returns the resolved header titles in schema order.
func (s *SheetSchema) Headers() []string {
	out := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		out[i] = c.HeaderTitle
	}
	return out
}

// ColumnSchema is a resolved column description. HeaderTitle is final.
type ColumnSchema struct {
	Index       int // position in schema order, also the export column
	FieldName   string
	HeaderTitle string
	Required    bool
	Pattern     *regexp.Regexp
	PatternText string
	DatePattern string
	Kind        FieldKind
	Field       *Field
	Validators  []Named[CellValidator] // required and pattern first
}

// Severity indicates the severity of a schema issue.
type Severity int

const (
	SeverityError   Severity = iota // Resolve fails
	SeverityWarning                 // Resolve succeeds; likely a mistake
)

// SchemaIssue is one problem found in a descriptor.
type SchemaIssue struct {
	Severity Severity
	Sheet    string
	Field    string
	Message  string
}

// String formats the issue as "[ERROR] Employees.email: message".
func (i SchemaIssue) String() string {
	sev := "ERROR"
	if i.Severity == SeverityWarning {
		sev = "WARN"
	}
	where := i.Sheet
	if i.Field != "" {
		where += "." + i.Field
	}
	if where == "" {
		return fmt.Sprintf("[%s] %s", sev, i.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", sev, where, i.Message)
}

var descriptorValidate = validator.New(validator.WithRequiredStructEnabled())

// Check inspects a descriptor without resolving it and returns every issue.
func (m *Mapper) Check(desc *Workbook) []SchemaIssue {
	_, issues := m.resolve(desc)
	return issues
}

// Resolve turns a descriptor into an immutable schema. Error-severity issues
// make it fail with a *SchemaError.
func (m *Mapper) Resolve(desc *Workbook) (*WorkbookSchema, error) {
	schema, issues := m.resolve(desc)
	var errs []SchemaIssue
	for _, is := range issues {
		if is.Severity == SeverityError {
			errs = append(errs, is)
		} else {
			m.log.WithField("issue", is.String()).Warn("schema warning")
		}
	}
	if len(errs) > 0 {
		return nil, &SchemaError{Issues: errs}
	}
	return schema, nil
}

// MustResolve is like Resolve but panics on error.
func (m *Mapper) MustResolve(desc *Workbook) *WorkbookSchema {
	s, err := m.Resolve(desc)
	if err != nil {
		panic(err)
	}
	return s
}

type resolver struct {
	m      *Mapper
	issues []SchemaIssue
}

func (r *resolver) errorf(sheet, field, format string, args ...any) {
	r.issues = append(r.issues, SchemaIssue{SeverityError, sheet, field, fmt.Sprintf(format, args...)})
}

func (r *resolver) warnf(sheet, field, format string, args ...any) {
	r.issues = append(r.issues, SchemaIssue{SeverityWarning, sheet, field, fmt.Sprintf(format, args...)})
}

func (m *Mapper) resolve(desc *Workbook) (*WorkbookSchema, []SchemaIssue) {
	r := &resolver{m: m}
	if desc == nil {
		r.errorf("", "", "workbook descriptor is nil")
		return nil, r.issues
	}
	r.validateStruct(desc)

	schema := &WorkbookSchema{Name: desc.Name, byName: make(map[string]*SheetSchema)}
	fields := make(map[string]string)
	for i := range desc.Sheets {
		sd := &desc.Sheets[i]
		if sd.Name == "" {
			continue
		}
		if _, dup := schema.byName[sd.Name]; dup {
			r.errorf(sd.Name, "", "sheet name declared more than once")
			continue
		}
		sheet := r.resolveSheet(sd)
		if sheet == nil {
			continue
		}
		if other, dup := fields[sheet.Field]; dup {
			r.errorf(sd.Name, "", "records field %q already used by sheet %q", sheet.Field, other)
		}
		fields[sheet.Field] = sheet.Name
		schema.Sheets = append(schema.Sheets, sheet)
		schema.byName[sheet.Name] = sheet
	}
	return schema, r.issues
}

func (r *resolver) validateStruct(desc *Workbook) {
	err := descriptorValidate.Struct(desc)
	if err == nil {
		return
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		r.errorf("", "", "%v", err)
		return
	}
	for _, fe := range verrs {
		msg := fmt.Sprintf("%s fails %q", strings.TrimPrefix(fe.Namespace(), "Workbook."), fe.Tag())
		if fe.Param() != "" {
			msg += " (" + fe.Param() + ")"
		}
		r.errorf("", "", "%s", msg)
	}
}

func (r *resolver) resolveSheet(sd *Sheet) *SheetSchema {
	sheet := &SheetSchema{
		Name:             sd.Name,
		Field:            sd.Field,
		Record:           sd.Record,
		ImportEnabled:    !sd.SkipImport,
		ValidateEnabled:  !sd.SkipValidation,
		Required:         sd.Required,
		DetectDuplicates: !sd.AllowDuplicateRows,
	}
	if sheet.Field == "" {
		sheet.Field = sd.Name
	}
	if len(sd.Columns) == 0 {
		return nil
	}
	if sheet.Record == nil {
		sheet.Record = r.mapRecordType(sd)
		if sheet.Record == nil {
			return nil
		}
	}

	titles := make(map[string]string)
	seenFields := make(map[string]bool)
	for i := range sd.Columns {
		cd := &sd.Columns[i]
		col := r.resolveColumn(sheet, cd, len(sheet.Columns))
		if col == nil {
			continue
		}
		if seenFields[col.FieldName] {
			r.warnf(sd.Name, cd.Field, "field mapped by more than one column")
		}
		seenFields[col.FieldName] = true
		if other, dup := titles[col.HeaderTitle]; dup {
			r.errorf(sd.Name, cd.Field, "header %q already used by field %q", col.HeaderTitle, other)
		}
		titles[col.HeaderTitle] = col.FieldName
		sheet.Columns = append(sheet.Columns, col)
	}

	sheet.ColumnValidators = append(sheet.ColumnValidators, Named[ColumnValidator]{Name: headerMismatchCode, Validator: headerMismatch{}})
	for _, ref := range sd.ColumnValidators {
		v, err := r.m.registry.Column(ref)
		if err != nil {
			r.errorf(sd.Name, "", "%v", err)
			continue
		}
		r.checkAgainst(sheet, v.Validator)
		sheet.ColumnValidators = append(sheet.ColumnValidators, v)
	}
	if sheet.DetectDuplicates {
		sheet.RowValidators = append(sheet.RowValidators, Named[RowValidator]{Name: duplicateRowCode, Validator: duplicateRow{}})
	}
	for _, ref := range sd.RowValidators {
		v, err := r.m.registry.Row(ref)
		if err != nil {
			r.errorf(sd.Name, "", "%v", err)
			continue
		}
		r.checkAgainst(sheet, v.Validator)
		sheet.RowValidators = append(sheet.RowValidators, v)
	}
	return sheet
}

func (r *resolver) checkAgainst(sheet *SheetSchema, v any) {
	if sc, ok := v.(SchemaChecker); ok {
		if err := sc.CheckSchema(sheet); err != nil {
			r.errorf(sheet.Name, "", "%v", err)
		}
	}
}

// mapRecordType builds a map-backed record type from the column types.
func (r *resolver) mapRecordType(sd *Sheet) *RecordType {
	fields := make([]MapField, 0, len(sd.Columns))
	ok := true
	for _, cd := range sd.Columns {
		if cd.Type == "" {
			r.errorf(sd.Name, cd.Field, "sheet has no record type and column declares no type")
			ok = false
			continue
		}
		kind, err := ParseFieldKind(cd.Type)
		if err != nil {
			// already reported by struct validation
			ok = false
			continue
		}
		fields = append(fields, MapField{Name: cd.Field, Kind: kind})
	}
	if !ok {
		return nil
	}
	return MapRecordType(sd.Name, fields...)
}

func (r *resolver) resolveColumn(sheet *SheetSchema, cd *Column, index int) *ColumnSchema {
	if cd.Field == "" {
		return nil
	}
	field, ok := sheet.Record.Field(cd.Field)
	if !ok {
		r.errorf(sheet.Name, cd.Field, "record type %q has no field %q", sheet.Record.Name(), cd.Field)
		return nil
	}
	col := &ColumnSchema{
		Index:       index,
		FieldName:   cd.Field,
		HeaderTitle: r.headerTitle(cd),
		Required:    cd.Required,
		DatePattern: cd.DatePattern,
		Kind:        field.Kind,
		Field:       field,
	}
	if field.Kind == KindCustom && field.Codec == nil {
		r.errorf(sheet.Name, cd.Field, "custom field has no codec")
	}
	if cd.Type != "" {
		if kind, err := ParseFieldKind(cd.Type); err == nil && kind != field.Kind {
			r.warnf(sheet.Name, cd.Field, "column type %s differs from field kind %s; field kind wins", kind, field.Kind)
		}
	}
	if cd.DatePattern != "" && !field.Kind.isTime() && field.Kind != KindString {
		r.warnf(sheet.Name, cd.Field, "date pattern on a %s field is ignored", field.Kind)
	}
	if cd.Pattern != "" {
		re, err := regexp.Compile("(?i)" + cd.Pattern)
		if err != nil {
			r.errorf(sheet.Name, cd.Field, "invalid pattern %q: %v", cd.Pattern, err)
		} else {
			col.Pattern = re
			col.PatternText = cd.Pattern
		}
	}

	col.Validators = []Named[CellValidator]{
		{Name: "required", Validator: requiredValidator{}},
		{Name: "pattern", Validator: patternValidator{}},
	}
	for _, ref := range cd.Validators {
		v, err := r.m.registry.Cell(ref)
		if err != nil {
			r.errorf(sheet.Name, cd.Field, "%v", err)
			continue
		}
		col.Validators = append(col.Validators, v)
	}
	for _, rule := range cd.Rules {
		if rule.Expr == "" {
			continue
		}
		program, err := r.m.rules.compile(rule.Expr)
		if err != nil {
			r.errorf(sheet.Name, cd.Field, "invalid rule %q: %v", rule.Expr, err)
			continue
		}
		col.Validators = append(col.Validators, Named[CellValidator]{
			Name:      "rule",
			Validator: &ruleValidator{eval: r.m.rules, program: program, source: rule.Expr, message: rule.Message},
		})
	}
	return col
}

// headerTitle falls back to the field name, then looks the title up as a
// message key, keeping the literal when no bundle defines it.
func (r *resolver) headerTitle(cd *Column) string {
	title := strings.TrimSpace(cd.Header)
	if title == "" {
		title = cd.Field
	}
	if r.m.messages.Has(title) {
		return r.m.messages.Get(title)
	}
	return title
}
