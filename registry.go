package xlbind

import (
	"fmt"
	"maps"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// CellValidatorFactory creates a CellValidator from reference arguments.
type CellValidatorFactory func(args []string) (CellValidator, error)

// ColumnValidatorFactory creates a ColumnValidator from reference arguments.
type ColumnValidatorFactory func(args []string) (ColumnValidator, error)

// RowValidatorFactory creates a RowValidator from reference arguments.
type RowValidatorFactory func(args []string) (RowValidator, error)

// Registry maps validator names to their factories. Schemas refer to
// validators as "name" or "name(arg, arg)". The zero value is an empty
// registry ready to use.
type Registry struct {
	cells   map[string]CellValidatorFactory
	columns map[string]ColumnValidatorFactory
	rows    map[string]RowValidatorFactory
}

// NewRegistry creates a registry with the built-in validators.
func NewRegistry() *Registry {
	r := &Registry{
		cells:   make(map[string]CellValidatorFactory),
		columns: make(map[string]ColumnValidatorFactory),
		rows:    make(map[string]RowValidatorFactory),
	}
	r.RegisterCell("maxLength", newMaxLength)
	r.RegisterCell("minLength", newMinLength)
	r.RegisterCell("oneOf", newOneOf)
	r.RegisterCell("email", tagValidator("email", "email.validation.error"))
	r.RegisterCell("url", tagValidator("url", "url.validation.error"))
	r.RegisterColumn("headerOrder", noArgs[ColumnValidator](headerOrder{}))
	r.RegisterColumn("noExtraHeaders", noArgs[ColumnValidator](noExtraHeaders{}))
	r.RegisterRow("duplicateKey", func(args []string) (RowValidator, error) {
		if len(args) == 0 {
			return nil, fmt.Errorf("duplicateKey needs at least one field")
		}
		return DuplicateKey(args...), nil
	})
	return r
}

// RegisterCell adds a cell validator factory.
func (r *Registry) RegisterCell(name string, factory CellValidatorFactory) {
	if r.cells == nil {
		r.cells = make(map[string]CellValidatorFactory)
	}
	r.cells[name] = factory
}

// RegisterColumn adds a column validator factory.
func (r *Registry) RegisterColumn(name string, factory ColumnValidatorFactory) {
	if r.columns == nil {
		r.columns = make(map[string]ColumnValidatorFactory)
	}
	r.columns[name] = factory
}

// RegisterRow adds a row validator factory.
func (r *Registry) RegisterRow(name string, factory RowValidatorFactory) {
	if r.rows == nil {
		r.rows = make(map[string]RowValidatorFactory)
	}
	r.rows[name] = factory
}

// clone copies the factory tables so later registrations stay local.
func (r *Registry) clone() *Registry {
	return &Registry{
		cells:   maps.Clone(r.cells),
		columns: maps.Clone(r.columns),
		rows:    maps.Clone(r.rows),
	}
}

// Cell creates the cell validator a reference names.
func (r *Registry) Cell(ref string) (Named[CellValidator], error) {
	return create[CellValidator](r.cells, "cell", ref)
}

// Column creates the column validator a reference names.
func (r *Registry) Column(ref string) (Named[ColumnValidator], error) {
	return create[ColumnValidator](r.columns, "column", ref)
}

// Row creates the row validator a reference names.
func (r *Registry) Row(ref string) (Named[RowValidator], error) {
	return create[RowValidator](r.rows, "row", ref)
}

func create[V any, F ~func([]string) (V, error)](factories map[string]F, tier, ref string) (Named[V], error) {
	name, args, err := parseRef(ref)
	if err != nil {
		return Named[V]{}, err
	}
	factory, ok := factories[name]
	if !ok {
		return Named[V]{}, fmt.Errorf("unknown %s validator %q", tier, name)
	}
	v, err := factory(args)
	if err != nil {
		return Named[V]{}, fmt.Errorf("%s validator %q: %w", tier, name, err)
	}
	return Named[V]{Name: name, Validator: v}, nil
}

// parseRef splits "name(a, b)" into name and arguments.
func parseRef(ref string) (string, []string, error) {
	ref = strings.TrimSpace(ref)
	open := strings.IndexByte(ref, '(')
	if open < 0 {
		if ref == "" {
			return "", nil, fmt.Errorf("empty validator reference")
		}
		return ref, nil, nil
	}
	if !strings.HasSuffix(ref, ")") {
		return "", nil, fmt.Errorf("invalid validator reference %q", ref)
	}
	name := strings.TrimSpace(ref[:open])
	if name == "" {
		return "", nil, fmt.Errorf("invalid validator reference %q", ref)
	}
	inner := strings.TrimSpace(ref[open+1 : len(ref)-1])
	if inner == "" {
		return name, nil, nil
	}
	var args []string
	for _, a := range strings.Split(inner, ",") {
		args = append(args, strings.Trim(strings.TrimSpace(a), `"'`))
	}
	return name, args, nil
}

func noArgs[V any](v V) func([]string) (V, error) {
	return func(args []string) (V, error) {
		if len(args) > 0 {
			var zero V
			return zero, fmt.Errorf("takes no arguments")
		}
		return v, nil
	}
}

func intArg(args []string) (int, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("takes exactly one argument")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 0 {
		return 0, fmt.Errorf("argument %q is not a non-negative integer", args[0])
	}
	return n, nil
}

func newMaxLength(args []string) (CellValidator, error) {
	limit, err := intArg(args)
	if err != nil {
		return nil, err
	}
	return CellValidatorFunc(func(ctx *CellContext) string {
		if utf8.RuneCountInString(ctx.Value) > limit {
			return ctx.Messages.Get("maxlength.validation.error", limit)
		}
		return ""
	}), nil
}

func newMinLength(args []string) (CellValidator, error) {
	limit, err := intArg(args)
	if err != nil {
		return nil, err
	}
	return CellValidatorFunc(func(ctx *CellContext) string {
		if ctx.Value != "" && utf8.RuneCountInString(ctx.Value) < limit {
			return ctx.Messages.Get("minlength.validation.error", limit)
		}
		return ""
	}), nil
}

func newOneOf(args []string) (CellValidator, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("needs at least one value")
	}
	allowed := make(map[string]bool, len(args))
	for _, a := range args {
		allowed[strings.ToLower(a)] = true
	}
	return CellValidatorFunc(func(ctx *CellContext) string {
		if ctx.Value != "" && !allowed[strings.ToLower(ctx.Value)] {
			return ctx.Messages.Get("oneof.validation.error", args)
		}
		return ""
	}), nil
}

var tagValidate = validator.New(validator.WithRequiredStructEnabled())

// tagValidator checks cell text against a go-playground validator tag.
func tagValidator(tag, key string) CellValidatorFactory {
	return func(args []string) (CellValidator, error) {
		if len(args) > 0 {
			return nil, fmt.Errorf("takes no arguments")
		}
		return CellValidatorFunc(func(ctx *CellContext) string {
			if ctx.Value == "" {
				return ""
			}
			if err := tagValidate.Var(ctx.Value, tag); err != nil {
				return ctx.Messages.Get(key)
			}
			return ""
		}), nil
	}
}

// headerOrder requires every expected header at its schema position.
type headerOrder struct{}

func (headerOrder) ValidateColumns(ctx *SheetContext) []Finding {
	header := ctx.Header()
	var findings []Finding
	for _, col := range ctx.Schema.Columns {
		found := ""
		if col.Index < len(header) {
			found = header[col.Index]
		}
		if found != col.HeaderTitle {
			findings = append(findings, Finding{
				Row:     -1,
				Col:     col.Index,
				Header:  col.HeaderTitle,
				Message: ctx.Messages.Get("header.order.error", col.HeaderTitle, ColToName(col.Index), found),
			})
		}
	}
	return findings
}

// noExtraHeaders rejects header titles the schema does not declare.
type noExtraHeaders struct{}

func (noExtraHeaders) ValidateColumns(ctx *SheetContext) []Finding {
	declared := make(map[string]bool, len(ctx.Schema.Columns))
	for _, col := range ctx.Schema.Columns {
		declared[col.HeaderTitle] = true
	}
	var findings []Finding
	for i, h := range ctx.Header() {
		if h == "" || declared[h] {
			continue
		}
		findings = append(findings, Finding{
			Row:     -1,
			Col:     i,
			Header:  h,
			Message: ctx.Messages.Get("header.extra.error", h, ColToName(i)),
		})
	}
	return findings
}

// DuplicateKey returns a row validator flagging rows whose values in the
// given fields repeat an earlier row. Rows with all key cells blank are
// ignored.
func DuplicateKey(fields ...string) RowValidator {
	return &duplicateKey{fields: fields}
}

type duplicateKey struct {
	fields []string
}

func (d *duplicateKey) CheckSchema(sheet *SheetSchema) error {
	for _, f := range d.fields {
		if sheet.Column(f) == nil {
			return fmt.Errorf("duplicateKey: sheet %q has no column for field %q", sheet.Name, f)
		}
	}
	return nil
}

func (d *duplicateKey) ValidateRows(ctx *SheetContext) []Finding {
	cols := make([]*ColumnSchema, 0, len(d.fields))
	titles := make([]string, 0, len(d.fields))
	for _, f := range d.fields {
		if col := ctx.Schema.Column(f); col != nil {
			cols = append(cols, col)
			titles = append(titles, col.HeaderTitle)
		}
	}
	if len(cols) == 0 {
		return nil
	}

	seen := make(map[string]int)
	parts := make([]string, len(cols))
	var findings []Finding
	for i := 0; i < ctx.RowCount(); i++ {
		blank := true
		for j, col := range cols {
			parts[j] = ctx.Text(i, col)
			if parts[j] != "" {
				blank = false
			}
		}
		if blank {
			continue
		}
		key := strings.Join(parts, rowKeySeparator)
		if first, ok := seen[key]; ok {
			col := -1
			if len(cols) == 1 {
				col = ctx.Position(cols[0])
			}
			findings = append(findings, Finding{
				Row:     i,
				Col:     col,
				Message: ctx.Messages.Get("duplicate.key.error", strings.Join(titles, ", "), strings.Join(parts, ", "), sheetRowNumber(first)),
			})
			continue
		}
		seen[key] = i
	}
	return findings
}
