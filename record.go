package xlbind

import (
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// FieldKind is the target type of a record field.
type FieldKind int

const (
	KindString   FieldKind = iota // string
	KindInt                       // int
	KindInt64                     // int64
	KindFloat                     // float64
	KindFloat32                   // float32
	KindDecimal                   // pgtype.Numeric
	KindBool                      // bool
	KindDate                      // time.Time at midnight UTC
	KindDateTime                  // time.Time
	KindCustom                    // whatever the field's Codec produces
)

var kindNames = map[FieldKind]string{
	KindString:   "string",
	KindInt:      "int",
	KindInt64:    "int64",
	KindFloat:    "float",
	KindFloat32:  "float32",
	KindDecimal:  "decimal",
	KindBool:     "bool",
	KindDate:     "date",
	KindDateTime: "datetime",
	KindCustom:   "custom",
}

func (k FieldKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("FieldKind(%d)", int(k))
}

// ParseFieldKind parses a kind name as used in YAML descriptors.
func ParseFieldKind(s string) (FieldKind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k, name := range kindNames {
		if name == s && k != KindCustom {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown field type %q", s)
}

func (k FieldKind) isNumeric() bool {
	switch k {
	case KindInt, KindInt64, KindFloat, KindFloat32, KindDecimal:
		return true
	}
	return false
}

func (k FieldKind) isTime() bool {
	return k == KindDate || k == KindDateTime
}

// Codec converts cells to and from a domain-specific field value.
type Codec interface {
	// Decode turns a non-blank cell into the field value.
	Decode(cell Cell) (any, error)
	// Encode turns a field value into something a spreadsheet cell accepts.
	Encode(v any) (any, error)
}

// Field is one entry of a record accessor table.
type Field struct {
	Name  string
	Kind  FieldKind
	Codec Codec // KindCustom only

	get func(rec any) (any, error)
	set func(rec any, v any) error
}

// Get reads the field from rec. A nil result means the field is empty.
func (f *Field) Get(rec any) (any, error) {
	return f.get(rec)
}

// Set assigns v to the field of rec. A nil v leaves the field untouched.
func (f *Field) Set(rec any, v any) error {
	if v == nil {
		return nil
	}
	return f.set(rec, v)
}

// RecordType describes how to construct a record and reach its fields.
type RecordType struct {
	name   string
	newRec func() any
	fields map[string]*Field
	order  []string
}

// Name returns the record type name.
func (rt *RecordType) Name() string { return rt.name }

// New constructs an empty record.
func (rt *RecordType) New() any { return rt.newRec() }

// Field looks up a field by name.
func (rt *RecordType) Field(name string) (*Field, bool) {
	f, ok := rt.fields[name]
	return f, ok
}

// Fields returns the fields in declaration order.
func (rt *RecordType) Fields() []*Field {
	out := make([]*Field, 0, len(rt.order))
	for _, name := range rt.order {
		out = append(out, rt.fields[name])
	}
	return out
}

func (rt *RecordType) add(f *Field) {
	if _, dup := rt.fields[f.Name]; !dup {
		rt.order = append(rt.order, f.Name)
	}
	rt.fields[f.Name] = f
}

// FieldDef declares one field of a record type R.
type FieldDef[R any] struct {
	field *Field
}

// NewRecordType builds the accessor table for records of type *R.
func NewRecordType[R any](name string, defs ...FieldDef[R]) *RecordType {
	rt := &RecordType{
		name:   name,
		newRec: func() any { return new(R) },
		fields: make(map[string]*Field, len(defs)),
	}
	for _, d := range defs {
		rt.add(d.field)
	}
	return rt
}

func recordOf[R any](rec any) (*R, error) {
	r, ok := rec.(*R)
	if !ok || r == nil {
		return nil, fmt.Errorf("record is %T, want %T", rec, (*R)(nil))
	}
	return r, nil
}

func bind[R, V any](name string, kind FieldKind, get func(*R) V, set func(*R, V)) FieldDef[R] {
	return FieldDef[R]{field: &Field{
		Name: name,
		Kind: kind,
		get: func(rec any) (any, error) {
			r, err := recordOf[R](rec)
			if err != nil {
				return nil, err
			}
			return get(r), nil
		},
		set: func(rec any, v any) error {
			r, err := recordOf[R](rec)
			if err != nil {
				return err
			}
			val, ok := v.(V)
			if !ok {
				return fmt.Errorf("field %s: cannot assign %T", name, v)
			}
			set(r, val)
			return nil
		},
	}}
}

func bindOptional[R, V any](name string, kind FieldKind, get func(*R) *V, set func(*R, *V)) FieldDef[R] {
	return FieldDef[R]{field: &Field{
		Name: name,
		Kind: kind,
		get: func(rec any) (any, error) {
			r, err := recordOf[R](rec)
			if err != nil {
				return nil, err
			}
			if p := get(r); p != nil {
				return *p, nil
			}
			return nil, nil
		},
		set: func(rec any, v any) error {
			r, err := recordOf[R](rec)
			if err != nil {
				return err
			}
			val, ok := v.(V)
			if !ok {
				return fmt.Errorf("field %s: cannot assign %T", name, v)
			}
			set(r, &val)
			return nil
		},
	}}
}

func StringField[R any](name string, get func(*R) string, set func(*R, string)) FieldDef[R] {
	return bind(name, KindString, get, set)
}

func IntField[R any](name string, get func(*R) int, set func(*R, int)) FieldDef[R] {
	return bind(name, KindInt, get, set)
}

func Int64Field[R any](name string, get func(*R) int64, set func(*R, int64)) FieldDef[R] {
	return bind(name, KindInt64, get, set)
}

func FloatField[R any](name string, get func(*R) float64, set func(*R, float64)) FieldDef[R] {
	return bind(name, KindFloat, get, set)
}

func Float32Field[R any](name string, get func(*R) float32, set func(*R, float32)) FieldDef[R] {
	return bind(name, KindFloat32, get, set)
}

// DecimalField binds an arbitrary-precision numeric field.
func DecimalField[R any](name string, get func(*R) pgtype.Numeric, set func(*R, pgtype.Numeric)) FieldDef[R] {
	return bind(name, KindDecimal, get, set)
}

func BoolField[R any](name string, get func(*R) bool, set func(*R, bool)) FieldDef[R] {
	return bind(name, KindBool, get, set)
}

// DateField binds a calendar date. Times are dropped on import.
func DateField[R any](name string, get func(*R) time.Time, set func(*R, time.Time)) FieldDef[R] {
	return bind(name, KindDate, get, set)
}

func DateTimeField[R any](name string, get func(*R) time.Time, set func(*R, time.Time)) FieldDef[R] {
	return bind(name, KindDateTime, get, set)
}

// OptionalIntField binds an *int, left nil for blank cells.
func OptionalIntField[R any](name string, get func(*R) *int, set func(*R, *int)) FieldDef[R] {
	return bindOptional(name, KindInt, get, set)
}

// OptionalFloatField binds a *float64, left nil for blank cells.
func OptionalFloatField[R any](name string, get func(*R) *float64, set func(*R, *float64)) FieldDef[R] {
	return bindOptional(name, KindFloat, get, set)
}

// OptionalTimeField binds a *time.Time holding a date, left nil for blank cells.
func OptionalTimeField[R any](name string, get func(*R) *time.Time, set func(*R, *time.Time)) FieldDef[R] {
	return bindOptional(name, KindDate, get, set)
}

// CustomField binds a field converted by codec.
func CustomField[R any](name string, codec Codec, get func(*R) any, set func(*R, any)) FieldDef[R] {
	d := bind(name, KindCustom, get, set)
	d.field.Codec = codec
	return d
}

// MapField names one entry of a map-backed record.
type MapField struct {
	Name string
	Kind FieldKind
}

// MapRecordType describes records stored as map[string]any, for schemas
// loaded at runtime.
func MapRecordType(name string, fields ...MapField) *RecordType {
	rt := &RecordType{
		name:   name,
		newRec: func() any { return map[string]any{} },
		fields: make(map[string]*Field, len(fields)),
	}
	for _, mf := range fields {
		key := mf.Name
		rt.add(&Field{
			Name: key,
			Kind: mf.Kind,
			get: func(rec any) (any, error) {
				m, ok := rec.(map[string]any)
				if !ok {
					return nil, fmt.Errorf("record is %T, want map[string]any", rec)
				}
				return m[key], nil
			},
			set: func(rec any, v any) error {
				m, ok := rec.(map[string]any)
				if !ok {
					return fmt.Errorf("record is %T, want map[string]any", rec)
				}
				m[key] = v
				return nil
			},
		})
	}
	return rt
}
