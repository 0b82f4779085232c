package xlbind

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// Format selects how input bytes are decoded.
type Format int

const (
	FormatModern Format = iota // Office Open XML (.xlsx)
	FormatLegacy               // BIFF8 (.xls), converted before mapping
)

func (f Format) String() string {
	if f == FormatLegacy {
		return "legacy"
	}
	return "modern"
}

// ParseFormat accepts "modern"/"xlsx" and "legacy"/"xls".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "modern", "xlsx":
		return FormatModern, nil
	case "legacy", "xls":
		return FormatLegacy, nil
	}
	return FormatModern, fmt.Errorf("unknown format %q", s)
}

// Options holds configuration for the Mapper.
type Options struct {
	format             Format
	locale             string
	bundles            []Bundle
	registry           *Registry
	cellValidators     map[string]CellValidator
	columnValidators   map[string]ColumnValidator
	rowValidators      map[string]RowValidator
	logger             logrus.FieldLogger
	strict             bool
	datePatterns       []string
	defaultDatePattern string
	legacyCharset      string
}

func defaultOptions() *Options {
	return &Options{
		format:             FormatModern,
		locale:             "en",
		defaultDatePattern: DefaultDatePattern,
		legacyCharset:      "utf-8",
	}
}

// Option configures the Mapper.
type Option func(*Options)

// WithFormat sets the input format (default: FormatModern).
func WithFormat(f Format) Option {
	return func(o *Options) { o.format = f }
}

// WithLocale sets the BCP 47 locale used for messages and number parsing (default: "en").
func WithLocale(tag string) Option {
	return func(o *Options) { o.locale = tag }
}

// WithBundle adds a message bundle. Bundles are consulted in the order added,
// all before the library bundle.
func WithBundle(b Bundle) Option {
	return func(o *Options) { o.bundles = append(o.bundles, b) }
}

// WithMessages adds an inline message bundle.
func WithMessages(m map[string]string) Option {
	return WithBundle(BundleMap(m))
}

// WithRegistry replaces the validator registry. The mapper works on a copy
// of r: validator options never modify r, and factories registered on r
// after New are not seen.
func WithRegistry(r *Registry) Option {
	return func(o *Options) { o.registry = r }
}

// WithCellValidator registers a cell validator under name.
func WithCellValidator(name string, v CellValidator) Option {
	return func(o *Options) {
		if o.cellValidators == nil {
			o.cellValidators = make(map[string]CellValidator)
		}
		o.cellValidators[name] = v
	}
}

// WithColumnValidator registers a column validator under name.
func WithColumnValidator(name string, v ColumnValidator) Option {
	return func(o *Options) {
		if o.columnValidators == nil {
			o.columnValidators = make(map[string]ColumnValidator)
		}
		o.columnValidators[name] = v
	}
}

// WithRowValidator registers a row validator under name.
func WithRowValidator(name string, v RowValidator) Option {
	return func(o *Options) {
		if o.rowValidators == nil {
			o.rowValidators = make(map[string]RowValidator)
		}
		o.rowValidators[name] = v
	}
}

// WithLogger sets the logger. The default logs warnings to stderr.
func WithLogger(l logrus.FieldLogger) Option {
	return func(o *Options) { o.logger = l }
}

// WithStrict makes Import return a *ValidationError instead of a result when
// any violation was found.
func WithStrict(strict bool) Option {
	return func(o *Options) { o.strict = strict }
}

// WithDatePatterns replaces the fallback patterns tried when text becomes a date.
func WithDatePatterns(patterns ...string) Option {
	return func(o *Options) { o.datePatterns = patterns }
}

// WithDefaultDatePattern sets the pattern for date columns that declare none
// (default: "dd.MM.yyyy").
func WithDefaultDatePattern(pattern string) Option {
	return func(o *Options) { o.defaultDatePattern = pattern }
}

// WithLegacyCharset sets the code page name handed to the legacy reader.
func WithLegacyCharset(charset string) Option {
	return func(o *Options) { o.legacyCharset = charset }
}
