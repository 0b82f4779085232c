package xlbind

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/language"
)

// Mapper resolves schemas and runs imports, validations and exports. The
// registry, messages and coercer are built once and only read by runs.
type Mapper struct {
	opts     *Options
	registry *Registry
	messages *Messages
	coercer  *Coercer
	rules    *ruleEvaluator
	log      logrus.FieldLogger
}

// New creates a Mapper with the given options.
func New(opts ...Option) *Mapper {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	log := o.logger
	if log == nil {
		l := logrus.New()
		l.SetOutput(os.Stderr)
		l.SetLevel(logrus.WarnLevel)
		log = l
	}

	loc, err := ParseLocale(o.locale)
	if err != nil {
		log.WithError(err).WithField("locale", o.locale).Warn("invalid locale, using English")
		loc = NewLocale(language.English)
	}

	var reg *Registry
	if o.registry != nil {
		reg = o.registry.clone()
	} else {
		reg = NewRegistry()
	}
	for name, v := range o.cellValidators {
		reg.RegisterCell(name, noArgs(v))
	}
	for name, v := range o.columnValidators {
		reg.RegisterColumn(name, noArgs(v))
	}
	for name, v := range o.rowValidators {
		reg.RegisterRow(name, noArgs(v))
	}

	msgs := NewMessages(loc, o.bundles...)
	coercer := NewCoercer(msgs, o.datePatterns...).withDefaultPattern(o.defaultDatePattern)

	return &Mapper{
		opts:     o,
		registry: reg,
		messages: msgs,
		coercer:  coercer,
		rules:    newRuleEvaluator(),
		log:      log,
	}
}

// Messages returns the message lookup the Mapper formats violations with.
func (m *Mapper) Messages() *Messages { return m.messages }

// Registry returns the validator registry.
func (m *Mapper) Registry() *Registry { return m.registry }

// Coercer returns the value coercer.
func (m *Mapper) Coercer() *Coercer { return m.coercer }

// Logger returns the logger the mapper was configured with.
func (m *Mapper) Logger() logrus.FieldLogger { return m.log }

// runLogger tags every entry of one operation with a fresh run id.
func (m *Mapper) runLogger(op string) logrus.FieldLogger {
	return m.log.WithFields(logrus.Fields{
		"run_id": uuid.NewString(),
		"op":     op,
	})
}

func checkSchema(schema *WorkbookSchema) error {
	if schema == nil {
		return newError(ErrSchema, CodeSchema, "schema is nil; resolve a descriptor first")
	}
	return nil
}

func sourceError(format string, args ...any) *Error {
	return newError(ErrSource, CodeSource, fmt.Sprintf(format, args...))
}
