// Package main provides the xlbind command line tool.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/javajack/xlbind"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	configPath string
	schemaPath string
	locale     string
	format     string
	bundles    []string
	strict     bool
	logLevel   string
	logFormat  string
	pretty     bool
	outputPath string
)

// errViolations makes the process exit 1 after the report was printed.
var errViolations = errors.New("violations found")

func main() {
	rootCmd := &cobra.Command{
		Use:           "xlbind",
		Short:         "Map spreadsheets to records and back",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "YAML config file")
	pf.StringVar(&schemaPath, "schema", "", "YAML workbook descriptor (required)")
	pf.StringVar(&locale, "locale", "", "Locale for messages and number parsing, e.g. en or tr")
	pf.StringVar(&format, "format", "", "Input format: modern (xlsx) or legacy (xls)")
	pf.StringSliceVar(&bundles, "bundle", nil, "Message bundle YAML file (repeatable)")
	pf.BoolVar(&strict, "strict", false, "Fail the import when any violation is found")
	pf.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.StringVar(&logFormat, "log-format", "", "Log format: text or json")

	validateCmd := &cobra.Command{
		Use:   "validate [input.xlsx]",
		Short: "Validate a workbook and print its violations",
		Args:  cobra.ExactArgs(1),
		RunE:  runValidate,
	}
	importCmd := &cobra.Command{
		Use:   "import [input.xlsx]",
		Short: "Import a workbook and print records, violations and warnings as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  runImport,
	}
	importCmd.Flags().BoolVar(&pretty, "pretty", false, "Pretty-print JSON output")
	importCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file path (default: stdout)")
	exportCmd := &cobra.Command{
		Use:   "export [records.json] [output.xlsx]",
		Short: "Write JSON records to a workbook",
		Args:  cobra.ExactArgs(2),
		RunE:  runExport,
	}
	describeCmd := &cobra.Command{
		Use:   "describe",
		Short: "Print the resolved schema",
		Args:  cobra.NoArgs,
		RunE:  runDescribe,
	}
	rootCmd.AddCommand(validateCmd, importCmd, exportCmd, describeCmd)

	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errViolations) {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}

// setup builds the mapper from the config file and flags, and resolves the
// schema.
func setup(cmd *cobra.Command) (*xlbind.Mapper, *xlbind.WorkbookSchema, error) {
	if schemaPath == "" {
		return nil, nil, fmt.Errorf("--schema is required")
	}
	cfg := &xlbind.Config{}
	if configPath != "" {
		var err error
		if cfg, err = xlbind.LoadConfig(configPath); err != nil {
			return nil, nil, err
		}
	}
	flags := cmd.Flags()
	if flags.Changed("locale") {
		cfg.Locale = locale
	}
	if flags.Changed("format") {
		cfg.Format = format
	}
	if flags.Changed("strict") {
		cfg.Strict = strict
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = logLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = logFormat
	}
	cfg.Bundles = append(cfg.Bundles, bundles...)
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	opts, err := cfg.Options()
	if err != nil {
		return nil, nil, err
	}
	m := xlbind.New(opts...)

	desc, err := xlbind.LoadDescriptor(schemaPath)
	if err != nil {
		return nil, nil, err
	}
	schema, err := m.Resolve(desc)
	if err != nil {
		return nil, nil, err
	}
	return m, schema, nil
}

func runValidate(cmd *cobra.Command, args []string) error {
	m, schema, err := setup(cmd)
	if err != nil {
		return err
	}
	report, err := m.ValidateFile(args[0], schema)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, v := range report.Violations() {
		fmt.Fprintln(out, v)
	}
	if report.HasViolations() {
		fmt.Fprintf(out, "%d violation(s)\n", report.Count())
		return errViolations
	}
	fmt.Fprintln(out, "OK")
	return nil
}

type importOutput struct {
	Records    map[string][]any `json:"records"`
	Violations []violationJSON  `json:"violations"`
	Warnings   []string         `json:"warnings"`
	Skipped    []string         `json:"skipped,omitempty"`
}

type violationJSON struct {
	Sheet    string `json:"sheet"`
	Row      int    `json:"row"`
	Column   string `json:"column,omitempty"`
	Header   string `json:"header,omitempty"`
	Code     string `json:"code"`
	Message  string `json:"message"`
	Location string `json:"location"`
}

func runImport(cmd *cobra.Command, args []string) error {
	m, schema, err := setup(cmd)
	if err != nil {
		return err
	}
	res, err := m.ImportFile(args[0], schema)
	var verr *xlbind.ValidationError
	if errors.As(err, &verr) {
		for _, v := range verr.Violations() {
			fmt.Fprintln(cmd.ErrOrStderr(), v)
		}
		return errViolations
	}
	if err != nil {
		return err
	}

	out := importOutput{Records: res.Records, Violations: []violationJSON{}, Warnings: []string{}}
	for _, v := range res.Report.Violations() {
		out.Violations = append(out.Violations, violationJSON{
			Sheet:    v.Location.Sheet,
			Row:      v.Location.Row,
			Column:   xlbind.ColToName(v.Location.Col),
			Header:   v.Location.Header,
			Code:     v.Code,
			Message:  v.Message,
			Location: v.Location.String(),
		})
	}
	for _, w := range res.Warnings {
		out.Warnings = append(out.Warnings, w.String())
	}
	for _, s := range res.Skipped {
		out.Skipped = append(out.Skipped, s.Error())
	}

	var w io.Writer = cmd.OutOrStdout()
	if outputPath != "" {
		f, err := os.Create(outputPath)
		if err != nil {
			return fmt.Errorf("failed to create output: %w", err)
		}
		defer f.Close()
		w = f
	}
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(out)
}

func runExport(cmd *cobra.Command, args []string) error {
	m, schema, err := setup(cmd)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read records: %w", err)
	}
	var raw map[string][]map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to parse records: %w", err)
	}
	records, err := decodeRecords(m, schema, raw)
	if err != nil {
		return err
	}
	return m.ExportFile(args[1], schema, records)
}

// decodeRecords converts JSON objects into map records of the column kinds,
// reading each value the way a cell holding it would be read.
func decodeRecords(m *xlbind.Mapper, schema *xlbind.WorkbookSchema, raw map[string][]map[string]any) (map[string][]any, error) {
	log := m.Logger().WithField("op", "export")
	records := make(map[string][]any, len(raw))
	for _, sheet := range schema.Sheets {
		objs, ok := raw[sheet.Field]
		if !ok {
			continue
		}
		recs := make([]any, 0, len(objs))
		for i, obj := range objs {
			rec := sheet.Record.New()
			for _, col := range sheet.Columns {
				v, err := m.Coercer().Coerce(xlbind.ValueCell(obj[col.FieldName]), col.Kind, col.DatePattern)
				if err != nil {
					log.WithFields(logrus.Fields{"sheet": sheet.Name, "record": i, "field": col.FieldName}).
						WithError(err).Warn("value left empty")
					continue
				}
				if err := col.Field.Set(rec, v); err != nil {
					return nil, fmt.Errorf("%s record %d field %s: %w", sheet.Name, i, col.FieldName, err)
				}
			}
			recs = append(recs, rec)
		}
		records[sheet.Field] = recs
	}
	return records, nil
}

func runDescribe(cmd *cobra.Command, _ []string) error {
	_, schema, err := setup(cmd)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), xlbind.Describe(schema))
	return nil
}
