package xlbind

import (
	"fmt"
	"strings"
)

// Describe returns a human-readable tree of a resolved schema: sheets, their
// columns with bindings and checks, and the sheet-level validators. Useful
// for reviewing a descriptor loaded at runtime.
func Describe(schema *WorkbookSchema) string {
	var b strings.Builder
	if schema == nil {
		b.WriteString("Workbook: <nil>\n")
		return b.String()
	}
	fmt.Fprintf(&b, "Workbook: %s\n", schema.Name)
	for _, sheet := range schema.Sheets {
		describeSheet(&b, sheet)
	}
	return b.String()
}

func describeSheet(b *strings.Builder, sheet *SheetSchema) {
	fmt.Fprintf(b, "  Sheet %q -> %s (%s)%s\n", sheet.Name, sheet.Field, sheet.Record.Name(), sheetFlags(sheet))

	b.WriteString("    Columns:\n")
	for _, col := range sheet.Columns {
		fmt.Fprintf(b, "      %s %q %s %s%s\n", ColToName(col.Index), col.HeaderTitle, col.FieldName, col.Kind, columnAttrs(col))
		for _, v := range col.Validators {
			if v.Name == "required" || v.Name == "pattern" {
				continue
			}
			fmt.Fprintf(b, "        check %s%s\n", v.Name, validatorAttrs(v.Validator))
		}
	}

	if len(sheet.ColumnValidators) > 0 {
		b.WriteString("    Header checks:\n")
		for _, v := range sheet.ColumnValidators {
			fmt.Fprintf(b, "      %s\n", v.Name)
		}
	}
	if len(sheet.RowValidators) > 0 {
		b.WriteString("    Row checks:\n")
		for _, v := range sheet.RowValidators {
			fmt.Fprintf(b, "      %s%s\n", v.Name, validatorAttrs(v.Validator))
		}
	}
}

func sheetFlags(sheet *SheetSchema) string {
	var parts []string
	if sheet.Required {
		parts = append(parts, "required")
	}
	if !sheet.ImportEnabled {
		parts = append(parts, "skip-import")
	}
	if !sheet.ValidateEnabled {
		parts = append(parts, "skip-validation")
	}
	if !sheet.DetectDuplicates {
		parts = append(parts, "allow-duplicates")
	}
	if len(parts) == 0 {
		return ""
	}
	return " [" + strings.Join(parts, " ") + "]"
}

// columnAttrs returns the non-default column settings for display.
func columnAttrs(col *ColumnSchema) string {
	var parts []string
	if col.Required {
		parts = append(parts, "required")
	}
	if col.PatternText != "" {
		parts = append(parts, fmt.Sprintf("pattern=%q", col.PatternText))
	}
	if col.DatePattern != "" {
		parts = append(parts, fmt.Sprintf("datePattern=%q", col.DatePattern))
	}
	if len(parts) == 0 {
		return ""
	}
	return " " + strings.Join(parts, " ")
}

func validatorAttrs(v any) string {
	switch x := v.(type) {
	case *ruleValidator:
		return fmt.Sprintf(" expr=%q", x.source)
	case *duplicateKey:
		return fmt.Sprintf(" fields=%q", strings.Join(x.fields, ","))
	}
	return ""
}
