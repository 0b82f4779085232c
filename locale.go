package xlbind

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Locale carries the number conventions of a language.
type Locale struct {
	Tag     language.Tag
	Decimal rune
	Group   rune

	printer *message.Printer
}

// NewLocale derives decimal and grouping separators by formatting a sample
// number with the locale's printer.
func NewLocale(tag language.Tag) *Locale {
	p := message.NewPrinter(tag)
	loc := &Locale{Tag: tag, Decimal: '.', Group: ',', printer: p}

	sample := p.Sprintf("%.1f", 1234.5) // "1,234.5", "1.234,5", "1 234,5"
	var seps []rune
	for _, r := range sample {
		if !unicode.IsDigit(r) {
			seps = append(seps, r)
		}
	}
	switch len(seps) {
	case 1:
		loc.Decimal = seps[0]
		loc.Group = 0
	case 2:
		loc.Group, loc.Decimal = seps[0], seps[1]
	}
	return loc
}

// ParseLocale parses a BCP 47 tag such as "en", "tr-TR" or "de_DE".
func ParseLocale(s string) (*Locale, error) {
	if s == "" {
		return NewLocale(language.English), nil
	}
	tag, err := language.Parse(strings.ReplaceAll(s, "_", "-"))
	if err != nil {
		return nil, err
	}
	return NewLocale(tag), nil
}

// Sprint formats a value the way the locale prints it.
func (l *Locale) Sprint(v any) string {
	return l.printer.Sprint(v)
}

// ParseNumber parses text written in the locale's convention. It accepts the
// longest numeric prefix, so "12abc" parses as 12. ok is false when no digits
// lead the text.
func (l *Locale) ParseNumber(text string) (normalized string, ok bool) {
	s := strings.TrimSpace(text)
	var b strings.Builder
	digits := 0
	seenDecimal := false
	seenExp := false

	for i, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
			digits++
		case (r == '-' || r == '+') && i == 0:
			b.WriteRune(r)
		case r == l.Decimal && !seenDecimal && !seenExp:
			seenDecimal = true
			b.WriteByte('.')
		case l.Group != 0 && isGroupRune(r, l.Group) && !seenDecimal && !seenExp && digits > 0:
			// grouping separators carry no value
		case (r == 'e' || r == 'E') && digits > 0 && !seenExp:
			rest := s[i+utf8.RuneLen(r):]
			if !startsExponent(rest) {
				return finishNumber(b.String(), digits)
			}
			seenExp = true
			b.WriteByte('e')
		case (r == '-' || r == '+') && seenExp && strings.HasSuffix(b.String(), "e"):
			b.WriteRune(r)
		default:
			return finishNumber(b.String(), digits)
		}
	}
	return finishNumber(b.String(), digits)
}

func finishNumber(s string, digits int) (string, bool) {
	if digits == 0 {
		return "", false
	}
	s = strings.TrimRight(s, "e+-")
	s = strings.TrimSuffix(s, ".")
	return s, true
}

func startsExponent(rest string) bool {
	rest = strings.TrimLeft(rest, "+-")
	if rest == "" {
		return false
	}
	r, _ := utf8.DecodeRuneInString(rest)
	return unicode.IsDigit(r)
}

func isGroupRune(r, group rune) bool {
	if unicode.IsSpace(group) || group == '\u202f' {
		// space-grouping locales accept any space variant
		return unicode.IsSpace(r) || r == '\u202f'
	}
	return r == group
}
