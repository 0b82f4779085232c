package xlbind

import (
	"strings"
	"time"
	"unicode"
)

// Date patterns use the dd.MM.yyyy notation common to spreadsheet users:
// y year, M month, d day, H hour (0-23), h hour (1-12), m minute, s second,
// S fraction, a AM/PM marker, E weekday, Z/X zone. Text in single quotes is
// literal and '' is a quote.

type patternToken struct {
	letter  rune // 0 for literal text
	count   int
	literal string
}

func tokenizePattern(pattern string) []patternToken {
	var tokens []patternToken
	runes := []rune(pattern)
	for i := 0; i < len(runes); {
		r := runes[i]
		switch {
		case r == '\'':
			if i+1 < len(runes) && runes[i+1] == '\'' {
				tokens = append(tokens, patternToken{literal: "'"})
				i += 2
				continue
			}
			j := i + 1
			var b strings.Builder
			for j < len(runes) {
				if runes[j] == '\'' {
					if j+1 < len(runes) && runes[j+1] == '\'' {
						b.WriteRune('\'')
						j += 2
						continue
					}
					break
				}
				b.WriteRune(runes[j])
				j++
			}
			tokens = append(tokens, patternToken{literal: b.String()})
			i = j + 1
		case isPatternLetter(r):
			j := i
			for j < len(runes) && runes[j] == r {
				j++
			}
			tokens = append(tokens, patternToken{letter: r, count: j - i})
			i = j
		default:
			tokens = append(tokens, patternToken{literal: string(r)})
			i++
		}
	}
	return tokens
}

func isPatternLetter(r rune) bool {
	return strings.ContainsRune("yMdHhmsSaEZXz", r)
}

// GoLayout converts a date pattern such as "dd.MM.yyyy HH:mm" to a Go time layout.
func GoLayout(pattern string) string {
	var b strings.Builder
	for _, t := range tokenizePattern(pattern) {
		if t.letter == 0 {
			b.WriteString(t.literal)
			continue
		}
		switch t.letter {
		case 'y':
			if t.count == 2 {
				b.WriteString("06")
			} else {
				b.WriteString("2006")
			}
		case 'M':
			b.WriteString(pick(t.count, "1", "01", "Jan", "January"))
		case 'd':
			b.WriteString(pick(t.count, "2", "02"))
		case 'H':
			b.WriteString("15")
		case 'h':
			b.WriteString(pick(t.count, "3", "03"))
		case 'm':
			b.WriteString(pick(t.count, "4", "04"))
		case 's':
			b.WriteString(pick(t.count, "5", "05"))
		case 'S':
			b.WriteString(strings.Repeat("0", t.count))
		case 'a':
			b.WriteString("PM")
		case 'E':
			if t.count <= 3 {
				b.WriteString("Mon")
			} else {
				b.WriteString("Monday")
			}
		case 'Z':
			b.WriteString("-0700")
		case 'X':
			b.WriteString("Z07:00")
		case 'z':
			b.WriteString("MST")
		}
	}
	return b.String()
}

// ExcelNumFmt converts a date pattern to a spreadsheet number format code.
func ExcelNumFmt(pattern string) string {
	var b strings.Builder
	for _, t := range tokenizePattern(pattern) {
		if t.letter == 0 {
			b.WriteString(excelLiteral(t.literal))
			continue
		}
		switch t.letter {
		case 'y':
			if t.count == 2 {
				b.WriteString("yy")
			} else {
				b.WriteString("yyyy")
			}
		case 'M':
			b.WriteString(pick(t.count, "m", "mm", "mmm", "mmmm"))
		case 'd':
			b.WriteString(pick(t.count, "d", "dd"))
		case 'H', 'h':
			b.WriteString(pick(t.count, "h", "hh"))
		case 'm':
			b.WriteString(pick(t.count, "m", "mm"))
		case 's':
			b.WriteString(pick(t.count, "s", "ss"))
		case 'S':
			b.WriteString(strings.Repeat("0", t.count))
		case 'a':
			b.WriteString("AM/PM")
		case 'E':
			if t.count <= 3 {
				b.WriteString("ddd")
			} else {
				b.WriteString("dddd")
			}
		}
	}
	return b.String()
}

func excelLiteral(s string) string {
	if s == "" {
		return ""
	}
	plain := true
	for _, r := range s {
		if !strings.ContainsRune(" .-/:,", r) {
			plain = false
			break
		}
	}
	if plain {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

// pick returns options[count-1], clamped to the last option.
func pick(count int, options ...string) string {
	if count > len(options) {
		count = len(options)
	}
	if count < 1 {
		count = 1
	}
	return options[count-1]
}

// isDateNumFmtID reports whether a built-in number format id renders a date or time.
func isDateNumFmtID(id int) bool {
	switch {
	case id >= 14 && id <= 22:
		return true
	case id >= 27 && id <= 36:
		return true
	case id >= 45 && id <= 47:
		return true
	case id >= 50 && id <= 58:
		return true
	}
	return false
}

// isDateFormatCode reports whether a custom number format contains date or
// time tokens outside quoted text, brackets and escapes.
func isDateFormatCode(code string) bool {
	if i := strings.IndexByte(code, ';'); i >= 0 {
		code = code[:i]
	}
	runes := []rune(code)
	for i := 0; i < len(runes); i++ {
		switch r := runes[i]; r {
		case '"':
			for i++; i < len(runes) && runes[i] != '"'; i++ {
			}
		case '[':
			for i++; i < len(runes) && runes[i] != ']'; i++ {
			}
		case '\\', '_', '*':
			i++
		default:
			switch unicode.ToLower(r) {
			case 'y', 'm', 'd', 'h', 's':
				return true
			}
		}
	}
	return false
}

// truncateDay drops the time of day, keeping the calendar date in UTC.
func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
