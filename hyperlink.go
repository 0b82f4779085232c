package xlbind

import "strings"

// Link is a field value exported as a clickable cell. Import reads such a
// cell back as its display text.
type Link struct {
	URL     string
	Display string
}

// String returns the display text, or the URL when there is none.
func (l Link) String() string {
	if l.Display != "" {
		return l.Display
	}
	return l.URL
}

// linkType returns the excelize link type for url: sheet references such as
// "Sheet1!A1" are internal ("Location"), everything else "External".
func linkType(url string) string {
	if strings.Contains(url, "://") || strings.HasPrefix(url, "mailto:") {
		return "External"
	}
	if strings.Contains(url, "!") {
		return "Location"
	}
	return "External"
}
