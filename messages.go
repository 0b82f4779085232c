package xlbind

import (
	"embed"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

//go:embed messages/*.yaml
var builtinBundles embed.FS

var (
	builtinTags    = []language.Tag{language.English, language.Turkish}
	builtinFiles   = []string{"messages/en.yaml", "messages/tr.yaml"}
	builtinMatcher = language.NewMatcher(builtinTags)
)

// Bundle is one source of localized message patterns.
type Bundle interface {
	Lookup(key string) (string, bool)
}

// BundleMap is a Bundle backed by a flat key → pattern map.
type BundleMap map[string]string

func (m BundleMap) Lookup(key string) (string, bool) {
	s, ok := m[key]
	return s, ok
}

// LoadBundle reads a flat YAML map of message keys to patterns.
func LoadBundle(r io.Reader) (BundleMap, error) {
	m := BundleMap{}
	if err := yaml.NewDecoder(r).Decode(&m); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode message bundle: %w", err)
	}
	return m, nil
}

// LoadBundleFile reads a YAML message bundle from disk.
func LoadBundleFile(path string) (BundleMap, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open message bundle: %w", err)
	}
	defer f.Close()
	return LoadBundle(f)
}

// builtinBundle returns the library bundle closest to tag.
func builtinBundle(tag language.Tag) BundleMap {
	_, idx, _ := builtinMatcher.Match(tag)
	f, err := builtinBundles.Open(builtinFiles[idx])
	if err != nil {
		return BundleMap{}
	}
	defer f.Close()
	m, err := LoadBundle(f)
	if err != nil {
		return BundleMap{}
	}
	return m
}

// Messages resolves message keys through an ordered list of bundles: caller
// bundles first, then the library bundle for the locale, then the key itself.
type Messages struct {
	bundles []Bundle
	locale  *Locale
}

// NewMessages creates a Messages for loc with the given caller bundles.
func NewMessages(loc *Locale, bundles ...Bundle) *Messages {
	if loc == nil {
		loc = NewLocale(language.English)
	}
	all := make([]Bundle, 0, len(bundles)+1)
	for _, b := range bundles {
		if b != nil {
			all = append(all, b)
		}
	}
	all = append(all, builtinBundle(loc.Tag))
	return &Messages{bundles: all, locale: loc}
}

// Locale returns the locale messages are formatted for.
func (m *Messages) Locale() *Locale { return m.locale }

// Has reports whether any bundle defines key.
func (m *Messages) Has(key string) bool {
	_, ok := m.lookup(key)
	return ok
}

// Get formats the pattern for key with args substituted for {0}, {1}, ...
// Unknown keys format the key itself.
func (m *Messages) Get(key string, args ...any) string {
	pattern, ok := m.lookup(key)
	if !ok {
		pattern = key
	}
	return m.format(pattern, args)
}

func (m *Messages) lookup(key string) (string, bool) {
	for _, b := range m.bundles {
		if s, ok := b.Lookup(key); ok {
			return s, true
		}
	}
	return "", false
}

func (m *Messages) format(pattern string, args []any) string {
	if len(args) == 0 || !strings.Contains(pattern, "{") {
		return pattern
	}
	var b strings.Builder
	for i := 0; i < len(pattern); i++ {
		if pattern[i] != '{' {
			b.WriteByte(pattern[i])
			continue
		}
		end := strings.IndexByte(pattern[i:], '}')
		if end < 0 {
			b.WriteString(pattern[i:])
			break
		}
		n, err := strconv.Atoi(pattern[i+1 : i+end])
		if err != nil || n < 0 || n >= len(args) {
			b.WriteString(pattern[i : i+end+1])
		} else {
			b.WriteString(m.formatArg(args[n]))
		}
		i += end
	}
	return b.String()
}

func (m *Messages) formatArg(v any) string {
	switch a := v.(type) {
	case string:
		return a
	case []string:
		return "[" + strings.Join(a, ", ") + "]"
	case int, int64, float64:
		return m.locale.Sprint(a)
	default:
		return fmt.Sprint(a)
	}
}

// wordList returns the comma-separated words of key, lowercased.
func (m *Messages) wordList(key string) []string {
	s, ok := m.lookup(key)
	if !ok {
		return nil
	}
	var words []string
	for _, w := range strings.Split(s, ",") {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			words = append(words, w)
		}
	}
	return words
}
