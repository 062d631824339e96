// Package i18n provides template lookup by (language, key) with graceful
// fallback.
//
// Lookup never fails: a missing language or key falls back to the default
// language, and a key missing even there degrades to a visible placeholder.
// Substituting values into the returned template is the caller's job.
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed locales/*.yaml
var localeFiles embed.FS

// DefaultLanguage is the fallback language for missing translations.
const DefaultLanguage = "en"

// Table maps (language, key) to template strings.
type Table struct {
	languages map[string]map[string]string
}

// Load parses the embedded locale files into a Table. The language code is
// taken from the file name (en.yaml -> "en").
func Load() (*Table, error) {
	entries, err := fs.ReadDir(localeFiles, "locales")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded locales: %w", err)
	}

	t := &Table{languages: make(map[string]map[string]string)}
	for _, entry := range entries {
		name := entry.Name()
		lang := strings.TrimSuffix(name, path.Ext(name))
		data, err := localeFiles.ReadFile(path.Join("locales", name))
		if err != nil {
			return nil, fmt.Errorf("failed to read locale %s: %w", name, err)
		}
		table := make(map[string]string)
		if err := yaml.Unmarshal(data, &table); err != nil {
			return nil, fmt.Errorf("failed to parse locale %s: %w", name, err)
		}
		t.languages[lang] = table
		slog.Debug("i18n.Load: locale loaded", "language", lang, "keys", len(table))
	}

	if _, ok := t.languages[DefaultLanguage]; !ok {
		return nil, fmt.Errorf("default language %q missing from locales", DefaultLanguage)
	}
	return t, nil
}

// Languages returns the loaded language codes, default language first and the
// rest sorted, so menus built from it keep a stable order.
func (t *Table) Languages() []string {
	rest := make([]string, 0, len(t.languages))
	for lang := range t.languages {
		if lang != DefaultLanguage {
			rest = append(rest, lang)
		}
	}
	sort.Strings(rest)
	return append([]string{DefaultLanguage}, rest...)
}

// Lookup returns the template for key in lang. An unregistered language or a
// key missing in it falls back to the default language; a key missing even
// there returns a deterministic placeholder naming the key.
func (t *Table) Lookup(lang, key string) string {
	if table, ok := t.languages[lang]; ok {
		if tmpl, ok := table[key]; ok {
			return tmpl
		}
	}
	if tmpl, ok := t.languages[DefaultLanguage][key]; ok {
		if lang != DefaultLanguage {
			slog.Debug("i18n.Lookup: falling back to default language", "language", lang, "key", key)
		}
		return tmpl
	}
	slog.Warn("i18n.Lookup: key missing in default language", "language", lang, "key", key)
	return fmt.Sprintf("Undefined text for `%s`", key)
}
