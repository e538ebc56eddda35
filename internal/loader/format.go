package loader

import (
	"encoding/json"
	"math"
	"path/filepath"
	"strings"
)

// Format names a document syntax.
type Format string

const (
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
	FormatTOML  Format = "toml"
	FormatHJSON Format = "hjson"
	FormatPlist Format = "plist"
	FormatXML   Format = "xml"
)

// blank is the set of characters trimmed from file content.
const blank = " \t\n\r\x00\x0b"

// sniff guesses the format from the first non-blank character.
func sniff(text string) (Format, bool) {
	text = strings.TrimLeft(text, blank)
	if text == "" {
		return "", false
	}
	switch text[0] {
	case '[', '{':
		return FormatJSON, true
	case '%', '-', '#':
		return FormatYAML, true
	}
	return "", false
}

func extension(path string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
}

// normalize converts decoder specific numbers to int or float64 and
// recurses into collections.
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, item := range t {
			t[k] = normalize(item)
		}
		return t
	case []any:
		for i, item := range t {
			t[i] = normalize(item)
		}
		return t
	case json.Number:
		if n, err := t.Int64(); err == nil && n >= math.MinInt && n <= math.MaxInt {
			return int(n)
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case int64:
		if t >= math.MinInt && t <= math.MaxInt {
			return int(t)
		}
	case uint64:
		if t <= math.MaxInt {
			return int(t)
		}
	}
	return v
}
