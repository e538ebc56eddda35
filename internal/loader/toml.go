package loader

import (
	"github.com/BurntSushi/toml"
)

// TOMLParser reads .toml files.
type TOMLParser struct{}

func (TOMLParser) Format() Format       { return FormatTOML }
func (TOMLParser) Extensions() []string { return []string{"toml"} }

func (TOMLParser) Parse(data []byte) (any, error) {
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	// TOML tables decode as map[string]any and integers as int64.
	return normalize(tomlValue(raw)), nil
}

func tomlValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, item := range t {
			t[k] = tomlValue(item)
		}
		return t
	case []map[string]any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = tomlValue(item)
		}
		return out
	case []any:
		for i, item := range t {
			t[i] = tomlValue(item)
		}
		return t
	}
	return v
}
