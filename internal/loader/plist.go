package loader

import (
	"howett.net/plist"
)

// PlistParser reads Apple property lists in any of their encodings.
type PlistParser struct{}

func (PlistParser) Format() Format       { return FormatPlist }
func (PlistParser) Extensions() []string { return []string{"plist"} }

func (PlistParser) Parse(data []byte) (any, error) {
	var raw any
	if _, err := plist.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	return normalize(plistValue(raw)), nil
}

// plistValue turns plist arrays of dictionaries into the generic shapes the
// other parsers produce.
func plistValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, item := range t {
			t[k] = plistValue(item)
		}
		return t
	case []any:
		for i, item := range t {
			t[i] = plistValue(item)
		}
		return t
	case []map[string]any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = plistValue(item)
		}
		return out
	}
	return v
}
