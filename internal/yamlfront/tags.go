package yamlfront

import (
	"strings"
)

// ObjectTagPrefix prefixes the tag of structs written with EmitObjects.
const ObjectTagPrefix = "!go/"

// TaggedValue is a node carrying a custom tag. Parse returns it for tags
// without a registered callback; emit callbacks return it to have a value
// written with a tag.
type TaggedValue struct {
	Tag   string
	Value any
}

// ParseFunc converts the content of a tagged node. value is the already
// converted inner content; tag is the tag as written in the document.
type ParseFunc func(value any, tag string) (any, error)

// EmitFunc converts a value of a registered type before emit. Returning a
// nil *TaggedValue leaves the value to the default handling.
type EmitFunc func(v any) (*TaggedValue, error)

// isCustomTag reports whether a tag needs callback dispatch. Core schema
// tags ("!!str", "!!map", ...) and the non-specific "!" do not.
func isCustomTag(tag string) bool {
	return tag != "" && tag != "!" && !strings.HasPrefix(tag, "!!")
}

// normalizeTag gives tags written without the leading "!" one.
func normalizeTag(tag string) string {
	if strings.HasPrefix(tag, "!") || strings.Contains(tag, ":") {
		return tag
	}
	return "!" + tag
}

type tagResolver struct {
	callbacks    map[string]ParseFunc
	parseObjects bool
}

// resolve dispatches a tagged node to its callback, trying the bare tag
// and then the "!"-prefixed one.
func (r *tagResolver) resolve(tag string, inner any) (any, error) {
	bare := strings.TrimPrefix(tag, "!")
	for _, name := range []string{bare, "!" + bare} {
		if fn, ok := r.callbacks[name]; ok {
			return fn(inner, tag)
		}
	}
	if r.parseObjects && strings.HasPrefix(tag, ObjectTagPrefix) {
		return inner, nil
	}
	return &TaggedValue{Tag: tag, Value: inner}, nil
}
