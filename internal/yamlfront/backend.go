package yamlfront

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
)

// Backend names.
const (
	Native  = "native"
	Library = "library"
)

var (
	// ErrBackendUnavailable is returned by New when no YAML backend was
	// compiled in (or the requested one is missing).
	ErrBackendUnavailable = errors.New("yamlfront: no YAML backend available")

	// ErrAllDocumentsUnsupported is returned when AllDocuments is requested
	// from a backend that selects documents itself.
	ErrAllDocumentsUnsupported = errors.New("yamlfront: all-documents parsing is not supported by this backend")

	// ErrExcessiveAliasing is returned when alias expansion would make a
	// document far larger than its text.
	ErrExcessiveAliasing = errors.New("yamlfront: document contains excessive aliasing")

	// ErrMultipleDocuments is returned when a single-document parse is
	// handed a stream holding more than one document.
	ErrMultipleDocuments = errors.New("yamlfront: unexpected additional document")

	errDocumentRange = errors.New("yamlfront: document index out of range")
)

// backend is one YAML implementation.
type backend interface {
	name() string
	// parseDocument converts a single YAML document into generic values.
	parseDocument(data []byte, tags *tagResolver) (any, error)
	// emit serialises prepared data (maps, slices, scalars, *TaggedValue).
	emit(v any, opts Options) ([]byte, error)
}

// documentSelector is implemented by backends that read multi-document
// streams themselves. The adapter splits input for backends without it.
type documentSelector interface {
	parseStream(data []byte, doc int, tags *tagResolver) (any, error)
}

var (
	registryMu sync.Mutex
	registry   = map[string]func() backend{}
)

var preference = []string{Native, Library}

// register makes a backend available to New. Backends call it from init,
// behind build tags, so a binary can be built with either one or both.
func register(name string, factory func() backend) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

func registered() map[string]func() backend {
	registryMu.Lock()
	defer registryMu.Unlock()
	out := make(map[string]func() backend, len(registry))
	for k, v := range registry {
		out[k] = v
	}
	return out
}

// Backends lists the compiled-in backend names.
func Backends() []string {
	names := make([]string, 0)
	for name := range registered() {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func probe(want string, available map[string]func() backend) (backend, error) {
	if want != "" {
		factory, ok := available[want]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrBackendUnavailable, want)
		}
		return factory(), nil
	}
	for _, name := range preference {
		if factory, ok := available[name]; ok {
			return factory(), nil
		}
	}
	return nil, ErrBackendUnavailable
}

// normalizeNumber narrows integer scalars to int so that both backends
// produce the same shapes.
func normalizeNumber(v any) any {
	switch n := v.(type) {
	case int64:
		if n >= math.MinInt && n <= math.MaxInt {
			return int(n)
		}
	case uint64:
		if n <= math.MaxInt {
			return int(n)
		}
	}
	return v
}

func keyString(k any) string {
	if s, ok := k.(string); ok {
		return s
	}
	return fmt.Sprint(k)
}

// mergeInto fills keys from a YAML merge source ("<<") that out does not
// already define. src may be a mapping or a sequence of mappings; earlier
// mappings in a sequence take precedence.
func mergeInto(out map[string]any, src any) error {
	switch s := src.(type) {
	case map[string]any:
		for k, v := range s {
			if _, exists := out[k]; !exists {
				out[k] = v
			}
		}
	case []any:
		for _, item := range s {
			m, ok := item.(map[string]any)
			if !ok {
				return fmt.Errorf("yamlfront: merge source must be a mapping, got %T", item)
			}
			if err := mergeInto(out, m); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("yamlfront: merge source must be a mapping, got %T", src)
	}
	return nil
}

// anchored is a converted anchor and the size of its expanded subtree.
type anchored struct {
	value any
	nodes int
}

// aliasBudget rejects documents whose alias expansion dwarfs their text,
// with the same thresholds yaml.Unmarshal applies.
type aliasBudget struct {
	// nodes counts the nodes of the expanded document, aliased the share
	// of them reached through an alias.
	nodes   int
	aliased int
}

const (
	aliasRatioLow  = 400000
	aliasRatioHigh = 4000000
)

func allowedAliasRatio(nodes int) float64 {
	switch {
	case nodes <= aliasRatioLow:
		return 0.99
	case nodes >= aliasRatioHigh:
		return 0.10
	default:
		return 0.99 - 0.89*(float64(nodes-aliasRatioLow)/float64(aliasRatioHigh-aliasRatioLow))
	}
}

// visit counts one node and returns the count before it.
func (b *aliasBudget) visit() int {
	b.nodes++
	return b.nodes - 1
}

func (b *aliasBudget) since(start int) int {
	return b.nodes - start
}

// expand counts an alias standing for n nodes.
func (b *aliasBudget) expand(n int) error {
	b.nodes += n
	b.aliased += n
	if b.aliased > 100 && b.nodes > 1000 && float64(b.aliased)/float64(b.nodes) > allowedAliasRatio(b.nodes) {
		return ErrExcessiveAliasing
	}
	return nil
}
