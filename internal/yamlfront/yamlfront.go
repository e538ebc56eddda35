// Package yamlfront presents one YAML parse/emit interface over two
// interchangeable backends:
//
//   - native: gopkg.in/yaml.v3 (excluded with -tags yamlfront_nonative)
//   - library: github.com/goccy/go-yaml (excluded with -tags yamlfront_nolibrary)
//
// The backend is chosen once per adapter. Both backends share custom tag
// dispatch and emit preparation; they differ in multi-document handling:
// the native backend reads streams itself and cannot return every
// document at once, while for the library backend the adapter splits the
// stream on "---" lines and supports AllDocuments.
//
// All settings live on the adapter and are passed to each backend call;
// adapters never touch process-wide state and can be used side by side.
package yamlfront

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/notwillk/optload/internal/logging"
)

// AllDocuments asks Parse for every document of a stream.
const AllDocuments = -1

// ParseOptions selects what Parse returns.
type ParseOptions struct {
	// Doc is the zero-based index of the document to return, or
	// AllDocuments.
	Doc int
}

// YAML is a parse/emit front-end bound to one backend. It is not safe for
// concurrent callback registration.
type YAML struct {
	backend backend
	opts    Options
	logger  log.Logger

	parseCallbacks map[string]ParseFunc
	emitCallbacks  map[string]EmitFunc
}

// New probes for a backend and returns an adapter using it.
func New(opts Options) (*YAML, error) {
	return newWith(opts, registered())
}

func newWith(opts Options, available map[string]func() backend) (*YAML, error) {
	b, err := probe(opts.Backend, available)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &YAML{
		backend:        b,
		opts:           opts.withDefaults(),
		logger:         log.With(logger, "component", "yamlfront", "backend", b.name()),
		parseCallbacks: map[string]ParseFunc{},
		emitCallbacks:  map[string]EmitFunc{},
	}, nil
}

// Backend returns the name of the backend in use.
func (y *YAML) Backend() string { return y.backend.name() }

// Options returns the effective options.
func (y *YAML) Options() Options { return y.opts }

// OnParse registers fn for nodes tagged tag. "point" and "!point" are
// both matched against a node tagged !point.
func (y *YAML) OnParse(tag string, fn ParseFunc) {
	y.parseCallbacks[tag] = fn
}

// OnEmit registers fn for values of the named type. name is either the
// fully-qualified "import/path.Type" or the bare "Type".
func (y *YAML) OnEmit(name string, fn EmitFunc) {
	y.emitCallbacks[name] = fn
}

func (y *YAML) resolver() *tagResolver {
	return &tagResolver{callbacks: y.parseCallbacks, parseObjects: y.opts.ParseObjects}
}

// Parse decodes YAML text. An out-of-range document index is logged and
// yields (nil, nil).
func (y *YAML) Parse(data []byte, popts ParseOptions) (any, error) {
	data, err := decodeInput(data)
	if err != nil {
		return nil, err
	}
	tags := y.resolver()

	if sel, ok := y.backend.(documentSelector); ok {
		if popts.Doc == AllDocuments {
			return nil, fmt.Errorf("%w (%s)", ErrAllDocumentsUnsupported, y.backend.name())
		}
		v, err := sel.parseStream(data, popts.Doc, tags)
		if errors.Is(err, errDocumentRange) {
			level.Error(y.logger).Log("msg", "invalid document index", "doc", popts.Doc)
			return nil, nil
		}
		return v, err
	}

	segments := splitDocuments(string(data))
	if popts.Doc == AllDocuments {
		docs := make([]any, 0, len(segments))
		for i, seg := range segments {
			v, err := y.backend.parseDocument([]byte(seg), tags)
			if err != nil {
				return nil, fmt.Errorf("document %d: %w", i, err)
			}
			docs = append(docs, v)
		}
		return docs, nil
	}
	if popts.Doc < 0 || popts.Doc >= len(segments) {
		level.Error(y.logger).Log("msg", "invalid document index", "doc", popts.Doc, "documents", len(segments))
		return nil, nil
	}
	return y.backend.parseDocument([]byte(segments[popts.Doc]), tags)
}

// ParseFile reads path and parses it with Parse, so stream splitting and
// tag callbacks behave as for in-memory input.
func (y *YAML) ParseFile(path string, popts ParseOptions) (any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return y.Parse(data, popts)
}

// Emit serialises v as one YAML document.
func (y *YAML) Emit(v any) ([]byte, error) {
	prepared, err := y.prepare(v)
	if err != nil {
		return nil, err
	}
	return y.backend.emit(prepared, y.opts)
}

// EmitFile writes the output of Emit to path.
func (y *YAML) EmitFile(path string, v any) error {
	out, err := y.Emit(v)
	if err != nil {
		return err
	}
	return os.WriteFile(path, out, 0644)
}

var timeType = reflect.TypeOf(time.Time{})

// prepare converts v into maps, slices, scalars and *TaggedValue nodes,
// running emit callbacks on named types.
func (y *YAML) prepare(v any) (any, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case *TaggedValue:
		if t == nil {
			return nil, nil
		}
		return y.prepareTagged(*t)
	case TaggedValue:
		return y.prepareTagged(t)
	case []byte, time.Time:
		return v, nil
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, nil
		}
		rv = rv.Elem()
	}
	typ := rv.Type()

	if typ.Name() != "" && typ.PkgPath() != "" {
		for _, name := range []string{typ.PkgPath() + "." + typ.Name(), typ.Name()} {
			fn, ok := y.emitCallbacks[name]
			if !ok {
				continue
			}
			tagged, err := fn(v)
			if err != nil {
				return nil, fmt.Errorf("emit callback %s: %w", name, err)
			}
			if tagged != nil && tagged.Tag != "" {
				return y.prepareTagged(*tagged)
			}
		}
	}

	switch rv.Kind() {
	case reflect.Map:
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			item, err := y.prepare(iter.Value().Interface())
			if err != nil {
				return nil, err
			}
			out[keyString(iter.Key().Interface())] = item
		}
		return out, nil
	case reflect.Slice, reflect.Array:
		if typ.Elem().Kind() == reflect.Uint8 {
			return v, nil
		}
		out := make([]any, rv.Len())
		for i := range out {
			item, err := y.prepare(rv.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			out[i] = item
		}
		return out, nil
	case reflect.Struct:
		if y.opts.EmitObjects && typ != timeType && typ.Name() != "" {
			return &TaggedValue{Tag: ObjectTagPrefix + typ.Name(), Value: rv.Interface()}, nil
		}
	}
	return rv.Interface(), nil
}

func (y *YAML) prepareTagged(t TaggedValue) (any, error) {
	inner, err := y.prepare(t.Value)
	if err != nil {
		return nil, err
	}
	return &TaggedValue{Tag: normalizeTag(t.Tag), Value: inner}, nil
}

var docSeparator = regexp.MustCompile(`(?m)^---(?:[ \t\r]|$)`)

// splitDocuments cuts a stream into documents on lines starting with
// "---". A leading separator, and a preamble holding only directives or
// comments, do not count as a document.
func splitDocuments(data string) []string {
	segments := docSeparator.Split(data, -1)
	if len(segments) > 1 && preambleOnly(segments[0]) {
		segments = segments[1:]
	}
	return segments
}

func preambleOnly(s string) bool {
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "%") && !strings.HasPrefix(line, "#") {
			return false
		}
	}
	return true
}

// decodeInput strips a byte order mark and converts UTF-16 input to UTF-8.
func decodeInput(data []byte) ([]byte, error) {
	out, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), data)
	if err != nil {
		return nil, fmt.Errorf("yamlfront: decoding input: %w", err)
	}
	return out, nil
}
