// Package loader reads configuration documents from disk, detecting their
// format from the file extension or, failing that, from the content.
//
// Every failure falls into a Kind. The Flags passed to Load decide per kind
// whether the failure is returned as an *Error, logged, both, or silently
// turned into a nil document.
package loader

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/notwillk/optload/internal/bitflag"
	"github.com/notwillk/optload/internal/logging"
	"github.com/notwillk/optload/internal/yamlfront"
)

// Parser decodes one document format.
type Parser interface {
	Format() Format
	// Extensions returns the lowercase extensions, without the dot, that
	// select this parser.
	Extensions() []string
	Parse(data []byte) (any, error)
}

// Loader dispatches files to parsers and applies the failure policy.
type Loader struct {
	logger   log.Logger
	yaml     *YAMLParser
	byExt    map[string]Parser
	byFormat map[Format]Parser
}

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets the logger failures are reported to.
func WithLogger(logger log.Logger) Option {
	return func(l *Loader) { l.logger = logger }
}

// WithYAMLOptions sets the options of the YAML adapters the loader builds.
func WithYAMLOptions(opts yamlfront.Options) Option {
	return func(l *Loader) { l.yaml.Options = opts }
}

// WithYAMLSetup runs fn on every YAML adapter before it parses, typically
// to register tag callbacks.
func WithYAMLSetup(fn func(*yamlfront.YAML)) Option {
	return func(l *Loader) { l.yaml.Setup = append(l.yaml.Setup, fn) }
}

// WithParser registers p for its format and extensions, replacing any
// parser registered for them before.
func WithParser(p Parser) Option {
	return func(l *Loader) { l.register(p) }
}

// New returns a Loader with the built-in JSON, YAML, TOML, HJSON, plist and
// XML parsers.
func New(opts ...Option) *Loader {
	l := &Loader{
		yaml:     &YAMLParser{},
		byExt:    make(map[string]Parser),
		byFormat: make(map[Format]Parser),
	}
	l.register(JSONParser{})
	l.register(l.yaml)
	l.register(TOMLParser{})
	l.register(HJSONParser{})
	l.register(PlistParser{})
	l.register(XMLParser{})

	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = logging.Default()
	}
	l.logger = log.With(l.logger, "component", "loader")
	if l.yaml.Options.Logger == nil {
		l.yaml.Options.Logger = l.logger
	}
	return l
}

func (l *Loader) register(p Parser) {
	l.byFormat[p.Format()] = p
	for _, ext := range p.Extensions() {
		l.byExt[strings.ToLower(strings.TrimPrefix(ext, "."))] = p
	}
}

// SupportedExtensions returns the registered extensions, sorted.
func (l *Loader) SupportedExtensions() []string {
	exts := make([]string, 0, len(l.byExt))
	for ext := range l.byExt {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// IsSupported reports whether path has a registered extension.
func (l *Loader) IsSupported(path string) bool {
	_, ok := l.byExt[extension(path)]
	return ok
}

// DetectFormat picks the format for path: by extension when registered,
// otherwise by the first non-blank character of text.
func (l *Loader) DetectFormat(path string, text []byte) (Format, bool) {
	if p, ok := l.byExt[extension(path)]; ok {
		return p.Format(), true
	}
	f, ok := sniff(string(text))
	if !ok {
		return "", false
	}
	if _, registered := l.byFormat[f]; !registered {
		return "", false
	}
	return f, true
}

// Load reads, detects, and parses path. The result is a map[string]any or
// a []any. When a failure is not fatal under flags the document is nil and
// so is the error.
func (l *Loader) Load(path string, flags Flags) (any, error) {
	info, err := os.Stat(path)
	if err != nil {
		return l.fail(MissingFile, path, err, flags)
	}
	if info.IsDir() {
		return l.fail(MissingFile, path, errors.New("is a directory"), flags)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return l.fail(MissingFile, path, err, flags)
	}

	text := strings.Trim(string(data), blank)
	if text == "" {
		return l.fail(EmptyContent, path, nil, flags)
	}

	format, ok := l.DetectFormat(path, []byte(text))
	if !ok {
		return l.fail(UnknownFormat, path, nil, flags)
	}

	doc, err := l.byFormat[format].Parse([]byte(text))
	if errors.Is(err, yamlfront.ErrBackendUnavailable) {
		return nil, fmt.Errorf("loader: %s: %w", path, err)
	}
	if err != nil {
		return l.fail(InvalidContent, path, fmt.Errorf("%s: %w", format, err), flags)
	}
	if doc == nil {
		return l.fail(InvalidContent, path, fmt.Errorf("%s: no document", format), flags)
	}

	switch doc.(type) {
	case map[string]any, []any:
		return doc, nil
	}
	return l.fail(NotIterable, path, fmt.Errorf("got %T", doc), flags)
}

func (l *Loader) fail(kind Kind, path string, cause error, flags Flags) (any, error) {
	fatal, logged := kind.bits()
	err := &Error{Kind: kind, Path: path, Err: cause}
	if bitflag.Has(flags, logged) {
		level.Error(l.logger).Log("msg", "load failed", "kind", kind, "path", path, "err", err)
	}
	if bitflag.Has(flags, fatal) {
		return nil, err
	}
	return nil, nil
}

// LoadInto loads path and copies its top-level entries into target. An
// existing key is replaced only when overwrite is set. Sequence documents
// are keyed by index ("0", "1", ...). A failure that is not fatal leaves
// target untouched.
func (l *Loader) LoadInto(path string, target map[string]any, overwrite bool, flags Flags) error {
	if target == nil {
		return errors.New("loader: nil target map")
	}
	doc, err := l.Load(path, flags)
	if err != nil {
		return err
	}
	switch d := doc.(type) {
	case map[string]any:
		for k, v := range d {
			assign(target, k, v, overwrite)
		}
	case []any:
		for i, v := range d {
			assign(target, strconv.Itoa(i), v, overwrite)
		}
	}
	return nil
}

func assign(target map[string]any, key string, v any, overwrite bool) {
	if _, exists := target[key]; exists && !overwrite {
		return
	}
	target[key] = v
}

var defaultLoader = sync.OnceValue(func() *Loader { return New() })

// Default returns the Loader used by the package-level functions.
func Default() *Loader { return defaultLoader() }

// Load calls Default().Load.
func Load(path string, flags Flags) (any, error) {
	return Default().Load(path, flags)
}

// LoadInto calls Default().LoadInto.
func LoadInto(path string, target map[string]any, overwrite bool, flags Flags) error {
	return Default().LoadInto(path, target, overwrite, flags)
}

// DetectFormat calls Default().DetectFormat.
func DetectFormat(path string, text []byte) (Format, bool) {
	return Default().DetectFormat(path, text)
}

// IsSupported calls Default().IsSupported.
func IsSupported(path string) bool {
	return Default().IsSupported(path)
}
