package yamlfront

import (
	"math"
	"strings"

	"github.com/go-kit/log"
)

// Encoding selects the character encoding of emitted output.
type Encoding int

const (
	EncodingAny Encoding = iota
	EncodingUTF8
	EncodingUTF16LE
	EncodingUTF16BE
)

// LineBreak selects the line terminator of emitted output.
type LineBreak int

const (
	BreakAny LineBreak = iota
	BreakCR
	BreakLN
	BreakCRLN
)

// Option keys understood by OptionsFromMap.
const (
	KeyBackend      = "backend"
	KeyEncoding     = "encoding"
	KeyBreak        = "break"
	KeyIndent       = "indent"
	KeyWidth        = "width"
	KeyParseObjects = "parseObjects"
	KeyEmitObjects  = "emitObjects"
	KeyInline       = "inline"
)

const (
	DefaultIndent = 2
	DefaultWidth  = 80
	DefaultInline = 8
)

// Options configures a YAML adapter. Settings that the active backend has
// no use for are ignored:
//
//   - Encoding and LineBreak apply to native emit.
//   - Inline applies to library emit.
//   - Indent applies to both.
//   - Width is accepted for compatibility; neither backend can wrap lines
//     per call.
type Options struct {
	// Backend forces a backend by name. Empty probes Native then Library.
	Backend   string
	Encoding  Encoding
	LineBreak LineBreak
	Indent    int
	Width     int
	// ParseObjects unwraps nodes tagged with ObjectTagPrefix that have no
	// registered callback instead of returning a TaggedValue.
	ParseObjects bool
	// EmitObjects writes structs as ObjectTagPrefix tagged mappings.
	EmitObjects bool
	// Inline is the nesting depth from which collections are written in
	// flow style. Zero selects DefaultInline.
	Inline int
	Logger log.Logger
}

// DefaultOptions returns the options New applies to zero fields.
func DefaultOptions() Options {
	return Options{
		Indent: DefaultIndent,
		Width:  DefaultWidth,
		Inline: DefaultInline,
	}
}

func (o Options) withDefaults() Options {
	if o.Indent <= 0 {
		o.Indent = DefaultIndent
	}
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Inline <= 0 {
		o.Inline = DefaultInline
	}
	return o
}

// OptionsFromMap reads the recognised keys out of a loosely typed option
// bag. Keys holding a value of the wrong type are ignored, as are unknown
// keys.
func OptionsFromMap(m map[string]any) Options {
	opts := DefaultOptions()
	if s, ok := m[KeyBackend].(string); ok {
		opts.Backend = s
	}
	if e, ok := encodingValue(m[KeyEncoding]); ok {
		opts.Encoding = e
	}
	if b, ok := breakValue(m[KeyBreak]); ok {
		opts.LineBreak = b
	}
	if n, ok := intValue(m[KeyIndent]); ok {
		opts.Indent = n
	}
	if n, ok := intValue(m[KeyWidth]); ok {
		opts.Width = n
	}
	if n, ok := intValue(m[KeyInline]); ok {
		opts.Inline = n
	}
	if b, ok := m[KeyParseObjects].(bool); ok {
		opts.ParseObjects = b
	}
	if b, ok := m[KeyEmitObjects].(bool); ok {
		opts.EmitObjects = b
	}
	return opts
}

func intValue(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case uint64:
		if n <= math.MaxInt {
			return int(n), true
		}
	case float64:
		if n == math.Trunc(n) {
			return int(n), true
		}
	}
	return 0, false
}

func encodingValue(v any) (Encoding, bool) {
	if s, ok := v.(string); ok {
		switch strings.ToLower(strings.ReplaceAll(s, "-", "")) {
		case "any":
			return EncodingAny, true
		case "utf8":
			return EncodingUTF8, true
		case "utf16le":
			return EncodingUTF16LE, true
		case "utf16be":
			return EncodingUTF16BE, true
		}
		return 0, false
	}
	n, ok := intValue(v)
	if !ok || n < int(EncodingAny) || n > int(EncodingUTF16BE) {
		return 0, false
	}
	return Encoding(n), true
}

func breakValue(v any) (LineBreak, bool) {
	if s, ok := v.(string); ok {
		switch strings.ToLower(s) {
		case "any":
			return BreakAny, true
		case "cr":
			return BreakCR, true
		case "ln", "lf":
			return BreakLN, true
		case "crln", "crlf":
			return BreakCRLN, true
		}
		return 0, false
	}
	n, ok := intValue(v)
	if !ok || n < int(BreakAny) || n > int(BreakCRLN) {
		return 0, false
	}
	return LineBreak(n), true
}
