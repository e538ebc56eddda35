//go:build !yamlfront_nonative

package yamlfront

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"golang.org/x/text/encoding/unicode"
	"gopkg.in/yaml.v3"
)

func init() {
	register(Native, func() backend { return nativeBackend{} })
}

// nativeBackend is built on gopkg.in/yaml.v3, a port of libyaml. It reads
// multi-document streams itself.
type nativeBackend struct{}

func (nativeBackend) name() string { return Native }

func (b nativeBackend) parseDocument(data []byte, tags *tagResolver) (any, error) {
	return b.parseStream(data, 0, tags)
}

func (b nativeBackend) parseStream(data []byte, doc int, tags *tagResolver) (any, error) {
	if doc < 0 {
		return nil, errDocumentRange
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	for i := 0; ; i++ {
		var n yaml.Node
		if err := dec.Decode(&n); err != nil {
			if errors.Is(err, io.EOF) {
				if i == 0 && doc == 0 {
					// Empty or comment-only stream.
					return nil, nil
				}
				return nil, errDocumentRange
			}
			return nil, fmt.Errorf("yamlfront: %w", err)
		}
		if i == doc {
			w := &nativeWalker{tags: tags, anchors: map[*yaml.Node]anchored{}}
			return w.value(&n)
		}
	}
}

// nativeWalker converts a yaml.Node tree. Anchored nodes are converted
// once and shared by their aliases.
type nativeWalker struct {
	tags    *tagResolver
	anchors map[*yaml.Node]anchored
	budget  aliasBudget
}

func (w *nativeWalker) value(n *yaml.Node) (any, error) {
	if n == nil {
		return nil, nil
	}
	if n.Kind == yaml.AliasNode {
		return w.alias(n)
	}
	if a, ok := w.anchors[n]; ok {
		w.budget.nodes += a.nodes
		return a.value, nil
	}

	start := w.budget.visit()
	v, err := w.convert(n)
	if err != nil {
		return nil, err
	}
	if n.Anchor != "" {
		w.anchors[n] = anchored{value: v, nodes: w.budget.since(start)}
	}
	return v, nil
}

func (w *nativeWalker) alias(n *yaml.Node) (any, error) {
	w.budget.visit()
	if n.Alias == nil {
		return nil, nil
	}
	a, ok := w.anchors[n.Alias]
	if !ok {
		// Anchor under a merge key, reached before its own position.
		saved := w.budget
		v, err := w.value(n.Alias)
		if err != nil {
			return nil, err
		}
		a = anchored{value: v, nodes: w.budget.since(saved.nodes)}
		w.budget = saved
	}
	if err := w.budget.expand(a.nodes); err != nil {
		return nil, err
	}
	return a.value, nil
}

func (w *nativeWalker) convert(n *yaml.Node) (any, error) {
	if n.Kind != yaml.DocumentNode && isCustomTag(n.Tag) {
		plain := *n
		plain.Tag = ""
		plain.Anchor = ""
		plain.Style &^= yaml.TaggedStyle
		inner, err := w.convert(&plain)
		if err != nil {
			return nil, err
		}
		return w.tags.resolve(n.Tag, inner)
	}

	switch n.Kind {
	case 0:
		return nil, nil
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return w.value(n.Content[0])
	case yaml.MappingNode:
		out := make(map[string]any, len(n.Content)/2)
		var merges []*yaml.Node
		for i := 0; i+1 < len(n.Content); i += 2 {
			k, v := n.Content[i], n.Content[i+1]
			if k.Tag == "!!merge" {
				merges = append(merges, v)
				continue
			}
			key, err := w.value(k)
			if err != nil {
				return nil, err
			}
			val, err := w.value(v)
			if err != nil {
				return nil, err
			}
			out[keyString(key)] = val
		}
		for _, m := range merges {
			src, err := w.value(m)
			if err != nil {
				return nil, err
			}
			if err := mergeInto(out, src); err != nil {
				return nil, err
			}
		}
		return out, nil
	case yaml.SequenceNode:
		out := make([]any, 0, len(n.Content))
		for _, item := range n.Content {
			v, err := w.value(item)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	default:
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, fmt.Errorf("yamlfront: line %d: %w", n.Line, err)
		}
		return normalizeNumber(v), nil
	}
}

func (nativeBackend) emit(v any, opts Options) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(opts.Indent)
	if err := enc.Encode(nativeValue(v)); err != nil {
		return nil, fmt.Errorf("yamlfront: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("yamlfront: %w", err)
	}
	return encodeOutput(applyLineBreak(buf.Bytes(), opts.LineBreak), opts.Encoding)
}

// nativeTagged writes a TaggedValue through yaml.v3's Marshaler hook.
type nativeTagged struct {
	tag   string
	value any
}

func (t nativeTagged) MarshalYAML() (any, error) {
	var n yaml.Node
	if err := n.Encode(t.value); err != nil {
		return nil, err
	}
	n.Tag = t.tag
	return &n, nil
}

func nativeValue(v any) any {
	switch t := v.(type) {
	case *TaggedValue:
		return nativeTagged{tag: normalizeTag(t.Tag), value: nativeValue(t.Value)}
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = nativeValue(item)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = nativeValue(item)
		}
		return out
	}
	return v
}

func applyLineBreak(out []byte, lb LineBreak) []byte {
	switch lb {
	case BreakCR:
		return bytes.ReplaceAll(out, []byte("\n"), []byte("\r"))
	case BreakCRLN:
		return bytes.ReplaceAll(out, []byte("\n"), []byte("\r\n"))
	}
	return out
}

func encodeOutput(out []byte, enc Encoding) ([]byte, error) {
	switch enc {
	case EncodingUTF16LE:
		return unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder().Bytes(out)
	case EncodingUTF16BE:
		return unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewEncoder().Bytes(out)
	}
	return out, nil
}
