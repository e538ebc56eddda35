//go:build !yamlfront_nolibrary

package yamlfront

import (
	"fmt"
	"strings"

	goccy "github.com/goccy/go-yaml"
	"github.com/goccy/go-yaml/ast"
	"github.com/goccy/go-yaml/parser"
)

func init() {
	register(Library, func() backend { return libraryBackend{} })
}

// libraryBackend is built on github.com/goccy/go-yaml. It parses one
// document at a time; the adapter splits streams for it.
type libraryBackend struct{}

func (libraryBackend) name() string { return Library }

func (b libraryBackend) parseDocument(data []byte, tags *tagResolver) (any, error) {
	f, err := parser.ParseBytes(data, 0)
	if err != nil {
		return nil, fmt.Errorf("yamlfront: %w", err)
	}
	if len(f.Docs) == 0 {
		return nil, nil
	}
	if len(f.Docs) > 1 {
		return nil, ErrMultipleDocuments
	}
	w := &libraryWalker{tags: tags, anchors: map[string]anchored{}}
	return w.value(f.Docs[0])
}

type libraryWalker struct {
	tags    *tagResolver
	anchors map[string]anchored
	budget  aliasBudget
}

func (w *libraryWalker) value(node ast.Node) (any, error) {
	switch node.(type) {
	case nil, *ast.DocumentNode, *ast.AnchorNode, *ast.AliasNode:
	default:
		w.budget.visit()
	}

	switch n := node.(type) {
	case nil:
		return nil, nil
	case *ast.DocumentNode:
		return w.value(n.Body)
	case *ast.CommentGroupNode:
		return nil, nil
	case *ast.MappingNode:
		out := make(map[string]any, len(n.Values))
		if err := w.mapping(out, n.Values); err != nil {
			return nil, err
		}
		return out, nil
	case *ast.MappingValueNode:
		out := make(map[string]any, 1)
		if err := w.mapping(out, []*ast.MappingValueNode{n}); err != nil {
			return nil, err
		}
		return out, nil
	case *ast.SequenceNode:
		out := make([]any, 0, len(n.Values))
		for _, item := range n.Values {
			v, err := w.value(item)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case *ast.AnchorNode:
		start := w.budget.nodes
		v, err := w.value(n.Value)
		if err != nil {
			return nil, err
		}
		w.anchors[n.Name.GetToken().Value] = anchored{value: v, nodes: w.budget.since(start)}
		return v, nil
	case *ast.AliasNode:
		w.budget.visit()
		name := n.Value.GetToken().Value
		a, ok := w.anchors[name]
		if !ok {
			return nil, fmt.Errorf("yamlfront: unknown alias %q", name)
		}
		if err := w.budget.expand(a.nodes); err != nil {
			return nil, err
		}
		return a.value, nil
	case *ast.TagNode:
		tag := n.Start.Value
		if isCustomTag(tag) {
			inner, err := w.value(n.Value)
			if err != nil {
				return nil, err
			}
			return w.tags.resolve(tag, inner)
		}
		switch n.Value.(type) {
		case *ast.MappingNode, *ast.MappingValueNode, *ast.SequenceNode:
			return w.value(n.Value)
		}
		return scalarValue(n)
	default:
		return scalarValue(n)
	}
}

func (w *libraryWalker) mapping(out map[string]any, values []*ast.MappingValueNode) error {
	var merges []ast.Node
	for _, mv := range values {
		if _, ok := mv.Key.(*ast.MergeKeyNode); ok {
			merges = append(merges, mv.Value)
			continue
		}
		key, err := w.value(mv.Key)
		if err != nil {
			return err
		}
		val, err := w.value(mv.Value)
		if err != nil {
			return err
		}
		out[keyString(key)] = val
	}
	for _, m := range merges {
		src, err := w.value(m)
		if err != nil {
			return err
		}
		if err := mergeInto(out, src); err != nil {
			return err
		}
	}
	return nil
}

func scalarValue(n ast.Node) (any, error) {
	var v any
	if err := goccy.NodeToValue(n, &v); err != nil {
		return nil, fmt.Errorf("yamlfront: %w", err)
	}
	return normalizeNumber(v), nil
}

func (libraryBackend) emit(v any, opts Options) ([]byte, error) {
	out, err := goccy.MarshalWithOptions(
		libraryValue(v, opts.Inline, 0),
		goccy.Indent(opts.Indent),
		goccy.UseLiteralStyleIfMultiline(true),
	)
	if err != nil {
		return nil, fmt.Errorf("yamlfront: %w", err)
	}
	return out, nil
}

// libraryValue prepares data for goccy: tagged values become marshalers
// and collections at or below the inline depth are switched to flow style.
func libraryValue(v any, inline, depth int) any {
	switch t := v.(type) {
	case *TaggedValue:
		return libraryTagged{tag: normalizeTag(t.Tag), value: libraryValue(t.Value, inline, depth+1)}
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = libraryValue(item, inline, depth+1)
		}
		if depth >= inline && len(out) > 0 {
			return libraryFlow{value: out}
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = libraryValue(item, inline, depth+1)
		}
		if depth >= inline && len(out) > 0 {
			return libraryFlow{value: out}
		}
		return out
	}
	return v
}

type libraryTagged struct {
	tag   string
	value any
}

func (t libraryTagged) MarshalYAML() ([]byte, error) {
	inner, err := goccy.MarshalWithOptions(t.value, goccy.Flow(true))
	if err != nil {
		return nil, err
	}
	return []byte(t.tag + " " + strings.TrimSpace(string(inner))), nil
}

type libraryFlow struct {
	value any
}

func (f libraryFlow) MarshalYAML() ([]byte, error) {
	return goccy.MarshalWithOptions(f.value, goccy.Flow(true))
}
