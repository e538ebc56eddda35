package yamlfront

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-kit/log"
	"github.com/google/go-cmp/cmp"
)

var allBackends = []string{Native, Library}

func newTestYAML(t *testing.T, opts Options) *YAML {
	t.Helper()
	if opts.Backend != "" {
		if _, ok := registered()[opts.Backend]; !ok {
			t.Skipf("backend %q not compiled in", opts.Backend)
		}
	}
	if opts.Logger == nil {
		opts.Logger = log.NewNopLogger()
	}
	y, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return y
}

type point struct {
	X int `yaml:"x"`
	Y int `yaml:"y"`
}

func parsePoint(value any, _ string) (any, error) {
	s, ok := value.(string)
	if !ok {
		return nil, fmt.Errorf("point: want string, got %T", value)
	}
	xs, ys, found := strings.Cut(s, ",")
	if !found {
		return nil, fmt.Errorf("point: malformed %q", s)
	}
	x, err := strconv.Atoi(xs)
	if err != nil {
		return nil, err
	}
	y, err := strconv.Atoi(ys)
	if err != nil {
		return nil, err
	}
	return point{X: x, Y: y}, nil
}

func emitPoint(v any) (*TaggedValue, error) {
	p := v.(point)
	return &TaggedValue{Tag: "!point", Value: fmt.Sprintf("%d,%d", p.X, p.Y)}, nil
}

func TestNew_BackendUnavailable(t *testing.T) {
	_, err := newWith(Options{}, map[string]func() backend{})
	if !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("err = %v, want ErrBackendUnavailable", err)
	}

	_, err = New(Options{Backend: "libsyck"})
	if !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("unknown backend: err = %v, want ErrBackendUnavailable", err)
	}
}

func TestNew_PrefersNative(t *testing.T) {
	available := map[string]func() backend{
		Library: func() backend { return libraryBackend{} },
		Native:  func() backend { return nativeBackend{} },
	}
	y, err := newWith(Options{Logger: log.NewNopLogger()}, available)
	if err != nil {
		t.Fatalf("newWith: %v", err)
	}
	if y.Backend() != Native {
		t.Errorf("Backend = %q, want %q", y.Backend(), Native)
	}

	delete(available, Native)
	y, err = newWith(Options{Logger: log.NewNopLogger()}, available)
	if err != nil {
		t.Fatalf("newWith: %v", err)
	}
	if y.Backend() != Library {
		t.Errorf("Backend = %q, want %q", y.Backend(), Library)
	}
}

func TestNew_Defaults(t *testing.T) {
	y := newTestYAML(t, Options{})
	opts := y.Options()
	if opts.Indent != DefaultIndent || opts.Inline != DefaultInline || opts.Width != DefaultWidth {
		t.Errorf("defaults not applied: %+v", opts)
	}
}

func TestParse_Plain(t *testing.T) {
	src := `
name: optload
count: 3
ratio: 1.5
enabled: true
missing: ~
tags: [a, b]
nested:
  inner:
    - 1
    - two
`
	want := map[string]any{
		"name":    "optload",
		"count":   3,
		"ratio":   1.5,
		"enabled": true,
		"missing": nil,
		"tags":    []any{"a", "b"},
		"nested": map[string]any{
			"inner": []any{1, "two"},
		},
	}
	for _, name := range allBackends {
		t.Run(name, func(t *testing.T) {
			y := newTestYAML(t, Options{Backend: name})
			got, err := y.Parse([]byte(src), ParseOptions{})
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("Parse mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParse_AnchorsAndMerge(t *testing.T) {
	src := `
base: &base
  host: localhost
  port: 80
prod:
  <<: *base
  port: 443
copy: *base
`
	want := map[string]any{
		"base": map[string]any{"host": "localhost", "port": 80},
		"prod": map[string]any{"host": "localhost", "port": 443},
		"copy": map[string]any{"host": "localhost", "port": 80},
	}
	for _, name := range allBackends {
		t.Run(name, func(t *testing.T) {
			y := newTestYAML(t, Options{Backend: name})
			got, err := y.Parse([]byte(src), ParseOptions{})
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("Parse mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParse_TagCallbacks(t *testing.T) {
	src := `
origin: !point 1,2
path:
  - !point 3,4
  - !point 5,6
label: !!str 7
`
	for _, name := range allBackends {
		t.Run(name, func(t *testing.T) {
			y := newTestYAML(t, Options{Backend: name})
			calls := 0
			var tags []string
			y.OnParse("point", func(value any, tag string) (any, error) {
				calls++
				tags = append(tags, tag)
				return parsePoint(value, tag)
			})

			got, err := y.Parse([]byte(src), ParseOptions{})
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if calls != 3 {
				t.Errorf("callback called %d times, want 3", calls)
			}
			for _, tag := range tags {
				if tag != "!point" {
					t.Errorf("callback tag = %q, want !point", tag)
				}
			}
			want := map[string]any{
				"origin": point{1, 2},
				"path":   []any{point{3, 4}, point{5, 6}},
				"label":  "7",
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("Parse mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParse_TagCallbackPrefixedName(t *testing.T) {
	for _, name := range allBackends {
		t.Run(name, func(t *testing.T) {
			y := newTestYAML(t, Options{Backend: name})
			var inner any
			y.OnParse("!env", func(value any, _ string) (any, error) {
				inner = value
				return "resolved", nil
			})
			got, err := y.Parse([]byte("v: !env {name: HOME, default: /root}\n"), ParseOptions{})
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if diff := cmp.Diff(map[string]any{"name": "HOME", "default": "/root"}, inner); diff != "" {
				t.Errorf("callback content mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(map[string]any{"v": "resolved"}, got); diff != "" {
				t.Errorf("Parse mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParse_UnknownTagPlaceholder(t *testing.T) {
	for _, name := range allBackends {
		t.Run(name, func(t *testing.T) {
			y := newTestYAML(t, Options{Backend: name})
			got, err := y.Parse([]byte("secret: !vault db/password\n"), ParseOptions{})
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			want := map[string]any{"secret": &TaggedValue{Tag: "!vault", Value: "db/password"}}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("Parse mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParse_CallbackError(t *testing.T) {
	for _, name := range allBackends {
		t.Run(name, func(t *testing.T) {
			y := newTestYAML(t, Options{Backend: name})
			y.OnParse("point", parsePoint)
			if _, err := y.Parse([]byte("p: !point nope\n"), ParseOptions{}); err == nil {
				t.Fatal("expected callback error to propagate")
			}
		})
	}
}

func TestParse_ParseObjects(t *testing.T) {
	src := "p: !go/point {x: 1, y: 2}\n"
	for _, name := range allBackends {
		t.Run(name, func(t *testing.T) {
			y := newTestYAML(t, Options{Backend: name})
			got, err := y.Parse([]byte(src), ParseOptions{})
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			tv, ok := got.(map[string]any)["p"].(*TaggedValue)
			if !ok || tv.Tag != "!go/point" {
				t.Fatalf("without ParseObjects want placeholder, got %#v", got)
			}

			y = newTestYAML(t, Options{Backend: name, ParseObjects: true})
			got, err = y.Parse([]byte(src), ParseOptions{})
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			want := map[string]any{"p": map[string]any{"x": 1, "y": 2}}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("Parse mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

const threeDocs = "a: 1\n---\nb: 2\n---\n- x\n- y\n"

func TestParse_SelectDocument(t *testing.T) {
	for _, name := range allBackends {
		t.Run(name, func(t *testing.T) {
			y := newTestYAML(t, Options{Backend: name})
			got, err := y.Parse([]byte(threeDocs), ParseOptions{Doc: 1})
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if diff := cmp.Diff(map[string]any{"b": 2}, got); diff != "" {
				t.Errorf("doc 1 mismatch (-want +got):\n%s", diff)
			}

			got, err = y.Parse([]byte(threeDocs), ParseOptions{Doc: 7})
			if err != nil {
				t.Fatalf("out of range should not fail: %v", err)
			}
			if got != nil {
				t.Errorf("out of range = %v, want nil", got)
			}
		})
	}
}

func TestParse_AllDocumentsLibrary(t *testing.T) {
	y := newTestYAML(t, Options{Backend: Library})
	want := []any{
		map[string]any{"a": 1},
		map[string]any{"b": 2},
		[]any{"x", "y"},
	}
	tests := map[string]string{
		"lf":   "---\n" + threeDocs,
		"crlf": strings.ReplaceAll("---\n"+threeDocs, "\n", "\r\n"),
	}
	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := y.Parse([]byte(src), ParseOptions{Doc: AllDocuments})
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("all documents mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParse_SelectDocumentCRLF(t *testing.T) {
	src := []byte("a: 1\r\n---\r\nb: 2\r\n")
	for _, name := range allBackends {
		t.Run(name, func(t *testing.T) {
			y := newTestYAML(t, Options{Backend: name})
			got, err := y.Parse(src, ParseOptions{Doc: 1})
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if diff := cmp.Diff(map[string]any{"b": 2}, got); diff != "" {
				t.Errorf("document 1 mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLibraryParseDocument_RejectsStream(t *testing.T) {
	if _, ok := registered()[Library]; !ok {
		t.Skip("library backend not compiled in")
	}
	_, err := libraryBackend{}.parseDocument([]byte("a: 1\n---\nb: 2\n"), &tagResolver{})
	if !errors.Is(err, ErrMultipleDocuments) {
		t.Fatalf("err = %v, want ErrMultipleDocuments", err)
	}
}

// laughs nests levels of nine aliases to the previous level.
func laughs(levels int) string {
	var b strings.Builder
	b.WriteString("l0: &l0 [lol, lol, lol, lol, lol, lol, lol, lol, lol]\n")
	for i := 1; i < levels; i++ {
		ref := fmt.Sprintf("*l%d", i-1)
		fmt.Fprintf(&b, "l%d: &l%d [%s]\n", i, i, strings.TrimSuffix(strings.Repeat(ref+", ", 9), ", "))
	}
	return b.String()
}

func TestParse_ExcessiveAliasing(t *testing.T) {
	for _, name := range allBackends {
		t.Run(name, func(t *testing.T) {
			y := newTestYAML(t, Options{Backend: name})

			start := time.Now()
			_, err := y.Parse([]byte(laughs(9)), ParseOptions{})
			if !errors.Is(err, ErrExcessiveAliasing) {
				t.Fatalf("err = %v, want ErrExcessiveAliasing", err)
			}
			if elapsed := time.Since(start); elapsed > 2*time.Second {
				t.Errorf("rejection took %s", elapsed)
			}

			got, err := y.Parse([]byte(laughs(2)), ParseOptions{})
			if err != nil {
				t.Fatalf("small document rejected: %v", err)
			}
			if n := len(got.(map[string]any)["l1"].([]any)); n != 9 {
				t.Errorf("l1 has %d items, want 9", n)
			}
		})
	}
}

func TestParse_AliasedTagResolvedOnce(t *testing.T) {
	src := "a: &x !t foo\nb: *x\nc: !t bar\n"
	for _, name := range allBackends {
		t.Run(name, func(t *testing.T) {
			y := newTestYAML(t, Options{Backend: name})
			calls := 0
			y.OnParse("t", func(value any, tag string) (any, error) {
				calls++
				return strings.ToUpper(value.(string)), nil
			})

			got, err := y.Parse([]byte(src), ParseOptions{})
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if calls != 2 {
				t.Errorf("callback called %d times, want 2", calls)
			}
			want := map[string]any{"a": "FOO", "b": "FOO", "c": "BAR"}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("Parse mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParse_AllDocumentsNative(t *testing.T) {
	y := newTestYAML(t, Options{Backend: Native})
	_, err := y.Parse([]byte(threeDocs), ParseOptions{Doc: AllDocuments})
	if !errors.Is(err, ErrAllDocumentsUnsupported) {
		t.Fatalf("err = %v, want ErrAllDocumentsUnsupported", err)
	}
}

func TestParse_CommentOnly(t *testing.T) {
	for _, name := range allBackends {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			y := newTestYAML(t, Options{Backend: name, Logger: log.NewLogfmtLogger(&buf)})
			got, err := y.Parse([]byte("# nothing but a comment\n"), ParseOptions{})
			if err != nil || got != nil {
				t.Fatalf("Parse = %v, %v; want nil, nil", got, err)
			}
			if buf.Len() != 0 {
				t.Errorf("unexpected log output: %s", buf.String())
			}
		})
	}
}

func TestParse_SyntaxError(t *testing.T) {
	for _, name := range allBackends {
		t.Run(name, func(t *testing.T) {
			y := newTestYAML(t, Options{Backend: name})
			if _, err := y.Parse([]byte("key: [unclosed"), ParseOptions{}); err == nil {
				t.Fatal("expected syntax error")
			}
		})
	}
}

func TestEmit_RoundTrip(t *testing.T) {
	doc := map[string]any{
		"name":    "optload",
		"count":   42,
		"ratio":   0.25,
		"enabled": false,
		"none":    nil,
		"list":    []any{"a", 1, true},
		"nested": map[string]any{
			"deeper": map[string]any{"k": "v"},
			"multi":  "line one\nline two\n",
		},
	}
	for _, name := range allBackends {
		t.Run(name, func(t *testing.T) {
			y := newTestYAML(t, Options{Backend: name})
			out, err := y.Emit(doc)
			if err != nil {
				t.Fatalf("Emit: %v", err)
			}
			got, err := y.Parse(out, ParseOptions{})
			if err != nil {
				t.Fatalf("Parse(%q): %v", out, err)
			}
			if diff := cmp.Diff(doc, got); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s\noutput:\n%s", diff, out)
			}
		})
	}
}

type labels map[string]string

func TestEmit_Callbacks(t *testing.T) {
	fq := reflect.TypeOf(point{}).PkgPath() + ".point"
	for _, name := range allBackends {
		for _, key := range []string{fq, "point"} {
			t.Run(name+"/"+key, func(t *testing.T) {
				y := newTestYAML(t, Options{Backend: name})
				y.OnEmit(key, emitPoint)
				y.OnParse("point", parsePoint)

				doc := map[string]any{
					"origin": point{1, 2},
					"labels": labels{"tier": "web"},
				}
				out, err := y.Emit(doc)
				if err != nil {
					t.Fatalf("Emit: %v", err)
				}
				if !bytes.Contains(out, []byte("!point")) {
					t.Errorf("output lacks tag:\n%s", out)
				}
				got, err := y.Parse(out, ParseOptions{})
				if err != nil {
					t.Fatalf("Parse(%q): %v", out, err)
				}
				want := map[string]any{
					"origin": point{1, 2},
					"labels": map[string]any{"tier": "web"},
				}
				if diff := cmp.Diff(want, got); diff != "" {
					t.Errorf("round trip mismatch (-want +got):\n%s\noutput:\n%s", diff, out)
				}
			})
		}
	}
}

func TestEmit_CallbackDeclines(t *testing.T) {
	y := newTestYAML(t, Options{})
	y.OnEmit("labels", func(any) (*TaggedValue, error) { return nil, nil })
	out, err := y.Emit(map[string]any{"l": labels{"a": "b"}})
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if bytes.Contains(out, []byte("!")) {
		t.Errorf("declined callback should not tag:\n%s", out)
	}
}

func TestEmit_Objects(t *testing.T) {
	for _, name := range allBackends {
		t.Run(name, func(t *testing.T) {
			y := newTestYAML(t, Options{Backend: name, EmitObjects: true, ParseObjects: true})
			out, err := y.Emit(map[string]any{"p": point{3, 4}})
			if err != nil {
				t.Fatalf("Emit: %v", err)
			}
			if !bytes.Contains(out, []byte("!go/point")) {
				t.Errorf("output lacks object tag:\n%s", out)
			}
			got, err := y.Parse(out, ParseOptions{})
			if err != nil {
				t.Fatalf("Parse(%q): %v", out, err)
			}
			want := map[string]any{"p": map[string]any{"x": 3, "y": 4}}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestEmit_NativeFormatting(t *testing.T) {
	y := newTestYAML(t, Options{Backend: Native, LineBreak: BreakCRLN})
	out, err := y.Emit(map[string]any{"a": 1, "b": 2})
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if string(out) != "a: 1\r\nb: 2\r\n" {
		t.Errorf("CRLN output = %q", out)
	}

	y = newTestYAML(t, Options{Backend: Native, Indent: 4})
	out, err = y.Emit(map[string]any{"a": map[string]any{"b": 1}})
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if string(out) != "a:\n    b: 1\n" {
		t.Errorf("indent output = %q", out)
	}
}

func TestEmit_NativeUTF16(t *testing.T) {
	y := newTestYAML(t, Options{Backend: Native, Encoding: EncodingUTF16LE})
	doc := map[string]any{"greeting": "héllo"}
	out, err := y.Emit(doc)
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if !bytes.HasPrefix(out, []byte{0xFF, 0xFE}) {
		t.Fatalf("missing UTF-16LE BOM: % x", out[:4])
	}
	got, err := y.Parse(out, ParseOptions{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if diff := cmp.Diff(doc, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestEmit_LibraryInline(t *testing.T) {
	y := newTestYAML(t, Options{Backend: Library, Inline: 1})
	doc := map[string]any{
		"a": map[string]any{"b": 1},
		"c": []any{"x", "y"},
	}
	out, err := y.Emit(doc)
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if !bytes.Contains(out, []byte("{b: 1}")) || !bytes.Contains(out, []byte("[x, y]")) {
		t.Errorf("nested collections should be flow style:\n%s", out)
	}
	got, err := y.Parse(out, ParseOptions{})
	if err != nil {
		t.Fatalf("Parse(%q): %v", out, err)
	}
	if diff := cmp.Diff(doc, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestFileVariants(t *testing.T) {
	for _, name := range allBackends {
		t.Run(name, func(t *testing.T) {
			y := newTestYAML(t, Options{Backend: name})
			path := filepath.Join(t.TempDir(), "out.yaml")
			doc := map[string]any{"servers": []any{"a", "b"}}
			if err := y.EmitFile(path, doc); err != nil {
				t.Fatalf("EmitFile: %v", err)
			}
			got, err := y.ParseFile(path, ParseOptions{})
			if err != nil {
				t.Fatalf("ParseFile: %v", err)
			}
			if diff := cmp.Diff(doc, got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}

	y := newTestYAML(t, Options{})
	if _, err := y.ParseFile(filepath.Join(t.TempDir(), "absent.yaml"), ParseOptions{}); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("err = %v, want not-exist", err)
	}
}

func TestAdaptersAreIndependent(t *testing.T) {
	wide := newTestYAML(t, Options{Backend: Native, Indent: 6})
	narrow := newTestYAML(t, Options{Backend: Native, Indent: 2})
	doc := map[string]any{"a": map[string]any{"b": 1}}

	w, err := wide.Emit(doc)
	if err != nil {
		t.Fatal(err)
	}
	n, err := narrow.Emit(doc)
	if err != nil {
		t.Fatal(err)
	}
	if string(w) != "a:\n      b: 1\n" || string(n) != "a:\n  b: 1\n" {
		t.Errorf("indent leaked between adapters: %q / %q", w, n)
	}
}

func TestSplitDocuments(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"a: 1", []string{"a: 1"}},
		{"a: 1\n---\nb: 2", []string{"a: 1\n", "\nb: 2"}},
		{"---\na: 1", []string{"\na: 1"}},
		{"%YAML 1.2\n---\na: 1", []string{"\na: 1"}},
		{"- a\n- b", []string{"- a\n- b"}},
		{"a: ----\nb: 1", []string{"a: ----\nb: 1"}},
		{"a: 1\r\n---\r\nb: 2\r\n", []string{"a: 1\r\n", "\nb: 2\r\n"}},
		{"---\r\na: 1\r\n", []string{"\na: 1\r\n"}},
	}
	for _, tt := range tests {
		got := splitDocuments(tt.in)
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("splitDocuments(%q) mismatch (-want +got):\n%s", tt.in, diff)
		}
	}
}

func TestOptionsFromMap(t *testing.T) {
	got := OptionsFromMap(map[string]any{
		KeyBackend:      Library,
		KeyEncoding:     "utf-16le",
		KeyBreak:        3,
		KeyIndent:       4,
		KeyWidth:        float64(120),
		KeyParseObjects: true,
		KeyEmitObjects:  "yes", // wrong type, ignored
		KeyInline:       int64(3),
		"colour":        "blue",
	})
	want := Options{
		Backend:      Library,
		Encoding:     EncodingUTF16LE,
		LineBreak:    BreakCRLN,
		Indent:       4,
		Width:        120,
		ParseObjects: true,
		Inline:       3,
	}
	if diff := cmp.Diff(want, got, cmp.FilterPath(func(p cmp.Path) bool {
		return p.String() == "Logger"
	}, cmp.Ignore())); diff != "" {
		t.Errorf("OptionsFromMap mismatch (-want +got):\n%s", diff)
	}

	if d := OptionsFromMap(nil); d.Indent != DefaultIndent || d.Inline != DefaultInline {
		t.Errorf("empty map should yield defaults, got %+v", d)
	}
	if e := OptionsFromMap(map[string]any{KeyEncoding: 9}); e.Encoding != EncodingAny {
		t.Errorf("out of range encoding should be ignored, got %v", e.Encoding)
	}
}
