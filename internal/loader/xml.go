package loader

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"strings"
)

// XMLParser reads .xml files into nested maps. The root element is
// unwrapped: its attributes and children become the top-level keys.
// Repeated child elements collect into a list and mixed text is kept under
// "#text".
type XMLParser struct{}

func (XMLParser) Format() Format       { return FormatXML }
func (XMLParser) Extensions() []string { return []string{"xml"} }

func (XMLParser) Parse(data []byte) (any, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		if start, ok := tok.(xml.StartElement); ok {
			root, err := xmlElement(dec, start)
			if err != nil {
				return nil, err
			}
			if _, ok := root.(map[string]any); ok {
				return root, nil
			}
			return map[string]any{start.Name.Local: root}, nil
		}
	}
}

func xmlElement(dec *xml.Decoder, start xml.StartElement) (any, error) {
	children := make(map[string]any, len(start.Attr))
	for _, attr := range start.Attr {
		children[attr.Name.Local] = attr.Value
	}

	var text strings.Builder
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			child, err := xmlElement(dec, t)
			if err != nil {
				return nil, err
			}
			name := t.Name.Local
			switch existing := children[name].(type) {
			case nil:
				children[name] = child
			case []any:
				children[name] = append(existing, child)
			default:
				children[name] = []any{existing, child}
			}
		case xml.CharData:
			text.Write(t)
		case xml.EndElement:
			s := strings.TrimSpace(text.String())
			if len(children) == 0 {
				return s, nil
			}
			if s != "" {
				children["#text"] = s
			}
			return children, nil
		}
	}
}
