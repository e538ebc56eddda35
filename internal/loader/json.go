package loader

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"

	"github.com/tidwall/jsonc"
)

// JSONParser reads .json and .jsn files. Comments and trailing commas are
// stripped before decoding.
type JSONParser struct{}

func (JSONParser) Format() Format       { return FormatJSON }
func (JSONParser) Extensions() []string { return []string{"json", "jsn"} }

func (JSONParser) Parse(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("unexpected data after top-level value")
	}
	return normalize(raw), nil
}
