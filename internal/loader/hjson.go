package loader

import (
	"bytes"
	"encoding/json"

	hjson "github.com/hjson/hjson-go/v4"
)

// HJSONParser reads .hjson, .jsonc and .json5 files. Input that hjson
// rejects is retried as plain JSON.
type HJSONParser struct{}

func (HJSONParser) Format() Format       { return FormatHJSON }
func (HJSONParser) Extensions() []string { return []string{"hjson", "jsonc", "json5"} }

func (HJSONParser) Parse(data []byte) (any, error) {
	opts := hjson.DefaultDecoderOptions()
	opts.UseJSONNumber = true

	var raw any
	if err := hjson.UnmarshalWithOptions(data, &raw, opts); err != nil {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err2 := dec.Decode(&raw); err2 != nil {
			return nil, err
		}
	}
	return normalize(raw), nil
}
