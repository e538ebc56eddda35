// Package jsonschema generates JSON Schema documents describing the files
// optload reads.
package jsonschema

import (
	"encoding/json"
)

var policies = []string{"silent", "warn", "fail"}

// GenerateConfigSchema generates a JSON Schema for the optload.yaml config
// file.
func GenerateConfigSchema() ([]byte, error) {
	doc := map[string]any{
		"$schema":     "https://json-schema.org/draft/2020-12/schema",
		"title":       "optload configuration",
		"description": "Configuration file for optload (optload.yaml)",
		"type":        "object",
		"properties": map[string]any{
			"backend": map[string]any{
				"type":        "string",
				"enum":        []string{"", "native", "library"},
				"description": "YAML backend to use; empty probes native then library",
				"default":     "",
			},
			"invalid": policyProp("Behavior when a loaded file fails schema validation", "fail"),
			"yaml": map[string]any{
				"type":        "object",
				"description": "YAML adapter options",
				"properties": map[string]any{
					"encoding": map[string]any{
						"type":        "string",
						"enum":        []string{"any", "utf8", "utf16le", "utf16be"},
						"description": "Character encoding of emitted YAML (native backend)",
						"default":     "any",
					},
					"break": map[string]any{
						"type":        "string",
						"enum":        []string{"any", "cr", "ln", "crln"},
						"description": "Line break of emitted YAML (native backend)",
						"default":     "any",
					},
					"indent":       intProp("Indentation width of emitted YAML", 2, 1),
					"width":        intProp("Preferred line width of emitted YAML", 80, 1),
					"inline":       intProp("Depth from which collections are emitted in flow style (library backend)", 8, 1),
					"parseObjects": boolProp("Unwrap !go/ tagged nodes without a callback"),
					"emitObjects":  boolProp("Emit structs as !go/ tagged mappings"),
				},
				"additionalProperties": false,
			},
			"errors": map[string]any{
				"type":        "object",
				"description": "Handling of load failures per category",
				"properties": map[string]any{
					"missing":  policyProp("File does not exist or is unreadable", "silent"),
					"invalid":  policyProp("Content cannot be parsed or has an unknown format", "fail"),
					"empty":    policyProp("File is empty after trimming whitespace", "fail"),
					"iterable": policyProp("Document is neither a mapping nor a sequence", "fail"),
				},
				"additionalProperties": false,
			},
			"log": map[string]any{
				"type":        "object",
				"description": "Logging options",
				"properties": map[string]any{
					"level": map[string]any{
						"type":    "string",
						"enum":    []string{"debug", "info", "warn", "error", "none"},
						"default": "info",
					},
					"format": map[string]any{
						"type":    "string",
						"enum":    []string{"logfmt", "json"},
						"default": "logfmt",
					},
				},
				"additionalProperties": false,
			},
		},
		"additionalProperties": false,
	}
	return json.MarshalIndent(doc, "", "  ")
}

func policyProp(description, defaultVal string) map[string]any {
	return map[string]any{
		"type":        "string",
		"enum":        policies,
		"description": description,
		"default":     defaultVal,
	}
}

func intProp(description string, defaultVal, minimum int) map[string]any {
	return map[string]any{
		"type":        "integer",
		"description": description,
		"default":     defaultVal,
		"minimum":     minimum,
	}
}

func boolProp(description string) map[string]any {
	return map[string]any{
		"type":        "boolean",
		"description": description,
		"default":     false,
	}
}
