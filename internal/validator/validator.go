// Package validator checks loaded documents against a JSON Schema.
package validator

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/notwillk/optload/internal/loader"
)

const resourceURL = "mem://optload/schema.json"

// ValidationError describes a document that does not match the schema.
type ValidationError struct {
	FilePath string
	Message  string
	Err      error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.FilePath, e.Message)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Validator applies one compiled schema under a silent/warn/fail policy.
type Validator struct {
	schema *jsonschema.Schema
	policy loader.Policy
	logger log.Logger
}

// New compiles schemaJSON.
//
//   - PolicyFatal: Validate returns a *ValidationError
//   - PolicyLog:   Validate logs a warning and returns nil
//   - PolicySilent: violations are ignored
func New(schemaJSON []byte, policy loader.Policy, logger log.Logger) (*Validator, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("reading schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(resourceURL, doc); err != nil {
		return nil, fmt.Errorf("adding schema: %w", err)
	}
	sch, err := c.Compile(resourceURL)
	if err != nil {
		return nil, fmt.Errorf("compiling schema: %w", err)
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Validator{
		schema: sch,
		policy: policy,
		logger: log.With(logger, "component", "validator"),
	}, nil
}

// Policy returns the policy violations are handled with.
func (v *Validator) Policy() loader.Policy { return v.policy }

// Validate checks doc, which was read from path.
func (v *Validator) Validate(path string, doc any) error {
	if v.policy == loader.PolicySilent {
		return nil
	}
	inst, err := instance(doc)
	if err != nil {
		return &ValidationError{FilePath: path, Message: "document cannot be validated", Err: err}
	}
	if err := v.schema.Validate(inst); err != nil {
		verr := &ValidationError{FilePath: path, Message: err.Error(), Err: err}
		if v.policy == loader.PolicyFatal {
			return verr
		}
		level.Warn(v.logger).Log("msg", "schema violation", "path", path, "err", err)
	}
	return nil
}

// instance converts doc into the value shapes the validator expects.
func instance(doc any) (any, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	return jsonschema.UnmarshalJSON(bytes.NewReader(data))
}
