package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const maxBodyBytes = 64 * 1024

const contractSchema = `{
  "type": "object",
  "required": ["frame", "scale"],
  "properties": {
    "frame": {"type": "string", "minLength": 1},
    "scale": {"type": "string", "minLength": 1},
    "datum": {"type": "string"},
    "tolerances": {"type": "object", "additionalProperties": {"type": "number", "minimum": 0}}
  },
  "additionalProperties": false
}`

const vectorSchema = `{
  "type": "object",
  "required": ["x", "y", "z"],
  "properties": {
    "x": {"type": "number"},
    "y": {"type": "number"},
    "z": {"type": "number"}
  },
  "additionalProperties": false
}`

var (
	convertSchema = jsonschema.MustCompileString("convert.schema.json", `{
  "type": "object",
  "required": ["time", "from"],
  "properties": {
    "time": {"type": "string", "format": "date-time"},
    "from": {"type": "string", "minLength": 1},
    "to": {"type": "array", "items": {"type": "string", "minLength": 1}, "maxItems": 6}
  },
  "additionalProperties": false
}`)

	transformSchema = jsonschema.MustCompileString("transform.schema.json", `{
  "type": "object",
  "required": ["position", "contract", "to"],
  "properties": {
    "position": `+vectorSchema+`,
    "contract": `+contractSchema+`,
    "to": {"type": "string", "minLength": 1},
    "at": {"type": "string", "format": "date-time"},
    "at_scale": {"type": "string", "minLength": 1}
  },
  "additionalProperties": false
}`)

	verifySchema = jsonschema.MustCompileString("verify.schema.json", `{
  "type": "object",
  "required": ["a", "b"],
  "properties": {
    "a": `+contractSchema+`,
    "b": `+contractSchema+`,
    "value_a": {"type": "number"},
    "value_b": {"type": "number"},
    "tolerance_key": {"type": "string"}
  },
  "additionalProperties": false
}`)

	moveSchema = jsonschema.MustCompileString("move.schema.json", `{
  "type": "object",
  "required": ["position"],
  "properties": {
    "name": {"type": "string", "maxLength": 64},
    "position": `+vectorSchema+`,
    "contract": `+contractSchema+`
  },
  "additionalProperties": false
}`)
)

// decodeValidated reads a JSON body, checks it against schema and decodes
// it into dst.
func decodeValidated(r *http.Request, schema *jsonschema.Schema, dst any) error {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if len(raw) > maxBodyBytes {
		return errors.New("body too large")
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			return fmt.Errorf("invalid request: %s", leafMessage(ve))
		}
		return err
	}
	return json.Unmarshal(raw, dst)
}

// leafMessage returns the most specific cause of a validation failure.
func leafMessage(ve *jsonschema.ValidationError) string {
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	loc := ve.InstanceLocation
	if loc == "" {
		loc = "/"
	}
	return loc + ": " + ve.Message
}
