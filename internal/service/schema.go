package service

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	apperrors "github.com/target/integrations-dispatch/internal/errors"
)

const schemaResource = "integration.schema.json"

// compileSchema compiles an integration's JSON Schema. An empty schema accepts any config.
func compileSchema(schema json.RawMessage) (*jsonschema.Schema, error) {
	raw := bytes.TrimSpace(schema)
	if len(raw) == 0 || string(raw) == "null" {
		raw = []byte(`{}`)
	}
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft7
	if err := c.AddResource(schemaResource, bytes.NewReader(raw)); err != nil {
		return nil, apperrors.ValidationField("schema", fmt.Sprintf("invalid JSON Schema: %v", err))
	}
	compiled, err := c.Compile(schemaResource)
	if err != nil {
		return nil, apperrors.ValidationField("schema", fmt.Sprintf("invalid JSON Schema: %v", err))
	}
	return compiled, nil
}

// validateConfig checks a deployment config against its integration's schema.
func validateConfig(schema, config json.RawMessage) error {
	compiled, err := compileSchema(schema)
	if err != nil {
		return err
	}
	var doc any
	if err := json.Unmarshal(config, &doc); err != nil {
		return apperrors.ValidationField("config", "config must be valid JSON")
	}
	if err := compiled.Validate(doc); err != nil {
		return apperrors.ValidationField("config", configViolationMessage(err))
	}
	return nil
}

func configViolationMessage(err error) string {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err.Error()
	}
	leaves := make([]string, 0, 4)
	var walk func(*jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			loc := e.InstanceLocation
			if loc == "" {
				loc = "/"
			}
			leaves = append(leaves, loc+": "+e.Message)
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(ve)
	return "config does not match integration schema: " + strings.Join(leaves, "; ")
}
