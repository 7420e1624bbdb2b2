package config

import (
	"bytes"
	"encoding/json"
	"sync"

	"github.com/pkg/errors"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

const agentMailSchemaURL = "mailchannel://schemas/agentmail.json"

const agentMailSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "name": { "type": "string" },
    "enabled": { "type": "boolean" },
    "token": { "type": "string" },
    "emailAddress": { "type": "string" },
    "allowFrom": { "type": "array", "items": { "type": "string" } },
    "blockStreaming": { "type": "boolean" }
  }
}`

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func agentMailSectionSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiledSchema, schemaErr = jsonschema.CompileString(agentMailSchemaURL, agentMailSchema)
	})
	return compiledSchema, schemaErr
}

// ValidateAgentMailSection checks a typed section against the channel schema
func ValidateAgentMailSection(section *AgentMailChannelConfig) error {
	if section == nil {
		return nil
	}
	data, err := json.Marshal(section)
	if err != nil {
		return errors.Wrap(err, "encoding agentmail section")
	}
	return validateJSON(data)
}

func validateRawAgentMailSection(raw map[string]interface{}) error {
	channels, ok := raw["channels"].(map[string]interface{})
	if !ok {
		return nil
	}
	section, ok := channels["agentmail"]
	if !ok || section == nil {
		return nil
	}
	data, err := json.Marshal(section)
	if err != nil {
		return errors.Wrap(err, "encoding agentmail section")
	}
	return validateJSON(data)
}

func validateJSON(data []byte) error {
	schema, err := agentMailSectionSchema()
	if err != nil {
		return errors.Wrap(err, "compiling agentmail schema")
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return errors.Wrap(err, "decoding agentmail section")
	}

	if err := schema.Validate(v); err != nil {
		return errors.Wrap(err, "invalid channels.agentmail config")
	}
	return nil
}
