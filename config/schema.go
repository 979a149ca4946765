package config

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/15532th/avtdl/errors"
)

// configSchema is the structural schema every configuration document must
// satisfy before it is decoded. Plugin-specific entity fields are free-form;
// the reserved keys and the overall shape are enforced here.
const configSchema = `{
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "settings": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "host": {"type": "string"},
        "port": {"type": "integer", "minimum": 0, "maximum": 65535},
        "log_level": {"type": "string", "enum": ["debug", "info", "warn", "error"]},
        "history_size": {"type": "integer", "minimum": 1},
        "poll_interval": {"type": "string"}
      }
    },
    "actors": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "additionalProperties": false,
        "properties": {
          "defaults": {"type": "object"},
          "entities": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["name"],
              "properties": {
                "name": {"type": "string", "minLength": 1},
                "consume_record": {"type": "boolean"},
                "reset_origin": {"type": "boolean"},
                "event_passthrough": {"type": "boolean"},
                "poll_interval": {"type": "string"}
              }
            }
          }
        }
      }
    },
    "chains": {
      "type": "object",
      "additionalProperties": {
        "type": ["array", "null"],
        "items": {
          "type": "object",
          "minProperties": 1,
          "maxProperties": 1,
          "additionalProperties": {
            "type": "array",
            "items": {"type": "string", "minLength": 1},
            "minItems": 1
          }
        }
      }
    }
  }
}`

// validateSchema checks the raw YAML document against configSchema. YAML is
// decoded generically and re-rendered as JSON for the validator, so schema
// errors carry document paths ("actors.filter.match.entities.0").
func validateSchema(data []byte) error {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return errors.WrapInvalid(err, "config", "validateSchema", "yaml decoding")
	}
	if doc == nil {
		return nil
	}

	jsonDoc, err := json.Marshal(doc)
	if err != nil {
		return errors.WrapInvalid(err, "config", "validateSchema", "json rendering")
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(configSchema),
		gojsonschema.NewBytesLoader(jsonDoc),
	)
	if err != nil {
		return errors.WrapFatal(err, "config", "validateSchema", "schema evaluation")
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		msgs = append(msgs, fmt.Sprintf("%s: %s", desc.Field(), desc.Description()))
	}
	return errors.WrapInvalid(
		fmt.Errorf("%s", strings.Join(msgs, "; ")),
		"config", "validateSchema", "schema validation")
}
