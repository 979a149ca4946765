// Package config loads and validates the actor/entity/chain configuration
// and builds the routing graph and entity set the bus runs against. The bus
// itself assumes a graph handed to it is already internally consistent; all
// validation, with errors attributed to a configuration path, happens here.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/15532th/avtdl/errors"
)

// DefaultPollInterval is used for monitors that configure no interval.
const DefaultPollInterval = 5 * time.Minute

// Duration decodes YAML duration strings ("30s", "5m") into time.Duration.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Settings holds process-wide options.
type Settings struct {
	Host         string   `yaml:"host"`
	Port         int      `yaml:"port"`
	LogLevel     string   `yaml:"log_level"`
	HistorySize  int      `yaml:"history_size"`
	PollInterval Duration `yaml:"poll_interval"` // default for monitors
}

// EntityConfig is one entity declaration under an actor: the entity name,
// the bus-visible flags, and the plugin-specific fields kept raw for the
// plugin factory to parse.
type EntityConfig struct {
	Name             string
	ConsumeRecord    *bool // nil = use the category default (true for actions)
	ResetOrigin      bool
	EventPassthrough bool
	PollInterval     time.Duration // monitors only
	Raw              map[string]any
}

// UnmarshalYAML splits the reserved keys from the plugin-specific remainder.
func (ec *EntityConfig) UnmarshalYAML(node *yaml.Node) error {
	var fields map[string]any
	if err := node.Decode(&fields); err != nil {
		return err
	}

	take := func(key string) (any, bool) {
		v, ok := fields[key]
		if ok {
			delete(fields, key)
		}
		return v, ok
	}

	if v, ok := take("name"); ok {
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("entity name must be a string, got %T", v)
		}
		ec.Name = s
	}
	if v, ok := take("consume_record"); ok {
		b, ok := v.(bool)
		if !ok {
			return fmt.Errorf("consume_record must be a boolean, got %T", v)
		}
		ec.ConsumeRecord = &b
	}
	if v, ok := take("reset_origin"); ok {
		b, ok := v.(bool)
		if !ok {
			return fmt.Errorf("reset_origin must be a boolean, got %T", v)
		}
		ec.ResetOrigin = b
	}
	if v, ok := take("event_passthrough"); ok {
		b, ok := v.(bool)
		if !ok {
			return fmt.Errorf("event_passthrough must be a boolean, got %T", v)
		}
		ec.EventPassthrough = b
	}
	if v, ok := take("poll_interval"); ok {
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("poll_interval must be a duration string, got %T", v)
		}
		d, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("poll_interval: %w", err)
		}
		ec.PollInterval = d
	}

	ec.Raw = fields
	return nil
}

// ActorConfig groups the entities of one actor, with optional defaults
// merged under every entity's plugin fields.
type ActorConfig struct {
	Defaults map[string]any `yaml:"defaults"`
	Entities []EntityConfig `yaml:"entities"`
}

// ChainConfig is one named chain: an ordered list of cards, each written in
// YAML as a single-key mapping from actor to entity list.
type ChainConfig struct {
	Name  string
	Cards []CardConfig
}

// CardConfig is one card reference.
type CardConfig struct {
	Actor    string
	Entities []string
}

// File is the parsed configuration document.
type File struct {
	Settings Settings               `yaml:"settings"`
	Actors   map[string]ActorConfig `yaml:"actors"`
	Chains   []ChainConfig          `yaml:"-"`
}

// file mirrors File for decoding; chains need order-preserving handling.
type file struct {
	Settings Settings               `yaml:"settings"`
	Actors   map[string]ActorConfig `yaml:"actors"`
	Chains   yaml.Node              `yaml:"chains"`
}

// Parse decodes and validates a configuration document.
func Parse(data []byte) (*File, error) {
	if err := validateSchema(data); err != nil {
		return nil, err
	}

	var raw file
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errors.WrapInvalid(err, "config", "Parse", "yaml decoding")
	}

	chains, err := decodeChains(&raw.Chains)
	if err != nil {
		return nil, err
	}

	f := &File{
		Settings: raw.Settings,
		Actors:   raw.Actors,
		Chains:   chains,
	}
	if f.Settings.PollInterval == 0 {
		f.Settings.PollInterval = Duration(DefaultPollInterval)
	}
	return f, nil
}

// Load reads and parses a configuration file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapInvalid(err, "config", "Load", path)
	}
	return Parse(data)
}

// decodeChains walks the chains mapping node directly so that chain order
// and card order follow the document, which a plain map would lose.
func decodeChains(node *yaml.Node) ([]ChainConfig, error) {
	if node.Kind == 0 || node.Tag == "!!null" {
		return nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, errors.WrapInvalid(
			fmt.Errorf("chains must be a mapping"), "config", "Parse", "chains")
	}

	var chains []ChainConfig
	for i := 0; i+1 < len(node.Content); i += 2 {
		nameNode, seqNode := node.Content[i], node.Content[i+1]
		ch := ChainConfig{Name: nameNode.Value}

		if seqNode.Tag == "!!null" {
			chains = append(chains, ch)
			continue
		}
		if seqNode.Kind != yaml.SequenceNode {
			return nil, errors.WrapInvalid(
				fmt.Errorf("chain must be a list of cards"), "config", "Parse",
				fmt.Sprintf("chains.%s", ch.Name))
		}

		for j, cardNode := range seqNode.Content {
			pos := fmt.Sprintf("chains.%s[%d]", ch.Name, j)
			if cardNode.Kind != yaml.MappingNode || len(cardNode.Content) != 2 {
				return nil, errors.WrapInvalid(
					fmt.Errorf("card must be a single actor-to-entities mapping"),
					"config", "Parse", pos)
			}

			var names []string
			if err := cardNode.Content[1].Decode(&names); err != nil {
				return nil, errors.WrapInvalid(err, "config", "Parse", pos)
			}
			ch.Cards = append(ch.Cards, CardConfig{
				Actor:    cardNode.Content[0].Value,
				Entities: names,
			})
		}
		chains = append(chains, ch)
	}
	return chains, nil
}

// mergeDefaults layers the actor defaults under the entity's own fields and
// renders the result as JSON for the plugin factory.
func mergeDefaults(defaults, own map[string]any) (json.RawMessage, error) {
	merged := make(map[string]any, len(defaults)+len(own))
	for k, v := range defaults {
		merged[k] = v
	}
	for k, v := range own {
		merged[k] = v
	}
	if len(merged) == 0 {
		return nil, nil
	}
	return json.Marshal(merged)
}
