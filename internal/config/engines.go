// Package config loads the pipeline's two configuration surfaces: the
// engine definition file and the environment-driven search roots. Values
// are returned as plain structs constructed once and passed down; nothing
// here is consulted ambiently at run time.
package config

import (
	"fmt"
	"os"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/Starlink/ORAC-DR-sub007/pkg/domain"
)

// LoadEngines reads a yaml engine definition file into a table keyed by
// logical engine name. Keys a definition carries beyond the common ones are
// kept loosely typed under Extra for the protocol session to interpret.
// Executable paths and env values are environment-expanded at load time, so
// definitions may use ${STARLINK_DIR}-style templates.
func LoadEngines(path string) (map[string]domain.EngineDef, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read engine definitions: %w", err)
	}

	var file struct {
		Engines []map[string]any `yaml:"engines"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse engine definitions %s: %w", path, err)
	}

	defs := make(map[string]domain.EngineDef, len(file.Engines))
	for i, raw := range file.Engines {
		var def domain.EngineDef
		if err := mapstructure.Decode(raw, &def); err != nil {
			return nil, fmt.Errorf("engine entry %d: %w", i+1, err)
		}
		if def.Name == "" {
			return nil, fmt.Errorf("engine entry %d has no name", i+1)
		}
		if def.Protocol == "" {
			return nil, fmt.Errorf("engine %s has no protocol", def.Name)
		}
		if _, dup := defs[def.Name]; dup {
			return nil, fmt.Errorf("engine %s is defined twice", def.Name)
		}
		def.Path = os.ExpandEnv(def.Path)
		for k, v := range def.Env {
			def.Env[k] = os.ExpandEnv(v)
		}
		defs[def.Name] = def
	}
	return defs, nil
}
