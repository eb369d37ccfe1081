package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema/aggregators-v1.schema.json
var aggregatorsSchemaJSON []byte

const aggregatorsSchemaID = "https://otsgo/schema/aggregators-v1.schema.json"

type aggregatorsFile struct {
	Aggregators []string `json:"aggregators"`
}

// LoadAggregatorsFile reads and schema-validates an operator-editable JSON
// file listing calendar URLs, so the list can be hot-swapped without
// touching (or risking corrupting) the main TOML config.
func LoadAggregatorsFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read aggregators file: %w", err)
	}

	var instance any
	if err := json.Unmarshal(data, &instance); err != nil {
		return nil, fmt.Errorf("config: parse aggregators file: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(aggregatorsSchemaID, bytes.NewReader(aggregatorsSchemaJSON)); err != nil {
		return nil, fmt.Errorf("config: load aggregators schema: %w", err)
	}
	schema, err := compiler.Compile(aggregatorsSchemaID)
	if err != nil {
		return nil, fmt.Errorf("config: compile aggregators schema: %w", err)
	}
	if err := schema.Validate(instance); err != nil {
		return nil, fmt.Errorf("config: aggregators file failed validation: %w", err)
	}

	var parsed aggregatorsFile
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("config: decode aggregators file: %w", err)
	}
	return parsed.Aggregators, nil
}
