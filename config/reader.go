package config

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/a8m/envsubst"
	"github.com/pkg/errors"
)

// Read reads a config from the given JSON file. Environment variables referenced as
// $VAR or ${VAR} are expanded before decoding.
func Read(filePath string) (*Config, error) {
	buf, err := envsubst.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	return FromReader(bytes.NewReader(buf))
}

// FromReader reads a config from a JSON object. Keys that are absent keep their defaults.
func FromReader(r io.Reader) (*Config, error) {
	attributes := map[string]interface{}{}
	if err := json.NewDecoder(r).Decode(&attributes); err != nil {
		return nil, errors.Wrap(err, "failed to decode config from json")
	}
	return FromAttributes(attributes)
}
