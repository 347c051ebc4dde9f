package cachedconfig

import (
	"encoding/json"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Built-in deserializers for the formats config sources commonly serve.
// Custom formats go through GetConfigHandleWithDeserializer.

func jsonDeserializer[T any](raw []byte) (T, error) {
	var value T
	err := json.Unmarshal(raw, &value)
	return value, err
}

func yamlDeserializer[T any](raw []byte) (T, error) {
	var value T
	err := yaml.Unmarshal(raw, &value)
	return value, err
}

func tomlDeserializer[T any](raw []byte) (T, error) {
	var value T
	err := toml.Unmarshal(raw, &value)
	return value, err
}

func rawDeserializer(raw []byte) (string, error) {
	return string(raw), nil
}
