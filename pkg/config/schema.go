package config

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// Schema returns the JSON schema of Config.
func Schema() ([]byte, error) {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	s := reflector.Reflect(&Config{})
	s.Version = "https://json-schema.org/draft/2020-12/schema"
	s.Title = "bufferdb configuration"
	return json.MarshalIndent(s, "", "  ")
}
