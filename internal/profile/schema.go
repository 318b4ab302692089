package profile

import (
	"encoding/json"

	"github.com/invopop/jsonschema"

	"github.com/hardscan/hardscan/internal/errors"
)

// Schema reflects the profile document model into a JSON schema
// (Draft 2020-12). Editors use it to validate and complete profile YAML.
func Schema() ([]byte, error) {
	reflector := jsonschema.Reflector{
		ExpandedStruct: true,
	}
	s := reflector.Reflect(&Profile{})
	s.Title = "hardscan profile"
	s.Description = "Declarative compliance profile checked by hardscan"

	out, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "marshaling profile schema")
	}
	return out, nil
}
