package relay

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// publishSchema is the JSON Schema every inbound publish must satisfy: a
// single-level document with a rooted topic path and a value that is a
// number, a string (heartbeats), or an object. Anything else is dropped.
const publishSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["topic", "value"],
	"properties": {
		"topic": {
			"type": "string",
			"pattern": "^/[A-Za-z0-9._-]+(/[A-Za-z0-9._-]+)+$",
			"maxLength": 128
		},
		"value": {
			"type": ["number", "string", "object"]
		}
	},
	"additionalProperties": false
}`

var publishSchemaLoader = gojsonschema.NewStringLoader(publishSchema)

// ValidatePublish checks one inbound publish document against the schema.
// The returned error is descriptive enough to log but is never sent back to
// the client; the relay drops invalid publishes silently on the wire.
func ValidatePublish(document []byte) error {
	result, err := gojsonschema.Validate(publishSchemaLoader, gojsonschema.NewBytesLoader(document))
	if err != nil {
		// Not even JSON
		return fmt.Errorf("publish is not valid JSON: %w", err)
	}
	if result.Valid() {
		return nil
	}

	details := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		details = append(details, desc.String())
	}
	return fmt.Errorf("publish failed schema validation: %s", strings.Join(details, "; "))
}
