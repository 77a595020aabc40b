package updater

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// batchSchema is the wire contract for supervisor batches. Amounts are
// strictly positive integers; the ledger re-checks, but rejecting malformed
// batches here keeps their ids unconsumed.
const batchSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["id"],
  "properties": {
    "id": {"type": "string", "minLength": 1},
    "increases": {"$ref": "#/$defs/deltas"},
    "decreases": {"$ref": "#/$defs/deltas"},
    "slashes": {"$ref": "#/$defs/deltas"}
  },
  "additionalProperties": false,
  "$defs": {
    "deltas": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["user", "amount"],
        "properties": {
          "user": {"type": "string", "minLength": 1},
          "amount": {"type": "integer", "minimum": 1},
          "reason": {"type": "string"}
        },
        "additionalProperties": false
      }
    }
  }
}`

var compiledBatchSchema = jsonschema.MustCompileString("batch.schema.json", batchSchema)

func validateBatch(raw json.RawMessage) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("updater: batch is not json: %w", err)
	}
	if err := compiledBatchSchema.Validate(doc); err != nil {
		return fmt.Errorf("updater: batch rejected by schema: %w", err)
	}
	return nil
}
