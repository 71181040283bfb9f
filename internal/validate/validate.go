// Package validate checks a persisted artifact against its embedded JSON
// Schema before a store write commits, per SPEC_FULL.md §3.4: an invalid
// in-memory mutation is caught before it reaches disk, never after.
package validate

import (
	"encoding/json"
	"fmt"

	"github.com/mehmetkoksal-w/hookbound/internal/storeschema"
)

// Value marshals v to JSON and validates it against the named schema.
func Value(v any, schemaName string) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal value: %w", err)
	}
	schema, err := storeschema.Compile(schemaName)
	if err != nil {
		return err
	}
	var instance any
	if err := json.Unmarshal(data, &instance); err != nil {
		return fmt.Errorf("decode value: %w", err)
	}
	if err := schema.Validate(instance); err != nil {
		return fmt.Errorf("%s invalid: %w", schemaName, err)
	}
	return nil
}
