// internal/analyst/vocabulary.go
package analyst

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/signalnine/ipaugur/internal/protocol"
)

// Vocabulary checks a parsed finding against the values the prompt asks for.
// Findings outside it are still reported; the check only flags them.
type Vocabulary struct {
	schema *jsonschema.Schema
}

// NewVocabulary compiles the finding schema from the protocol enums
func NewVocabulary() (*Vocabulary, error) {
	schemaDoc := map[string]any{
		"$schema":  "https://json-schema.org/draft/2020-12/schema",
		"type":     "object",
		"required": []string{"ip_address", "probable_attack_type", "confidence_level", "recommended_action"},
		"properties": map[string]any{
			"ip_address":           map[string]any{"type": "string", "minLength": 1},
			"probable_attack_type": map[string]any{"enum": protocol.AttackTypes},
			"confidence_level":     map[string]any{"enum": protocol.ConfidenceLevels},
			"recommended_action":   map[string]any{"type": "string", "minLength": 1},
		},
	}
	raw, err := json.Marshal(schemaDoc)
	if err != nil {
		return nil, err
	}

	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource("finding.json", strings.NewReader(string(raw))); err != nil {
		return nil, fmt.Errorf("failed to add schema resource: %w", err)
	}
	schema, err := compiler.Compile("finding.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}
	return &Vocabulary{schema: schema}, nil
}

// Check validates the raw JSON reply text
func (v *Vocabulary) Check(reply string) error {
	var doc any
	if err := json.Unmarshal([]byte(reply), &doc); err != nil {
		return err
	}
	return v.schema.Validate(doc)
}
