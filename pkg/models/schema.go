package models

import "encoding/json"

// SchemaDefinition describes a target collection: its validator and
// the indexes created alongside it. It is only applied when the
// collection does not exist yet.
type SchemaDefinition struct {
	Stream    Stream            `json:"stream"`
	Validator json.RawMessage   `json:"validator,omitempty"`
	Indexes   []IndexDefinition `json:"indexes"`
}

type IndexDefinition struct {
	Name            string         `json:"name"`
	Keys            []IndexKey     `json:"keys"`
	Weights         map[string]int `json:"weights,omitempty"`
	DefaultLanguage string         `json:"defaultLanguage,omitempty"`
	Unique          bool           `json:"unique,omitempty"`
}

// IndexKey is a field with its index kind: "asc", "desc" or "text".
type IndexKey struct {
	Field string `json:"field"`
	Kind  string `json:"kind"`
}

func LoadSchema(data []byte) (*SchemaDefinition, error) {
	var s SchemaDefinition
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}
