package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"autobot/internal/domain"
)

// JSONCodec handles the JSON credential document:
//
//	{"core": {"username": "netops", "password": "..."}}
type JSONCodec struct{}

// NewJSONCodec creates a new JSON codec
func NewJSONCodec() *JSONCodec {
	return &JSONCodec{}
}

// Format returns the codec format identifier
func (c *JSONCodec) Format() string {
	return "json"
}

// Decode reads a credential document. An empty input is an empty document.
func (c *JSONCodec) Decode(r io.Reader) (map[string]domain.CredentialGroup, error) {
	var doc map[string]entry
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return map[string]domain.CredentialGroup{}, nil
		}
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	return fromEntries(doc), nil
}

// Encode writes a credential document
func (c *JSONCodec) Encode(groups map[string]domain.CredentialGroup, w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "    ")

	if err := encoder.Encode(toEntries(groups)); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}
