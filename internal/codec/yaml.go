package codec

import (
	"errors"
	"fmt"
	"io"

	"autobot/internal/domain"

	"gopkg.in/yaml.v3"
)

// YAMLCodec handles the YAML credential document:
//
//	core:
//	  username: netops
//	  password: "..."
type YAMLCodec struct{}

// NewYAMLCodec creates a new YAML codec
func NewYAMLCodec() *YAMLCodec {
	return &YAMLCodec{}
}

// Format returns the codec format identifier
func (c *YAMLCodec) Format() string {
	return "yaml"
}

// Decode reads a credential document. An empty input is an empty document.
func (c *YAMLCodec) Decode(r io.Reader) (map[string]domain.CredentialGroup, error) {
	var doc map[string]entry
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return map[string]domain.CredentialGroup{}, nil
		}
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return fromEntries(doc), nil
}

// Encode writes a credential document
func (c *YAMLCodec) Encode(groups map[string]domain.CredentialGroup, w io.Writer) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)

	if err := encoder.Encode(toEntries(groups)); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}
	return encoder.Close()
}
