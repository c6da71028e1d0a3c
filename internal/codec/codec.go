package codec

import (
	"io"
	"path/filepath"
	"strings"

	"autobot/internal/domain"
)

// CredentialCodec reads and writes the credential group document
type CredentialCodec interface {
	Decode(r io.Reader) (map[string]domain.CredentialGroup, error)
	Encode(groups map[string]domain.CredentialGroup, w io.Writer) error
	Format() string
}

// ForPath picks the codec from the file extension: .yaml/.yml is YAML,
// anything else JSON
func ForPath(path string) CredentialCodec {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return NewYAMLCodec()
	default:
		return NewJSONCodec()
	}
}

// entry is the on-disk shape of one group. The name is the document key.
type entry struct {
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
}

func toEntries(groups map[string]domain.CredentialGroup) map[string]entry {
	doc := make(map[string]entry, len(groups))
	for name, g := range groups {
		doc[name] = entry{Username: g.Username, Password: g.Password}
	}
	return doc
}

func fromEntries(doc map[string]entry) map[string]domain.CredentialGroup {
	groups := make(map[string]domain.CredentialGroup, len(doc))
	for name, e := range doc {
		groups[name] = domain.CredentialGroup{Name: name, Username: e.Username, Password: e.Password}
	}
	return groups
}
