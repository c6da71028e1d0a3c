package domain

// CredentialGroup is a named username/password pair that deployment
// requests and the remote sweep intermediary can refer to by name
type CredentialGroup struct {
	Name     string `json:"name" yaml:"-"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
}

// CredentialSummary is a safe view of a credential group (no password)
type CredentialSummary struct {
	Name     string `json:"name"`
	Username string `json:"username"`
}

// ToSummary converts a credential group to its safe summary view
func (g CredentialGroup) ToSummary() CredentialSummary {
	return CredentialSummary{Name: g.Name, Username: g.Username}
}

// Usable reports whether both halves of the pair are present
func (g CredentialGroup) Usable() bool {
	return g.Username != "" && g.Password != ""
}
