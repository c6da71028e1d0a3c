package codec

import (
	"bytes"
	"strings"
	"testing"

	"autobot/internal/domain"
)

func TestForPath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"credentials.json", "json"},
		{"/etc/autobot/credentials.yaml", "yaml"},
		{"creds.YML", "yaml"},
		{"credentials", "json"},
	}

	for _, tt := range tests {
		if got := ForPath(tt.path).Format(); got != tt.want {
			t.Errorf("ForPath(%q) = %s, want %s", tt.path, got, tt.want)
		}
	}
}

func TestCodecsRoundTrip(t *testing.T) {
	groups := map[string]domain.CredentialGroup{
		"core": {Name: "core", Username: "netops", Password: "s3cret"},
		"jump": {Name: "jump", Username: "scanner", Password: "p@ss:word"},
	}

	for _, c := range []CredentialCodec{NewJSONCodec(), NewYAMLCodec()} {
		t.Run(c.Format(), func(t *testing.T) {
			var buf bytes.Buffer
			if err := c.Encode(groups, &buf); err != nil {
				t.Fatalf("Encode() error: %v", err)
			}
			if strings.Contains(buf.String(), `"name"`) || strings.Contains(buf.String(), " name:") {
				t.Errorf("document should be keyed by name, got:\n%s", buf.String())
			}

			got, err := c.Decode(&buf)
			if err != nil {
				t.Fatalf("Decode() error: %v", err)
			}
			if len(got) != 2 {
				t.Fatalf("expected 2 groups, got %d", len(got))
			}
			if got["jump"].Name != "jump" || got["jump"].Password != "p@ss:word" {
				t.Errorf("unexpected group %+v", got["jump"])
			}
		})
	}
}

func TestDecodeEmptyDocument(t *testing.T) {
	for _, c := range []CredentialCodec{NewJSONCodec(), NewYAMLCodec()} {
		t.Run(c.Format(), func(t *testing.T) {
			got, err := c.Decode(strings.NewReader(""))
			if err != nil {
				t.Fatalf("Decode() error: %v", err)
			}
			if len(got) != 0 {
				t.Errorf("expected empty document, got %v", got)
			}
		})
	}
}

func TestJSONDecodeOriginalFormat(t *testing.T) {
	input := `{
    "lab": {
        "username": "admin",
        "password": "juniper123"
    }
}`
	got, err := NewJSONCodec().Decode(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if g := got["lab"]; g.Username != "admin" || g.Password != "juniper123" || g.Name != "lab" {
		t.Errorf("unexpected group %+v", g)
	}
}

func TestDecodeMalformed(t *testing.T) {
	if _, err := NewJSONCodec().Decode(strings.NewReader("{not json")); err == nil {
		t.Error("expected JSON error")
	}
	if _, err := NewYAMLCodec().Decode(strings.NewReader("- a\n- b\n")); err == nil {
		t.Error("expected YAML error for a list document")
	}
}
