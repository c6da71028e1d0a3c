// Package file stores the credential group document on the local filesystem.
package file

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"autobot/internal/codec"
	"autobot/internal/domain"
)

// CredentialStore implements repository.CredentialRepository over one file
type CredentialStore struct {
	path  string
	codec codec.CredentialCodec
}

// NewCredentialStore creates a store for path. The format follows the
// file extension (see codec.ForPath). The file need not exist yet.
func NewCredentialStore(path string) *CredentialStore {
	return &CredentialStore{
		path:  path,
		codec: codec.ForPath(path),
	}
}

// Path returns the document location
func (s *CredentialStore) Path() string {
	return s.path
}

// LoadCredentials reads the whole document. A missing file is an empty
// document.
func (s *CredentialStore) LoadCredentials(ctx context.Context) (map[string]domain.CredentialGroup, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]domain.CredentialGroup{}, nil
		}
		return nil, fmt.Errorf("read credentials: %w", err)
	}

	groups, err := s.codec.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode credentials %s: %w", s.path, err)
	}
	return groups, nil
}

// SaveCredentials replaces the document. The new content is written to a
// temporary file in the same directory and renamed over the old one, so
// readers see either the old or the new document, never a partial one.
func (s *CredentialStore) SaveCredentials(ctx context.Context, groups map[string]domain.CredentialGroup) error {
	var buf bytes.Buffer
	if err := s.codec.Encode(groups, &buf); err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create credentials dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace credentials: %w", err)
	}
	return nil
}
