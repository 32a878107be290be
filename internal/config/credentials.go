package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
)

// ErrIncompleteCredentials is returned when provisioning could not supply
// a bot token and primary identity.
var ErrIncompleteCredentials = errors.New("incomplete credentials")

// Credentials is the persisted credential document.
type Credentials struct {
	BotToken  string `json:"bot_token" env:"BOT_TOKEN"`
	Primary   string `json:"chat_id1" env:"CHAT_ID1"`
	Secondary string `json:"chat_id2" env:"CHAT_ID2"`
}

// Complete reports whether the controller can run with these credentials.
func (c Credentials) Complete() bool {
	return c.BotToken != "" && c.Primary != ""
}

// CredentialStore loads and saves the credential document.
type CredentialStore interface {
	Load() (Credentials, error)
	Save(Credentials) error
}

// FileStore keeps credentials in a JSON file.
type FileStore struct {
	Path string
}

// NewFileStore creates a store backed by path.
func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

// Load reads the credential file.
func (s *FileStore) Load() (Credentials, error) {
	var creds Credentials
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return creds, err
	}
	if err := json.Unmarshal(data, &creds); err != nil {
		return Credentials{}, fmt.Errorf("failed to parse %s: %w", s.Path, err)
	}
	return creds, nil
}

// Save writes the credential file with owner-only permissions.
func (s *FileStore) Save(creds Credentials) error {
	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}
	if dir := filepath.Dir(s.Path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("failed to create credential directory: %w", err)
		}
	}
	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write credentials: %w", err)
	}
	return os.Rename(tmp, s.Path)
}

// Provision loads credentials from store. When the store is unreadable or
// lacks values, the missing fields are taken from LORABRIDGE_BOT_TOKEN,
// LORABRIDGE_CHAT_ID1 and LORABRIDGE_CHAT_ID2 and the result is saved once.
// The returned bool reports whether a save happened.
func Provision(store CredentialStore) (Credentials, bool, error) {
	stored, err := store.Load()
	if err == nil && stored.Complete() {
		return stored, false, nil
	}
	if err != nil {
		stored = Credentials{}
	}

	var fromEnv Credentials
	if err := env.ParseWithOptions(&fromEnv, env.Options{Prefix: EnvPrefix}); err != nil {
		return Credentials{}, false, fmt.Errorf("failed to read credentials from environment: %w", err)
	}

	merged := stored
	if merged.BotToken == "" {
		merged.BotToken = fromEnv.BotToken
	}
	if merged.Primary == "" {
		merged.Primary = fromEnv.Primary
	}
	if merged.Secondary == "" {
		merged.Secondary = fromEnv.Secondary
	}

	if !merged.Complete() {
		return merged, false, ErrIncompleteCredentials
	}

	if err := store.Save(merged); err != nil {
		return merged, false, fmt.Errorf("failed to save credentials: %w", err)
	}
	return merged, true, nil
}
