// Package credentials persists the connection saved by "sapadt login".
package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"pkt.systems/sapadt/internal/pathutil"
)

// FileName is the credential file inside the sapadt config directory.
const FileName = "credentials.json"

// Saved is the persisted connection.
type Saved struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	HTTPS    bool   `json:"use_https"`
	Insecure bool   `json:"insecure,omitempty"`
	Client   string `json:"client"`
	User     string `json:"user"`
	Password string `json:"password"`
}

// DefaultPath returns the credential file inside the sapadt config
// directory.
func DefaultPath() (string, error) {
	return pathutil.ConfigFile(FileName)
}

// Load reads the credential file. A missing file returns (nil, nil).
func Load(path string) (*Saved, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	var s Saved
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode credentials %s: %w", path, err)
	}
	if s.Port == 0 {
		s.Port = 50000
	}
	return &s, nil
}

// Save writes the credential file with 0600 permissions, replacing any
// previous file atomically.
func Save(path string, s Saved) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}
	if err := pathutil.WriteFileAtomic(path, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	return nil
}

// Remove deletes the credential file. It reports whether a file existed.
func Remove(path string) (bool, error) {
	err := os.Remove(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("remove credentials: %w", err)
	}
	return true, nil
}
