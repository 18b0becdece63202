// Package credentials persists the HamQTH login and the last session id
// in a small json file only readable by its owner.
package credentials

import (
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/titanous/json5"
)

var ErrInvalidInput = errors.New("username and password must both be set")

type Credentials struct {
	Username string `json:"u"`
	Password string `json:"p"`
	// empty when no session has been established yet
	SessionID string `json:"sid,omitempty"`
}

func (c Credentials) Complete() bool {
	return c.Username != "" && c.Password != ""
}

type Store struct {
	path string
}

func NewStore(path string) Store {
	return Store{path: path}
}

func (s Store) Path() string {
	return s.path
}

// DefaultPath returns "$HOME/.qthlookup-<label>", the label is stripped of
// everything that isn't a letter, digit or space.
func DefaultPath(label string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	clean := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' {
			return r
		}
		return -1
	}, label)
	clean = strings.TrimRight(clean, " ")

	name := ".qthlookup"
	if clean != "" {
		name += "-" + clean
	}
	return filepath.Join(home, name), nil
}

// Load never fails, a missing or unreadable file simply means there are no
// stored credentials.
func (s Store) Load() (Credentials, bool) {
	contents, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		slog.Debug("no stored credentials", "path", s.path)
		return Credentials{}, false
	}
	if err != nil {
		slog.Warn("failed to read stored credentials", "path", s.path, "err", err)
		return Credentials{}, false
	}

	var creds Credentials
	err = json5.Unmarshal(contents, &creds)
	if err != nil {
		slog.Warn("ignoring malformed credentials file", "path", s.path, "err", err)
		return Credentials{}, false
	}
	if !creds.Complete() {
		slog.Warn("ignoring credentials file without username or password", "path", s.path)
		return Credentials{}, false
	}
	return creds, true
}

func (s Store) Save(creds Credentials) error {
	if !creds.Complete() {
		return ErrInvalidInput
	}

	serialized, err := json.Marshal(creds)
	if err != nil {
		return err
	}
	err = os.WriteFile(s.path, serialized, 0600)
	if err != nil {
		return err
	}
	// WriteFile only applies the mode when creating the file
	return os.Chmod(s.path, 0600)
}

func (s Store) Clear() error {
	err := os.Remove(s.path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
