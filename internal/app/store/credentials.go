/*
Package store implements the server's flat-file persistence: the credential
store, the ban store, and the append-only chat event log.

This file defines the CredentialStore, a username-to-password map backed by
a JSON file. Passwords are stored in plaintext to match the reference
deployment; this is documented as insecure and flagged for hardening.
*/
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"dischat/internal/pkg/logx"
)

// CredentialsFile is the default credential file name inside the data dir.
const CredentialsFile = "users.json"

// CredentialStore persists username-to-password records across restarts.
// Records are created on registration and never deleted by normal
// operation. All methods are safe for concurrent use.
type CredentialStore struct {
	mu    sync.RWMutex
	path  string
	users map[string]string
}

// OpenCredentialStore loads the credential file at path, creating an empty
// one if it does not exist.
func OpenCredentialStore(path string) (*CredentialStore, error) {
	cs := &CredentialStore{
		path:  path,
		users: make(map[string]string),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if err := cs.persistLocked(); err != nil {
				return nil, fmt.Errorf("initialize credential file: %w", err)
			}
			return cs, nil
		}
		return nil, fmt.Errorf("read credential file: %w", err)
	}

	if err := json.Unmarshal(data, &cs.users); err != nil {
		return nil, fmt.Errorf("parse credential file %s: %w", path, err)
	}

	logx.Info("Credential store loaded", "path", path, "accounts", len(cs.users))
	return cs, nil
}

// Create registers a new account and persists it immediately. It reports
// false, without touching the file, when the username is already taken.
func (cs *CredentialStore) Create(username, password string) (bool, error) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if _, exists := cs.users[username]; exists {
		return false, nil
	}

	cs.users[username] = password
	if err := cs.persistLocked(); err != nil {
		delete(cs.users, username)
		return false, err
	}

	return true, nil
}

// Authenticate reports whether the username exists with a matching
// password. Comparison is case-sensitive.
func (cs *CredentialStore) Authenticate(username, password string) bool {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	stored, exists := cs.users[username]
	return exists && stored == password
}

// Exists reports whether the username has a credential record.
func (cs *CredentialStore) Exists(username string) bool {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	_, exists := cs.users[username]
	return exists
}

// Count returns the number of registered accounts.
func (cs *CredentialStore) Count() int {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	return len(cs.users)
}

// persistLocked writes the map atomically: marshal to a temp file in the
// same directory, then rename over the target. Caller holds the write lock.
func (cs *CredentialStore) persistLocked() error {
	data, err := json.MarshalIndent(cs.users, "", "  ")
	if err != nil {
		return err
	}

	return atomicWrite(cs.path, data)
}

// atomicWrite replaces path with data via a temp file and rename, so a
// crash mid-write never leaves a truncated file.
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}

	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmpPath, path)
}
