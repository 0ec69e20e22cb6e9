package auth

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const (
	keyringService = "dwarchive"
	keyringPrefix  = "session_"
)

// KeyringStore implements SessionStore using the system keychain
type KeyringStore struct{}

// NewKeyringStore creates a keyring-backed store after checking that the
// keychain accepts writes.
func NewKeyringStore() (*KeyringStore, error) {
	testKey := "test_availability"
	if err := keyring.Set(keyringService, testKey, "test"); err != nil {
		return nil, fmt.Errorf("keyring not available: %w", err)
	}
	_ = keyring.Delete(keyringService, testKey)

	return &KeyringStore{}, nil
}

// Store saves the session to the system keychain
func (k *KeyringStore) Store(session *Session) error {
	if session == nil || session.Site == "" {
		return ErrInvalidSession
	}

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := keyring.Set(keyringService, keyringPrefix+session.Site, string(data)); err != nil {
		return fmt.Errorf("failed to store in keyring: %w", err)
	}
	return nil
}

// Retrieve gets the session for a site from the system keychain
func (k *KeyringStore) Retrieve(site string) (*Session, error) {
	if site == "" {
		return nil, ErrInvalidSession
	}

	data, err := keyring.Get(keyringService, keyringPrefix+site)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to retrieve from keyring: %w", err)
	}

	var session Session
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &session, nil
}

// List returns nothing: go-keyring cannot enumerate entries. Sessions
// kept only in the keychain are still found by Retrieve.
func (k *KeyringStore) List() ([]*Session, error) {
	return []*Session{}, nil
}

// Delete removes the session for a site from the system keychain
func (k *KeyringStore) Delete(site string) error {
	if site == "" {
		return ErrInvalidSession
	}

	err := keyring.Delete(keyringService, keyringPrefix+site)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("failed to delete from keyring: %w", err)
	}
	return nil
}

// Exists checks if a session exists in the keychain
func (k *KeyringStore) Exists(site string) bool {
	if site == "" {
		return false
	}
	_, err := keyring.Get(keyringService, keyringPrefix+site)
	return err == nil
}
