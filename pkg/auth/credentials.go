package auth

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"
)

// Session is a remembered login for one marketplace site
type Session struct {
	Site         string    `json:"site"`
	Username     string    `json:"username,omitempty"`
	Token        string    `json:"token"`
	LastModified time.Time `json:"last_modified"`
}

// SessionStore is the interface for storing and retrieving sessions
type SessionStore interface {
	// Store saves the session for its site
	Store(session *Session) error

	// Retrieve gets the session for a site
	Retrieve(site string) (*Session, error)

	// List returns all stored sessions
	List() ([]*Session, error)

	// Delete removes the session for a site
	Delete(site string) error

	// Exists checks if a session exists for a site
	Exists(site string) bool
}

// Manager handles session storage with fallback mechanisms
type Manager struct {
	stores []SessionStore
}

// NewManager creates a session manager backed by the system keychain when
// available and an encrypted file otherwise.
func NewManager() (*Manager, error) {
	var stores []SessionStore

	if keyringStore, err := NewKeyringStore(); err == nil {
		stores = append(stores, keyringStore)
	}

	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}

	encryptedStore, err := NewEncryptedFileStore(filepath.Join(configDir, "sessions.enc"))
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	stores = append(stores, encryptedStore)

	return &Manager{stores: stores}, nil
}

// NewManagerWithStores creates a Manager over the given stores, tried in order
func NewManagerWithStores(stores ...SessionStore) *Manager {
	return &Manager{stores: stores}
}

// SiteKey derives the storage key for a site from its base URL
func SiteKey(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		return strings.ToLower(baseURL)
	}
	return strings.ToLower(u.Host)
}

// Store saves the session using the first store that accepts it
func (m *Manager) Store(session *Session) error {
	if session == nil || session.Site == "" {
		return errors.New("site is required")
	}
	if session.Token == "" {
		return errors.New("session token is required")
	}

	session.LastModified = time.Now()

	var lastErr error
	for _, store := range m.stores {
		err := store.Store(session)
		if err == nil {
			return nil
		}
		lastErr = err
	}

	if lastErr != nil {
		return fmt.Errorf("failed to store session: %w", lastErr)
	}
	return ErrStoreUnavailable
}

// Retrieve gets the session from the first store that has it
func (m *Manager) Retrieve(site string) (*Session, error) {
	for _, store := range m.stores {
		if session, err := store.Retrieve(site); err == nil && session != nil {
			return session, nil
		}
	}
	return nil, fmt.Errorf("%w for site: %s", ErrSessionNotFound, site)
}

// List returns all stored sessions ordered by site. When several stores
// hold the same site the most recently modified copy wins.
func (m *Manager) List() ([]*Session, error) {
	bySite := make(map[string]*Session)

	for _, store := range m.stores {
		sessions, err := store.List()
		if err != nil {
			continue
		}
		for _, session := range sessions {
			if existing, ok := bySite[session.Site]; !ok || session.LastModified.After(existing.LastModified) {
				bySite[session.Site] = session
			}
		}
	}

	result := make([]*Session, 0, len(bySite))
	for _, session := range bySite {
		result = append(result, session)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Site < result[j].Site })

	return result, nil
}

// Delete removes the session from all stores
func (m *Manager) Delete(site string) error {
	var deleted bool
	var lastErr error

	for _, store := range m.stores {
		if err := store.Delete(site); err == nil {
			deleted = true
		} else if !errors.Is(err, ErrSessionNotFound) {
			lastErr = err
		}
	}

	if deleted {
		return nil
	}
	if lastErr != nil {
		return fmt.Errorf("failed to delete session: %w", lastErr)
	}
	return fmt.Errorf("%w for site: %s", ErrSessionNotFound, site)
}

// getConfigDir returns the configuration directory path
func getConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "dwarchive")
	case "windows":
		configDir = filepath.Join(os.Getenv("APPDATA"), "dwarchive")
	default:
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			configDir = filepath.Join(xdgConfig, "dwarchive")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config", "dwarchive")
		}
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return configDir, nil
}

// SanitizeSession returns a copy of the session with the token masked
func SanitizeSession(session *Session) *Session {
	if session == nil {
		return nil
	}

	return &Session{
		Site:         session.Site,
		Username:     session.Username,
		Token:        maskString(session.Token),
		LastModified: session.LastModified,
	}
}

// maskString masks all but the first 4 and last 4 characters of a string
func maskString(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

// Errors
var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrInvalidSession   = errors.New("invalid session")
	ErrStoreUnavailable = errors.New("session store unavailable")
)
