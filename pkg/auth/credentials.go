// Package auth resolves bilibili session cookies from the places a user may
// have put them: the system keychain or the process environment. There is no
// login flow; the cookies come from an authenticated browser session.
package auth

import (
	"errors"
	"time"
)

var (
	// ErrCredentialsNotFound means no store holds a session.
	ErrCredentialsNotFound = errors.New("session credentials not found")
	// ErrInvalidCredentials means a session is missing required fields.
	ErrInvalidCredentials = errors.New("invalid session credentials")
	// ErrStoreUnavailable means the backend cannot perform the operation.
	ErrStoreUnavailable = errors.New("credential store unavailable")
)

// Session holds the cookies bilibili uses to identify a logged-in user.
type Session struct {
	SessData     string    `json:"sessdata"`
	BiliJct      string    `json:"bili_jct"`
	Buvid3       string    `json:"buvid3,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// Valid reports whether the session carries the cookie every API call needs.
func (s *Session) Valid() bool {
	return s != nil && s.SessData != ""
}

// Store is a backend that can hold one session.
type Store interface {
	// Save persists the session. Read-only backends return
	// ErrStoreUnavailable.
	Save(session *Session) error

	// Load returns the stored session, or ErrCredentialsNotFound.
	Load() (*Session, error)

	// Delete removes the stored session.
	Delete() error
}

// Manager tries a list of stores in order.
type Manager struct {
	stores []Store
}

// NewManager builds the default chain: system keychain first, environment
// variables as fallback.
func NewManager() *Manager {
	var stores []Store
	if ks, err := NewKeyringStore(); err == nil {
		stores = append(stores, ks)
	}
	stores = append(stores, NewEnvironmentStore())
	return &Manager{stores: stores}
}

// NewManagerWithStores builds a chain from explicit backends, first match
// wins. Used by tests.
func NewManagerWithStores(stores ...Store) *Manager {
	return &Manager{stores: stores}
}

// Save persists the session to the first store that accepts it.
func (m *Manager) Save(session *Session) error {
	if !session.Valid() {
		return ErrInvalidCredentials
	}
	session.LastModified = time.Now()

	var lastErr error
	for _, store := range m.stores {
		if err := store.Save(session); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}
	if lastErr != nil {
		return lastErr
	}
	return ErrStoreUnavailable
}

// Load returns the session from the first store that has one.
func (m *Manager) Load() (*Session, error) {
	for _, store := range m.stores {
		if session, err := store.Load(); err == nil && session.Valid() {
			return session, nil
		}
	}
	return nil, ErrCredentialsNotFound
}

// Delete removes the session from every store that holds one.
func (m *Manager) Delete() error {
	var lastErr error
	for _, store := range m.stores {
		if err := store.Delete(); err != nil && !errors.Is(err, ErrStoreUnavailable) {
			lastErr = err
		}
	}
	return lastErr
}
