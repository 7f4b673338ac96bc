package auth

import (
	"os"
	"time"
)

// EnvironmentStore reads the session from BILILOT_* environment variables.
// It is read-only.
type EnvironmentStore struct{}

// NewEnvironmentStore creates an environment-backed store.
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Save is not supported for environment variables.
func (e *EnvironmentStore) Save(session *Session) error {
	return ErrStoreUnavailable
}

// Load builds a session from the environment.
func (e *EnvironmentStore) Load() (*Session, error) {
	sessData := os.Getenv("BILILOT_SESSDATA")
	if sessData == "" {
		return nil, ErrCredentialsNotFound
	}
	return &Session{
		SessData:     sessData,
		BiliJct:      os.Getenv("BILILOT_BILI_JCT"),
		Buvid3:       os.Getenv("BILILOT_BUVID3"),
		LastModified: time.Now(),
	}, nil
}

// Delete is not supported for environment variables.
func (e *EnvironmentStore) Delete() error {
	return ErrStoreUnavailable
}
