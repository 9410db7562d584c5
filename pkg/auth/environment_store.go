package auth

import (
	"os"
	"time"
)

const (
	EnvSessionID  = "FANTIADL_SESSION_ID"
	EnvUserAgent  = "FANTIADL_USER_AGENT"
	EnvPassphrase = "FANTIADL_PASSPHRASE"

	// EnvAccountName is the name reported for the environment session
	EnvAccountName = "env"
)

// EnvironmentStore reads a single read-only session from the environment
type EnvironmentStore struct{}

// NewEnvironmentStore creates an environment store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

func (e *EnvironmentStore) Store(*Account) error { return ErrStoreUnavailable }

func (e *EnvironmentStore) Delete(string) error { return ErrStoreUnavailable }

// Retrieve returns the environment session for "" or EnvAccountName
func (e *EnvironmentStore) Retrieve(name string) (*Account, error) {
	sessionID := os.Getenv(EnvSessionID)
	if sessionID == "" || (name != "" && name != EnvAccountName) {
		return nil, ErrCredentialsNotFound
	}
	return &Account{
		Name:         EnvAccountName,
		SessionID:    sessionID,
		UserAgent:    os.Getenv(EnvUserAgent),
		LastModified: time.Now(),
	}, nil
}

func (e *EnvironmentStore) List() ([]*Account, error) {
	account, err := e.Retrieve("")
	if err != nil {
		return nil, nil
	}
	return []*Account{account}, nil
}
