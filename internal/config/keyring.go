package config

import (
	"errors"

	"github.com/zalando/go-keyring"
)

// keyringService is the service name under which secrets are stored in
// the OS keyring.
const keyringService = "parley"

// SecretFromKeyring fetches the API key for a provider from the OS
// keyring. Returns empty with no error when the entry does not exist.
func SecretFromKeyring(provider string) (string, error) {
	key, err := keyring.Get(keyringService, provider)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	return key, nil
}

// StoreSecret writes the API key for a provider to the OS keyring.
func StoreSecret(provider, key string) error {
	return keyring.Set(keyringService, provider, key)
}

// DeleteSecret removes the API key for a provider from the OS keyring.
func DeleteSecret(provider string) error {
	err := keyring.Delete(keyringService, provider)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}
