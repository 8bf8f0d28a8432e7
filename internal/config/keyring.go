package config

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const (
	keyringService = "resume-optimizer"
	keyringUser    = "state-sealing-key"
)

// LoadOrCreateSealer returns a Sealer keyed from the OS keyring, creating and
// storing a new key on first use. The CLI uses it to protect its local state file.
func LoadOrCreateSealer() (*Sealer, error) {
	key, err := keyring.Get(keyringService, keyringUser)
	if errors.Is(err, keyring.ErrNotFound) {
		key, err = GenerateSealingKey()
		if err != nil {
			return nil, err
		}
		if err := keyring.Set(keyringService, keyringUser, key); err != nil {
			return nil, fmt.Errorf("failed to store sealing key in keyring: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to read sealing key from keyring: %w", err)
	}
	return NewSealer(key)
}

// ForgetSealer removes the stored key. Local state sealed under it becomes unreadable.
func ForgetSealer() error {
	err := keyring.Delete(keyringService, keyringUser)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete sealing key: %w", err)
	}
	return nil
}
