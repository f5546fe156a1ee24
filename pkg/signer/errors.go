package signer

import "errors"

var (
	// ErrMissingAPIKey is returned when creating an identity signer without key.
	ErrMissingAPIKey = errors.New("api key must not be empty")
	// ErrNullKey is returned when creating a key signer with a nil key.
	ErrNullKey = errors.New("private key must not be null")
	// ErrInvalidMnemonic is returned if the mnemonic fails BIP-39 validation.
	ErrInvalidMnemonic = errors.New("mnemonic is invalid")
	// ErrInvalidDerivationPath is returned if the path is not in the form
	// m/44'/60'/0'/0/0.
	ErrInvalidDerivationPath = errors.New("derivation path is invalid")
	// ErrInvalidHash is returned when co-signing a malformed hex hash.
	ErrInvalidHash = errors.New("hash must be a 32 bytes hex string")
)
