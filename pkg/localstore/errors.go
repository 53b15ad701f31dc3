package localstore

import "errors"

var (
	// ErrInvalidEncryptionKey is returned when an encryption key of the wrong size is supplied.
	ErrInvalidEncryptionKey = errors.New("localstore: encryption key must be 32 bytes")

	// ErrDecryptionFailed is returned when a stored ciphertext cannot be opened.
	ErrDecryptionFailed = errors.New("localstore: failed to decrypt stored value")

	// ErrCorruptValue is returned when a stored value cannot be decoded.
	ErrCorruptValue = errors.New("localstore: stored value is corrupt")
)
