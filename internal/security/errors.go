package security

import "errors"

// Cipher errors.
var (
	// ErrDecryptFailed covers a malformed blob, a wrong key, and a
	// tampered ciphertext alike; callers cannot tell which.
	ErrDecryptFailed = errors.New("security: decrypt failed")

	// ErrUnwrapFailed reports a key unwrap that did not authenticate,
	// which is how a wrong passphrase presents.
	ErrUnwrapFailed = errors.New("security: unwrap key failed")

	// ErrInvalidKey reports a key that is not base64 or not 256 bits.
	ErrInvalidKey = errors.New("security: invalid key")
)

// Vault errors.
var (
	// ErrSecureStoreUnavailable means the OS secure store cannot be
	// reached. The vault degrades to a file-resident key and surfaces
	// this as a warning, not a failure.
	ErrSecureStoreUnavailable = errors.New("security: secure store unavailable")

	// ErrNoKey reports an operation that needs a stored key when none
	// exists.
	ErrNoKey = errors.New("security: no key in vault")
)
