package kbstore

import "errors"

// Errors surfaced by the kb client.
var (
	// ErrNotAuthenticated is returned when no user is signed in.
	ErrNotAuthenticated = errors.New("no signed-in user")
	// ErrVersionConflict is returned when a save lost the version race and
	// the single merge retry lost it again.
	ErrVersionConflict = errors.New("kb version conflict")
	// ErrSectionUnreadable is returned when a stored section exists but
	// cannot be decrypted or decoded. The stored row is left untouched.
	ErrSectionUnreadable = errors.New("kb section unreadable")
)

// Errors returned by the row store.
var (
	// ErrRowNotFound is returned when the user has no kb row yet.
	ErrRowNotFound = errors.New("kb row not found")
	// ErrRowExists is returned when inserting a row for a user who already
	// has one.
	ErrRowExists = errors.New("kb row already exists")
	// ErrVersionMismatch is returned when a conditional update found a
	// different stored version.
	ErrVersionMismatch = errors.New("kb row version mismatch")
)
