package model

import "errors"

var (
	// User related errors
	ErrUserNotFound       = errors.New("user not found")
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrResetTokenNotFound = errors.New("reset token not found or expired")

	// Chat related errors
	ErrChatNotFound = errors.New("chat not found")
	ErrFileNotFound = errors.New("file not found")

	// Access errors
	ErrUnauthorized = errors.New("unauthorized")

	// Backing store could not be reached.
	ErrStoreUnavailable = errors.New("store unavailable")

	ErrInvalidInput = errors.New("invalid input")
)
