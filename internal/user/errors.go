package user

import "errors"

var (
	ErrNotFound           = errors.New("user not found")
	ErrEmailExists        = errors.New("email already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidSession     = errors.New("invalid session")
	ErrPasswordTooLong    = errors.New("password too long")
)

// ErrPhoneNotSaved marks a registration that was rolled back because one of
// its phones could not be stored.
var ErrPhoneNotSaved = errors.New("phone could not be saved")
