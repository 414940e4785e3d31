package store

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailTaken         = errors.New("email already registered")
	ErrUserNotFound       = errors.New("user not found")
	ErrLeadNotFound       = errors.New("lead not found")
	ErrVisitNotFound      = errors.New("visit not found")
)
