package auth

import "errors"

var (
	ErrEmailPasswordRequired = errors.New("Email and password are required")
	ErrInvalidEmailFormat    = errors.New("Invalid email format")
	ErrInvalidPassword       = errors.New("Password must be at least 8 characters and contain a letter and a number")
	ErrInvalidName           = errors.New("First and last name are required and may only contain letters, spaces, hyphens and apostrophes")
	ErrEmailTaken            = errors.New("Email already registered")
	ErrInvalidEmail          = errors.New("Invalid Email")
	ErrIncorrectPassword     = errors.New("Incorrect Password")
	ErrNotAuthenticated      = errors.New("Not authenticated")
	ErrInvalidTicket         = errors.New("Invalid realtime ticket")
)
