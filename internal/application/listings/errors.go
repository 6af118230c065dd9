package listings

import "errors"

var (
	ErrNotAuthenticated = errors.New("Not authenticated")
	ErrListingNotFound  = errors.New("Listing not found")
	ErrNotOwner         = errors.New("Not your listing")
	ErrTitleRequired    = errors.New("Title is required")
	ErrCategoryRequired = errors.New("Category is required")
	ErrInvalidPrice     = errors.New("Invalid price")
	ErrInvalidStatus    = errors.New("Invalid status")
	ErrInvalidSort      = errors.New("Invalid sort field")
	ErrNoValidChanges   = errors.New("No valid changes provided")
)
