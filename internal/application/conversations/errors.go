package conversations

import "errors"

var (
	ErrNotAuthenticated         = errors.New("Not authenticated")
	ErrListingNotFound          = errors.New("Listing not found")
	ErrOwnListing               = errors.New("Cannot message your own listing")
	ErrConversationNotFound     = errors.New("Conversation not found")
	ErrNotParticipant           = errors.New("You are not a participant in this conversation")
	ErrInconsistentParticipants = errors.New("Conversation has the same user as buyer and seller")
	ErrEmptyMessage             = errors.New("Message must contain text or an image")
)
