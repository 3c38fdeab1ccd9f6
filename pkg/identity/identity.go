// Package identity maps connected wallet addresses to application users. A
// first-time address triggers an interactive profile prompt; concurrent
// resolutions for one address are coalesced so at most one prompt and one
// create run at a time.
package identity

import "errors"

// ErrLookupFailed is returned when the user directory cannot be consulted.
var ErrLookupFailed = errors.New("identity lookup failed")

// ErrCreationConflict is returned when a create collided with a concurrent
// registration and the existing record could not be adopted.
var ErrCreationConflict = errors.New("identity creation conflict")

// ErrPromptCancelled is returned when the user dismissed the profile prompt,
// or the prompt timed out. The address stays connected but unauthenticated.
var ErrPromptCancelled = errors.New("profile prompt cancelled")

// ProfileInput is what the interactive prompt collects for a new user.
type ProfileInput struct {
	Name  string `json:"name" validate:"required,min=1,max=255"`
	Email string `json:"email" validate:"required,email"`
}
