// internal/errors/errors.go
package appErrors

import (
	"errors"
	"fmt"
)

// ErrCampaignNotFound is a sentinel error
type ErrCampaignNotFound struct {
	CampaignID int
}

func (e *ErrCampaignNotFound) Error() string {
	return fmt.Sprintf("campaign with ID %d not found", e.CampaignID)
}

// Helper constructor
func NewCampaignNotFound(id int) error {
	return &ErrCampaignNotFound{CampaignID: id}
}

// ErrInvalidTransition reports an attempt to move a campaign between
// states the lifecycle does not allow.
type ErrInvalidTransition struct {
	CampaignID int
	From       string
	To         string
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("campaign %d cannot move from %q to %q", e.CampaignID, e.From, e.To)
}

func NewInvalidTransition(id int, from, to string) error {
	return &ErrInvalidTransition{CampaignID: id, From: from, To: to}
}

// ValidationError marks rejected client input.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

func NewValidation(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// ErrEmptyAudience is returned when a send resolves zero eligible
// recipients. Per the delivery contract this is a hard failure, not a
// silent no-op.
var ErrEmptyAudience = errors.New("audience resolved to zero eligible recipients")

// ErrInvalidToken is returned for unsubscribe lookups with an unknown
// or expired token.
var ErrInvalidToken = errors.New("invalid or expired unsubscribe token")

// ErrCampaignImmutable is returned when mutating a campaign that has
// entered or passed the sending state.
var ErrCampaignImmutable = errors.New("campaign is no longer editable")

// ErrProfileNotFound mirrors ErrCampaignNotFound for profiles.
type ErrProfileNotFound struct {
	ProfileID int
}

func (e *ErrProfileNotFound) Error() string {
	return fmt.Sprintf("profile with ID %d not found", e.ProfileID)
}

func NewProfileNotFound(id int) error {
	return &ErrProfileNotFound{ProfileID: id}
}
