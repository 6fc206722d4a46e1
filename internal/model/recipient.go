// internal/model/recipient.go
package model

import "time"

// Recipient kinds. Fans are captured through the public subscribe form;
// creators get a recipient row when their profile is created so creator
// audiences resolve through the same table.
const (
	RecipientFan     = "fan"
	RecipientCreator = "creator"
)

type Recipient struct {
	ID               int    `db:"id" json:"id"`
	ProfileID        *int   `db:"profile_id" json:"profile_id,omitempty"` // nil = platform scope
	Kind             string `db:"kind" json:"kind"`
	Email            string `db:"email" json:"email"`
	Name             string `db:"name" json:"name"`
	Tags             string `db:"tags" json:"tags,omitempty"` // comma separated
	Unsubscribed     bool   `db:"unsubscribed" json:"unsubscribed"`
	HardBounce       bool   `db:"hard_bounce" json:"hard_bounce"`
	UnsubscribeToken string `db:"unsubscribe_token" json:"-"`

	SentCount  int `db:"sent_count" json:"sent_count"`
	OpenCount  int `db:"open_count" json:"open_count"`
	ClickCount int `db:"click_count" json:"click_count"`

	UnsubscribedAt *time.Time `db:"unsubscribed_at" json:"unsubscribed_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
}

// Sendable reports whether the recipient may appear in a new campaign ledger.
func (r *Recipient) Sendable() bool {
	return !r.Unsubscribed && !r.HardBounce
}
