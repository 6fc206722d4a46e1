// internal/model/campaign_recipient.go
package model

import "time"

// Ledger row delivery statuses. Opens and clicks are recorded as
// timestamps on the row, not as statuses.
const (
	DeliveryPending   = "pending"
	DeliverySent      = "sent"
	DeliveryDelivered = "delivered"
	DeliveryBounced   = "bounced"
	DeliveryFailed    = "failed"
)

// CampaignRecipient is one per-(campaign, recipient) delivery-tracking
// record, created in bulk when a send begins. The pair is unique at the
// storage layer.
type CampaignRecipient struct {
	ID                int    `db:"id" json:"id"`
	CampaignID        int    `db:"campaign_id" json:"campaign_id"`
	RecipientID       int    `db:"recipient_id" json:"recipient_id"`
	Status            string `db:"status" json:"status"`
	ProviderMessageID string `db:"provider_message_id" json:"provider_message_id,omitempty"`
	ErrorMessage      string `db:"error_message" json:"error_message,omitempty"`

	SentAt      *time.Time `db:"sent_at" json:"sent_at,omitempty"`
	FailedAt    *time.Time `db:"failed_at" json:"failed_at,omitempty"`
	DeliveredAt *time.Time `db:"delivered_at" json:"delivered_at,omitempty"`
	BouncedAt   *time.Time `db:"bounced_at" json:"bounced_at,omitempty"`
	OpenedAt    *time.Time `db:"opened_at" json:"opened_at,omitempty"`
	ClickedAt   *time.Time `db:"clicked_at" json:"clicked_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}
