// internal/model/campaign.go
package model

import "time"

// Campaign lifecycle statuses.
const (
	CampaignDraft     = "draft"
	CampaignReady     = "ready"
	CampaignScheduled = "scheduled"
	CampaignSending   = "sending"
	CampaignSent      = "sent"
	CampaignFailed    = "failed"
	CampaignCancelled = "cancelled"
)

// Audience types a campaign can target.
const (
	AudienceProfileSubscribers = "profile_subscribers"
	AudienceSiteSubscribers    = "site_subscribers"
	AudienceAllCreators        = "all_creators"
	AudienceIncompleteCreators = "incomplete_creators"
)

type Campaign struct {
	ID           int        `db:"id" json:"id"`
	ProfileID    *int       `db:"profile_id" json:"profile_id,omitempty"` // nil = platform campaign
	Name         string     `db:"name" json:"name"`
	Subject      string     `db:"subject" json:"subject"`
	Preheader    string     `db:"preheader" json:"preheader,omitempty"`
	HTMLBody     string     `db:"html_body" json:"html_body"`
	TextBody     string     `db:"text_body" json:"text_body"`
	AudienceType string     `db:"audience_type" json:"audience_type"`
	AudienceTags string     `db:"audience_tags" json:"audience_tags,omitempty"` // comma separated
	FromName     string     `db:"from_name" json:"from_name"`
	ReplyTo      string     `db:"reply_to" json:"reply_to,omitempty"`
	Status       string     `db:"status" json:"status"`
	ScheduledAt  *time.Time `db:"scheduled_at" json:"scheduled_at,omitempty"`

	RecipientCount int `db:"recipient_count" json:"recipient_count"`
	SentCount      int `db:"sent_count" json:"sent_count"`
	FailedCount    int `db:"failed_count" json:"failed_count"`
	DeliveredCount int `db:"delivered_count" json:"delivered_count"`
	BouncedCount   int `db:"bounced_count" json:"bounced_count"`
	OpenedCount    int `db:"opened_count" json:"opened_count"`
	ClickedCount   int `db:"clicked_count" json:"clicked_count"`

	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}

// Mutable reports whether campaign content and schedule may still change.
func (c *Campaign) Mutable() bool {
	return c.Status == CampaignDraft || c.Status == CampaignReady
}

// Terminal reports whether the campaign reached a final state.
func (c *Campaign) Terminal() bool {
	return c.Status == CampaignSent || c.Status == CampaignFailed || c.Status == CampaignCancelled
}

// ValidAudienceType reports whether t names a known audience.
func ValidAudienceType(t string) bool {
	switch t {
	case AudienceProfileSubscribers, AudienceSiteSubscribers, AudienceAllCreators, AudienceIncompleteCreators:
		return true
	}
	return false
}
