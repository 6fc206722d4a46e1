// internal/model/event.go
package model

import (
	"fmt"
	"time"
)

// Analytics event kinds. Each kind fixes which references are required,
// so the event is a tagged variant validated at the boundary rather than
// an untyped metadata blob.
const (
	EventPageView    = "page_view"
	EventSubscribe   = "subscribe"
	EventUnsubscribe = "unsubscribe"
	EventEmailOpen   = "email_open"
	EventEmailClick  = "email_click"
)

type AnalyticsEvent struct {
	ID          int       `db:"id" json:"id"`
	Kind        string    `db:"kind" json:"kind"`
	ProfileID   *int      `db:"profile_id" json:"profile_id,omitempty"`
	CampaignID  *int      `db:"campaign_id" json:"campaign_id,omitempty"`
	RecipientID *int      `db:"recipient_id" json:"recipient_id,omitempty"`
	Visitor     string    `db:"visitor" json:"visitor,omitempty"` // anonymous visitor id for page views
	URL         string    `db:"url" json:"url,omitempty"`         // clicked link for email_click
	OccurredAt  time.Time `db:"occurred_at" json:"occurred_at"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// ValidateEvent checks the kind tag and its required references.
func ValidateEvent(ev *AnalyticsEvent) error {
	switch ev.Kind {
	case EventPageView:
		if ev.ProfileID == nil {
			return fmt.Errorf("page_view requires profile_id")
		}
	case EventSubscribe, EventUnsubscribe:
		if ev.RecipientID == nil {
			return fmt.Errorf("%s requires recipient_id", ev.Kind)
		}
	case EventEmailOpen:
		if ev.CampaignID == nil || ev.RecipientID == nil {
			return fmt.Errorf("email_open requires campaign_id and recipient_id")
		}
	case EventEmailClick:
		if ev.CampaignID == nil || ev.RecipientID == nil {
			return fmt.Errorf("email_click requires campaign_id and recipient_id")
		}
		if ev.URL == "" {
			return fmt.Errorf("email_click requires url")
		}
	default:
		return fmt.Errorf("unknown event kind: %q", ev.Kind)
	}
	return nil
}

// AnalyticsSnapshot is a per-(profile, day) rollup of event counts.
type AnalyticsSnapshot struct {
	ID           int       `db:"id" json:"id"`
	ProfileID    int       `db:"profile_id" json:"profile_id"`
	Day          time.Time `db:"day" json:"day"`
	PageViews    int       `db:"page_views" json:"page_views"`
	Subscribes   int       `db:"subscribes" json:"subscribes"`
	Unsubscribes int       `db:"unsubscribes" json:"unsubscribes"`
	Opens        int       `db:"opens" json:"opens"`
	Clicks       int       `db:"clicks" json:"clicks"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
