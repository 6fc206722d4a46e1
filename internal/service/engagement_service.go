// internal/service/engagement_service.go
package service

import (
	"fmt"
	"log"

	"github.com/flmlnk/flmlnk-backend/internal/metrics"
	"github.com/flmlnk/flmlnk-backend/internal/model"
	"github.com/flmlnk/flmlnk-backend/internal/repository"
)

// Provider webhook event types.
const (
	WebhookDelivered = "email.delivered"
	WebhookBounced   = "email.bounced"
	WebhookOpened    = "email.opened"
	WebhookClicked   = "email.clicked"
)

// EngagementService applies provider webhook callbacks to the ledger
// and rolls engagement up into campaign and recipient counters.
type EngagementService struct {
	CampaignRepo  repository.CampaignRepositoryInterface
	RecipientRepo repository.RecipientRepositoryInterface
	LedgerRepo    repository.LedgerRepositoryInterface
	EventRepo     repository.EventRepositoryInterface
}

// ProcessEmailEvent routes one webhook callback. Unknown message ids
// are ignored (the provider also carries other traffic); unknown event
// types are an error so new provider events surface in logs.
func (s *EngagementService) ProcessEmailEvent(eventType, providerMessageID, detail, clickedURL string) error {
	metrics.WebhookEvents.WithLabelValues(eventType).Inc()

	row, err := s.LedgerRepo.GetByProviderMessageID(providerMessageID)
	if err != nil {
		return err
	}
	if row == nil {
		log.Println("webhook for unknown message id:", providerMessageID)
		return nil
	}

	switch eventType {
	case WebhookDelivered:
		if err := s.LedgerRepo.MarkDelivered(row.ID); err != nil {
			return err
		}
		return s.CampaignRepo.IncrementCounter(row.CampaignID, "delivered")

	case WebhookBounced:
		if err := s.LedgerRepo.MarkBounced(row.ID, detail); err != nil {
			return err
		}
		// A bounce is permanent: suppress all future sends to the address.
		if err := s.RecipientRepo.SetHardBounce(row.RecipientID); err != nil {
			return err
		}
		return s.CampaignRepo.IncrementCounter(row.CampaignID, "bounced")

	case WebhookOpened:
		firstOpen := row.OpenedAt == nil
		if err := s.LedgerRepo.MarkOpened(row.ID); err != nil {
			return err
		}
		if firstOpen {
			if err := s.CampaignRepo.IncrementCounter(row.CampaignID, "opened"); err != nil {
				return err
			}
		}
		if err := s.RecipientRepo.IncrementOpens(row.RecipientID); err != nil {
			return err
		}
		s.trackEngagement(model.EventEmailOpen, row, "")
		return nil

	case WebhookClicked:
		firstClick := row.ClickedAt == nil
		if err := s.LedgerRepo.MarkClicked(row.ID); err != nil {
			return err
		}
		if firstClick {
			if err := s.CampaignRepo.IncrementCounter(row.CampaignID, "clicked"); err != nil {
				return err
			}
		}
		if err := s.RecipientRepo.IncrementClicks(row.RecipientID); err != nil {
			return err
		}
		s.trackEngagement(model.EventEmailClick, row, clickedURL)
		return nil
	}

	return fmt.Errorf("unknown webhook event type: %q", eventType)
}

func (s *EngagementService) trackEngagement(kind string, row *model.CampaignRecipient, url string) {
	if s.EventRepo == nil {
		return
	}
	var profileID *int
	if campaign, err := s.CampaignRepo.GetByID(row.CampaignID); err == nil {
		profileID = campaign.ProfileID
	}
	ev := &model.AnalyticsEvent{
		Kind:        kind,
		ProfileID:   profileID,
		CampaignID:  &row.CampaignID,
		RecipientID: &row.RecipientID,
		URL:         url,
	}
	if err := s.EventRepo.Insert(ev); err != nil {
		log.Println("⚠️ failed to track engagement event:", err)
	}
}
