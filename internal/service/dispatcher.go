// internal/service/dispatcher.go
package service

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/flmlnk/flmlnk-backend/internal/audience"
	appErrors "github.com/flmlnk/flmlnk-backend/internal/errors"
	"github.com/flmlnk/flmlnk-backend/internal/mail"
	"github.com/flmlnk/flmlnk-backend/internal/metrics"
	"github.com/flmlnk/flmlnk-backend/internal/model"
	"github.com/flmlnk/flmlnk-backend/internal/render"
	"github.com/flmlnk/flmlnk-backend/internal/repository"
)

// Dispatcher executes a campaign send end to end: audience resolution,
// ledger creation, batched delivery, and finalization. Delivery is
// best-effort per recipient: one bad address never aborts the batch or
// the campaign. Sends within a batch run concurrently; batches run one
// after another, so at most BatchSize provider calls are in flight.
type Dispatcher struct {
	CampaignRepo  repository.CampaignRepositoryInterface
	RecipientRepo repository.RecipientRepositoryInterface
	LedgerRepo    repository.LedgerRepositoryInterface
	ProfileRepo   repository.ProfileRepositoryInterface
	Resolver      *audience.Resolver
	Sender        mail.Sender

	BaseURL    string
	FromDomain string
	BatchSize  int
}

// SendResult summarizes one completed campaign send.
type SendResult struct {
	CampaignID     int    `json:"campaign_id"`
	RecipientCount int    `json:"recipient_count"`
	SentCount      int    `json:"sent_count"`
	FailedCount    int    `json:"failed_count"`
	Status         string `json:"status"`
}

// Send runs the whole pipeline for one campaign. A zero-recipient
// audience is a hard failure so operators notice misconfiguration; an
// unexpected error mid-send marks the campaign failed and is returned
// to the caller.
func (d *Dispatcher) Send(ctx context.Context, campaignID int) (*SendResult, error) {
	started := time.Now()

	campaign, err := d.CampaignRepo.GetByID(campaignID)
	if err != nil {
		return nil, err
	}
	switch campaign.Status {
	case model.CampaignDraft, model.CampaignReady, model.CampaignScheduled:
	default:
		return nil, appErrors.NewInvalidTransition(campaignID, campaign.Status, model.CampaignSending)
	}

	// Conditional transition closes the race with a concurrent cancel:
	// if the status changed since we read it, we do not send.
	ok, err := d.CampaignRepo.UpdateStatusFrom(campaignID, campaign.Status, model.CampaignSending)
	if err != nil {
		return nil, err
	}
	if !ok {
		current, err := d.CampaignRepo.GetByID(campaignID)
		if err != nil {
			return nil, err
		}
		return nil, appErrors.NewInvalidTransition(campaignID, current.Status, model.CampaignSending)
	}

	result, err := d.run(ctx, campaign)
	if err != nil {
		if updateErr := d.CampaignRepo.UpdateStatus(campaignID, model.CampaignFailed); updateErr != nil {
			log.Println("⚠️ failed to mark campaign failed:", updateErr)
		}
		metrics.ObserveCampaignSend(model.CampaignFailed, started)
		return nil, err
	}

	metrics.ObserveCampaignSend(model.CampaignSent, started)
	return result, nil
}

func (d *Dispatcher) run(ctx context.Context, campaign *model.Campaign) (*SendResult, error) {
	recipients, err := d.Resolver.Resolve(campaign)
	if err != nil {
		return nil, fmt.Errorf("audience resolution failed: %w", err)
	}
	if len(recipients) == 0 {
		return nil, appErrors.ErrEmptyAudience
	}

	recipientIDs := make([]int, len(recipients))
	for i, r := range recipients {
		recipientIDs[i] = r.ID
	}
	if _, err := d.LedgerRepo.CreatePendingRows(campaign.ID, recipientIDs); err != nil {
		return nil, fmt.Errorf("ledger creation failed: %w", err)
	}

	profileName := ""
	if campaign.ProfileID != nil {
		p, err := d.ProfileRepo.GetByID(*campaign.ProfileID)
		if err != nil {
			return nil, err
		}
		profileName = p.Name
	}

	from := fmt.Sprintf("%s <campaigns@%s>", campaign.FromName, d.FromDomain)

	batchSize := d.BatchSize
	if batchSize <= 0 {
		batchSize = 10
	}

	var mu sync.Mutex
	sentCount, failedCount := 0, 0

	for start := 0; start < len(recipients); start += batchSize {
		end := start + batchSize
		if end > len(recipients) {
			end = len(recipients)
		}

		var wg sync.WaitGroup
		for _, recipient := range recipients[start:end] {
			wg.Add(1)
			go func(rec model.Recipient) {
				defer wg.Done()
				if d.sendOne(ctx, campaign, profileName, from, rec) {
					mu.Lock()
					sentCount++
					mu.Unlock()
				} else {
					mu.Lock()
					failedCount++
					mu.Unlock()
				}
			}(recipient)
		}
		wg.Wait()
	}

	if err := d.CampaignRepo.Finalize(campaign.ID, len(recipients), sentCount, failedCount); err != nil {
		return nil, fmt.Errorf("failed to finalize counts: %w", err)
	}
	if err := d.CampaignRepo.UpdateStatus(campaign.ID, model.CampaignSent); err != nil {
		return nil, err
	}

	log.Printf("✅ campaign %d sent: %d recipients, %d sent, %d failed",
		campaign.ID, len(recipients), sentCount, failedCount)

	return &SendResult{
		CampaignID:     campaign.ID,
		RecipientCount: len(recipients),
		SentCount:      sentCount,
		FailedCount:    failedCount,
		Status:         model.CampaignSent,
	}, nil
}

// sendOne delivers to a single recipient and records the outcome on the
// ledger row. Returns true on a successful provider call.
func (d *Dispatcher) sendOne(ctx context.Context, campaign *model.Campaign, profileName, from string, rec model.Recipient) bool {
	msg := render.Render(campaign.HTMLBody, campaign.TextBody, render.Fields{
		RecipientName:  rec.Name,
		RecipientEmail: rec.Email,
		FromName:       campaign.FromName,
		ProfileName:    profileName,
		UnsubscribeURL: d.BaseURL + "/unsubscribe/" + rec.UnsubscribeToken,
	})

	subject := campaign.Subject
	if campaign.Preheader != "" {
		// Preheader rides in the HTML body; providers pick it up from there.
		msg.HTML = fmt.Sprintf(`<span style="display:none;max-height:0;overflow:hidden">%s</span>`, campaign.Preheader) + msg.HTML
	}

	providerID, err := d.Sender.Send(ctx, &mail.Email{
		From:    from,
		To:      rec.Email,
		ReplyTo: campaign.ReplyTo,
		Subject: subject,
		HTML:    msg.HTML,
		Text:    msg.Text,
		Headers: msg.Headers,
	})
	if err != nil {
		metrics.RecipientSends.WithLabelValues("failed").Inc()
		if updateErr := d.LedgerRepo.UpdateStatus(campaign.ID, rec.ID, model.DeliveryFailed, "", err.Error()); updateErr != nil {
			log.Println("⚠️ failed to record delivery failure:", updateErr)
		}
		return false
	}

	metrics.RecipientSends.WithLabelValues("sent").Inc()
	if err := d.LedgerRepo.UpdateStatus(campaign.ID, rec.ID, model.DeliverySent, providerID, ""); err != nil {
		log.Println("⚠️ failed to record delivery:", err)
	}
	if err := d.RecipientRepo.IncrementSent(rec.ID); err != nil {
		log.Println("⚠️ failed to bump recipient sent counter:", err)
	}
	return true
}
