// internal/service/campaign_service.go
package service

import (
	"strings"
	"time"

	appErrors "github.com/flmlnk/flmlnk-backend/internal/errors"
	"github.com/flmlnk/flmlnk-backend/internal/model"
	"github.com/flmlnk/flmlnk-backend/internal/render"
	"github.com/flmlnk/flmlnk-backend/internal/repository"
)

// CampaignService owns campaign CRUD and the lifecycle state machine:
// draft -> ready -> scheduled -> sending -> {sent | failed | cancelled}.
// Content is mutable only while draft or ready.
type CampaignService struct {
	CampaignRepo  repository.CampaignRepositoryInterface
	RecipientRepo repository.RecipientRepositoryInterface
	ProfileRepo   repository.ProfileRepositoryInterface
	LedgerRepo    repository.LedgerRepositoryInterface
	BaseURL       string
}

// CampaignInput carries the mutable campaign fields for create/update.
type CampaignInput struct {
	ProfileID    *int    `json:"profile_id"`
	Name         string  `json:"name"`
	Subject      string  `json:"subject"`
	Preheader    string  `json:"preheader"`
	HTMLBody     string  `json:"html_body"`
	TextBody     string  `json:"text_body"`
	AudienceType string  `json:"audience_type"`
	AudienceTags string  `json:"audience_tags"`
	FromName     string  `json:"from_name"`
	ReplyTo      string  `json:"reply_to"`
	ScheduledAt  *string `json:"scheduled_at"` // RFC3339
}

type CampaignDetails struct {
	*model.Campaign
	Stats map[string]int `json:"stats"`
}

func (in *CampaignInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return appErrors.NewValidation("name is required")
	}
	if strings.TrimSpace(in.Subject) == "" {
		return appErrors.NewValidation("subject is required")
	}
	if strings.TrimSpace(in.HTMLBody) == "" {
		return appErrors.NewValidation("html_body is required")
	}
	if !model.ValidAudienceType(in.AudienceType) {
		return appErrors.NewValidation("unknown audience_type: %q", in.AudienceType)
	}
	return nil
}

func parseSchedule(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, *s)
	if err != nil {
		return nil, appErrors.NewValidation("invalid scheduled_at: %v", err)
	}
	return &t, nil
}

func (s *CampaignService) CreateCampaign(in *CampaignInput) (*model.Campaign, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	scheduledAt, err := parseSchedule(in.ScheduledAt)
	if err != nil {
		return nil, err
	}

	c := &model.Campaign{
		ProfileID:    in.ProfileID,
		Name:         in.Name,
		Subject:      in.Subject,
		Preheader:    in.Preheader,
		HTMLBody:     in.HTMLBody,
		TextBody:     in.TextBody,
		AudienceType: in.AudienceType,
		AudienceTags: in.AudienceTags,
		FromName:     in.FromName,
		ReplyTo:      in.ReplyTo,
		Status:       model.CampaignDraft,
		ScheduledAt:  scheduledAt,
	}
	if err := s.CampaignRepo.Create(c); err != nil {
		return nil, err
	}
	return c, nil
}

// UpdateCampaign replaces the mutable fields. Once a campaign has begun
// sending it is immutable.
func (s *CampaignService) UpdateCampaign(id int, in *CampaignInput) (*model.Campaign, error) {
	c, err := s.CampaignRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if !c.Mutable() {
		return nil, appErrors.ErrCampaignImmutable
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	scheduledAt, err := parseSchedule(in.ScheduledAt)
	if err != nil {
		return nil, err
	}

	c.Name = in.Name
	c.Subject = in.Subject
	c.Preheader = in.Preheader
	c.HTMLBody = in.HTMLBody
	c.TextBody = in.TextBody
	c.AudienceType = in.AudienceType
	c.AudienceTags = in.AudienceTags
	c.FromName = in.FromName
	c.ReplyTo = in.ReplyTo
	c.ScheduledAt = scheduledAt

	if err := s.CampaignRepo.Update(c); err != nil {
		return nil, err
	}
	return c, nil
}

// MarkReady moves a draft to ready.
func (s *CampaignService) MarkReady(id int) error {
	ok, err := s.CampaignRepo.UpdateStatusFrom(id, model.CampaignDraft, model.CampaignReady)
	if err != nil {
		return err
	}
	if !ok {
		c, err := s.CampaignRepo.GetByID(id)
		if err != nil {
			return err
		}
		return appErrors.NewInvalidTransition(id, c.Status, model.CampaignReady)
	}
	return nil
}

// Schedule sets a future trigger time on a ready campaign.
func (s *CampaignService) Schedule(id int, at time.Time) error {
	if !at.After(time.Now()) {
		return appErrors.NewValidation("scheduled_at must be in the future")
	}
	c, err := s.CampaignRepo.GetByID(id)
	if err != nil {
		return err
	}
	if c.Status != model.CampaignReady {
		return appErrors.NewInvalidTransition(id, c.Status, model.CampaignScheduled)
	}
	c.ScheduledAt = &at
	c.Status = model.CampaignScheduled
	return s.CampaignRepo.Update(c)
}

// Cancel terminates a draft, ready, or scheduled campaign. Cancelling a
// scheduled campaign also clears the trigger time, so a queued trigger
// that re-reads status finds cancelled and does nothing.
func (s *CampaignService) Cancel(id int) error {
	c, err := s.CampaignRepo.GetByID(id)
	if err != nil {
		return err
	}
	switch c.Status {
	case model.CampaignDraft, model.CampaignReady, model.CampaignScheduled:
	default:
		return appErrors.NewInvalidTransition(id, c.Status, model.CampaignCancelled)
	}
	ok, err := s.CampaignRepo.UpdateStatusFrom(id, c.Status, model.CampaignCancelled)
	if err != nil {
		return err
	}
	if !ok {
		return appErrors.NewInvalidTransition(id, c.Status, model.CampaignCancelled)
	}
	return s.CampaignRepo.ClearSchedule(id)
}

// ListCampaigns fetches campaigns with pagination
func (s *CampaignService) ListCampaigns(page, pageSize int, profileID *int, status string) ([]model.Campaign, map[string]int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	offset := (page - 1) * pageSize

	ptrs, total, err := s.CampaignRepo.ListCampaigns(offset, pageSize, profileID, status)
	if err != nil {
		return nil, nil, err
	}

	campaigns := make([]model.Campaign, len(ptrs))
	for i, c := range ptrs {
		campaigns[i] = *c
	}

	totalPages := (total + pageSize - 1) / pageSize
	pagination := map[string]int{
		"page":        page,
		"page_size":   pageSize,
		"total_count": total,
		"total_pages": totalPages,
	}

	return campaigns, pagination, nil
}

// GetCampaignDetailsWithStats fetches a campaign and its ledger rollup.
func (s *CampaignService) GetCampaignDetailsWithStats(campaignID int) (*CampaignDetails, error) {
	campaign, err := s.CampaignRepo.GetByID(campaignID)
	if err != nil {
		return nil, err
	}
	stats, err := s.LedgerRepo.StatsByCampaign(campaignID)
	if err != nil {
		return nil, err
	}
	total := 0
	for _, n := range stats {
		total += n
	}
	stats["total"] = total
	return &CampaignDetails{Campaign: campaign, Stats: stats}, nil
}

// DeliveryReport returns every ledger row for a campaign, for export.
func (s *CampaignService) DeliveryReport(campaignID int) ([]model.CampaignRecipient, error) {
	if _, err := s.CampaignRepo.GetByID(campaignID); err != nil {
		return nil, err
	}
	return s.LedgerRepo.ListByCampaign(campaignID)
}

// RenderPreview renders the campaign against one recipient, with an
// optional override body replacing the stored HTML skeleton.
func (s *CampaignService) RenderPreview(campaignID, recipientID int, overrideHTML *string) (*render.Message, error) {
	campaign, err := s.CampaignRepo.GetByID(campaignID)
	if err != nil {
		return nil, err
	}
	recipient, err := s.RecipientRepo.GetByID(recipientID)
	if err != nil {
		return nil, err
	}
	if recipient == nil {
		return nil, appErrors.NewValidation("recipient not found")
	}

	htmlBody := campaign.HTMLBody
	if overrideHTML != nil && strings.TrimSpace(*overrideHTML) != "" {
		htmlBody = *overrideHTML
	}
	if strings.TrimSpace(htmlBody) == "" {
		return nil, appErrors.NewValidation("template cannot be empty")
	}

	profileName := ""
	if campaign.ProfileID != nil {
		p, err := s.ProfileRepo.GetByID(*campaign.ProfileID)
		if err != nil {
			return nil, err
		}
		profileName = p.Name
	}

	msg := render.Render(htmlBody, campaign.TextBody, render.Fields{
		RecipientName:  recipient.Name,
		RecipientEmail: recipient.Email,
		FromName:       campaign.FromName,
		ProfileName:    profileName,
		UnsubscribeURL: s.BaseURL + "/unsubscribe/" + recipient.UnsubscribeToken,
	})
	return &msg, nil
}
