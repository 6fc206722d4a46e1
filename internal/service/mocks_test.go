package service_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	appErrors "github.com/flmlnk/flmlnk-backend/internal/errors"
	"github.com/flmlnk/flmlnk-backend/internal/mail"
	"github.com/flmlnk/flmlnk-backend/internal/model"
	"github.com/flmlnk/flmlnk-backend/internal/repository"
)

// In-memory repositories shared by the service tests. They keep just
// enough state for the lifecycle and delivery flows under test.

type memCampaignRepo struct {
	mu        sync.Mutex
	campaigns map[int]*model.Campaign
	nextID    int
}

func newMemCampaignRepo() *memCampaignRepo {
	return &memCampaignRepo{campaigns: map[int]*model.Campaign{}, nextID: 1}
}

func (r *memCampaignRepo) add(c *model.Campaign) *model.Campaign {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c.ID == 0 {
		c.ID = r.nextID
		r.nextID++
	}
	r.campaigns[c.ID] = c
	return c
}

func (r *memCampaignRepo) Create(c *model.Campaign) error {
	r.add(c)
	return nil
}

func (r *memCampaignRepo) Update(c *model.Campaign) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.campaigns[c.ID]; !ok {
		return appErrors.NewCampaignNotFound(c.ID)
	}
	r.campaigns[c.ID] = c
	return nil
}

func (r *memCampaignRepo) GetByID(id int) (*model.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[id]
	if !ok {
		return nil, appErrors.NewCampaignNotFound(id)
	}
	clone := *c
	return &clone, nil
}

func (r *memCampaignRepo) ListCampaigns(offset, limit int, profileID *int, status string) ([]*model.Campaign, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []*model.Campaign
	for id := 1; id < r.nextID; id++ {
		c, ok := r.campaigns[id]
		if !ok {
			continue
		}
		if status != "" && c.Status != status {
			continue
		}
		if profileID != nil && (c.ProfileID == nil || *c.ProfileID != *profileID) {
			continue
		}
		all = append(all, c)
	}
	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (r *memCampaignRepo) UpdateStatus(campaignID int, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[campaignID]
	if !ok {
		return appErrors.NewCampaignNotFound(campaignID)
	}
	c.Status = status
	return nil
}

func (r *memCampaignRepo) UpdateStatusFrom(campaignID int, from, to string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[campaignID]
	if !ok {
		return false, appErrors.NewCampaignNotFound(campaignID)
	}
	if c.Status != from {
		return false, nil
	}
	c.Status = to
	return true, nil
}

func (r *memCampaignRepo) ClearSchedule(campaignID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.campaigns[campaignID]; ok {
		c.ScheduledAt = nil
	}
	return nil
}

func (r *memCampaignRepo) FindDueScheduled(now time.Time) ([]*model.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var due []*model.Campaign
	for _, c := range r.campaigns {
		if c.Status == model.CampaignScheduled && c.ScheduledAt != nil && !c.ScheduledAt.After(now) {
			clone := *c
			due = append(due, &clone)
		}
	}
	return due, nil
}

func (r *memCampaignRepo) Finalize(campaignID int, recipientCount, sentCount, failedCount int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[campaignID]
	if !ok {
		return appErrors.NewCampaignNotFound(campaignID)
	}
	c.RecipientCount = recipientCount
	c.SentCount = sentCount
	c.FailedCount = failedCount
	return nil
}

func (r *memCampaignRepo) IncrementCounter(campaignID int, counter string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[campaignID]
	if !ok {
		return appErrors.NewCampaignNotFound(campaignID)
	}
	switch counter {
	case "delivered":
		c.DeliveredCount++
	case "bounced":
		c.BouncedCount++
	case "opened":
		c.OpenedCount++
	case "clicked":
		c.ClickedCount++
	}
	return nil
}

var _ repository.CampaignRepositoryInterface = (*memCampaignRepo)(nil)

type memRecipientRepo struct {
	mu         sync.Mutex
	recipients map[int]*model.Recipient
	nextID     int
}

func newMemRecipientRepo() *memRecipientRepo {
	return &memRecipientRepo{recipients: map[int]*model.Recipient{}, nextID: 1}
}

func (r *memRecipientRepo) add(rec *model.Recipient) *model.Recipient {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec.ID == 0 {
		rec.ID = r.nextID
		r.nextID++
	}
	r.recipients[rec.ID] = rec
	return rec
}

func (r *memRecipientRepo) Create(rec *model.Recipient) error {
	r.add(rec)
	return nil
}

func (r *memRecipientRepo) GetByID(id int) (*model.Recipient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.recipients[id]
	if !ok {
		return nil, nil
	}
	clone := *rec
	return &clone, nil
}

func (r *memRecipientRepo) GetByEmail(profileID *int, email string) (*model.Recipient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.recipients {
		if rec.Email != email {
			continue
		}
		if (profileID == nil) != (rec.ProfileID == nil) {
			continue
		}
		if profileID != nil && *rec.ProfileID != *profileID {
			continue
		}
		clone := *rec
		return &clone, nil
	}
	return nil, nil
}

func (r *memRecipientRepo) GetByToken(token string) (*model.Recipient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.recipients {
		if rec.UnsubscribeToken == token {
			clone := *rec
			return &clone, nil
		}
	}
	return nil, nil
}

func (r *memRecipientRepo) ListByProfile(profileID int, offset, limit int) ([]model.Recipient, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []model.Recipient
	for id := 1; id < r.nextID; id++ {
		rec, ok := r.recipients[id]
		if !ok || rec.ProfileID == nil || *rec.ProfileID != profileID || rec.Kind != model.RecipientFan {
			continue
		}
		all = append(all, *rec)
	}
	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (r *memRecipientRepo) ListSendableByProfile(profileID int, tags string) ([]model.Recipient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Recipient
	for id := 1; id < r.nextID; id++ {
		rec, ok := r.recipients[id]
		if !ok || rec.ProfileID == nil || *rec.ProfileID != profileID {
			continue
		}
		if rec.Kind != model.RecipientFan || !rec.Sendable() {
			continue
		}
		out = append(out, *rec)
	}
	return out, nil
}

func (r *memRecipientRepo) ListSendableFans(tags string) ([]model.Recipient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Recipient
	for id := 1; id < r.nextID; id++ {
		rec, ok := r.recipients[id]
		if !ok || rec.Kind != model.RecipientFan || !rec.Sendable() {
			continue
		}
		out = append(out, *rec)
	}
	return out, nil
}

func (r *memRecipientRepo) ListSendableCreators(incompleteOnly bool) ([]model.Recipient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Recipient
	for id := 1; id < r.nextID; id++ {
		rec, ok := r.recipients[id]
		if !ok || rec.Kind != model.RecipientCreator || !rec.Sendable() {
			continue
		}
		out = append(out, *rec)
	}
	return out, nil
}

func (r *memRecipientRepo) SetUnsubscribed(id int, unsubscribed bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.recipients[id]
	if !ok {
		return fmt.Errorf("recipient %d not found", id)
	}
	rec.Unsubscribed = unsubscribed
	return nil
}

func (r *memRecipientRepo) SetHardBounce(id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.recipients[id]
	if !ok {
		return fmt.Errorf("recipient %d not found", id)
	}
	rec.HardBounce = true
	return nil
}

func (r *memRecipientRepo) IncrementSent(id int) error   { return r.bump(id, "sent") }
func (r *memRecipientRepo) IncrementOpens(id int) error  { return r.bump(id, "opens") }
func (r *memRecipientRepo) IncrementClicks(id int) error { return r.bump(id, "clicks") }

func (r *memRecipientRepo) bump(id int, counter string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.recipients[id]
	if !ok {
		return fmt.Errorf("recipient %d not found", id)
	}
	switch counter {
	case "sent":
		rec.SentCount++
	case "opens":
		rec.OpenCount++
	case "clicks":
		rec.ClickCount++
	}
	return nil
}

var _ repository.RecipientRepositoryInterface = (*memRecipientRepo)(nil)

type memLedgerRepo struct {
	mu     sync.Mutex
	rows   map[string]*model.CampaignRecipient
	nextID int
}

func newMemLedgerRepo() *memLedgerRepo {
	return &memLedgerRepo{rows: map[string]*model.CampaignRecipient{}, nextID: 1}
}

func ledgerKey(campaignID, recipientID int) string {
	return fmt.Sprintf("%d/%d", campaignID, recipientID)
}

func (r *memLedgerRepo) CreatePendingRows(campaignID int, recipientIDs []int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	created := 0
	for _, rid := range recipientIDs {
		key := ledgerKey(campaignID, rid)
		if _, exists := r.rows[key]; exists {
			continue
		}
		r.rows[key] = &model.CampaignRecipient{
			ID:          r.nextID,
			CampaignID:  campaignID,
			RecipientID: rid,
			Status:      model.DeliveryPending,
			CreatedAt:   time.Now(),
		}
		r.nextID++
		created++
	}
	return created, nil
}

func (r *memLedgerRepo) UpdateStatus(campaignID, recipientID int, status, providerMessageID, errorMessage string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[ledgerKey(campaignID, recipientID)]
	if !ok {
		return fmt.Errorf("no ledger row for campaign %d recipient %d", campaignID, recipientID)
	}
	row.Status = status
	row.ProviderMessageID = providerMessageID
	row.ErrorMessage = errorMessage
	now := time.Now()
	switch status {
	case model.DeliverySent:
		row.SentAt = &now
	case model.DeliveryFailed:
		row.FailedAt = &now
	}
	return nil
}

func (r *memLedgerRepo) GetRow(campaignID, recipientID int) (*model.CampaignRecipient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[ledgerKey(campaignID, recipientID)]
	if !ok {
		return nil, nil
	}
	clone := *row
	return &clone, nil
}

func (r *memLedgerRepo) GetByProviderMessageID(providerMessageID string) (*model.CampaignRecipient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.ProviderMessageID == providerMessageID && providerMessageID != "" {
			clone := *row
			return &clone, nil
		}
	}
	return nil, nil
}

func (r *memLedgerRepo) byID(id int) *model.CampaignRecipient {
	for _, row := range r.rows {
		if row.ID == id {
			return row
		}
	}
	return nil
}

func (r *memLedgerRepo) MarkDelivered(id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if row := r.byID(id); row != nil {
		row.Status = model.DeliveryDelivered
		now := time.Now()
		row.DeliveredAt = &now
	}
	return nil
}

func (r *memLedgerRepo) MarkBounced(id int, errorMessage string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if row := r.byID(id); row != nil {
		row.Status = model.DeliveryBounced
		row.ErrorMessage = errorMessage
		now := time.Now()
		row.BouncedAt = &now
	}
	return nil
}

func (r *memLedgerRepo) MarkOpened(id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if row := r.byID(id); row != nil && row.OpenedAt == nil {
		now := time.Now()
		row.OpenedAt = &now
	}
	return nil
}

func (r *memLedgerRepo) MarkClicked(id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if row := r.byID(id); row != nil && row.ClickedAt == nil {
		now := time.Now()
		row.ClickedAt = &now
	}
	return nil
}

func (r *memLedgerRepo) StatsByCampaign(campaignID int) (map[string]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stats := map[string]int{}
	for _, row := range r.rows {
		if row.CampaignID == campaignID {
			stats[row.Status]++
		}
	}
	return stats, nil
}

func (r *memLedgerRepo) ListByCampaign(campaignID int) ([]model.CampaignRecipient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.CampaignRecipient
	for _, row := range r.rows {
		if row.CampaignID == campaignID {
			out = append(out, *row)
		}
	}
	return out, nil
}

func (r *memLedgerRepo) CountPending(campaignID int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, row := range r.rows {
		if row.CampaignID == campaignID && row.Status == model.DeliveryPending {
			n++
		}
	}
	return n, nil
}

var _ repository.LedgerRepositoryInterface = (*memLedgerRepo)(nil)

type memProfileRepo struct {
	mu       sync.Mutex
	profiles map[int]*model.Profile
	nextID   int
}

func newMemProfileRepo() *memProfileRepo {
	return &memProfileRepo{profiles: map[int]*model.Profile{}, nextID: 1}
}

func (r *memProfileRepo) Create(p *model.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ID == 0 {
		p.ID = r.nextID
		r.nextID++
	}
	r.profiles[p.ID] = p
	return nil
}

func (r *memProfileRepo) GetByID(id int) (*model.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[id]
	if !ok {
		return nil, appErrors.NewProfileNotFound(id)
	}
	clone := *p
	return &clone, nil
}

func (r *memProfileRepo) GetByHandle(handle string) (*model.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.profiles {
		if p.Handle == handle {
			clone := *p
			return &clone, nil
		}
	}
	return nil, nil
}

func (r *memProfileRepo) SetOnboardingComplete(id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.profiles[id]; ok {
		p.OnboardingComplete = true
	}
	return nil
}

var _ repository.ProfileRepositoryInterface = (*memProfileRepo)(nil)

type memEventRepo struct {
	mu     sync.Mutex
	events []model.AnalyticsEvent
}

func (r *memEventRepo) Insert(ev *model.AnalyticsEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ev.ID = len(r.events) + 1
	r.events = append(r.events, *ev)
	return nil
}

func (r *memEventRepo) TotalsByProfile(profileID int, from, to time.Time) (repository.AnalyticsTotals, error) {
	return repository.AnalyticsTotals{}, nil
}

func (r *memEventRepo) DailyBuckets(profileID int, from, to time.Time) ([]repository.AnalyticsBucket, error) {
	return nil, nil
}

func (r *memEventRepo) RollupSnapshots(day time.Time) (int, error) { return 0, nil }

var _ repository.EventRepositoryInterface = (*memEventRepo)(nil)

// recordingSender captures every provider call and tracks how many are
// in flight at once, so tests can assert the batch width.
type recordingSender struct {
	mu          sync.Mutex
	sent        []*mail.Email
	inFlight    int
	maxInFlight int
	failTo      map[string]bool
	delay       time.Duration
}

func (s *recordingSender) Send(ctx context.Context, email *mail.Email) (string, error) {
	s.mu.Lock()
	s.inFlight++
	if s.inFlight > s.maxInFlight {
		s.maxInFlight = s.inFlight
	}
	s.mu.Unlock()

	if s.delay > 0 {
		time.Sleep(s.delay)
	}

	s.mu.Lock()
	s.inFlight--
	fail := s.failTo[email.To]
	if !fail {
		s.sent = append(s.sent, email)
	}
	n := len(s.sent)
	s.mu.Unlock()

	if fail {
		return "", fmt.Errorf("provider rejected %s", email.To)
	}
	return fmt.Sprintf("msg-%d", n), nil
}

var _ mail.Sender = (*recordingSender)(nil)
