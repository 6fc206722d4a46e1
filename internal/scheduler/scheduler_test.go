package scheduler_test

import (
	"errors"
	"testing"
	"time"

	appErrors "github.com/flmlnk/flmlnk-backend/internal/errors"
	"github.com/flmlnk/flmlnk-backend/internal/model"
	"github.com/flmlnk/flmlnk-backend/internal/scheduler"
)

type stubCampaignRepo struct {
	campaigns map[int]*model.Campaign

	// When set, FindDueScheduled returns this fixed result, simulating
	// a concurrent status change between the due query and the re-read.
	due []*model.Campaign
}

func (r *stubCampaignRepo) GetByID(id int) (*model.Campaign, error) {
	c, ok := r.campaigns[id]
	if !ok {
		return nil, appErrors.NewCampaignNotFound(id)
	}
	clone := *c
	return &clone, nil
}

func (r *stubCampaignRepo) FindDueScheduled(now time.Time) ([]*model.Campaign, error) {
	if r.due != nil {
		return r.due, nil
	}
	var due []*model.Campaign
	for _, c := range r.campaigns {
		if c.Status == model.CampaignScheduled && c.ScheduledAt != nil && !c.ScheduledAt.After(now) {
			clone := *c
			due = append(due, &clone)
		}
	}
	return due, nil
}

func (r *stubCampaignRepo) Create(c *model.Campaign) error { return nil }
func (r *stubCampaignRepo) Update(c *model.Campaign) error { return nil }
func (r *stubCampaignRepo) ListCampaigns(offset, limit int, profileID *int, status string) ([]*model.Campaign, int, error) {
	return nil, 0, nil
}
func (r *stubCampaignRepo) UpdateStatus(campaignID int, status string) error { return nil }
func (r *stubCampaignRepo) UpdateStatusFrom(campaignID int, from, to string) (bool, error) {
	return false, nil
}
func (r *stubCampaignRepo) ClearSchedule(campaignID int) error { return nil }
func (r *stubCampaignRepo) Finalize(campaignID int, recipientCount, sentCount, failedCount int) error {
	return nil
}
func (r *stubCampaignRepo) IncrementCounter(campaignID int, counter string) error { return nil }

type stubPublisher struct {
	published []int
	err       error
}

func (p *stubPublisher) PublishSendJob(campaignID int) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, campaignID)
	return nil
}

func scheduledCampaign(id int, at time.Time, status string) *model.Campaign {
	return &model.Campaign{ID: id, Name: "Launch", Status: status, ScheduledAt: &at}
}

func TestTickEnqueuesDueCampaigns(t *testing.T) {
	now := time.Now()
	repo := &stubCampaignRepo{campaigns: map[int]*model.Campaign{
		1: scheduledCampaign(1, now.Add(-time.Minute), model.CampaignScheduled),
		2: scheduledCampaign(2, now.Add(time.Hour), model.CampaignScheduled),
	}}
	pub := &stubPublisher{}
	s := &scheduler.Scheduler{CampaignRepo: repo, Publisher: pub}

	s.Tick(now)

	if len(pub.published) != 1 || pub.published[0] != 1 {
		t.Errorf("expected only campaign 1 enqueued, got %v", pub.published)
	}
}

func TestTickSkipsCancelledBeforeTrigger(t *testing.T) {
	now := time.Now()
	cancelled := scheduledCampaign(1, now.Add(-time.Minute), model.CampaignCancelled)
	repo := &stubCampaignRepo{
		campaigns: map[int]*model.Campaign{1: cancelled},
		// The due query saw the campaign before cancellation landed;
		// the per-campaign re-read must catch the newer status.
		due: []*model.Campaign{scheduledCampaign(1, now.Add(-time.Minute), model.CampaignScheduled)},
	}
	pub := &stubPublisher{}
	s := &scheduler.Scheduler{CampaignRepo: repo, Publisher: pub}

	s.Tick(now)

	if len(pub.published) != 0 {
		t.Errorf("cancelled campaign must not be enqueued, got %v", pub.published)
	}
}

func TestTickContinuesPastPublishFailure(t *testing.T) {
	now := time.Now()
	repo := &stubCampaignRepo{campaigns: map[int]*model.Campaign{
		1: scheduledCampaign(1, now.Add(-time.Minute), model.CampaignScheduled),
	}}
	pub := &stubPublisher{err: errors.New("queue unavailable")}
	s := &scheduler.Scheduler{CampaignRepo: repo, Publisher: pub}

	// Must not panic; the campaign stays scheduled for the next tick.
	s.Tick(now)

	c, _ := repo.GetByID(1)
	if c.Status != model.CampaignScheduled {
		t.Errorf("expected campaign still scheduled, got %s", c.Status)
	}
}
