// Package scheduler fires due scheduled campaigns. It polls rather than
// holding per-campaign timers, so campaigns scheduled on one process
// survive a restart of another.
package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/flmlnk/flmlnk-backend/internal/model"
	"github.com/flmlnk/flmlnk-backend/internal/queue"
	"github.com/flmlnk/flmlnk-backend/internal/repository"
)

type Scheduler struct {
	CampaignRepo repository.CampaignRepositoryInterface
	Publisher    queue.Publisher
	Interval     time.Duration
}

// Run polls until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	interval := s.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(time.Now())
		}
	}
}

// Tick finds due campaigns and enqueues a send for each one that is
// still scheduled. The status is re-read per campaign before firing:
// a cancellation between scheduling and the trigger wins, and the
// dispatcher's own conditional transition closes the remaining window.
func (s *Scheduler) Tick(now time.Time) {
	due, err := s.CampaignRepo.FindDueScheduled(now)
	if err != nil {
		log.Println("⚠️ scheduler query failed:", err)
		return
	}

	for _, c := range due {
		current, err := s.CampaignRepo.GetByID(c.ID)
		if err != nil {
			log.Println("⚠️ scheduler re-read failed:", err)
			continue
		}
		if current.Status != model.CampaignScheduled {
			log.Printf("campaign %d no longer scheduled (now %s), skipping", c.ID, current.Status)
			continue
		}
		if err := s.Publisher.PublishSendJob(c.ID); err != nil {
			log.Println("⚠️ failed to enqueue scheduled send:", err)
			continue
		}
		log.Printf("📩 enqueued scheduled send for campaign %d", c.ID)
	}
}
