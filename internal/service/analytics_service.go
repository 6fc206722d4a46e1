// internal/service/analytics_service.go
package service

import (
	"log"
	"time"

	"github.com/flmlnk/flmlnk-backend/internal/model"
	"github.com/flmlnk/flmlnk-backend/internal/repository"
)

// AnalyticsService records analytics events and serves profile rollups.
// Aggregation happens in SQL; event rows never pass through memory.
type AnalyticsService struct {
	EventRepo repository.EventRepositoryInterface
}

// ProfileAnalytics bundles totals and the daily series for a window.
type ProfileAnalytics struct {
	From    time.Time                    `json:"from"`
	To      time.Time                    `json:"to"`
	Totals  repository.AnalyticsTotals   `json:"totals"`
	Buckets []repository.AnalyticsBucket `json:"buckets"`
}

// Track validates the event's kind tag and persists it.
func (s *AnalyticsService) Track(ev *model.AnalyticsEvent) error {
	if err := model.ValidateEvent(ev); err != nil {
		return err
	}
	return s.EventRepo.Insert(ev)
}

// ForProfile returns a profile's event rollup for the window. A zero
// `from` defaults to the last 30 days.
func (s *AnalyticsService) ForProfile(profileID int, from, to time.Time) (*ProfileAnalytics, error) {
	if to.IsZero() {
		to = time.Now()
	}
	if from.IsZero() {
		from = to.AddDate(0, 0, -30)
	}
	totals, err := s.EventRepo.TotalsByProfile(profileID, from, to)
	if err != nil {
		return nil, err
	}
	buckets, err := s.EventRepo.DailyBuckets(profileID, from, to)
	if err != nil {
		return nil, err
	}
	return &ProfileAnalytics{From: from, To: to, Totals: totals, Buckets: buckets}, nil
}

// RollupDay upserts the per-profile snapshot rows for one day.
func (s *AnalyticsService) RollupDay(day time.Time) error {
	n, err := s.EventRepo.RollupSnapshots(day)
	if err != nil {
		return err
	}
	log.Printf("analytics rollup for %s: %d snapshot rows", day.Format("2006-01-02"), n)
	return nil
}
