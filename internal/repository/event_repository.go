package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/flmlnk/flmlnk-backend/internal/model"
)

// AnalyticsTotals aggregates event counts for one profile over a window.
type AnalyticsTotals struct {
	PageViews    int `json:"page_views"`
	Subscribes   int `json:"subscribes"`
	Unsubscribes int `json:"unsubscribes"`
	Opens        int `json:"opens"`
	Clicks       int `json:"clicks"`
}

// AnalyticsBucket is one day of a profile's event counts.
type AnalyticsBucket struct {
	Day          time.Time `json:"day"`
	PageViews    int       `json:"page_views"`
	Subscribes   int       `json:"subscribes"`
	Unsubscribes int       `json:"unsubscribes"`
	Opens        int       `json:"opens"`
	Clicks       int       `json:"clicks"`
}

type EventRepositoryInterface interface {
	Insert(ev *model.AnalyticsEvent) error
	TotalsByProfile(profileID int, from, to time.Time) (AnalyticsTotals, error)
	DailyBuckets(profileID int, from, to time.Time) ([]AnalyticsBucket, error)
	RollupSnapshots(day time.Time) (int, error)
}

type EventRepository struct {
	DB *sql.DB
}

func (r *EventRepository) Insert(ev *model.AnalyticsEvent) error {
	ev.CreatedAt = time.Now()
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = ev.CreatedAt
	}
	query := `
        INSERT INTO analytics_events (kind, profile_id, campaign_id, recipient_id, visitor, url, occurred_at, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING id
    `
	return r.DB.QueryRow(query,
		ev.Kind, ev.ProfileID, ev.CampaignID, ev.RecipientID, ev.Visitor, ev.URL, ev.OccurredAt, ev.CreatedAt,
	).Scan(&ev.ID)
}

// kindSums is the pivoted aggregation used by both totals and buckets.
// Filtering and summing happen server-side; no event rows are loaded
// into memory.
const kindSums = `
    COUNT(*) FILTER (WHERE kind='page_view'),
    COUNT(*) FILTER (WHERE kind='subscribe'),
    COUNT(*) FILTER (WHERE kind='unsubscribe'),
    COUNT(*) FILTER (WHERE kind='email_open'),
    COUNT(*) FILTER (WHERE kind='email_click')`

func (r *EventRepository) TotalsByProfile(profileID int, from, to time.Time) (AnalyticsTotals, error) {
	var t AnalyticsTotals
	query := `SELECT` + kindSums + `
        FROM analytics_events
        WHERE profile_id=$1 AND occurred_at >= $2 AND occurred_at <= $3`
	err := r.DB.QueryRow(query, profileID, from, to).Scan(
		&t.PageViews, &t.Subscribes, &t.Unsubscribes, &t.Opens, &t.Clicks,
	)
	if err != nil {
		return t, fmt.Errorf("failed to scan totals: %w", err)
	}
	return t, nil
}

// DailyBuckets groups on the same UTC days the snapshot rollup writes.
func (r *EventRepository) DailyBuckets(profileID int, from, to time.Time) ([]AnalyticsBucket, error) {
	query := `SELECT date_trunc('day', occurred_at AT TIME ZONE 'UTC') AT TIME ZONE 'UTC' AS day,` + kindSums + `
        FROM analytics_events
        WHERE profile_id=$1 AND occurred_at >= $2 AND occurred_at <= $3
        GROUP BY 1
        ORDER BY 1 ASC`
	rows, err := r.DB.Query(query, profileID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	buckets := []AnalyticsBucket{}
	for rows.Next() {
		var b AnalyticsBucket
		if err := rows.Scan(&b.Day, &b.PageViews, &b.Subscribes, &b.Unsubscribes, &b.Opens, &b.Clicks); err != nil {
			return nil, fmt.Errorf("failed to scan bucket: %w", err)
		}
		buckets = append(buckets, b)
	}
	return buckets, rows.Err()
}

// utcDayWindow returns the [start, end) bounds of the UTC calendar day
// containing t. Days are UTC everywhere: Truncate would cut on absolute
// 24h boundaries and date_trunc in SQL on the session timezone, and on
// a non-UTC deployment the two disagree about which day a row is in.
func utcDayWindow(t time.Time) (time.Time, time.Time) {
	u := t.UTC()
	start := time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.Add(24 * time.Hour)
}

// RollupSnapshots upserts one snapshot row per profile for the UTC day
// containing the given time, aggregated entirely in SQL. Returns the
// number of rows written.
func (r *EventRepository) RollupSnapshots(day time.Time) (int, error) {
	query := `
        INSERT INTO analytics_snapshots (profile_id, day, page_views, subscribes, unsubscribes, opens, clicks, created_at)
        SELECT profile_id, date_trunc('day', occurred_at AT TIME ZONE 'UTC') AT TIME ZONE 'UTC',` + kindSums + `, NOW()
        FROM analytics_events
        WHERE profile_id IS NOT NULL
          AND occurred_at >= $1 AND occurred_at < $2
        GROUP BY profile_id, date_trunc('day', occurred_at AT TIME ZONE 'UTC')
        ON CONFLICT (profile_id, day) DO UPDATE SET
            page_views=EXCLUDED.page_views,
            subscribes=EXCLUDED.subscribes,
            unsubscribes=EXCLUDED.unsubscribes,
            opens=EXCLUDED.opens,
            clicks=EXCLUDED.clicks
    `
	dayStart, dayEnd := utcDayWindow(day)
	result, err := r.DB.Exec(query, dayStart, dayEnd)
	if err != nil {
		return 0, fmt.Errorf("failed to roll up snapshots: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

var _ EventRepositoryInterface = (*EventRepository)(nil)
