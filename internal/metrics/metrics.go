package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CampaignSendDuration tracks the wall-clock time of whole campaign sends
	CampaignSendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "flmlnk_campaign_send_duration_seconds",
			Help: "Duration of full campaign sends in seconds",
			Buckets: []float64{
				0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300,
			},
		},
		[]string{"status"}, // sent or failed
	)

	// RecipientSends counts per-recipient provider calls by outcome
	RecipientSends = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flmlnk_recipient_sends_total",
			Help: "Per-recipient email delivery attempts by outcome",
		},
		[]string{"outcome"}, // sent or failed
	)

	// WebhookEvents counts provider webhook callbacks by type
	WebhookEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flmlnk_webhook_events_total",
			Help: "Email provider webhook events by type",
		},
		[]string{"type"},
	)
)

// ObserveCampaignSend records one completed campaign send.
func ObserveCampaignSend(status string, started time.Time) {
	CampaignSendDuration.WithLabelValues(status).Observe(time.Since(started).Seconds())
}
