// cmd/worker/main.go
//
// The worker consumes campaign send jobs from the queue and executes
// them through the dispatcher. It also runs the scheduler loop that
// fires due scheduled campaigns and the nightly analytics rollup.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/flmlnk/flmlnk-backend/internal/audience"
	"github.com/flmlnk/flmlnk-backend/internal/config"
	"github.com/flmlnk/flmlnk-backend/internal/db"
	"github.com/flmlnk/flmlnk-backend/internal/mail"
	"github.com/flmlnk/flmlnk-backend/internal/queue"
	"github.com/flmlnk/flmlnk-backend/internal/repository"
	"github.com/flmlnk/flmlnk-backend/internal/scheduler"
	"github.com/flmlnk/flmlnk-backend/internal/service"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️ No .env file found, relying on OS environment variables")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(ctx)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	conn, err := db.Open(ctx, &cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect to DB: %v", err)
	}
	defer conn.Close()

	// A missing provider key is a configuration error; the worker
	// refuses to start rather than failing every campaign at send time.
	sender, err := mail.NewResendSender(&cfg.Resend)
	if err != nil {
		log.Fatalf("failed to build email sender: %v", err)
	}

	q, err := queue.Dial(&cfg.Queue)
	if err != nil {
		log.Fatalf("failed to connect to queue: %v", err)
	}
	defer q.Close()

	campaignRepo := &repository.CampaignRepository{DB: conn}
	recipientRepo := &repository.RecipientRepository{DB: conn}
	ledgerRepo := &repository.LedgerRepository{DB: conn}
	profileRepo := &repository.ProfileRepository{DB: conn}
	eventRepo := &repository.EventRepository{DB: conn}

	dispatcher := &service.Dispatcher{
		CampaignRepo:  campaignRepo,
		RecipientRepo: recipientRepo,
		LedgerRepo:    ledgerRepo,
		ProfileRepo:   profileRepo,
		Resolver:      audience.NewResolver(recipientRepo),
		Sender:        sender,
		BaseURL:       cfg.App.BaseURL,
		FromDomain:    cfg.Resend.FromDomain,
		BatchSize:     cfg.Resend.BatchSize,
	}

	sched := &scheduler.Scheduler{
		CampaignRepo: campaignRepo,
		Publisher:    q,
		Interval:     time.Minute,
	}
	go sched.Run(ctx)

	analytics := &service.AnalyticsService{EventRepo: eventRepo}
	go runRollup(ctx, analytics)

	go func() {
		<-ctx.Done()
		q.Close() // unblocks Consume
	}()

	log.Println("Worker running, waiting for send jobs...")
	err = q.Consume(func(job queue.SendJob) error {
		result, err := dispatcher.Send(ctx, job.CampaignID)
		if err != nil {
			return err
		}
		log.Printf("campaign %d finished: sent=%d failed=%d", result.CampaignID, result.SentCount, result.FailedCount)
		return nil
	})
	if err != nil && ctx.Err() == nil {
		log.Fatalf("consumer stopped: %v", err)
	}
	log.Println("Worker exited")
}

// runRollup upserts yesterday's analytics snapshots shortly after
// midnight, and once at startup to catch up after downtime.
func runRollup(ctx context.Context, analytics *service.AnalyticsService) {
	rollup := func() {
		yesterday := time.Now().AddDate(0, 0, -1)
		if err := analytics.RollupDay(yesterday); err != nil {
			log.Println("⚠️ analytics rollup failed:", err)
		}
	}
	rollup()

	for {
		now := time.Now()
		next := time.Date(now.Year(), now.Month(), now.Day(), 0, 10, 0, 0, now.Location()).AddDate(0, 0, 1)
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Until(next)):
			rollup()
		}
	}
}
