// cmd/server/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/flmlnk/flmlnk-backend/internal/ai"
	"github.com/flmlnk/flmlnk-backend/internal/config"
	"github.com/flmlnk/flmlnk-backend/internal/controller"
	"github.com/flmlnk/flmlnk-backend/internal/db"
	"github.com/flmlnk/flmlnk-backend/internal/handler"
	"github.com/flmlnk/flmlnk-backend/internal/queue"
	"github.com/flmlnk/flmlnk-backend/internal/repository"
	"github.com/flmlnk/flmlnk-backend/internal/service"
	transporthttp "github.com/flmlnk/flmlnk-backend/internal/transport/http"
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

	campaignService := &service.CampaignService{
		CampaignRepo:  campaignRepo,
		RecipientRepo: recipientRepo,
		ProfileRepo:   profileRepo,
		LedgerRepo:    ledgerRepo,
		BaseURL:       cfg.App.BaseURL,
	}
	subscriberService := &service.SubscriberService{
		RecipientRepo: recipientRepo,
		ProfileRepo:   profileRepo,
		EventRepo:     eventRepo,
	}
	engagementService := &service.EngagementService{
		CampaignRepo:  campaignRepo,
		RecipientRepo: recipientRepo,
		LedgerRepo:    ledgerRepo,
		EventRepo:     eventRepo,
	}
	analyticsService := &service.AnalyticsService{EventRepo: eventRepo}

	// AI drafting is optional: without a key the endpoints answer 503.
	var drafter *ai.Drafter
	if cfg.OpenAI.APIKey != "" {
		drafter, err = ai.NewDrafter(&cfg.OpenAI)
		if err != nil {
			log.Fatalf("failed to build drafter: %v", err)
		}
	} else {
		log.Println("⚠️ OPENAI_API_KEY not set, AI drafting disabled")
	}

	campaignController := &controller.CampaignController{
		CampaignService: campaignService,
		Publisher:       q,
		Drafter:         drafter,
	}
	profileController := &controller.ProfileController{
		ProfileRepo: profileRepo,
		Subscribers: subscriberService,
		Analytics:   analyticsService,
	}
	publicHandler := &handler.PublicHandler{
		Subscribers: subscriberService,
		Engagement:  engagementService,
		Analytics:   analyticsService,
	}

	r := chi.NewRouter()
	r.Use(transporthttp.BodyLimit(1 << 20))

	// JSON API routes
	r.Group(func(r chi.Router) {
		r.Use(transporthttp.RequireJSON)

		// Campaign routes
		r.Post("/campaigns", campaignController.CreateCampaign)
		r.Get("/campaigns", campaignController.ListCampaigns)
		r.Get("/campaigns/{id}", campaignController.GetCampaignDetails)
		r.Patch("/campaigns/{id}", campaignController.UpdateCampaign)
		r.Post("/campaigns/{id}/ready", campaignController.MarkReady)
		r.Post("/campaigns/{id}/schedule", campaignController.ScheduleCampaign)
		r.Post("/campaigns/{id}/cancel", campaignController.CancelCampaign)
		r.Post("/campaigns/{id}/send", campaignController.SendCampaign)
		r.Get("/campaigns/{id}/report", campaignController.DeliveryReport)
		r.Post("/campaigns/{id}/personalized-preview", campaignController.PersonalizedPreview)
		r.Post("/campaigns/draft", campaignController.DraftCampaign)
		r.Post("/campaigns/subject-candidates", campaignController.SubjectCandidates)

		// Profile routes
		r.Post("/profiles", profileController.CreateProfile)
		r.Get("/profiles/{id}", profileController.GetProfile)
		r.Post("/profiles/{id}/onboarding-complete", profileController.CompleteOnboarding)
		r.Get("/profiles/{id}/subscribers", profileController.ListSubscribers)
		r.Get("/profiles/{id}/analytics", profileController.ProfileAnalytics)

		// Public JSON routes
		r.Post("/profiles/{id}/subscribers", publicHandler.Subscribe)
		r.Post("/events", publicHandler.TrackEvent)
		r.With(transporthttp.WebhookAuth(cfg.App.WebhookKey)).Post("/webhooks/email", publicHandler.EmailWebhook)
	})

	// Unsubscribe routes. RFC 8058 one-click POSTs arrive from mailbox
	// providers as form-encoded bodies, so no content-type check here.
	r.Get("/unsubscribe/{token}", publicHandler.Unsubscribe)
	r.Post("/unsubscribe/{token}", publicHandler.Unsubscribe)
	r.Post("/unsubscribe/{token}/resubscribe", publicHandler.Resubscribe)

	// Operational routes
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/healthz/db", func(w http.ResponseWriter, r *http.Request) {
		if err := conn.PingContext(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"error","message":"postgres unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok","postgres":"connected"}`))
	})

	srv := &http.Server{
		Addr:         cfg.Server.GetServerAddr(),
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Println("🚀 Server running on", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down server...")

	shutdownCtx, cancel2 := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel2()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}
	log.Println("Server exited gracefully")
}
