// internal/handler/public_handler.go
package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/flmlnk/flmlnk-backend/internal/model"
	"github.com/flmlnk/flmlnk-backend/internal/service"
	transporthttp "github.com/flmlnk/flmlnk-backend/internal/transport/http"
)

// PublicHandler serves the unauthenticated surface: fan capture, the
// token-keyed unsubscribe endpoint, provider webhooks, and analytics
// event tracking.
type PublicHandler struct {
	Subscribers *service.SubscriberService
	Engagement  *service.EngagementService
	Analytics   *service.AnalyticsService
}

// Subscribe captures a fan email for a profile.
func (h *PublicHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	profileID, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		transporthttp.WriteProblem(w, http.StatusBadRequest, "invalid profile id", err.Error())
		return
	}
	var body struct {
		Email string `json:"email"`
		Name  string `json:"name"`
		Tags  string `json:"tags"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		transporthttp.WriteProblem(w, http.StatusBadRequest, "invalid body", err.Error())
		return
	}

	rec, err := h.Subscribers.Capture(profileID, body.Email, body.Name, body.Tags)
	if err != nil {
		transporthttp.WriteError(w, err)
		return
	}
	transporthttp.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"id":     rec.ID,
		"email":  rec.Email,
		"status": "subscribed",
	})
}

// Unsubscribe flips the flag for the recipient behind the token. The
// token alone authorizes the mutation; calling it again is a no-op
// success. Mailbox providers hit this with a POST for one-click
// unsubscribe, people click through with a GET; both are routed here.
func (h *PublicHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	rec, err := h.Subscribers.Unsubscribe(token)
	if err != nil {
		transporthttp.WriteError(w, err)
		return
	}
	transporthttp.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"email":        rec.Email,
		"unsubscribed": true,
	})
}

// Resubscribe clears the flag for the same token.
func (h *PublicHandler) Resubscribe(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	rec, err := h.Subscribers.Resubscribe(token)
	if err != nil {
		transporthttp.WriteError(w, err)
		return
	}
	transporthttp.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"email":        rec.Email,
		"unsubscribed": false,
	})
}

// webhookPayload matches the provider's event callback shape.
type webhookPayload struct {
	Type string `json:"type"`
	Data struct {
		EmailID string `json:"email_id"`
		Reason  string `json:"reason"`
		Link    struct {
			URL string `json:"url"`
		} `json:"click"`
	} `json:"data"`
}

// EmailWebhook applies one provider delivery/engagement callback.
func (h *PublicHandler) EmailWebhook(w http.ResponseWriter, r *http.Request) {
	var payload webhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		transporthttp.WriteProblem(w, http.StatusBadRequest, "invalid body", err.Error())
		return
	}
	if payload.Type == "" || payload.Data.EmailID == "" {
		transporthttp.WriteProblem(w, http.StatusBadRequest, "invalid body", "type and data.email_id are required")
		return
	}

	err := h.Engagement.ProcessEmailEvent(payload.Type, payload.Data.EmailID, payload.Data.Reason, payload.Data.Link.URL)
	if err != nil {
		transporthttp.WriteError(w, err)
		return
	}
	transporthttp.WriteJSON(w, http.StatusOK, map[string]string{"status": "processed"})
}

// TrackEvent records one analytics event (page views from the public
// portfolio pages, primarily).
func (h *PublicHandler) TrackEvent(w http.ResponseWriter, r *http.Request) {
	var ev model.AnalyticsEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		transporthttp.WriteProblem(w, http.StatusBadRequest, "invalid body", err.Error())
		return
	}
	if err := h.Analytics.Track(&ev); err != nil {
		transporthttp.WriteProblem(w, http.StatusBadRequest, "invalid event", err.Error())
		return
	}
	transporthttp.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "recorded"})
}
