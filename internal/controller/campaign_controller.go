// internal/controller/campaign_controller.go
package controller

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/flmlnk/flmlnk-backend/internal/ai"
	"github.com/flmlnk/flmlnk-backend/internal/queue"
	"github.com/flmlnk/flmlnk-backend/internal/service"
	transporthttp "github.com/flmlnk/flmlnk-backend/internal/transport/http"
)

type CampaignController struct {
	CampaignService *service.CampaignService
	Publisher       queue.Publisher
	Drafter         *ai.Drafter
}

func (c *CampaignController) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var in service.CampaignInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		transporthttp.WriteProblem(w, http.StatusBadRequest, "invalid body", err.Error())
		return
	}

	campaign, err := c.CampaignService.CreateCampaign(&in)
	if err != nil {
		transporthttp.WriteError(w, err)
		return
	}
	transporthttp.WriteJSON(w, http.StatusCreated, campaign)
}

func (c *CampaignController) UpdateCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r)
	if err != nil {
		transporthttp.WriteProblem(w, http.StatusBadRequest, "invalid campaign id", err.Error())
		return
	}
	var in service.CampaignInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		transporthttp.WriteProblem(w, http.StatusBadRequest, "invalid body", err.Error())
		return
	}

	campaign, err := c.CampaignService.UpdateCampaign(id, &in)
	if err != nil {
		transporthttp.WriteError(w, err)
		return
	}
	transporthttp.WriteJSON(w, http.StatusOK, campaign)
}

func (c *CampaignController) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	status := r.URL.Query().Get("status")

	var profileID *int
	if v := r.URL.Query().Get("profile_id"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			transporthttp.WriteProblem(w, http.StatusBadRequest, "invalid profile_id", err.Error())
			return
		}
		profileID = &n
	}

	campaigns, pagination, err := c.CampaignService.ListCampaigns(page, pageSize, profileID, status)
	if err != nil {
		transporthttp.WriteError(w, err)
		return
	}
	transporthttp.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"data":       campaigns,
		"pagination": pagination,
	})
}

func (c *CampaignController) GetCampaignDetails(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r)
	if err != nil {
		transporthttp.WriteProblem(w, http.StatusBadRequest, "invalid campaign id", err.Error())
		return
	}
	details, err := c.CampaignService.GetCampaignDetailsWithStats(id)
	if err != nil {
		transporthttp.WriteError(w, err)
		return
	}
	transporthttp.WriteJSON(w, http.StatusOK, details)
}

func (c *CampaignController) MarkReady(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r)
	if err != nil {
		transporthttp.WriteProblem(w, http.StatusBadRequest, "invalid campaign id", err.Error())
		return
	}
	if err := c.CampaignService.MarkReady(id); err != nil {
		transporthttp.WriteError(w, err)
		return
	}
	transporthttp.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (c *CampaignController) ScheduleCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r)
	if err != nil {
		transporthttp.WriteProblem(w, http.StatusBadRequest, "invalid campaign id", err.Error())
		return
	}
	var body struct {
		ScheduledAt string `json:"scheduled_at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		transporthttp.WriteProblem(w, http.StatusBadRequest, "invalid body", err.Error())
		return
	}
	at, err := time.Parse(time.RFC3339, body.ScheduledAt)
	if err != nil {
		transporthttp.WriteProblem(w, http.StatusBadRequest, "invalid scheduled_at", err.Error())
		return
	}
	if err := c.CampaignService.Schedule(id, at); err != nil {
		transporthttp.WriteError(w, err)
		return
	}
	transporthttp.WriteJSON(w, http.StatusOK, map[string]string{"status": "scheduled"})
}

func (c *CampaignController) CancelCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r)
	if err != nil {
		transporthttp.WriteProblem(w, http.StatusBadRequest, "invalid campaign id", err.Error())
		return
	}
	if err := c.CampaignService.Cancel(id); err != nil {
		transporthttp.WriteError(w, err)
		return
	}
	transporthttp.WriteJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

// SendCampaign enqueues the send; the worker executes it. The campaign
// must be in a sendable state when the job runs, so a cancel racing
// this call still wins.
func (c *CampaignController) SendCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r)
	if err != nil {
		transporthttp.WriteProblem(w, http.StatusBadRequest, "invalid campaign id", err.Error())
		return
	}
	if _, err := c.CampaignService.GetCampaignDetailsWithStats(id); err != nil {
		transporthttp.WriteError(w, err)
		return
	}
	if err := c.Publisher.PublishSendJob(id); err != nil {
		transporthttp.WriteProblem(w, http.StatusInternalServerError, "failed to enqueue send", err.Error())
		return
	}
	transporthttp.WriteJSON(w, http.StatusAccepted, map[string]interface{}{
		"campaign_id": id,
		"status":      "queued",
	})
}

func (c *CampaignController) DeliveryReport(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r)
	if err != nil {
		transporthttp.WriteProblem(w, http.StatusBadRequest, "invalid campaign id", err.Error())
		return
	}
	rows, err := c.CampaignService.DeliveryReport(id)
	if err != nil {
		transporthttp.WriteError(w, err)
		return
	}
	transporthttp.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"campaign_id": id,
		"recipients":  rows,
	})
}

func (c *CampaignController) PersonalizedPreview(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r)
	if err != nil {
		transporthttp.WriteProblem(w, http.StatusBadRequest, "invalid campaign id", err.Error())
		return
	}
	var body struct {
		RecipientID  int     `json:"recipient_id"`
		OverrideHTML *string `json:"override_html"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		transporthttp.WriteProblem(w, http.StatusBadRequest, "invalid body", err.Error())
		return
	}

	msg, err := c.CampaignService.RenderPreview(id, body.RecipientID, body.OverrideHTML)
	if err != nil {
		transporthttp.WriteError(w, err)
		return
	}
	transporthttp.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"recipient_id": body.RecipientID,
		"html":         msg.HTML,
		"text":         msg.Text,
		"headers":      msg.Headers,
	})
}

// DraftCampaign generates campaign copy from a creator brief.
func (c *CampaignController) DraftCampaign(w http.ResponseWriter, r *http.Request) {
	if c.Drafter == nil {
		transporthttp.WriteProblem(w, http.StatusServiceUnavailable, "drafting unavailable", "AI drafting is not configured")
		return
	}
	var body struct {
		ProfileName string `json:"profile_name"`
		Brief       string `json:"brief"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		transporthttp.WriteProblem(w, http.StatusBadRequest, "invalid body", err.Error())
		return
	}
	draft, err := c.Drafter.DraftCampaign(r.Context(), body.ProfileName, body.Brief)
	if err != nil {
		transporthttp.WriteProblem(w, http.StatusBadGateway, "draft generation failed", err.Error())
		return
	}
	transporthttp.WriteJSON(w, http.StatusOK, draft)
}

// SubjectCandidates generates alternative subject lines.
func (c *CampaignController) SubjectCandidates(w http.ResponseWriter, r *http.Request) {
	if c.Drafter == nil {
		transporthttp.WriteProblem(w, http.StatusServiceUnavailable, "drafting unavailable", "AI drafting is not configured")
		return
	}
	var body struct {
		ProfileName string `json:"profile_name"`
		Subject     string `json:"subject"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		transporthttp.WriteProblem(w, http.StatusBadRequest, "invalid body", err.Error())
		return
	}
	subjects, err := c.Drafter.SubjectCandidates(r.Context(), body.ProfileName, body.Subject)
	if err != nil {
		transporthttp.WriteProblem(w, http.StatusBadGateway, "candidate generation failed", err.Error())
		return
	}
	transporthttp.WriteJSON(w, http.StatusOK, map[string]interface{}{"subjects": subjects})
}

func urlID(r *http.Request) (int, error) {
	return strconv.Atoi(chi.URLParam(r, "id"))
}
