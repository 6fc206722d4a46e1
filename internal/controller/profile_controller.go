// internal/controller/profile_controller.go
package controller

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/flmlnk/flmlnk-backend/internal/model"
	"github.com/flmlnk/flmlnk-backend/internal/repository"
	"github.com/flmlnk/flmlnk-backend/internal/service"
	transporthttp "github.com/flmlnk/flmlnk-backend/internal/transport/http"
)

type ProfileController struct {
	ProfileRepo repository.ProfileRepositoryInterface
	Subscribers *service.SubscriberService
	Analytics   *service.AnalyticsService
}

// CreateProfile registers a creator. The profile also gets a
// creator-kind recipient row so creator audiences can reach it.
func (c *ProfileController) CreateProfile(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Handle string `json:"handle"`
		Name   string `json:"name"`
		Email  string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		transporthttp.WriteProblem(w, http.StatusBadRequest, "invalid body", err.Error())
		return
	}
	if body.Handle == "" || body.Email == "" {
		transporthttp.WriteProblem(w, http.StatusBadRequest, "invalid body", "handle and email are required")
		return
	}

	existing, err := c.ProfileRepo.GetByHandle(body.Handle)
	if err != nil {
		transporthttp.WriteError(w, err)
		return
	}
	if existing != nil {
		transporthttp.WriteProblem(w, http.StatusConflict, "handle taken", "a profile with this handle already exists")
		return
	}

	p := &model.Profile{Handle: body.Handle, Name: body.Name, Email: body.Email}
	if err := c.ProfileRepo.Create(p); err != nil {
		transporthttp.WriteError(w, err)
		return
	}
	if _, err := c.Subscribers.RegisterCreator(p); err != nil {
		log.Println("⚠️ failed to register creator recipient:", err)
	}
	transporthttp.WriteJSON(w, http.StatusCreated, p)
}

func (c *ProfileController) GetProfile(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r)
	if err != nil {
		transporthttp.WriteProblem(w, http.StatusBadRequest, "invalid profile id", err.Error())
		return
	}
	p, err := c.ProfileRepo.GetByID(id)
	if err != nil {
		transporthttp.WriteError(w, err)
		return
	}
	transporthttp.WriteJSON(w, http.StatusOK, p)
}

func (c *ProfileController) CompleteOnboarding(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r)
	if err != nil {
		transporthttp.WriteProblem(w, http.StatusBadRequest, "invalid profile id", err.Error())
		return
	}
	if _, err := c.ProfileRepo.GetByID(id); err != nil {
		transporthttp.WriteError(w, err)
		return
	}
	if err := c.ProfileRepo.SetOnboardingComplete(id); err != nil {
		transporthttp.WriteError(w, err)
		return
	}
	transporthttp.WriteJSON(w, http.StatusOK, map[string]bool{"onboarding_complete": true})
}

func (c *ProfileController) ListSubscribers(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r)
	if err != nil {
		transporthttp.WriteProblem(w, http.StatusBadRequest, "invalid profile id", err.Error())
		return
	}
	page := queryInt(r, "page", 1)
	pageSize := queryInt(r, "page_size", 20)

	recipients, pagination, err := c.Subscribers.ListSubscribers(id, page, pageSize)
	if err != nil {
		transporthttp.WriteError(w, err)
		return
	}
	transporthttp.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"data":       recipients,
		"pagination": pagination,
	})
}

// ProfileAnalytics serves the event rollup shown on the dashboard.
func (c *ProfileController) ProfileAnalytics(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r)
	if err != nil {
		transporthttp.WriteProblem(w, http.StatusBadRequest, "invalid profile id", err.Error())
		return
	}
	if _, err := c.ProfileRepo.GetByID(id); err != nil {
		transporthttp.WriteError(w, err)
		return
	}

	var from, to time.Time
	if v := r.URL.Query().Get("from"); v != "" {
		from, err = time.Parse(time.RFC3339, v)
		if err != nil {
			transporthttp.WriteProblem(w, http.StatusBadRequest, "invalid from", err.Error())
			return
		}
	}
	if v := r.URL.Query().Get("to"); v != "" {
		to, err = time.Parse(time.RFC3339, v)
		if err != nil {
			transporthttp.WriteProblem(w, http.StatusBadRequest, "invalid to", err.Error())
			return
		}
	}

	analytics, err := c.Analytics.ForProfile(id, from, to)
	if err != nil {
		transporthttp.WriteError(w, err)
		return
	}
	transporthttp.WriteJSON(w, http.StatusOK, analytics)
}

func queryInt(r *http.Request, key string, def int) int {
	if n, err := strconv.Atoi(r.URL.Query().Get(key)); err == nil && n > 0 {
		return n
	}
	return def
}
