// internal/service/subscriber_service.go
package service

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"strings"

	appErrors "github.com/flmlnk/flmlnk-backend/internal/errors"
	"github.com/flmlnk/flmlnk-backend/internal/model"
	"github.com/flmlnk/flmlnk-backend/internal/repository"
)

// SubscriberService owns fan capture and the token-keyed unsubscribe
// flow. The unsubscribe token is the sole authorization for the opt-out
// mutation; there is no session check on that path.
type SubscriberService struct {
	RecipientRepo repository.RecipientRepositoryInterface
	ProfileRepo   repository.ProfileRepositoryInterface
	EventRepo     repository.EventRepositoryInterface
}

// newUnsubscribeToken returns 256 random bits as hex.
func newUnsubscribeToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Capture records a fan email for a profile. A repeat submit of the
// same address re-uses the existing row, clearing the unsubscribed flag
// so an explicit re-signup counts as resubscribing.
func (s *SubscriberService) Capture(profileID int, email, name, tags string) (*model.Recipient, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, appErrors.NewValidation("invalid email address")
	}
	if _, err := s.ProfileRepo.GetByID(profileID); err != nil {
		return nil, err
	}

	existing, err := s.RecipientRepo.GetByEmail(&profileID, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.Unsubscribed {
			if err := s.RecipientRepo.SetUnsubscribed(existing.ID, false); err != nil {
				return nil, err
			}
			existing.Unsubscribed = false
			s.trackSubscription(model.EventSubscribe, existing)
		}
		return existing, nil
	}

	token, err := newUnsubscribeToken()
	if err != nil {
		return nil, err
	}
	rec := &model.Recipient{
		ProfileID:        &profileID,
		Kind:             model.RecipientFan,
		Email:            email,
		Name:             name,
		Tags:             tags,
		UnsubscribeToken: token,
	}
	if err := s.RecipientRepo.Create(rec); err != nil {
		return nil, err
	}
	s.trackSubscription(model.EventSubscribe, rec)
	return rec, nil
}

// RegisterCreator creates the creator-kind recipient row for a new
// profile so creator audiences resolve through the recipients table.
func (s *SubscriberService) RegisterCreator(p *model.Profile) (*model.Recipient, error) {
	token, err := newUnsubscribeToken()
	if err != nil {
		return nil, err
	}
	rec := &model.Recipient{
		ProfileID:        &p.ID,
		Kind:             model.RecipientCreator,
		Email:            strings.ToLower(p.Email),
		Name:             p.Name,
		UnsubscribeToken: token,
	}
	if err := s.RecipientRepo.Create(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Unsubscribe flips the recipient's flag. It is idempotent: a second
// call with the same token succeeds and leaves the same end state. An
// unknown token returns ErrInvalidToken, never a panic or a mutation.
func (s *SubscriberService) Unsubscribe(token string) (*model.Recipient, error) {
	rec, err := s.RecipientRepo.GetByToken(token)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, appErrors.ErrInvalidToken
	}
	if rec.Unsubscribed {
		return rec, nil
	}
	if err := s.RecipientRepo.SetUnsubscribed(rec.ID, true); err != nil {
		return nil, err
	}
	rec.Unsubscribed = true
	s.trackSubscription(model.EventUnsubscribe, rec)
	return rec, nil
}

// Resubscribe clears the flag for the same token. Also idempotent.
func (s *SubscriberService) Resubscribe(token string) (*model.Recipient, error) {
	rec, err := s.RecipientRepo.GetByToken(token)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, appErrors.ErrInvalidToken
	}
	if !rec.Unsubscribed {
		return rec, nil
	}
	if err := s.RecipientRepo.SetUnsubscribed(rec.ID, false); err != nil {
		return nil, err
	}
	rec.Unsubscribed = false
	s.trackSubscription(model.EventSubscribe, rec)
	return rec, nil
}

// ListSubscribers pages through a profile's fans.
func (s *SubscriberService) ListSubscribers(profileID, page, pageSize int) ([]model.Recipient, map[string]int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	recipients, total, err := s.RecipientRepo.ListByProfile(profileID, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, nil, err
	}
	pagination := map[string]int{
		"page":        page,
		"page_size":   pageSize,
		"total_count": total,
		"total_pages": (total + pageSize - 1) / pageSize,
	}
	return recipients, pagination, nil
}

// trackSubscription records the analytics event; a tracking failure
// never fails the subscription mutation itself.
func (s *SubscriberService) trackSubscription(kind string, rec *model.Recipient) {
	if s.EventRepo == nil {
		return
	}
	ev := &model.AnalyticsEvent{
		Kind:        kind,
		ProfileID:   rec.ProfileID,
		RecipientID: &rec.ID,
	}
	if err := s.EventRepo.Insert(ev); err != nil {
		log.Println("⚠️ failed to track subscription event:", err)
	}
}
