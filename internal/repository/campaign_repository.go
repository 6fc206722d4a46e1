package repository

import (
	"database/sql"
	"fmt"
	"time"

	appErrors "github.com/flmlnk/flmlnk-backend/internal/errors"
	"github.com/flmlnk/flmlnk-backend/internal/model"
)

type CampaignRepositoryInterface interface {
	Create(c *model.Campaign) error
	Update(c *model.Campaign) error
	GetByID(id int) (*model.Campaign, error)
	ListCampaigns(offset, limit int, profileID *int, status string) ([]*model.Campaign, int, error)

	UpdateStatus(campaignID int, status string) error
	// UpdateStatusFrom transitions only if the row is still in `from`,
	// reporting whether the transition happened. This is the
	// check-before-fire guard for scheduled sends racing cancellation.
	UpdateStatusFrom(campaignID int, from, to string) (bool, error)
	ClearSchedule(campaignID int) error
	FindDueScheduled(now time.Time) ([]*model.Campaign, error)

	Finalize(campaignID int, recipientCount, sentCount, failedCount int) error
	IncrementCounter(campaignID int, counter string) error
}

type CampaignRepository struct {
	DB *sql.DB
}

const campaignColumns = `id, profile_id, name, subject, preheader, html_body, text_body,
	audience_type, audience_tags, from_name, reply_to, status, scheduled_at,
	recipient_count, sent_count, failed_count, delivered_count, bounced_count,
	opened_count, clicked_count, created_at, updated_at`

func scanCampaign(row interface{ Scan(...any) error }) (*model.Campaign, error) {
	var c model.Campaign
	err := row.Scan(
		&c.ID, &c.ProfileID, &c.Name, &c.Subject, &c.Preheader, &c.HTMLBody, &c.TextBody,
		&c.AudienceType, &c.AudienceTags, &c.FromName, &c.ReplyTo, &c.Status, &c.ScheduledAt,
		&c.RecipientCount, &c.SentCount, &c.FailedCount, &c.DeliveredCount, &c.BouncedCount,
		&c.OpenedCount, &c.ClickedCount, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CampaignRepository) Create(c *model.Campaign) error {
	c.CreatedAt = time.Now()
	if c.Status == "" {
		c.Status = model.CampaignDraft
	}
	query := `
        INSERT INTO campaigns (profile_id, name, subject, preheader, html_body, text_body,
            audience_type, audience_tags, from_name, reply_to, status, scheduled_at, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
        RETURNING id
    `
	return r.DB.QueryRow(query,
		c.ProfileID, c.Name, c.Subject, c.Preheader, c.HTMLBody, c.TextBody,
		c.AudienceType, c.AudienceTags, c.FromName, c.ReplyTo, c.Status, c.ScheduledAt, c.CreatedAt,
	).Scan(&c.ID)
}

func (r *CampaignRepository) Update(c *model.Campaign) error {
	query := `
        UPDATE campaigns
        SET name=$1, subject=$2, preheader=$3, html_body=$4, text_body=$5,
            audience_type=$6, audience_tags=$7, from_name=$8, reply_to=$9,
            scheduled_at=$10, status=$11, updated_at=NOW()
        WHERE id=$12
    `
	_, err := r.DB.Exec(query,
		c.Name, c.Subject, c.Preheader, c.HTMLBody, c.TextBody,
		c.AudienceType, c.AudienceTags, c.FromName, c.ReplyTo,
		c.ScheduledAt, c.Status, c.ID,
	)
	return err
}

func (r *CampaignRepository) UpdateStatus(campaignID int, status string) error {
	query := `UPDATE campaigns SET status=$1, updated_at=$2 WHERE id=$3`
	_, err := r.DB.Exec(query, status, time.Now(), campaignID)
	return err
}

func (r *CampaignRepository) UpdateStatusFrom(campaignID int, from, to string) (bool, error) {
	query := `UPDATE campaigns SET status=$1, updated_at=NOW() WHERE id=$2 AND status=$3`
	result, err := r.DB.Exec(query, to, campaignID, from)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected > 0, nil
}

func (r *CampaignRepository) ClearSchedule(campaignID int) error {
	query := `UPDATE campaigns SET scheduled_at=NULL, updated_at=NOW() WHERE id=$1`
	_, err := r.DB.Exec(query, campaignID)
	return err
}

func (r *CampaignRepository) FindDueScheduled(now time.Time) ([]*model.Campaign, error) {
	query := `SELECT ` + campaignColumns + `
        FROM campaigns
        WHERE status=$1 AND scheduled_at IS NOT NULL AND scheduled_at <= $2
        ORDER BY scheduled_at ASC`
	rows, err := r.DB.Query(query, model.CampaignScheduled, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	campaigns := []*model.Campaign{}
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, rows.Err()
}

func (r *CampaignRepository) GetByID(id int) (*model.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE id=$1`
	c, err := scanCampaign(r.DB.QueryRow(query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewCampaignNotFound(id)
		}
		return nil, err
	}
	return c, nil
}

func (r *CampaignRepository) ListCampaigns(offset, limit int, profileID *int, status string) ([]*model.Campaign, int, error) {
	campaigns := []*model.Campaign{}
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE 1=1`
	args := []interface{}{}
	argPos := 1

	if profileID != nil {
		query += fmt.Sprintf(" AND profile_id=$%d", argPos)
		args = append(args, *profileID)
		argPos++
	}
	if status != "" {
		query += fmt.Sprintf(" AND status=$%d", argPos)
		args = append(args, status)
		argPos++
	}

	query += fmt.Sprintf(" ORDER BY id DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, limit, offset)

	rows, err := r.DB.Query(query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, 0, err
		}
		campaigns = append(campaigns, c)
	}

	countQuery := `SELECT COUNT(*) FROM campaigns WHERE 1=1`
	argsCount := []interface{}{}
	argPosCount := 1
	if profileID != nil {
		countQuery += fmt.Sprintf(" AND profile_id=$%d", argPosCount)
		argsCount = append(argsCount, *profileID)
		argPosCount++
	}
	if status != "" {
		countQuery += fmt.Sprintf(" AND status=$%d", argPosCount)
		argsCount = append(argsCount, status)
	}

	var total int
	if err := r.DB.QueryRow(countQuery, argsCount...).Scan(&total); err != nil {
		return nil, 0, err
	}

	return campaigns, total, nil
}

// Finalize stamps the aggregate counts once a send has attempted every
// eligible recipient. recipient_count is frozen here: it reflects the
// ledger rows created for this send, not a live audience count.
func (r *CampaignRepository) Finalize(campaignID int, recipientCount, sentCount, failedCount int) error {
	query := `
        UPDATE campaigns
        SET recipient_count=$1, sent_count=$2, failed_count=$3, updated_at=NOW()
        WHERE id=$4
    `
	_, err := r.DB.Exec(query, recipientCount, sentCount, failedCount, campaignID)
	return err
}

// IncrementCounter bumps one of the webhook-driven aggregate counters.
func (r *CampaignRepository) IncrementCounter(campaignID int, counter string) error {
	var column string
	switch counter {
	case "delivered":
		column = "delivered_count"
	case "bounced":
		column = "bounced_count"
	case "opened":
		column = "opened_count"
	case "clicked":
		column = "clicked_count"
	default:
		return fmt.Errorf("unknown campaign counter: %q", counter)
	}
	query := fmt.Sprintf(`UPDATE campaigns SET %s=%s+1, updated_at=NOW() WHERE id=$1`, column, column)
	_, err := r.DB.Exec(query, campaignID)
	return err
}

var _ CampaignRepositoryInterface = (*CampaignRepository)(nil)
