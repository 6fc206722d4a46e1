package repository

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/flmlnk/flmlnk-backend/internal/model"
)

// LedgerRepositoryInterface manages campaign_recipients, the
// per-(campaign, recipient) delivery-tracking rows. The pair carries a
// UNIQUE constraint at the storage layer, so duplicate creation is
// impossible regardless of caller discipline.
type LedgerRepositoryInterface interface {
	CreatePendingRows(campaignID int, recipientIDs []int) (int, error)
	UpdateStatus(campaignID, recipientID int, status, providerMessageID, errorMessage string) error
	GetRow(campaignID, recipientID int) (*model.CampaignRecipient, error)
	GetByProviderMessageID(providerMessageID string) (*model.CampaignRecipient, error)
	MarkDelivered(id int) error
	MarkBounced(id int, errorMessage string) error
	MarkOpened(id int) error
	MarkClicked(id int) error
	StatsByCampaign(campaignID int) (map[string]int, error)
	ListByCampaign(campaignID int) ([]model.CampaignRecipient, error)
	CountPending(campaignID int) (int, error)
}

type LedgerRepository struct {
	DB *sql.DB
}

const ledgerColumns = `id, campaign_id, recipient_id, status, provider_message_id, error_message,
	sent_at, failed_at, delivered_at, bounced_at, opened_at, clicked_at, created_at`

func scanLedgerRow(row interface{ Scan(...any) error }) (*model.CampaignRecipient, error) {
	var cr model.CampaignRecipient
	err := row.Scan(
		&cr.ID, &cr.CampaignID, &cr.RecipientID, &cr.Status, &cr.ProviderMessageID, &cr.ErrorMessage,
		&cr.SentAt, &cr.FailedAt, &cr.DeliveredAt, &cr.BouncedAt, &cr.OpenedAt, &cr.ClickedAt, &cr.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &cr, nil
}

// CreatePendingRows bulk-inserts one pending row per recipient and
// returns how many were actually created. ON CONFLICT DO NOTHING makes
// the insert idempotent against the composite unique index.
func (r *LedgerRepository) CreatePendingRows(campaignID int, recipientIDs []int) (int, error) {
	if len(recipientIDs) == 0 {
		return 0, nil
	}

	now := time.Now()
	created := 0

	// Insert in chunks to stay under the Postgres parameter limit.
	const chunk = 1000
	for i := 0; i < len(recipientIDs); i += chunk {
		end := i + chunk
		if end > len(recipientIDs) {
			end = len(recipientIDs)
		}
		batch := recipientIDs[i:end]

		valuesClause := make([]string, len(batch))
		args := make([]interface{}, 0, len(batch)*4)
		for j, recipientID := range batch {
			valuesClause[j] = fmt.Sprintf("($%d, $%d, $%d, $%d)", j*4+1, j*4+2, j*4+3, j*4+4)
			args = append(args, campaignID, recipientID, model.DeliveryPending, now)
		}

		query := fmt.Sprintf(`
            INSERT INTO campaign_recipients (campaign_id, recipient_id, status, created_at)
            VALUES %s
            ON CONFLICT (campaign_id, recipient_id) DO NOTHING
        `, strings.Join(valuesClause, ", "))

		result, err := r.DB.Exec(query, args...)
		if err != nil {
			return created, fmt.Errorf("failed to insert ledger rows: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return created, fmt.Errorf("failed to get rows affected: %w", err)
		}
		created += int(affected)
	}

	return created, nil
}

func (r *LedgerRepository) UpdateStatus(campaignID, recipientID int, status, providerMessageID, errorMessage string) error {
	query := `
        UPDATE campaign_recipients
        SET status=$1, provider_message_id=$2, error_message=$3,
            sent_at=CASE WHEN $1='sent' THEN NOW() ELSE sent_at END,
            failed_at=CASE WHEN $1='failed' THEN NOW() ELSE failed_at END
        WHERE campaign_id=$4 AND recipient_id=$5
    `
	_, err := r.DB.Exec(query, status, providerMessageID, errorMessage, campaignID, recipientID)
	return err
}

func (r *LedgerRepository) GetRow(campaignID, recipientID int) (*model.CampaignRecipient, error) {
	query := `SELECT ` + ledgerColumns + ` FROM campaign_recipients WHERE campaign_id=$1 AND recipient_id=$2`
	cr, err := scanLedgerRow(r.DB.QueryRow(query, campaignID, recipientID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return cr, nil
}

func (r *LedgerRepository) GetByProviderMessageID(providerMessageID string) (*model.CampaignRecipient, error) {
	query := `SELECT ` + ledgerColumns + ` FROM campaign_recipients WHERE provider_message_id=$1`
	cr, err := scanLedgerRow(r.DB.QueryRow(query, providerMessageID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return cr, nil
}

func (r *LedgerRepository) MarkDelivered(id int) error {
	query := `UPDATE campaign_recipients SET status=$1, delivered_at=NOW() WHERE id=$2`
	_, err := r.DB.Exec(query, model.DeliveryDelivered, id)
	return err
}

func (r *LedgerRepository) MarkBounced(id int, errorMessage string) error {
	query := `UPDATE campaign_recipients SET status=$1, bounced_at=NOW(), error_message=$2 WHERE id=$3`
	_, err := r.DB.Exec(query, model.DeliveryBounced, errorMessage, id)
	return err
}

// MarkOpened records the first open; later opens keep the original timestamp.
func (r *LedgerRepository) MarkOpened(id int) error {
	query := `UPDATE campaign_recipients SET opened_at=COALESCE(opened_at, NOW()) WHERE id=$1`
	_, err := r.DB.Exec(query, id)
	return err
}

func (r *LedgerRepository) MarkClicked(id int) error {
	query := `UPDATE campaign_recipients SET clicked_at=COALESCE(clicked_at, NOW()) WHERE id=$1`
	_, err := r.DB.Exec(query, id)
	return err
}

func (r *LedgerRepository) StatsByCampaign(campaignID int) (map[string]int, error) {
	query := `SELECT status, COUNT(*) FROM campaign_recipients WHERE campaign_id=$1 GROUP BY status`
	rows, err := r.DB.Query(query, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := map[string]int{
		"pending":   0,
		"sent":      0,
		"delivered": 0,
		"bounced":   0,
		"failed":    0,
	}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// ListByCampaign returns every ledger row for a campaign, for the
// exported per-recipient delivery report.
func (r *LedgerRepository) ListByCampaign(campaignID int) ([]model.CampaignRecipient, error) {
	query := `SELECT ` + ledgerColumns + ` FROM campaign_recipients WHERE campaign_id=$1 ORDER BY id ASC`
	rows, err := r.DB.Query(query, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.CampaignRecipient{}
	for rows.Next() {
		cr, err := scanLedgerRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *cr)
	}
	return out, rows.Err()
}

func (r *LedgerRepository) CountPending(campaignID int) (int, error) {
	var count int
	err := r.DB.QueryRow(`SELECT COUNT(*) FROM campaign_recipients WHERE campaign_id=$1 AND status=$2`,
		campaignID, model.DeliveryPending).Scan(&count)
	return count, err
}

var _ LedgerRepositoryInterface = (*LedgerRepository)(nil)
