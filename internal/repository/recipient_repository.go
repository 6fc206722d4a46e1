package repository

import (
	"database/sql"
	"strings"
	"time"

	"github.com/flmlnk/flmlnk-backend/internal/model"
)

// prefixColumns qualifies a column list with a table alias for joins.
func prefixColumns(prefix, cols string) string {
	parts := strings.Split(cols, ",")
	for i, p := range parts {
		parts[i] = prefix + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

// RecipientRepositoryInterface defines methods used by the audience
// resolver, the subscribe capture flow, and the unsubscribe endpoint.
type RecipientRepositoryInterface interface {
	Create(r *model.Recipient) error
	GetByID(id int) (*model.Recipient, error)
	GetByEmail(profileID *int, email string) (*model.Recipient, error)
	GetByToken(token string) (*model.Recipient, error)
	ListByProfile(profileID int, offset, limit int) ([]model.Recipient, int, error)

	// Audience queries. All of them exclude unsubscribed and
	// hard-bounced rows in SQL; callers never re-filter in memory.
	ListSendableByProfile(profileID int, tags string) ([]model.Recipient, error)
	ListSendableFans(tags string) ([]model.Recipient, error)
	ListSendableCreators(incompleteOnly bool) ([]model.Recipient, error)

	SetUnsubscribed(id int, unsubscribed bool) error
	SetHardBounce(id int) error
	IncrementSent(id int) error
	IncrementOpens(id int) error
	IncrementClicks(id int) error
}

type RecipientRepository struct {
	DB *sql.DB
}

const recipientColumns = `id, profile_id, kind, email, name, tags, unsubscribed, hard_bounce,
	unsubscribe_token, sent_count, open_count, click_count, unsubscribed_at, created_at`

func scanRecipient(row interface{ Scan(...any) error }) (*model.Recipient, error) {
	var rec model.Recipient
	err := row.Scan(
		&rec.ID, &rec.ProfileID, &rec.Kind, &rec.Email, &rec.Name, &rec.Tags,
		&rec.Unsubscribed, &rec.HardBounce, &rec.UnsubscribeToken,
		&rec.SentCount, &rec.OpenCount, &rec.ClickCount, &rec.UnsubscribedAt, &rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *RecipientRepository) Create(rec *model.Recipient) error {
	rec.CreatedAt = time.Now()
	if rec.Kind == "" {
		rec.Kind = model.RecipientFan
	}
	query := `
        INSERT INTO recipients (profile_id, kind, email, name, tags, unsubscribe_token, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id
    `
	return r.DB.QueryRow(query,
		rec.ProfileID, rec.Kind, rec.Email, rec.Name, rec.Tags, rec.UnsubscribeToken, rec.CreatedAt,
	).Scan(&rec.ID)
}

func (r *RecipientRepository) GetByID(id int) (*model.Recipient, error) {
	query := `SELECT ` + recipientColumns + ` FROM recipients WHERE id=$1`
	rec, err := scanRecipient(r.DB.QueryRow(query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return rec, nil
}

func (r *RecipientRepository) GetByEmail(profileID *int, email string) (*model.Recipient, error) {
	var row *sql.Row
	if profileID == nil {
		row = r.DB.QueryRow(`SELECT `+recipientColumns+` FROM recipients WHERE profile_id IS NULL AND email=$1`, email)
	} else {
		row = r.DB.QueryRow(`SELECT `+recipientColumns+` FROM recipients WHERE profile_id=$1 AND email=$2`, *profileID, email)
	}
	rec, err := scanRecipient(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return rec, nil
}

func (r *RecipientRepository) GetByToken(token string) (*model.Recipient, error) {
	query := `SELECT ` + recipientColumns + ` FROM recipients WHERE unsubscribe_token=$1`
	rec, err := scanRecipient(r.DB.QueryRow(query, token))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return rec, nil
}

func (r *RecipientRepository) ListByProfile(profileID int, offset, limit int) ([]model.Recipient, int, error) {
	query := `SELECT ` + recipientColumns + `
        FROM recipients WHERE profile_id=$1 AND kind=$2
        ORDER BY id DESC LIMIT $3 OFFSET $4`
	rows, err := r.DB.Query(query, profileID, model.RecipientFan, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	recipients, err := collectRecipients(rows)
	if err != nil {
		return nil, 0, err
	}

	var total int
	err = r.DB.QueryRow(`SELECT COUNT(*) FROM recipients WHERE profile_id=$1 AND kind=$2`,
		profileID, model.RecipientFan).Scan(&total)
	if err != nil {
		return nil, 0, err
	}
	return recipients, total, nil
}

const sendableCond = ` AND unsubscribed=FALSE AND hard_bounce=FALSE`

func (r *RecipientRepository) ListSendableByProfile(profileID int, tags string) ([]model.Recipient, error) {
	query := `SELECT ` + recipientColumns + `
        FROM recipients WHERE profile_id=$1 AND kind=$2` + sendableCond
	args := []interface{}{profileID, model.RecipientFan}
	if tags != "" {
		query += ` AND string_to_array(tags, ',') && string_to_array($3, ',')`
		args = append(args, tags)
	}
	rows, err := r.DB.Query(query+` ORDER BY id ASC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRecipients(rows)
}

func (r *RecipientRepository) ListSendableFans(tags string) ([]model.Recipient, error) {
	query := `SELECT ` + recipientColumns + `
        FROM recipients WHERE kind=$1` + sendableCond
	args := []interface{}{model.RecipientFan}
	if tags != "" {
		query += ` AND string_to_array(tags, ',') && string_to_array($2, ',')`
		args = append(args, tags)
	}
	rows, err := r.DB.Query(query+` ORDER BY id ASC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRecipients(rows)
}

func (r *RecipientRepository) ListSendableCreators(incompleteOnly bool) ([]model.Recipient, error) {
	query := `SELECT ` + prefixColumns("r.", recipientColumns) + `
        FROM recipients r
        JOIN profiles p ON p.id = r.profile_id
        WHERE r.kind=$1 AND r.unsubscribed=FALSE AND r.hard_bounce=FALSE`
	if incompleteOnly {
		query += ` AND p.onboarding_complete=FALSE`
	}
	rows, err := r.DB.Query(query+` ORDER BY r.id ASC`, model.RecipientCreator)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRecipients(rows)
}

func (r *RecipientRepository) SetUnsubscribed(id int, unsubscribed bool) error {
	var query string
	if unsubscribed {
		query = `UPDATE recipients SET unsubscribed=TRUE, unsubscribed_at=NOW() WHERE id=$1`
	} else {
		query = `UPDATE recipients SET unsubscribed=FALSE, unsubscribed_at=NULL WHERE id=$1`
	}
	_, err := r.DB.Exec(query, id)
	return err
}

func (r *RecipientRepository) SetHardBounce(id int) error {
	_, err := r.DB.Exec(`UPDATE recipients SET hard_bounce=TRUE WHERE id=$1`, id)
	return err
}

func (r *RecipientRepository) IncrementSent(id int) error {
	_, err := r.DB.Exec(`UPDATE recipients SET sent_count=sent_count+1 WHERE id=$1`, id)
	return err
}

func (r *RecipientRepository) IncrementOpens(id int) error {
	_, err := r.DB.Exec(`UPDATE recipients SET open_count=open_count+1 WHERE id=$1`, id)
	return err
}

func (r *RecipientRepository) IncrementClicks(id int) error {
	_, err := r.DB.Exec(`UPDATE recipients SET click_count=click_count+1 WHERE id=$1`, id)
	return err
}

func collectRecipients(rows *sql.Rows) ([]model.Recipient, error) {
	recipients := []model.Recipient{}
	for rows.Next() {
		rec, err := scanRecipient(rows)
		if err != nil {
			return nil, err
		}
		recipients = append(recipients, *rec)
	}
	return recipients, rows.Err()
}

var _ RecipientRepositoryInterface = (*RecipientRepository)(nil)
