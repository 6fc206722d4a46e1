package repository

import (
	"database/sql"
	"time"

	appErrors "github.com/flmlnk/flmlnk-backend/internal/errors"
	"github.com/flmlnk/flmlnk-backend/internal/model"
)

type ProfileRepositoryInterface interface {
	Create(p *model.Profile) error
	GetByID(id int) (*model.Profile, error)
	GetByHandle(handle string) (*model.Profile, error)
	SetOnboardingComplete(id int) error
}

type ProfileRepository struct {
	DB *sql.DB
}

func (r *ProfileRepository) Create(p *model.Profile) error {
	p.CreatedAt = time.Now()
	query := `
        INSERT INTO profiles (handle, name, email, onboarding_complete, created_at)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id
    `
	return r.DB.QueryRow(query, p.Handle, p.Name, p.Email, p.OnboardingComplete, p.CreatedAt).Scan(&p.ID)
}

func (r *ProfileRepository) GetByID(id int) (*model.Profile, error) {
	query := `
        SELECT id, handle, name, email, onboarding_complete, created_at, updated_at
        FROM profiles WHERE id=$1
    `
	var p model.Profile
	err := r.DB.QueryRow(query, id).Scan(&p.ID, &p.Handle, &p.Name, &p.Email, &p.OnboardingComplete, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewProfileNotFound(id)
		}
		return nil, err
	}
	return &p, nil
}

func (r *ProfileRepository) GetByHandle(handle string) (*model.Profile, error) {
	query := `
        SELECT id, handle, name, email, onboarding_complete, created_at, updated_at
        FROM profiles WHERE handle=$1
    `
	var p model.Profile
	err := r.DB.QueryRow(query, handle).Scan(&p.ID, &p.Handle, &p.Name, &p.Email, &p.OnboardingComplete, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (r *ProfileRepository) SetOnboardingComplete(id int) error {
	_, err := r.DB.Exec(`UPDATE profiles SET onboarding_complete=TRUE, updated_at=NOW() WHERE id=$1`, id)
	return err
}

var _ ProfileRepositoryInterface = (*ProfileRepository)(nil)
