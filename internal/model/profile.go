// internal/model/profile.go
package model

import "time"

type Profile struct {
	ID                 int        `db:"id" json:"id"`
	Handle             string     `db:"handle" json:"handle"`
	Name               string     `db:"name" json:"name"`
	Email              string     `db:"email" json:"email"`
	OnboardingComplete bool       `db:"onboarding_complete" json:"onboarding_complete"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt          *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}
