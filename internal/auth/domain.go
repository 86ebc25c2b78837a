package auth

import "time"

// Account is a console login: the credentials behind a Principal.
type Account struct {
	UID          string
	Email        string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
