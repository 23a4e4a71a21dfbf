package loginsession

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("session not found")

// Session is an access token the dev backend has issued and not revoked
type Session struct {
	UserID    string    `json:"userId"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Repo tracks issued tokens by their jti claim
type Repo interface {
	Upsert(tokenID string, session Session) error
	Get(tokenID string) (Session, error)
	Delete(tokenID string) error
}
