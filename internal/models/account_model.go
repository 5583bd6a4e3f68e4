package models

import (
	"time"
)

// Account credential columns hold vault ciphertext, never plaintext.
// Only the columns belonging to the active posting method are valid;
// the rest may be stale leftovers from a previous link.
type Account struct {
	ID             int64     `db:"id" json:"id"`
	TenantID       int64     `db:"tenant_id" json:"tenant_id"`
	Username       string    `db:"username" json:"username"`
	PostingMethod  string    `db:"posting_method" json:"posting_method"`
	RemoteUserID   string    `db:"remote_user_id" json:"remote_user_id"`
	AccessToken    string    `db:"access_token" json:"-"`
	TokenExpiresAt time.Time `db:"token_expires_at" json:"token_expires_at"`
	SessionToken   string    `db:"session_token" json:"-"`
	CSRFToken      string    `db:"csrf_token" json:"-"`
	DeviceID       string    `db:"device_id" json:"-"`
	MachineID      string    `db:"machine_id" json:"-"`
	AccountStatus  string    `db:"account_status" json:"account_status"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

const (
	PostingMethodGraph   = "graph"
	PostingMethodWeb     = "web"
	PostingMethodBrowser = "browser"
)
