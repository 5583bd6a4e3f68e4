package models

import "time"

// ActivityEntry rows are append-only; nothing updates or deletes them.
type ActivityEntry struct {
	ID           int64     `db:"id" json:"id"`
	TenantID     int64     `db:"tenant_id" json:"tenant_id"`
	EntryType    string    `db:"entry_type" json:"entry_type"`
	PostID       int64     `db:"post_id" json:"post_id"`
	AccountID    int64     `db:"account_id" json:"account_id"`
	RemoteID     string    `db:"remote_id" json:"remote_id"`
	ErrorMessage string    `db:"error_message" json:"error_message"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

const (
	ActivityPostPublished = "post_published"
	ActivityPostFailed    = "post_failed"
	ActivityPostDeleted   = "post_deleted"
)
