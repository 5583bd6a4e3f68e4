package models

import "time"

type Post struct {
	ID           int64      `db:"id" json:"id"`
	TenantID     int64      `db:"tenant_id" json:"tenant_id"`
	AccountID    int64      `db:"account_id" json:"account_id"`
	Content      string     `db:"content" json:"content"`
	Topics       []string   `db:"topics" json:"topics"`
	AllowReplies bool       `db:"allow_replies" json:"allow_replies"`
	WhoCanReply  string     `db:"who_can_reply" json:"who_can_reply"`
	Status       string     `db:"status" json:"status"` // draft, scheduled, published, failed, deleted
	ScheduledFor *time.Time `db:"scheduled_for" json:"scheduled_for"`
	PublishedAt  *time.Time `db:"published_at" json:"published_at"`
	RemoteID     string     `db:"remote_id" json:"remote_id"`
	LastError    string     `db:"last_error" json:"last_error"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

type PostMedia struct {
	PostID       int64     `db:"post_id"`
	MediaType    string    `db:"media_type"` // image, video
	SourceURL    string    `db:"source_url"`
	DisplayOrder int       `db:"display_order"`
	CreatedAt    time.Time `db:"created_at"`
}

const (
	PostStatusDraft     = "draft"
	PostStatusScheduled = "scheduled"
	PostStatusPublished = "published"
	PostStatusFailed    = "failed"
	PostStatusDeleted   = "deleted"
)

const (
	MediaTypeImage = "image"
	MediaTypeVideo = "video"
)

const (
	ReplyEveryone  = "everyone"
	ReplyFollowers = "followers"
	ReplyMentioned = "mentioned"
)

const MaxContentLength = 500
