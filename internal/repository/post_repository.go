package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"threadline/internal/models"
)

type PostRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Post, error)
	ListDue(ctx context.Context, tenantID int64, now time.Time, limit int) ([]*models.Post, error)
	ListByTenantID(ctx context.Context, tenantID int64) ([]*models.Post, error)
	MarkPublished(ctx context.Context, postID int64, remoteID string, publishedAt time.Time) error
	MarkFailed(ctx context.Context, postID int64, errorMessage string) error
	MarkDeleted(ctx context.Context, postID int64) error
	Reschedule(ctx context.Context, postID int64, scheduledFor time.Time) error
	SetRemoteID(ctx context.Context, postID int64, remoteID string) error
}

type postRepository struct {
	db *sql.DB
}

func NewPostRepository(db *sql.DB) PostRepository {
	return &postRepository{db: db}
}

const postColumns = `id, tenant_id, account_id, content, topics, allow_replies, who_can_reply,
	status, scheduled_for, published_at, remote_id, last_error, created_at, updated_at`

func scanPost(row interface{ Scan(...interface{}) error }) (*models.Post, error) {
	var post models.Post
	err := row.Scan(&post.ID, &post.TenantID, &post.AccountID, &post.Content,
		pq.Array(&post.Topics), &post.AllowReplies, &post.WhoCanReply,
		&post.Status, &post.ScheduledFor, &post.PublishedAt, &post.RemoteID,
		&post.LastError, &post.CreatedAt, &post.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *postRepository) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = $1`
	post, err := scanPost(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return post, nil
}

func (r *postRepository) ListDue(ctx context.Context, tenantID int64, now time.Time, limit int) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts
		WHERE tenant_id = $1 AND status = $2 AND scheduled_for <= $3
		ORDER BY scheduled_for LIMIT $4`

	rows, err := r.db.QueryContext(ctx, query, tenantID, models.PostStatusScheduled, now, limit)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var posts []*models.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return posts, nil
}

func (r *postRepository) ListByTenantID(ctx context.Context, tenantID int64) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE tenant_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var posts []*models.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, nil
}

func (r *postRepository) MarkPublished(ctx context.Context, postID int64, remoteID string, publishedAt time.Time) error {
	query := `
		UPDATE posts
		SET status = $1,
			remote_id = $2,
			published_at = $3,
			last_error = '',
			updated_at = $4
		WHERE id = $5 AND status = $6
	`
	_, err := r.db.ExecContext(ctx, query, models.PostStatusPublished, remoteID, publishedAt, time.Now(), postID, models.PostStatusScheduled)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *postRepository) MarkFailed(ctx context.Context, postID int64, errorMessage string) error {
	query := `
		UPDATE posts
		SET status = $1,
			last_error = $2,
			updated_at = $3
		WHERE id = $4 AND status = $5
	`
	_, err := r.db.ExecContext(ctx, query, models.PostStatusFailed, errorMessage, time.Now(), postID, models.PostStatusScheduled)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *postRepository) MarkDeleted(ctx context.Context, postID int64) error {
	query := `
		UPDATE posts
		SET status = $1,
			updated_at = $2
		WHERE id = $3
	`
	_, err := r.db.ExecContext(ctx, query, models.PostStatusDeleted, time.Now(), postID)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *postRepository) Reschedule(ctx context.Context, postID int64, scheduledFor time.Time) error {
	query := `
		UPDATE posts
		SET scheduled_for = $1,
			updated_at = $2
		WHERE id = $3 AND status = $4
	`
	_, err := r.db.ExecContext(ctx, query, scheduledFor, time.Now(), postID, models.PostStatusScheduled)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

// SetRemoteID records the container/publish id the moment it is known, so a
// crash before the terminal status write still leaves a trail for the
// duplicate-post window.
func (r *postRepository) SetRemoteID(ctx context.Context, postID int64, remoteID string) error {
	query := `UPDATE posts SET remote_id = $1, updated_at = $2 WHERE id = $3`
	_, err := r.db.ExecContext(ctx, query, remoteID, time.Now(), postID)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
