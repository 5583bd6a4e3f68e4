package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"threadline/internal/models"
)

type ActivityRepository interface {
	Create(ctx context.Context, entry *models.ActivityEntry) (int64, error)
	ListByPostID(ctx context.Context, postID int64) ([]*models.ActivityEntry, error)
	LatestRemoteID(ctx context.Context, postID int64) (string, error)
}

type activityRepository struct {
	db *sql.DB
}

func NewActivityRepository(db *sql.DB) ActivityRepository {
	return &activityRepository{db: db}
}

func (r *activityRepository) Create(ctx context.Context, entry *models.ActivityEntry) (int64, error) {
	query := `
		INSERT INTO activity_log (tenant_id, entry_type, post_id, account_id, remote_id, error_message)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query, entry.TenantID, entry.EntryType,
		entry.PostID, entry.AccountID, entry.RemoteID, entry.ErrorMessage).Scan(&id)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func (r *activityRepository) ListByPostID(ctx context.Context, postID int64) ([]*models.ActivityEntry, error) {
	query := `SELECT id, tenant_id, entry_type, post_id, account_id, remote_id, error_message, created_at
		FROM activity_log WHERE post_id = $1 ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, postID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var entries []*models.ActivityEntry
	for rows.Next() {
		var entry models.ActivityEntry
		err := rows.Scan(&entry.ID, &entry.TenantID, &entry.EntryType, &entry.PostID,
			&entry.AccountID, &entry.RemoteID, &entry.ErrorMessage, &entry.CreatedAt)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		entries = append(entries, &entry)
	}
	return entries, nil
}

// LatestRemoteID recovers the remote post id from the log when the post row
// itself never captured one. Used by delete, which cannot proceed without it.
func (r *activityRepository) LatestRemoteID(ctx context.Context, postID int64) (string, error) {
	query := `SELECT remote_id FROM activity_log
		WHERE post_id = $1 AND entry_type = $2 AND remote_id <> ''
		ORDER BY created_at DESC LIMIT 1`

	var remoteID string
	err := r.db.QueryRowContext(ctx, query, postID, models.ActivityPostPublished).Scan(&remoteID)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		slog.Info(err.Error())
		return "", err
	}

	return remoteID, nil
}
