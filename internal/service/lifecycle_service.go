package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"threadline/internal/models"
	"threadline/internal/repository"
)

// LifecycleService owns every scheduled → {published|failed} transition.
// One dispatch attempt produces exactly one status mutation and at most one
// activity-log append.
type LifecycleService interface {
	ProcessDuePost(ctx context.Context, postID int64) error
	DeletePost(ctx context.Context, tenantID, postID int64) error
}

type lifecycleService struct {
	pr  repository.PostRepository
	ar  repository.AccountRepository
	act repository.ActivityRepository
	rl  RateLimitService
	pub PublisherService
}

func NewLifecycleService(
	pr repository.PostRepository,
	ar repository.AccountRepository,
	act repository.ActivityRepository,
	rl RateLimitService,
	pub PublisherService) LifecycleService {
	return &lifecycleService{
		pr:  pr,
		ar:  ar,
		act: act,
		rl:  rl,
		pub: pub,
	}
}

func (s *lifecycleService) ProcessDuePost(ctx context.Context, postID int64) error {
	post, err := s.pr.GetByID(ctx, postID)
	if err != nil {
		return err
	}
	if post == nil || post.Status != models.PostStatusScheduled {
		return nil
	}

	account, err := s.ar.GetByID(ctx, post.AccountID)
	if err != nil {
		return err
	}
	if account == nil {
		return s.recordFailure(ctx, post, internalError("linked account no longer exists", nil))
	}

	release, ok, err := s.rl.LockAccount(ctx, account.ID)
	if err != nil {
		return err
	}
	if !ok {
		// Another dispatch instance is publishing to this account right
		// now. The post stays scheduled; the next tick picks it up.
		return nil
	}
	defer release()

	// Re-read under the lock; a concurrent run may have finished this post
	// while we waited our turn.
	post, err = s.pr.GetByID(ctx, postID)
	if err != nil {
		return err
	}
	if post == nil || post.Status != models.PostStatusScheduled {
		return nil
	}

	if len([]rune(post.Content)) > models.MaxContentLength {
		return s.recordFailure(ctx, post, remoteRejected("content exceeds the platform character limit"))
	}

	check, err := s.rl.CheckSafety(ctx, account.ID)
	if err != nil {
		return err
	}
	if !check.Allowed {
		return s.reschedule(ctx, post, check)
	}

	result := s.pub.ForAccount(account).Publish(ctx, account, post)
	if result.Success {
		return s.recordPublished(ctx, post, result.RemoteID)
	}
	return s.recordFailure(ctx, post, result.Err)
}

// reschedule is a deferral, not a failure: no status change beyond the new
// scheduled_for, and no activity entry.
func (s *lifecycleService) reschedule(ctx context.Context, post *models.Post, check *SafetyCheck) error {
	next := check.NextAvailableAt
	if now := time.Now(); next.Before(now) {
		next = now.Add(time.Minute)
	}

	slog.Info(fmt.Sprintf("deferring post %d: %s (next attempt %s)", post.ID, check.Reason, next.Format(time.RFC3339)))
	return s.pr.Reschedule(ctx, post.ID, next)
}

func (s *lifecycleService) recordPublished(ctx context.Context, post *models.Post, remoteID string) error {
	if err := s.pr.MarkPublished(ctx, post.ID, remoteID, time.Now()); err != nil {
		return fmt.Errorf("failed to record publish of post %d: %w", post.ID, err)
	}

	entry := &models.ActivityEntry{
		TenantID:  post.TenantID,
		EntryType: models.ActivityPostPublished,
		PostID:    post.ID,
		AccountID: post.AccountID,
		RemoteID:  remoteID,
	}
	if _, err := s.act.Create(ctx, entry); err != nil {
		slog.Info(fmt.Sprintf("failed to append activity entry for post %d: %v", post.ID, err))
	}

	if err := s.rl.RecordSuccess(ctx, post.AccountID); err != nil {
		slog.Info(fmt.Sprintf("failed to record publish counters for account %d: %v", post.AccountID, err))
	}

	return nil
}

func (s *lifecycleService) recordFailure(ctx context.Context, post *models.Post, perr *PublishError) error {
	message := "publish failed"
	if perr != nil {
		message = perr.Error()
	}

	if err := s.pr.MarkFailed(ctx, post.ID, message); err != nil {
		return fmt.Errorf("failed to record failure of post %d: %w", post.ID, err)
	}

	entry := &models.ActivityEntry{
		TenantID:     post.TenantID,
		EntryType:    models.ActivityPostFailed,
		PostID:       post.ID,
		AccountID:    post.AccountID,
		ErrorMessage: message,
	}
	if _, err := s.act.Create(ctx, entry); err != nil {
		slog.Info(fmt.Sprintf("failed to append activity entry for post %d: %v", post.ID, err))
	}

	return nil
}

func (s *lifecycleService) DeletePost(ctx context.Context, tenantID, postID int64) error {
	post, err := s.pr.GetByID(ctx, postID)
	if err != nil {
		return err
	}
	if post == nil || post.TenantID != tenantID {
		return errors.New("post not found")
	}
	if post.Status == models.PostStatusDeleted {
		return nil
	}

	if post.Status == models.PostStatusPublished {
		remoteID := post.RemoteID
		if remoteID == "" {
			// The post row may have missed the id on a crash; the activity
			// log keeps a copy.
			remoteID, err = s.act.LatestRemoteID(ctx, postID)
			if err != nil {
				return err
			}
		}
		if remoteID == "" {
			return errors.New("cannot delete published post without a remote id")
		}

		account, err := s.ar.GetByID(ctx, post.AccountID)
		if err != nil {
			return err
		}
		if account == nil {
			return errors.New("linked account no longer exists")
		}

		if err := s.pub.ForAccount(account).Delete(ctx, account, remoteID); err != nil {
			return fmt.Errorf("remote delete failed: %w", err)
		}
	}

	if err := s.pr.MarkDeleted(ctx, postID); err != nil {
		return err
	}

	entry := &models.ActivityEntry{
		TenantID:  post.TenantID,
		EntryType: models.ActivityPostDeleted,
		PostID:    post.ID,
		AccountID: post.AccountID,
		RemoteID:  post.RemoteID,
	}
	if _, err := s.act.Create(ctx, entry); err != nil {
		slog.Info(fmt.Sprintf("failed to append activity entry for post %d: %v", post.ID, err))
	}

	return nil
}
