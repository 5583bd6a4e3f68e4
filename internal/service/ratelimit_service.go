package service

import (
	"context"
	"errors"
	"time"

	config "threadline/configs"
	"threadline/internal/models"
	"threadline/internal/repository"
)

const casRetries = 5

// SafetyCheck is the rate limiter's verdict for one account right now. A
// refusal is a deferral, not an error: NextAvailableAt tells the caller
// where to push scheduled_for so the post stops re-evaluating every tick.
type SafetyCheck struct {
	Allowed         bool
	Reason          string
	NextAvailableAt time.Time
}

type RateLimitService interface {
	LockAccount(ctx context.Context, accountID int64) (release func(), ok bool, err error)
	CheckSafety(ctx context.Context, accountID int64) (*SafetyCheck, error)
	RecordSuccess(ctx context.Context, accountID int64) error
}

type rateLimitService struct {
	limits config.RateLimits
	rl     repository.RateLimitRepository
}

func NewRateLimitService(limits config.RateLimits, rl repository.RateLimitRepository) RateLimitService {
	return &rateLimitService{limits: limits, rl: rl}
}

// LockAccount serializes all dispatch work on one account. CheckSafety and
// RecordSuccess are only meaningful while the caller holds this lock;
// without it two overlapping dispatchers could both pass the check before
// either records.
func (s *rateLimitService) LockAccount(ctx context.Context, accountID int64) (func(), bool, error) {
	return s.rl.AcquireAccountLock(ctx, accountID)
}

func (s *rateLimitService) CheckSafety(ctx context.Context, accountID int64) (*SafetyCheck, error) {
	rl, err := s.rl.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if rl == nil {
		return &SafetyCheck{Allowed: true}, nil
	}

	now := time.Now()
	hourCount, dayCount := effectiveCounts(rl, now)

	if rl.LastPublishAt != nil {
		elapsed := now.Sub(*rl.LastPublishAt)
		if elapsed < s.limits.MinSpacing {
			return &SafetyCheck{
				Reason:          "minimum spacing between publishes not yet elapsed",
				NextAvailableAt: rl.LastPublishAt.Add(s.limits.MinSpacing),
			}, nil
		}
	}

	if hourCount >= s.limits.HourlyCap {
		return &SafetyCheck{
			Reason:          "hourly publish cap reached",
			NextAvailableAt: rl.HourWindowResetAt,
		}, nil
	}

	if dayCount >= s.limits.DailyCap {
		return &SafetyCheck{
			Reason:          "daily publish cap reached",
			NextAvailableAt: startOfUTCDay(now).AddDate(0, 0, 1),
		}, nil
	}

	return &SafetyCheck{Allowed: true}, nil
}

func (s *rateLimitService) RecordSuccess(ctx context.Context, accountID int64) error {
	for attempt := 0; attempt < casRetries; attempt++ {
		rl, err := s.rl.Get(ctx, accountID)
		if err != nil {
			return err
		}

		now := time.Now()

		if rl == nil {
			fresh := &models.RateLimit{
				AccountID:         accountID,
				LastPublishAt:     &now,
				HourCount:         1,
				HourWindowResetAt: now.Add(time.Hour),
				DayCount:          1,
				DayResetAt:        startOfUTCDay(now),
				Version:           1,
			}
			if err := s.rl.Insert(ctx, fresh); err == nil {
				return nil
			}
			// Lost the insert race; retry as an update.
			continue
		}

		if now.After(rl.HourWindowResetAt) {
			rl.HourCount = 0
			rl.HourWindowResetAt = now.Add(time.Hour)
		}
		if rl.DayResetAt.Before(startOfUTCDay(now)) {
			rl.DayCount = 0
			rl.DayResetAt = startOfUTCDay(now)
		}

		rl.HourCount++
		rl.DayCount++
		rl.LastPublishAt = &now

		ok, err := s.rl.CompareAndSwap(ctx, rl)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}

	return errors.New("rate limit counters contended beyond retry budget")
}

// effectiveCounts applies window resets without writing them back, clamping
// at zero so clock skew between dispatcher runs never yields a negative
// remaining budget.
func effectiveCounts(rl *models.RateLimit, now time.Time) (hourCount, dayCount int) {
	hourCount = rl.HourCount
	if now.After(rl.HourWindowResetAt) {
		hourCount = 0
	}

	dayCount = rl.DayCount
	if rl.DayResetAt.Before(startOfUTCDay(now)) {
		dayCount = 0
	}

	if hourCount < 0 {
		hourCount = 0
	}
	if dayCount < 0 {
		dayCount = 0
	}
	return hourCount, dayCount
}

func startOfUTCDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
