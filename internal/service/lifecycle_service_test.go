package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"threadline/internal/models"
)

type stubPostRepo struct {
	posts       map[int64]*models.Post
	rescheduled map[int64]time.Time
}

func newStubPostRepo(posts ...*models.Post) *stubPostRepo {
	r := &stubPostRepo{
		posts:       make(map[int64]*models.Post),
		rescheduled: make(map[int64]time.Time),
	}
	for _, p := range posts {
		r.posts[p.ID] = p
	}
	return r
}

func (r *stubPostRepo) GetByID(_ context.Context, id int64) (*models.Post, error) {
	p, ok := r.posts[id]
	if !ok {
		return nil, nil
	}
	clone := *p
	return &clone, nil
}

func (r *stubPostRepo) ListDue(_ context.Context, tenantID int64, now time.Time, limit int) ([]*models.Post, error) {
	var due []*models.Post
	for _, p := range r.posts {
		if p.TenantID != tenantID || p.Status != models.PostStatusScheduled {
			continue
		}
		if p.ScheduledFor != nil && p.ScheduledFor.After(now) {
			continue
		}
		clone := *p
		due = append(due, &clone)
		if len(due) == limit {
			break
		}
	}
	return due, nil
}

func (r *stubPostRepo) ListByTenantID(_ context.Context, tenantID int64) ([]*models.Post, error) {
	var out []*models.Post
	for _, p := range r.posts {
		if p.TenantID == tenantID {
			clone := *p
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *stubPostRepo) MarkPublished(_ context.Context, postID int64, remoteID string, publishedAt time.Time) error {
	p := r.posts[postID]
	p.Status = models.PostStatusPublished
	p.RemoteID = remoteID
	p.PublishedAt = &publishedAt
	return nil
}

func (r *stubPostRepo) MarkFailed(_ context.Context, postID int64, errorMessage string) error {
	p := r.posts[postID]
	p.Status = models.PostStatusFailed
	p.LastError = errorMessage
	return nil
}

func (r *stubPostRepo) MarkDeleted(_ context.Context, postID int64) error {
	r.posts[postID].Status = models.PostStatusDeleted
	return nil
}

func (r *stubPostRepo) Reschedule(_ context.Context, postID int64, scheduledFor time.Time) error {
	r.rescheduled[postID] = scheduledFor
	p := r.posts[postID]
	p.ScheduledFor = &scheduledFor
	return nil
}

func (r *stubPostRepo) SetRemoteID(_ context.Context, postID int64, remoteID string) error {
	r.posts[postID].RemoteID = remoteID
	return nil
}

type stubAccountRepo struct {
	accounts map[int64]*models.Account
}

func (r *stubAccountRepo) GetByID(_ context.Context, id int64) (*models.Account, error) {
	a, ok := r.accounts[id]
	if !ok {
		return nil, nil
	}
	return a, nil
}

func (r *stubAccountRepo) ListByTenantID(context.Context, int64) ([]*models.Account, error) {
	return nil, nil
}

func (r *stubAccountRepo) ListTokenExpiring(context.Context, time.Time, time.Time) ([]*models.Account, error) {
	return nil, nil
}

func (r *stubAccountRepo) SetAccessToken(context.Context, int64, string, time.Time) error {
	return nil
}

func (r *stubAccountRepo) Remove(context.Context, int64) error { return nil }

type stubActivityRepo struct {
	entries []*models.ActivityEntry
}

func (r *stubActivityRepo) Create(_ context.Context, entry *models.ActivityEntry) (int64, error) {
	clone := *entry
	clone.ID = int64(len(r.entries) + 1)
	r.entries = append(r.entries, &clone)
	return clone.ID, nil
}

func (r *stubActivityRepo) ListByPostID(_ context.Context, postID int64) ([]*models.ActivityEntry, error) {
	var out []*models.ActivityEntry
	for _, e := range r.entries {
		if e.PostID == postID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *stubActivityRepo) LatestRemoteID(_ context.Context, postID int64) (string, error) {
	for i := len(r.entries) - 1; i >= 0; i-- {
		e := r.entries[i]
		if e.PostID == postID && e.EntryType == models.ActivityPostPublished && e.RemoteID != "" {
			return e.RemoteID, nil
		}
	}
	return "", nil
}

type stubLimiter struct {
	check     *SafetyCheck
	successes int
}

func (l *stubLimiter) LockAccount(context.Context, int64) (func(), bool, error) {
	return func() {}, true, nil
}

func (l *stubLimiter) CheckSafety(context.Context, int64) (*SafetyCheck, error) {
	if l.check != nil {
		return l.check, nil
	}
	return &SafetyCheck{Allowed: true}, nil
}

func (l *stubLimiter) RecordSuccess(context.Context, int64) error {
	l.successes++
	return nil
}

type stubPublisher struct {
	result  PublishResult
	deleted []string
}

func (p *stubPublisher) Publish(context.Context, *models.Account, *models.Post) PublishResult {
	return p.result
}

func (p *stubPublisher) Delete(_ context.Context, _ *models.Account, remoteID string) error {
	p.deleted = append(p.deleted, remoteID)
	return nil
}

type stubPublisherService struct {
	pub Publisher
}

func (s *stubPublisherService) ForAccount(*models.Account) Publisher { return s.pub }

func scheduledPost(id int64) *models.Post {
	earlier := time.Now().Add(-time.Minute)
	return &models.Post{
		ID:           id,
		TenantID:     1,
		AccountID:    10,
		Content:      "hello",
		Status:       models.PostStatusScheduled,
		ScheduledFor: &earlier,
	}
}

func graphAccount() *models.Account {
	return &models.Account{ID: 10, TenantID: 1, PostingMethod: models.PostingMethodGraph}
}

func newTestLifecycle(pr *stubPostRepo, ar *stubAccountRepo, act *stubActivityRepo, rl *stubLimiter, pub Publisher) LifecycleService {
	return NewLifecycleService(pr, ar, act, rl, &stubPublisherService{pub: pub})
}

func TestProcessDuePostSuccess(t *testing.T) {
	pr := newStubPostRepo(scheduledPost(1))
	ar := &stubAccountRepo{accounts: map[int64]*models.Account{10: graphAccount()}}
	act := &stubActivityRepo{}
	rl := &stubLimiter{}
	pub := &stubPublisher{result: publishSuccess("rem_123")}

	svc := newTestLifecycle(pr, ar, act, rl, pub)
	if err := svc.ProcessDuePost(context.Background(), 1); err != nil {
		t.Fatal(err)
	}

	post := pr.posts[1]
	if post.Status != models.PostStatusPublished {
		t.Fatalf("status = %q, want published", post.Status)
	}
	if post.RemoteID != "rem_123" {
		t.Errorf("remote id = %q, want rem_123", post.RemoteID)
	}
	if len(act.entries) != 1 || act.entries[0].EntryType != models.ActivityPostPublished {
		t.Errorf("expected a single post_published activity entry, got %d entries", len(act.entries))
	}
	if rl.successes != 1 {
		t.Errorf("rate counters recorded %d successes, want 1", rl.successes)
	}
}

func TestProcessDuePostFailureNeverPublishes(t *testing.T) {
	pr := newStubPostRepo(scheduledPost(1))
	ar := &stubAccountRepo{accounts: map[int64]*models.Account{10: graphAccount()}}
	act := &stubActivityRepo{}
	rl := &stubLimiter{}
	pub := &stubPublisher{result: publishFailure(remoteRejected("media rejected"))}

	svc := newTestLifecycle(pr, ar, act, rl, pub)
	if err := svc.ProcessDuePost(context.Background(), 1); err != nil {
		t.Fatal(err)
	}

	post := pr.posts[1]
	if post.Status != models.PostStatusFailed {
		t.Fatalf("status = %q, want failed", post.Status)
	}
	if post.LastError == "" {
		t.Error("failure reason not recorded on the post")
	}
	if len(act.entries) != 1 || act.entries[0].EntryType != models.ActivityPostFailed {
		t.Errorf("expected a single post_failed activity entry, got %d entries", len(act.entries))
	}
	if rl.successes != 0 {
		t.Errorf("failed publish must not count against rate limits, recorded %d", rl.successes)
	}
}

func TestProcessDuePostRefusalReschedules(t *testing.T) {
	pr := newStubPostRepo(scheduledPost(1))
	ar := &stubAccountRepo{accounts: map[int64]*models.Account{10: graphAccount()}}
	act := &stubActivityRepo{}
	next := time.Now().Add(30 * time.Minute)
	rl := &stubLimiter{check: &SafetyCheck{Reason: "hourly publish cap reached", NextAvailableAt: next}}

	svc := newTestLifecycle(pr, ar, act, rl, &stubPublisher{})
	if err := svc.ProcessDuePost(context.Background(), 1); err != nil {
		t.Fatal(err)
	}

	post := pr.posts[1]
	if post.Status != models.PostStatusScheduled {
		t.Fatalf("a deferral must leave the post scheduled, got %q", post.Status)
	}
	got, ok := pr.rescheduled[1]
	if !ok {
		t.Fatal("post was not rescheduled")
	}
	if !got.Equal(next) {
		t.Errorf("rescheduled to %v, want %v", got, next)
	}
	if len(act.entries) != 0 {
		t.Errorf("a deferral must not append activity entries, got %d", len(act.entries))
	}
}

func TestProcessDuePostRefusalInPastPushesForward(t *testing.T) {
	pr := newStubPostRepo(scheduledPost(1))
	ar := &stubAccountRepo{accounts: map[int64]*models.Account{10: graphAccount()}}
	rl := &stubLimiter{check: &SafetyCheck{Reason: "hourly publish cap reached", NextAvailableAt: time.Now().Add(-time.Hour)}}

	svc := newTestLifecycle(pr, ar, &stubActivityRepo{}, rl, &stubPublisher{})
	if err := svc.ProcessDuePost(context.Background(), 1); err != nil {
		t.Fatal(err)
	}

	got := pr.rescheduled[1]
	if !got.After(time.Now()) {
		t.Errorf("a stale NextAvailableAt must be pushed into the future, got %v", got)
	}
}

func TestProcessDuePostOverlongContentFails(t *testing.T) {
	post := scheduledPost(1)
	post.Content = strings.Repeat("a", models.MaxContentLength+1)
	pr := newStubPostRepo(post)
	ar := &stubAccountRepo{accounts: map[int64]*models.Account{10: graphAccount()}}
	rl := &stubLimiter{}

	svc := newTestLifecycle(pr, ar, &stubActivityRepo{}, rl, &stubPublisher{result: publishSuccess("never")})
	if err := svc.ProcessDuePost(context.Background(), 1); err != nil {
		t.Fatal(err)
	}

	if pr.posts[1].Status != models.PostStatusFailed {
		t.Errorf("overlong content should fail without a remote call, got %q", pr.posts[1].Status)
	}
	if rl.successes != 0 {
		t.Errorf("pre-flight failure must not count against rate limits")
	}
}

func TestProcessDuePostMissingAccountFails(t *testing.T) {
	pr := newStubPostRepo(scheduledPost(1))
	ar := &stubAccountRepo{accounts: map[int64]*models.Account{}}
	act := &stubActivityRepo{}

	svc := newTestLifecycle(pr, ar, act, &stubLimiter{}, &stubPublisher{})
	if err := svc.ProcessDuePost(context.Background(), 1); err != nil {
		t.Fatal(err)
	}

	if pr.posts[1].Status != models.PostStatusFailed {
		t.Errorf("post with no linked account should fail, got %q", pr.posts[1].Status)
	}
}

func TestProcessDuePostIgnoresNonScheduled(t *testing.T) {
	post := scheduledPost(1)
	post.Status = models.PostStatusPublished
	pr := newStubPostRepo(post)
	act := &stubActivityRepo{}

	svc := newTestLifecycle(pr, &stubAccountRepo{}, act, &stubLimiter{}, &stubPublisher{})
	if err := svc.ProcessDuePost(context.Background(), 1); err != nil {
		t.Fatal(err)
	}

	if pr.posts[1].Status != models.PostStatusPublished {
		t.Errorf("already-published post must not change status, got %q", pr.posts[1].Status)
	}
	if len(act.entries) != 0 {
		t.Errorf("no activity entries expected, got %d", len(act.entries))
	}
}

func TestDeletePublishedPostRemovesRemote(t *testing.T) {
	post := scheduledPost(1)
	post.Status = models.PostStatusPublished
	post.RemoteID = "rem_9"
	pr := newStubPostRepo(post)
	ar := &stubAccountRepo{accounts: map[int64]*models.Account{10: graphAccount()}}
	act := &stubActivityRepo{}
	pub := &stubPublisher{}

	svc := newTestLifecycle(pr, ar, act, &stubLimiter{}, pub)
	if err := svc.DeletePost(context.Background(), 1, 1); err != nil {
		t.Fatal(err)
	}

	if len(pub.deleted) != 1 || pub.deleted[0] != "rem_9" {
		t.Errorf("remote delete calls = %v, want [rem_9]", pub.deleted)
	}
	if pr.posts[1].Status != models.PostStatusDeleted {
		t.Errorf("status = %q, want deleted", pr.posts[1].Status)
	}
	if len(act.entries) != 1 || act.entries[0].EntryType != models.ActivityPostDeleted {
		t.Errorf("expected a single post_deleted activity entry, got %d entries", len(act.entries))
	}
}

func TestDeletePublishedPostRecoversRemoteIDFromActivity(t *testing.T) {
	post := scheduledPost(1)
	post.Status = models.PostStatusPublished
	pr := newStubPostRepo(post)
	ar := &stubAccountRepo{accounts: map[int64]*models.Account{10: graphAccount()}}
	act := &stubActivityRepo{}
	act.Create(context.Background(), &models.ActivityEntry{
		TenantID:  1,
		EntryType: models.ActivityPostPublished,
		PostID:    1,
		AccountID: 10,
		RemoteID:  "rem_recovered",
	})
	pub := &stubPublisher{}

	svc := newTestLifecycle(pr, ar, act, &stubLimiter{}, pub)
	if err := svc.DeletePost(context.Background(), 1, 1); err != nil {
		t.Fatal(err)
	}

	if len(pub.deleted) != 1 || pub.deleted[0] != "rem_recovered" {
		t.Errorf("remote delete calls = %v, want [rem_recovered]", pub.deleted)
	}
}

func TestDeletePostWrongTenantRefused(t *testing.T) {
	pr := newStubPostRepo(scheduledPost(1))
	svc := newTestLifecycle(pr, &stubAccountRepo{}, &stubActivityRepo{}, &stubLimiter{}, &stubPublisher{})

	if err := svc.DeletePost(context.Background(), 99, 1); err == nil {
		t.Fatal("deleting another tenant's post must be refused")
	}
	if pr.posts[1].Status != models.PostStatusScheduled {
		t.Errorf("refused delete must not mutate the post, got %q", pr.posts[1].Status)
	}
}

func TestDeleteScheduledPostSkipsRemote(t *testing.T) {
	pr := newStubPostRepo(scheduledPost(1))
	pub := &stubPublisher{}

	svc := newTestLifecycle(pr, &stubAccountRepo{}, &stubActivityRepo{}, &stubLimiter{}, pub)
	if err := svc.DeletePost(context.Background(), 1, 1); err != nil {
		t.Fatal(err)
	}

	if len(pub.deleted) != 0 {
		t.Errorf("unpublished post must not trigger a remote delete, got %v", pub.deleted)
	}
	if pr.posts[1].Status != models.PostStatusDeleted {
		t.Errorf("status = %q, want deleted", pr.posts[1].Status)
	}
}
