package job

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"threadline/internal/models"
)

type stubTenantRepo struct {
	ids []int64
}

func (r *stubTenantRepo) ListIDs(context.Context) ([]int64, error) {
	return r.ids, nil
}

type stubPostRepo struct {
	due map[int64][]*models.Post
}

func (r *stubPostRepo) GetByID(context.Context, int64) (*models.Post, error) { return nil, nil }

func (r *stubPostRepo) ListDue(_ context.Context, tenantID int64, _ time.Time, limit int) ([]*models.Post, error) {
	posts := r.due[tenantID]
	if len(posts) > limit {
		posts = posts[:limit]
	}
	return posts, nil
}

func (r *stubPostRepo) ListByTenantID(context.Context, int64) ([]*models.Post, error) {
	return nil, nil
}

func (r *stubPostRepo) MarkPublished(context.Context, int64, string, time.Time) error { return nil }
func (r *stubPostRepo) MarkFailed(context.Context, int64, string) error               { return nil }
func (r *stubPostRepo) MarkDeleted(context.Context, int64) error                      { return nil }
func (r *stubPostRepo) Reschedule(context.Context, int64, time.Time) error            { return nil }
func (r *stubPostRepo) SetRemoteID(context.Context, int64, string) error              { return nil }

type recordingLifecycle struct {
	mu        sync.Mutex
	processed []int64
	panicOn   int64
}

func (l *recordingLifecycle) ProcessDuePost(_ context.Context, postID int64) error {
	if postID == l.panicOn {
		panic("boom")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.processed = append(l.processed, postID)
	return nil
}

func (l *recordingLifecycle) DeletePost(context.Context, int64, int64) error { return nil }

func duePost(id, accountID int64) *models.Post {
	return &models.Post{ID: id, TenantID: 1, AccountID: accountID, Status: models.PostStatusScheduled}
}

func TestTickProcessesAllTenants(t *testing.T) {
	pr := &stubPostRepo{due: map[int64][]*models.Post{
		1: {duePost(1, 10), duePost(2, 10)},
		2: {duePost(3, 20)},
	}}
	lc := &recordingLifecycle{}

	job := NewDispatchJob(10, &stubTenantRepo{ids: []int64{1, 2}}, pr, lc)
	job.Tick()

	sort.Slice(lc.processed, func(i, j int) bool { return lc.processed[i] < lc.processed[j] })
	want := []int64{1, 2, 3}
	if len(lc.processed) != len(want) {
		t.Fatalf("processed %v, want %v", lc.processed, want)
	}
	for i := range want {
		if lc.processed[i] != want[i] {
			t.Fatalf("processed %v, want %v", lc.processed, want)
		}
	}
}

func TestTickRespectsPageSize(t *testing.T) {
	pr := &stubPostRepo{due: map[int64][]*models.Post{
		1: {duePost(1, 10), duePost(2, 10), duePost(3, 10), duePost(4, 10)},
	}}
	lc := &recordingLifecycle{}

	job := NewDispatchJob(2, &stubTenantRepo{ids: []int64{1}}, pr, lc)
	job.Tick()

	if len(lc.processed) != 2 {
		t.Errorf("processed %d posts, want the page size of 2", len(lc.processed))
	}
}

// A panic in one post must not take down its siblings, in the same account
// or any other.
func TestTickIsolatesFaults(t *testing.T) {
	pr := &stubPostRepo{due: map[int64][]*models.Post{
		1: {duePost(1, 10), duePost(2, 10), duePost(3, 20)},
	}}
	lc := &recordingLifecycle{panicOn: 1}

	job := NewDispatchJob(10, &stubTenantRepo{ids: []int64{1}}, pr, lc)
	job.Tick()

	sort.Slice(lc.processed, func(i, j int) bool { return lc.processed[i] < lc.processed[j] })
	if len(lc.processed) != 2 || lc.processed[0] != 2 || lc.processed[1] != 3 {
		t.Errorf("processed %v, want [2 3]", lc.processed)
	}
}

// Posts sharing an account are handed to the lifecycle in schedule order.
func TestSameAccountPostsRunInOrder(t *testing.T) {
	pr := &stubPostRepo{due: map[int64][]*models.Post{
		1: {duePost(5, 10), duePost(6, 10), duePost(7, 10)},
	}}
	lc := &recordingLifecycle{}

	job := NewDispatchJob(10, &stubTenantRepo{ids: []int64{1}}, pr, lc)
	job.Tick()

	want := []int64{5, 6, 7}
	if len(lc.processed) != len(want) {
		t.Fatalf("processed %v, want %v", lc.processed, want)
	}
	for i := range want {
		if lc.processed[i] != want[i] {
			t.Fatalf("processed %v, want %v", lc.processed, want)
		}
	}
}
