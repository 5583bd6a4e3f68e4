package job

import (
	"context"
	"log"
	"log/slog"
	"sync"
	"time"

	"threadline/internal/models"
	"threadline/internal/repository"
	"threadline/internal/service"
)

// DispatchJob is the periodic delivery tick: walk every tenant, pull a
// bounded page of due posts, and drive each through the lifecycle. Posts for
// different accounts run concurrently; posts for the same account run in a
// single goroutine so the spacing rule sees them in order.
type DispatchJob struct {
	pageSize int
	tr       repository.TenantRepository
	pr       repository.PostRepository
	lc       service.LifecycleService
}

func NewDispatchJob(
	pageSize int,
	tr repository.TenantRepository,
	pr repository.PostRepository,
	lc service.LifecycleService) *DispatchJob {
	return &DispatchJob{
		pageSize: pageSize,
		tr:       tr,
		pr:       pr,
		lc:       lc,
	}
}

func (j *DispatchJob) Tick() {
	ctx := context.Background()

	tenants, err := j.tr.ListIDs(ctx)
	if err != nil {
		slog.Info(err.Error())
		return
	}

	for _, tenantID := range tenants {
		j.dispatchTenant(ctx, tenantID)
	}
}

func (j *DispatchJob) dispatchTenant(ctx context.Context, tenantID int64) {
	posts, err := j.pr.ListDue(ctx, tenantID, time.Now(), j.pageSize)
	if err != nil {
		log.Printf("Error listing due posts for tenant %d: %v", tenantID, err)
		return
	}
	if len(posts) == 0 {
		return
	}

	byAccount := make(map[int64][]*models.Post)
	for _, post := range posts {
		byAccount[post.AccountID] = append(byAccount[post.AccountID], post)
	}

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, 10)

	for _, accountPosts := range byAccount {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(accountPosts []*models.Post) {
			defer wg.Done()
			defer func() { <-semaphore }()

			for _, post := range accountPosts {
				j.processOne(ctx, post.ID)
			}
		}(accountPosts)
	}

	wg.Wait()
}

// processOne isolates faults to the post that caused them; a panic or error
// in one post never aborts its siblings.
func (j *DispatchJob) processOne(ctx context.Context, postID int64) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Panic while processing post %d: %v", postID, r)
		}
	}()

	if err := j.lc.ProcessDuePost(ctx, postID); err != nil {
		log.Printf("Error processing post %d: %v", postID, err)
	}
}
