package queue

import (
	"context"
	"encoding/json"
	"log"

	"github.com/hibiken/asynq"
)

// HandlePublishNowTask runs the same per-post transition the periodic
// dispatcher uses, just triggered by a human instead of the clock.
func (q *Queue) HandlePublishNowTask(ctx context.Context, task *asynq.Task) error {
	var payload PublishNowPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return err
	}

	if err := q.lc.ProcessDuePost(ctx, payload.PostID); err != nil {
		log.Printf("Error processing publish-now for post %d: %v", payload.PostID, err)
		return err
	}

	return nil
}
