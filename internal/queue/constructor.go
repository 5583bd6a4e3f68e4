package queue

import (
	"threadline/internal/service"
)

type Queue struct {
	lc service.LifecycleService
}

func NewQueue(lc service.LifecycleService) *Queue {
	return &Queue{lc: lc}
}

const TaskTypePublishNow = "publish:now"

type PublishNowPayload struct {
	PostID int64 `json:"post_id"`
}
