package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"

	"threadline/internal/queue"
	"threadline/internal/repository"
	"threadline/internal/service"
)

type PostHandler struct {
	pr          repository.PostRepository
	act         repository.ActivityRepository
	lc          service.LifecycleService
	AsynqClient *asynq.Client
}

func NewPostHandler(
	pr repository.PostRepository,
	act repository.ActivityRepository,
	lc service.LifecycleService,
	asynqClient *asynq.Client) *PostHandler {
	return &PostHandler{pr: pr, act: act, lc: lc, AsynqClient: asynqClient}
}

// PublishNow enqueues the same per-post transition the cron tick runs, for
// a human-triggered immediate publish.
func (h *PostHandler) PublishNow(c *fiber.Ctx) error {
	tenantID := GetTenantID(c)
	postID := int64(c.QueryInt("id", 0))

	post, err := h.pr.GetByID(c.Context(), postID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	if post == nil || post.TenantID != tenantID {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Post not found",
		})
	}

	err = queue.EnqueuePublishNow(h.AsynqClient, queue.PublishNowPayload{PostID: postID})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Error enqueueing publish",
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "Publish enqueued",
	})
}

func (h *PostHandler) ListPosts(c *fiber.Ctx) error {
	tenantID := GetTenantID(c)

	posts, err := h.pr.ListByTenantID(c.Context(), tenantID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to list posts",
		})
	}

	return c.Status(fiber.StatusOK).JSON(posts)
}

func (h *PostHandler) ListActivity(c *fiber.Ctx) error {
	tenantID := GetTenantID(c)
	postID := int64(c.QueryInt("id", 0))

	post, err := h.pr.GetByID(c.Context(), postID)
	if err != nil || post == nil || post.TenantID != tenantID {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Post not found",
		})
	}

	entries, err := h.act.ListByPostID(c.Context(), postID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to list activity",
		})
	}

	return c.Status(fiber.StatusOK).JSON(entries)
}

func (h *PostHandler) DeletePost(c *fiber.Ctx) error {
	tenantID := GetTenantID(c)
	postID := int64(c.QueryInt("id", 0))

	if err := h.lc.DeletePost(c.Context(), tenantID, postID); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.SendStatus(fiber.StatusOK)
}
