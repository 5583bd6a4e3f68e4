package service

import (
	"context"

	"threadline/internal/models"
)

// browserPublisher is deliberately inert. Browser-automation posting runs in
// an external executor; attempting it in-process would hang the dispatcher,
// so the method refuses with a structured result the tenant can act on.
type browserPublisher struct{}

func NewBrowserPublisher() Publisher {
	return &browserPublisher{}
}

func (p *browserPublisher) Publish(ctx context.Context, account *models.Account, post *models.Post) PublishResult {
	return publishFailure(&PublishError{
		Kind:    ErrKindUnimplementedBackend,
		Message: "browser posting requires the external automation executor",
	})
}

func (p *browserPublisher) Delete(ctx context.Context, account *models.Account, remoteID string) error {
	return &PublishError{
		Kind:    ErrKindUnimplementedBackend,
		Message: "browser posting requires the external automation executor",
	}
}
