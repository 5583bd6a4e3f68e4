package service

import (
	"context"

	config "threadline/configs"
	"threadline/internal/models"
	"threadline/internal/repository"
)

// PublishResult is the single failure contract every backend honors.
// Expected remote failures (bad token, rejected container, opaque body) come
// back as Success=false with a classified Err; they are never returned as a
// Go error from Publish.
type PublishResult struct {
	Success  bool
	RemoteID string
	Err      *PublishError
}

func publishSuccess(remoteID string) PublishResult {
	return PublishResult{Success: true, RemoteID: remoteID}
}

func publishFailure(err *PublishError) PublishResult {
	return PublishResult{Err: err}
}

type Publisher interface {
	Publish(ctx context.Context, account *models.Account, post *models.Post) PublishResult
	Delete(ctx context.Context, account *models.Account, remoteID string) error
}

// PublisherService resolves the one backend authoritative for an account's
// posting method. The choice happens once per dispatch attempt, at the top.
type PublisherService interface {
	ForAccount(account *models.Account) Publisher
}

type publisherService struct {
	graph   Publisher
	web     Publisher
	browser Publisher
}

func NewPublisherService(
	cfg config.Config,
	pr repository.PostRepository,
	pm repository.PostMediaRepository,
	media MediaService) PublisherService {
	return &publisherService{
		graph:   NewGraphPublisher(cfg, pr, pm, media),
		web:     NewWebPublisher(cfg, pr, pm),
		browser: NewBrowserPublisher(),
	}
}

func (s *publisherService) ForAccount(account *models.Account) Publisher {
	switch account.PostingMethod {
	case models.PostingMethodGraph:
		return s.graph
	case models.PostingMethodWeb:
		return s.web
	default:
		// Unknown methods land on the browser stub, which refuses with a
		// structured result instead of guessing.
		return s.browser
	}
}
