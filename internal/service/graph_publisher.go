package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	config "threadline/configs"
	"threadline/internal/models"
	"threadline/internal/repository"
	"threadline/internal/transfer"
	"threadline/pkg/utils"
)

// graphPublisher drives the token-based Graph surface: stage a container,
// wait out the server-side settle window, then publish it. Multi-media posts
// stage one container per item first and aggregate them under a carousel
// parent.
type graphPublisher struct {
	cfg   config.Config
	pr    repository.PostRepository
	pm    repository.PostMediaRepository
	media MediaService
	httpc *http.Client
}

func NewGraphPublisher(
	cfg config.Config,
	pr repository.PostRepository,
	pm repository.PostMediaRepository,
	media MediaService) Publisher {
	return &graphPublisher{
		cfg:   cfg,
		pr:    pr,
		pm:    pm,
		media: media,
		httpc: &http.Client{Timeout: 30 * time.Second},
	}
}

func (p *graphPublisher) Publish(ctx context.Context, account *models.Account, post *models.Post) PublishResult {
	accessToken, err := utils.Decrypt(account.AccessToken, []byte(p.cfg.SecretKey))
	if err != nil {
		return publishFailure(credentialInvalid("stored access token is unreadable", err))
	}

	caption := ComposeCaption(post.Content, post.Topics)

	mediaItems, err := p.pm.ListByPostID(ctx, post.ID)
	if err != nil {
		return publishFailure(internalError("error fetching post media", err))
	}

	// Temp artifacts from metadata normalization are removed whichever way
	// the attempt ends.
	var handles []string
	defer func() {
		cleanupCtx := context.WithoutCancel(ctx)
		for _, handle := range handles {
			p.media.Cleanup(cleanupCtx, handle)
		}
	}()

	var containerID string
	var perr *PublishError

	switch {
	case len(mediaItems) == 0:
		containerID, perr = p.createContainer(ctx, account, map[string]interface{}{
			"media_type":    "TEXT",
			"text":          caption,
			"reply_control": replyControl(post),
			"access_token":  accessToken,
		})

	case len(mediaItems) == 1:
		payload, handle, merr := p.mediaPayload(ctx, post.TenantID, mediaItems[0], false)
		if handle != "" {
			handles = append(handles, handle)
		}
		if merr != nil {
			return publishFailure(merr)
		}
		payload["text"] = caption
		payload["reply_control"] = replyControl(post)
		payload["access_token"] = accessToken
		containerID, perr = p.createContainer(ctx, account, payload)

	default:
		children := make([]string, 0, len(mediaItems))
		for _, item := range mediaItems {
			payload, handle, merr := p.mediaPayload(ctx, post.TenantID, item, true)
			if handle != "" {
				handles = append(handles, handle)
			}
			if merr != nil {
				return publishFailure(merr)
			}
			payload["access_token"] = accessToken

			childID, cerr := p.createContainer(ctx, account, payload)
			if cerr != nil {
				return publishFailure(cerr)
			}
			children = append(children, childID)
		}

		containerID, perr = p.createContainer(ctx, account, map[string]interface{}{
			"media_type":    "CAROUSEL",
			"children":      children,
			"text":          caption,
			"reply_control": replyControl(post),
			"access_token":  accessToken,
		})
	}

	if perr != nil {
		return publishFailure(perr)
	}

	// The surface stages containers asynchronously; publishing right after
	// creation fails intermittently. This is a fixed wait, not a retry delay.
	time.Sleep(p.cfg.SettleDelay)

	remoteID, perr := p.publishContainer(ctx, account, accessToken, containerID)
	if perr != nil {
		return publishFailure(perr)
	}

	if err := p.pr.SetRemoteID(ctx, post.ID, remoteID); err != nil {
		slog.Info(fmt.Sprintf("failed to record remote id %s for post %d: %v", remoteID, post.ID, err))
	}

	return publishSuccess(remoteID)
}

func (p *graphPublisher) mediaPayload(ctx context.Context, tenantID int64, item *models.PostMedia, carouselItem bool) (map[string]interface{}, string, *PublishError) {
	payload := map[string]interface{}{}
	var handle string

	switch item.MediaType {
	case models.MediaTypeImage:
		normalized, err := p.media.Normalize(ctx, tenantID, item.SourceURL)
		if err != nil {
			return nil, "", internalError("metadata normalization failed", err)
		}
		handle = normalized.Handle
		payload["media_type"] = "IMAGE"
		payload["image_url"] = normalized.URL
	case models.MediaTypeVideo:
		payload["media_type"] = "VIDEO"
		payload["video_url"] = item.SourceURL
	default:
		return nil, "", internalError(fmt.Sprintf("unsupported media type %q", item.MediaType), nil)
	}

	if carouselItem {
		payload["is_carousel_item"] = true
	}

	return payload, handle, nil
}

func (p *graphPublisher) createContainer(ctx context.Context, account *models.Account, payload map[string]interface{}) (string, *PublishError) {
	endpoint := fmt.Sprintf("%s/%s/threads", p.cfg.GraphAPIBaseURL, account.RemoteUserID)

	body, err := json.Marshal(payload)
	if err != nil {
		return "", internalError("error marshalling payload", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewBuffer(body))
	if err != nil {
		return "", internalError("error creating request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpc.Do(req)
	if err != nil {
		return "", remoteUnavailable("container create request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", remoteUnavailable("error reading response body", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", classifyGraphError(resp.StatusCode, respBody)
	}

	var result transfer.GraphContainerResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", remoteUnavailable("non-JSON response from publish surface", err)
	}
	if result.ID == "" {
		return "", remoteRejected("no container id returned")
	}

	return result.ID, nil
}

func (p *graphPublisher) publishContainer(ctx context.Context, account *models.Account, accessToken, containerID string) (string, *PublishError) {
	endpoint := fmt.Sprintf("%s/%s/threads_publish", p.cfg.GraphAPIBaseURL, account.RemoteUserID)

	body, err := json.Marshal(map[string]string{
		"creation_id":  containerID,
		"access_token": accessToken,
	})
	if err != nil {
		return "", internalError("error marshalling payload", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewBuffer(body))
	if err != nil {
		return "", internalError("error creating request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpc.Do(req)
	if err != nil {
		return "", remoteUnavailable("publish request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", remoteUnavailable("error reading response body", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", classifyGraphError(resp.StatusCode, respBody)
	}

	var result transfer.GraphPublishResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", remoteUnavailable("non-JSON response from publish surface", err)
	}
	if result.ID == "" {
		return "", remoteRejected("no post id returned from publish call")
	}

	return result.ID, nil
}

func (p *graphPublisher) Delete(ctx context.Context, account *models.Account, remoteID string) error {
	accessToken, err := utils.Decrypt(account.AccessToken, []byte(p.cfg.SecretKey))
	if err != nil {
		return credentialInvalid("stored access token is unreadable", err)
	}

	endpoint := fmt.Sprintf("%s/%s?access_token=%s", p.cfg.GraphAPIBaseURL, remoteID, url.QueryEscape(accessToken))

	req, err := http.NewRequestWithContext(ctx, "DELETE", endpoint, nil)
	if err != nil {
		return err
	}

	resp, err := p.httpc.Do(req)
	if err != nil {
		return remoteUnavailable("delete request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return classifyGraphError(resp.StatusCode, respBody)
	}

	return nil
}

func replyControl(post *models.Post) string {
	if !post.AllowReplies {
		return "mentioned_only"
	}
	switch post.WhoCanReply {
	case models.ReplyFollowers:
		return "accounts_you_follow"
	case models.ReplyMentioned:
		return "mentioned_only"
	default:
		return "everyone"
	}
}

func classifyGraphError(statusCode int, body []byte) *PublishError {
	var graphErr transfer.GraphErrorResponse
	if err := json.Unmarshal(body, &graphErr); err != nil || graphErr.Error.Message == "" {
		return remoteUnavailable(fmt.Sprintf("unexpected status %d from publish surface", statusCode), nil)
	}

	if graphErr.Error.Type == "OAuthException" || graphErr.Error.Code == 190 {
		return credentialInvalid(graphErr.Error.Message, nil)
	}

	return remoteRejected(graphErr.Error.Message)
}
