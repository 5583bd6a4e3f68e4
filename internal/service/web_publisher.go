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
	"strconv"
	"strings"
	"time"

	config "threadline/configs"
	"threadline/internal/models"
	"threadline/internal/repository"
	"threadline/internal/transfer"
	"threadline/pkg/utils"
)

const webUploadChunkSize = 512 * 1024

// webPublisher mimics the web client: chunked binary upload to obtain an
// upload handle, then a create call attaching it. Errors from this surface
// are often opaque (HTML login walls, plain-text checkpoints), so anything
// that does not parse is classified as unavailable rather than rejected.
type webPublisher struct {
	cfg   config.Config
	pr    repository.PostRepository
	pm    repository.PostMediaRepository
	httpc *http.Client
}

func NewWebPublisher(cfg config.Config, pr repository.PostRepository, pm repository.PostMediaRepository) Publisher {
	return &webPublisher{
		cfg:   cfg,
		pr:    pr,
		pm:    pm,
		httpc: &http.Client{Timeout: 60 * time.Second},
	}
}

type webSession struct {
	sessionToken string
	csrfToken    string
	deviceID     string
	machineID    string
}

func (p *webPublisher) session(account *models.Account) (*webSession, *PublishError) {
	key := []byte(p.cfg.SecretKey)

	sessionToken, err := utils.Decrypt(account.SessionToken, key)
	if err != nil {
		return nil, credentialInvalid("stored session token is unreadable", err)
	}
	csrfToken, err := utils.Decrypt(account.CSRFToken, key)
	if err != nil {
		return nil, credentialInvalid("stored csrf token is unreadable", err)
	}
	deviceID, err := utils.Decrypt(account.DeviceID, key)
	if err != nil {
		return nil, credentialInvalid("stored device id is unreadable", err)
	}
	machineID, err := utils.Decrypt(account.MachineID, key)
	if err != nil {
		return nil, credentialInvalid("stored machine id is unreadable", err)
	}

	return &webSession{
		sessionToken: sessionToken,
		csrfToken:    csrfToken,
		deviceID:     deviceID,
		machineID:    machineID,
	}, nil
}

func (p *webPublisher) applySessionHeaders(req *http.Request, sess *webSession) {
	req.Header.Set("Cookie", fmt.Sprintf("sessionid=%s; csrftoken=%s", sess.sessionToken, sess.csrfToken))
	req.Header.Set("X-CSRFToken", sess.csrfToken)
	req.Header.Set("X-Web-Device-Id", sess.deviceID)
	req.Header.Set("X-Mid", sess.machineID)
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
}

func (p *webPublisher) Publish(ctx context.Context, account *models.Account, post *models.Post) PublishResult {
	sess, perr := p.session(account)
	if perr != nil {
		return publishFailure(perr)
	}

	caption := ComposeCaption(post.Content, post.Topics)

	mediaItems, err := p.pm.ListByPostID(ctx, post.ID)
	if err != nil {
		return publishFailure(internalError("error fetching post media", err))
	}
	if len(mediaItems) > 1 {
		return publishFailure(remoteRejected("web backend supports at most one media item"))
	}

	var uploadID string
	if len(mediaItems) == 1 {
		uploadID, perr = p.uploadMedia(ctx, sess, mediaItems[0])
		if perr != nil {
			return publishFailure(perr)
		}
	}

	remoteID, perr := p.createPost(ctx, sess, caption, uploadID, post)
	if perr != nil {
		return publishFailure(perr)
	}

	if err := p.pr.SetRemoteID(ctx, post.ID, remoteID); err != nil {
		slog.Info(fmt.Sprintf("failed to record remote id %s for post %d: %v", remoteID, post.ID, err))
	}

	return publishSuccess(remoteID)
}

// uploadMedia transfers the media binary in fixed-size chunks; the final
// chunk response carries the upload handle the create call attaches.
func (p *webPublisher) uploadMedia(ctx context.Context, sess *webSession, item *models.PostMedia) (string, *PublishError) {
	data, perr := p.fetchSource(ctx, item.SourceURL)
	if perr != nil {
		return "", perr
	}

	suffix, err := utils.GenerateRandomKey(6)
	if err != nil {
		return "", internalError("error generating upload name", err)
	}
	entityName := fmt.Sprintf("%d_0_%s", time.Now().UnixMilli(), suffix)

	uploadPath := "rupload_igphoto"
	if item.MediaType == models.MediaTypeVideo {
		uploadPath = "rupload_igvideo"
	}
	endpoint := fmt.Sprintf("%s/%s/%s", p.cfg.WebAPIBaseURL, uploadPath, entityName)

	var uploadID string
	for offset := 0; offset < len(data); offset += webUploadChunkSize {
		end := offset + webUploadChunkSize
		if end > len(data) {
			end = len(data)
		}

		req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(data[offset:end]))
		if err != nil {
			return "", internalError("error creating upload request", err)
		}
		p.applySessionHeaders(req, sess)
		req.Header.Set("Content-Type", "application/octet-stream")
		req.Header.Set("X-Entity-Name", entityName)
		req.Header.Set("X-Entity-Length", strconv.Itoa(len(data)))
		req.Header.Set("Offset", strconv.Itoa(offset))

		resp, err := p.httpc.Do(req)
		if err != nil {
			return "", remoteUnavailable("chunk upload failed", err)
		}
		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return "", remoteUnavailable("error reading upload response", readErr)
		}
		if resp.StatusCode != http.StatusOK {
			return "", classifyWebError(resp.StatusCode, respBody)
		}

		if end == len(data) {
			var result transfer.WebUploadResponse
			if err := json.Unmarshal(respBody, &result); err != nil {
				return "", opaqueWebResponse(resp.StatusCode, respBody)
			}
			if result.UploadID == "" {
				return "", remoteRejected("no upload id returned")
			}
			uploadID = result.UploadID
		}
	}

	return uploadID, nil
}

func (p *webPublisher) fetchSource(ctx context.Context, sourceURL string) ([]byte, *PublishError) {
	req, err := http.NewRequestWithContext(ctx, "GET", sourceURL, nil)
	if err != nil {
		return nil, internalError("error creating media fetch request", err)
	}

	resp, err := p.httpc.Do(req)
	if err != nil {
		return nil, internalError("error fetching media source", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, internalError(fmt.Sprintf("media source returned status %d", resp.StatusCode), nil)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, internalError("error reading media source", err)
	}
	return data, nil
}

func (p *webPublisher) createPost(ctx context.Context, sess *webSession, caption, uploadID string, post *models.Post) (string, *PublishError) {
	endpoint := fmt.Sprintf("%s/api/v1/media/configure_text_post_app_feed/", p.cfg.WebAPIBaseURL)

	form := url.Values{}
	form.Set("caption", caption)
	form.Set("reply_control", replyControl(post))
	if uploadID != "" {
		form.Set("upload_id", uploadID)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", internalError("error creating request", err)
	}
	p.applySessionHeaders(req, sess)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpc.Do(req)
	if err != nil {
		return "", remoteUnavailable("create request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", remoteUnavailable("error reading response body", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", classifyWebError(resp.StatusCode, respBody)
	}

	var result transfer.WebCreateResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", opaqueWebResponse(resp.StatusCode, respBody)
	}
	if result.Status != "ok" {
		message := result.Message
		if message == "" {
			message = "create call returned status " + result.Status
		}
		return "", remoteRejected(message)
	}
	if result.Media.ID == "" {
		return "", remoteRejected("no media id returned from create call")
	}

	return result.Media.ID, nil
}

func (p *webPublisher) Delete(ctx context.Context, account *models.Account, remoteID string) error {
	sess, perr := p.session(account)
	if perr != nil {
		return perr
	}

	endpoint := fmt.Sprintf("%s/api/v1/media/%s/delete/", p.cfg.WebAPIBaseURL, remoteID)

	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, nil)
	if err != nil {
		return err
	}
	p.applySessionHeaders(req, sess)

	resp, err := p.httpc.Do(req)
	if err != nil {
		return remoteUnavailable("delete request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return remoteUnavailable("error reading response body", err)
	}

	if resp.StatusCode != http.StatusOK {
		return classifyWebError(resp.StatusCode, respBody)
	}

	var result transfer.WebDeleteResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return opaqueWebResponse(resp.StatusCode, respBody)
	}
	if result.Status != "ok" {
		return remoteRejected("delete call returned status " + result.Status)
	}

	return nil
}

func classifyWebError(statusCode int, body []byte) *PublishError {
	var result transfer.WebCreateResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return opaqueWebResponse(statusCode, body)
	}

	if statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden || result.Message == "login_required" {
		message := result.Message
		if message == "" {
			message = fmt.Sprintf("session rejected with status %d", statusCode)
		}
		return credentialInvalid(message, nil)
	}

	message := result.Message
	if message == "" {
		message = fmt.Sprintf("create call failed with status %d", statusCode)
	}
	return remoteRejected(message)
}

func opaqueWebResponse(statusCode int, body []byte) *PublishError {
	snippet := strings.TrimSpace(string(body))
	if len(snippet) > 120 {
		snippet = snippet[:120]
	}
	return remoteUnavailable(fmt.Sprintf("opaque status-%d response: %q", statusCode, snippet), nil)
}
