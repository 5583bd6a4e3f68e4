package job

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	config "threadline/configs"
	"threadline/internal/models"
	"threadline/internal/repository"
	"threadline/internal/transfer"
	"threadline/pkg/utils"
)

// TokenRefreshJob keeps official-token credentials fresh in place. The
// delivery pipeline never refreshes anything itself; it just reads whatever
// token is current at dispatch time.
type TokenRefreshJob struct {
	cfg   config.Config
	ar    repository.AccountRepository
	httpc *http.Client
}

func NewTokenRefreshJob(cfg config.Config, ar repository.AccountRepository) *TokenRefreshJob {
	return &TokenRefreshJob{
		cfg:   cfg,
		ar:    ar,
		httpc: &http.Client{Timeout: 30 * time.Second},
	}
}

func (j *TokenRefreshJob) RefreshTokens() {
	ctx := context.Background()

	currentTime := time.Now()
	timeIn30Minutes := currentTime.Add(30 * time.Minute)

	accounts, err := j.ar.ListTokenExpiring(ctx, currentTime, timeIn30Minutes)
	if err != nil {
		slog.Info(err.Error())
		return
	}

	var wg sync.WaitGroup

	concurrencyLimit := 10
	semaphore := make(chan struct{}, concurrencyLimit)

	for _, acc := range accounts {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(acc *models.Account) {
			defer wg.Done()
			defer func() { <-semaphore }()

			if err := j.refreshAccount(ctx, acc); err != nil {
				slog.Info(fmt.Sprintf("Unable to refresh token for account %d: %v", acc.ID, err))
			}
		}(acc)
	}

	wg.Wait()
}

func (j *TokenRefreshJob) refreshAccount(ctx context.Context, acc *models.Account) error {
	accessToken, err := utils.Decrypt(acc.AccessToken, []byte(j.cfg.SecretKey))
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/refresh_access_token?grant_type=th_refresh_token&access_token=%s",
		j.cfg.GraphAPIBaseURL, url.QueryEscape(accessToken))

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return err
	}

	resp, err := j.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("refresh endpoint returned status %d", resp.StatusCode)
	}

	var result transfer.GraphTokenRefreshResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return err
	}
	if result.AccessToken == "" {
		return fmt.Errorf("refresh endpoint returned no token")
	}

	// Hardened vaults seal new tokens under a per-record subkey; either
	// envelope stays readable on the decrypt side.
	var encryptedToken string
	if j.cfg.VaultHardened {
		encryptedToken, err = utils.EncryptDerived([]byte(result.AccessToken), []byte(j.cfg.SecretKey))
	} else {
		encryptedToken, err = utils.Encrypt([]byte(result.AccessToken), []byte(j.cfg.SecretKey))
	}
	if err != nil {
		return err
	}

	expiresAt := time.Now().Add(time.Duration(result.ExpiresIn) * time.Second)
	return j.ar.SetAccessToken(ctx, acc.ID, encryptedToken, expiresAt)
}
