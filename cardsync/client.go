package cardsync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/fxcard_backend/utils"
)

type cardClient struct {
	baseURL   string
	apiKey    string
	apiKeyHdr string
	http      *http.Client
	limiter   <-chan time.Time
}

func newCardClient() (*cardClient, error) {
	baseURL := strings.TrimSpace(os.Getenv("CARDSYNC_API_BASE_URL"))
	if baseURL == "" {
		return nil, errors.New("CARDSYNC_API_BASE_URL is empty")
	}
	apiKey := strings.TrimSpace(os.Getenv("CARDSYNC_API_KEY"))
	if apiKey == "" {
		return nil, errors.New("cardsync api key is empty")
	}
	apiKeyHeader := strings.TrimSpace(os.Getenv("CARDSYNC_API_KEY_HEADER"))
	if apiKeyHeader == "" {
		apiKeyHeader = "X-API-Key"
	}
	rateLimitPerMin := int64(60)
	if v := strings.TrimSpace(os.Getenv("CARDSYNC_RATE_LIMIT_PER_MIN")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			rateLimitPerMin = n
		}
	}
	interval := time.Minute / time.Duration(rateLimitPerMin)

	return &cardClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		apiKeyHdr: apiKeyHeader,
		http:      &http.Client{Timeout: 10 * time.Second},
		limiter:   time.Tick(interval),
	}, nil
}

func (c *cardClient) postJSON(ctx context.Context, path string, payload interface{}) error {
	<-c.limiter
	body, err := utils.MarshalToJSON(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set(c.apiKeyHdr, c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("cardsync api error %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	return nil
}
