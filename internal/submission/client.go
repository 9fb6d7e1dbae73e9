package submission

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"siges/internal/affiliates"
	"siges/internal/config"
)

// RegimeOption is one affiliation regime as listed by the backend.
type RegimeOption struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Meta travels unchanged with every batch of one submission.
type Meta struct {
	OrganizationID int    `json:"organizationId"`
	UserID         int    `json:"userId"`
	FileName       string `json:"fileName"`
	RegimeID       int    `json:"regime"`
	Period         string `json:"period"`
}

type BatchRequest struct {
	Meta
	Rows []affiliates.AffiliateRecord `json:"rows"`
}

type Client struct {
	cfg        config.Config
	httpClient *http.Client
	limiter    *RateLimiter
}

func NewClient(cfg config.Config) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.SigesBatchTimeout},
		limiter:    NewRateLimiter(cfg.SigesRateLimitRPS),
	}
}

// ListRegimes returns the regime options. The backend answers either with a
// bare array or with the array wrapped in {"data": ...}.
func (c *Client) ListRegimes(ctx context.Context) ([]RegimeOption, error) {
	body, err := c.getWithRetry(ctx, "regimes")
	if err != nil {
		return nil, err
	}
	return decodeRegimes(body)
}

const maxGetAttempts = 4

// getWithRetry retries idempotent reads on transport errors and transient
// statuses with jittered exponential backoff.
func (c *Client) getWithRetry(ctx context.Context, endpoint string) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= maxGetAttempts; attempt++ {
		body, err := c.do(ctx, http.MethodGet, endpoint, nil)
		if err == nil {
			return body, nil
		}
		lastErr = err

		var apiErr *APIError
		if errors.As(err, &apiErr) && !isRetryableStatus(apiErr.StatusCode) {
			return nil, err
		}
		if ctx.Err() != nil || attempt == maxGetAttempts {
			break
		}

		backoff := time.Duration(250*(1<<(attempt-1))+rand.Intn(100)) * time.Millisecond
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
	return nil, lastErr
}

func isRetryableStatus(status int) bool {
	switch status {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// ResolveRegime finds the option whose id or name equals ref.
func (c *Client) ResolveRegime(ctx context.Context, ref string) (RegimeOption, error) {
	options, err := c.ListRegimes(ctx)
	if err != nil {
		return RegimeOption{}, err
	}
	return FindRegime(options, ref)
}

func FindRegime(options []RegimeOption, ref string) (RegimeOption, error) {
	ref = strings.TrimSpace(ref)
	id, idErr := strconv.Atoi(ref)
	for _, opt := range options {
		if idErr == nil && opt.ID == id {
			return opt, nil
		}
		if strings.EqualFold(strings.TrimSpace(opt.Name), ref) {
			return opt, nil
		}
	}
	return RegimeOption{}, fmt.Errorf("regime %q not found among %d options", ref, len(options))
}

// SendBatch posts one chunk of records to affiliates/bulk. There is no retry;
// a partially accepted submission must not be replayed blindly.
func (c *Client) SendBatch(ctx context.Context, req BatchRequest) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode batch: %w", err)
	}
	_, err = c.do(ctx, http.MethodPost, "affiliates/bulk", payload)
	return err
}

func (c *Client) do(ctx context.Context, method, endpoint string, payload []byte) ([]byte, error) {
	baseURL := strings.TrimRight(c.cfg.SigesAPIBaseURL, "/") + "/"
	u, err := url.Parse(baseURL + endpoint)
	if err != nil {
		return nil, err
	}

	if err := c.limiter.WaitTurn(ctx); err != nil {
		return nil, err
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := strings.TrimSpace(c.cfg.SigesAPIToken); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("siges %s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("siges %s %s: read body: %w", method, endpoint, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, parseAPIError(resp.StatusCode, resp.Header.Get("Content-Type"), respBody)
	}
	return respBody, nil
}

func decodeRegimes(body []byte) ([]RegimeOption, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, errors.New("empty regimes response")
	}

	if trimmed[0] == '{' {
		var wrapped struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(trimmed, &wrapped); err != nil {
			return nil, fmt.Errorf("decode regimes: %w", err)
		}
		if len(wrapped.Data) == 0 {
			return nil, errors.New("regimes response has no data")
		}
		trimmed = wrapped.Data
	}

	var out []RegimeOption
	if err := json.Unmarshal(trimmed, &out); err != nil {
		return nil, fmt.Errorf("decode regimes: %w", err)
	}
	return out, nil
}
