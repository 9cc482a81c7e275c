package purger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/dmitrijs2005/photovault/internal/server/network"
)

// Client calls the blob-network batch deletion endpoint. Requests carry a
// short-lived bearer token; transient failures (transport errors, 5xx) are
// retried with exponential backoff before the chunk is given up for the
// round.
type Client struct {
	endpoint   string
	secret     []byte
	httpClient *http.Client

	tokenValidity time.Duration
	maxRetries    uint64
	retryBase     time.Duration
}

// NewClient constructs a Client for the given endpoint and signing secret.
func NewClient(endpoint, secret string) *Client {
	return &Client{
		endpoint:      endpoint,
		secret:        []byte(secret),
		httpClient:    &http.Client{Timeout: 60 * time.Second},
		tokenValidity: 5 * time.Minute,
		maxRetries:    3,
		retryBase:     500 * time.Millisecond,
	}
}

type deleteFilesRequest struct {
	Files []string `json:"files"`
}

type deleteFilesResponse struct {
	Message struct {
		Confirmed    []string `json:"confirmed"`
		NotConfirmed []string `json:"notConfirmed"`
	} `json:"message"`
}

// DeleteFiles requests deletion of the given blob references and returns the
// per-blob confirmation outcome.
func (c *Client) DeleteFiles(ctx context.Context, ids []string) (*DeleteFilesResult, error) {
	var result *DeleteFilesResult

	backoff := retry.WithMaxRetries(c.maxRetries, retry.NewExponential(c.retryBase))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		res, err := c.deleteOnce(ctx, ids)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) deleteOnce(ctx context.Context, ids []string) (*DeleteFilesResult, error) {
	token, err := network.SignToken(c.secret, c.tokenValidity)
	if err != nil {
		return nil, fmt.Errorf("signing token: %w", err)
	}

	body, err := json.Marshal(deleteFilesRequest{Files: ids})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, retry.RetryableError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, retry.RetryableError(fmt.Errorf("delete files: %s", resp.Status))
	}
	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("delete files: %s: %s", resp.Status, payload)
	}

	var decoded deleteFilesResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decoding delete response: %w", err)
	}

	return &DeleteFilesResult{
		Confirmed:    decoded.Message.Confirmed,
		NotConfirmed: decoded.Message.NotConfirmed,
	}, nil
}
