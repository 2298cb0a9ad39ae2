package loadgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Response mirrors the body returned by POST /charge.
type Response struct {
	RemainingBalance int64 `json:"remainingBalance"`
	Charges          int64 `json:"charges"`
	IsAuthorized     bool  `json:"isAuthorized"`
}

// Client talks to a chargeserver over HTTP.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// Charge posts a charge. A zero amount lets the server apply its default.
func (c *Client) Charge(ctx context.Context, amount int64) (Response, error) {
	var body io.Reader
	if amount != 0 {
		b, err := json.Marshal(map[string]int64{"amount": amount})
		if err != nil {
			return Response{}, err
		}
		body = bytes.NewReader(b)
	}

	raw, err := c.post(ctx, "/charge", body)
	if err != nil {
		return Response{}, err
	}
	var r Response
	d := json.NewDecoder(bytes.NewReader(raw))
	d.DisallowUnknownFields()
	if err := d.Decode(&r); err != nil {
		return Response{}, fmt.Errorf("decode charge response %q: %w", raw, err)
	}
	return r, nil
}

// Reset restores the server's default balance and returns it.
func (c *Client) Reset(ctx context.Context) (int64, error) {
	raw, err := c.post(ctx, "/reset", nil)
	if err != nil {
		return 0, err
	}
	var r struct {
		Balance int64 `json:"balance"`
	}
	if err := json.Unmarshal(raw, &r); err != nil {
		return 0, fmt.Errorf("decode reset response %q: %w", raw, err)
	}
	return r.Balance, nil
}

func (c *Client) post(ctx context.Context, path string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("post %s: status %d: %s", path, resp.StatusCode, bytes.TrimSpace(raw))
	}
	return raw, nil
}
