package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"hammer/internal/auction"
)

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) Round(ctx context.Context, token, roundID string) (auction.RoundView, error) {
	var out auction.RoundView
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/rounds/"+url.PathEscape(roundID), token, nil, &out, "")
	return out, err
}

func (c *Client) SubmitBid(ctx context.Context, token, roundID, playerID string, amount int64, idem string) (auction.Bid, error) {
	var out auction.Bid
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/rounds/"+url.PathEscape(roundID)+"/bids", token, map[string]any{
		"player_id": playerID,
		"amount":    amount,
	}, &out, idem)
	return out, err
}

func (c *Client) Budget(ctx context.Context, token string) (auction.BudgetView, error) {
	var out auction.BudgetView
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/budget", token, nil, &out, "")
	return out, err
}

func (c *Client) MyTiebreakers(ctx context.Context, token string) ([]auction.TiebreakerView, error) {
	var out struct {
		Tiebreakers []auction.TiebreakerView `json:"tiebreakers"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/tiebreakers", token, nil, &out, "")
	return out.Tiebreakers, err
}

func (c *Client) Tiebreaker(ctx context.Context, token, tiebreakerID string) (auction.TiebreakerView, error) {
	var out auction.TiebreakerView
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/tiebreakers/"+url.PathEscape(tiebreakerID), token, nil, &out, "")
	return out, err
}

func (c *Client) Raise(ctx context.Context, token, tiebreakerID string, amount int64, idem string) (auction.RaiseResult, error) {
	var out auction.RaiseResult
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/tiebreakers/"+url.PathEscape(tiebreakerID)+"/raise", token, map[string]any{
		"amount": amount,
	}, &out, idem)
	return out, err
}

func (c *Client) Withdraw(ctx context.Context, token, tiebreakerID string) (auction.WithdrawResult, error) {
	var out auction.WithdrawResult
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/tiebreakers/"+url.PathEscape(tiebreakerID)+"/withdraw", token, nil, &out, "")
	return out, err
}

func (c *Client) FinalizeRound(ctx context.Context, token, roundID string) (auction.FinalizationResult, error) {
	var out auction.FinalizationResult
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/admin/rounds/"+url.PathEscape(roundID)+"/finalize", token, nil, &out, "")
	return out, err
}

func (c *Client) PreviewRound(ctx context.Context, token, roundID string) (auction.FinalizationResult, error) {
	var out auction.FinalizationResult
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/admin/rounds/"+url.PathEscape(roundID)+"/preview", token, nil, &out, "")
	return out, err
}

type BoardPayload struct {
	Round       auction.RoundView        `json:"round"`
	Tiebreakers []auction.TiebreakerView `json:"tiebreakers"`
}

func (c *Client) Board(ctx context.Context, token, roundID string) (BoardPayload, error) {
	var out BoardPayload
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/admin/rounds/"+url.PathEscape(roundID)+"/board", token, nil, &out, "")
	return out, err
}

func (c *Client) AutoWithdraw(ctx context.Context, token, tiebreakerID string) (auction.WithdrawResult, error) {
	var out auction.WithdrawResult
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/admin/tiebreakers/"+url.PathEscape(tiebreakerID)+"/auto-withdraw", token, nil, &out, "")
	return out, err
}

func (c *Client) FinalizeTiebreaker(ctx context.Context, token, tiebreakerID string) (auction.ResolveResult, error) {
	var out auction.ResolveResult
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/admin/tiebreakers/"+url.PathEscape(tiebreakerID)+"/finalize", token, nil, &out, "")
	return out, err
}

func (c *Client) jsonRequest(ctx context.Context, method, path, token string, in any, out any, idem string) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if idem != "" {
		req.Header.Set("Idempotency-Key", idem)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("api status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
