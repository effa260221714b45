// Package upstream implements the clients for the external pricing source
// and the item/card name lookup service. Both are treated as unreliable:
// callers recover from errors with empty results and continue.
package upstream

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
)

// DefaultTimeout bounds every upstream request.
const DefaultTimeout = 15 * time.Second

// Client fetches raw market history from the upstream pricing source.
type Client struct {
	http *resty.Client
}

// NewClient creates a pricing-source client for the given base URL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	http := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond)

	return &Client{http: http}
}

// ItemHistory fetches the raw sale and listing history of one item. A
// response-level upstream error yields an empty history, not a Go error;
// transport and HTTP failures propagate for the caller to recover from.
func (c *Client) ItemHistory(ctx context.Context, itemID int) (*ItemHistory, error) {
	var body historyResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("id", strconv.Itoa(itemID)).
		SetResult(&body).
		Get("/history")
	if err != nil {
		return nil, fmt.Errorf("fetch item history %d: %w", itemID, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetch item history %d: status %d", itemID, resp.StatusCode())
	}
	if body.Error != "" {
		return &ItemHistory{}, nil
	}

	history := &ItemHistory{}
	for _, batch := range body.SellHistory {
		history.SellHistory = append(history.SellHistory, batch.toRawSeries())
	}
	for _, batch := range body.VendHistory {
		history.VendHistory = append(history.VendHistory, batch.toRawSeries())
	}
	return history, nil
}

// ItemHistoryDetails fetches the currently active listings of one item.
func (c *Client) ItemHistoryDetails(ctx context.Context, itemID int) ([]ListingRecord, error) {
	var body detailsResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("id", strconv.Itoa(itemID)).
		SetResult(&body).
		Get("/historyDetails")
	if err != nil {
		return nil, fmt.Errorf("fetch item history details %d: %w", itemID, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetch item history details %d: status %d", itemID, resp.StatusCode())
	}

	records := make([]ListingRecord, 0, len(body.Data))
	for _, d := range body.Data {
		records = append(records, d.toListingRecord())
	}
	return records, nil
}
