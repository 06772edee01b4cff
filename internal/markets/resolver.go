// Package markets resolves per-venue market metadata: the condition id
// and the YES/NO outcome token ids the executor needs before it can
// place a leg.
package markets

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/mselser95/crossmarket-arb/pkg/types"
)

// Resolver maps a market id to a venue's metadata for it.
type Resolver interface {
	GetMarketMeta(ctx context.Context, marketID string) (*types.MarketMeta, error)
}

// MetadataClient fetches market metadata from a venue's REST API.
type MetadataClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewMetadataClient creates a metadata client for one venue API.
func NewMetadataClient(baseURL string) *MetadataClient {
	return &MetadataClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// marketResponse is the venue's market payload. Both venues expose the
// same shape on their /markets endpoint.
type marketResponse struct {
	ConditionID string `json:"conditionId"`
	YesTokenID  string `json:"yesTokenId"`
	NoTokenID   string `json:"noTokenId"`
	Slug        string `json:"slug"`
}

// GetMarketMeta fetches metadata for one market id.
func (c *MetadataClient) GetMarketMeta(ctx context.Context, marketID string) (*types.MarketMeta, error) {
	url := fmt.Sprintf("%s/markets/%s", c.baseURL, marketID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error: status %d", resp.StatusCode)
	}

	var data marketResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if data.ConditionID == "" || data.YesTokenID == "" || data.NoTokenID == "" {
		return nil, fmt.Errorf("incomplete metadata for market %s", marketID)
	}

	return &types.MarketMeta{
		ConditionID: data.ConditionID,
		YesTokenID:  data.YesTokenID,
		NoTokenID:   data.NoTokenID,
		Slug:        data.Slug,
	}, nil
}
