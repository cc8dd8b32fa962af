package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"gacha-card-system/utils"

	"github.com/rs/zerolog"
)

// RatesCacheKey is where the poller stores the latest fiat rates.
const RatesCacheKey = "exchange_rates"

// ExchangeRateClient polls the external rates service so pack purchases
// can be quoted in fiat. Rates live in a shared TTL cache; a stale cache
// simply means no fiat quote on the response.
type ExchangeRateClient struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	Cache      *utils.TTLCache
	Logger     zerolog.Logger
}

func NewExchangeRateClient(baseURL, token string, cache *utils.TTLCache, logger zerolog.Logger) *ExchangeRateClient {
	return &ExchangeRateClient{
		BaseURL:    baseURL,
		Token:      token,
		HTTPClient: utils.HTTPClient,
		Cache:      cache,
		Logger:     logger,
	}
}

// FetchRates pulls the current coin-to-fiat rates.
func (c *ExchangeRateClient) FetchRates(ctx context.Context) (map[string]float64, error) {
	u, err := url.Parse(fmt.Sprintf("%s/api/v1/public/rates", c.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to parse base URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "GET", u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Service-Token", c.Token)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call rates service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("rates service returned status %d: %s", resp.StatusCode, string(body))
	}

	var response struct {
		Rates map[string]float64 `json:"rates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode rates response: %w", err)
	}
	return response.Rates, nil
}

// PollRates refreshes the cache on a fixed interval until ctx is done.
func PollRates(ctx context.Context, client *ExchangeRateClient, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	refresh := func() {
		rates, err := client.FetchRates(ctx)
		if err != nil {
			client.Logger.Warn().Err(err).Msg("exchange rate refresh failed")
			return
		}
		client.Cache.Set(RatesCacheKey, rates)
		client.Logger.Debug().Int("currencies", len(rates)).Msg("exchange rates refreshed")
	}

	refresh()
	for {
		select {
		case <-ticker.C:
			refresh()
		case <-ctx.Done():
			return
		}
	}
}

// RateFor looks up a cached rate; ok is false when the cache is cold or
// the currency is unknown.
func RateFor(cache *utils.TTLCache, currency string) (float64, bool) {
	v, ok := cache.Get(RatesCacheKey)
	if !ok {
		return 0, false
	}
	rates, ok := v.(map[string]float64)
	if !ok {
		return 0, false
	}
	rate, ok := rates[currency]
	return rate, ok
}
