package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"forecastd/internal/forecast"
)

const defaultBaseURL = "https://api.openweathermap.org/data/2.5/forecast/daily"

// Config holds everything needed to build and execute a fetch.
type Config struct {
	APIKey string
	Lat    float64
	Lon    float64
	Days   int

	// BaseURL overrides the OpenWeatherMap endpoint, mainly for tests.
	BaseURL string
	Backoff Backoff
	// RateLimit caps outbound requests per second; zero means one per
	// second, which stays well inside the free-tier quota.
	RateLimit float64
}

// Client fetches the daily forecast from OpenWeatherMap and publishes each
// successful non-empty batch to its slot. Every failure mode is swallowed
// here: a failed fetch publishes nothing and the store keeps its last-good
// data. FetchNow never blocks the caller.
type Client struct {
	cfg      Config
	client   *http.Client
	circuit  *gobreaker.CircuitBreaker
	limiter  *rate.Limiter
	slot     *Slot
	failures atomic.Int64
}

var _ forecast.Fetcher = (*Client)(nil)

func NewClient(client *http.Client, cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Days <= 0 {
		cfg.Days = forecast.HorizonDays
	}
	if cfg.Backoff.InitialInterval <= 0 {
		cfg.Backoff = Backoff{
			MaxRetries:      3,
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     5 * time.Second,
		}
	}
	rps := cfg.RateLimit
	if rps <= 0 {
		rps = 1
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "openweather",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})

	return &Client{
		cfg:     cfg,
		client:  client,
		circuit: cb,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		slot:    NewSlot(),
	}
}

// Subscribe returns a broadcast subscription on the publish slot.
func (c *Client) Subscribe() <-chan forecast.Batch {
	return c.slot.Subscribe()
}

// Failures reports how many fetch attempts have failed since startup.
// Diagnostics only; failures are never surfaced to readers.
func (c *Client) Failures() int64 {
	return c.failures.Load()
}

// FetchNow dispatches one asynchronous fetch and returns immediately.
func (c *Client) FetchNow() {
	go c.fetchOnce()
}

func (c *Client) fetchOnce() {
	// Short correlation id so the log lines of one attempt can be grouped.
	attempt := uuid.NewString()[:8]

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if c.cfg.APIKey == "" {
		c.failures.Add(1)
		log.Printf("fetcher[%s]: openweather api key is not configured", attempt)
		return
	}

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("appid", c.cfg.APIKey)
		values.Set("units", "metric")
		values.Set("lat", fmt.Sprintf("%f", c.cfg.Lat))
		values.Set("lon", fmt.Sprintf("%f", c.cfg.Lon))
		values.Set("cnt", fmt.Sprintf("%d", c.cfg.Days))

		return http.NewRequest(http.MethodGet, fmt.Sprintf("%s?%s", c.cfg.BaseURL, values.Encode()), nil)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		c.failures.Add(1)
		log.Printf("fetcher[%s]: rate limit wait canceled: %v", attempt, err)
		return
	}

	resp, err := getWithResilience(ctx, c.client, c.circuit, c.cfg.Backoff, buildRequest)
	if err != nil {
		c.failures.Add(1)
		log.Printf("fetcher[%s]: fetch failed: %v", attempt, err)
		return
	}
	defer resp.Body.Close()

	batch, err := parseDailyForecast(resp)
	if err != nil {
		c.failures.Add(1)
		log.Printf("fetcher[%s]: parse failed: %v", attempt, err)
		return
	}
	if len(batch) == 0 {
		// Valid response with zero records is a no-op, not an error.
		log.Printf("fetcher[%s]: provider returned an empty forecast; nothing published", attempt)
		return
	}

	c.slot.Publish(batch)
	log.Printf("fetcher[%s]: published batch of %d records", attempt, len(batch))
}

// parseDailyForecast decodes the OpenWeatherMap daily-forecast payload into
// a batch ordered ascending by normalized date.
func parseDailyForecast(resp *http.Response) (forecast.Batch, error) {
	var payload struct {
		List []struct {
			Dt   int64 `json:"dt"`
			Temp struct {
				Min float64 `json:"min"`
				Max float64 `json:"max"`
			} `json:"temp"`
			Humidity float64 `json:"humidity"`
			Pressure float64 `json:"pressure"`
			Speed    float64 `json:"speed"`
			Deg      float64 `json:"deg"`
			Weather  []struct {
				ID int `json:"id"`
			} `json:"weather"`
		} `json:"list"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}

	batch := make(forecast.Batch, 0, len(payload.List))
	for _, day := range payload.List {
		code := 0
		if len(day.Weather) > 0 {
			code = day.Weather[0].ID
		}
		batch = append(batch, forecast.Record{
			Date:          forecast.NormalizeDate(time.Unix(day.Dt, 0).UTC()),
			ConditionCode: code,
			MinTempC:      day.Temp.Min,
			MaxTempC:      day.Temp.Max,
			Humidity:      day.Humidity,
			WindSpeed:     day.Speed,
			WindDeg:       day.Deg,
			Pressure:      day.Pressure,
		})
	}
	sort.Slice(batch, func(i, j int) bool { return batch[i].Date.Before(batch[j].Date) })
	return batch, nil
}
