package fetcher

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"forecastd/internal/forecast"
)

const dailyPayload = `{
	"city": {"name": "Test"},
	"cnt": 2,
	"list": [
		{"dt": %d, "temp": {"min": 4.1, "max": 12.7}, "pressure": 1012, "humidity": 71,
		 "speed": 3.4, "deg": 220, "weather": [{"id": 500, "main": "Rain"}]},
		{"dt": %d, "temp": {"min": 2.0, "max": 9.5}, "pressure": 1018, "humidity": 64,
		 "speed": 5.1, "deg": 180, "weather": [{"id": 800, "main": "Clear"}]}
	]
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(srv.Client(), Config{
		APIKey:  "test-key",
		Lat:     52.52,
		Lon:     13.4,
		BaseURL: srv.URL,
		Backoff: Backoff{
			MaxRetries:      0,
			InitialInterval: time.Millisecond,
		},
		RateLimit: 1000,
	})
}

func expectBatch(t *testing.T, sub <-chan forecast.Batch) forecast.Batch {
	t.Helper()
	select {
	case batch := <-sub:
		return batch
	case <-time.After(2 * time.Second):
		t.Fatalf("no batch published")
		return nil
	}
}

func expectNoBatch(t *testing.T, sub <-chan forecast.Batch) {
	t.Helper()
	select {
	case batch := <-sub:
		t.Fatalf("unexpected batch published: %d records", len(batch))
	case <-time.After(200 * time.Millisecond):
	}
}

func TestFetchPublishesParsedBatch(t *testing.T) {
	tomorrow := forecast.Today().AddDate(0, 0, 1)
	body := fmt.Sprintf(dailyPayload, forecast.Today().Unix(), tomorrow.Unix())

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("appid") != "test-key" || q.Get("units") != "metric" {
			t.Errorf("request missing credentials or units: %s", r.URL.RawQuery)
		}
		fmt.Fprint(w, body)
	})

	sub := client.Subscribe()
	client.FetchNow()

	batch := expectBatch(t, sub)
	if len(batch) != 2 {
		t.Fatalf("expected 2 records, got %d", len(batch))
	}
	if !batch[0].Date.Equal(forecast.Today()) {
		t.Fatalf("first record date %v, want %v", batch[0].Date, forecast.Today())
	}
	if batch[0].ConditionCode != 500 || batch[0].MinTempC != 4.1 || batch[0].WindDeg != 220 {
		t.Fatalf("record fields not mapped: %+v", batch[0])
	}
	if !batch[0].Date.Before(batch[1].Date) {
		t.Fatalf("batch not ordered ascending")
	}
	if client.Failures() != 0 {
		t.Fatalf("unexpected failures: %d", client.Failures())
	}
}

func TestFetchSwallowsMalformedResponse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"list": [{"dt": "not-a-number"`)
	})

	sub := client.Subscribe()
	client.FetchNow()

	expectNoBatch(t, sub)
	if client.Failures() != 1 {
		t.Fatalf("expected 1 recorded failure, got %d", client.Failures())
	}
}

func TestFetchSwallowsHTTPErrorStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	sub := client.Subscribe()
	client.FetchNow()

	expectNoBatch(t, sub)
	if client.Failures() != 1 {
		t.Fatalf("expected 1 recorded failure, got %d", client.Failures())
	}
}

func TestFetchAbortsWithoutAPIKey(t *testing.T) {
	called := make(chan struct{}, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called <- struct{}{}
	}))
	defer srv.Close()

	client := NewClient(srv.Client(), Config{BaseURL: srv.URL})
	sub := client.Subscribe()
	client.FetchNow()

	expectNoBatch(t, sub)
	select {
	case <-called:
		t.Fatalf("request issued despite missing api key")
	default:
	}
}

func TestFetchIgnoresEmptyForecast(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"cnt": 0, "list": []}`)
	})

	sub := client.Subscribe()
	client.FetchNow()

	// Valid but empty response: nothing published, not counted as failure.
	expectNoBatch(t, sub)
	if client.Failures() != 0 {
		t.Fatalf("empty forecast counted as failure")
	}
}
