package forecast

import (
	"time"
)

// HorizonDays is the number of future days (today included) the store
// should keep populated.
const HorizonDays = 14

// Record is one day of forecast data, keyed by its normalized date.
// Records are never updated in place; a fresh batch replaces them wholesale.
type Record struct {
	Date          time.Time `json:"date"` // always midnight UTC
	ConditionCode int       `json:"conditionCode"`
	MinTempC      float64   `json:"minTempC"`
	MaxTempC      float64   `json:"maxTempC"`
	Humidity      float64   `json:"humidityPercent"`
	WindSpeed     float64   `json:"windSpeed"`
	WindDeg       float64   `json:"windDirectionDeg"`
	Pressure      float64   `json:"pressureHpa"`
}

// Batch is the atomic product of a single fetch, ordered by date ascending.
// Consumers never observe a partial batch.
type Batch []Record

// NormalizeDate truncates t to its calendar day and re-expresses that day
// at midnight UTC. The result is the unique key for a Record.
func NormalizeDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Today returns the normalized date for the current day.
func Today() time.Time {
	return NormalizeDate(time.Now())
}
