package dashboard

// Package dashboard contains domain types for the tenant-scoped dashboard
// read path.

import "time"

// MetricRow is one aggregated metric value for one day.
type MetricRow struct {
	Metric string    `json:"metric"`
	Day    time.Time `json:"day"`
	Value  float64   `json:"value"`
}

// Dataset is the dashboard payload for one tenant. An empty Schema means
// the principal's email domain resolved to no tenant; Rows is empty and
// that is data, not an error.
type Dataset struct {
	Schema      string      `json:"schema,omitempty"`
	Rows        []MetricRow `json:"rows"`
	GeneratedAt time.Time   `json:"generated_at"`
}

// Empty returns a dataset for a principal with no visible tenant data.
func Empty(now time.Time) Dataset {
	return Dataset{Rows: []MetricRow{}, GeneratedAt: now}
}
