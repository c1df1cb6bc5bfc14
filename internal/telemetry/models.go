// Package telemetry holds the domain types shared by the viewer: sensors,
// readings, display modes and chart points, plus the reading transformer.
package telemetry

import (
	"fmt"
	"strings"
	"time"
)

const (
	// PollInterval is the fixed cadence of the poll loop
	PollInterval = 2000 * time.Millisecond

	// IndividualWindow is the trailing window requested in Individual mode
	IndividualWindow = 24 * time.Hour

	// MaxWateringSeconds bounds a single watering activation
	MaxWateringSeconds = 60

	// DefaultWateringSeconds is the duration offered before the user picks one
	DefaultWateringSeconds = 10
)

// Sensor represents a moisture sensor known to the telemetry service
type Sensor struct {
	ID         string `json:"id"`         // Opaque service identifier
	Identifier string `json:"identifier"` // Human readable label (machine name)
	Type       string `json:"type,omitempty"`
	Location   string `json:"location,omitempty"`
}

// Label returns the name shown to users, falling back to the id
func (s Sensor) Label() string {
	if s.Identifier != "" {
		return s.Identifier
	}
	return s.ID
}

// Reading represents a single moisture sample or an aggregated bucket
type Reading struct {
	SensorID  string    `json:"sensor_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Moisture  float64   `json:"moisture"`
}

// ChartPoint is a plottable (label, value) pair derived from a reading
type ChartPoint struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// DisplayMode selects which readings endpoint feeds the chart
type DisplayMode int

const (
	// Aggregated requests server-side hourly averages (default)
	Aggregated DisplayMode = iota
	// Individual requests raw samples over the trailing window
	Individual
)

func (m DisplayMode) String() string {
	switch m {
	case Aggregated:
		return "aggregated"
	case Individual:
		return "individual"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Toggle returns the other display mode
func (m DisplayMode) Toggle() DisplayMode {
	if m == Individual {
		return Aggregated
	}
	return Individual
}

// ParseDisplayMode parses a mode name as accepted on the command line and
// over the live feed.
func ParseDisplayMode(s string) (DisplayMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "aggregated", "aggregate", "":
		return Aggregated, nil
	case "individual", "raw":
		return Individual, nil
	default:
		return Aggregated, fmt.Errorf("unknown display mode %q: %w", s, ErrInvalidArgument)
	}
}

// MarshalText implements encoding.TextMarshaler
func (m DisplayMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (m *DisplayMode) UnmarshalText(text []byte) error {
	mode, err := ParseDisplayMode(string(text))
	if err != nil {
		return err
	}
	*m = mode
	return nil
}
