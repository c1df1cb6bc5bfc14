package telemetry

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func makeReadings(n int, start time.Time, step time.Duration) []Reading {
	readings := make([]Reading, n)
	for i := range readings {
		readings[i] = Reading{
			SensorID:  "s1",
			Timestamp: start.Add(time.Duration(i) * step),
			Moisture:  float64(i) + 0.5,
		}
	}
	return readings
}

// TestTransformAggregatedPreservesOrder tests that aggregated readings pass through in order
func TestTransformAggregatedPreservesOrder(t *testing.T) {
	start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	for _, n := range []int{1, 2, 5, 24} {
		t.Run(fmt.Sprintf("%d readings", n), func(t *testing.T) {
			readings := makeReadings(n, start, time.Hour)
			points := TransformIn(readings, Aggregated, time.UTC)

			if len(points) != len(readings) {
				t.Fatalf("Length mismatch: got %d, want %d", len(points), len(readings))
			}
			for i, r := range readings {
				if points[i].Value != r.Moisture {
					t.Errorf("Point %d value mismatch: got %v, want %v", i, points[i].Value, r.Moisture)
				}
				want := r.Timestamp.Format(LabelLayout)
				if points[i].Label != want {
					t.Errorf("Point %d label mismatch: got %q, want %q", i, points[i].Label, want)
				}
			}
		})
	}
}

// TestTransformIndividualReverses tests that newest-first samples come out oldest-first
func TestTransformIndividualReverses(t *testing.T) {
	newest := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for _, n := range []int{1, 2, 3, 10} {
		t.Run(fmt.Sprintf("%d readings", n), func(t *testing.T) {
			// Service order: newest first
			readings := makeReadings(n, newest, -time.Minute)
			points := TransformIn(readings, Individual, time.UTC)

			if len(points) != len(readings) {
				t.Fatalf("Length mismatch: got %d, want %d", len(points), len(readings))
			}
			for i := range points {
				src := readings[n-1-i]
				if points[i].Value != src.Moisture {
					t.Errorf("Point %d value mismatch: got %v, want %v", i, points[i].Value, src.Moisture)
				}
			}
			if n > 1 && points[0].Label != newest.Add(-time.Duration(n-1)*time.Minute).Format(LabelLayout) {
				t.Errorf("First point should be the oldest sample, got %q", points[0].Label)
			}
		})
	}
}

// TestTransformEmpty tests that empty input yields empty output in both modes
func TestTransformEmpty(t *testing.T) {
	for _, mode := range []DisplayMode{Aggregated, Individual} {
		if points := Transform(nil, mode); len(points) != 0 {
			t.Errorf("%s: expected no points for nil input, got %d", mode, len(points))
		}
		if points := Transform([]Reading{}, mode); len(points) != 0 {
			t.Errorf("%s: expected no points for empty input, got %d", mode, len(points))
		}
	}
}

// TestTransformLabelUsesLocation tests labels are rendered in the requested zone
func TestTransformLabelUsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	readings := []Reading{{Timestamp: time.Date(2026, 3, 1, 20, 15, 30, 0, time.UTC), Moisture: 41.2}}

	points := TransformIn(readings, Aggregated, loc)
	if points[0].Label != "3:15:30 PM" {
		t.Errorf("Label mismatch: got %q, want %q", points[0].Label, "3:15:30 PM")
	}
}

func TestTransformDoesNotMutateInput(t *testing.T) {
	readings := makeReadings(4, time.Now(), -time.Second)
	first := readings[0]

	TransformIn(readings, Individual, time.UTC)

	if readings[0] != first {
		t.Error("Transform reordered the caller's slice")
	}
}

func TestParseDisplayMode(t *testing.T) {
	tests := []struct {
		in      string
		want    DisplayMode
		wantErr bool
	}{
		{"aggregated", Aggregated, false},
		{"Aggregate", Aggregated, false},
		{"individual", Individual, false},
		{" RAW ", Individual, false},
		{"hourly", Aggregated, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDisplayMode(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidArgument) {
					t.Fatalf("Expected ErrInvalidArgument, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDisplayMode failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Mode mismatch: got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestDisplayModeToggle(t *testing.T) {
	if Aggregated.Toggle() != Individual {
		t.Error("Aggregated should toggle to Individual")
	}
	if Individual.Toggle() != Aggregated {
		t.Error("Individual should toggle to Aggregated")
	}
}

func TestTransportError(t *testing.T) {
	cause := errors.New("connection refused")
	var err error = &TransportError{Op: "GetSensors", Err: cause}
	wrapped := fmt.Errorf("failed to list sensors: %w", err)

	if !IsTransport(wrapped) {
		t.Error("IsTransport should see through wrapping")
	}
	if !errors.Is(wrapped, cause) {
		t.Error("TransportError should unwrap to its cause")
	}
	if IsTransport(ErrInvalidArgument) {
		t.Error("ErrInvalidArgument is not a transport error")
	}
}
