package engine

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/agsys/habanero-viewer/internal/poller"
	"github.com/agsys/habanero-viewer/internal/telemetry"
)

// MockFacade simulates the telemetry client for testing
type MockFacade struct {
	mu         sync.Mutex
	sensors    []telemetry.Sensor
	listErr    error
	fetches    []string
	activation []int64
}

func (m *MockFacade) ListSensors(context.Context) ([]telemetry.Sensor, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.sensors, nil
}

func (m *MockFacade) FetchAggregatedReadings(_ context.Context, sensorID string) ([]telemetry.Reading, error) {
	m.mu.Lock()
	m.fetches = append(m.fetches, "aggregated:"+sensorID)
	m.mu.Unlock()
	return []telemetry.Reading{{SensorID: sensorID, Timestamp: time.Now(), Moisture: 30}}, nil
}

func (m *MockFacade) FetchIndividualReadings(_ context.Context, sensorID string, _, _ time.Time) ([]telemetry.Reading, error) {
	m.mu.Lock()
	m.fetches = append(m.fetches, "individual:"+sensorID)
	m.mu.Unlock()
	return []telemetry.Reading{{SensorID: sensorID, Timestamp: time.Now(), Moisture: 31}}, nil
}

func (m *MockFacade) ActivateWatering(_ context.Context, _ string, durationMs int64) error {
	m.mu.Lock()
	m.activation = append(m.activation, durationMs)
	m.mu.Unlock()
	return nil
}

func setupTestEngine(t *testing.T, facade *MockFacade) *Engine {
	t.Helper()

	config := DefaultConfig()
	config.PollInterval = 10 * time.Millisecond
	config.PollImmediately = true
	config.Logger = log.New(io.Discard, "", 0)

	e := NewWithFacade(config, facade)
	t.Cleanup(func() { e.Close() })
	return e
}

func waitUpdate(t *testing.T, updates chan poller.Update, want func(poller.Update) bool) poller.Update {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case u := <-updates:
			if want(u) {
				return u
			}
		case <-deadline:
			t.Fatal("Timed out waiting for update")
			return poller.Update{}
		}
	}
}

var greenhouse = telemetry.Sensor{ID: "s1", Identifier: "greenhouse-1"}

// TestSelectionDrivesPolling tests the flow selection -> controller -> published series
func TestSelectionDrivesPolling(t *testing.T) {
	facade := &MockFacade{}
	e := setupTestEngine(t, facade)
	view := e.NewView()

	updates := make(chan poller.Update, 128)
	view.Controller.Subscribe(func(u poller.Update) {
		select {
		case updates <- u:
		default:
		}
	})

	view.Selection.Select(greenhouse)
	if view.Controller.State() != poller.Polling {
		t.Fatalf("Selection should start polling synchronously, state %s", view.Controller.State())
	}
	u := waitUpdate(t, updates, func(u poller.Update) bool { return u.Mode == telemetry.Aggregated })
	if u.Sensor.ID != "s1" || len(u.Points) != 1 || u.Points[0].Value != 30 {
		t.Errorf("Unexpected aggregated update: %+v", u)
	}

	view.Selection.ToggleMode()
	if _, mode, _ := view.Controller.Current(); mode != telemetry.Individual {
		t.Fatalf("Toggle should restart in individual mode, got %s", mode)
	}
	waitUpdate(t, updates, func(u poller.Update) bool { return u.Mode == telemetry.Individual })

	view.Selection.Deselect()
	if view.Controller.State() != poller.Idle {
		t.Errorf("Deselect should idle the controller, state %s", view.Controller.State())
	}
}

func TestViewWater(t *testing.T) {
	facade := &MockFacade{}
	e := setupTestEngine(t, facade)
	view := e.NewView()

	if err := view.Water(context.Background(), 10); !errors.Is(err, telemetry.ErrInvalidArgument) {
		t.Fatalf("Watering without selection should fail with ErrInvalidArgument, got %v", err)
	}

	view.Selection.Select(greenhouse)
	if err := view.Water(context.Background(), 10); err != nil {
		t.Fatalf("Water failed: %v", err)
	}

	facade.mu.Lock()
	defer facade.mu.Unlock()
	if len(facade.activation) != 1 || facade.activation[0] != 10000 {
		t.Errorf("Activation mismatch: %v", facade.activation)
	}
}

func TestSensorsErrorMeansEmpty(t *testing.T) {
	facade := &MockFacade{listErr: &telemetry.TransportError{Op: "GetSensors", Err: errors.New("refused")}}
	e := setupTestEngine(t, facade)

	sensors, err := e.Sensors(context.Background())
	if err == nil {
		t.Fatal("Expected error to be reported")
	}
	if sensors == nil || len(sensors) != 0 {
		t.Errorf("Expected an empty sensor list, got %v", sensors)
	}
}

func TestFindSensor(t *testing.T) {
	facade := &MockFacade{sensors: []telemetry.Sensor{greenhouse, {ID: "s2", Identifier: "greenhouse-2"}}}
	e := setupTestEngine(t, facade)

	for _, key := range []string{"s2", "greenhouse-2"} {
		s, err := e.FindSensor(context.Background(), key)
		if err != nil {
			t.Fatalf("FindSensor(%q) failed: %v", key, err)
		}
		if s.ID != "s2" {
			t.Errorf("FindSensor(%q) mismatch: got %s", key, s.ID)
		}
	}

	if _, err := e.FindSensor(context.Background(), "missing"); !errors.Is(err, telemetry.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument for unknown sensor, got %v", err)
	}
}

func TestCloseTearsDownViews(t *testing.T) {
	e := setupTestEngine(t, &MockFacade{})
	a := e.NewView()
	b := e.NewView()
	a.Selection.Select(greenhouse)

	if e.ViewCount() != 2 {
		t.Fatalf("View count mismatch: got %d, want 2", e.ViewCount())
	}

	b.Close()
	if e.ViewCount() != 1 {
		t.Errorf("View count after close mismatch: got %d, want 1", e.ViewCount())
	}

	if err := e.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if a.Controller.State() != poller.Stopped {
		t.Errorf("Engine close should stop every view, state %s", a.Controller.State())
	}
	if e.ViewCount() != 0 {
		t.Errorf("View count after engine close mismatch: got %d, want 0", e.ViewCount())
	}
}
