package control

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"

	"github.com/agsys/habanero-viewer/internal/telemetry"
)

type activation struct {
	sensorID   string
	durationMs int64
}

// MockActivator records every call
type MockActivator struct {
	calls []activation
	err   error
}

func (m *MockActivator) ActivateWatering(_ context.Context, sensorID string, durationMs int64) error {
	m.calls = append(m.calls, activation{sensorID: sensorID, durationMs: durationMs})
	return m.err
}

func newTestIssuer(client Activator) *Issuer {
	return NewIssuer(client, log.New(io.Discard, "", 0))
}

func TestNewCommandConversion(t *testing.T) {
	tests := []struct {
		seconds int
		want    int64
	}{
		{0, 0},
		{1, 1000},
		{10, 10000},
		{60, 60000},
	}

	for _, tt := range tests {
		cmd, err := NewCommand("s1", tt.seconds)
		if err != nil {
			t.Fatalf("NewCommand(%d) failed: %v", tt.seconds, err)
		}
		if cmd.DurationMs != tt.want {
			t.Errorf("DurationMs mismatch for %ds: got %d, want %d", tt.seconds, cmd.DurationMs, tt.want)
		}
		if cmd.SensorID != "s1" {
			t.Errorf("SensorID mismatch: got %s, want s1", cmd.SensorID)
		}
	}
}

func TestNewCommandRejects(t *testing.T) {
	tests := []struct {
		name     string
		sensorID string
		seconds  int
	}{
		{"no sensor", "", 10},
		{"negative", "s1", -1},
		{"too long", "s1", 61},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewCommand(tt.sensorID, tt.seconds); !errors.Is(err, telemetry.ErrInvalidArgument) {
				t.Errorf("Expected ErrInvalidArgument, got %v", err)
			}
		})
	}
}

func TestActivateSendsOnce(t *testing.T) {
	client := &MockActivator{}
	issuer := newTestIssuer(client)

	if err := issuer.Activate(context.Background(), "s1", 10); err != nil {
		t.Fatalf("Activate failed: %v", err)
	}
	if len(client.calls) != 1 {
		t.Fatalf("Call count mismatch: got %d, want 1", len(client.calls))
	}
	if client.calls[0] != (activation{sensorID: "s1", durationMs: 10000}) {
		t.Errorf("Call mismatch: got %+v", client.calls[0])
	}

	// Repeated actions are independent commands
	issuer.Activate(context.Background(), "s1", 10)
	if len(client.calls) != 2 {
		t.Errorf("Repeated activation should send again, got %d calls", len(client.calls))
	}
}

func TestActivateWithoutSensor(t *testing.T) {
	client := &MockActivator{}
	issuer := newTestIssuer(client)

	err := issuer.Activate(context.Background(), "", 10)
	if !errors.Is(err, telemetry.ErrInvalidArgument) {
		t.Fatalf("Expected ErrInvalidArgument, got %v", err)
	}
	if len(client.calls) != 0 {
		t.Errorf("Facade should not be called, got %d calls", len(client.calls))
	}
}

func TestActivateTransportErrorSurfaced(t *testing.T) {
	client := &MockActivator{err: &telemetry.TransportError{Op: "ActivateWatering", Err: errors.New("unavailable")}}
	issuer := newTestIssuer(client)

	err := issuer.Activate(context.Background(), "s1", 5)
	if !telemetry.IsTransport(err) {
		t.Fatalf("Expected transport error, got %v", err)
	}
	if len(client.calls) != 1 {
		t.Errorf("Failed command must not be retried, got %d calls", len(client.calls))
	}
}
