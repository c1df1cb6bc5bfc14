// Package control issues watering commands for the selected sensor.
package control

import (
	"context"
	"fmt"
	"log"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/agsys/habanero-viewer/internal/telemetry"
)

var activations = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "habanero_viewer_watering_activations_total",
		Help: "Watering commands by result (ok, invalid, transport_error)",
	},
	[]string{"result"},
)

func init() {
	prometheus.MustRegister(activations)
}

// Activator is the part of the telemetry facade that starts watering
type Activator interface {
	ActivateWatering(ctx context.Context, sensorID string, durationMs int64) error
}

// Command is one watering activation. It is built, sent once and dropped.
type Command struct {
	SensorID   string
	DurationMs int64
}

// NewCommand validates a user request and converts seconds to milliseconds
func NewCommand(sensorID string, seconds int) (Command, error) {
	if sensorID == "" {
		return Command{}, fmt.Errorf("no sensor selected: %w", telemetry.ErrInvalidArgument)
	}
	if seconds < 0 || seconds > telemetry.MaxWateringSeconds {
		return Command{}, fmt.Errorf("duration %ds outside [0, %d]: %w", seconds, telemetry.MaxWateringSeconds, telemetry.ErrInvalidArgument)
	}
	return Command{SensorID: sensorID, DurationMs: int64(seconds) * 1000}, nil
}

// Issuer submits watering commands. It keeps no state between calls: every
// Activate is one independent command with no retry and no de-duplication.
type Issuer struct {
	client Activator
	logger *log.Logger
}

// NewIssuer creates an issuer. A nil logger uses log.Default().
func NewIssuer(client Activator, logger *log.Logger) *Issuer {
	if logger == nil {
		logger = log.Default()
	}
	return &Issuer{client: client, logger: logger}
}

// Activate waters sensorID for seconds. Invalid input fails with
// telemetry.ErrInvalidArgument before anything is sent; transport failures
// are returned as they are.
func (i *Issuer) Activate(ctx context.Context, sensorID string, seconds int) error {
	cmd, err := NewCommand(sensorID, seconds)
	if err != nil {
		activations.WithLabelValues("invalid").Inc()
		return err
	}
	return i.Submit(ctx, cmd)
}

// Submit sends an already built command
func (i *Issuer) Submit(ctx context.Context, cmd Command) error {
	if err := i.client.ActivateWatering(ctx, cmd.SensorID, cmd.DurationMs); err != nil {
		if telemetry.IsTransport(err) {
			activations.WithLabelValues("transport_error").Inc()
		} else {
			activations.WithLabelValues("invalid").Inc()
		}
		i.logger.Printf("Failed to activate watering for sensor %s (%dms): %v", cmd.SensorID, cmd.DurationMs, err)
		return fmt.Errorf("failed to activate watering: %w", err)
	}

	activations.WithLabelValues("ok").Inc()
	i.logger.Printf("Activated watering for sensor %s for %dms", cmd.SensorID, cmd.DurationMs)
	return nil
}
