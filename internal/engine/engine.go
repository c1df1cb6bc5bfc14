// Package engine wires the telemetry client into views. A view is one
// sensor selection, the poll controller observing it and a command issuer.
package engine

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/agsys/habanero-viewer/internal/cloud"
	"github.com/agsys/habanero-viewer/internal/control"
	"github.com/agsys/habanero-viewer/internal/poller"
	"github.com/agsys/habanero-viewer/internal/selection"
	"github.com/agsys/habanero-viewer/internal/telemetry"
)

// Config holds engine configuration
type Config struct {
	GRPCAddr        string // Telemetry service address (e.g., "habanero.local:8080")
	ClientID        string
	UseTLS          bool
	CallTimeout     time.Duration // Zero waits indefinitely
	PollInterval    time.Duration
	PollImmediately bool
	Window          time.Duration
	Location        *time.Location
	Logger          *log.Logger
}

// DefaultConfig returns default engine configuration
func DefaultConfig() Config {
	return Config{
		GRPCAddr:     "localhost:8080",
		UseTLS:       false,
		PollInterval: telemetry.PollInterval,
		Window:       telemetry.IndividualWindow,
		Location:     time.Local,
	}
}

// Facade is everything a view needs from the telemetry service
type Facade interface {
	ListSensors(ctx context.Context) ([]telemetry.Sensor, error)
	poller.Fetcher
	control.Activator
}

// Engine owns the telemetry client and the views built on it
type Engine struct {
	config Config
	client Facade
	closer io.Closer
	logger *log.Logger

	mu    sync.Mutex
	views map[*View]struct{}
}

// New connects a gRPC telemetry client and returns an engine using it
func New(config Config) (*Engine, error) {
	cloudCfg := cloud.DefaultConfig()
	cloudCfg.ServerAddr = config.GRPCAddr
	cloudCfg.ClientID = config.ClientID
	cloudCfg.UseTLS = config.UseTLS
	cloudCfg.CallTimeout = config.CallTimeout

	client, err := cloud.New(cloudCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create telemetry client: %w", err)
	}

	e := NewWithFacade(config, client)
	e.closer = client
	return e, nil
}

// NewWithFacade returns an engine over an existing facade
func NewWithFacade(config Config, facade Facade) *Engine {
	logger := config.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{
		config: config,
		client: facade,
		logger: logger,
		views:  make(map[*View]struct{}),
	}
}

// Sensors lists the known sensors. On failure the list is empty and the
// error is returned for reporting only.
func (e *Engine) Sensors(ctx context.Context) ([]telemetry.Sensor, error) {
	sensors, err := e.client.ListSensors(ctx)
	if err != nil {
		e.logger.Printf("Failed to list sensors: %v", err)
		return []telemetry.Sensor{}, err
	}
	return sensors, nil
}

// FindSensor looks a sensor up by id or identifier
func (e *Engine) FindSensor(ctx context.Context, key string) (telemetry.Sensor, error) {
	sensors, err := e.Sensors(ctx)
	if err != nil {
		return telemetry.Sensor{}, fmt.Errorf("failed to list sensors: %w", err)
	}
	for _, s := range sensors {
		if s.ID == key || s.Identifier == key {
			return s, nil
		}
	}
	return telemetry.Sensor{}, fmt.Errorf("sensor %q not found: %w", key, telemetry.ErrInvalidArgument)
}

// Activate sends a single watering command outside any view
func (e *Engine) Activate(ctx context.Context, sensorID string, seconds int) error {
	return control.NewIssuer(e.client, e.logger).Activate(ctx, sensorID, seconds)
}

// NewView builds an idle view
func (e *Engine) NewView() *View {
	pollCfg := poller.DefaultConfig()
	if e.config.PollInterval > 0 {
		pollCfg.Interval = e.config.PollInterval
	}
	if e.config.Window > 0 {
		pollCfg.Window = e.config.Window
	}
	if e.config.Location != nil {
		pollCfg.Location = e.config.Location
	}
	pollCfg.PollImmediately = e.config.PollImmediately
	pollCfg.Logger = e.logger

	v := &View{
		Selection:  selection.New(),
		Controller: poller.New(e.client, pollCfg),
		Issuer:     control.NewIssuer(e.client, e.logger),
		engine:     e,
	}
	v.Selection.Subscribe(v.Controller)

	e.mu.Lock()
	e.views[v] = struct{}{}
	e.mu.Unlock()
	return v
}

// ViewCount returns the number of open views
func (e *Engine) ViewCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.views)
}

// Close tears down every open view and closes the telemetry client
func (e *Engine) Close() error {
	e.mu.Lock()
	views := make([]*View, 0, len(e.views))
	for v := range e.views {
		views = append(views, v)
	}
	e.mu.Unlock()

	for _, v := range views {
		v.Close()
	}

	if e.closer != nil {
		if err := e.closer.Close(); err != nil {
			return fmt.Errorf("failed to close telemetry client: %w", err)
		}
	}
	return nil
}

// View is one sensor selection with its own polling loop
type View struct {
	Selection  *selection.State
	Controller *poller.Controller
	Issuer     *control.Issuer

	engine    *Engine
	closeOnce sync.Once
}

// Water activates watering on the selected sensor
func (v *View) Water(ctx context.Context, seconds int) error {
	sensor, _ := v.Selection.Current()
	sensorID := ""
	if sensor != nil {
		sensorID = sensor.ID
	}
	return v.Issuer.Activate(ctx, sensorID, seconds)
}

// Close stops the view's polling for good
func (v *View) Close() {
	v.closeOnce.Do(func() {
		v.Controller.Teardown()

		v.engine.mu.Lock()
		delete(v.engine.views, v)
		v.engine.mu.Unlock()
	})
}
