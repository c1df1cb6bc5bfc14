// Package poller owns the polling lifecycle of a view: one sensor, one display
// mode and one repeating timer at a time, with late responses from superseded
// polling contexts discarded.
package poller

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/agsys/habanero-viewer/internal/telemetry"
)

// ErrStopped is returned for transitions requested after Teardown
var ErrStopped = errors.New("poll controller stopped")

// State of the controller
type State int

const (
	Idle State = iota
	Polling
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Polling:
		return "polling"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Fetcher is the part of the telemetry facade the controller polls
type Fetcher interface {
	FetchAggregatedReadings(ctx context.Context, sensorID string) ([]telemetry.Reading, error)
	FetchIndividualReadings(ctx context.Context, sensorID string, start, end time.Time) ([]telemetry.Reading, error)
}

// Config holds controller configuration
type Config struct {
	Interval time.Duration // Tick period
	Window   time.Duration // Trailing window for Individual mode

	// PollImmediately fetches once when a polling context starts instead of
	// waiting a full interval for the first tick.
	PollImmediately bool

	Location  *time.Location // Zone for chart labels
	Logger    *log.Logger
	NewTicker func(time.Duration) Ticker
	Now       func() time.Time
}

// DefaultConfig returns default controller configuration
func DefaultConfig() Config {
	return Config{
		Interval:  telemetry.PollInterval,
		Window:    telemetry.IndividualWindow,
		Location:  time.Local,
		Logger:    log.Default(),
		NewTicker: NewTicker,
		Now:       time.Now,
	}
}

// Update is one published series
type Update struct {
	Sensor     telemetry.Sensor       `json:"sensor"`
	Mode       telemetry.DisplayMode  `json:"mode"`
	Points     []telemetry.ChartPoint `json:"points"`
	Generation uint64                 `json:"generation"`
	Sequence   uint64                 `json:"sequence"`
	At         time.Time              `json:"at"`
}

// Stats exposes lifecycle and failure counters
type Stats struct {
	State           State
	Generation      uint64 // Id of the newest polling context
	ActiveContexts  int
	StartedContexts int
	DisposedTimers  int
	Ticks           uint64
	Published       uint64
	Discarded       uint64
	Failures        uint64
	LastError       error
}

// pollContext is one (sensor, mode) pairing being polled
type pollContext struct {
	generation uint64
	sensor     telemetry.Sensor
	mode       telemetry.DisplayMode
	ctx        context.Context
	cancel     context.CancelFunc
	ticker     Ticker
	published  uint64 // Sequence of the last published tick, guarded by Controller.mu
}

type subscriber struct {
	id int
	fn func(Update)
}

// Controller runs at most one polling loop and publishes its series
type Controller struct {
	config  Config
	fetcher Fetcher
	logger  *log.Logger

	mu          sync.Mutex
	state       State
	generation  uint64
	active      *pollContext
	latest      *Update
	subscribers []subscriber
	nextSubID   int
	stats       Stats

	wg sync.WaitGroup
}

// New creates an idle controller polling through fetcher
func New(fetcher Fetcher, config Config) *Controller {
	defaults := DefaultConfig()
	if config.Interval <= 0 {
		config.Interval = defaults.Interval
	}
	if config.Window <= 0 {
		config.Window = defaults.Window
	}
	if config.Location == nil {
		config.Location = defaults.Location
	}
	if config.Logger == nil {
		config.Logger = defaults.Logger
	}
	if config.NewTicker == nil {
		config.NewTicker = defaults.NewTicker
	}
	if config.Now == nil {
		config.Now = defaults.Now
	}

	return &Controller{
		config:  config,
		fetcher: fetcher,
		logger:  config.Logger,
		state:   Idle,
	}
}

// Subscribe registers fn for every published update. fn runs with the
// controller locked, so it must not block or call back into the controller.
func (c *Controller) Subscribe(fn func(Update)) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextSubID++
	id := c.nextSubID
	c.subscribers = append(c.subscribers, subscriber{id: id, fn: fn})

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, s := range c.subscribers {
			if s.id == id {
				c.subscribers = append(c.subscribers[:i], c.subscribers[i+1:]...)
				return
			}
		}
	}
}

// SelectionChanged applies a selection change: nil deselects
func (c *Controller) SelectionChanged(sensor *telemetry.Sensor, mode telemetry.DisplayMode) {
	if sensor == nil {
		c.Deselect()
		return
	}
	if err := c.Select(*sensor, mode); err != nil {
		c.logger.Printf("Ignoring selection of sensor %s: %v", sensor.Label(), err)
	}
}

// Select starts polling sensor in mode, replacing any running context.
// Selecting the sensor and mode already being polled changes nothing.
func (c *Controller) Select(sensor telemetry.Sensor, mode telemetry.DisplayMode) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == Stopped {
		return ErrStopped
	}
	if c.active != nil && c.active.sensor.ID == sensor.ID && c.active.mode == mode {
		return nil
	}

	c.stopActiveLocked()
	c.startLocked(sensor, mode)
	return nil
}

// Deselect stops polling. The last published series stays available.
func (c *Controller) Deselect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == Stopped {
		return
	}
	if c.active != nil {
		c.logger.Printf("Stopped polling sensor %s", c.active.sensor.Label())
	}
	c.stopActiveLocked()
	c.state = Idle
}

// Teardown stops polling for good and waits for the loop goroutine to exit.
// Fetches still in flight are cancelled and their results discarded.
func (c *Controller) Teardown() {
	c.mu.Lock()
	c.stopActiveLocked()
	c.state = Stopped
	c.subscribers = nil
	c.mu.Unlock()

	c.wg.Wait()
}

// State returns the current state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Current returns the sensor and mode being polled
func (c *Controller) Current() (telemetry.Sensor, telemetry.DisplayMode, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active == nil {
		return telemetry.Sensor{}, telemetry.Aggregated, false
	}
	return c.active.sensor, c.active.mode, true
}

// Series returns a copy of the last published series
func (c *Controller) Series() []telemetry.ChartPoint {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.latest == nil {
		return nil
	}
	points := make([]telemetry.ChartPoint, len(c.latest.Points))
	copy(points, c.latest.Points)
	return points
}

// Latest returns the last published update
func (c *Controller) Latest() (Update, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.latest == nil {
		return Update{}, false
	}
	return *c.latest, true
}

// Stats returns a snapshot of the controller counters
func (c *Controller) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := c.stats
	stats.State = c.state
	stats.Generation = c.generation
	if c.active != nil {
		stats.ActiveContexts = 1
	}
	return stats
}

func (c *Controller) startLocked(sensor telemetry.Sensor, mode telemetry.DisplayMode) {
	c.generation++
	ctx, cancel := context.WithCancel(context.Background())

	pc := &pollContext{
		generation: c.generation,
		sensor:     sensor,
		mode:       mode,
		ctx:        ctx,
		cancel:     cancel,
		ticker:     c.config.NewTicker(c.config.Interval),
	}
	c.active = pc
	c.state = Polling
	c.stats.StartedContexts++
	activeContexts.Inc()

	c.wg.Add(1)
	go c.loop(pc)

	c.logger.Printf("Polling sensor %s in %s mode every %v", sensor.Label(), mode, c.config.Interval)
}

// stopActiveLocked releases the timer and cancels in-flight fetches
func (c *Controller) stopActiveLocked() {
	pc := c.active
	if pc == nil {
		return
	}
	pc.cancel()
	pc.ticker.Stop()
	c.active = nil
	c.stats.DisposedTimers++
	activeContexts.Dec()
}

// loop turns ticks into fetches until its context is cancelled. Each fetch
// runs on its own goroutine so a slow call does not hold back later ticks.
func (c *Controller) loop(pc *pollContext) {
	defer c.wg.Done()

	var seq uint64
	if c.config.PollImmediately {
		seq++
		go c.poll(pc, seq)
	}

	for {
		select {
		case <-pc.ctx.Done():
			return
		case <-pc.ticker.C():
			if pc.ctx.Err() != nil {
				return
			}
			seq++
			go c.poll(pc, seq)
		}
	}
}

func (c *Controller) poll(pc *pollContext, seq uint64) {
	c.mu.Lock()
	c.stats.Ticks++
	c.mu.Unlock()
	pollTicks.WithLabelValues(pc.mode.String()).Inc()

	readings, err := c.fetch(pc)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active != pc {
		c.stats.Discarded++
		pollDiscarded.Inc()
		return
	}

	if err != nil {
		c.stats.Failures++
		c.stats.LastError = err
		pollFailures.WithLabelValues(pc.mode.String()).Inc()
		c.logger.Printf("Failed to poll sensor %s (%s): %v", pc.sensor.Label(), pc.mode, err)
		return
	}

	if seq <= pc.published {
		c.stats.Discarded++
		pollDiscarded.Inc()
		return
	}
	pc.published = seq

	update := Update{
		Sensor:     pc.sensor,
		Mode:       pc.mode,
		Points:     telemetry.TransformIn(readings, pc.mode, c.config.Location),
		Generation: pc.generation,
		Sequence:   seq,
		At:         c.config.Now(),
	}
	c.latest = &update
	c.stats.Published++
	pollPublished.WithLabelValues(pc.mode.String()).Inc()
	lastPublishTimestamp.Set(float64(update.At.Unix()))

	for _, s := range c.subscribers {
		s.fn(update)
	}
}

// fetch calls the endpoint matching the context mode. The Individual window
// is recomputed on every call.
func (c *Controller) fetch(pc *pollContext) ([]telemetry.Reading, error) {
	if pc.mode == telemetry.Individual {
		end := c.config.Now()
		start := end.Add(-c.config.Window)
		return c.fetcher.FetchIndividualReadings(pc.ctx, pc.sensor.ID, start, end)
	}
	return c.fetcher.FetchAggregatedReadings(pc.ctx, pc.sensor.ID)
}
