// Package selection holds which sensor a view is looking at and in which
// display mode, and tells observers about every change as it happens.
package selection

import (
	"sync"

	"github.com/agsys/habanero-viewer/internal/telemetry"
)

// Observer is notified after every effective change. sensor is nil when
// nothing is selected. Observers must not mutate the State they observe.
type Observer interface {
	SelectionChanged(sensor *telemetry.Sensor, mode telemetry.DisplayMode)
}

// ObserverFunc adapts a function to Observer
type ObserverFunc func(sensor *telemetry.Sensor, mode telemetry.DisplayMode)

// SelectionChanged calls f
func (f ObserverFunc) SelectionChanged(sensor *telemetry.Sensor, mode telemetry.DisplayMode) {
	f(sensor, mode)
}

// State is the selected sensor (or none) and the display mode, which
// defaults to Aggregated. Observers run synchronously on the goroutine that
// made the change, in registration order, before the mutator returns.
type State struct {
	mu        sync.Mutex
	notifyMu  sync.Mutex
	sensor    *telemetry.Sensor
	mode      telemetry.DisplayMode
	observers []Observer
}

// New returns a state with nothing selected
func New() *State {
	return &State{mode: telemetry.Aggregated}
}

// Subscribe registers an observer
func (s *State) Subscribe(o Observer) {
	s.mu.Lock()
	s.observers = append(s.observers, o)
	s.mu.Unlock()
}

// Current returns the selected sensor (nil if none) and the mode
func (s *State) Current() (*telemetry.Sensor, telemetry.DisplayMode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copySensor(s.sensor), s.mode
}

// Select makes sensor the selected one
func (s *State) Select(sensor telemetry.Sensor) {
	s.update(func() bool {
		if s.sensor != nil && *s.sensor == sensor {
			return false
		}
		s.sensor = &sensor
		return true
	})
}

// Deselect clears the selection
func (s *State) Deselect() {
	s.update(func() bool {
		if s.sensor == nil {
			return false
		}
		s.sensor = nil
		return true
	})
}

// SetMode changes the display mode
func (s *State) SetMode(mode telemetry.DisplayMode) {
	s.update(func() bool {
		if s.mode == mode {
			return false
		}
		s.mode = mode
		return true
	})
}

// ToggleMode flips between Aggregated and Individual
func (s *State) ToggleMode() telemetry.DisplayMode {
	var mode telemetry.DisplayMode
	s.update(func() bool {
		s.mode = s.mode.Toggle()
		mode = s.mode
		return true
	})
	return mode
}

// update applies mutate and, if it changed anything, notifies observers with
// the resulting state. notifyMu keeps notifications in mutation order when
// several goroutines mutate concurrently.
func (s *State) update(mutate func() bool) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	changed := mutate()
	sensor, mode := copySensor(s.sensor), s.mode
	observers := append([]Observer(nil), s.observers...)
	s.mu.Unlock()

	if !changed {
		return
	}
	for _, o := range observers {
		o.SelectionChanged(sensor, mode)
	}
}

func copySensor(s *telemetry.Sensor) *telemetry.Sensor {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}
