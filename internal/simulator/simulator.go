// Package simulator serves the SensorService contract from in-memory,
// randomly drifting moisture sensors. It is a development backend for the
// viewer and keeps nothing across restarts.
package simulator

import (
	"context"
	"log"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/agsys/habanero-viewer/internal/sensorpb"
)

const (
	// maxActivationMs is the longest watering the service accepts
	maxActivationMs = 60_000

	sensorType      = "soil-moisture"
	defaultLocation = "unspecified"
)

// Config holds simulator configuration
type Config struct {
	Identifiers    []string      // Machine identifiers, one sensor each
	SampleInterval time.Duration // Time between generated samples
	Retention      time.Duration // Samples older than this are dropped
	Backfill       bool          // Generate a full retention window at start
	DecayPerMinute float64       // Moisture lost per minute, in percent points
	GainPerSecond  float64       // Moisture gained per second of watering
	Seed           int64
	Logger         *log.Logger
}

// DefaultConfig returns default simulator configuration
func DefaultConfig() Config {
	return Config{
		Identifiers:    []string{"e6614103e70c7137", "e6614103e70c7138"},
		SampleInterval: 30 * time.Second,
		Retention:      24 * time.Hour,
		Backfill:       true,
		DecayPerMinute: 0.05,
		GainPerSecond:  0.5,
		Seed:           1,
	}
}

type sensor struct {
	info     *sensorpb.Sensor
	moisture float64
	samples  []*sensorpb.SensorReading // Oldest first
	wetUntil time.Time
}

// Server implements sensorpb.SensorServiceServer
type Server struct {
	config Config
	logger *log.Logger
	now    func() time.Time

	mu      sync.Mutex
	rng     *rand.Rand
	order   []*sensor
	sensors map[string]*sensor

	stopChan chan struct{}
	wg       sync.WaitGroup
}

var _ sensorpb.SensorServiceServer = (*Server)(nil)

// New creates a simulator with one sensor per configured identifier
func New(config Config) *Server {
	return newServer(config, time.Now)
}

func newServer(config Config, now func() time.Time) *Server {
	defaults := DefaultConfig()
	if config.SampleInterval <= 0 {
		config.SampleInterval = defaults.SampleInterval
	}
	if config.Retention <= 0 {
		config.Retention = defaults.Retention
	}
	logger := config.Logger
	if logger == nil {
		logger = log.Default()
	}

	s := &Server{
		config:   config,
		logger:   logger,
		now:      now,
		rng:      rand.New(rand.NewSource(config.Seed)),
		sensors:  make(map[string]*sensor),
		stopChan: make(chan struct{}),
	}

	for _, identifier := range config.Identifiers {
		sn := &sensor{
			info: &sensorpb.Sensor{
				Id:         uuid.NewString(),
				Identifier: identifier,
				Type:       sensorType,
				Location:   defaultLocation,
			},
			moisture: 30 + s.rng.Float64()*40,
		}
		s.order = append(s.order, sn)
		s.sensors[sn.info.Id] = sn
	}

	if config.Backfill {
		s.backfill()
	}
	return s
}

// Start samples every sensor on the configured interval until Stop
func (s *Server) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.sampleLoop(ctx)
	s.logger.Printf("Simulating %d sensors every %v", len(s.order), s.config.SampleInterval)
}

// Stop stops sampling
func (s *Server) Stop() {
	close(s.stopChan)
	s.wg.Wait()
}

func (s *Server) sampleLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.SampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.Sample()
		}
	}
}

// Sample records one reading per sensor at the current time
func (s *Server) Sample() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sampleLocked(s.now())
}

func (s *Server) backfill() {
	s.mu.Lock()
	defer s.mu.Unlock()

	end := s.now()
	for t := end.Add(-s.config.Retention).Add(s.config.SampleInterval); !t.After(end); t = t.Add(s.config.SampleInterval) {
		s.sampleLocked(t)
	}
}

func (s *Server) sampleLocked(at time.Time) {
	at = at.Truncate(time.Second)
	minutes := s.config.SampleInterval.Minutes()

	for _, sn := range s.order {
		delta := -s.config.DecayPerMinute*minutes + (s.rng.Float64()-0.5)*0.4
		if at.Before(sn.wetUntil) {
			delta += s.config.GainPerSecond * s.config.SampleInterval.Seconds()
		}
		sn.moisture = math.Max(0, math.Min(100, sn.moisture+delta))

		sn.samples = append(sn.samples, &sensorpb.SensorReading{
			SensorId:  sn.info.Id,
			Timestamp: timestamppb.New(at),
			Moisture:  math.Round(sn.moisture*100) / 100,
		})
	}
	s.pruneLocked(at)
}

func (s *Server) pruneLocked(now time.Time) {
	cutoff := now.Add(-s.config.Retention)
	for _, sn := range s.order {
		i := sort.Search(len(sn.samples), func(i int) bool {
			return !sn.samples[i].Timestamp.AsTime().Before(cutoff)
		})
		if i > 0 {
			sn.samples = append([]*sensorpb.SensorReading(nil), sn.samples[i:]...)
		}
	}
}

// lookupLocked validates a sensor id the way the service does
func (s *Server) lookupLocked(sensorID string) (*sensor, error) {
	if sensorID == "" {
		return nil, status.Error(codes.InvalidArgument, "sensor ID is required")
	}
	if _, err := uuid.Parse(sensorID); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid sensor ID: %v", err)
	}
	sn, ok := s.sensors[sensorID]
	if !ok {
		return nil, status.Errorf(codes.NotFound, "sensor %s not found", sensorID)
	}
	return sn, nil
}

// GetSensors lists the simulated sensors in creation order
func (s *Server) GetSensors(_ context.Context, _ *sensorpb.GetSensorsRequest) (*sensorpb.GetSensorsResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	resp := &sensorpb.GetSensorsResponse{Sensors: make([]*sensorpb.Sensor, 0, len(s.order))}
	for _, sn := range s.order {
		info := *sn.info
		resp.Sensors = append(resp.Sensors, &info)
	}
	return resp, nil
}

// GetSensorReadings returns hourly averages over the last 24 hours, oldest
// bucket first. Each bucket is stamped with the start of its hour.
func (s *Server) GetSensorReadings(_ context.Context, req *sensorpb.GetSensorReadingsRequest) (*sensorpb.GetSensorReadingsResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sn, err := s.lookupLocked(req.SensorId)
	if err != nil {
		return nil, err
	}

	cutoff := s.now().Add(-24 * time.Hour)
	var (
		readings []*sensorpb.SensorReading
		bucket   time.Time
		sum      float64
		count    int
	)
	flush := func() {
		if count == 0 {
			return
		}
		readings = append(readings, &sensorpb.SensorReading{
			SensorId:  sn.info.Id,
			Timestamp: timestamppb.New(bucket),
			Moisture:  sum / float64(count),
		})
	}

	for _, r := range sn.samples {
		t := r.Timestamp.AsTime()
		if t.Before(cutoff) {
			continue
		}
		hour := t.Truncate(time.Hour)
		if !hour.Equal(bucket) {
			flush()
			bucket, sum, count = hour, 0, 0
		}
		sum += r.Moisture
		count++
	}
	flush()

	return &sensorpb.GetSensorReadingsResponse{Readings: readings}, nil
}

// GetIndividualSensorReadings returns samples taken in [start, end], newest
// first. A missing end means now.
func (s *Server) GetIndividualSensorReadings(_ context.Context, req *sensorpb.GetIndividualSensorReadingsRequest) (*sensorpb.GetIndividualSensorReadingsResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sn, err := s.lookupLocked(req.SensorId)
	if err != nil {
		return nil, err
	}

	var start, end time.Time
	if req.Start != nil {
		start = req.Start.AsTime()
	}
	if req.End != nil {
		end = req.End.AsTime()
	} else {
		end = s.now()
	}

	readings := make([]*sensorpb.SensorReading, 0)
	for i := len(sn.samples) - 1; i >= 0; i-- {
		r := sn.samples[i]
		t := r.Timestamp.AsTime()
		if t.After(end) {
			continue
		}
		if t.Before(start) {
			break
		}
		readings = append(readings, r)
	}
	return &sensorpb.GetIndividualSensorReadingsResponse{Readings: readings}, nil
}

// ActivateWatering accepts 1..60000 ms and wets the sensor's soil for that long
func (s *Server) ActivateWatering(_ context.Context, req *sensorpb.ActivateWateringRequest) (*sensorpb.ActivateWateringResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sn, err := s.lookupLocked(req.SensorId)
	if err != nil {
		return nil, err
	}
	if req.DurationMs == 0 {
		return nil, status.Error(codes.InvalidArgument, "activation duration is required")
	}
	if req.DurationMs < 0 || req.DurationMs > maxActivationMs {
		return nil, status.Error(codes.InvalidArgument, "activation duration cannot be more than 60 seconds")
	}

	until := s.now().Add(time.Duration(req.DurationMs) * time.Millisecond)
	if until.After(sn.wetUntil) {
		sn.wetUntil = until
	}
	s.logger.Printf("Watering %s for %dms (habanero-controls/%s/pump/3)", sn.info.Identifier, req.DurationMs, sn.info.Identifier)

	return &sensorpb.ActivateWateringResponse{}, nil
}

// SensorIDs returns the ids of the simulated sensors in creation order
func (s *Server) SensorIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, len(s.order))
	for i, sn := range s.order {
		ids[i] = sn.info.Id
	}
	return ids
}
