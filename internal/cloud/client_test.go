package cloud

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/agsys/habanero-viewer/internal/sensorpb"
	"github.com/agsys/habanero-viewer/internal/telemetry"
)

// MockSensorService records requests and returns canned responses
type MockSensorService struct {
	mu           sync.Mutex
	sensors      []*sensorpb.Sensor
	readings     []*sensorpb.SensorReading
	lastWatering *sensorpb.ActivateWateringRequest
	lastRange    *sensorpb.GetIndividualSensorReadingsRequest
	lastMD       metadata.MD
	err          error
	block        chan struct{}
}

func (m *MockSensorService) record(ctx context.Context) error {
	md, _ := metadata.FromIncomingContext(ctx)
	m.mu.Lock()
	m.lastMD = md
	block := m.block
	err := m.err
	m.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (m *MockSensorService) GetSensors(ctx context.Context, _ *sensorpb.GetSensorsRequest) (*sensorpb.GetSensorsResponse, error) {
	if err := m.record(ctx); err != nil {
		return nil, err
	}
	return &sensorpb.GetSensorsResponse{Sensors: m.sensors}, nil
}

func (m *MockSensorService) GetSensorReadings(ctx context.Context, _ *sensorpb.GetSensorReadingsRequest) (*sensorpb.GetSensorReadingsResponse, error) {
	if err := m.record(ctx); err != nil {
		return nil, err
	}
	return &sensorpb.GetSensorReadingsResponse{Readings: m.readings}, nil
}

func (m *MockSensorService) GetIndividualSensorReadings(ctx context.Context, req *sensorpb.GetIndividualSensorReadingsRequest) (*sensorpb.GetIndividualSensorReadingsResponse, error) {
	m.mu.Lock()
	m.lastRange = req
	m.mu.Unlock()
	if err := m.record(ctx); err != nil {
		return nil, err
	}
	return &sensorpb.GetIndividualSensorReadingsResponse{Readings: m.readings}, nil
}

func (m *MockSensorService) ActivateWatering(ctx context.Context, req *sensorpb.ActivateWateringRequest) (*sensorpb.ActivateWateringResponse, error) {
	m.mu.Lock()
	m.lastWatering = req
	m.mu.Unlock()
	if err := m.record(ctx); err != nil {
		return nil, err
	}
	if req.DurationMs == 0 {
		return nil, status.Error(codes.InvalidArgument, "activation duration is required")
	}
	return &sensorpb.ActivateWateringResponse{}, nil
}

// setupTestClient serves svc on an in-memory listener and returns a client for it
func setupTestClient(t *testing.T, svc *MockSensorService, config Config) *Client {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(sensorpb.ServerOption())
	sensorpb.RegisterSensorServiceServer(srv, svc)
	go srv.Serve(lis)

	config.ServerAddr = "passthrough:///bufnet"
	config.DialOptions = append(config.DialOptions, grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}))

	client, err := New(config)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	t.Cleanup(func() {
		client.Close()
		srv.Stop()
	})
	return client
}

func TestListSensors(t *testing.T) {
	svc := &MockSensorService{
		sensors: []*sensorpb.Sensor{
			{Id: "id-1", Identifier: "greenhouse-1", Type: "moisture", Location: "bed A"},
			{Id: "id-2", Identifier: "greenhouse-2"},
		},
	}
	config := DefaultConfig()
	config.ClientID = "viewer-test"
	client := setupTestClient(t, svc, config)

	sensors, err := client.ListSensors(context.Background())
	if err != nil {
		t.Fatalf("ListSensors failed: %v", err)
	}
	if len(sensors) != 2 {
		t.Fatalf("Sensor count mismatch: got %d, want 2", len(sensors))
	}
	want := telemetry.Sensor{ID: "id-1", Identifier: "greenhouse-1", Type: "moisture", Location: "bed A"}
	if sensors[0] != want {
		t.Errorf("Sensor mismatch: got %+v, want %+v", sensors[0], want)
	}

	svc.mu.Lock()
	md := svc.lastMD
	svc.mu.Unlock()
	if ids := md.Get(requestIDMetadataKey); len(ids) != 1 || ids[0] == "" {
		t.Errorf("Expected a request id in metadata, got %v", ids)
	}
	if ids := md.Get(clientIDMetadataKey); len(ids) != 1 || ids[0] != "viewer-test" {
		t.Errorf("Client id mismatch: got %v", ids)
	}
}

func TestFetchReadingsKeepsServiceOrder(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := &MockSensorService{
		readings: []*sensorpb.SensorReading{
			{SensorId: "s1", Timestamp: timestamppb.New(base), Moisture: 40},
			{SensorId: "s1", Timestamp: timestamppb.New(base.Add(-time.Minute)), Moisture: 41},
			{SensorId: "s1", Moisture: 42}, // no timestamp
		},
	}
	client := setupTestClient(t, svc, DefaultConfig())

	aggregated, err := client.FetchAggregatedReadings(context.Background(), "s1")
	if err != nil {
		t.Fatalf("FetchAggregatedReadings failed: %v", err)
	}
	individual, err := client.FetchIndividualReadings(context.Background(), "s1", base.Add(-24*time.Hour), base)
	if err != nil {
		t.Fatalf("FetchIndividualReadings failed: %v", err)
	}

	for name, readings := range map[string][]telemetry.Reading{"aggregated": aggregated, "individual": individual} {
		if len(readings) != 3 {
			t.Fatalf("%s: reading count mismatch: got %d, want 3", name, len(readings))
		}
		for i, want := range []float64{40, 41, 42} {
			if readings[i].Moisture != want {
				t.Errorf("%s: reading %d moisture mismatch: got %v, want %v", name, i, readings[i].Moisture, want)
			}
		}
		if !readings[0].Timestamp.Equal(base) {
			t.Errorf("%s: timestamp mismatch: got %v, want %v", name, readings[0].Timestamp, base)
		}
		if !readings[2].Timestamp.IsZero() {
			t.Errorf("%s: missing timestamp should decode as zero time", name)
		}
	}

	svc.mu.Lock()
	rng := svc.lastRange
	svc.mu.Unlock()
	if !rng.Start.AsTime().Equal(base.Add(-24*time.Hour)) || !rng.End.AsTime().Equal(base) {
		t.Errorf("Range mismatch: got [%v, %v]", rng.Start.AsTime(), rng.End.AsTime())
	}
}

func TestActivateWatering(t *testing.T) {
	svc := &MockSensorService{}
	client := setupTestClient(t, svc, DefaultConfig())

	if err := client.ActivateWatering(context.Background(), "s1", 10000); err != nil {
		t.Fatalf("ActivateWatering failed: %v", err)
	}

	svc.mu.Lock()
	req := svc.lastWatering
	svc.mu.Unlock()
	if req.SensorId != "s1" || req.DurationMs != 10000 {
		t.Errorf("Request mismatch: got %+v", req)
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name          string
		serverErr     error
		call          func(*Client) error
		wantInvalid   bool
		wantTransport bool
	}{
		{
			name:          "server unavailable",
			serverErr:     status.Error(codes.Unavailable, "database down"),
			call:          func(c *Client) error { _, err := c.ListSensors(context.Background()); return err },
			wantTransport: true,
		},
		{
			name:          "server internal error",
			serverErr:     status.Error(codes.Internal, "boom"),
			call:          func(c *Client) error { _, err := c.FetchAggregatedReadings(context.Background(), "s1"); return err },
			wantTransport: true,
		},
		{
			name:        "server rejects zero duration",
			call:        func(c *Client) error { return c.ActivateWatering(context.Background(), "s1", 0) },
			wantInvalid: true,
		},
		{
			name:        "local empty sensor",
			call:        func(c *Client) error { return c.ActivateWatering(context.Background(), "", 1000) },
			wantInvalid: true,
		},
		{
			name:        "local negative duration",
			call:        func(c *Client) error { return c.ActivateWatering(context.Background(), "s1", -1) },
			wantInvalid: true,
		},
		{
			name: "local inverted range",
			call: func(c *Client) error {
				now := time.Now()
				_, err := c.FetchIndividualReadings(context.Background(), "s1", now, now.Add(-time.Hour))
				return err
			},
			wantInvalid: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &MockSensorService{err: tt.serverErr}
			client := setupTestClient(t, svc, DefaultConfig())

			err := tt.call(client)
			if err == nil {
				t.Fatal("Expected error")
			}
			if got := errors.Is(err, telemetry.ErrInvalidArgument); got != tt.wantInvalid {
				t.Errorf("ErrInvalidArgument mismatch: got %v, want %v (%v)", got, tt.wantInvalid, err)
			}
			if got := telemetry.IsTransport(err); got != tt.wantTransport {
				t.Errorf("TransportError mismatch: got %v, want %v (%v)", got, tt.wantTransport, err)
			}
		})
	}
}

func TestLocalValidationSkipsServer(t *testing.T) {
	svc := &MockSensorService{}
	client := setupTestClient(t, svc, DefaultConfig())

	client.ActivateWatering(context.Background(), "", 1000)

	svc.mu.Lock()
	defer svc.mu.Unlock()
	if svc.lastWatering != nil {
		t.Error("Invalid request should not reach the server")
	}
}

func TestCallTimeout(t *testing.T) {
	svc := &MockSensorService{block: make(chan struct{})}
	defer close(svc.block)

	config := DefaultConfig()
	config.CallTimeout = 50 * time.Millisecond
	client := setupTestClient(t, svc, config)

	start := time.Now()
	_, err := client.ListSensors(context.Background())
	if !telemetry.IsTransport(err) {
		t.Fatalf("Expected transport error, got %v", err)
	}
	if status.Code(errors.Unwrap(errors.Unwrap(err))) != codes.DeadlineExceeded {
		t.Errorf("Expected DeadlineExceeded, got %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Errorf("Call timeout not applied")
	}
}

func TestNoTimeoutWaitsForCaller(t *testing.T) {
	svc := &MockSensorService{block: make(chan struct{})}
	defer close(svc.block)
	client := setupTestClient(t, svc, DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := client.ListSensors(ctx)
		done <- err
	}()

	select {
	case err := <-done:
		t.Fatalf("Call returned before cancellation: %v", err)
	case <-time.After(100 * time.Millisecond):
	}

	cancel()
	select {
	case err := <-done:
		if status.Code(errors.Unwrap(errors.Unwrap(err))) != codes.Canceled {
			t.Errorf("Expected Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Call did not return after cancellation")
	}
}

func TestNewRequiresAddress(t *testing.T) {
	if _, err := New(Config{}); !errors.Is(err, telemetry.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument, got %v", err)
	}
}
