// Package cloud provides the client side of the Habanero sensor telemetry
// service over gRPC.
package cloud

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/agsys/habanero-viewer/internal/sensorpb"
	"github.com/agsys/habanero-viewer/internal/telemetry"
)

const (
	// requestIDMetadataKey carries a per-call id for correlating server logs
	requestIDMetadataKey = "x-request-id"

	// clientIDMetadataKey identifies this viewer instance
	clientIDMetadataKey = "x-client-id"
)

// Config holds gRPC client configuration
type Config struct {
	ServerAddr string // gRPC server address (e.g., "habanero.local:8080")
	ClientID   string // Optional id sent with every call
	UseTLS     bool   // Whether to use TLS

	// CallTimeout bounds each RPC. Zero means no deadline: a call waits until
	// the server answers or the caller's context is cancelled.
	CallTimeout time.Duration

	// Keepalive settings
	KeepaliveTime    time.Duration
	KeepaliveTimeout time.Duration

	// Extra dial options appended after the defaults
	DialOptions []grpc.DialOption
}

// DefaultConfig returns default gRPC client configuration
func DefaultConfig() Config {
	return Config{
		ServerAddr:       "localhost:8080",
		UseTLS:           false,
		CallTimeout:      0,
		KeepaliveTime:    30 * time.Second,
		KeepaliveTimeout: 10 * time.Second,
	}
}

// Client is a stateless facade over SensorService. It never retries; the
// caller decides what a failure means.
type Client struct {
	config Config
	conn   *grpc.ClientConn
	rpc    sensorpb.SensorServiceClient
}

// New creates a client for config.ServerAddr. The connection is established
// lazily on the first call.
func New(config Config) (*Client, error) {
	if config.ServerAddr == "" {
		return nil, fmt.Errorf("server address is required: %w", telemetry.ErrInvalidArgument)
	}

	opts := []grpc.DialOption{
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                config.KeepaliveTime,
			Timeout:             config.KeepaliveTimeout,
			PermitWithoutStream: true,
		}),
	}

	if config.UseTLS {
		creds := credentials.NewClientTLSFromCert(nil, "")
		opts = append(opts, grpc.WithTransportCredentials(creds))
	} else {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}
	opts = append(opts, config.DialOptions...)

	conn, err := grpc.NewClient(config.ServerAddr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return &Client{
		config: config,
		conn:   conn,
		rpc:    sensorpb.NewSensorServiceClient(conn),
	}, nil
}

// Close closes the connection
func (c *Client) Close() error {
	return c.conn.Close()
}

// ListSensors returns every sensor known to the service
func (c *Client) ListSensors(ctx context.Context) ([]telemetry.Sensor, error) {
	ctx, cancel, requestID := c.callContext(ctx)
	defer cancel()

	resp, err := c.rpc.GetSensors(ctx, &sensorpb.GetSensorsRequest{})
	if err != nil {
		return nil, classifyError("GetSensors", requestID, err)
	}

	sensors := make([]telemetry.Sensor, 0, len(resp.Sensors))
	for _, s := range resp.Sensors {
		sensors = append(sensors, telemetry.Sensor{
			ID:         s.Id,
			Identifier: s.Identifier,
			Type:       s.Type,
			Location:   s.Location,
		})
	}
	return sensors, nil
}

// FetchAggregatedReadings returns the hourly averages of a sensor, in the
// order the service sends them (oldest first).
func (c *Client) FetchAggregatedReadings(ctx context.Context, sensorID string) ([]telemetry.Reading, error) {
	if sensorID == "" {
		return nil, fmt.Errorf("GetSensorReadings: sensor id is required: %w", telemetry.ErrInvalidArgument)
	}

	ctx, cancel, requestID := c.callContext(ctx)
	defer cancel()

	resp, err := c.rpc.GetSensorReadings(ctx, &sensorpb.GetSensorReadingsRequest{SensorId: sensorID})
	if err != nil {
		return nil, classifyError("GetSensorReadings", requestID, err)
	}
	return toReadings(resp.Readings), nil
}

// FetchIndividualReadings returns the raw samples of a sensor taken in
// [start, end], in the order the service sends them (newest first).
func (c *Client) FetchIndividualReadings(ctx context.Context, sensorID string, start, end time.Time) ([]telemetry.Reading, error) {
	if sensorID == "" {
		return nil, fmt.Errorf("GetIndividualSensorReadings: sensor id is required: %w", telemetry.ErrInvalidArgument)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("GetIndividualSensorReadings: end %v before start %v: %w", end, start, telemetry.ErrInvalidArgument)
	}

	ctx, cancel, requestID := c.callContext(ctx)
	defer cancel()

	resp, err := c.rpc.GetIndividualSensorReadings(ctx, &sensorpb.GetIndividualSensorReadingsRequest{
		SensorId: sensorID,
		Start:    timestamppb.New(start),
		End:      timestamppb.New(end),
	})
	if err != nil {
		return nil, classifyError("GetIndividualSensorReadings", requestID, err)
	}
	return toReadings(resp.Readings), nil
}

// ActivateWatering asks the service to run the pump of a sensor's machine
// for durationMs milliseconds.
func (c *Client) ActivateWatering(ctx context.Context, sensorID string, durationMs int64) error {
	if sensorID == "" {
		return fmt.Errorf("ActivateWatering: sensor id is required: %w", telemetry.ErrInvalidArgument)
	}
	if durationMs < 0 {
		return fmt.Errorf("ActivateWatering: negative duration %dms: %w", durationMs, telemetry.ErrInvalidArgument)
	}

	ctx, cancel, requestID := c.callContext(ctx)
	defer cancel()

	_, err := c.rpc.ActivateWatering(ctx, &sensorpb.ActivateWateringRequest{
		SensorId:   sensorID,
		DurationMs: durationMs,
	})
	if err != nil {
		return classifyError("ActivateWatering", requestID, err)
	}
	return nil
}

// callContext applies the call timeout and attaches request metadata
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc, string) {
	cancel := context.CancelFunc(func() {})
	if c.config.CallTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, c.config.CallTimeout)
	}

	requestID := uuid.NewString()
	pairs := []string{requestIDMetadataKey, requestID}
	if c.config.ClientID != "" {
		pairs = append(pairs, clientIDMetadataKey, c.config.ClientID)
	}
	return metadata.AppendToOutgoingContext(ctx, pairs...), cancel, requestID
}

// classifyError maps a gRPC failure onto the telemetry error taxonomy
func classifyError(op, requestID string, err error) error {
	if st, ok := status.FromError(err); ok && st.Code() == codes.InvalidArgument {
		return fmt.Errorf("%s: %s: %w", op, st.Message(), telemetry.ErrInvalidArgument)
	}
	return &telemetry.TransportError{
		Op:  op,
		Err: fmt.Errorf("request %s: %w", requestID, err),
	}
}

func toReadings(in []*sensorpb.SensorReading) []telemetry.Reading {
	readings := make([]telemetry.Reading, 0, len(in))
	for _, r := range in {
		var ts time.Time
		if r.Timestamp != nil {
			ts = r.Timestamp.AsTime()
		}
		readings = append(readings, telemetry.Reading{
			SensorID:  r.SensorId,
			Timestamp: ts,
			Moisture:  r.Moisture,
		})
	}
	return readings
}
