package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/agsys/habanero-viewer/internal/engine"
	"github.com/agsys/habanero-viewer/internal/poller"
	"github.com/agsys/habanero-viewer/internal/telemetry"
)

// session binds one WebSocket connection to one engine view
type session struct {
	server *Server
	conn   *websocket.Conn
	view   *engine.View

	send chan *Message
	done chan struct{}

	mu      sync.Mutex
	sensors []telemetry.Sensor // Directory snapshot taken on connect
}

func newSession(server *Server, conn *websocket.Conn) *session {
	return &session{
		server: server,
		conn:   conn,
		send:   make(chan *Message, server.config.SendBuffer),
		done:   make(chan struct{}),
	}
}

// run serves the connection until the renderer goes away
func (s *session) run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.view = s.server.engine.NewView()
	unsubscribe := s.view.Controller.Subscribe(func(u poller.Update) {
		s.enqueue(MsgTypeSeries, u)
	})

	s.server.logger.Printf("Renderer connected from %s", s.conn.RemoteAddr())

	sensors, err := s.server.engine.Sensors(ctx)
	s.mu.Lock()
	s.sensors = sensors
	s.mu.Unlock()
	resp := sensorsResponse{Sensors: sensors}
	if err != nil {
		resp.Error = err.Error()
	}
	s.enqueue(MsgTypeSensors, resp)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.writeLoop(ctx)
	}()

	s.readLoop(ctx)

	close(s.done)
	unsubscribe()
	s.view.Close()
	cancel()
	<-writerDone
	s.conn.Close()

	s.server.logger.Printf("Renderer disconnected from %s", s.conn.RemoteAddr())
}

func (s *session) readLoop(ctx context.Context) {
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(s.server.config.ReadTimeout))
		return nil
	})

	for {
		s.conn.SetReadDeadline(time.Now().Add(s.server.config.ReadTimeout))

		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.server.logger.Printf("WebSocket read error: %v", err)
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			s.server.logger.Printf("Failed to parse message: %v", err)
			s.enqueue(MsgTypeError, ErrorPayload{Error: fmt.Sprintf("invalid message: %v", err)})
			continue
		}

		if err := s.handleMessage(ctx, &msg); err != nil {
			s.enqueue(MsgTypeError, ErrorPayload{RequestID: msg.ID, Error: err.Error()})
		}
	}
}

func (s *session) writeLoop(ctx context.Context) {
	ticker := time.NewTicker(s.server.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return

		case msg := <-s.send:
			data, err := json.Marshal(msg)
			if err != nil {
				s.server.logger.Printf("Failed to marshal message: %v", err)
				continue
			}

			s.conn.SetWriteDeadline(time.Now().Add(s.server.config.WriteTimeout))
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.server.logger.Printf("WebSocket write error: %v", err)
				// Unblock readLoop so the session tears down
				s.conn.Close()
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(s.server.config.WriteTimeout))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.server.logger.Printf("Ping failed: %v", err)
				s.conn.Close()
				return
			}
		}
	}
}

func (s *session) handleMessage(ctx context.Context, msg *Message) error {
	switch msg.Type {
	case MsgTypeSelect:
		var p SelectPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return fmt.Errorf("invalid select payload: %w", err)
		}
		sensor, err := s.lookup(ctx, p.SensorID)
		if err != nil {
			return err
		}
		s.view.Selection.Select(sensor)

	case MsgTypeDeselect:
		s.view.Selection.Deselect()

	case MsgTypeMode:
		var p ModePayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return fmt.Errorf("invalid mode payload: %w", err)
		}
		mode, err := telemetry.ParseDisplayMode(p.Mode)
		if err != nil {
			return err
		}
		s.view.Selection.SetMode(mode)

	case MsgTypeToggleMode:
		s.view.Selection.ToggleMode()

	case MsgTypeWater:
		var p WaterPayload
		if len(msg.Payload) > 0 {
			if err := json.Unmarshal(msg.Payload, &p); err != nil {
				return fmt.Errorf("invalid water payload: %w", err)
			}
		}
		seconds := telemetry.DefaultWateringSeconds
		if p.Seconds != nil {
			seconds = *p.Seconds
		}
		go s.water(ctx, msg.ID, seconds)

	case MsgTypePing:
		s.enqueue(MsgTypePong, map[string]string{"ping_id": msg.ID})

	default:
		return fmt.Errorf("unknown message type %q", msg.Type)
	}
	return nil
}

// water runs off the read loop so a slow activation does not stall
// selection changes
func (s *session) water(ctx context.Context, requestID string, seconds int) {
	result := WaterResultPayload{RequestID: requestID, Seconds: seconds}
	if sensor, _ := s.view.Selection.Current(); sensor != nil {
		result.SensorID = sensor.ID
	}

	if err := s.view.Water(ctx, seconds); err != nil {
		result.Error = err.Error()
	} else {
		result.Success = true
	}
	s.enqueue(MsgTypeWaterResult, result)
}

// lookup resolves key against the snapshot, refreshing it once on a miss
func (s *session) lookup(ctx context.Context, key string) (telemetry.Sensor, error) {
	if key == "" {
		return telemetry.Sensor{}, fmt.Errorf("sensor id is required: %w", telemetry.ErrInvalidArgument)
	}

	s.mu.Lock()
	for _, sensor := range s.sensors {
		if sensor.ID == key || sensor.Identifier == key {
			s.mu.Unlock()
			return sensor, nil
		}
	}
	s.mu.Unlock()

	sensor, err := s.server.engine.FindSensor(ctx, key)
	if err != nil {
		if errors.Is(err, telemetry.ErrInvalidArgument) {
			return telemetry.Sensor{}, fmt.Errorf("unknown sensor %q", key)
		}
		return telemetry.Sensor{}, err
	}

	s.mu.Lock()
	s.sensors = append(s.sensors, sensor)
	s.mu.Unlock()
	return sensor, nil
}

// enqueue queues an outbound message without blocking. Series updates are
// queued from the controller's publish path, so a full buffer drops.
func (s *session) enqueue(msgType MessageType, payload interface{}) {
	msg, err := newMessage(msgType, payload)
	if err != nil {
		s.server.logger.Printf("Failed to build %s message: %v", msgType, err)
		return
	}

	select {
	case <-s.done:
	case s.send <- msg:
	default:
		s.server.logger.Printf("Send buffer full, dropping %s message", msgType)
	}
}
