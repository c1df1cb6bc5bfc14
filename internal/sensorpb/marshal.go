package sensorpb

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// Field numbers shared by the request/response messages
const (
	fieldSensorID   protowire.Number = 1
	fieldList       protowire.Number = 1
	fieldStart      protowire.Number = 2
	fieldEnd        protowire.Number = 3
	fieldDurationMs protowire.Number = 2
)

// Sensor fields
const (
	fieldSensorIdentifier protowire.Number = 2
	fieldSensorType       protowire.Number = 3
	fieldSensorLocation   protowire.Number = 4
)

// SensorReading fields
const (
	fieldReadingTimestamp protowire.Number = 2
	fieldReadingMoisture  protowire.Number = 3
)

// =============================================================================
// Encoding helpers (proto3: default values are not written)
// =============================================================================

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendInt64(b []byte, num protowire.Number, v int64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(v))
}

func appendDouble(b []byte, num protowire.Number, v float64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.Fixed64Type)
	return protowire.AppendFixed64(b, math.Float64bits(v))
}

func appendMessage(b []byte, num protowire.Number, m Message) ([]byte, error) {
	data, err := m.Marshal()
	if err != nil {
		return nil, err
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, data), nil
}

func appendTimestamp(b []byte, num protowire.Number, ts *timestamppb.Timestamp) ([]byte, error) {
	if ts == nil {
		return b, nil
	}
	data, err := proto.Marshal(ts)
	if err != nil {
		return nil, fmt.Errorf("marshal timestamp: %w", err)
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, data), nil
}

// =============================================================================
// Decoding helpers
// =============================================================================

// fieldFunc consumes the value of one field and returns the bytes used
type fieldFunc func(num protowire.Number, typ protowire.Type, b []byte) (int, error)

func decodeFields(b []byte, fn fieldFunc) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		m, err := fn(num, typ, b)
		if err != nil {
			return fmt.Errorf("field %d: %w", num, err)
		}
		b = b[m:]
	}
	return nil
}

// skipField consumes a field this package does not know about
func skipField(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
	n := protowire.ConsumeFieldValue(num, typ, b)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}
	return n, nil
}

func wireTypeError(got, want protowire.Type) error {
	return fmt.Errorf("wire type mismatch: got %d, want %d", got, want)
}

func decodeString(typ protowire.Type, b []byte, dst *string) (int, error) {
	if typ != protowire.BytesType {
		return 0, wireTypeError(typ, protowire.BytesType)
	}
	v, n := protowire.ConsumeString(b)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}
	*dst = v
	return n, nil
}

func decodeBytes(typ protowire.Type, b []byte) ([]byte, int, error) {
	if typ != protowire.BytesType {
		return nil, 0, wireTypeError(typ, protowire.BytesType)
	}
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return nil, 0, protowire.ParseError(n)
	}
	return v, n, nil
}

func decodeInt64(typ protowire.Type, b []byte, dst *int64) (int, error) {
	if typ != protowire.VarintType {
		return 0, wireTypeError(typ, protowire.VarintType)
	}
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}
	*dst = int64(v)
	return n, nil
}

func decodeDouble(typ protowire.Type, b []byte, dst *float64) (int, error) {
	if typ != protowire.Fixed64Type {
		return 0, wireTypeError(typ, protowire.Fixed64Type)
	}
	v, n := protowire.ConsumeFixed64(b)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}
	*dst = math.Float64frombits(v)
	return n, nil
}

func decodeTimestamp(typ protowire.Type, b []byte, dst **timestamppb.Timestamp) (int, error) {
	data, n, err := decodeBytes(typ, b)
	if err != nil {
		return 0, err
	}
	ts := &timestamppb.Timestamp{}
	if err := proto.Unmarshal(data, ts); err != nil {
		return 0, fmt.Errorf("unmarshal timestamp: %w", err)
	}
	*dst = ts
	return n, nil
}

func decodeMessage(typ protowire.Type, b []byte, m Message) (int, error) {
	data, n, err := decodeBytes(typ, b)
	if err != nil {
		return 0, err
	}
	if err := m.Unmarshal(data); err != nil {
		return 0, err
	}
	return n, nil
}

// =============================================================================
// Sensor / SensorReading
// =============================================================================

// Marshal encodes the sensor in protobuf binary format
func (s *Sensor) Marshal() ([]byte, error) {
	var b []byte
	b = appendString(b, fieldSensorID, s.Id)
	b = appendString(b, fieldSensorIdentifier, s.Identifier)
	b = appendString(b, fieldSensorType, s.Type)
	b = appendString(b, fieldSensorLocation, s.Location)
	return b, nil
}

// Unmarshal decodes a protobuf encoded sensor
func (s *Sensor) Unmarshal(data []byte) error {
	*s = Sensor{}
	return decodeFields(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case fieldSensorID:
			return decodeString(typ, b, &s.Id)
		case fieldSensorIdentifier:
			return decodeString(typ, b, &s.Identifier)
		case fieldSensorType:
			return decodeString(typ, b, &s.Type)
		case fieldSensorLocation:
			return decodeString(typ, b, &s.Location)
		default:
			return skipField(num, typ, b)
		}
	})
}

// Marshal encodes the reading in protobuf binary format
func (r *SensorReading) Marshal() ([]byte, error) {
	var b []byte
	b = appendString(b, fieldSensorID, r.SensorId)
	b, err := appendTimestamp(b, fieldReadingTimestamp, r.Timestamp)
	if err != nil {
		return nil, err
	}
	b = appendDouble(b, fieldReadingMoisture, r.Moisture)
	return b, nil
}

// Unmarshal decodes a protobuf encoded reading
func (r *SensorReading) Unmarshal(data []byte) error {
	*r = SensorReading{}
	return decodeFields(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case fieldSensorID:
			return decodeString(typ, b, &r.SensorId)
		case fieldReadingTimestamp:
			return decodeTimestamp(typ, b, &r.Timestamp)
		case fieldReadingMoisture:
			return decodeDouble(typ, b, &r.Moisture)
		default:
			return skipField(num, typ, b)
		}
	})
}

func marshalReadings(readings []*SensorReading) ([]byte, error) {
	var b []byte
	var err error
	for _, r := range readings {
		if r == nil {
			r = &SensorReading{}
		}
		if b, err = appendMessage(b, fieldList, r); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func unmarshalReadings(data []byte) ([]*SensorReading, error) {
	var readings []*SensorReading
	err := decodeFields(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != fieldList {
			return skipField(num, typ, b)
		}
		r := &SensorReading{}
		n, err := decodeMessage(typ, b, r)
		if err != nil {
			return 0, err
		}
		readings = append(readings, r)
		return n, nil
	})
	return readings, err
}

// =============================================================================
// Requests / responses
// =============================================================================

// Marshal encodes the (empty) request
func (m *GetSensorsRequest) Marshal() ([]byte, error) { return nil, nil }

// Unmarshal skips any fields present
func (m *GetSensorsRequest) Unmarshal(data []byte) error {
	return decodeFields(data, skipField)
}

// Marshal encodes the sensor list
func (m *GetSensorsResponse) Marshal() ([]byte, error) {
	var b []byte
	var err error
	for _, s := range m.Sensors {
		if s == nil {
			s = &Sensor{}
		}
		if b, err = appendMessage(b, fieldList, s); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// Unmarshal decodes the sensor list
func (m *GetSensorsResponse) Unmarshal(data []byte) error {
	m.Sensors = nil
	return decodeFields(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != fieldList {
			return skipField(num, typ, b)
		}
		s := &Sensor{}
		n, err := decodeMessage(typ, b, s)
		if err != nil {
			return 0, err
		}
		m.Sensors = append(m.Sensors, s)
		return n, nil
	})
}

// Marshal encodes the request
func (m *GetSensorReadingsRequest) Marshal() ([]byte, error) {
	return appendString(nil, fieldSensorID, m.SensorId), nil
}

// Unmarshal decodes the request
func (m *GetSensorReadingsRequest) Unmarshal(data []byte) error {
	*m = GetSensorReadingsRequest{}
	return decodeFields(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == fieldSensorID {
			return decodeString(typ, b, &m.SensorId)
		}
		return skipField(num, typ, b)
	})
}

// Marshal encodes the readings
func (m *GetSensorReadingsResponse) Marshal() ([]byte, error) {
	return marshalReadings(m.Readings)
}

// Unmarshal decodes the readings
func (m *GetSensorReadingsResponse) Unmarshal(data []byte) error {
	readings, err := unmarshalReadings(data)
	m.Readings = readings
	return err
}

// Marshal encodes the request
func (m *GetIndividualSensorReadingsRequest) Marshal() ([]byte, error) {
	b := appendString(nil, fieldSensorID, m.SensorId)
	b, err := appendTimestamp(b, fieldStart, m.Start)
	if err != nil {
		return nil, err
	}
	return appendTimestamp(b, fieldEnd, m.End)
}

// Unmarshal decodes the request
func (m *GetIndividualSensorReadingsRequest) Unmarshal(data []byte) error {
	*m = GetIndividualSensorReadingsRequest{}
	return decodeFields(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case fieldSensorID:
			return decodeString(typ, b, &m.SensorId)
		case fieldStart:
			return decodeTimestamp(typ, b, &m.Start)
		case fieldEnd:
			return decodeTimestamp(typ, b, &m.End)
		default:
			return skipField(num, typ, b)
		}
	})
}

// Marshal encodes the readings
func (m *GetIndividualSensorReadingsResponse) Marshal() ([]byte, error) {
	return marshalReadings(m.Readings)
}

// Unmarshal decodes the readings
func (m *GetIndividualSensorReadingsResponse) Unmarshal(data []byte) error {
	readings, err := unmarshalReadings(data)
	m.Readings = readings
	return err
}

// Marshal encodes the request
func (m *ActivateWateringRequest) Marshal() ([]byte, error) {
	b := appendString(nil, fieldSensorID, m.SensorId)
	return appendInt64(b, fieldDurationMs, m.DurationMs), nil
}

// Unmarshal decodes the request
func (m *ActivateWateringRequest) Unmarshal(data []byte) error {
	*m = ActivateWateringRequest{}
	return decodeFields(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case fieldSensorID:
			return decodeString(typ, b, &m.SensorId)
		case fieldDurationMs:
			return decodeInt64(typ, b, &m.DurationMs)
		default:
			return skipField(num, typ, b)
		}
	})
}

// Marshal encodes the (empty) acknowledgement
func (m *ActivateWateringResponse) Marshal() ([]byte, error) { return nil, nil }

// Unmarshal skips any fields present
func (m *ActivateWateringResponse) Unmarshal(data []byte) error {
	return decodeFields(data, skipField)
}
