// Package sensorpb contains Go structures matching the habanero.v1
// SensorService protobuf API. These are manually defined to avoid requiring
// protoc compilation; the binary encoding is standard protobuf so they
// interoperate with generated clients and servers.
//
//	service SensorService {
//	  rpc GetSensors(GetSensorsRequest) returns (GetSensorsResponse);
//	  rpc GetSensorReadings(GetSensorReadingsRequest) returns (GetSensorReadingsResponse);
//	  rpc GetIndividualSensorReadings(GetIndividualSensorReadingsRequest) returns (GetIndividualSensorReadingsResponse);
//	  rpc ActivateWatering(ActivateWateringRequest) returns (ActivateWateringResponse);
//	}
package sensorpb

import "google.golang.org/protobuf/types/known/timestamppb"

// Message is implemented by every hand-defined message in this package
type Message interface {
	Marshal() ([]byte, error)
	Unmarshal(data []byte) error
}

// Sensor describes a registered sensor
//
//	message Sensor { string id = 1; string identifier = 2; string type = 3; string location = 4; }
type Sensor struct {
	Id         string
	Identifier string
	Type       string
	Location   string
}

// SensorReading is one moisture sample or hourly average
//
//	message SensorReading { string sensor_id = 1; google.protobuf.Timestamp timestamp = 2; double moisture = 3; }
type SensorReading struct {
	SensorId  string
	Timestamp *timestamppb.Timestamp
	Moisture  float64
}

// GetSensorsRequest has no fields
type GetSensorsRequest struct{}

// GetSensorsResponse lists every sensor
//
//	message GetSensorsResponse { repeated Sensor sensors = 1; }
type GetSensorsResponse struct {
	Sensors []*Sensor
}

// GetSensorReadingsRequest asks for the hourly averages of one sensor
//
//	message GetSensorReadingsRequest { string sensor_id = 1; }
type GetSensorReadingsRequest struct {
	SensorId string
}

// GetSensorReadingsResponse carries hourly averages, oldest first
//
//	message GetSensorReadingsResponse { repeated SensorReading readings = 1; }
type GetSensorReadingsResponse struct {
	Readings []*SensorReading
}

// GetIndividualSensorReadingsRequest asks for raw samples in [start, end]
//
//	message GetIndividualSensorReadingsRequest {
//	  string sensor_id = 1;
//	  google.protobuf.Timestamp start = 2;
//	  google.protobuf.Timestamp end = 3;
//	}
type GetIndividualSensorReadingsRequest struct {
	SensorId string
	Start    *timestamppb.Timestamp
	End      *timestamppb.Timestamp
}

// GetIndividualSensorReadingsResponse carries raw samples, newest first
//
//	message GetIndividualSensorReadingsResponse { repeated SensorReading readings = 1; }
type GetIndividualSensorReadingsResponse struct {
	Readings []*SensorReading
}

// ActivateWateringRequest opens the pump of a sensor's machine
//
//	message ActivateWateringRequest { string sensor_id = 1; int64 duration_ms = 2; }
type ActivateWateringRequest struct {
	SensorId   string
	DurationMs int64
}

// ActivateWateringResponse has no fields
type ActivateWateringResponse struct{}
