package sensorpb

import (
	"context"

	"google.golang.org/grpc"
)

// Fully qualified service and method names
const (
	ServiceName = "habanero.v1.SensorService"

	GetSensorsMethod                  = "/habanero.v1.SensorService/GetSensors"
	GetSensorReadingsMethod           = "/habanero.v1.SensorService/GetSensorReadings"
	GetIndividualSensorReadingsMethod = "/habanero.v1.SensorService/GetIndividualSensorReadings"
	ActivateWateringMethod            = "/habanero.v1.SensorService/ActivateWatering"
)

// SensorServiceClient is the client API for SensorService
type SensorServiceClient interface {
	GetSensors(ctx context.Context, in *GetSensorsRequest, opts ...grpc.CallOption) (*GetSensorsResponse, error)
	GetSensorReadings(ctx context.Context, in *GetSensorReadingsRequest, opts ...grpc.CallOption) (*GetSensorReadingsResponse, error)
	GetIndividualSensorReadings(ctx context.Context, in *GetIndividualSensorReadingsRequest, opts ...grpc.CallOption) (*GetIndividualSensorReadingsResponse, error)
	ActivateWatering(ctx context.Context, in *ActivateWateringRequest, opts ...grpc.CallOption) (*ActivateWateringResponse, error)
}

type sensorServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewSensorServiceClient returns a client that always uses Codec, whatever
// the defaults of cc are.
func NewSensorServiceClient(cc grpc.ClientConnInterface) SensorServiceClient {
	return &sensorServiceClient{cc: cc}
}

func (c *sensorServiceClient) invoke(ctx context.Context, method string, in, out Message, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{CallOption()}, opts...)
	return c.cc.Invoke(ctx, method, in, out, opts...)
}

func (c *sensorServiceClient) GetSensors(ctx context.Context, in *GetSensorsRequest, opts ...grpc.CallOption) (*GetSensorsResponse, error) {
	out := new(GetSensorsResponse)
	if err := c.invoke(ctx, GetSensorsMethod, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *sensorServiceClient) GetSensorReadings(ctx context.Context, in *GetSensorReadingsRequest, opts ...grpc.CallOption) (*GetSensorReadingsResponse, error) {
	out := new(GetSensorReadingsResponse)
	if err := c.invoke(ctx, GetSensorReadingsMethod, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *sensorServiceClient) GetIndividualSensorReadings(ctx context.Context, in *GetIndividualSensorReadingsRequest, opts ...grpc.CallOption) (*GetIndividualSensorReadingsResponse, error) {
	out := new(GetIndividualSensorReadingsResponse)
	if err := c.invoke(ctx, GetIndividualSensorReadingsMethod, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *sensorServiceClient) ActivateWatering(ctx context.Context, in *ActivateWateringRequest, opts ...grpc.CallOption) (*ActivateWateringResponse, error) {
	out := new(ActivateWateringResponse)
	if err := c.invoke(ctx, ActivateWateringMethod, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

// SensorServiceServer is the server API for SensorService
type SensorServiceServer interface {
	GetSensors(context.Context, *GetSensorsRequest) (*GetSensorsResponse, error)
	GetSensorReadings(context.Context, *GetSensorReadingsRequest) (*GetSensorReadingsResponse, error)
	GetIndividualSensorReadings(context.Context, *GetIndividualSensorReadingsRequest) (*GetIndividualSensorReadingsResponse, error)
	ActivateWatering(context.Context, *ActivateWateringRequest) (*ActivateWateringResponse, error)
}

// RegisterSensorServiceServer registers srv on s. The server must be created
// with ServerOption so requests are decoded with Codec.
func RegisterSensorServiceServer(s grpc.ServiceRegistrar, srv SensorServiceServer) {
	s.RegisterService(&SensorServiceDesc, srv)
}

func getSensorsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(GetSensorsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SensorServiceServer).GetSensors(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: GetSensorsMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SensorServiceServer).GetSensors(ctx, req.(*GetSensorsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func getSensorReadingsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(GetSensorReadingsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SensorServiceServer).GetSensorReadings(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: GetSensorReadingsMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SensorServiceServer).GetSensorReadings(ctx, req.(*GetSensorReadingsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func getIndividualSensorReadingsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(GetIndividualSensorReadingsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SensorServiceServer).GetIndividualSensorReadings(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: GetIndividualSensorReadingsMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SensorServiceServer).GetIndividualSensorReadings(ctx, req.(*GetIndividualSensorReadingsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func activateWateringHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ActivateWateringRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SensorServiceServer).ActivateWatering(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ActivateWateringMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SensorServiceServer).ActivateWatering(ctx, req.(*ActivateWateringRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// SensorServiceDesc describes SensorService for grpc.Server registration
var SensorServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SensorServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetSensors", Handler: getSensorsHandler},
		{MethodName: "GetSensorReadings", Handler: getSensorReadingsHandler},
		{MethodName: "GetIndividualSensorReadings", Handler: getIndividualSensorReadingsHandler},
		{MethodName: "ActivateWatering", Handler: activateWateringHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "habanero/v1/sensor.proto",
}
