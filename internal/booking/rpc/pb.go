package rpc

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "cabbook.Booking"

// BookTripRequest asks for a trip. IdempotencyKey may also be sent as the
// "idempotency-key" metadata entry.
type BookTripRequest struct {
	IdempotencyKey string `json:"idempotency_key,omitempty"`
	CustomerID     int64  `json:"customer_id"`
	FromLocation   string `json:"from_location"`
	ToLocation     string `json:"to_location"`
	DistanceKm     int64  `json:"distance_km"`
}

type TripRequest struct {
	TripID int64 `json:"trip_id"`
}

type CustomerRequest struct {
	CustomerID int64 `json:"customer_id"`
}

type Trip struct {
	ID           int64  `json:"id"`
	CustomerID   int64  `json:"customer_id"`
	DriverID     int64  `json:"driver_id"`
	FromLocation string `json:"from_location"`
	ToLocation   string `json:"to_location"`
	DistanceKm   int64  `json:"distance_km"`
	Status       string `json:"status"`
	Bill         int64  `json:"bill"`
}

type Empty struct{}

// BookingServer is the server side of cabbook.Booking.
type BookingServer interface {
	BookTrip(context.Context, *BookTripRequest) (*Trip, error)
	CancelTrip(context.Context, *TripRequest) (*Trip, error)
	CompleteTrip(context.Context, *TripRequest) (*Trip, error)
	GetTrip(context.Context, *TripRequest) (*Trip, error)
	DeleteCustomer(context.Context, *CustomerRequest) (*Empty, error)
}

// RegisterBookingServer registers srv on s.
func RegisterBookingServer(s grpc.ServiceRegistrar, srv BookingServer) {
	s.RegisterService(&bookingServiceDesc, srv)
}

var bookingServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*BookingServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "BookTrip", Handler: unaryHandler("BookTrip", func(srv BookingServer, ctx context.Context, in *BookTripRequest) (any, error) {
			return srv.BookTrip(ctx, in)
		})},
		{MethodName: "CancelTrip", Handler: unaryHandler("CancelTrip", func(srv BookingServer, ctx context.Context, in *TripRequest) (any, error) {
			return srv.CancelTrip(ctx, in)
		})},
		{MethodName: "CompleteTrip", Handler: unaryHandler("CompleteTrip", func(srv BookingServer, ctx context.Context, in *TripRequest) (any, error) {
			return srv.CompleteTrip(ctx, in)
		})},
		{MethodName: "GetTrip", Handler: unaryHandler("GetTrip", func(srv BookingServer, ctx context.Context, in *TripRequest) (any, error) {
			return srv.GetTrip(ctx, in)
		})},
		{MethodName: "DeleteCustomer", Handler: unaryHandler("DeleteCustomer", func(srv BookingServer, ctx context.Context, in *CustomerRequest) (any, error) {
			return srv.DeleteCustomer(ctx, in)
		})},
	},
	Metadata: "cabbook/booking.proto",
}

type methodHandler = func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error)

func unaryHandler[Req any](method string, call func(BookingServer, context.Context, *Req) (any, error)) methodHandler {
	fullMethod := "/" + ServiceName + "/" + method
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(BookingServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(BookingServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// BookingClient calls cabbook.Booking over cc.
type BookingClient struct {
	cc grpc.ClientConnInterface
}

func NewBookingClient(cc grpc.ClientConnInterface) *BookingClient {
	return &BookingClient{cc: cc}
}

func (c *BookingClient) BookTrip(ctx context.Context, in *BookTripRequest, opts ...grpc.CallOption) (*Trip, error) {
	out := new(Trip)
	return out, c.invoke(ctx, "BookTrip", in, out, opts)
}

func (c *BookingClient) CancelTrip(ctx context.Context, in *TripRequest, opts ...grpc.CallOption) (*Trip, error) {
	out := new(Trip)
	return out, c.invoke(ctx, "CancelTrip", in, out, opts)
}

func (c *BookingClient) CompleteTrip(ctx context.Context, in *TripRequest, opts ...grpc.CallOption) (*Trip, error) {
	out := new(Trip)
	return out, c.invoke(ctx, "CompleteTrip", in, out, opts)
}

func (c *BookingClient) GetTrip(ctx context.Context, in *TripRequest, opts ...grpc.CallOption) (*Trip, error) {
	out := new(Trip)
	return out, c.invoke(ctx, "GetTrip", in, out, opts)
}

func (c *BookingClient) DeleteCustomer(ctx context.Context, in *CustomerRequest, opts ...grpc.CallOption) (*Empty, error) {
	out := new(Empty)
	return out, c.invoke(ctx, "DeleteCustomer", in, out, opts)
}

func (c *BookingClient) invoke(ctx context.Context, method string, in, out any, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.ForceCodec(JSONCodec{})}, opts...)
	return c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...)
}
