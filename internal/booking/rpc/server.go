package rpc

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/example/cabbook/internal/booking/domain"
	"github.com/example/cabbook/internal/booking/service"
)

// Server adapts the booking service to cabbook.Booking.
type Server struct {
	svc *service.Service
}

func NewServer(svc *service.Service) *Server {
	return &Server{svc: svc}
}

// NewGRPCServer builds a grpc.Server speaking the JSON codec with svc registered.
func NewGRPCServer(svc *service.Service, logger *zap.Logger, opts ...grpc.ServerOption) *grpc.Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts = append([]grpc.ServerOption{
		grpc.ForceServerCodec(JSONCodec{}),
		grpc.ChainUnaryInterceptor(loggingInterceptor(logger)),
	}, opts...)
	srv := grpc.NewServer(opts...)
	RegisterBookingServer(srv, NewServer(svc))
	return srv
}

func (s *Server) BookTrip(ctx context.Context, in *BookTripRequest) (*Trip, error) {
	key := in.IdempotencyKey
	if key == "" {
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if vals := md.Get("idempotency-key"); len(vals) > 0 {
				key = vals[0]
			}
		}
	}
	trip, err := s.svc.BookTrip(ctx, key, service.BookTripRequest{
		CustomerID:   in.CustomerID,
		FromLocation: in.FromLocation,
		ToLocation:   in.ToLocation,
		DistanceKm:   in.DistanceKm,
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return tripMessage(trip), nil
}

func (s *Server) CancelTrip(ctx context.Context, in *TripRequest) (*Trip, error) {
	trip, err := s.svc.CancelTrip(ctx, in.TripID)
	if err != nil {
		return nil, toStatus(err)
	}
	return tripMessage(trip), nil
}

func (s *Server) CompleteTrip(ctx context.Context, in *TripRequest) (*Trip, error) {
	trip, err := s.svc.CompleteTrip(ctx, in.TripID)
	if err != nil {
		return nil, toStatus(err)
	}
	return tripMessage(trip), nil
}

func (s *Server) GetTrip(ctx context.Context, in *TripRequest) (*Trip, error) {
	trip, err := s.svc.GetTrip(ctx, in.TripID)
	if err != nil {
		return nil, toStatus(err)
	}
	return tripMessage(trip), nil
}

func (s *Server) DeleteCustomer(ctx context.Context, in *CustomerRequest) (*Empty, error) {
	if err := s.svc.DeleteCustomer(ctx, in.CustomerID); err != nil {
		return nil, toStatus(err)
	}
	return &Empty{}, nil
}

func tripMessage(t domain.TripBooking) *Trip {
	return &Trip{
		ID:           t.ID,
		CustomerID:   t.CustomerID,
		DriverID:     t.DriverID,
		FromLocation: t.FromLocation,
		ToLocation:   t.ToLocation,
		DistanceKm:   t.DistanceKm,
		Status:       string(t.Status),
		Bill:         t.Bill,
	}
}

func toStatus(err error) error {
	code := codes.Internal
	switch {
	case errors.Is(err, domain.ErrNotFound):
		code = codes.NotFound
	case errors.Is(err, domain.ErrNoDriverAvailable), errors.Is(err, domain.ErrInvalidTransition):
		code = codes.FailedPrecondition
	case errors.Is(err, domain.ErrInvalidArgument):
		code = codes.InvalidArgument
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	}
	return status.Error(code, err.Error())
}

func loggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("code", status.Code(err).String()),
		}
		if status.Code(err) == codes.Internal {
			logger.Error("grpc call failed", append(fields, zap.Error(err))...)
		} else {
			logger.Debug("grpc call", fields...)
		}
		return resp, err
	}
}
