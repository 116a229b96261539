package rpc_test

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/example/cabbook/internal/booking/domain"
	"github.com/example/cabbook/internal/booking/repository"
	"github.com/example/cabbook/internal/booking/rpc"
	"github.com/example/cabbook/internal/booking/service"
)

func setup(t *testing.T) (*rpc.BookingClient, *service.Service) {
	t.Helper()
	svc := service.New(repository.NewMemoryStore(), nil, domain.SystemClock{}, repository.NewMemoryIdempotencyRepo(0), nil,
		service.WithPasswordCost(bcrypt.MinCost))

	lis := bufconn.Listen(1 << 20)
	srv := rpc.NewGRPCServer(svc, nil)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.DialContext(context.Background(), "bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return rpc.NewBookingClient(conn), svc
}

func TestBookingOverGRPC(t *testing.T) {
	client, svc := setup(t)
	ctx := context.Background()

	customer, err := svc.RegisterCustomer(ctx, service.RegisterCustomerRequest{Mobile: "1", Name: "Ada", Password: "pw"})
	require.NoError(t, err)

	_, err = client.BookTrip(ctx, &rpc.BookTripRequest{CustomerID: customer.ID, DistanceKm: 3})
	require.Equal(t, codes.FailedPrecondition, status.Code(err))

	_, err = svc.RegisterDriver(ctx, service.RegisterDriverRequest{Mobile: "9", Name: "Dan", PerKmRate: 12})
	require.NoError(t, err)

	keyed := metadata.AppendToOutgoingContext(ctx, "idempotency-key", "k-1")
	trip, err := client.BookTrip(keyed, &rpc.BookTripRequest{CustomerID: customer.ID, FromLocation: "A", ToLocation: "B", DistanceKm: 3})
	require.NoError(t, err)
	require.Equal(t, int64(36), trip.Bill)
	require.Equal(t, string(domain.StatusConfirmed), trip.Status)

	again, err := client.BookTrip(keyed, &rpc.BookTripRequest{CustomerID: customer.ID, FromLocation: "A", ToLocation: "B", DistanceKm: 3})
	require.NoError(t, err)
	require.Equal(t, trip.ID, again.ID)

	canceled, err := client.CancelTrip(ctx, &rpc.TripRequest{TripID: trip.ID})
	require.NoError(t, err)
	require.Equal(t, string(domain.StatusCanceled), canceled.Status)
	require.Zero(t, canceled.Bill)

	_, err = client.CompleteTrip(ctx, &rpc.TripRequest{TripID: trip.ID})
	require.Equal(t, codes.FailedPrecondition, status.Code(err))

	got, err := client.GetTrip(ctx, &rpc.TripRequest{TripID: trip.ID})
	require.NoError(t, err)
	require.Equal(t, string(domain.StatusCanceled), got.Status)

	_, err = client.DeleteCustomer(ctx, &rpc.CustomerRequest{CustomerID: customer.ID})
	require.NoError(t, err)

	_, err = client.GetTrip(ctx, &rpc.TripRequest{TripID: trip.ID})
	require.Equal(t, codes.NotFound, status.Code(err))
}

func TestInvalidArgumentsOverGRPC(t *testing.T) {
	client, _ := setup(t)

	_, err := client.BookTrip(context.Background(), &rpc.BookTripRequest{CustomerID: 1, DistanceKm: -1})
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = client.DeleteCustomer(context.Background(), &rpc.CustomerRequest{CustomerID: 42})
	require.Equal(t, codes.NotFound, status.Code(err))
}
