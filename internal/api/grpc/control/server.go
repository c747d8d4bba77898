package control

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/agrosmart/internal/domain/alert"
	"github.com/oshokin/agrosmart/internal/logger"
	"github.com/oshokin/agrosmart/internal/sensor"
)

// ActorMetadataKey carries the calling operator on control API calls.
const ActorMetadataKey = "agrosmart-actor"

// Service abstracts the controller operations the transport layer depends on.
type Service interface {
	Exchange(ctx context.Context, command alert.Command) (*alert.Snapshot, error)
}

// Server implements the ControllerService gRPC API.
type Server struct {
	// service runs commands on the controller loop.
	service Service
}

// NewServer wires the provided service implementation into a gRPC handler.
func NewServer(service Service) *Server {
	return &Server{
		service: service,
	}
}

// GetStatus reads fresh moisture, evaluates it and returns the status.
func (s *Server) GetStatus(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return s.exchange(logger.WithName(ctx, "control"), alert.CommandNone)
}

// ResetAlert clears the alert, then reads and evaluates fresh moisture.
func (s *Server) ResetAlert(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return s.exchange(logger.WithName(ctx, "control"), alert.CommandReset)
}

func (s *Server) exchange(ctx context.Context, command alert.Command) (*structpb.Struct, error) {
	if actor := ActorFromContext(ctx); actor != "" {
		ctx = logger.WithKV(ctx, "actor", actor)
	}

	snapshot, err := s.service.Exchange(ctx, command)
	if err != nil {
		logger.ErrorKV(ctx, "Control call failed", "command", command, "error", err)

		return nil, toStatus(err)
	}

	logger.InfoKV(ctx, "Control call served", "command", command, "state", snapshot.State, "moisture", snapshot.Moisture)

	return Encode(snapshot), nil
}

// toStatus maps controller errors to gRPC codes.
func toStatus(err error) error {
	switch {
	case errors.Is(err, sensor.ErrUnavailable):
		return status.Error(codes.Unavailable, "moisture sensor unavailable")
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, "unable to update alert state")
	}
}

// ActorFromContext returns the operator attached to an incoming call.
func ActorFromContext(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}

	values := md.Get(ActorMetadataKey)
	if len(values) == 0 {
		return ""
	}

	return values[0]
}
