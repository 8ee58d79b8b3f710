package scene

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	// ErrNoScene is returned when the service has no running system to sample.
	ErrNoScene = errors.New("no scene attached")
	// ErrMalformedSnapshot indicates a snapshot payload could not be decoded.
	ErrMalformedSnapshot = errors.New("malformed snapshot")
)

// ToStatusError maps scene errors onto gRPC status codes.
func ToStatusError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, ErrNoScene):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, ErrMalformedSnapshot):
		return status.Error(codes.Internal, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
