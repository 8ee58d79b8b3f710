package scene

import (
	"context"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client reads snapshots from a SceneService.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps an existing connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Dial opens an insecure, traced connection to addr.
func Dial(addr string, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	base := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	}
	return grpc.NewClient(addr, append(base, opts...)...)
}

// Snapshot fetches and decodes one snapshot. A non-empty requestID is sent
// as x-request-id so server logs can be correlated.
func (c *Client) Snapshot(ctx context.Context, requestID string) (Snapshot, error) {
	if requestID != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, requestIDMetadataKey, requestID)
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, SnapshotMethod, &emptypb.Empty{}, out); err != nil {
		return Snapshot{}, err
	}
	return DecodeSnapshot(out)
}
