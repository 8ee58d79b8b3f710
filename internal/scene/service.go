// Package scene serves read-only snapshots of a running star system over
// gRPC. It only reads entity accessors; the render loop stays the single
// writer of the input snapshot.
package scene

import (
	"context"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/signalsfoundry/star-system-simulator/internal/logging"
	"github.com/signalsfoundry/star-system-simulator/internal/observability"
	"github.com/signalsfoundry/star-system-simulator/model"
)

const (
	// ServiceName is the fully-qualified gRPC service name.
	ServiceName = "starsystem.scene.v1.SceneService"
	// SnapshotMethod is the full method path of SceneService/Snapshot.
	SnapshotMethod = "/" + ServiceName + "/Snapshot"
)

// Source is what the service samples. *sim.System implements it.
type Source interface {
	Sprites() []model.Sprite
	Input() model.InputState
}

// SceneServer is the server API for SceneService.
type SceneServer interface {
	Snapshot(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

// ServiceDesc describes SceneService for grpc.ServiceRegistrar. Payloads are
// protobuf well-known types so no generated code is needed.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SceneServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Snapshot", Handler: snapshotHandler},
	},
	Metadata: "starsystem/scene/v1/scene.proto",
}

// RegisterSceneServer registers srv on s.
func RegisterSceneServer(s grpc.ServiceRegistrar, srv SceneServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func snapshotHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SceneServer).Snapshot(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: SnapshotMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SceneServer).Snapshot(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

// Service implements SceneServer over a Source.
type Service struct {
	src Source
	log logging.Logger
}

// NewService returns a service sampling src.
func NewService(src Source, log logging.Logger) *Service {
	return &Service{src: src, log: logging.OrNoop(log)}
}

// Snapshot samples every entity once and returns the current input snapshot.
func (s *Service) Snapshot(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	log := logging.FromContext(ctx, s.log)
	if s.src == nil {
		return nil, ToStatusError(ErrNoScene)
	}
	snap := Snapshot{Sprites: s.src.Sprites(), Input: s.src.Input()}
	out, err := EncodeSnapshot(snap)
	if err != nil {
		log.Warn(ctx, "encode snapshot failed", logging.Err(err))
		return nil, ToStatusError(err)
	}
	log.Debug(ctx, "served snapshot", logging.Int("sprites", len(snap.Sprites)))
	return out, nil
}

// NewServer builds a gRPC server with request-id logging, tracing and
// metrics interceptors and registers a Service for src on it.
func NewServer(src Source, log logging.Logger, collector *observability.SimCollector, opts ...grpc.ServerOption) *grpc.Server {
	log = logging.OrNoop(log)
	base := []grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			RequestIDUnaryServerInterceptor(log),
			TracingUnaryServerInterceptor(),
			collector.UnaryServerInterceptor(),
		),
	}
	srv := grpc.NewServer(append(base, opts...)...)
	RegisterSceneServer(srv, NewService(src, log))
	return srv
}
