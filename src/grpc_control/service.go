package grpc_control

import (
	"context"
	"fmt"
	"net"

	"market-agent/src/helpers"
	"market-agent/src/interfaces"
	"market-agent/src/logger"
	"market-agent/src/models"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// SubscriberCounter reports connected relay clients; the local hub implements it
type SubscriberCounter interface {
	Subscribers() int
}

// ControlService implements ControlServer on top of the request handler
type ControlService struct {
	Config       *models.MConfig
	Handler      interfaces.IChatHandler
	Subscribers  SubscriberCounter // nil with hosted Pusher
	Capabilities []string
	Logger       *logger.Logger
}

var _ ControlServer = (*ControlService)(nil)

// NewControlService creates a new instance of ControlService
func NewControlService(cfg *models.MConfig, h interfaces.IChatHandler, subscribers SubscriberCounter, capabilities []string, log *logger.Logger) *ControlService {
	return &ControlService{
		Config:       cfg,
		Handler:      h,
		Subscribers:  subscribers,
		Capabilities: capabilities,
		Logger:       log,
	}
}

// -----------------------------------------------------------------------------

// Submit runs the message. The request id is also set as a trailer so callers
// can correlate events of a failed run.
func (s *ControlService) Submit(ctx context.Context, req *structpb.Struct) (*wrapperspb.StringValue, error) {
	fields := req.GetFields()
	chat := models.MChatRequest{
		Message:   fields["message"].GetStringValue(),
		RequestID: fields["request_id"].GetStringValue(),
	}

	requestID, err := s.Handler.Handle(ctx, chat)
	if requestID != "" {
		grpc.SetTrailer(ctx, metadata.Pairs(RequestIDTrailerKey, requestID))
	}
	if err != nil {
		s.Logger.Warning("gRPC: Submit %s failed: %v", requestID, err)
		return nil, status.Error(codeFor(err), err.Error())
	}
	return wrapperspb.String(requestID), nil
}

// -----------------------------------------------------------------------------

func (s *ControlService) Status(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	subscribers := 0
	if s.Subscribers != nil {
		subscribers = s.Subscribers.Subscribers()
	}

	capabilities := make([]any, 0, len(s.Capabilities))
	for _, name := range s.Capabilities {
		capabilities = append(capabilities, name)
	}

	out, err := structpb.NewStruct(map[string]any{
		"subscribers":  subscribers,
		"channel":      s.Config.Relay.Channel,
		"relay_driver": s.Config.Relay.Driver,
		"reasoner":     s.Config.Agent.Reasoner,
		"capabilities": capabilities,
	})
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// -----------------------------------------------------------------------------

func codeFor(err error) codes.Code {
	switch helpers.ErrorKind(err) {
	case helpers.KindValidation:
		return codes.InvalidArgument
	case helpers.KindUpstreamData:
		return codes.Unavailable
	default:
		return codes.Internal
	}
}

// -----------------------------------------------------------------------------

// Serve listens on addr until ctx ends
func Serve(ctx context.Context, addr string, svc *ControlService, log *logger.Logger) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return helpers.NewNetworkError(fmt.Sprintf("listen for gRPC on %s", addr), err)
	}

	grpcServer := grpc.NewServer()
	RegisterControlServer(grpcServer, svc)

	go func() {
		<-ctx.Done()
		grpcServer.GracefulStop()
	}()

	log.Info("Starting gRPC Control Server on %s", addr)
	if err := grpcServer.Serve(lis); err != nil {
		return helpers.NewNetworkError("serve gRPC", err)
	}
	return nil
}
