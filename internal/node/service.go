package node

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "quorumgate.v1.Gate"

// Method names, as sent on the wire.
const (
	MethodSubmit       = "Submit"
	MethodConfirm      = "Confirm"
	MethodRevoke       = "Revoke"
	MethodExecute      = "Execute"
	MethodAddSigner    = "AddSigner"
	MethodRemoveSigner = "RemoveSigner"
	MethodGetAction    = "GetAction"
	MethodListActions  = "ListActions"
	MethodGetRoster    = "GetRoster"
	MethodGetConfirms  = "GetConfirmations"
	MethodListEvents   = "ListEvents"
)

// GateServer is the server API for the Gate service. Requests and responses
// are structpb.Struct messages; see convert.go for the field layout.
type GateServer interface {
	Submit(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Confirm(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Revoke(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Execute(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AddSigner(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RemoveSigner(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetAction(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListActions(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetRoster(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetConfirmations(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListEvents(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RegisterGateServer registers srv on s.
func RegisterGateServer(s grpc.ServiceRegistrar, srv GateServer) {
	s.RegisterService(&gateServiceDesc, srv)
}

type unaryFunc func(GateServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(method string, call unaryFunc) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(GateServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: fullMethod(method),
			}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(GateServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

func fullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

var gateServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*GateServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler(MethodSubmit, GateServer.Submit),
		unaryHandler(MethodConfirm, GateServer.Confirm),
		unaryHandler(MethodRevoke, GateServer.Revoke),
		unaryHandler(MethodExecute, GateServer.Execute),
		unaryHandler(MethodAddSigner, GateServer.AddSigner),
		unaryHandler(MethodRemoveSigner, GateServer.RemoveSigner),
		unaryHandler(MethodGetAction, GateServer.GetAction),
		unaryHandler(MethodListActions, GateServer.ListActions),
		unaryHandler(MethodGetRoster, GateServer.GetRoster),
		unaryHandler(MethodGetConfirms, GateServer.GetConfirmations),
		unaryHandler(MethodListEvents, GateServer.ListEvents),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "quorumgate/v1/gate.proto",
}
