package node

import (
	"context"
	"log"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"quorumgate/internal/engine"
	apperrors "quorumgate/internal/errors"
	"quorumgate/internal/signer"
	"quorumgate/internal/storage"
)

// SignerMetadataKey carries the authenticated caller identity. The node
// trusts whatever the transport delivers here.
const SignerMetadataKey = "x-signer-id"

const defaultPageSize = 100

// Server implements the Gate gRPC service on top of an engine.
type Server struct {
	engine  *engine.Engine
	journal storage.Journal // nil disables ListEvents
	nodeID  string
}

// NewServer creates a new gRPC server instance.
func NewServer(eng *engine.Engine, journal storage.Journal, nodeID string) *Server {
	return &Server{
		engine:  eng,
		journal: journal,
		nodeID:  nodeID,
	}
}

var _ GateServer = (*Server)(nil)

// callerFrom returns the caller identity from incoming metadata, or the null
// identity if none was sent.
func callerFrom(ctx context.Context) signer.ID {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get(SignerMetadataKey)
	if len(values) == 0 {
		return ""
	}
	return signer.ID(values[0])
}

// toStatus converts an engine error into a gRPC status error.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if appErr, ok := apperrors.As(err); ok {
		return appErr.ToGRPCStatus()
	}
	return status.Error(codes.Internal, err.Error())
}

func invalidArgument(err error) error {
	return status.Error(codes.InvalidArgument, err.Error())
}

func newStruct(fields map[string]any) (*structpb.Struct, error) {
	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return s, nil
}

// Submit handles Submit requests.
func (s *Server) Submit(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	caller := callerFrom(ctx)
	target := stringField(req, fieldTarget)
	log.Printf("[%s] Submit request: caller=%s target=%s", s.nodeID, caller, target)

	value, err := uintField(req, fieldValue, false)
	if err != nil {
		return nil, invalidArgument(err)
	}
	payload, err := bytesField(req, fieldPayload)
	if err != nil {
		return nil, invalidArgument(err)
	}

	id, err := s.engine.Submit(ctx, caller, target, value, payload)
	if err != nil {
		return nil, toStatus(err)
	}
	return newStruct(map[string]any{fieldActionID: formatUint(id)})
}

// actionCall decodes the action id and runs op for the caller.
func (s *Server) actionCall(ctx context.Context, name string, req *structpb.Struct, op func(context.Context, signer.ID, uint64) error) (*structpb.Struct, error) {
	caller := callerFrom(ctx)
	id, err := uintField(req, fieldActionID, true)
	if err != nil {
		return nil, invalidArgument(err)
	}
	log.Printf("[%s] %s request: caller=%s action=%d", s.nodeID, name, caller, id)

	if err := op(ctx, caller, id); err != nil {
		return nil, toStatus(err)
	}
	return newStruct(map[string]any{fieldActionID: formatUint(id)})
}

// Confirm handles Confirm requests.
func (s *Server) Confirm(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.actionCall(ctx, MethodConfirm, req, s.engine.Confirm)
}

// Revoke handles Revoke requests.
func (s *Server) Revoke(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.actionCall(ctx, MethodRevoke, req, s.engine.Revoke)
}

// Execute handles Execute requests.
func (s *Server) Execute(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.actionCall(ctx, MethodExecute, req, s.engine.Execute)
}

// signerCall decodes the subject signer and runs op for the caller.
func (s *Server) signerCall(ctx context.Context, name string, req *structpb.Struct, op func(context.Context, signer.ID, signer.ID) error) (*structpb.Struct, error) {
	caller := callerFrom(ctx)
	subject := signer.ID(stringField(req, fieldSigner))
	log.Printf("[%s] %s request: caller=%s signer=%s", s.nodeID, name, caller, subject)

	if err := op(ctx, caller, subject); err != nil {
		return nil, toStatus(err)
	}
	return newStruct(map[string]any{fieldSigner: subject.String()})
}

// AddSigner handles AddSigner requests.
func (s *Server) AddSigner(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.signerCall(ctx, MethodAddSigner, req, s.engine.AddSigner)
}

// RemoveSigner handles RemoveSigner requests.
func (s *Server) RemoveSigner(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.signerCall(ctx, MethodRemoveSigner, req, s.engine.RemoveSigner)
}

// GetAction handles GetAction requests.
func (s *Server) GetAction(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := uintField(req, fieldActionID, true)
	if err != nil {
		return nil, invalidArgument(err)
	}
	a, err := s.engine.Action(ctx, id)
	if err != nil {
		return nil, toStatus(err)
	}
	return newStruct(actionFields(a))
}

// ListActions handles ListActions requests. Set "pending" to list only
// actions that have not executed.
func (s *Server) ListActions(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	offset, err := uintField(req, fieldOffset, false)
	if err != nil {
		return nil, invalidArgument(err)
	}
	limit := intField(req, fieldLimit)
	if limit <= 0 {
		limit = defaultPageSize
	}

	var actions []any
	if boolField(req, "pending") {
		for _, a := range s.engine.PendingActions(ctx) {
			actions = append(actions, actionFields(a))
		}
	} else {
		for _, a := range s.engine.Actions(ctx, offset, limit) {
			actions = append(actions, actionFields(a))
		}
	}
	return newStruct(map[string]any{
		fieldActions: actions,
		"total":      formatUint(s.engine.ActionCount(ctx)),
	})
}

// GetRoster handles GetRoster requests.
func (s *Server) GetRoster(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	return newStruct(map[string]any{
		fieldSigners:  signerStrings(s.engine.Signers(ctx)),
		fieldRequired: s.engine.RequiredConfirmations(ctx),
	})
}

// GetConfirmations handles GetConfirmations requests. When "signer" is set
// the response also reports whether that signer has confirmed.
func (s *Server) GetConfirmations(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := uintField(req, fieldActionID, true)
	if err != nil {
		return nil, invalidArgument(err)
	}
	count, err := s.engine.ConfirmationCount(ctx, id)
	if err != nil {
		return nil, toStatus(err)
	}
	confirmers, err := s.engine.Confirmers(ctx, id)
	if err != nil {
		return nil, toStatus(err)
	}

	fields := map[string]any{
		fieldActionID:      formatUint(id),
		fieldConfirmations: count,
		fieldConfirmers:    signerStrings(confirmers),
	}
	if who := stringField(req, fieldSigner); who != "" {
		ok, err := s.engine.IsConfirmed(ctx, id, signer.ID(who))
		if err != nil {
			return nil, toStatus(err)
		}
		fields[fieldConfirmed] = ok
	}
	return newStruct(fields)
}

// ListEvents handles ListEvents requests.
func (s *Server) ListEvents(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if s.journal == nil {
		return nil, status.Error(codes.Unimplemented, "no journal configured")
	}
	after, err := uintField(req, fieldAfterSeq, false)
	if err != nil {
		return nil, invalidArgument(err)
	}
	limit := intField(req, fieldLimit)
	if limit <= 0 {
		limit = defaultPageSize
	}

	records, err := s.journal.List(ctx, after, limit)
	if err != nil {
		log.Printf("[%s] ListEvents failed: %v", s.nodeID, err)
		return nil, status.Errorf(codes.Unavailable, "list events: %v", err)
	}
	events := make([]any, 0, len(records))
	for _, rec := range records {
		events = append(events, recordFields(rec))
	}
	return newStruct(map[string]any{fieldEvents: events})
}
