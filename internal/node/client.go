package node

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"
	apperrors "quorumgate/internal/errors"
	"quorumgate/internal/event"
	"quorumgate/internal/ledger"
	"quorumgate/internal/signer"
)

// Client calls a Gate node on behalf of one signer. Errors returned by the
// engine come back as *errors.Error values, so errors.Is works against the
// sentinels.
type Client struct {
	conn   *grpc.ClientConn
	caller signer.ID
	owned  bool
}

// Dial connects to addr over an insecure channel.
func Dial(addr string, caller signer.ID, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", addr, err)
	}
	return &Client{conn: conn, caller: caller, owned: true}, nil
}

// NewClient wraps an existing connection. Close does not close conn.
func NewClient(conn *grpc.ClientConn, caller signer.ID) *Client {
	return &Client{conn: conn, caller: caller}
}

// As returns a client that shares the connection but calls as another signer.
func (c *Client) As(caller signer.ID) *Client {
	return &Client{conn: c.conn, caller: caller}
}

// Close closes the connection if the client opened it.
func (c *Client) Close() error {
	if !c.owned {
		return nil
	}
	return c.conn.Close()
}

// WaitForHealth blocks until the node reports SERVING or ctx ends.
func (c *Client) WaitForHealth(ctx context.Context) error {
	healthClient := grpc_health_v1.NewHealthClient(c.conn)
	backoff := 50 * time.Millisecond
	for {
		resp, err := healthClient.Check(ctx, &grpc_health_v1.HealthCheckRequest{Service: ServiceName})
		if err == nil && resp.GetStatus() == grpc_health_v1.HealthCheckResponse_SERVING {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("wait for gRPC health: %w", ctx.Err())
		case <-time.After(backoff):
		}
		if backoff < time.Second {
			backoff *= 2
		}
	}
}

func (c *Client) call(ctx context.Context, method string, fields map[string]any) (*structpb.Struct, error) {
	req, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", method, err)
	}
	if !c.caller.IsZero() {
		ctx = metadata.AppendToOutgoingContext(ctx, SignerMetadataKey, c.caller.String())
	}
	resp := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, fullMethod(method), req, resp); err != nil {
		return nil, apperrors.FromGRPC(err)
	}
	return resp, nil
}

func actionRequest(id uint64) map[string]any {
	return map[string]any{fieldActionID: formatUint(id)}
}

// Submit proposes an action and returns its identifier.
func (c *Client) Submit(ctx context.Context, target string, value uint64, payload []byte) (uint64, error) {
	resp, err := c.call(ctx, MethodSubmit, map[string]any{
		fieldTarget:  target,
		fieldValue:   formatUint(value),
		fieldPayload: encodeBytes(payload),
	})
	if err != nil {
		return 0, err
	}
	return uintField(resp, fieldActionID, true)
}

// Confirm approves action id.
func (c *Client) Confirm(ctx context.Context, id uint64) error {
	_, err := c.call(ctx, MethodConfirm, actionRequest(id))
	return err
}

// Revoke withdraws approval of action id.
func (c *Client) Revoke(ctx context.Context, id uint64) error {
	_, err := c.call(ctx, MethodRevoke, actionRequest(id))
	return err
}

// Execute runs action id.
func (c *Client) Execute(ctx context.Context, id uint64) error {
	_, err := c.call(ctx, MethodExecute, actionRequest(id))
	return err
}

// AddSigner adds s to the roster.
func (c *Client) AddSigner(ctx context.Context, s signer.ID) error {
	_, err := c.call(ctx, MethodAddSigner, map[string]any{fieldSigner: s.String()})
	return err
}

// RemoveSigner removes s from the roster.
func (c *Client) RemoveSigner(ctx context.Context, s signer.ID) error {
	_, err := c.call(ctx, MethodRemoveSigner, map[string]any{fieldSigner: s.String()})
	return err
}

// Action fetches one action.
func (c *Client) Action(ctx context.Context, id uint64) (ledger.Action, error) {
	resp, err := c.call(ctx, MethodGetAction, actionRequest(id))
	if err != nil {
		return ledger.Action{}, err
	}
	return actionFromStruct(resp)
}

// Actions lists up to limit actions starting at offset.
func (c *Client) Actions(ctx context.Context, offset uint64, limit int) ([]ledger.Action, error) {
	return c.listActions(ctx, map[string]any{
		fieldOffset: formatUint(offset),
		fieldLimit:  limit,
	})
}

// PendingActions lists every action that has not executed.
func (c *Client) PendingActions(ctx context.Context) ([]ledger.Action, error) {
	return c.listActions(ctx, map[string]any{"pending": true})
}

func (c *Client) listActions(ctx context.Context, fields map[string]any) ([]ledger.Action, error) {
	resp, err := c.call(ctx, MethodListActions, fields)
	if err != nil {
		return nil, err
	}
	items := structList(resp, fieldActions)
	out := make([]ledger.Action, 0, len(items))
	for _, item := range items {
		a, err := actionFromStruct(item)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// Roster returns the signers and the confirmation threshold.
func (c *Client) Roster(ctx context.Context) ([]signer.ID, int, error) {
	resp, err := c.call(ctx, MethodGetRoster, nil)
	if err != nil {
		return nil, 0, err
	}
	return signersFromList(resp.GetFields()[fieldSigners]), intField(resp, fieldRequired), nil
}

// Confirmations returns the count and the confirming signers of action id.
func (c *Client) Confirmations(ctx context.Context, id uint64) (int, []signer.ID, error) {
	resp, err := c.call(ctx, MethodGetConfirms, actionRequest(id))
	if err != nil {
		return 0, nil, err
	}
	return intField(resp, fieldConfirmations), signersFromList(resp.GetFields()[fieldConfirmers]), nil
}

// IsConfirmed reports whether s has confirmed action id.
func (c *Client) IsConfirmed(ctx context.Context, id uint64, s signer.ID) (bool, error) {
	fields := actionRequest(id)
	fields[fieldSigner] = s.String()
	resp, err := c.call(ctx, MethodGetConfirms, fields)
	if err != nil {
		return false, err
	}
	return boolField(resp, fieldConfirmed), nil
}

// Events lists journal records with Seq greater than afterSeq.
func (c *Client) Events(ctx context.Context, afterSeq uint64, limit int) ([]event.Record, error) {
	resp, err := c.call(ctx, MethodListEvents, map[string]any{
		fieldAfterSeq: formatUint(afterSeq),
		fieldLimit:    limit,
	})
	if err != nil {
		return nil, err
	}
	items := structList(resp, fieldEvents)
	out := make([]event.Record, 0, len(items))
	for _, item := range items {
		rec, err := recordFromStruct(item)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}
