package engine

import (
	"context"
	"errors"
	"log"

	"quorumgate/internal/event"
)

// Publisher receives notifications for committed operations.
type Publisher interface {
	Publish(ctx context.Context, ev event.Event) error
}

// PublisherFunc adapts a function to the Publisher interface.
type PublisherFunc func(ctx context.Context, ev event.Event) error

// Publish calls f.
func (f PublisherFunc) Publish(ctx context.Context, ev event.Event) error {
	return f(ctx, ev)
}

// Publishers fans each event out to every publisher in order and joins
// their errors.
type Publishers []Publisher

// Publish implements Publisher.
func (ps Publishers) Publish(ctx context.Context, ev event.Event) error {
	var errs []error
	for _, p := range ps {
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogPublisher writes one log line per event.
type LogPublisher struct {
	Name string
}

// Publish implements Publisher.
func (p LogPublisher) Publish(_ context.Context, ev event.Event) error {
	switch ev.Type {
	case event.ActionSubmitted:
		log.Printf("[%s] %s: action=%d caller=%s target=%s value=%d payload_bytes=%d",
			p.Name, ev.Type, ev.ActionID, ev.Caller, ev.Target, ev.Value, len(ev.Payload))
	case event.Confirmed, event.Revoked:
		log.Printf("[%s] %s: action=%d signer=%s caller=%s derived=%t",
			p.Name, ev.Type, ev.ActionID, ev.Signer, ev.Caller, ev.Derived)
	case event.Executed:
		log.Printf("[%s] %s: action=%d caller=%s target=%s value=%d",
			p.Name, ev.Type, ev.ActionID, ev.Caller, ev.Target, ev.Value)
	default:
		log.Printf("[%s] %s: signer=%s caller=%s", p.Name, ev.Type, ev.Signer, ev.Caller)
	}
	return nil
}
