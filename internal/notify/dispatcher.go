// README: Live-first event delivery with push fallback; never fails the caller.
package notify

import (
	"context"

	"go.uber.org/zap"

	"cookroute/internal/types"
)

// Push is the fallback notification content for actors without a live
// connection. A zero Push means the event is live-only (no fallback).
type Push struct {
	Title string
	Body  string
	Data  map[string]string
}

func (p Push) empty() bool { return p.Title == "" && p.Body == "" && len(p.Data) == 0 }

// Pusher delivers to a device token. Fire-and-forget: the core consumes no
// delivery confirmation.
type Pusher interface {
	Deliver(ctx context.Context, deviceToken string, p Push) error
}

// TokenSource resolves an actor's persisted device token, independent of the
// live registry.
type TokenSource interface {
	DeviceToken(ctx context.Context, role Role, id types.ID) (string, error)
}

// Outbox is the reserved seam for durable retry of failed push deliveries.
// Not wired to a worker yet; implementations may persist and drain later.
type Outbox interface {
	EnqueueNotification(ctx context.Context, role Role, id types.ID, event string, p Push) error
}

type Dispatcher struct {
	reg    *Registry
	pusher Pusher
	tokens TokenSource
	outbox Outbox // optional
	log    *zap.Logger
}

func NewDispatcher(reg *Registry, pusher Pusher, tokens TokenSource, log *zap.Logger) *Dispatcher {
	return &Dispatcher{reg: reg, pusher: pusher, tokens: tokens, log: log}
}

// WithOutbox routes failed push deliveries into the outbox instead of
// dropping them.
func (d *Dispatcher) WithOutbox(o Outbox) *Dispatcher {
	d.outbox = o
	return d
}

// Notify delivers the event to the actor: synchronously over the live
// connection when one is registered, otherwise (or when the live send fails)
// via push addressed by the persisted device token. Best-effort by contract;
// the triggering transition has already committed, so failures are logged and
// never propagated.
func (d *Dispatcher) Notify(ctx context.Context, role Role, id types.ID, event string, payload any, push Push) {
	if conn, ok := d.reg.Lookup(role, id); ok {
		if err := conn.Emit(event, payload); err == nil {
			return
		} else {
			d.log.Warn("live delivery failed, falling back to push",
				zap.String("role", string(role)),
				zap.String("actor_id", string(id)),
				zap.String("event", event),
				zap.Error(err),
			)
		}
	}
	if push.empty() {
		return
	}
	d.fallback(ctx, role, id, event, push)
}

func (d *Dispatcher) fallback(ctx context.Context, role Role, id types.ID, event string, push Push) {
	token, err := d.tokens.DeviceToken(ctx, role, id)
	if err != nil || token == "" {
		d.log.Warn("no device token for push fallback",
			zap.String("role", string(role)),
			zap.String("actor_id", string(id)),
			zap.String("event", event),
			zap.Error(err),
		)
		return
	}
	if err := d.pusher.Deliver(ctx, token, push); err != nil {
		d.log.Warn("push delivery failed",
			zap.String("role", string(role)),
			zap.String("actor_id", string(id)),
			zap.String("event", event),
			zap.Error(err),
		)
		if d.outbox != nil {
			if oerr := d.outbox.EnqueueNotification(ctx, role, id, event, push); oerr != nil {
				d.log.Error("outbox enqueue failed", zap.Error(oerr))
			}
		}
	}
}
