package notify

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap"

	"cookroute/internal/types"
)

type fakePusher struct {
	mu        sync.Mutex
	delivered []string // tokens
	err       error
}

func (p *fakePusher) Deliver(_ context.Context, token string, _ Push) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.delivered = append(p.delivered, token)
	return nil
}

type fakeTokens struct {
	tokens map[types.ID]string
}

func (s *fakeTokens) DeviceToken(_ context.Context, _ Role, id types.ID) (string, error) {
	return s.tokens[id], nil
}

type fakeOutbox struct {
	mu     sync.Mutex
	queued []string // events
}

func (o *fakeOutbox) EnqueueNotification(_ context.Context, _ Role, _ types.ID, event string, _ Push) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.queued = append(o.queued, event)
	return nil
}

var testPush = Push{Title: "t", Body: "b", Data: map[string]string{"k": "v"}}

func TestNotifyPrefersLiveConnection(t *testing.T) {
	reg := NewRegistry()
	conn := &fakeConn{}
	reg.Register(RoleCook, "c1", conn)
	pusher := &fakePusher{}
	d := NewDispatcher(reg, pusher, &fakeTokens{tokens: map[types.ID]string{"c1": "tok"}}, zap.NewNop())

	d.Notify(context.Background(), RoleCook, "c1", "orderPaid", map[string]any{"orderId": "o1"}, testPush)

	if got := conn.seen(); len(got) != 1 || got[0] != "orderPaid" {
		t.Errorf("live events = %v, want [orderPaid]", got)
	}
	if len(pusher.delivered) != 0 {
		t.Errorf("push sent despite live delivery: %v", pusher.delivered)
	}
}

func TestNotifyFallsBackToPushWhenOffline(t *testing.T) {
	reg := NewRegistry()
	pusher := &fakePusher{}
	d := NewDispatcher(reg, pusher, &fakeTokens{tokens: map[types.ID]string{"c1": "tok"}}, zap.NewNop())

	d.Notify(context.Background(), RoleCook, "c1", "orderPaid", nil, testPush)

	if len(pusher.delivered) != 1 || pusher.delivered[0] != "tok" {
		t.Errorf("delivered = %v, want [tok]", pusher.delivered)
	}
}

func TestNotifyFallsBackWhenLiveSendFails(t *testing.T) {
	reg := NewRegistry()
	conn := &fakeConn{err: errors.New("peer gone")}
	reg.Register(RoleDriver, "d1", conn)
	pusher := &fakePusher{}
	d := NewDispatcher(reg, pusher, &fakeTokens{tokens: map[types.ID]string{"d1": "tok"}}, zap.NewNop())

	d.Notify(context.Background(), RoleDriver, "d1", "orderReady", nil, testPush)

	if len(pusher.delivered) != 1 {
		t.Errorf("delivered = %v, want one push after failed live send", pusher.delivered)
	}
}

func TestNotifySkipsPushForLiveOnlyEvents(t *testing.T) {
	reg := NewRegistry()
	pusher := &fakePusher{}
	d := NewDispatcher(reg, pusher, &fakeTokens{tokens: map[types.ID]string{"u1": "tok"}}, zap.NewNop())

	// Zero Push marks the event live-only (e.g. driver position stream).
	d.Notify(context.Background(), RoleCustomer, "u1", "driverLocation", nil, Push{})

	if len(pusher.delivered) != 0 {
		t.Errorf("delivered = %v, want none for a live-only event", pusher.delivered)
	}
}

func TestNotifySwallowsMissingToken(t *testing.T) {
	reg := NewRegistry()
	pusher := &fakePusher{}
	d := NewDispatcher(reg, pusher, &fakeTokens{tokens: map[types.ID]string{}}, zap.NewNop())

	// Must not panic or error; the transition already committed.
	d.Notify(context.Background(), RoleCook, "c1", "orderPaid", nil, testPush)

	if len(pusher.delivered) != 0 {
		t.Errorf("delivered = %v, want none without a token", pusher.delivered)
	}
}

func TestNotifyQueuesFailedPushIntoOutbox(t *testing.T) {
	reg := NewRegistry()
	pusher := &fakePusher{err: errors.New("fcm unavailable")}
	outbox := &fakeOutbox{}
	d := NewDispatcher(reg, pusher, &fakeTokens{tokens: map[types.ID]string{"c1": "tok"}}, zap.NewNop()).
		WithOutbox(outbox)

	d.Notify(context.Background(), RoleCook, "c1", "orderPaid", nil, testPush)

	if len(outbox.queued) != 1 || outbox.queued[0] != "orderPaid" {
		t.Errorf("outbox = %v, want [orderPaid]", outbox.queued)
	}
}
