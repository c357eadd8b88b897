package transport

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/lightningnetwork/lnd/fn/v2"

	"github.com/roasbeef/pagesum/internal/actorutil"
	"github.com/roasbeef/pagesum/internal/baselib/actor"
)

// HubKey is the service key of the broadcast hub actor.
var HubKey = actor.NewServiceKey[HubRequest, HubResponse]("broadcast-hub")

// HubRequest is the sealed interface of broadcast hub requests.
type HubRequest interface {
	actor.Message
	isHubRequest()
}

// HubResponse is the sealed interface of broadcast hub responses.
type HubResponse interface {
	isHubResponse()
}

// SubscribeMsg registers a delivery channel.
type SubscribeMsg struct {
	actor.BaseMessage

	SubscriberID string
	DeliveryChan chan<- Broadcast
}

// MessageType implements actor.Message.
func (SubscribeMsg) MessageType() string { return "SubscribeMsg" }
func (SubscribeMsg) isHubRequest()       {}

// SubscribeResponse answers a SubscribeMsg.
type SubscribeResponse struct {
	Success bool
}

func (SubscribeResponse) isHubResponse() {}

// UnsubscribeMsg removes a delivery channel. Unknown ids are ignored.
type UnsubscribeMsg struct {
	actor.BaseMessage

	SubscriberID string
}

// MessageType implements actor.Message.
func (UnsubscribeMsg) MessageType() string { return "UnsubscribeMsg" }
func (UnsubscribeMsg) isHubRequest()       {}

// UnsubscribeResponse answers an UnsubscribeMsg.
type UnsubscribeResponse struct {
	Success bool
}

func (UnsubscribeResponse) isHubResponse() {}

// PublishMsg delivers a broadcast to every subscriber.
type PublishMsg struct {
	actor.BaseMessage

	Broadcast Broadcast
}

// MessageType implements actor.Message.
func (PublishMsg) MessageType() string { return "PublishMsg" }
func (PublishMsg) isHubRequest()       {}

// PublishResponse reports how many subscribers received the broadcast.
type PublishResponse struct {
	DeliveredCount int
}

func (PublishResponse) isHubResponse() {}

type subscriber struct {
	id           string
	deliveryChan chan<- Broadcast
}

// BroadcastHub fans broadcasts out to subscribers. Sends are non-blocking:
// a subscriber with a full channel misses the broadcast rather than
// stalling the others. Each subscriber sees its deliveries in publish
// order.
type BroadcastHub struct {
	subscribers []subscriber
}

// NewBroadcastHub creates an empty hub.
func NewBroadcastHub() *BroadcastHub {
	return &BroadcastHub{}
}

// Receive implements actor.ActorBehavior.
func (h *BroadcastHub) Receive(_ context.Context,
	msg HubRequest) fn.Result[HubResponse] {

	switch m := msg.(type) {
	case SubscribeMsg:
		return fn.Ok[HubResponse](h.handleSubscribe(m))

	case UnsubscribeMsg:
		return fn.Ok[HubResponse](h.handleUnsubscribe(m))

	case PublishMsg:
		return fn.Ok[HubResponse](h.handlePublish(m))

	default:
		return fn.Err[HubResponse](fmt.Errorf("%w: %T",
			ErrUnknownRequestType, msg))
	}
}

func (h *BroadcastHub) handleSubscribe(msg SubscribeMsg) SubscribeResponse {
	for _, s := range h.subscribers {
		if s.id == msg.SubscriberID {
			return SubscribeResponse{Success: true}
		}
	}

	h.subscribers = append(h.subscribers, subscriber{
		id:           msg.SubscriberID,
		deliveryChan: msg.DeliveryChan,
	})

	return SubscribeResponse{Success: true}
}

func (h *BroadcastHub) handleUnsubscribe(
	msg UnsubscribeMsg) UnsubscribeResponse {

	for i, s := range h.subscribers {
		if s.id == msg.SubscriberID {
			h.subscribers = append(
				h.subscribers[:i], h.subscribers[i+1:]...,
			)
			break
		}
	}

	return UnsubscribeResponse{Success: true}
}

func (h *BroadcastHub) handlePublish(msg PublishMsg) PublishResponse {
	delivered := 0
	for _, s := range h.subscribers {
		select {
		case s.deliveryChan <- msg.Broadcast:
			delivered++
		default:
			log.Warnf("Dropping %s for slow subscriber %s",
				msg.Broadcast.BroadcastType(), s.id)
		}
	}

	return PublishResponse{DeliveredCount: delivered}
}

// SubscriberCount returns the number of subscribers. Only meaningful when
// called from tests with no concurrent Receive.
func (h *BroadcastHub) SubscriberCount() int {
	return len(h.subscribers)
}

// HubRef is the typed actor reference of the broadcast hub.
type HubRef = actor.ActorRef[HubRequest, HubResponse]

// Publish sends b to the hub without waiting for delivery.
func Publish(ctx context.Context, hub HubRef, b Broadcast) {
	hub.Tell(ctx, PublishMsg{Broadcast: b})
}

// Subscription is a live hub subscription.
type Subscription struct {
	id  string
	hub HubRef
	ch  chan Broadcast
}

// Subscribe registers a new buffered delivery channel with the hub.
func Subscribe(ctx context.Context, hub HubRef,
	buffer int) (*Subscription, error) {

	sub := &Subscription{
		id:  uuid.NewString(),
		hub: hub,
		ch:  make(chan Broadcast, buffer),
	}

	_, err := actorutil.AskAwait(ctx, hub, HubRequest(SubscribeMsg{
		SubscriberID: sub.id,
		DeliveryChan: sub.ch,
	}))
	if err != nil {
		return nil, fmt.Errorf("subscribe: %w", err)
	}

	return sub, nil
}

// ID returns the subscriber id.
func (s *Subscription) ID() string {
	return s.id
}

// C returns the delivery channel.
func (s *Subscription) C() <-chan Broadcast {
	return s.ch
}

// Cancel unsubscribes. The channel is not closed since a publish may still
// be in flight.
func (s *Subscription) Cancel(ctx context.Context) {
	_, _ = actorutil.AskAwait(ctx, s.hub, HubRequest(UnsubscribeMsg{
		SubscriberID: s.id,
	}))
}

var _ actor.ActorBehavior[HubRequest, HubResponse] = (*BroadcastHub)(nil)
