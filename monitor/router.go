package monitor

import (
	"slices"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/arloliu/go-homeworks/hwi"
	"github.com/arloliu/go-homeworks/logger"
)

// SubscriptionID identifies a subscription returned by Router.Subscribe.
type SubscriptionID uint64

// EventHandler is invoked for every routed event matching its subscription.
type EventHandler func(ev Event)

// Filter reports whether an event is delivered to a subscription.
type Filter func(ev Event) bool

// ArgEquals matches events whose argument at index equals value.
func ArgEquals(index int, value string) Filter {
	return func(ev Event) bool {
		return index >= 0 && index < len(ev.Args) && ev.Args[index] == value
	}
}

// AddressEquals matches events of the device at addr. Brackets are ignored.
func AddressEquals(addr string) Filter {
	addr = NormalizeAddress(addr)
	return func(ev Event) bool {
		return ev.Address() == addr
	}
}

// All matches events matched by every filter.
func All(filters ...Filter) Filter {
	return func(ev Event) bool {
		for _, f := range filters {
			if f != nil && !f(ev) {
				return false
			}
		}

		return true
	}
}

type subscription struct {
	topic   Topic
	filter  Filter
	handler EventHandler
}

// Router delivers monitoring events to the subscribers of their topic.
//
// Subscriptions can be added and removed concurrently with Dispatch. Handlers of one event
// are invoked in subscription order on the dispatching goroutine.
type Router struct {
	subs   *xsync.MapOf[SubscriptionID, subscription]
	nextID atomic.Uint64
	logger logger.Logger
}

// NewRouter creates an empty Router. A nil logger selects the package default.
func NewRouter(l logger.Logger) *Router {
	if l == nil {
		l = logger.GetLogger()
	}

	return &Router{
		subs:   xsync.NewMapOf[SubscriptionID, subscription](),
		logger: l,
	}
}

// Subscribe registers handler for events of topic matched by filter. A nil filter matches every event.
func (r *Router) Subscribe(topic Topic, filter Filter, handler EventHandler) SubscriptionID {
	id := SubscriptionID(r.nextID.Add(1))
	r.subs.Store(id, subscription{topic: topic, filter: filter, handler: handler})

	r.logger.Debug("subscribed", "method", "Subscribe", "topic", topic, "id", id)

	return id
}

// Unsubscribe removes a subscription and returns false if it doesn't exist.
func (r *Router) Unsubscribe(id SubscriptionID) bool {
	_, ok := r.subs.LoadAndDelete(id)
	return ok
}

// Len returns the number of subscriptions.
func (r *Router) Len() int {
	return r.subs.Size()
}

// Dispatch delivers ev to every matching subscription and returns the number of deliveries.
func (r *Router) Dispatch(ev Event) int {
	var ids []SubscriptionID
	r.subs.Range(func(id SubscriptionID, sub subscription) bool {
		if sub.topic == ev.Topic && (sub.filter == nil || sub.filter(ev)) {
			ids = append(ids, id)
		}

		return true
	})
	slices.Sort(ids)

	delivered := 0
	for _, id := range ids {
		// the subscription may have been removed by an earlier handler
		sub, ok := r.subs.Load(id)
		if !ok {
			continue
		}
		r.invoke(id, sub.handler, ev)
		delivered++
	}

	return delivered
}

// DispatchLine parses line and dispatches the event. It returns false for lines that are not monitoring events.
func (r *Router) DispatchLine(line string) bool {
	ev, ok := ParseEvent(line)
	if !ok {
		return false
	}
	r.Dispatch(ev)

	return true
}

// Handler returns a response handler that routes server response data and ignores everything else.
// It can be passed to hwiconn.Coordinator.SetResponseHandler.
func (r *Router) Handler() func(msg hwi.ResponseMessage) bool {
	return func(msg hwi.ResponseMessage) bool {
		if msg.IsData() {
			r.DispatchLine(msg.Data)
		}

		return true
	}
}

func (r *Router) invoke(id SubscriptionID, handler EventHandler, ev Event) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("panic in event handler", "method", "Dispatch", "id", id, "topic", ev.Topic, "panic", rec)
		}
	}()

	handler(ev)
}
