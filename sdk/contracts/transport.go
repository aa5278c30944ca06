package contracts

// Handler receives the events published on a channel.
type Handler func(Event)

// Subscription is returned by Transport.Subscribe.
type Subscription interface {
	// Unsubscribe stops delivery to the handler. Calling it more than once is a no-op.
	Unsubscribe()
}

// Transport is a named-channel publish/subscribe primitive. Delivery is
// ordered per channel and asynchronous relative to Publish.
type Transport interface {
	Subscribe(channel string, h Handler) Subscription
	Publish(channel string, e Event) error
}

// SubscriptionFunc adapts a function to the Subscription interface.
type SubscriptionFunc func()

// Unsubscribe calls f.
func (f SubscriptionFunc) Unsubscribe() { f() }
