package notifier

import "charge_point/session"

// Topics carried on the event side of the bus.
const (
	TopicInitialized = "event.initialized"
	TopicReset       = "event.reset"
	TopicAuthorized  = "event.authorized"
	TopicTransaction = "event.transaction"
	TopicReservation = "event.reservation"
	TopicPowerLimit  = "event.power.limit"
)

var eventTopics = map[session.EventKind]string{
	session.EventInitialized: TopicInitialized,
	session.EventReset:       TopicReset,
	session.EventAuthorized:  TopicAuthorized,
	session.EventTransaction: TopicTransaction,
	session.EventReservation: TopicReservation,
	session.EventPowerLimit:  TopicPowerLimit,
}

// EventPublisher adapts the manager's event stream onto the notification
// channel the bus consumes.
type EventPublisher struct {
	notification chan Notification
}

func NewEventPublisher() *EventPublisher {
	return &EventPublisher{notification: make(chan Notification)}
}

// Channel exposes the notification stream for the bus to drain.
func (p *EventPublisher) Channel() chan Notification {
	return p.notification
}

// Publish implements session.Publisher.
func (p *EventPublisher) Publish(evt session.Event) {
	topic, ok := eventTopics[evt.Kind]
	if !ok {
		return
	}
	p.notification <- Notification{Topic: topic, Data: evt}
}
