package notifier

// Notification is one outbound message for bus subscribers: a manager event
// or a protocol notification, addressed by topic.
type Notification struct {
	Topic string
	Data  interface{}
}
