package session

// EventKind discriminates manager events.
type EventKind string

const (
	EventInitialized EventKind = "initialized"
	EventReset       EventKind = "reset"
	EventAuthorized  EventKind = "authorized"
	EventTransaction EventKind = "transaction"
	EventReservation EventKind = "reservation"
	EventPowerLimit  EventKind = "power-limit"
)

// Event is published by the Manager on every state transition. Only the
// field matching Kind is populated.
type Event struct {
	Kind          EventKind    `json:"kind"`
	Authorized    bool         `json:"authorized,omitempty"`
	Started       bool         `json:"started,omitempty"`
	TransactionID int          `json:"transactionId,omitempty"`
	Reservation   *Reservation `json:"reservation,omitempty"`
	Limit         *PowerLimit  `json:"limit,omitempty"`
}

// Publisher fans manager events out to subscribers (frontend UI, test
// harness). Publish must not block the caller for long: the Manager invokes
// it outside its critical section but inline with the mutating operation.
type Publisher interface {
	Publish(Event)
}

func authorizedEvent(flag bool) Event {
	return Event{Kind: EventAuthorized, Authorized: flag}
}

func transactionEvent(started bool, tid int) Event {
	return Event{Kind: EventTransaction, Started: started, TransactionID: tid}
}

func reservationEvent(r Reservation) Event {
	return Event{Kind: EventReservation, Reservation: &r}
}

func powerLimitEvent(l PowerLimit) Event {
	return Event{Kind: EventPowerLimit, Limit: &l}
}
