package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// StateError reports a session invariant violation. It is always surfaced to
// the immediate caller, never retried internally.
type StateError string

func (e StateError) Error() string { return string(e) }

const (
	ErrNoActiveSession      StateError = "no active transaction running"
	ErrSessionAlreadyActive StateError = "transaction already active"
)

// Identifier mismatches are answered as outcome values, not errors; callers
// check the outcome tag.
type ReserveOutcome string

const (
	ReserveAccepted ReserveOutcome = "Accepted"
	ReserveOccupied ReserveOutcome = "Occupied"
	ReserveExpired  ReserveOutcome = "Expired"
)

type CancelOutcome string

const (
	CancelAccepted CancelOutcome = "Accepted"
	CancelRejected CancelOutcome = "Rejected"
)

type LimitOutcome string

const (
	LimitAccepted LimitOutcome = "Accepted"
	LimitRejected LimitOutcome = "Rejected"
)

// pendingTransactionID marks a transaction slot claimed by a StartTransaction
// request whose confirmation is still in flight. It keeps two concurrent
// start requests from both passing the no-active-session check before either
// commits.
const pendingTransactionID = -1

// Manager owns the session record of one connector for the process lifetime.
// Every operation runs its precondition check and mutation inside one
// critical section; events are published after the lock is released.
type Manager struct {
	mu     sync.Mutex
	state  state
	expiry *time.Timer
	events Publisher
	log    *logrus.Entry
}

// NewManager creates the manager for the given connector. The connector id
// is immutable afterwards.
func NewManager(connectorID int, events Publisher) *Manager {
	return &Manager{
		state: state{
			connectorID: connectorID,
			status:      Status{Kind: StatusAvailable},
		},
		events: events,
		log:    logrus.WithField("connector", connectorID),
	}
}

func (m *Manager) publish(evt Event) {
	if m.events != nil {
		m.events.Publish(evt)
	}
}

// ConnectorID returns the connector this manager represents.
func (m *Manager) ConnectorID() int {
	return m.state.connectorID
}

// TransactionID returns the current transaction id, 0 when none is active.
func (m *Manager) TransactionID() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.tid == pendingTransactionID {
		return 0
	}
	return m.state.tid
}

// CheckActiveSession guards Start/Stop requests: with expectActive it fails
// unless a transaction is running, without it fails if one is.
func (m *Manager) CheckActiveSession(expectActive bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	// a claimed slot is not a running transaction: a stop arriving while the
	// start confirmation is in flight must not close it with tid 0
	if expectActive && (m.state.tid == 0 || m.state.tid == pendingTransactionID) {
		return ErrNoActiveSession
	}
	if !expectActive && m.state.tid != 0 {
		return fmt.Errorf("%w tid:%d", ErrSessionAlreadyActive, m.state.tid)
	}
	return nil
}

// BeginTransaction atomically claims the transaction slot before the
// StartTransaction request is issued, so a second start cannot slip in while
// the confirmation is in flight. Login commits the claim, AbortTransaction
// rolls it back.
func (m *Manager) BeginTransaction() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.tid != 0 {
		return fmt.Errorf("%w tid:%d", ErrSessionAlreadyActive, m.state.tid)
	}
	m.state.tid = pendingTransactionID
	return nil
}

// AbortTransaction releases a claimed slot after the backend refused or the
// request failed. A committed transaction is left untouched.
func (m *Manager) AbortTransaction() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.tid == pendingTransactionID {
		m.state.tid = 0
	}
}

// Login records the backend-assigned transaction id. The caller must already
// hold backend acceptance; the manager does not contact the backend itself.
func (m *Manager) Login(tid int) {
	m.mu.Lock()
	m.state.tid = tid
	m.mu.Unlock()
	m.log.WithField("tid", tid).Debug("transaction started")
	m.publish(transactionEvent(true, tid))
}

// Logout clears the active transaction and reports the id it had.
func (m *Manager) Logout() {
	m.mu.Lock()
	previous := m.state.tid
	m.state.tid = 0
	m.mu.Unlock()
	if previous == pendingTransactionID {
		previous = 0
	}
	m.log.WithField("tid", previous).Debug("transaction stopped")
	m.publish(transactionEvent(false, previous))
}

// Authorized records the last authorization outcome reported by the backend.
// It does not gate on any session invariant.
func (m *Manager) Authorized(flag bool) {
	m.mu.Lock()
	m.state.authorized = flag
	m.mu.Unlock()
	m.publish(authorizedEvent(flag))
}

// IsAuthorized reports the last recorded authorization outcome.
func (m *Manager) IsAuthorized() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.authorized
}

// ReserveNow stores the reservation unless one is already outstanding, in
// which case it rejects with Occupied and leaves state untouched. A
// reservation whose expiry has already lapsed is rejected with Expired so it
// can never occupy the connector indefinitely.
func (m *Manager) ReserveNow(req Reservation) ReserveOutcome {
	delay := req.Stop - time.Duration(time.Now().UnixNano())
	if req.Stop != 0 && delay <= 0 {
		m.log.WithField("reservation", req.ID).Warn("reservation already expired")
		return ReserveExpired
	}

	m.mu.Lock()
	if m.state.reservation != nil {
		m.mu.Unlock()
		return ReserveOccupied
	}
	stored := req
	m.state.reservation = &stored
	// reservation lifetime is bounded by its expiry
	if req.Stop != 0 {
		id := req.ID
		m.expiry = time.AfterFunc(delay, func() {
			if m.ReserveCancel(id) == CancelAccepted {
				m.log.WithField("reservation", id).Info("reservation expired")
			}
		})
	}
	m.mu.Unlock()
	m.log.WithField("reservation", req.ID).Debug("connector reserved")
	m.publish(reservationEvent(req))
	return ReserveAccepted
}

// ReserveCancel clears the stored reservation when id matches it, publishing
// a cancelled copy. Anything else is rejected without touching state.
func (m *Manager) ReserveCancel(id int) CancelOutcome {
	m.mu.Lock()
	if m.state.reservation == nil || m.state.reservation.ID != id {
		m.mu.Unlock()
		return CancelRejected
	}
	cancelled := *m.state.reservation
	cancelled.Status = ReservationCancel
	m.state.reservation = nil
	if m.expiry != nil {
		m.expiry.Stop()
		m.expiry = nil
	}
	m.mu.Unlock()
	m.log.WithField("reservation", id).Debug("reservation cancelled")
	m.publish(reservationEvent(cancelled))
	return CancelAccepted
}

// Reservation returns a copy of the outstanding reservation, if any.
func (m *Manager) Reservation() (Reservation, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.reservation == nil {
		return Reservation{}, false
	}
	return *m.state.reservation, true
}

// SetLimit applies a power limit iff it targets the live transaction. On a
// stale id the caller must force-terminate the backend's transaction; the
// manager only reports the mismatch.
func (m *Manager) SetLimit(limit PowerLimit) LimitOutcome {
	m.mu.Lock()
	// tid == 0 rejects even a matching "no transaction" limit.
	if m.state.tid == 0 || m.state.tid == pendingTransactionID || limit.TransactionID != m.state.tid {
		tid := m.state.tid
		m.mu.Unlock()
		m.log.WithFields(logrus.Fields{"limit": limit.TransactionID, "tid": tid}).
			Warn("power limit for stale transaction")
		return LimitRejected
	}
	m.mu.Unlock()
	m.publish(powerLimitEvent(limit))
	return LimitAccepted
}

// SetStatus is a plain setter: publishing the change externally is up to
// whoever initiated it, which keeps the operation idempotent for polling.
func (m *Manager) SetStatus(status Status) {
	m.mu.Lock()
	m.state.status = status
	m.mu.Unlock()
}

// Status returns the current charger status.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.status
}

// Reset publishes the reset event and force-terminates any running
// transaction. Hard/hardware resets must be rejected by the caller before
// ever reaching this operation.
func (m *Manager) Reset() {
	m.publish(Event{Kind: EventReset})
	m.Logout()
}
