package session

import "time"

// StatusKind is the internal charger status vocabulary. It evolves
// independently from the OCPP wire enumeration; translation lives in the
// wire package.
type StatusKind string

const (
	StatusAvailable   StatusKind = "Available"
	StatusPreparing   StatusKind = "Preparing"
	StatusCharging    StatusKind = "Charging"
	StatusReserved    StatusKind = "Reserved"
	StatusUnavailable StatusKind = "Unavailable"
	StatusFinishing   StatusKind = "Finishing"
	StatusFaulted     StatusKind = "Faulted"
)

// ErrorCode qualifies a Faulted status. NoError is the neutral code carried
// by every non-faulted status.
type ErrorCode string

const (
	NoError              ErrorCode = "NoError"
	ConnectorLockFailure ErrorCode = "ConnectorLockFailure"
	GroundFailure        ErrorCode = "GroundFailure"
	HighTemperature      ErrorCode = "HighTemperature"
	InternalError        ErrorCode = "InternalError"
	OtherError           ErrorCode = "OtherError"
	OverCurrentFailure   ErrorCode = "OverCurrentFailure"
	OverVoltage          ErrorCode = "OverVoltage"
	PowerMeterFailure    ErrorCode = "PowerMeterFailure"
	PowerSwitchFailure   ErrorCode = "PowerSwitchFailure"
	ReaderFailure        ErrorCode = "ReaderFailure"
	UnderVoltage         ErrorCode = "UnderVoltage"
	WeakSignal           ErrorCode = "WeakSignal"
)

// ErrorCodes lists every error code the charger can report.
var ErrorCodes = []ErrorCode{
	ConnectorLockFailure,
	GroundFailure,
	HighTemperature,
	InternalError,
	NoError,
	OtherError,
	OverCurrentFailure,
	OverVoltage,
	PowerMeterFailure,
	PowerSwitchFailure,
	ReaderFailure,
	UnderVoltage,
	WeakSignal,
}

// Status couples a status kind with its error code. ErrorCode is meaningful
// for StatusFaulted only; the zero value maps to NoError.
type Status struct {
	Kind      StatusKind `json:"kind"`
	ErrorCode ErrorCode  `json:"errorCode,omitempty"`
}

// Faulted builds a faulted status carrying the given error code.
func Faulted(code ErrorCode) Status {
	return Status{Kind: StatusFaulted, ErrorCode: code}
}

type ReservationStatus string

const (
	ReservationPending  ReservationStatus = "Pending"
	ReservationAccepted ReservationStatus = "Accepted"
	ReservationCancel   ReservationStatus = "Cancel"
)

// Reservation is one outstanding connector reservation. Start and Stop are
// offsets from the Unix epoch; the reservation expires at Stop.
type Reservation struct {
	ID     int               `json:"id"`
	Tag    string            `json:"tagid"`
	Start  time.Duration     `json:"start"`
	Stop   time.Duration     `json:"stop"`
	Status ReservationStatus `json:"status"`
}

// PowerLimit caps the charge current of one transaction. MaxCurrent is in
// hundredths of ampere, Duration in seconds. It is transient: validated
// against the live transaction id when applied, never stored.
type PowerLimit struct {
	TransactionID int `json:"transactionId"`
	MaxCurrent    int `json:"maxCurrent"`
	Duration      int `json:"duration"`
}

// state is the session record: the single source of truth for one connector.
// Only the Manager may read or mutate it.
type state struct {
	connectorID int
	tid         int
	reservation *Reservation
	authorized  bool
	status      Status
}
