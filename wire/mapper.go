// Package wire translates between the internal charging-domain model and the
// OCPP 1.6 vocabulary of ocpp-go. Everything here is pure and stateless.
package wire

import (
	"fmt"
	"strconv"
	"time"

	"github.com/lorenzodonini/ocpp-go/ocpp1.6/core"
	"github.com/lorenzodonini/ocpp-go/ocpp1.6/types"

	"charge_point/energy"
	"charge_point/session"
)

// ErrNoActiveTransaction rejects a meter report built while no transaction
// is running.
const ErrNoActiveTransaction = session.StateError("no active transaction for meter report")

var errorToWire = map[session.ErrorCode]core.ChargePointErrorCode{
	session.NoError:              core.NoError,
	session.ConnectorLockFailure: core.ConnectorLockFailure,
	session.GroundFailure:        core.GroundFailure,
	session.HighTemperature:      core.HighTemperature,
	session.InternalError:        core.InternalError,
	session.OtherError:           core.OtherError,
	session.OverCurrentFailure:   core.OverCurrentFailure,
	session.OverVoltage:          core.OverVoltage,
	session.PowerMeterFailure:    core.PowerMeterFailure,
	session.PowerSwitchFailure:   core.PowerSwitchFailure,
	session.ReaderFailure:        core.ReaderFailure,
	session.UnderVoltage:         core.UnderVoltage,
	session.WeakSignal:           core.WeakSignal,
}

var errorFromWire = func() map[core.ChargePointErrorCode]session.ErrorCode {
	m := make(map[core.ChargePointErrorCode]session.ErrorCode, len(errorToWire))
	for k, v := range errorToWire {
		m[v] = k
	}
	return m
}()

var statusToWire = map[session.StatusKind]core.ChargePointStatus{
	session.StatusAvailable:   core.ChargePointStatusAvailable,
	session.StatusPreparing:   core.ChargePointStatusPreparing,
	session.StatusCharging:    core.ChargePointStatusCharging,
	session.StatusReserved:    core.ChargePointStatusReserved,
	session.StatusUnavailable: core.ChargePointStatusUnavailable,
	session.StatusFinishing:   core.ChargePointStatusFinishing,
	session.StatusFaulted:     core.ChargePointStatusFaulted,
}

// StatusToWire maps an internal status onto the wire status/error pair. The
// mapping is total: every non-faulted status carries NoError, a faulted one
// its own code.
func StatusToWire(st session.Status) (core.ChargePointStatus, core.ChargePointErrorCode) {
	wireStatus, ok := statusToWire[st.Kind]
	if !ok {
		// Unknown kinds degrade to Faulted/InternalError rather than lose data.
		return core.ChargePointStatusFaulted, core.InternalError
	}
	if st.Kind != session.StatusFaulted {
		return wireStatus, core.NoError
	}
	code, ok := errorToWire[st.ErrorCode]
	if !ok {
		code = core.OtherError
	}
	return wireStatus, code
}

// StatusFromWire maps a wire status/error pair back into the internal model.
// Wire statuses without an internal counterpart (SuspendedEV/EVSE) are
// reported as an error instead of being silently coerced.
func StatusFromWire(status core.ChargePointStatus, code core.ChargePointErrorCode) (session.Status, error) {
	for kind, wireStatus := range statusToWire {
		if wireStatus != status {
			continue
		}
		if kind != session.StatusFaulted {
			return session.Status{Kind: kind}, nil
		}
		internal, ok := errorFromWire[code]
		if !ok {
			return session.Status{}, fmt.Errorf("unknown wire error code %v", code)
		}
		return session.Faulted(internal), nil
	}
	return session.Status{}, fmt.Errorf("wire status %v has no internal equivalent", status)
}

// ErrorCodeFromWire translates a wire error code, falling back to OtherError
// for the codes the internal model does not track.
func ErrorCodeFromWire(code core.ChargePointErrorCode) session.ErrorCode {
	if internal, ok := errorFromWire[code]; ok {
		return internal
	}
	return session.OtherError
}

// PowerLimitFromProfile extracts the transient power limit a
// SetChargingProfile request carries: the target transaction, the first
// schedule period's current cap (converted to hundredths of amp) and the
// schedule duration.
func PowerLimitFromProfile(profile *types.ChargingProfile) (session.PowerLimit, bool) {
	if profile == nil || profile.ChargingSchedule == nil || len(profile.ChargingSchedule.ChargingSchedulePeriod) == 0 {
		return session.PowerLimit{}, false
	}
	limit := session.PowerLimit{
		TransactionID: profile.TransactionId,
		MaxCurrent:    int(profile.ChargingSchedule.ChargingSchedulePeriod[0].Limit * 100),
	}
	if profile.ChargingSchedule.Duration != nil {
		limit.Duration = *profile.ChargingSchedule.Duration
	}
	return limit, true
}

// centi converts a hundredth-unit figure to its wire string.
func centi(value int) string {
	return strconv.Itoa(value / 100)
}

// NewMeterReport builds the MeterValues request for one energy snapshot:
// four sampled values tagged with measurand and unit. It fails when no
// transaction is active, since meter reports are only meaningful inside one.
func NewMeterReport(connectorID, tid int, m energy.Measurement) (*core.MeterValuesRequest, error) {
	if tid == 0 {
		return nil, ErrNoActiveTransaction
	}

	sampled := []types.SampledValue{
		{Value: centi(m.Tension), Unit: types.UnitOfMeasureV, Measurand: types.MeasurandVoltage},
		{Value: centi(m.Current), Unit: types.UnitOfMeasureA, Measurand: types.MeasurandCurrentImport},
		{Value: centi(m.Power), Unit: types.UnitOfMeasureKW, Measurand: types.MeasurandPowerActiveImport},
		{Value: centi(m.Session), Unit: types.UnitOfMeasureKWh, Measurand: types.MeasurandEnergyActiveImportRegister},
	}

	timestamp := m.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now()
	}

	request := core.NewMeterValuesRequest(connectorID, []types.MeterValue{{
		Timestamp:    types.NewDateTime(timestamp),
		SampledValue: sampled,
	}})
	request.TransactionId = &tid
	return request, nil
}
