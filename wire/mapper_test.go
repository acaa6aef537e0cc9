package wire

import (
	"errors"
	"testing"
	"time"

	"github.com/lorenzodonini/ocpp-go/ocpp1.6/core"
	"github.com/lorenzodonini/ocpp-go/ocpp1.6/types"

	"charge_point/energy"
	"charge_point/session"
)

func TestStatusToWire(t *testing.T) {
	cases := []struct {
		name     string
		status   session.Status
		wantSt   core.ChargePointStatus
		wantCode core.ChargePointErrorCode
	}{
		{"available", session.Status{Kind: session.StatusAvailable}, core.ChargePointStatusAvailable, core.NoError},
		{"charging", session.Status{Kind: session.StatusCharging}, core.ChargePointStatusCharging, core.NoError},
		{"reserved", session.Status{Kind: session.StatusReserved}, core.ChargePointStatusReserved, core.NoError},
		{"faulted carries its code", session.Faulted(session.OverVoltage), core.ChargePointStatusFaulted, core.OverVoltage},
		{"faulted with unknown code", session.Faulted(session.ErrorCode("Bogus")), core.ChargePointStatusFaulted, core.OtherError},
		{"unknown kind degrades to faulted", session.Status{Kind: session.StatusKind("Bogus")}, core.ChargePointStatusFaulted, core.InternalError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gotSt, gotCode := StatusToWire(tc.status)
			if gotSt != tc.wantSt || gotCode != tc.wantCode {
				t.Fatalf("got %v/%v, want %v/%v", gotSt, gotCode, tc.wantSt, tc.wantCode)
			}
		})
	}
}

func TestStatusRoundTrip(t *testing.T) {
	statuses := []session.Status{
		{Kind: session.StatusAvailable},
		{Kind: session.StatusPreparing},
		{Kind: session.StatusCharging},
		{Kind: session.StatusReserved},
		{Kind: session.StatusUnavailable},
		{Kind: session.StatusFinishing},
		session.Faulted(session.GroundFailure),
	}
	for _, status := range statuses {
		wireStatus, wireCode := StatusToWire(status)
		back, err := StatusFromWire(wireStatus, wireCode)
		if err != nil {
			t.Fatalf("%v: %v", status.Kind, err)
		}
		if back != status {
			t.Fatalf("round trip of %+v returned %+v", status, back)
		}
	}
}

func TestStatusFromWireUnmapped(t *testing.T) {
	if _, err := StatusFromWire(core.ChargePointStatusSuspendedEV, core.NoError); err == nil {
		t.Fatal("SuspendedEV has no internal counterpart, expected an error")
	}
	if _, err := StatusFromWire(core.ChargePointStatusFaulted, core.ChargePointErrorCode("Bogus")); err == nil {
		t.Fatal("unknown fault code must not be coerced silently")
	}
}

func TestErrorCodeFromWire(t *testing.T) {
	if got := ErrorCodeFromWire(core.UnderVoltage); got != session.UnderVoltage {
		t.Fatalf("UnderVoltage mapped to %v", got)
	}
	if got := ErrorCodeFromWire(core.EVCommunicationError); got != session.OtherError {
		t.Fatalf("untracked wire code mapped to %v, want OtherError", got)
	}
}

func TestPowerLimitFromProfile(t *testing.T) {
	duration := 3600
	profile := &types.ChargingProfile{
		TransactionId: 42,
		ChargingSchedule: &types.ChargingSchedule{
			Duration:               &duration,
			ChargingSchedulePeriod: []types.ChargingSchedulePeriod{{Limit: 32}},
		},
	}
	limit, ok := PowerLimitFromProfile(profile)
	if !ok {
		t.Fatal("well-formed profile rejected")
	}
	want := session.PowerLimit{TransactionID: 42, MaxCurrent: 3200, Duration: 3600}
	if limit != want {
		t.Fatalf("limit = %+v, want %+v", limit, want)
	}

	if _, ok := PowerLimitFromProfile(nil); ok {
		t.Fatal("nil profile accepted")
	}
	if _, ok := PowerLimitFromProfile(&types.ChargingProfile{ChargingSchedule: &types.ChargingSchedule{}}); ok {
		t.Fatal("profile without schedule periods accepted")
	}
}

func TestNewMeterReport(t *testing.T) {
	tid := 99
	measurement := energy.Measurement{
		Tension:   24000,
		Current:   1500,
		Power:     2200,
		Session:   102400,
		Timestamp: time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC),
	}

	request, err := NewMeterReport(1, tid, measurement)
	if err != nil {
		t.Fatalf("NewMeterReport: %v", err)
	}
	if request.ConnectorId != 1 {
		t.Fatalf("connector id = %v", request.ConnectorId)
	}
	if request.TransactionId == nil || *request.TransactionId != 99 {
		t.Fatalf("transaction id = %v", request.TransactionId)
	}
	if len(request.MeterValue) != 1 {
		t.Fatalf("meter value count = %v", len(request.MeterValue))
	}

	want := []struct {
		value     string
		measurand types.Measurand
		unit      types.UnitOfMeasure
	}{
		{"240", types.MeasurandVoltage, types.UnitOfMeasureV},
		{"15", types.MeasurandCurrentImport, types.UnitOfMeasureA},
		{"22", types.MeasurandPowerActiveImport, types.UnitOfMeasureKW},
		{"1024", types.MeasurandEnergyActiveImportRegister, types.UnitOfMeasureKWh},
	}
	sampled := request.MeterValue[0].SampledValue
	if len(sampled) != len(want) {
		t.Fatalf("sampled value count = %v, want %v", len(sampled), len(want))
	}
	for i, w := range want {
		got := sampled[i]
		if got.Value != w.value || got.Measurand != w.measurand || got.Unit != w.unit {
			t.Fatalf("sampled[%v] = %+v, want %+v", i, got, w)
		}
	}
}

func TestNewMeterReportRequiresTransaction(t *testing.T) {
	_, err := NewMeterReport(1, 0, energy.Measurement{Tension: 23000})
	if !errors.Is(err, ErrNoActiveTransaction) {
		t.Fatalf("got %v, want ErrNoActiveTransaction", err)
	}
}

func TestConfirmationNarrowing(t *testing.T) {
	if _, err := AsAuthorizeConfirmation(core.NewAuthorizationConfirmation(types.NewIdTagInfo(types.AuthorizationStatusAccepted))); err != nil {
		t.Fatalf("matching variant rejected: %v", err)
	}

	// a request satisfies the Response interface too and must be caught
	_, err := AsHeartbeatConfirmation(core.NewHeartbeatRequest())
	var protoErr *ProtocolError
	if !errors.As(err, &protoErr) {
		t.Fatalf("request echoed as response: got %v, want ProtocolError", err)
	}

	if _, err := AsStartTransactionConfirmation(nil); err == nil {
		t.Fatal("nil reply accepted")
	}
	if _, err := AsStopTransactionConfirmation(core.NewStartTransactionConfirmation(types.NewIdTagInfo(types.AuthorizationStatusAccepted), 1)); err == nil {
		t.Fatal("cross-feature confirmation accepted")
	}
	if _, err := AsStatusNotificationConfirmation(core.NewStatusNotificationConfirmation()); err != nil {
		t.Fatalf("status notification confirmation rejected: %v", err)
	}
	if _, err := AsMeterValuesConfirmation(core.NewMeterValuesConfirmation()); err != nil {
		t.Fatalf("meter values confirmation rejected: %v", err)
	}
}
