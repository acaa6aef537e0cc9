package main

import (
	"sync"
	"testing"
	"time"

	"github.com/lorenzodonini/ocpp-go/ocpp"
	"github.com/lorenzodonini/ocpp-go/ocpp1.6/core"
	"github.com/lorenzodonini/ocpp-go/ocpp1.6/reservation"
	"github.com/lorenzodonini/ocpp-go/ocpp1.6/smartcharging"
	types16 "github.com/lorenzodonini/ocpp-go/ocpp1.6/types"

	"charge_point/actions"
	"charge_point/session"
)

type stubDispatcher struct {
	mu   sync.Mutex
	sent []ocpp.Request
}

func (s *stubDispatcher) SendRequestAsync(request ocpp.Request, callback func(confirmation ocpp.Response, protoError error)) error {
	s.mu.Lock()
	s.sent = append(s.sent, request)
	s.mu.Unlock()
	return nil
}

func (s *stubDispatcher) requests() []ocpp.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ocpp.Request(nil), s.sent...)
}

type stubRelay struct{}

func (stubRelay) EnableRelay()  {}
func (stubRelay) DisableRelay() {}

func newTestHandler() (*ChargePointHandler, *stubDispatcher, *session.Manager) {
	dispatcher := &stubDispatcher{}
	manager := session.NewManager(1, nil)
	acts := actions.InitializeChargerActions(dispatcher, manager, stubRelay{})
	return NewChargePointHandler(manager, &acts), dispatcher, manager
}

func TestOnChangeAvailability(t *testing.T) {
	handler, _, manager := newTestHandler()

	conf, err := handler.OnChangeAvailability(&core.ChangeAvailabilityRequest{
		ConnectorId: 1, Type: core.AvailabilityTypeInoperative})
	if err != nil || conf.Status != core.AvailabilityStatusAccepted {
		t.Fatalf("inoperative without session: %+v, %v", conf, err)
	}
	if got := manager.Status().Kind; got != session.StatusUnavailable {
		t.Fatalf("status = %v", got)
	}

	conf, _ = handler.OnChangeAvailability(&core.ChangeAvailabilityRequest{
		ConnectorId: 1, Type: core.AvailabilityTypeOperative})
	if conf.Status != core.AvailabilityStatusAccepted {
		t.Fatalf("operative: %+v", conf)
	}
	if got := manager.Status().Kind; got != session.StatusAvailable {
		t.Fatalf("status = %v", got)
	}

	// a running transaction defers the change instead of cutting it off
	manager.Login(42)
	conf, _ = handler.OnChangeAvailability(&core.ChangeAvailabilityRequest{
		ConnectorId: 1, Type: core.AvailabilityTypeInoperative})
	if conf.Status != core.AvailabilityStatusScheduled {
		t.Fatalf("inoperative during session: %+v", conf)
	}
	if got := manager.Status().Kind; got != session.StatusAvailable {
		t.Fatalf("scheduled change touched the status: %v", got)
	}
}

func TestOnRemoteStartTransaction(t *testing.T) {
	handler, _, manager := newTestHandler()

	wrongConnector := 2
	conf, _ := handler.OnRemoteStartTransaction(&core.RemoteStartTransactionRequest{
		ConnectorId: &wrongConnector, IdTag: "tag-1"})
	if conf.Status != types16.RemoteStartStopStatusRejected {
		t.Fatalf("wrong connector: %v", conf.Status)
	}

	manager.Login(42)
	conf, _ = handler.OnRemoteStartTransaction(&core.RemoteStartTransactionRequest{IdTag: "tag-1"})
	if conf.Status != types16.RemoteStartStopStatusRejected {
		t.Fatalf("start during session: %v", conf.Status)
	}
}

func TestOnRemoteStopTransaction(t *testing.T) {
	handler, _, manager := newTestHandler()

	conf, _ := handler.OnRemoteStopTransaction(&core.RemoteStopTransactionRequest{TransactionId: 0})
	if conf.Status != types16.RemoteStartStopStatusRejected {
		t.Fatalf("stop without session: %v", conf.Status)
	}

	manager.Login(42)
	conf, _ = handler.OnRemoteStopTransaction(&core.RemoteStopTransactionRequest{TransactionId: 7})
	if conf.Status != types16.RemoteStartStopStatusRejected {
		t.Fatalf("stop for stale transaction: %v", conf.Status)
	}
}

func TestOnReset(t *testing.T) {
	handler, _, manager := newTestHandler()
	manager.Login(42)

	conf, _ := handler.OnReset(&core.ResetRequest{Type: core.ResetTypeHard})
	if conf.Status != core.ResetStatusRejected {
		t.Fatalf("hard reset: %v", conf.Status)
	}
	if got := manager.TransactionID(); got != 42 {
		t.Fatalf("hard reset touched the session: tid = %v", got)
	}

	conf, _ = handler.OnReset(&core.ResetRequest{Type: core.ResetTypeSoft})
	if conf.Status != core.ResetStatusAccepted {
		t.Fatalf("soft reset: %v", conf.Status)
	}
	if got := manager.TransactionID(); got != 0 {
		t.Fatalf("soft reset kept the session: tid = %v", got)
	}
}

func TestOnReserveNow(t *testing.T) {
	handler, _, manager := newTestHandler()
	expiry := types16.NewDateTime(time.Now().Add(time.Hour))

	conf, _ := handler.OnReserveNow(&reservation.ReserveNowRequest{
		ConnectorId: 2, ExpiryDate: expiry, IdTag: "tag-a", ReservationId: 10})
	if conf.Status != reservation.ReservationStatusRejected {
		t.Fatalf("wrong connector: %v", conf.Status)
	}

	conf, _ = handler.OnReserveNow(&reservation.ReserveNowRequest{
		ConnectorId: 1, ExpiryDate: expiry, IdTag: "tag-a", ReservationId: 10})
	if conf.Status != reservation.ReservationStatusAccepted {
		t.Fatalf("first reservation: %v", conf.Status)
	}
	if stored, ok := manager.Reservation(); !ok || stored.Tag != "tag-a" || stored.Status != session.ReservationAccepted {
		t.Fatalf("stored reservation = %+v", stored)
	}

	conf, _ = handler.OnReserveNow(&reservation.ReserveNowRequest{
		ConnectorId: 1, ExpiryDate: expiry, IdTag: "tag-b", ReservationId: 11})
	if conf.Status != reservation.ReservationStatusOccupied {
		t.Fatalf("second reservation: %v", conf.Status)
	}

	manager.SetStatus(session.Faulted(session.GroundFailure))
	conf, _ = handler.OnReserveNow(&reservation.ReserveNowRequest{
		ConnectorId: 1, ExpiryDate: expiry, IdTag: "tag-c", ReservationId: 12})
	if conf.Status != reservation.ReservationStatusFaulted {
		t.Fatalf("faulted connector: %v", conf.Status)
	}
}

func TestOnReserveNowLapsedExpiry(t *testing.T) {
	handler, _, manager := newTestHandler()

	conf, _ := handler.OnReserveNow(&reservation.ReserveNowRequest{
		ConnectorId:   1,
		ExpiryDate:    types16.NewDateTime(time.Now().Add(-time.Minute)),
		IdTag:         "tag-a",
		ReservationId: 10,
	})
	if conf.Status != reservation.ReservationStatusRejected {
		t.Fatalf("lapsed expiry: %v", conf.Status)
	}
	if _, ok := manager.Reservation(); ok {
		t.Fatal("lapsed reservation was stored")
	}
}

func TestOnCancelReservation(t *testing.T) {
	handler, _, manager := newTestHandler()
	manager.ReserveNow(session.Reservation{ID: 10, Tag: "tag-a", Status: session.ReservationAccepted})

	conf, _ := handler.OnCancelReservation(&reservation.CancelReservationRequest{ReservationId: 99})
	if conf.Status != reservation.CancelReservationStatusRejected {
		t.Fatalf("unknown reservation: %v", conf.Status)
	}

	conf, _ = handler.OnCancelReservation(&reservation.CancelReservationRequest{ReservationId: 10})
	if conf.Status != reservation.CancelReservationStatusAccepted {
		t.Fatalf("matching reservation: %v", conf.Status)
	}
}

func TestOnSetChargingProfile(t *testing.T) {
	handler, dispatcher, manager := newTestHandler()
	manager.Login(42)

	profile := func(tid int) *types16.ChargingProfile {
		return &types16.ChargingProfile{
			TransactionId: tid,
			ChargingSchedule: &types16.ChargingSchedule{
				ChargingSchedulePeriod: []types16.ChargingSchedulePeriod{{Limit: 32}},
			},
		}
	}

	conf, _ := handler.OnSetChargingProfile(&smartcharging.SetChargingProfileRequest{
		ConnectorId: 1, ChargingProfile: profile(42)})
	if conf.Status != smartcharging.ChargingProfileStatusAccepted {
		t.Fatalf("matching transaction: %v", conf.Status)
	}

	conf, _ = handler.OnSetChargingProfile(&smartcharging.SetChargingProfileRequest{
		ConnectorId: 1, ChargingProfile: profile(7)})
	if conf.Status != smartcharging.ChargingProfileStatusRejected {
		t.Fatalf("stale transaction: %v", conf.Status)
	}
	sent := dispatcher.requests()
	if len(sent) != 1 {
		t.Fatalf("%v compensating requests sent", len(sent))
	}
	if stop, ok := sent[0].(*core.StopTransactionRequest); !ok || stop.TransactionId != 7 {
		t.Fatalf("compensating request = %+v", sent[0])
	}

	conf, _ = handler.OnSetChargingProfile(&smartcharging.SetChargingProfileRequest{
		ConnectorId: 1, ChargingProfile: nil})
	if conf.Status != smartcharging.ChargingProfileStatusNotSupported {
		t.Fatalf("empty profile: %v", conf.Status)
	}

	// tid 0 is rejected without a compensating stop: there is no backend
	// transaction to resynchronize
	conf, _ = handler.OnSetChargingProfile(&smartcharging.SetChargingProfileRequest{
		ConnectorId: 1, ChargingProfile: profile(0)})
	if conf.Status != smartcharging.ChargingProfileStatusRejected {
		t.Fatalf("limit without transaction: %v", conf.Status)
	}
	if got := len(dispatcher.requests()); got != 1 {
		t.Fatalf("%v compensating requests sent, want the earlier one only", got)
	}
}

func TestOnUnsupportedCallbacks(t *testing.T) {
	handler, _, _ := newTestHandler()

	if conf, _ := handler.OnChangeConfiguration(&core.ChangeConfigurationRequest{Key: "MeterValueSampleInterval"}); conf.Status != core.ConfigurationStatusNotSupported {
		t.Fatalf("change configuration: %v", conf.Status)
	}
	if conf, _ := handler.OnUnlockConnector(&core.UnlockConnectorRequest{ConnectorId: 1}); conf.Status != core.UnlockStatusNotSupported {
		t.Fatalf("unlock connector: %v", conf.Status)
	}
	if conf, _ := handler.OnClearChargingProfile(&smartcharging.ClearChargingProfileRequest{}); conf.Status != smartcharging.ClearChargingProfileStatusUnknown {
		t.Fatalf("clear charging profile: %v", conf.Status)
	}
}
