package main

import (
	"time"

	"github.com/lorenzodonini/ocpp-go/ocpp1.6/core"
	"github.com/lorenzodonini/ocpp-go/ocpp1.6/reservation"
	"github.com/lorenzodonini/ocpp-go/ocpp1.6/smartcharging"
	types16 "github.com/lorenzodonini/ocpp-go/ocpp1.6/types"
	"github.com/sirupsen/logrus"

	"charge_point/actions"
	"charge_point/session"
	"charge_point/wire"
)

// ChargePointHandler answers backend-initiated OCPP calls. Every callback
// validates the request against the session manager and replies with a
// status; state mutation goes through the manager only.
type ChargePointHandler struct {
	manager *session.Manager
	actions *actions.ChargerActions
}

func NewChargePointHandler(manager *session.Manager, acts *actions.ChargerActions) *ChargePointHandler {
	return &ChargePointHandler{manager: manager, actions: acts}
}

func logFeature(feature string) *logrus.Entry {
	return log.WithField("message", feature)
}

// ------------- Core profile callbacks -------------

func (handler *ChargePointHandler) OnChangeAvailability(request *core.ChangeAvailabilityRequest) (*core.ChangeAvailabilityConfirmation, error) {
	logFeature(core.ChangeAvailabilityFeatureName).Infof("change availability to %v", request.Type)
	if request.Type == core.AvailabilityTypeInoperative {
		if err := handler.manager.CheckActiveSession(false); err != nil {
			// finish the running transaction first
			return core.NewChangeAvailabilityConfirmation(core.AvailabilityStatusScheduled), nil
		}
		handler.manager.SetStatus(session.Status{Kind: session.StatusUnavailable})
		return core.NewChangeAvailabilityConfirmation(core.AvailabilityStatusAccepted), nil
	}
	handler.manager.SetStatus(session.Status{Kind: session.StatusAvailable})
	return core.NewChangeAvailabilityConfirmation(core.AvailabilityStatusAccepted), nil
}

func (handler *ChargePointHandler) OnChangeConfiguration(request *core.ChangeConfigurationRequest) (*core.ChangeConfigurationConfirmation, error) {
	logFeature(core.ChangeConfigurationFeatureName).Infof("rejecting change of %v", request.Key)
	return core.NewChangeConfigurationConfirmation(core.ConfigurationStatusNotSupported), nil
}

func (handler *ChargePointHandler) OnClearCache(request *core.ClearCacheRequest) (*core.ClearCacheConfirmation, error) {
	return core.NewClearCacheConfirmation(core.ClearCacheStatusAccepted), nil
}

func (handler *ChargePointHandler) OnDataTransfer(request *core.DataTransferRequest) (*core.DataTransferConfirmation, error) {
	logFeature(core.DataTransferFeatureName).Infof("data transfer from %v", request.VendorId)
	return core.NewDataTransferConfirmation(core.DataTransferStatusAccepted), nil
}

func (handler *ChargePointHandler) OnGetConfiguration(request *core.GetConfigurationRequest) (*core.GetConfigurationConfirmation, error) {
	return core.NewGetConfigurationConfirmation([]core.ConfigurationKey{}), nil
}

func (handler *ChargePointHandler) OnRemoteStartTransaction(request *core.RemoteStartTransactionRequest) (*core.RemoteStartTransactionConfirmation, error) {
	if request.ConnectorId != nil && *request.ConnectorId != handler.manager.ConnectorID() {
		return core.NewRemoteStartTransactionConfirmation(types16.RemoteStartStopStatusRejected), nil
	}
	if err := handler.manager.CheckActiveSession(false); err != nil {
		return core.NewRemoteStartTransactionConfirmation(types16.RemoteStartStopStatusRejected), nil
	}
	// run the regular start flow; the answer to the backend only acknowledges
	// that the request was taken on
	go handler.actions.StartForTag(request.IdTag)
	return core.NewRemoteStartTransactionConfirmation(types16.RemoteStartStopStatusAccepted), nil
}

func (handler *ChargePointHandler) OnRemoteStopTransaction(request *core.RemoteStopTransactionRequest) (*core.RemoteStopTransactionConfirmation, error) {
	if request.TransactionId != handler.manager.TransactionID() || request.TransactionId == 0 {
		logFeature(core.RemoteStopTransactionFeatureName).Warnf("stop for stale transaction %v", request.TransactionId)
		return core.NewRemoteStopTransactionConfirmation(types16.RemoteStartStopStatusRejected), nil
	}
	go handler.actions.StopAtMeter(0)
	return core.NewRemoteStopTransactionConfirmation(types16.RemoteStartStopStatusAccepted), nil
}

func (handler *ChargePointHandler) OnReset(request *core.ResetRequest) (*core.ResetConfirmation, error) {
	if request.Type == core.ResetTypeHard {
		logFeature(core.ResetFeatureName).Warn("hard reset rejected")
		return core.NewResetConfirmation(core.ResetStatusRejected), nil
	}
	handler.manager.Reset()
	return core.NewResetConfirmation(core.ResetStatusAccepted), nil
}

func (handler *ChargePointHandler) OnUnlockConnector(request *core.UnlockConnectorRequest) (*core.UnlockConnectorConfirmation, error) {
	return core.NewUnlockConnectorConfirmation(core.UnlockStatusNotSupported), nil
}

// ------------- Reservation profile callbacks -------------

func (handler *ChargePointHandler) OnReserveNow(request *reservation.ReserveNowRequest) (*reservation.ReserveNowConfirmation, error) {
	if request.ConnectorId != handler.manager.ConnectorID() {
		return reservation.NewReserveNowConfirmation(reservation.ReservationStatusRejected), nil
	}
	switch handler.manager.Status().Kind {
	case session.StatusFaulted:
		return reservation.NewReserveNowConfirmation(reservation.ReservationStatusFaulted), nil
	case session.StatusUnavailable:
		return reservation.NewReserveNowConfirmation(reservation.ReservationStatusUnavailable), nil
	}

	req := session.Reservation{
		ID:     request.ReservationId,
		Tag:    request.IdTag,
		Start:  time.Duration(time.Now().UnixNano()),
		Status: session.ReservationAccepted,
	}
	if request.ExpiryDate != nil {
		req.Stop = time.Duration(request.ExpiryDate.UnixNano())
	}

	switch handler.manager.ReserveNow(req) {
	case session.ReserveOccupied:
		return reservation.NewReserveNowConfirmation(reservation.ReservationStatusOccupied), nil
	case session.ReserveExpired:
		return reservation.NewReserveNowConfirmation(reservation.ReservationStatusRejected), nil
	}
	logFeature(reservation.ReserveNowFeatureName).Infof("connector reserved for %v until %v",
		request.IdTag, request.ExpiryDate)
	return reservation.NewReserveNowConfirmation(reservation.ReservationStatusAccepted), nil
}

func (handler *ChargePointHandler) OnCancelReservation(request *reservation.CancelReservationRequest) (*reservation.CancelReservationConfirmation, error) {
	if handler.manager.ReserveCancel(request.ReservationId) == session.CancelRejected {
		logFeature(reservation.CancelReservationFeatureName).Warnf("unknown reservation %v", request.ReservationId)
		return reservation.NewCancelReservationConfirmation(reservation.CancelReservationStatusRejected), nil
	}
	return reservation.NewCancelReservationConfirmation(reservation.CancelReservationStatusAccepted), nil
}

// ------------- Smart charging profile callbacks -------------

func (handler *ChargePointHandler) OnSetChargingProfile(request *smartcharging.SetChargingProfileRequest) (*smartcharging.SetChargingProfileConfirmation, error) {
	limit, ok := wire.PowerLimitFromProfile(request.ChargingProfile)
	if !ok {
		return smartcharging.NewSetChargingProfileConfirmation(smartcharging.ChargingProfileStatusNotSupported), nil
	}

	if handler.manager.SetLimit(limit) == session.LimitRejected {
		// resynchronize the backend: its transaction no longer exists here
		handler.actions.ForceStopTransaction(limit.TransactionID)
		return smartcharging.NewSetChargingProfileConfirmation(smartcharging.ChargingProfileStatusRejected), nil
	}
	logFeature(smartcharging.SetChargingProfileFeatureName).Infof("power limit %v cA for transaction %v",
		limit.MaxCurrent, limit.TransactionID)
	return smartcharging.NewSetChargingProfileConfirmation(smartcharging.ChargingProfileStatusAccepted), nil
}

func (handler *ChargePointHandler) OnClearChargingProfile(request *smartcharging.ClearChargingProfileRequest) (*smartcharging.ClearChargingProfileConfirmation, error) {
	return smartcharging.NewClearChargingProfileConfirmation(smartcharging.ClearChargingProfileStatusUnknown), nil
}

func (handler *ChargePointHandler) OnGetCompositeSchedule(request *smartcharging.GetCompositeScheduleRequest) (*smartcharging.GetCompositeScheduleConfirmation, error) {
	return smartcharging.NewGetCompositeScheduleConfirmation(smartcharging.GetCompositeScheduleStatusRejected), nil
}
