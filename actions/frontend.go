// Package actions implements the frontend verbs of the charge point: each
// verb validates its payload, runs the manager's precondition checks and, when
// the backend is involved, issues the protocol request asynchronously. The
// response channel is answered exactly once per call.
package actions

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/lorenzodonini/ocpp-go/ocpp"
	"github.com/lorenzodonini/ocpp-go/ocpp1.6/core"
	"github.com/lorenzodonini/ocpp-go/ocpp1.6/types"
	"github.com/sirupsen/logrus"

	"charge_point/common"
	"charge_point/energy"
	"charge_point/session"
	"charge_point/wire"
)

func logDefault(feature string) *logrus.Entry {
	return logrus.WithFields(logrus.Fields{"message": feature})
}

// Dispatcher is the slice of the ocpp-go charge-point client the actions
// need: asynchronous request delivery with a per-call callback. No ordering
// is assumed between two outstanding requests.
type Dispatcher interface {
	SendRequestAsync(request ocpp.Request, callback func(confirmation ocpp.Response, protoError error)) error
}

// Relay gates the manager's event stream towards bus subscribers.
type Relay interface {
	EnableRelay()
	DisableRelay()
}

type ChargerActions struct {
	client  Dispatcher
	manager *session.Manager
	relay   Relay
}

func InitializeChargerActions(client Dispatcher, manager *session.Manager, relay Relay) ChargerActions {
	return ChargerActions{
		client:  client,
		manager: manager,
		relay:   relay,
	}
}

func transportError(err error) *common.Error {
	return &common.Error{
		Code:    "command.message.not.send",
		Message: fmt.Sprintf("could not reach the backend: %v", err),
	}
}

// Authorize checks an id tag against the backend and records the outcome on
// acceptance. Any other authorization status fails the call.
func (this *ChargerActions) Authorize(payload []byte, responseChannel chan common.Response) {
	var response common.Response

	var request struct {
		IdTag string `json:"idTag" validate:"required"`
	}
	json.Unmarshal(payload, &request)
	if err := validator.New().Struct(&request); err != nil {
		response.Err = &common.Error{
			Code:    "command.authorize.payload.not.valid",
			Message: "idTag is required",
		}
		responseChannel <- response
		return
	}

	cb := func(confirmation ocpp.Response, protoError error) {
		if protoError != nil {
			logDefault(core.AuthorizeFeatureName).Errorf("error on request: %v", protoError)
			response.Err = transportError(protoError)
			responseChannel <- response
			return
		}
		conf, err := wire.AsAuthorizeConfirmation(confirmation)
		if err != nil {
			response.Err = &common.Error{Code: "protocol.invalid.response", Message: err.Error()}
			responseChannel <- response
			return
		}
		if conf.IdTagInfo.Status != types.AuthorizationStatusAccepted {
			response.Err = &common.Error{
				Code:    "command.authorize.refused",
				Message: fmt.Sprintf("authorization refused: %v", conf.IdTagInfo.Status),
			}
			responseChannel <- response
			return
		}
		this.manager.Authorized(true)
		response.Payload = map[string]interface{}{"status": conf.IdTagInfo.Status}
		responseChannel <- response
	}

	if e := this.client.SendRequestAsync(core.NewAuthorizationRequest(request.IdTag), cb); e != nil {
		response.Err = transportError(e)
		responseChannel <- response
	}
}

// TransactionStart claims the transaction slot, then asks the backend to
// start a transaction for the tag. The claim is rolled back on any failure,
// committed with the backend-assigned id on acceptance.
func (this *ChargerActions) TransactionStart(payload []byte, responseChannel chan common.Response) {
	var response common.Response

	var request struct {
		IdTag string `json:"idTag" validate:"required"`
	}
	json.Unmarshal(payload, &request)
	if err := validator.New().Struct(&request); err != nil {
		response.Err = &common.Error{
			Code:    "command.transaction.start.payload.not.valid",
			Message: "idTag is required",
		}
		responseChannel <- response
		return
	}

	if err := this.manager.BeginTransaction(); err != nil {
		response.Err = &common.Error{
			Code:    "session.already.active",
			Message: err.Error(),
		}
		responseChannel <- response
		return
	}

	cb := func(confirmation ocpp.Response, protoError error) {
		if protoError != nil {
			logDefault(core.StartTransactionFeatureName).Errorf("error on request: %v", protoError)
			this.manager.AbortTransaction()
			response.Err = transportError(protoError)
			responseChannel <- response
			return
		}
		conf, err := wire.AsStartTransactionConfirmation(confirmation)
		if err != nil {
			this.manager.AbortTransaction()
			response.Err = &common.Error{Code: "protocol.invalid.response", Message: err.Error()}
			responseChannel <- response
			return
		}
		if conf.IdTagInfo.Status != types.AuthorizationStatusAccepted {
			this.manager.AbortTransaction()
			response.Err = &common.Error{
				Code:    "command.transaction.start.refused",
				Message: fmt.Sprintf("start refused: %v", conf.IdTagInfo.Status),
			}
			responseChannel <- response
			return
		}
		this.manager.Login(conf.TransactionId)
		response.Payload = map[string]interface{}{"transactionId": conf.TransactionId}
		responseChannel <- response
	}

	query := core.NewStartTransactionRequest(
		this.manager.ConnectorID(), request.IdTag, 0, types.NewDateTime(time.Now()))
	if e := this.client.SendRequestAsync(query, cb); e != nil {
		this.manager.AbortTransaction()
		response.Err = transportError(e)
		responseChannel <- response
	}
}

// TransactionStop closes the running transaction with the given meter
// reading.
func (this *ChargerActions) TransactionStop(payload []byte, responseChannel chan common.Response) {
	var response common.Response

	var request struct {
		MeterStop int `json:"meterStop"`
	}
	json.Unmarshal(payload, &request)

	if err := this.manager.CheckActiveSession(true); err != nil {
		response.Err = &common.Error{
			Code:    "session.not.active",
			Message: err.Error(),
		}
		responseChannel <- response
		return
	}
	tid := this.manager.TransactionID()

	cb := func(confirmation ocpp.Response, protoError error) {
		if protoError != nil {
			logDefault(core.StopTransactionFeatureName).Errorf("error on request: %v", protoError)
			response.Err = transportError(protoError)
			responseChannel <- response
			return
		}
		if _, err := wire.AsStopTransactionConfirmation(confirmation); err != nil {
			response.Err = &common.Error{Code: "protocol.invalid.response", Message: err.Error()}
			responseChannel <- response
			return
		}
		this.manager.Logout()
		response.Payload = map[string]interface{}{"transactionId": tid}
		responseChannel <- response
	}

	query := core.NewStopTransactionRequest(request.MeterStop, types.NewDateTime(time.Now()), tid)
	if e := this.client.SendRequestAsync(query, cb); e != nil {
		response.Err = transportError(e)
		responseChannel <- response
	}
}

// StatusNotification records the charger status locally and forwards the
// mapped wire status to the backend.
func (this *ChargerActions) StatusNotification(payload []byte, responseChannel chan common.Response) {
	var response common.Response

	var status session.Status
	if err := json.Unmarshal(payload, &status); err != nil || status.Kind == "" {
		response.Err = &common.Error{
			Code:    "command.status.notification.payload.not.valid",
			Message: "status kind is required",
		}
		responseChannel <- response
		return
	}

	this.manager.SetStatus(status)
	wireStatus, wireError := wire.StatusToWire(status)

	cb := func(confirmation ocpp.Response, protoError error) {
		if protoError != nil {
			logDefault(core.StatusNotificationFeatureName).Errorf("error on request: %v", protoError)
			response.Err = transportError(protoError)
			responseChannel <- response
			return
		}
		if _, err := wire.AsStatusNotificationConfirmation(confirmation); err != nil {
			response.Err = &common.Error{Code: "protocol.invalid.response", Message: err.Error()}
			responseChannel <- response
			return
		}
		response.Payload = map[string]interface{}{"status": wireStatus, "errorCode": wireError}
		responseChannel <- response
	}

	query := core.NewStatusNotificationRequest(this.manager.ConnectorID(), wireError, wireStatus)
	if e := this.client.SendRequestAsync(query, cb); e != nil {
		response.Err = transportError(e)
		responseChannel <- response
	}
}

// ReserveNow stores a reservation on the connector. Occupied is an
// idempotent rejection, not an error.
func (this *ChargerActions) ReserveNow(payload []byte, responseChannel chan common.Response) {
	var response common.Response

	var request session.Reservation
	json.Unmarshal(payload, &request)
	if request.ID == 0 || request.Tag == "" {
		response.Err = &common.Error{
			Code:    "command.reserve.now.payload.not.valid",
			Message: "reservation id and tagid are required",
		}
		responseChannel <- response
		return
	}
	if request.Status == "" {
		request.Status = session.ReservationPending
	}

	outcome := this.manager.ReserveNow(request)
	response.Payload = map[string]interface{}{"status": outcome}
	responseChannel <- response
}

// ReserveCancel drops the reservation matching id.
func (this *ChargerActions) ReserveCancel(payload []byte, responseChannel chan common.Response) {
	var response common.Response

	var request struct {
		ID int `json:"id" validate:"required"`
	}
	json.Unmarshal(payload, &request)
	if err := validator.New().Struct(&request); err != nil {
		response.Err = &common.Error{
			Code:    "command.reserve.cancel.payload.not.valid",
			Message: "reservation id is required",
		}
		responseChannel <- response
		return
	}

	outcome := this.manager.ReserveCancel(request.ID)
	response.Payload = map[string]interface{}{"status": outcome}
	responseChannel <- response
}

// SetChargingProfile applies a power limit to the live transaction. A stale
// transaction id is answered Rejected and compensated by force-stopping the
// backend's transaction.
func (this *ChargerActions) SetChargingProfile(payload []byte, responseChannel chan common.Response) {
	var response common.Response

	var limit session.PowerLimit
	if err := json.Unmarshal(payload, &limit); err != nil {
		response.Err = &common.Error{
			Code:    "command.set.charging.profile.payload.not.valid",
			Message: "power limit is not valid json",
		}
		responseChannel <- response
		return
	}

	outcome := this.manager.SetLimit(limit)
	if outcome == session.LimitRejected {
		this.ForceStopTransaction(limit.TransactionID)
	}
	response.Payload = map[string]interface{}{"status": outcome}
	responseChannel <- response
}

// ForceStopTransaction resynchronizes the backend after it referenced a
// transaction this charge point is not running: a one-shot compensating
// StopTransaction for the stale id. Its own failure is logged, never
// escalated. Tid 0 names no backend transaction, so there is nothing to
// compensate.
func (this *ChargerActions) ForceStopTransaction(tid int) {
	if tid == 0 {
		return
	}
	cb := func(confirmation ocpp.Response, protoError error) {
		if protoError != nil {
			logDefault(core.StopTransactionFeatureName).Errorf("stale transaction stop failed: %v", protoError)
			return
		}
		if _, err := wire.AsStopTransactionConfirmation(confirmation); err != nil {
			logDefault(core.StopTransactionFeatureName).Errorf("stale transaction stop: %v", err)
		}
	}

	query := core.NewStopTransactionRequest(0, types.NewDateTime(time.Now()), tid)
	if e := this.client.SendRequestAsync(query, cb); e != nil {
		logDefault(core.StopTransactionFeatureName).Errorf("stale transaction stop not sent: %v", e)
	}
}

// StartForTag runs the regular start flow for a backend-initiated remote
// start. The outcome only matters locally, so it is logged instead of
// answered.
func (this *ChargerActions) StartForTag(idTag string) {
	payload, _ := json.Marshal(map[string]string{"idTag": idTag})
	responseChannel := make(chan common.Response, 1)
	this.TransactionStart(payload, responseChannel)
	if response := <-responseChannel; response.Err != nil {
		logDefault(core.StartTransactionFeatureName).Errorf("remote start failed: %v", response.Err.Message)
	}
}

// StopAtMeter runs the regular stop flow for a backend-initiated remote stop.
func (this *ChargerActions) StopAtMeter(meterStop int) {
	payload, _ := json.Marshal(map[string]int{"meterStop": meterStop})
	responseChannel := make(chan common.Response, 1)
	this.TransactionStop(payload, responseChannel)
	if response := <-responseChannel; response.Err != nil {
		logDefault(core.StopTransactionFeatureName).Errorf("remote stop failed: %v", response.Err.Message)
	}
}

// Reset performs a soft reset: reset event plus forced transaction
// termination. Hard resets are rejected outright, without touching state.
func (this *ChargerActions) Reset(payload []byte, responseChannel chan common.Response) {
	var response common.Response

	var request struct {
		Type string `json:"type"`
	}
	json.Unmarshal(payload, &request)

	if request.Type == string(core.ResetTypeHard) {
		response.Err = &common.Error{
			Code:    "command.reset.hard.rejected",
			Message: "hard reset is not supported by this charge point",
		}
		responseChannel <- response
		return
	}

	this.manager.Reset()
	response.Payload = map[string]interface{}{"status": core.ResetStatusAccepted}
	responseChannel <- response
}

// Subscribe toggles the caller-visible event stream.
func (this *ChargerActions) Subscribe(payload []byte, responseChannel chan common.Response) {
	var response common.Response

	var request struct {
		Subscribe bool `json:"subscribe"`
	}
	json.Unmarshal(payload, &request)

	if request.Subscribe {
		this.relay.EnableRelay()
	} else {
		this.relay.DisableRelay()
	}
	response.Payload = map[string]interface{}{"subscribed": request.Subscribe}
	responseChannel <- response
}

// MeterReport consumes one measurement from the metering subsystem and
// forwards it to the backend while a transaction is running.
func (this *ChargerActions) MeterReport(payload []byte) {
	var measurement energy.Measurement
	if err := json.Unmarshal(payload, &measurement); err != nil {
		logDefault(core.MeterValuesFeatureName).Errorf("invalid energy report: %v", err)
		return
	}

	query, err := wire.NewMeterReport(this.manager.ConnectorID(), this.manager.TransactionID(), measurement)
	if err != nil {
		logDefault(core.MeterValuesFeatureName).Debugf("meter report skipped: %v", err)
		return
	}

	cb := func(confirmation ocpp.Response, protoError error) {
		if protoError != nil {
			logDefault(core.MeterValuesFeatureName).Errorf("error on request: %v", protoError)
			return
		}
		if _, err := wire.AsMeterValuesConfirmation(confirmation); err != nil {
			logDefault(core.MeterValuesFeatureName).Errorf("%v", err)
		}
	}

	if e := this.client.SendRequestAsync(query, cb); e != nil {
		logDefault(core.MeterValuesFeatureName).Errorf("couldn't send meter values: %v", e)
	}
}
