package wire

import (
	"fmt"

	"github.com/lorenzodonini/ocpp-go/ocpp"
	"github.com/lorenzodonini/ocpp-go/ocpp1.6/core"
)

// ProtocolError reports a reply that arrived as the wrong variant for its
// message kind. ocpp-go's Request and Response interfaces are structurally
// identical (both only expose the feature name), so a request echoed back
// where a confirmation is expected satisfies the interface and can only be
// caught by checking the concrete type. The error is fatal to that single
// request and leaves session state untouched.
type ProtocolError struct {
	Feature string
	Got     string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%v: expected confirmation, got %v", e.Feature, e.Got)
}

func wrongVariant(feature string, got ocpp.Response) *ProtocolError {
	name := "nil"
	if got != nil {
		name = fmt.Sprintf("%T", got)
	}
	return &ProtocolError{Feature: feature, Got: name}
}

// AsAuthorizeConfirmation narrows an asynchronous reply to the Authorize
// confirmation, rejecting any other variant.
func AsAuthorizeConfirmation(res ocpp.Response) (*core.AuthorizeConfirmation, error) {
	confirmation, ok := res.(*core.AuthorizeConfirmation)
	if !ok {
		return nil, wrongVariant(core.AuthorizeFeatureName, res)
	}
	return confirmation, nil
}

// AsStartTransactionConfirmation narrows a reply to the StartTransaction
// confirmation.
func AsStartTransactionConfirmation(res ocpp.Response) (*core.StartTransactionConfirmation, error) {
	confirmation, ok := res.(*core.StartTransactionConfirmation)
	if !ok {
		return nil, wrongVariant(core.StartTransactionFeatureName, res)
	}
	return confirmation, nil
}

// AsStopTransactionConfirmation narrows a reply to the StopTransaction
// confirmation.
func AsStopTransactionConfirmation(res ocpp.Response) (*core.StopTransactionConfirmation, error) {
	confirmation, ok := res.(*core.StopTransactionConfirmation)
	if !ok {
		return nil, wrongVariant(core.StopTransactionFeatureName, res)
	}
	return confirmation, nil
}

// AsStatusNotificationConfirmation narrows a reply to the StatusNotification
// confirmation.
func AsStatusNotificationConfirmation(res ocpp.Response) (*core.StatusNotificationConfirmation, error) {
	confirmation, ok := res.(*core.StatusNotificationConfirmation)
	if !ok {
		return nil, wrongVariant(core.StatusNotificationFeatureName, res)
	}
	return confirmation, nil
}

// AsMeterValuesConfirmation narrows a reply to the MeterValues confirmation.
func AsMeterValuesConfirmation(res ocpp.Response) (*core.MeterValuesConfirmation, error) {
	confirmation, ok := res.(*core.MeterValuesConfirmation)
	if !ok {
		return nil, wrongVariant(core.MeterValuesFeatureName, res)
	}
	return confirmation, nil
}

// AsHeartbeatConfirmation narrows a reply to the Heartbeat confirmation. A
// Heartbeat request and an empty confirmation are indistinguishable on the
// wire, which is exactly why the concrete type is checked here.
func AsHeartbeatConfirmation(res ocpp.Response) (*core.HeartbeatConfirmation, error) {
	confirmation, ok := res.(*core.HeartbeatConfirmation)
	if !ok {
		return nil, wrongVariant(core.HeartbeatFeatureName, res)
	}
	return confirmation, nil
}
