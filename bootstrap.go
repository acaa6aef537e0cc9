package main

import (
	"time"

	ocpp16 "github.com/lorenzodonini/ocpp-go/ocpp1.6"
	"github.com/lorenzodonini/ocpp-go/ocpp1.6/core"

	"charge_point/config"
	"charge_point/session"
	"charge_point/wire"
)

// ocppBootstrap runs the synchronous startup handshake: BootNotification
// with the station identity, then the initial StatusNotification reporting
// Preparing. It returns the heartbeat interval the backend advertised, or
// the configured default when the backend stays silent.
func ocppBootstrap(chargePoint ocpp16.ChargePoint, cfg *config.Config, manager *session.Manager) (time.Duration, error) {
	interval := time.Duration(cfg.Backend.HeartbeatInterval) * time.Second

	boot, err := chargePoint.BootNotification(cfg.Station.Model, cfg.Station.Vendor,
		func(request *core.BootNotificationRequest) {
			request.FirmwareVersion = cfg.Station.Firmware
		})
	if err != nil {
		return interval, err
	}
	if boot.Status != core.RegistrationStatusAccepted {
		log.Warnf("backend registration status: %v", boot.Status)
	}
	if boot.Interval > 0 {
		interval = time.Duration(boot.Interval) * time.Second
	}

	manager.SetStatus(session.Status{Kind: session.StatusPreparing})
	wireStatus, wireError := wire.StatusToWire(manager.Status())
	if _, err := chargePoint.StatusNotification(manager.ConnectorID(), wireError, wireStatus); err != nil {
		return interval, err
	}
	return interval, nil
}
