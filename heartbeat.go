package main

import (
	"time"

	"github.com/lorenzodonini/ocpp-go/ocpp"
	"github.com/lorenzodonini/ocpp-go/ocpp1.6/core"

	"charge_point/actions"
	"charge_point/session"
	"charge_point/wire"
)

// heartbeatLoop keeps the backend connection alive: on a fixed interval,
// while the charger sits Available, it re-issues Heartbeat and
// StatusNotification. The ping counter belongs to the loop instance.
type heartbeatLoop struct {
	client   actions.Dispatcher
	manager  *session.Manager
	interval time.Duration
	count    uint32
	done     chan struct{}
}

func newHeartbeatLoop(client actions.Dispatcher, manager *session.Manager, interval time.Duration) *heartbeatLoop {
	return &heartbeatLoop{
		client:   client,
		manager:  manager,
		interval: interval,
		done:     make(chan struct{}),
	}
}

func (h *heartbeatLoop) run() {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-h.done:
			return
		case <-ticker.C:
			h.tick()
		}
	}
}

func (h *heartbeatLoop) stop() {
	close(h.done)
}

func (h *heartbeatLoop) tick() {
	status := h.manager.Status()
	if status.Kind != session.StatusAvailable {
		return
	}
	h.count++
	count := h.count

	if err := h.client.SendRequestAsync(core.NewHeartbeatRequest(), func(confirmation ocpp.Response, protoError error) {
		if protoError != nil {
			logFeature(core.HeartbeatFeatureName).Errorf("error on request: %v", protoError)
			return
		}
		conf, err := wire.AsHeartbeatConfirmation(confirmation)
		if err != nil {
			logFeature(core.HeartbeatFeatureName).Errorf("%v", err)
			return
		}
		logFeature(core.HeartbeatFeatureName).Debugf("heartbeat %v at %v", count, conf.CurrentTime)
	}); err != nil {
		logFeature(core.HeartbeatFeatureName).Errorf("couldn't send heartbeat: %v", err)
	}

	wireStatus, wireError := wire.StatusToWire(status)
	if err := h.client.SendRequestAsync(
		core.NewStatusNotificationRequest(h.manager.ConnectorID(), wireError, wireStatus),
		func(confirmation ocpp.Response, protoError error) {
			if protoError != nil {
				logFeature(core.StatusNotificationFeatureName).Errorf("error on request: %v", protoError)
				return
			}
			if _, err := wire.AsStatusNotificationConfirmation(confirmation); err != nil {
				logFeature(core.StatusNotificationFeatureName).Errorf("%v", err)
			}
		}); err != nil {
		logFeature(core.StatusNotificationFeatureName).Errorf("couldn't send status: %v", err)
	}
}
