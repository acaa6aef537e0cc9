package main

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	ocpp16 "github.com/lorenzodonini/ocpp-go/ocpp1.6"
	"github.com/lorenzodonini/ocpp-go/ocppj"
	"github.com/lorenzodonini/ocpp-go/ws"

	"charge_point/actions"
	"charge_point/config"
	"charge_point/energy"
	"charge_point/notifier"
	natsnotifier "charge_point/notifier/nats"
	"charge_point/session"
)

const (
	AUTHORIZE            = "authorize"
	TRANSACTION_START    = "transaction.start"
	TRANSACTION_STOP     = "transaction.stop"
	STATUS_NOTIFICATION  = "status.notification"
	RESERVE_NOW          = "reserve.now"
	RESERVE_CANCEL       = "reserve.cancel"
	SET_CHARGING_PROFILE = "set.charging.profile"
	RESET                = "reset"
	SUBSCRIBE            = "subscribe"
)

var log *logrus.Logger

func setupChargePoint(cfg *config.Config) (ocpp16.ChargePoint, error) {
	if !cfg.Backend.TLS {
		return ocpp16.NewChargePoint(cfg.Station.ID, nil, nil), nil
	}

	var certPool *x509.CertPool
	if cfg.Backend.CACertificate == "" {
		systemPool, err := x509.SystemCertPool()
		if err != nil {
			return nil, err
		}
		log.Info("no CA certificate configured, using system CA pool")
		certPool = systemPool
	} else {
		certPool = x509.NewCertPool()
		data, err := os.ReadFile(cfg.Backend.CACertificate)
		if err != nil {
			return nil, err
		}
		if !certPool.AppendCertsFromPEM(data) {
			log.Fatalf("couldn't read CA certificate from %v", cfg.Backend.CACertificate)
		}
	}
	client := ws.NewTLSClient(&tls.Config{RootCAs: certPool})
	return ocpp16.NewChargePoint(cfg.Station.ID, nil, client), nil
}

// mockMeterLoop fabricates measurements the way the metering subsystem
// would, feeding them straight into the meter-report path.
func mockMeterLoop(meter *energy.Meter, acts *actions.ChargerActions, manager *session.Manager, done chan struct{}) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if manager.TransactionID() == 0 {
				meter.ResetSession()
				continue
			}
			meter.Charge(1600, 10*time.Second)
			payload, _ := json.Marshal(meter.Read())
			acts.MeterReport(payload)
		}
	}
}

func main() {
	cfg, err := config.GetConfig()
	if err != nil {
		log.Fatalf("configuration: %v", err)
	}
	if cfg.IsDebug != nil && *cfg.IsDebug {
		log.SetLevel(logrus.DebugLevel)
	}

	chargePoint, err := setupChargePoint(cfg)
	if err != nil {
		log.Fatalf("charge point setup: %v", err)
	}
	ocppj.SetLogger(log)

	events := notifier.NewEventPublisher()
	manager := session.NewManager(cfg.Station.ConnectorID, events)

	natsNotifier := natsnotifier.New(cfg.Bus.URL)
	natsNotifier.SetChannel(events.Channel())
	natsNotifier.SetTimeout(time.Duration(cfg.Bus.RequestTimeout) * time.Second)

	chargerActions := actions.InitializeChargerActions(chargePoint, manager, natsNotifier)
	handler := NewChargePointHandler(manager, &chargerActions)
	chargePoint.SetCoreHandler(handler)
	chargePoint.SetReservationHandler(handler)
	chargePoint.SetSmartChargingHandler(handler)

	natsNotifier.AddHandler(AUTHORIZE, chargerActions.Authorize)
	natsNotifier.AddHandler(TRANSACTION_START, chargerActions.TransactionStart)
	natsNotifier.AddHandler(TRANSACTION_STOP, chargerActions.TransactionStop)
	natsNotifier.AddHandler(STATUS_NOTIFICATION, chargerActions.StatusNotification)
	natsNotifier.AddHandler(RESERVE_NOW, chargerActions.ReserveNow)
	natsNotifier.AddHandler(RESERVE_CANCEL, chargerActions.ReserveCancel)
	natsNotifier.AddHandler(SET_CHARGING_PROFILE, chargerActions.SetChargingProfile)
	natsNotifier.AddHandler(RESET, chargerActions.Reset)
	natsNotifier.AddHandler(SUBSCRIBE, chargerActions.Subscribe)
	natsNotifier.SetEnergyHandler(chargerActions.MeterReport)

	if err := natsNotifier.Start(); err != nil {
		log.Fatalf("bus: %v", err)
	}
	defer natsNotifier.Stop()

	log.Infof("connecting to central system at %v", cfg.Backend.URL)
	if err := chargePoint.Start(cfg.Backend.URL); err != nil {
		log.Fatalf("connection to central system failed: %v", err)
	}
	defer chargePoint.Stop()

	interval, err := ocppBootstrap(chargePoint, cfg, manager)
	if err != nil {
		log.Fatalf("bootstrap handshake failed: %v", err)
	}
	log.Infof("registered with central system, heartbeat every %v", interval)

	heartbeat := newHeartbeatLoop(chargePoint, manager, interval)
	go heartbeat.run()
	defer heartbeat.stop()

	done := make(chan struct{})
	if cfg.MockMeter {
		go mockMeterLoop(energy.NewMeter(), &chargerActions, manager, done)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	close(done)
	log.Info("stopping charge point")
}

func init() {
	log = logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	log.SetLevel(logrus.InfoLevel)
}
