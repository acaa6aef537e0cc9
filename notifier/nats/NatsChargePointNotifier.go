package notifier

import (
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"

	"charge_point/common"
	notify "charge_point/notifier"
)

// Function handles one frontend verb: it receives the raw command payload
// and must answer exactly once on the response channel.
type Function func(payload []byte, response chan common.Response)

// EnergyFunc consumes one metering-subsystem report. No reply is expected.
type EnergyFunc func(payload []byte)

type natsChargePointNotifier struct {
	notification  chan notify.Notification // manager events bound for subscribers
	connection    *nats.Conn
	handlers      map[string]Function
	energyHandler EnergyFunc
	url           string
	requestSubj   string
	energySubj    string
	timeout       time.Duration
	relay         atomic.Bool // event fan-out gate, toggled by subscribe(bool)
}

func New(url string) *natsChargePointNotifier {
	return &natsChargePointNotifier{
		handlers:    make(map[string]Function),
		url:         url,
		requestSubj: "request",
		energySubj:  "energy.state",
		timeout:     30 * time.Second,
	}
}

func (ncp *natsChargePointNotifier) SetTimeout(timeout time.Duration) {
	ncp.timeout = timeout
}

func (ncp *natsChargePointNotifier) Timeout() time.Duration {
	return ncp.timeout
}

func (ncp *natsChargePointNotifier) AddHandler(action string, fn Function) {
	ncp.handlers[action] = fn
}

func (ncp *natsChargePointNotifier) SetEnergyHandler(fn EnergyFunc) {
	ncp.energyHandler = fn
}

func (ncp *natsChargePointNotifier) SetChannel(notification chan notify.Notification) {
	ncp.notification = notification
}

// EnableRelay opens the event fan-out. The first enable announces the
// manager with an initialized notification.
func (ncp *natsChargePointNotifier) EnableRelay() {
	if !ncp.relay.Swap(true) {
		ncp.publish(notify.Notification{Topic: notify.TopicInitialized, Data: struct{}{}})
	}
}

func (ncp *natsChargePointNotifier) DisableRelay() {
	ncp.relay.Store(false)
}

func (ncp *natsChargePointNotifier) publish(n notify.Notification) {
	bt, err := json.Marshal(n.Data)
	if err != nil {
		log.Error(err)
		return
	}
	if err := ncp.connection.Publish(n.Topic, bt); err != nil {
		log.Errorf("publish %v: %v", n.Topic, err)
	}
}

// eventRelay drains the manager's event channel. The channel is always
// drained so the manager never blocks; the relay gate only decides whether
// subscribers get to see the event.
func (ncp *natsChargePointNotifier) eventRelay() {
	for n := range ncp.notification {
		if !ncp.relay.Load() {
			continue
		}
		ncp.publish(n)
	}
}

// requestHandler serves the request/reply side of the bus.
func (ncp *natsChargePointNotifier) requestHandler() error {
	var Validator = validator.New()

	_, err := ncp.connection.Subscribe(ncp.requestSubj, func(m *nats.Msg) {
		var command common.Command
		if err := json.Unmarshal(m.Data, &command); err != nil {
			ncp.respond(m, common.Response{Err: &common.Error{
				Code:    "command.format.not.valid",
				Message: "command is not valid json",
			}})
			return
		}
		if command.ID == "" {
			command.ID = uuid.NewString()
		}

		if err := Validator.Struct(&command); err != nil {
			ncp.respond(m, common.Response{ID: command.ID, Err: &common.Error{
				Code:    "command.format.not.valid",
				Message: "command is missing required fields",
			}})
			return
		}

		fn, exists := ncp.handlers[command.Action]
		if !exists {
			ncp.respond(m, common.Response{ID: command.ID, Err: &common.Error{
				Code:    "command.action.not.found",
				Message: "no such action: " + command.Action,
			}})
			return
		}

		log.WithFields(log.Fields{"action": command.Action, "id": command.ID}).Debug("bus request")

		responseChannel := make(chan common.Response, 1)
		go fn(command.Payload, responseChannel)

		select {
		case response := <-responseChannel:
			response.ID = command.ID
			ncp.respond(m, response)
		case <-time.After(ncp.timeout):
			ncp.respond(m, common.Response{ID: command.ID, Err: &common.Error{
				Code:    "request.timeout",
				Message: "request timed out waiting for the charge point",
			}})
		}
	})
	return err
}

func (ncp *natsChargePointNotifier) respond(m *nats.Msg, response common.Response) {
	bt, _ := json.Marshal(response)
	if response.Err != nil {
		log.Errorf("%v", string(bt))
	}
	if err := m.Respond(bt); err != nil {
		log.Errorf("respond: %v", err)
	}
}

func (ncp *natsChargePointNotifier) Start() error {
	nc, err := nats.Connect(ncp.url)
	if err != nil {
		return err
	}
	ncp.connection = nc

	if ncp.notification != nil {
		go ncp.eventRelay()
	}
	if ncp.energyHandler != nil {
		if _, err := nc.Subscribe(ncp.energySubj, func(m *nats.Msg) {
			ncp.energyHandler(m.Data)
		}); err != nil {
			return err
		}
	}
	return ncp.requestHandler()
}

func (ncp *natsChargePointNotifier) Stop() {
	if ncp.connection != nil {
		ncp.connection.Close()
		log.Info("nats stopped")
	}
}
