//Package mqtt lets dispensers report their state over MQTT instead of HTTP
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/application/states"
	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/infrastructure/config"
	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/infrastructure/logging"
)

const (
	connectTimeout = 10 * time.Second
	handleTimeout  = 5 * time.Second
	quiesceMillis  = 250
	qosAtLeastOnce = byte(1)
	replySegment   = "dispense"
)

//StateReporter records a reported state and decides whether to dispense
type StateReporter interface {
	ReportState(ctx context.Context, deviceID string, report states.Report) (*states.ReportResult, error)
}

//Listener subscribes to the state topic and answers every report with a dispense decision
type Listener struct {
	cfg      config.MQTTConfig
	reporter StateReporter
	log      logging.Logger
	client   paho.Client
	idIndex  int
	publish  func(topic string, payload []byte) error
}

//NewListener creates a listener. Nothing is connected until Start is called.
func NewListener(cfg config.MQTTConfig, reporter StateReporter, log logging.Logger) (*Listener, error) {
	idIndex := -1
	for i, segment := range strings.Split(cfg.StateTopic, "/") {
		if segment == "+" {
			idIndex = i
			break
		}
	}

	if idIndex < 0 {
		return nil, fmt.Errorf("state topic %q has no single level wildcard for the device id", cfg.StateTopic)
	}

	l := &Listener{
		cfg:      cfg,
		reporter: reporter,
		log:      log,
		idIndex:  idIndex,
	}
	l.publish = l.publishWithClient

	return l, nil
}

//Start connects to the broker. The subscription is renewed on every reconnect.
func (l *Listener) Start() error {
	opts := paho.NewClientOptions()
	opts.AddBroker(l.cfg.BrokerURL)
	opts.SetClientID(l.cfg.ClientID + "-" + uuid.NewString())

	if l.cfg.Username != "" {
		opts.SetUsername(l.cfg.Username)
	}
	if l.cfg.Password != "" {
		opts.SetPassword(l.cfg.Password)
	}

	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.SetOnConnectHandler(l.subscribe)
	opts.SetConnectionLostHandler(func(c paho.Client, err error) {
		l.log.Warnf("Lost connection to MQTT broker: %s", err.Error())
	})

	l.client = paho.NewClient(opts)

	token := l.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return fmt.Errorf("timed out connecting to MQTT broker %s", l.cfg.BrokerURL)
	}
	if token.Error() != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	return nil
}

//Stop disconnects from the broker
func (l *Listener) Stop() {
	if l.client != nil && l.client.IsConnected() {
		l.client.Disconnect(quiesceMillis)
	}
}

func (l *Listener) subscribe(c paho.Client) {
	l.log.Infof("Connected to MQTT broker, subscribing to %s", l.cfg.StateTopic)

	token := c.Subscribe(l.cfg.StateTopic, qosAtLeastOnce, func(_ paho.Client, msg paho.Message) {
		l.handleStateMessage(msg.Topic(), msg.Payload())
	})

	if !token.WaitTimeout(connectTimeout) || token.Error() != nil {
		l.log.Errorf("Failed to subscribe to %s: %v", l.cfg.StateTopic, token.Error())
	}
}

func (l *Listener) publishWithClient(topic string, payload []byte) error {
	token := l.client.Publish(topic, qosAtLeastOnce, false, payload)
	if !token.WaitTimeout(connectTimeout) {
		return fmt.Errorf("timed out publishing to %s", topic)
	}
	return token.Error()
}

//handleStateMessage reports the state and publishes the decision on the device's dispense topic.
//Malformed messages are logged and dropped.
func (l *Listener) handleStateMessage(topic string, payload []byte) {
	segments := strings.Split(topic, "/")
	if len(segments) <= l.idIndex || segments[l.idIndex] == "" {
		l.log.Warnf("Ignoring state message on unexpected topic %s", topic)
		return
	}

	deviceID := segments[l.idIndex]

	report := states.Report{}
	if err := json.Unmarshal(payload, &report); err != nil {
		l.log.Warnf("Ignoring malformed state message from device %s: %s", deviceID, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
	defer cancel()

	result, err := l.reporter.ReportState(ctx, deviceID, report)
	if err != nil {
		l.log.Warnf("Rejected state report from device %s: %s", deviceID, err.Error())
		return
	}

	body, err := json.Marshal(result)
	if err != nil {
		l.log.Errorf("Failed to encode dispense decision for device %s: %s", deviceID, err.Error())
		return
	}

	segments[len(segments)-1] = replySegment
	replyTopic := strings.Join(segments, "/")

	if err := l.publish(replyTopic, body); err != nil {
		l.log.Errorf("Failed to publish dispense decision on %s: %s", replyTopic, err.Error())
	}
}
