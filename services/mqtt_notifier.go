package services

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/jhilgenberg/go-e-report/logging"
	"github.com/jhilgenberg/go-e-report/models"
)

const mqttPublishTimeout = 5 * time.Second

type MQTTOptions struct {
	Broker   string
	Topic    string
	Username string
	Password string
}

// mqttPublisher is the part of mqtt.Client the notifier needs.
type mqttPublisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTNotifier publishes report events as JSON to <topic>/progress and
// <topic>/result. The result message is retained so late subscribers see
// the outcome of the last run.
type MQTTNotifier struct {
	client mqttPublisher
	topic  string
	logger *zap.Logger
	close  func()
}

func NewMQTTNotifier(opts MQTTOptions, logger *zap.Logger) (*MQTTNotifier, error) {
	logger = logging.OrNop(logger)
	host, _ := os.Hostname()
	clientID := fmt.Sprintf("goe-report-%s-%d", host, time.Now().Unix())

	clientOpts := mqtt.NewClientOptions()
	clientOpts.AddBroker(opts.Broker)
	clientOpts.SetClientID(clientID)
	clientOpts.SetCleanSession(true)
	clientOpts.SetAutoReconnect(true)
	clientOpts.SetMaxReconnectInterval(10 * time.Second)
	clientOpts.SetKeepAlive(60 * time.Second)
	clientOpts.SetPingTimeout(10 * time.Second)
	clientOpts.SetWriteTimeout(10 * time.Second)
	clientOpts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("mqtt connection lost, reconnecting", zap.String("broker", opts.Broker), zap.Error(err))
	})
	if opts.Username != "" {
		clientOpts.SetUsername(opts.Username)
		clientOpts.SetPassword(opts.Password)
	}

	client := mqtt.NewClient(clientOpts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to mqtt broker %s: %w", opts.Broker, token.Error())
	}
	logger.Info("connected to mqtt broker", zap.String("broker", opts.Broker))

	n := newMQTTNotifier(client, opts.Topic, logger)
	n.close = func() { client.Disconnect(250) }
	return n, nil
}

func newMQTTNotifier(client mqttPublisher, topic string, logger *zap.Logger) *MQTTNotifier {
	topic = strings.TrimRight(topic, "/")
	if topic == "" {
		topic = "goe-report"
	}
	return &MQTTNotifier{client: client, topic: topic, logger: logging.OrNop(logger), close: func() {}}
}

func (n *MQTTNotifier) Progress(bars []models.ProgressBar) {
	n.publish(n.topic+"/progress", false, NewProgressEvent(bars))
}

func (n *MQTTNotifier) Succeeded(result *ReportResult) {
	n.publish(n.topic+"/result", true, NewSucceededEvent(result))
}

func (n *MQTTNotifier) Failed(err error) {
	n.publish(n.topic+"/result", true, NewFailedEvent(err))
}

func (n *MQTTNotifier) Close() {
	n.close()
}

// publish never fails the report run; broker problems are logged.
func (n *MQTTNotifier) publish(topic string, retained bool, event ReportEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		n.logger.Warn("failed to encode mqtt event", zap.String("topic", topic), zap.Error(err))
		return
	}

	token := n.client.Publish(topic, 1, retained, payload)
	if !token.WaitTimeout(mqttPublishTimeout) {
		n.logger.Warn("mqtt publish timed out", zap.String("topic", topic))
		return
	}
	if err := token.Error(); err != nil {
		n.logger.Warn("mqtt publish failed", zap.String("topic", topic), zap.Error(err))
	}
}
