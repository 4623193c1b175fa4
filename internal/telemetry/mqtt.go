package telemetry

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/NureSalohubAndrii/carvision/pkg/config"
	"github.com/NureSalohubAndrii/carvision/pkg/logger"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

const ingestTimeout = 10 * time.Second

// MQTTBridge subscribes to device telemetry published over MQTT and feeds it
// into the same ingestion pipeline as the HTTP endpoint. Devices publish to
// carvision/telemetry/<vin>.
type MQTTBridge struct {
	client  mqtt.Client
	service *Service
	topic   string
}

// NewMQTTBridge creates a bridge for the given broker configuration
func NewMQTTBridge(cfg *config.MQTTConfig, service *Service) *MQTTBridge {
	bridge := &MQTTBridge{
		service: service,
		topic:   cfg.TelemetryTopic,
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID(cfg.ClientID).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectTimeout(5 * time.Second).
		SetOnConnectHandler(func(client mqtt.Client) {
			// re-subscribe on every (re)connect
			if token := client.Subscribe(bridge.topic, 1, bridge.handleMessage); token.Wait() && token.Error() != nil {
				logger.Error("Failed to subscribe to telemetry topic",
					zap.String("topic", bridge.topic),
					zap.Error(token.Error()),
				)
			}
		}).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			logger.Warn("MQTT connection lost", zap.Error(err))
		})

	bridge.client = mqtt.NewClient(opts)
	return bridge
}

// Start connects to the broker; the subscription is established by the
// on-connect handler
func (b *MQTTBridge) Start() error {
	logger.Info("Starting MQTT bridge", zap.String("topic", b.topic))
	token := b.client.Connect()
	token.Wait()
	return token.Error()
}

// Stop disconnects from the broker
func (b *MQTTBridge) Stop() {
	b.client.Disconnect(250)
}

func (b *MQTTBridge) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	var req IngestRequest
	if err := json.Unmarshal(msg.Payload(), &req); err != nil {
		logger.Warn("Dropping malformed telemetry message",
			zap.String("topic", msg.Topic()),
			zap.Error(err),
		)
		return
	}

	// the topic segment is authoritative for attribution
	if vin := vinFromTopic(msg.Topic()); vin != "" {
		req.VIN = vin
	}

	ctx, cancel := context.WithTimeout(context.Background(), ingestTimeout)
	defer cancel()

	resp, err := b.service.Ingest(ctx, &req)
	if err != nil {
		logger.Warn("Failed to ingest MQTT telemetry",
			zap.String("vin", req.VIN),
			zap.Error(err),
		)
		return
	}

	if resp.TamperingDetected {
		logger.Warn("Tampering detected on MQTT telemetry", zap.String("vin", req.VIN))
	}
}

func vinFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) == 0 {
		return ""
	}
	return strings.ToUpper(parts[len(parts)-1])
}
