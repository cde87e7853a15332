package mqtt

import (
	"fmt"
	"time"

	"FallWatch.iot/internal/config"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// MessageHandler processes one inbound message.
type MessageHandler func(topic string, payload []byte) error

// Client subscribes to device topics. Subscriptions are re-established on
// every reconnect since the session is clean.
type Client struct {
	client paho.Client
	cfg    config.MQTTConfig
	logger *zap.Logger
}

// NewClient connects to the broker and subscribes cfg.Topic to handler.
func NewClient(cfg config.MQTTConfig, handler MessageHandler, logger *zap.Logger) (*Client, error) {
	c := &Client{cfg: cfg, logger: logger}

	opts := paho.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		logger.Warn("MQTT connection lost", zap.Error(err))
	})
	opts.SetOnConnectHandler(func(pc paho.Client) {
		token := pc.Subscribe(cfg.Topic, cfg.QoS, func(_ paho.Client, msg paho.Message) {
			if err := handler(msg.Topic(), msg.Payload()); err != nil {
				logger.Warn("Error handling MQTT message", zap.String("topic", msg.Topic()), zap.Error(err))
			}
		})
		if token.Wait() && token.Error() != nil {
			logger.Error("Failed to subscribe", zap.String("topic", cfg.Topic), zap.Error(token.Error()))
			return
		}
		logger.Info("Subscribed to MQTT topic", zap.String("topic", cfg.Topic))
	})

	c.client = paho.NewClient(opts)
	if token := c.client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}
	return c, nil
}

func (c *Client) IsConnected() bool {
	return c.client.IsConnected()
}

// Disconnect waits up to 250ms for in-flight work.
func (c *Client) Disconnect() {
	c.client.Disconnect(250)
}
