// Package mqtt exports device state changes to an MQTT broker so that
// external automation (dashboards, voice assistants, recorders) can
// follow the house without holding a WebSocket session. Publishing is
// best-effort and retained, one topic per device.
package mqtt

import (
	"encoding/json"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/hallfield/homehub-core/internal/infrastructure/config"
	"github.com/hallfield/homehub-core/internal/infrastructure/logging"
)

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
)

// Client publishes house state onto an MQTT broker.
type Client struct {
	client paho.Client
	cfg    config.MQTTConfig
	logger *logging.Logger
}

// Connect dials the broker and returns a ready client.
func Connect(cfg config.MQTTConfig, logger *logging.Logger) (*Client, error) {
	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
	}
	opts := paho.NewClientOptions().
		AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port)).
		SetClientID(cfg.Broker.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetOrderMatters(false)
	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}
	opts.OnConnect = func(paho.Client) {
		logger.Info("mqtt connected", "host", cfg.Broker.Host, "port", cfg.Broker.Port)
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		logger.Warn("mqtt connection lost", "error", err)
	}

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("mqtt connect timeout after %s", connectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connecting to mqtt broker: %w", err)
	}

	return &Client{client: client, cfg: cfg, logger: logger}, nil
}

// statePayload is the retained per-device message body.
type statePayload struct {
	HouseID   int64          `json:"house_id"`
	RoomID    int64          `json:"room_id"`
	DeviceID  int64          `json:"device_id"`
	Kind      string         `json:"kind"`
	Status    map[string]any `json:"status"`
	Timestamp string         `json:"timestamp"`
}

// PublishDeviceState publishes a device's status to its retained topic
// homehub/state/<house>/<room>/<device>. Failures are logged, never
// surfaced: the broker link is an export, not a dependency.
func (c *Client) PublishDeviceState(houseID, roomID, deviceID int64, kind string, status map[string]any) {
	payload, err := json.Marshal(statePayload{
		HouseID:   houseID,
		RoomID:    roomID,
		DeviceID:  deviceID,
		Kind:      kind,
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		c.logger.Warn("mqtt payload encoding failed", "error", err)
		return
	}

	topic := fmt.Sprintf("homehub/state/%d/%d/%d", houseID, roomID, deviceID)
	token := c.client.Publish(topic, byte(c.cfg.QoS), true, payload)
	go func() {
		if !token.WaitTimeout(publishTimeout) {
			c.logger.Warn("mqtt publish timeout", "topic", topic)
			return
		}
		if err := token.Error(); err != nil {
			c.logger.Warn("mqtt publish failed", "topic", topic, "error", err)
		}
	}()
}

// Close disconnects from the broker, allowing in-flight publishes a
// moment to drain.
func (c *Client) Close() {
	c.client.Disconnect(uint(publishTimeout.Milliseconds())) //nolint:gosec // G115: constant fits uint
}
